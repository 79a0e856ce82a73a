package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

// exportFormats are the values accepted by outputs.formats and --format.
var exportFormats = []string{"csv", "json", "both", "yaml", "pdf", "mysql"}

type fieldRule struct {
	tag     string
	message string
	check   validator.Func
}

var fieldRules = []fieldRule{
	{
		tag:     "exportformat",
		message: "{0} must be one of " + strings.Join(exportFormats, ", "),
		check: func(fl validator.FieldLevel) bool {
			for _, format := range splitFormats(fl.Field().String()) {
				if !slices.Contains(exportFormats, format) {
					return false
				}
			}
			return true
		},
	},
	{
		tag:     "parentdir",
		message: "{0} must be a path inside an existing directory",
		check:   hasExistingParentDir,
	},
	// Reported by validateDatabase rather than a struct tag.
	{
		tag:     "mysqlrequired",
		message: "{0} is required to export to mysql",
	},
}

func newValidator() (*validator.Validate, ut.Translator, error) {
	validate := validator.New()

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, nil, fmt.Errorf("failed to register default translations: %w", err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	for _, rule := range fieldRules {
		if err := registerRule(validate, trans, rule); err != nil {
			return nil, nil, err
		}
	}
	validate.RegisterStructValidation(validateDatabase, Config{})

	return validate, trans, nil
}

func registerRule(validate *validator.Validate, trans ut.Translator, rule fieldRule) error {
	if rule.check != nil {
		if err := validate.RegisterValidation(rule.tag, rule.check); err != nil {
			return fmt.Errorf("failed to register %s validation: %w", rule.tag, err)
		}
	}
	if err := validate.RegisterTranslation(rule.tag, trans, func(ut ut.Translator) error {
		return ut.Add(rule.tag, rule.message, true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		t, _ := ut.T(rule.tag, strings.TrimPrefix(fe.Namespace(), "Config."))
		return t
	}); err != nil {
		return fmt.Errorf("failed to register %s translation: %w", rule.tag, err)
	}
	return nil
}

// validateDatabase requires a server and schema only when cards are exported to MySQL.
func validateDatabase(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(Config)
	wantsMySQL := slices.ContainsFunc(cfg.Outputs.Formats, func(value string) bool {
		return slices.Contains(splitFormats(value), "mysql")
	})
	if !wantsMySQL {
		return
	}
	if cfg.Database.Host == "" {
		sl.ReportError(cfg.Database.Host, "database.host", "Host", "mysqlrequired", "")
	}
	if cfg.Database.Database == "" {
		sl.ReportError(cfg.Database.Database, "database.database", "Database", "mysqlrequired", "")
	}
}

// splitFormats normalizes a value such as "CSV, json" the way --format does.
func splitFormats(value string) []string {
	var formats []string
	for _, format := range strings.Split(value, ",") {
		if format = strings.ToLower(strings.TrimSpace(format)); format != "" {
			formats = append(formats, format)
		}
	}
	return formats
}

func hasExistingParentDir(fl validator.FieldLevel) bool {
	path := fl.Field().String()
	if path == "" {
		return false
	}

	info, err := os.Stat(filepath.Dir(path))
	if err != nil {
		return false
	}
	return info.IsDir()
}
