// Package assets embeds the templates used to render exported LingQs.
package assets

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

const vocabularyTemplateName = "vocabulary.md.go.tmpl"

//go:embed templates/vocabulary.md.go.tmpl
var fallbackVocabularyTemplate string

// ParseVocabularyTemplate parses the Markdown template of a vocabulary list.
// The template at templatePath is used when it exists and parses; the embedded one otherwise.
func ParseVocabularyTemplate(templatePath string) (*template.Template, error) {
	return parseTemplateWithFallback(templatePath, vocabularyTemplateName, fallbackVocabularyTemplate)
}

func parseTemplateWithFallback(templatePath string, fallbackName string, fallbackTemplate string) (*template.Template, error) {
	funcMap := template.FuncMap{
		"join": strings.Join,
		"cell": TableCell,
	}

	if templatePath != "" {
		if _, err := os.Stat(templatePath); err == nil {
			fileName := filepath.Base(templatePath)
			tmpl, err := template.New(fileName).
				Funcs(funcMap).
				ParseFiles(templatePath)
			if err == nil {
				return tmpl, nil
			}
			slog.Default().Warn("failed to parse a templatePath",
				slog.String("templatePath", templatePath),
				slog.Any("error", err),
			)
		}
	}

	tmpl, err := template.New(fallbackName).
		Funcs(funcMap).
		Parse(fallbackTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded template: %w", err)
	}
	return tmpl, nil
}

// TableCell makes value safe to put in a Markdown table cell.
func TableCell(value string) string {
	value = strings.ReplaceAll(value, "\r", "")
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.ReplaceAll(value, "|", `\|`)
}
