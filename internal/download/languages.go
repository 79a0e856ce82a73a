package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/at-ishikawa/lingq-export/internal/lingq"
)

// CommonLanguages are probed when the account has no language contexts.
var CommonLanguages = []string{"en", "es", "fr", "de", "it", "pt", "ru", "ja", "ko", "zh"}

// NormalizeLanguages lower-cases and trims the codes, splits comma separated values, and drops empty and duplicated codes.
func NormalizeLanguages(requested []string) []string {
	seen := make(map[string]bool)
	var codes []string
	for _, value := range requested {
		for _, code := range strings.Split(value, ",") {
			code = strings.ToLower(strings.TrimSpace(code))
			if code == "" || seen[code] {
				continue
			}
			seen[code] = true
			codes = append(codes, code)
		}
	}
	return codes
}

// ResolveLanguages returns the requested codes, or discovers the languages of the account when none are requested.
func (d *Downloader) ResolveLanguages(ctx context.Context, requested []string) ([]string, error) {
	if codes := NormalizeLanguages(requested); len(codes) > 0 {
		return codes, nil
	}

	logger := slog.Default()
	contexts, err := d.api.Contexts(ctx)
	if err != nil {
		if isFatal(err) {
			return nil, fmt.Errorf("api.Contexts > %w", err)
		}
		logger.Warn("failed to get language contexts", "error", err)
	}
	if len(contexts) > 0 {
		codes, err := d.languagesFromContexts(ctx, contexts)
		if err != nil {
			return nil, fmt.Errorf("languagesFromContexts > %w", err)
		}
		if len(codes) > 0 {
			logger.Info("found languages from contexts", "languages", codes)
			return codes, nil
		}
	}

	logger.Info("no language contexts found, checking common languages", "languages", CommonLanguages)
	codes, err := d.probeLanguages(ctx)
	if err != nil {
		return nil, fmt.Errorf("probeLanguages > %w", err)
	}
	if len(codes) == 0 {
		return nil, ErrNoLanguages
	}
	return codes, nil
}

func (d *Downloader) languagesFromContexts(ctx context.Context, contexts []lingq.Context) ([]string, error) {
	var lookup map[string]string
	needsLookup := false
	for _, languageContext := range contexts {
		if languageContext.Language.Code == "" && languageContext.Language.URL != "" {
			needsLookup = true
			break
		}
	}
	if needsLookup {
		languages, err := d.api.Languages(ctx)
		if err != nil {
			if isFatal(err) {
				return nil, fmt.Errorf("api.Languages > %w", err)
			}
			slog.Default().Warn("failed to get languages, using codes from the language URLs", "error", err)
		}
		lookup = make(map[string]string, len(languages))
		for _, language := range languages {
			lookup[language.URL] = language.Code
		}
	}

	var codes []string
	for _, languageContext := range contexts {
		code := languageContext.Language.Code
		if code == "" {
			code = lookup[languageContext.Language.URL]
		}
		if code == "" {
			code = codeFromURL(languageContext.Language.URL)
		}
		codes = append(codes, code)
	}
	return NormalizeLanguages(codes), nil
}

// codeFromURL returns the last path segment of a language URL such as https://www.lingq.com/api/v2/languages/es/.
func codeFromURL(languageURL string) string {
	if languageURL == "" {
		return ""
	}
	parsed, err := url.Parse(languageURL)
	if err != nil {
		return ""
	}
	code := path.Base(strings.TrimSuffix(parsed.Path, "/"))
	if code == "." || code == "/" || code == "languages" {
		return ""
	}
	return code
}

func (d *Downloader) probeLanguages(ctx context.Context) ([]string, error) {
	var codes []string
	for _, code := range CommonLanguages {
		count, err := d.api.CountCards(ctx, code)
		if err != nil {
			if errors.Is(err, lingq.ErrUnauthorized) || ctx.Err() != nil {
				return nil, fmt.Errorf("api.CountCards(%s) > %w", code, err)
			}
			slog.Default().Debug("skipped a language", "language", code, "error", err)
			continue
		}
		if count > 0 {
			slog.Default().Info("found LingQs", "language", code, "count", count)
			codes = append(codes, code)
		}
	}
	return codes, nil
}

// LanguageCount is the number of LingQs saved in a language.
type LanguageCount struct {
	Code  string
	Count int
}

// CountLanguages resolves the languages like Download does and returns their card counts.
func (d *Downloader) CountLanguages(ctx context.Context, requested []string) ([]LanguageCount, error) {
	if err := d.api.TestConnection(ctx); err != nil {
		return nil, fmt.Errorf("api.TestConnection > %w", err)
	}
	codes, err := d.ResolveLanguages(ctx, requested)
	if err != nil {
		return nil, fmt.Errorf("ResolveLanguages > %w", err)
	}

	counts := make([]LanguageCount, 0, len(codes))
	for _, code := range codes {
		count, err := d.api.CountCards(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("api.CountCards(%s) > %w", code, err)
		}
		counts = append(counts, LanguageCount{Code: code, Count: count})
	}
	return counts, nil
}
