package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/at-ishikawa/lingq-export/internal/assets"
	"github.com/at-ishikawa/lingq-export/internal/download"
)

const timestampLayout = "20060102_150405"

var ErrNoSink = errors.New("the mysql format needs a database connection")

// Sink stores a download result outside of files. *database.CardSink implements it.
type Sink interface {
	Write(ctx context.Context, result download.Result) error
}

type Options struct {
	Directory string
	Formats   *FormatSet
	PlainText bool
	// PDFTemplate is a Markdown template replacing the embedded vocabulary list.
	PDFTemplate string
}

type Exporter struct {
	options Options
	now     func() time.Time
	sink    Sink
}

type Option func(*Exporter)

// WithClock replaces the clock used for file name timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		e.now = now
	}
}

func WithSink(sink Sink) Option {
	return func(e *Exporter) {
		e.sink = sink
	}
}

func NewExporter(options Options, opts ...Option) *Exporter {
	if options.Formats == nil {
		options.Formats = DefaultFormats()
	}
	if options.Directory == "" {
		options.Directory = "."
	}

	exporter := &Exporter{
		options: options,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(exporter)
	}
	return exporter
}

// Export writes a file per language and format followed by the combined files, and returns their paths.
// Languages without cards are skipped, and nothing is written when no language has cards.
func (e *Exporter) Export(ctx context.Context, result download.Result) ([]string, error) {
	logger := slog.Default()

	var languages []download.LanguageResult
	for _, language := range result.Languages {
		if len(language.Cards) > 0 {
			languages = append(languages, language)
		}
	}
	if len(languages) == 0 {
		logger.Info("no LingQs to save")
		return nil, nil
	}

	if err := os.MkdirAll(e.options.Directory, 0755); err != nil {
		return nil, fmt.Errorf("os.MkdirAll(%s) > %w", e.options.Directory, err)
	}
	timestamp := e.now().Format(timestampLayout)

	var markdown *template.Template
	if e.options.Formats.Has(FormatPDF) {
		tmpl, err := assets.ParseVocabularyTemplate(e.options.PDFTemplate)
		if err != nil {
			return nil, fmt.Errorf("assets.ParseVocabularyTemplate > %w", err)
		}
		markdown = tmpl
	}

	var paths []string
	for _, language := range languages {
		written, err := e.exportLanguage(language, timestamp, markdown)
		paths = append(paths, written...)
		if err != nil {
			return paths, fmt.Errorf("exportLanguage(%s) > %w", language.Code, err)
		}
	}

	written, err := e.exportCombined(languages, timestamp, markdown)
	paths = append(paths, written...)
	if err != nil {
		return paths, fmt.Errorf("exportCombined > %w", err)
	}

	if e.options.Formats.Has(FormatMySQL) {
		if e.sink == nil {
			return paths, ErrNoSink
		}
		if err := e.sink.Write(ctx, download.Result{Languages: languages}); err != nil {
			return paths, fmt.Errorf("sink.Write > %w", err)
		}
		logger.Info("saved LingQs to the database", "cards", result.TotalCards())
	}
	return paths, nil
}

func (e *Exporter) filePath(name string, timestamp string, extension string) string {
	return filepath.Join(e.options.Directory, fmt.Sprintf("lingqs_%s_%s.%s", name, timestamp, extension))
}

func (e *Exporter) flattenOptions() FlattenOptions {
	return FlattenOptions{PlainText: e.options.PlainText}
}

func (e *Exporter) exportLanguage(language download.LanguageResult, timestamp string, markdown *template.Template) ([]string, error) {
	logger := slog.Default().With("language", language.Code)
	rows := FlattenAll(language.Cards, e.flattenOptions())

	var paths []string
	for _, format := range e.options.Formats.Formats() {
		var err error
		path := ""
		switch format {
		case FormatJSON:
			path = e.filePath(language.Code, timestamp, "json")
			err = writeJSON(path, language.Cards)
		case FormatCSV:
			path = e.filePath(language.Code, timestamp, "csv")
			err = writeCSV(path, rows)
		case FormatYAML:
			path = e.filePath(language.Code, timestamp, "yaml")
			err = writeYAML(path, rows)
		case FormatPDF:
			markdownPath := e.filePath(language.Code, timestamp, "md")
			path, err = e.writePDF(markdown, markdownPath, "LingQs: "+language.Code, []vocabularySection{
				{Language: language.Code, Rows: rows},
			})
			if err == nil {
				paths = append(paths, markdownPath)
			}
		default:
			continue
		}
		if err != nil {
			return paths, fmt.Errorf("write %s > %w", format, err)
		}
		paths = append(paths, path)
		logger.Info("saved LingQs", "format", format, "cards", len(language.Cards), "path", path)
	}
	return paths, nil
}

func (e *Exporter) exportCombined(languages []download.LanguageResult, timestamp string, markdown *template.Template) ([]string, error) {
	options := e.flattenOptions()
	var rows []LanguageRow
	var sections []vocabularySection
	cardsByLanguage := make(languageCards, 0, len(languages))
	for _, language := range languages {
		cardsByLanguage = append(cardsByLanguage, languageCardsEntry{Language: language.Code, Cards: language.Cards})
		languageRows := FlattenAll(language.Cards, options)
		sections = append(sections, vocabularySection{Language: language.Code, Rows: languageRows})
		for _, row := range languageRows {
			rows = append(rows, LanguageRow{Language: language.Code, Row: row})
		}
	}

	var paths []string
	for _, format := range e.options.Formats.Formats() {
		var err error
		path := ""
		switch format {
		case FormatJSON:
			path = e.filePath("all", timestamp, "json")
			err = writeJSON(path, cardsByLanguage)
		case FormatCSV:
			path = e.filePath("all", timestamp, "csv")
			err = writeCSV(path, rows)
		case FormatYAML:
			path = e.filePath("all", timestamp, "yaml")
			err = writeYAML(path, rows)
		case FormatPDF:
			markdownPath := e.filePath("all", timestamp, "md")
			path, err = e.writePDF(markdown, markdownPath, "LingQs", sections)
			if err == nil {
				paths = append(paths, markdownPath)
			}
		default:
			continue
		}
		if err != nil {
			return paths, fmt.Errorf("write %s > %w", format, err)
		}
		paths = append(paths, path)
		slog.Default().Info("saved combined LingQs", "format", format, "cards", len(rows), "path", path)
	}
	return paths, nil
}

func (e *Exporter) writePDF(markdown *template.Template, markdownPath string, title string, sections []vocabularySection) (string, error) {
	content, err := renderMarkdown(markdown, title, sections)
	if err != nil {
		return "", err
	}
	return writeMarkdownPDF(markdownPath, content)
}
