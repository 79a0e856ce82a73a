package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/jszwec/csvutil"
	"github.com/mandolyte/mdtopdf"
	"gopkg.in/yaml.v3"

	"github.com/at-ishikawa/lingq-export/internal/lingq"
)

func createFile(path string) (*os.File, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("os.Create(%s) > %w", path, err)
	}
	return file, nil
}

// writeCSV writes a header and one record per row. T is Row or LanguageRow.
func writeCSV[T any](path string, rows []T) error {
	file, err := createFile(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = file.Close()
	}()

	writer := csv.NewWriter(file)
	encoder := csvutil.NewEncoder(writer)
	if err := encoder.Encode(rows); err != nil {
		return fmt.Errorf("encoder.Encode > %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("writer.Flush > %w", err)
	}
	return file.Close()
}

// writeJSON writes data indented by two spaces without escaping HTML characters.
func writeJSON(path string, data any) error {
	file, err := createFile(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = file.Close()
	}()

	encoder := json.NewEncoder(file)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoder.Encode > %w", err)
	}
	return file.Close()
}

// languageCards is written as a JSON object keyed by language code, keeping the download order.
type languageCards []languageCardsEntry

type languageCardsEntry struct {
	Language string
	Cards    []lingq.Card
}

func (l languageCards) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)

	buf.WriteByte('{')
	for i, entry := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encoder.Encode(entry.Language); err != nil {
			return nil, fmt.Errorf("encoder.Encode(%s) > %w", entry.Language, err)
		}
		buf.WriteByte(':')
		if err := encoder.Encode(entry.Cards); err != nil {
			return nil, fmt.Errorf("encoder.Encode(%s cards) > %w", entry.Language, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeYAML(path string, data any) error {
	file, err := createFile(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = file.Close()
	}()

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoder.Encode > %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("encoder.Close > %w", err)
	}
	return file.Close()
}

// vocabularySection is one language of a Markdown vocabulary list.
type vocabularySection struct {
	Language string
	Rows     []Row
}

type vocabularyList struct {
	Title    string
	Sections []vocabularySection
}

func renderMarkdown(tmpl *template.Template, title string, sections []vocabularySection) (string, error) {
	var markdown strings.Builder
	if err := tmpl.Execute(&markdown, vocabularyList{Title: title, Sections: sections}); err != nil {
		return "", fmt.Errorf("tmpl.Execute > %w", err)
	}
	return markdown.String(), nil
}

// writeMarkdownPDF writes the Markdown file to markdownPath and renders it to the PDF next to it.
func writeMarkdownPDF(markdownPath string, content string) (string, error) {
	if !strings.HasSuffix(markdownPath, ".md") {
		return "", fmt.Errorf("input file must have .md extension: %s", markdownPath)
	}
	if err := os.WriteFile(markdownPath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("os.WriteFile(%s) > %w", markdownPath, err)
	}

	pdfPath := strings.TrimSuffix(markdownPath, ".md") + ".pdf"
	renderer := mdtopdf.NewPdfRenderer("P", "A4", pdfPath, "", nil, mdtopdf.LIGHT)
	if err := renderer.Process([]byte(content)); err != nil {
		return "", fmt.Errorf("renderer.Process() > %w", err)
	}
	return pdfPath, nil
}
