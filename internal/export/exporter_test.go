package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/at-ishikawa/lingq-export/internal/download"
	"github.com/at-ishikawa/lingq-export/internal/testutil"
)

var exportedAt = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

type recordingSink struct {
	results []download.Result
	err     error
}

func (s *recordingSink) Write(_ context.Context, result download.Result) error {
	s.results = append(s.results, result)
	return s.err
}

func testResult(t *testing.T) download.Result {
	t.Helper()
	return download.Result{
		Languages: []download.LanguageResult{
			{
				Code: "es",
				Cards: decodeCards(t,
					testutil.NewCard(1, "hola", testutil.NewHint("hello", "en", 9)),
					testutil.NewCard(2, "adiós", testutil.NewHint("bye", "en", 2), testutil.NewHint("goodbye", "en", 7)),
				),
				Complete: true,
			},
			{
				Code:     "de",
				Complete: true,
			},
			{
				Code:  "fr",
				Cards: decodeCards(t, testutil.NewCard(3, "bonjour <i>à</i> tous")),
				Err:   errors.New("page 2 failed"),
			},
		},
	}
}

func newTestExporter(t *testing.T, formats string, opts ...Option) (*Exporter, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "output")
	formatSet, err := ParseFormats(formats)
	require.NoError(t, err)
	opts = append([]Option{WithClock(func() time.Time { return exportedAt })}, opts...)
	return NewExporter(Options{Directory: dir, Formats: formatSet}, opts...), dir
}

func fileNames(paths []string) []string {
	names := make([]string, 0, len(paths))
	for _, path := range paths {
		names = append(names, filepath.Base(path))
	}
	return names
}

func TestExporter_Export_Files(t *testing.T) {
	tests := []struct {
		name      string
		formats   string
		wantFiles []string
	}{
		{
			name:    "csv and json",
			formats: "both",
			wantFiles: []string{
				"lingqs_es_20250314_092653.csv",
				"lingqs_es_20250314_092653.json",
				"lingqs_fr_20250314_092653.csv",
				"lingqs_fr_20250314_092653.json",
				"lingqs_all_20250314_092653.csv",
				"lingqs_all_20250314_092653.json",
			},
		},
		{
			name:    "yaml only",
			formats: "yaml",
			wantFiles: []string{
				"lingqs_es_20250314_092653.yaml",
				"lingqs_fr_20250314_092653.yaml",
				"lingqs_all_20250314_092653.yaml",
			},
		},
		{
			name:    "pdf keeps the markdown",
			formats: "pdf",
			wantFiles: []string{
				"lingqs_es_20250314_092653.md",
				"lingqs_es_20250314_092653.pdf",
				"lingqs_fr_20250314_092653.md",
				"lingqs_fr_20250314_092653.pdf",
				"lingqs_all_20250314_092653.md",
				"lingqs_all_20250314_092653.pdf",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter, dir := newTestExporter(t, tt.formats)

			got, err := exporter.Export(context.Background(), testResult(t))
			require.NoError(t, err)
			assert.Equal(t, tt.wantFiles, fileNames(got))
			assert.ElementsMatch(t, tt.wantFiles, testutil.ListFiles(t, dir))
		})
	}
}

func TestExporter_Export_CSV(t *testing.T) {
	exporter, dir := newTestExporter(t, "csv")
	_, err := exporter.Export(context.Background(), testResult(t))
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "lingqs_es_20250314_092653.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,term,fragment,best_translation,translation_locale,all_translations,importance,status,notes,tags,srs_due_date,last_reviewed_correct,words,audio,url", lines[0])

	var rows []Row
	require.NoError(t, csvutil.Unmarshal(content, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "adiós", rows[1].Term)
	assert.Equal(t, "goodbye", rows[1].BestTranslation)
	assert.Equal(t, "bye (en) | goodbye (en)", rows[1].AllTranslations)

	combined, err := os.ReadFile(filepath.Join(dir, "lingqs_all_20250314_092653.csv"))
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(combined)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"language", "id", "term"}, records[0][:3])
	assert.Equal(t, []string{"es", "1", "hola"}, records[1][:3])
	assert.Equal(t, []string{"fr", "3", "bonjour <i>à</i> tous"}, records[3][:3])
}

func TestExporter_Export_JSON(t *testing.T) {
	exporter, dir := newTestExporter(t, "json")
	_, err := exporter.Export(context.Background(), testResult(t))
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "lingqs_es_20250314_092653.json"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "[\n  {\n    \""), string(content))
	assert.Contains(t, string(content), `"pk": 1,`)
	assert.Contains(t, string(content), "adiós")

	var cards []map[string]any
	require.NoError(t, json.Unmarshal(content, &cards))
	require.Len(t, cards, 2)
	// Fields that are not flattened are passed through.
	assert.Contains(t, cards[0], "extended_status")

	combined, err := os.ReadFile(filepath.Join(dir, "lingqs_all_20250314_092653.json"))
	require.NoError(t, err)
	assert.Contains(t, string(combined), "bonjour <i>à</i> tous")
	var byLanguage map[string][]map[string]any
	require.NoError(t, json.Unmarshal(combined, &byLanguage))
	assert.Len(t, byLanguage["es"], 2)
	assert.Len(t, byLanguage["fr"], 1)
	assert.NotContains(t, byLanguage, "de")
}

func TestExporter_Export_CombinedJSONKeepsDownloadOrder(t *testing.T) {
	exporter, dir := newTestExporter(t, "json")
	result := testResult(t)
	languages := result.Languages
	result.Languages = []download.LanguageResult{languages[2], languages[0]}

	_, err := exporter.Export(context.Background(), result)
	require.NoError(t, err)

	combined, err := os.ReadFile(filepath.Join(dir, "lingqs_all_20250314_092653.json"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(combined), "{\n  \"fr\": [\n    {\n"), string(combined))
	assert.Less(t, strings.Index(string(combined), `"fr": [`), strings.Index(string(combined), `"es": [`))

	var byLanguage map[string][]map[string]any
	require.NoError(t, json.Unmarshal(combined, &byLanguage))
	assert.Len(t, byLanguage["fr"], 1)
	assert.Len(t, byLanguage["es"], 2)
}

func TestExporter_Export_YAML(t *testing.T) {
	exporter, dir := newTestExporter(t, "yaml")
	_, err := exporter.Export(context.Background(), testResult(t))
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "lingqs_all_20250314_092653.yaml"))
	require.NoError(t, err)
	var rows []LanguageRow
	require.NoError(t, yaml.Unmarshal(content, &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "es", rows[0].Language)
	assert.Equal(t, "hello", rows[0].BestTranslation)
	assert.Equal(t, "fr", rows[2].Language)
}

func TestExporter_Export_PDF(t *testing.T) {
	exporter, dir := newTestExporter(t, "pdf")
	_, err := exporter.Export(context.Background(), testResult(t))
	require.NoError(t, err)

	markdown, err := os.ReadFile(filepath.Join(dir, "lingqs_all_20250314_092653.md"))
	require.NoError(t, err)
	assert.Contains(t, string(markdown), "## es")
	assert.Contains(t, string(markdown), "| adiós | goodbye | 0 |  |")

	pdf, err := os.ReadFile(filepath.Join(dir, "lingqs_es_20250314_092653.pdf"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}

func TestExporter_Export_PDFTemplate(t *testing.T) {
	tmpDir := t.TempDir()
	templatePath := filepath.Join(tmpDir, "terms.md.go.tmpl")
	content := "# {{ .Title }}\n{{ range .Sections }}{{ range .Rows }}- {{ .Term }}\n{{ end }}{{ end }}"
	require.NoError(t, os.WriteFile(templatePath, []byte(content), 0644))

	formats, err := ParseFormats("pdf")
	require.NoError(t, err)
	dir := filepath.Join(tmpDir, "output")
	exporter := NewExporter(Options{Directory: dir, Formats: formats, PDFTemplate: templatePath}, WithClock(func() time.Time { return exportedAt }))

	_, err = exporter.Export(context.Background(), testResult(t))
	require.NoError(t, err)

	markdown, err := os.ReadFile(filepath.Join(dir, "lingqs_es_20250314_092653.md"))
	require.NoError(t, err)
	assert.Equal(t, "# LingQs: es\n- hola\n- adiós\n", string(markdown))
}

func TestExporter_Export_PlainText(t *testing.T) {
	formats, err := ParseFormats("csv")
	require.NoError(t, err)
	dir := t.TempDir()
	exporter := NewExporter(Options{Directory: dir, Formats: formats, PlainText: true}, WithClock(func() time.Time { return exportedAt }))

	_, err = exporter.Export(context.Background(), testResult(t))
	require.NoError(t, err)

	var rows []Row
	content, err := os.ReadFile(filepath.Join(dir, "lingqs_fr_20250314_092653.csv"))
	require.NoError(t, err)
	require.NoError(t, csvutil.Unmarshal(content, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "... bonjour à tous ...", rows[0].Fragment)
}

func TestExporter_Export_NoCards(t *testing.T) {
	exporter, dir := newTestExporter(t, "both")

	got, err := exporter.Export(context.Background(), download.Result{
		Languages: []download.LanguageResult{{Code: "es", Complete: true}},
	})
	require.NoError(t, err)
	assert.Empty(t, got)
	_, err = os.Stat(dir)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestExporter_Export_Sink(t *testing.T) {
	tests := []struct {
		name    string
		sink    *recordingSink
		wantErr func(t *testing.T, err error)
	}{
		{
			name: "writes languages with cards",
			sink: &recordingSink{},
		},
		{
			name: "no sink",
			wantErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNoSink)
			},
		},
		{
			name: "sink error",
			sink: &recordingSink{err: errors.New("connection refused")},
			wantErr: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "connection refused")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.sink != nil {
				opts = append(opts, WithSink(tt.sink))
			}
			exporter, _ := newTestExporter(t, "mysql", opts...)

			got, err := exporter.Export(context.Background(), testResult(t))
			assert.Empty(t, got)
			if tt.wantErr != nil {
				tt.wantErr(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, tt.sink.results, 1)
			assert.Equal(t, []string{"es", "fr"}, tt.sink.results[0].Codes())
		})
	}
}
