package assets

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRow struct {
	Term            string
	BestTranslation string
	Status          int
	Tags            string
}

type testSection struct {
	Language string
	Rows     []testRow
}

type testList struct {
	Title    string
	Sections []testSection
}

func TestParseVocabularyTemplate(t *testing.T) {
	singleLanguage := testList{
		Title: "LingQs: es",
		Sections: []testSection{
			{Language: "es", Rows: []testRow{
				{Term: "hola", BestTranslation: "hello", Status: 1, Tags: "greeting"},
				{Term: "a|b", BestTranslation: "line\nbreak", Status: 3},
			}},
		},
	}

	tests := []struct {
		name         string
		templatePath string
		data         any

		wantTemplateName string
		wantContents     string
	}{
		{
			name: "uses filesystem template when available",
			templatePath: func(t *testing.T) string {
				templatePath := filepath.Join(t.TempDir(), "custom.md.go.tmpl")
				content := `{{ range .Sections }}{{ .Language }}={{ len .Rows }}{{ end }}`
				require.NoError(t, os.WriteFile(templatePath, []byte(content), 0644))
				return templatePath
			}(t),
			data:             singleLanguage,
			wantTemplateName: "custom.md.go.tmpl",
			wantContents:     "es=2",
		},
		{
			name:             "uses embedded template when file doesn't exist",
			templatePath:     "/non/existent/vocabulary.md.go.tmpl",
			data:             singleLanguage,
			wantTemplateName: "vocabulary.md.go.tmpl",
			wantContents: "# LingQs: es\n\n2 LingQs\n\n" +
				"| Term | Translation | Status | Tags |\n" +
				"|------|-------------|--------|------|\n" +
				"| hola | hello | 1 | greeting |\n" +
				"| a\\|b | line break | 3 |  |\n\n",
		},
		{
			name: "uses embedded template when filesystem template is invalid",
			templatePath: func(t *testing.T) string {
				templatePath := filepath.Join(t.TempDir(), "invalid.md.go.tmpl")
				require.NoError(t, os.WriteFile(templatePath, []byte(`Bad: {{ .Unclosed`), 0644))
				return templatePath
			}(t),
			data: testList{
				Title: "LingQs",
				Sections: []testSection{
					{Language: "es", Rows: []testRow{{Term: "hola", BestTranslation: "hello"}}},
					{Language: "fr", Rows: []testRow{{Term: "bonjour", BestTranslation: "hello"}}},
				},
			},
			wantTemplateName: "vocabulary.md.go.tmpl",
			wantContents: "# LingQs\n\n" +
				"## es\n\n1 LingQs\n\n" +
				"| Term | Translation | Status | Tags |\n" +
				"|------|-------------|--------|------|\n" +
				"| hola | hello | 0 |  |\n\n" +
				"## fr\n\n1 LingQs\n\n" +
				"| Term | Translation | Status | Tags |\n" +
				"|------|-------------|--------|------|\n" +
				"| bonjour | hello | 0 |  |\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := ParseVocabularyTemplate(tt.templatePath)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTemplateName, tmpl.Name())

			var buf bytes.Buffer
			require.NoError(t, tmpl.Execute(&buf, tt.data))
			assert.Equal(t, tt.wantContents, buf.String())
		})
	}
}

func TestTableCell(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{value: "plain", want: "plain"},
		{value: "a|b", want: `a\|b`},
		{value: "two\r\nlines", want: "two lines"},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, TableCell(tt.value))
		})
	}
}
