// Package export flattens downloaded cards and writes them as CSV, JSON, YAML, Markdown/PDF files or database rows.
package export

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/at-ishikawa/lingq-export/internal/lingq"
)

// Row is a card flattened for tabular output. Field order is the column order.
type Row struct {
	ID                  int64  `csv:"id" json:"id" yaml:"id" db:"id"`
	Term                string `csv:"term" json:"term" yaml:"term" db:"term"`
	Fragment            string `csv:"fragment" json:"fragment" yaml:"fragment" db:"fragment"`
	BestTranslation     string `csv:"best_translation" json:"best_translation" yaml:"best_translation" db:"best_translation"`
	TranslationLocale   string `csv:"translation_locale" json:"translation_locale" yaml:"translation_locale" db:"translation_locale"`
	AllTranslations     string `csv:"all_translations" json:"all_translations" yaml:"all_translations" db:"all_translations"`
	Importance          int    `csv:"importance" json:"importance" yaml:"importance" db:"importance"`
	Status              int    `csv:"status" json:"status" yaml:"status" db:"status"`
	Notes               string `csv:"notes" json:"notes" yaml:"notes" db:"notes"`
	Tags                string `csv:"tags" json:"tags" yaml:"tags" db:"tags"`
	SRSDueDate          string `csv:"srs_due_date" json:"srs_due_date" yaml:"srs_due_date" db:"srs_due_date"`
	LastReviewedCorrect string `csv:"last_reviewed_correct" json:"last_reviewed_correct" yaml:"last_reviewed_correct" db:"last_reviewed_correct"`
	Words               string `csv:"words" json:"words" yaml:"words" db:"words"`
	Audio               string `csv:"audio" json:"audio" yaml:"audio" db:"audio"`
	URL                 string `csv:"url" json:"url" yaml:"url" db:"url"`
}

// LanguageRow is a Row of a combined output, with the language as the first column.
type LanguageRow struct {
	Language string `csv:"language" json:"language" yaml:"language" db:"language"`
	Row      `yaml:",inline"`
}

type FlattenOptions struct {
	// PlainText reduces HTML in notes and fragments to its text.
	PlainText bool
}

func Flatten(card lingq.Card) Row {
	return FlattenWith(card, FlattenOptions{})
}

func FlattenWith(card lingq.Card, options FlattenOptions) Row {
	row := Row{
		ID:                  card.PK,
		Term:                card.Term,
		Fragment:            card.Fragment,
		Importance:          card.Importance,
		Status:              card.Status,
		Notes:               card.Notes,
		Tags:                strings.Join(card.Tags, ", "),
		SRSDueDate:          card.SRSDueDate,
		LastReviewedCorrect: card.LastReviewedCorrect,
		Words:               strings.Join(card.Words, ", "),
		Audio:               card.Audio,
		URL:                 card.URL,
	}

	if best, ok := bestHint(card.Hints); ok {
		row.BestTranslation = best.Text
		row.TranslationLocale = best.Locale
	}
	translations := make([]string, 0, len(card.Hints))
	for _, hint := range card.Hints {
		translations = append(translations, fmt.Sprintf("%s (%s)", hint.Text, hint.Locale))
	}
	row.AllTranslations = strings.Join(translations, " | ")

	if options.PlainText {
		row.Notes = plainText(row.Notes)
		row.Fragment = plainText(row.Fragment)
	}
	return row
}

func FlattenAll(cards []lingq.Card, options FlattenOptions) []Row {
	rows := make([]Row, 0, len(cards))
	for _, card := range cards {
		rows = append(rows, FlattenWith(card, options))
	}
	return rows
}

// bestHint returns the most popular hint. Ties keep the API order.
func bestHint(hints []lingq.Hint) (lingq.Hint, bool) {
	if len(hints) == 0 {
		return lingq.Hint{}, false
	}
	sorted := append([]lingq.Hint(nil), hints...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Popularity > sorted[j].Popularity
	})
	return sorted[0], true
}

var (
	whitespacePattern = regexp.MustCompile(`\s+`)

	lineBreakingElements = map[atom.Atom]bool{
		atom.Br:  true,
		atom.P:   true,
		atom.Div: true,
		atom.Li:  true,
	}
)

func plainText(value string) string {
	if !strings.ContainsAny(value, "<&") {
		return strings.TrimSpace(whitespacePattern.ReplaceAllString(value, " "))
	}

	nodes, err := html.ParseFragment(strings.NewReader(value), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return value
	}

	var text strings.Builder
	for _, node := range nodes {
		text.WriteString(getNodeText(node))
		if node.Type == html.ElementNode && lineBreakingElements[node.DataAtom] {
			text.WriteString(" ")
		}
	}
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text.String(), " "))
}

func getNodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var result strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		result.WriteString(getNodeText(c))
		if c.Type == html.ElementNode && lineBreakingElements[c.DataAtom] {
			result.WriteString(" ")
		}
	}
	return result.String()
}
