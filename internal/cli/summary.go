package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/at-ishikawa/lingq-export/internal/download"
)

// printer keeps the first write error so a report can be written without checking every line.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	if _, err := fmt.Fprintf(p.w, format, args...); err != nil {
		p.err = fmt.Errorf("failed to write to stdout: %w", err)
	}
}

func (p *printer) colorf(c *color.Color, format string, args ...any) {
	if p.err != nil {
		return
	}
	if _, err := c.Fprintf(p.w, format, args...); err != nil {
		p.err = fmt.Errorf("failed to write to stdout: %w", err)
	}
}

// PrintSummary displays the downloaded LingQs per language, the written files and how to retry incomplete languages.
func PrintSummary(w io.Writer, result download.Result, paths []string) error {
	p := &printer{w: w}
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	p.printf("\n")
	p.colorf(bold, "Download Summary\n")
	p.printf("================\n\n")
	p.printf("%-10s  %-8s  %-6s  %s\n", "Language", "LingQs", "Pages", "Status")
	p.printf("%-10s  %-8s  %-6s  %s\n", "--------", "------", "-----", "------")
	for _, language := range result.Languages {
		p.printf("%-10s  %-8d  %-6d  ", language.Code, len(language.Cards), language.Pages)
		if language.Complete {
			p.colorf(green, "complete\n")
			continue
		}
		status := "incomplete"
		if language.Err != nil {
			status += ": " + language.Err.Error()
		}
		p.colorf(yellow, "%s\n", status)
	}

	p.printf("\n")
	p.colorf(bold, "Total: %d LingQs in %d languages\n", result.TotalCards(), len(result.Codes()))

	if len(paths) > 0 {
		p.printf("\nSaved files:\n")
		for _, path := range paths {
			p.printf("  %s\n", path)
		}
	}

	if incomplete := result.Incomplete(); len(incomplete) > 0 {
		p.printf("\n")
		p.colorf(yellow, "⚠️  Incomplete downloads for: %s\n", strings.Join(incomplete, ", "))
		p.printf("   You can retry with: --languages %s --resume\n", strings.Join(incomplete, ","))
	}
	return p.err
}

// PrintLanguageCounts displays the number of LingQs in each language.
func PrintLanguageCounts(w io.Writer, counts []download.LanguageCount) error {
	p := &printer{w: w}
	p.printf("%-10s  %s\n", "Language", "LingQs")
	p.printf("%-10s  %s\n", "--------", "------")
	total := 0
	for _, count := range counts {
		p.printf("%-10s  %d\n", count.Code, count.Count)
		total += count.Count
	}
	p.printf("\n")
	p.colorf(color.New(color.Bold), "%-10s  %d\n", "Total:", total)
	return p.err
}
