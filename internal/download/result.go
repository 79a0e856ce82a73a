package download

import (
	"errors"
	"fmt"
	"strings"

	"github.com/at-ishikawa/lingq-export/internal/lingq"
)

var (
	ErrNoLanguages = errors.New("no LingQs found in any language; specify language codes with --languages")
	ErrIncomplete  = errors.New("incomplete downloads")
)

// LanguageResult holds the cards downloaded for one language.
// Complete is false when downloading stopped early; Cards then holds the pages fetched before Err.
type LanguageResult struct {
	Code     string
	Cards    []lingq.Card
	Pages    int
	Complete bool
	Err      error
}

type Result struct {
	Languages []LanguageResult
}

func (r Result) TotalCards() int {
	total := 0
	for _, language := range r.Languages {
		total += len(language.Cards)
	}
	return total
}

// Codes returns the languages with at least one card.
func (r Result) Codes() []string {
	codes := make([]string, 0, len(r.Languages))
	for _, language := range r.Languages {
		if len(language.Cards) > 0 {
			codes = append(codes, language.Code)
		}
	}
	return codes
}

func (r Result) Incomplete() []string {
	var codes []string
	for _, language := range r.Languages {
		if !language.Complete {
			codes = append(codes, language.Code)
		}
	}
	return codes
}

// Err returns an error wrapping ErrIncomplete when any language did not finish.
func (r Result) Err() error {
	incomplete := r.Incomplete()
	if len(incomplete) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrIncomplete, strings.Join(incomplete, ", "))
}
