package export

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatPDF   Format = "pdf"
	FormatMySQL Format = "mysql"

	// formatBoth is accepted as an alias of csv,json.
	formatBoth = "both"
)

var knownFormats = []Format{FormatCSV, FormatJSON, FormatYAML, FormatPDF, FormatMySQL}

// FormatSet is an ordered set of formats. It implements pflag.Value, so --format can be
// comma separated or repeated; the first value given on the command line replaces the default.
type FormatSet struct {
	formats []Format
	changed bool
}

var _ pflag.Value = (*FormatSet)(nil)

func DefaultFormats() *FormatSet {
	return &FormatSet{
		formats: []Format{FormatCSV, FormatJSON},
	}
}

// ParseFormats builds a FormatSet from values like "csv", "json,yaml" or "both".
func ParseFormats(values ...string) (*FormatSet, error) {
	set := &FormatSet{}
	for _, value := range values {
		if err := set.add(value); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func (s *FormatSet) add(value string) error {
	for _, name := range strings.Split(value, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if name == formatBoth {
			s.append(FormatCSV)
			s.append(FormatJSON)
			continue
		}

		format := Format(name)
		if !isKnownFormat(format) {
			return fmt.Errorf("unknown format %q, must be one of csv, json, both, yaml, pdf, mysql", name)
		}
		s.append(format)
	}
	return nil
}

func (s *FormatSet) append(format Format) {
	if s.Has(format) {
		return
	}
	s.formats = append(s.formats, format)
}

func isKnownFormat(format Format) bool {
	for _, known := range knownFormats {
		if known == format {
			return true
		}
	}
	return false
}

func (s *FormatSet) Has(format Format) bool {
	if s == nil {
		return false
	}
	for _, f := range s.formats {
		if f == format {
			return true
		}
	}
	return false
}

func (s *FormatSet) Formats() []Format {
	if s == nil {
		return nil
	}
	return append([]Format(nil), s.formats...)
}

func (s *FormatSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.formats)
}

func (s *FormatSet) String() string {
	if s == nil {
		return ""
	}
	names := make([]string, 0, len(s.formats))
	for _, format := range s.formats {
		names = append(names, string(format))
	}
	return strings.Join(names, ",")
}

func (s *FormatSet) Set(value string) error {
	if !s.changed {
		s.formats = nil
		s.changed = true
	}
	return s.add(value)
}

func (s *FormatSet) Type() string {
	return "formats"
}
