// Package lingq provides a client for the LingQ v2 REST API and its wire types.
package lingq

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Card is a saved vocabulary item ("LingQ").
// Raw keeps the exact JSON the API returned so exports can pass through fields this package does not model.
type Card struct {
	PK                  int64    `json:"pk"`
	URL                 string   `json:"url"`
	Term                string   `json:"term"`
	Fragment            string   `json:"fragment"`
	Importance          int      `json:"importance"`
	Status              int      `json:"status"`
	Notes               string   `json:"notes"`
	Audio               string   `json:"audio"`
	Tags                []string `json:"tags"`
	Hints               []Hint   `json:"hints"`
	Words               []string `json:"words"`
	SRSDueDate          string   `json:"srs_due_date"`
	LastReviewedCorrect string   `json:"last_reviewed_correct"`

	Raw json.RawMessage `json:"-"`
}

type Hint struct {
	Text       string `json:"text"`
	Locale     string `json:"locale"`
	Popularity int    `json:"popularity"`
}

// UnmarshalJSON keeps the payload in Raw and decodes the known fields leniently.
// A field of an unexpected type is left empty instead of failing the whole page.
func (c *Card) UnmarshalJSON(data []byte) error {
	*c = Card{
		Raw: append(json.RawMessage(nil), data...),
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return fmt.Errorf("json.Unmarshal > %w", err)
		}
		// Valid JSON that is not an object, e.g. null.
		return nil
	}

	c.PK = int64Field(fields["pk"])
	c.URL = stringField(fields["url"])
	c.Term = stringField(fields["term"])
	c.Fragment = stringField(fields["fragment"])
	c.Importance = int(int64Field(fields["importance"]))
	c.Status = int(int64Field(fields["status"]))
	c.Notes = stringField(fields["notes"])
	c.Audio = stringField(fields["audio"])
	c.Tags = stringsField(fields["tags"])
	c.Hints = hintsField(fields["hints"])
	c.Words = stringsField(fields["words"])
	c.SRSDueDate = stringField(fields["srs_due_date"])
	c.LastReviewedCorrect = stringField(fields["last_reviewed_correct"])
	return nil
}

// stringField returns strings as they are and other scalars in their JSON text. null, objects and arrays are "".
func stringField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case float64, bool:
		return string(raw)
	default:
		return ""
	}
}

// int64Field accepts integers, integral floats and numeric strings. Anything else is 0.
func int64Field(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err != nil {
		return 0
	}
	if value, err := number.Int64(); err == nil {
		return value
	}
	if value, err := number.Float64(); err == nil && value == math.Trunc(value) {
		return int64(value)
	}
	return 0
}

// stringsField accepts an array of scalars or a single string.
func stringsField(raw json.RawMessage) []string {
	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil {
		if value := stringField(raw); value != "" {
			return []string{value}
		}
		return nil
	}
	values := make([]string, 0, len(elements))
	for _, element := range elements {
		if value := stringField(element); value != "" {
			values = append(values, value)
		}
	}
	return values
}

func hintsField(raw json.RawMessage) []Hint {
	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil
	}
	hints := make([]Hint, 0, len(elements))
	for _, element := range elements {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(element, &fields); err != nil {
			continue
		}
		hints = append(hints, Hint{
			Text:       stringField(fields["text"]),
			Locale:     stringField(fields["locale"]),
			Popularity: int(int64Field(fields["popularity"])),
		})
	}
	return hints
}

// MarshalJSON writes the original payload when there is one.
func (c Card) MarshalJSON() ([]byte, error) {
	if len(c.Raw) > 0 {
		return c.Raw, nil
	}
	type plain Card
	return json.Marshal(plain(c))
}

// CardPage is one page of GET /{language}/cards/.
type CardPage struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []Card  `json:"results"`
}

func (p CardPage) HasNext() bool {
	return p.Next != nil && *p.Next != ""
}

type Language struct {
	URL   string `json:"url"`
	Code  string `json:"code"`
	Title string `json:"title"`
}

// Context is a language the user is studying.
type Context struct {
	PK       int64       `json:"pk"`
	URL      string      `json:"url"`
	Language LanguageRef `json:"language"`
}

// LanguageRef is either a language URL or an embedded language object depending on the endpoint version.
type LanguageRef struct {
	URL  string
	Code string
}

func (l *LanguageRef) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		if err := json.Unmarshal(data, &l.URL); err != nil {
			return fmt.Errorf("json.Unmarshal > %w", err)
		}
		return nil
	}

	var language Language
	if err := json.Unmarshal(data, &language); err != nil {
		return fmt.Errorf("json.Unmarshal > %w", err)
	}
	l.URL = language.URL
	l.Code = language.Code
	return nil
}

type contextsResponse struct {
	Count   int       `json:"count"`
	Results []Context `json:"results"`
}
