package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// FakeLingQ is an in-memory LingQ API serving /languages/, /contexts/ and /{language}/cards/.
type FakeLingQ struct {
	server *httptest.Server
	apiKey string

	mu         sync.Mutex
	cards      map[string][]map[string]any
	contexts   []string
	rateLimits map[string]int
	failures   map[string]int
	retryAfter string
	requests   []string
}

// NewFakeLingQ starts a server that accepts "Authorization: Token <apiKey>". It is closed on test cleanup.
func NewFakeLingQ(t *testing.T, apiKey string) *FakeLingQ {
	t.Helper()

	fake := &FakeLingQ{
		apiKey:     apiKey,
		cards:      make(map[string][]map[string]any),
		rateLimits: make(map[string]int),
		failures:   make(map[string]int),
	}
	fake.server = httptest.NewServer(http.HandlerFunc(fake.handle))
	t.Cleanup(fake.server.Close)
	return fake
}

func (f *FakeLingQ) URL() string {
	return f.server.URL
}

// AddCards appends cards to a language. Use NewCard to build them.
func (f *FakeLingQ) AddCards(language string, cards ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cards[language] = append(f.cards[language], cards...)
}

// SetContexts sets the languages returned by /contexts/, referenced by language URL.
func (f *FakeLingQ) SetContexts(languages ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contexts = languages
}

// RateLimit makes the next `times` requests for the page answer 429.
func (f *FakeLingQ) RateLimit(language string, page, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rateLimits[pageKey(language, page)] = times
}

// SetRetryAfter sets the Retry-After header sent with 429 responses.
func (f *FakeLingQ) SetRetryAfter(value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retryAfter = value
}

// Fail makes every request for the page answer statusCode.
func (f *FakeLingQ) Fail(language string, page, statusCode int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[pageKey(language, page)] = statusCode
}

// Requests returns the request paths with their query, in order.
func (f *FakeLingQ) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

// CardRequests returns the requested page numbers of a language, in order.
func (f *FakeLingQ) CardRequests(language string) []int {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := "/" + language + "/cards/"
	var pages []int
	for _, request := range f.requests {
		path, query, _ := strings.Cut(request, "?")
		if path != prefix {
			continue
		}
		for _, param := range strings.Split(query, "&") {
			if value, ok := strings.CutPrefix(param, "page="); ok {
				page, _ := strconv.Atoi(value)
				pages = append(pages, page)
			}
		}
	}
	return pages
}

// NewCard builds a card payload the way the LingQ API returns it.
func NewCard(pk int64, term string, hints ...map[string]any) map[string]any {
	if hints == nil {
		hints = []map[string]any{}
	}
	return map[string]any{
		"pk":                    pk,
		"url":                   fmt.Sprintf("https://www.lingq.com/api/v2/cards/%d/", pk),
		"term":                  term,
		"fragment":              "... " + term + " ...",
		"importance":            1,
		"status":                0,
		"extended_status":       nil,
		"notes":                 "",
		"audio":                 nil,
		"tags":                  []string{},
		"hints":                 hints,
		"words":                 []string{term},
		"srs_due_date":          "2025-01-01T00:00:00",
		"last_reviewed_correct": nil,
	}
}

func NewHint(text, locale string, popularity int) map[string]any {
	return map[string]any{
		"text":       text,
		"locale":     locale,
		"popularity": popularity,
	}
}

func pageKey(language string, page int) string {
	return fmt.Sprintf("%s/%d", language, page)
}

func (f *FakeLingQ) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.URL.RequestURI())
	f.mu.Unlock()

	if r.Header.Get("Authorization") != "Token "+f.apiKey {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid token."})
		return
	}

	switch {
	case r.URL.Path == "/languages/":
		f.handleLanguages(w)
	case r.URL.Path == "/contexts/":
		f.handleContexts(w)
	case strings.HasSuffix(r.URL.Path, "/cards/"):
		language := strings.Trim(strings.TrimSuffix(r.URL.Path, "/cards/"), "/")
		f.handleCards(w, r, language)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
	}
}

func languageURL(code string) string {
	return "https://www.lingq.com/api/v2/languages/" + code + "/"
}

func (f *FakeLingQ) handleLanguages(w http.ResponseWriter) {
	f.mu.Lock()
	defer f.mu.Unlock()

	codes := make(map[string]bool)
	for _, code := range f.contexts {
		codes[code] = true
	}
	for code := range f.cards {
		codes[code] = true
	}
	languages := make([]map[string]string, 0, len(codes))
	for code := range codes {
		languages = append(languages, map[string]string{
			"url":   languageURL(code),
			"code":  code,
			"title": strings.ToUpper(code),
		})
	}
	writeJSON(w, http.StatusOK, languages)
}

func (f *FakeLingQ) handleContexts(w http.ResponseWriter) {
	f.mu.Lock()
	defer f.mu.Unlock()

	results := make([]map[string]any, 0, len(f.contexts))
	for i, code := range f.contexts {
		results = append(results, map[string]any{
			"pk":       i + 1,
			"url":      fmt.Sprintf("https://www.lingq.com/api/v2/contexts/%d/", i+1),
			"language": languageURL(code),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(results),
		"results": results,
	})
}

func (f *FakeLingQ) handleCards(w http.ResponseWriter, r *http.Request, language string) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(r.URL.Query().Get("page_size"))
	if err != nil || pageSize < 1 {
		pageSize = 25
	}

	f.mu.Lock()
	key := pageKey(language, page)
	if remaining := f.rateLimits[key]; remaining > 0 {
		f.rateLimits[key] = remaining - 1
		retryAfter := f.retryAfter
		f.mu.Unlock()
		if retryAfter != "" {
			w.Header().Set("Retry-After", retryAfter)
		}
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"detail": "Request was throttled."})
		return
	}
	if statusCode, ok := f.failures[key]; ok {
		f.mu.Unlock()
		writeJSON(w, statusCode, map[string]string{"detail": http.StatusText(statusCode)})
		return
	}
	cards := f.cards[language]
	f.mu.Unlock()

	start := (page - 1) * pageSize
	if start > len(cards) {
		start = len(cards)
	}
	end := start + pageSize
	if end > len(cards) {
		end = len(cards)
	}

	results := cards[start:end]
	if results == nil {
		results = []map[string]any{}
	}

	var next, previous any
	if end < len(cards) {
		next = fmt.Sprintf("%s/%s/cards/?page=%d&page_size=%d", f.server.URL, language, page+1, pageSize)
	}
	if page > 1 {
		previous = fmt.Sprintf("%s/%s/cards/?page=%d&page_size=%d", f.server.URL, language, page-1, pageSize)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(cards),
		"next":     next,
		"previous": previous,
		"results":  results,
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
