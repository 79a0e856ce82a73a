package testutil

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupTestConfig(t *testing.T) {
	tmpDir := t.TempDir()
	got := SetupTestConfig(t, tmpDir, "http://127.0.0.1:1234")

	want := filepath.Join(tmpDir, "config.yml")
	assert.Equal(t, want, got)

	content, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Contains(t, string(content), "base_url: http://127.0.0.1:1234")
	assert.Contains(t, string(content), "page_delay: 0s")

	for _, d := range []string{"output", "cache"} {
		info, err := os.Stat(filepath.Join(tmpDir, d))
		require.NoError(t, err, "directory %s should exist", d)
		assert.True(t, info.IsDir(), "%s should be a directory", d)
	}
}

func TestListFiles(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "b.csv"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "a.json"), nil, 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "nested"), 0755))

	assert.Equal(t, []string{"a.json", "b.csv"}, ListFiles(t, tmpDir))
}

func TestFakeLingQ(t *testing.T) {
	fake := NewFakeLingQ(t, "secret")
	fake.AddCards("es", NewCard(1, "hola"), NewCard(2, "adiós"), NewCard(3, "gracias"))

	get := func(t *testing.T, path, token string) (*http.Response, map[string]any) {
		t.Helper()
		req, err := http.NewRequest(http.MethodGet, fake.URL()+path, nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Token "+token)
		res, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer res.Body.Close()

		var body map[string]any
		_ = json.NewDecoder(res.Body).Decode(&body)
		return res, body
	}

	t.Run("rejects a wrong token", func(t *testing.T) {
		res, _ := get(t, "/languages/", "wrong")
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	})

	t.Run("paginates cards", func(t *testing.T) {
		res, body := get(t, "/es/cards/?page=1&page_size=2", "secret")
		require.Equal(t, http.StatusOK, res.StatusCode)
		assert.EqualValues(t, 3, body["count"])
		assert.Len(t, body["results"], 2)
		assert.NotNil(t, body["next"])

		res, body = get(t, "/es/cards/?page=2&page_size=2", "secret")
		require.Equal(t, http.StatusOK, res.StatusCode)
		assert.Len(t, body["results"], 1)
		assert.Nil(t, body["next"])
	})

	t.Run("rate limits a page a fixed number of times", func(t *testing.T) {
		fake.RateLimit("es", 1, 1)
		fake.SetRetryAfter("3")

		res, _ := get(t, "/es/cards/?page=1&page_size=2", "secret")
		assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)
		assert.Equal(t, "3", res.Header.Get("Retry-After"))

		res, _ = get(t, "/es/cards/?page=1&page_size=2", "secret")
		assert.Equal(t, http.StatusOK, res.StatusCode)
	})

	t.Run("records requested pages", func(t *testing.T) {
		assert.Equal(t, []int{1, 2, 1, 1}, fake.CardRequests("es"))
		assert.Empty(t, fake.CardRequests("fr"))
	})
}
