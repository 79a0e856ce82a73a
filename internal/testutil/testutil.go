// Package testutil provides shared test helpers: config fixtures and a fake LingQ API server.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// SetupTestConfig creates a config file pointing at baseURL, with output and cache
// directories under tmpDir and waits short enough for tests.
// Returns the path to the generated config file.
func SetupTestConfig(t *testing.T, tmpDir, baseURL string) string {
	t.Helper()

	for _, d := range []string{"output", "cache"} {
		require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, d), 0755))
	}

	configContent := fmt.Sprintf(`lingq:
  base_url: %s
  page_size: 2
  timeout: 5s
rate_limit:
  base_wait: 1ms
  wait_step: 1ms
  max_retries: 2
  backoff: 1ms
  page_delay: 0s
outputs:
  directory: %s
cache:
  directory: %s
`,
		baseURL,
		filepath.Join(tmpDir, "output"),
		filepath.Join(tmpDir, "cache"),
	)

	cfgPath := filepath.Join(tmpDir, "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(configContent), 0644))
	return cfgPath
}

// ListFiles returns the names of the regular files in dir, sorted.
func ListFiles(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	return names
}
