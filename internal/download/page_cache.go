package download

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/at-ishikawa/lingq-export/internal/lingq"
)

// PageCache stores fetched card pages on disk so an interrupted download can resume.
// Pages live in {root}/{language}/size-{pageSize}/page-{n}.json.
type PageCache struct {
	rootDir string
}

func NewPageCache(cacheDirectory string) *PageCache {
	return &PageCache{
		rootDir: cacheDirectory,
	}
}

func (cache *PageCache) languageDir(language string) string {
	return filepath.Join(cache.rootDir, language)
}

func (cache *PageCache) filePath(language string, pageSize, page int) string {
	return filepath.Join(cache.languageDir(language), fmt.Sprintf("size-%d", pageSize), fmt.Sprintf("page-%d.json", page))
}

// cache returns the stored page when there is one, and otherwise calls fetch and stores its result.
func (cache *PageCache) cache(language string, pageSize, page int, fetch func() (lingq.CardPage, error)) (lingq.CardPage, bool, error) {
	cached, ok, err := cache.read(language, pageSize, page)
	if err != nil {
		return lingq.CardPage{}, false, fmt.Errorf("cache.read > %w", err)
	}
	if ok {
		return cached, true, nil
	}

	fetched, err := fetch()
	if err != nil {
		return lingq.CardPage{}, false, err
	}
	if err := cache.write(language, pageSize, page, fetched); err != nil {
		// A page that cannot be stored is still usable.
		slog.Default().Warn("failed to cache a page", "language", language, "page", page, "error", err)
	}
	return fetched, false, nil
}

func (cache *PageCache) read(language string, pageSize, page int) (lingq.CardPage, bool, error) {
	contents, err := os.ReadFile(cache.filePath(language, pageSize, page))
	if errors.Is(err, fs.ErrNotExist) {
		return lingq.CardPage{}, false, nil
	}
	if err != nil {
		return lingq.CardPage{}, false, fmt.Errorf("os.ReadFile > %w", err)
	}

	var cardPage lingq.CardPage
	if err := json.Unmarshal(contents, &cardPage); err != nil {
		// A page cut short by an interrupted run is fetched again.
		slog.Default().Warn("discarding a broken cached page",
			"language", language,
			"page", page,
			"error", err,
		)
		if err := os.Remove(cache.filePath(language, pageSize, page)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return lingq.CardPage{}, false, fmt.Errorf("os.Remove > %w", err)
		}
		return lingq.CardPage{}, false, nil
	}
	return cardPage, true, nil
}

func (cache *PageCache) write(language string, pageSize, page int, cardPage lingq.CardPage) error {
	localFilePath := cache.filePath(language, pageSize, page)
	if err := os.MkdirAll(filepath.Dir(localFilePath), 0755); err != nil {
		return fmt.Errorf("os.MkdirAll > %w", err)
	}

	contents, err := json.Marshal(cardPage)
	if err != nil {
		return fmt.Errorf("json.Marshal > %w", err)
	}
	return writeFileAtomically(localFilePath, contents)
}

// writeFileAtomically writes to a temporary file in the same directory and renames it into place.
func writeFileAtomically(path string, contents []byte) error {
	file, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("os.CreateTemp > %w", err)
	}
	tmpPath := file.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := file.Write(contents); err != nil {
		_ = file.Close()
		return fmt.Errorf("file.Write > %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("file.Close > %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("os.Chmod > %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("os.Rename > %w", err)
	}
	return nil
}

// clear removes every cached page of a language.
func (cache *PageCache) clear(language string) error {
	if err := os.RemoveAll(cache.languageDir(language)); err != nil {
		return fmt.Errorf("os.RemoveAll > %w", err)
	}
	return nil
}
