package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/avast/retry-go"

	"github.com/at-ishikawa/lingq-export/internal/lingq"
)

const DefaultPageSize = 50

type RateLimit struct {
	// BaseWait and WaitStep give the wait after the n-th consecutive 429: BaseWait + WaitStep*n.
	BaseWait   time.Duration
	WaitStep   time.Duration
	MaxRetries int
	// Backoff is the first delay for server and transport errors, doubled on each retry.
	Backoff time.Duration
}

// PageDelay is the pause before any page numbered lower than Before.
type PageDelay struct {
	Before int
	Delay  time.Duration
}

type Options struct {
	PageSize         int
	RateLimit        RateLimit
	PageDelays       []PageDelay
	DefaultPageDelay time.Duration
	CacheDirectory   string
	Resume           bool
}

// ProgressivePageDelays slows down on long downloads: base before page 10, twice base before page 50, three times after.
func ProgressivePageDelays(base time.Duration) ([]PageDelay, time.Duration) {
	return []PageDelay{
		{Before: 10, Delay: base},
		{Before: 50, Delay: 2 * base},
	}, 3 * base
}

func DefaultOptions() Options {
	pageDelays, defaultPageDelay := ProgressivePageDelays(time.Second)
	return Options{
		PageSize: DefaultPageSize,
		RateLimit: RateLimit{
			BaseWait:   60 * time.Second,
			WaitStep:   30 * time.Second,
			MaxRetries: 5,
			Backoff:    2 * time.Second,
		},
		PageDelays:       pageDelays,
		DefaultPageDelay: defaultPageDelay,
	}
}

// Recorder receives download statistics. *metrics.Recorder implements it.
type Recorder interface {
	RateLimited(language string)
	Retried(language string)
	CardsDownloaded(language string, count int)
	DownloadFinished(language string, elapsed time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) RateLimited(string) {}
func (noopRecorder) Retried(string) {}
func (noopRecorder) CardsDownloaded(string, int) {}
func (noopRecorder) DownloadFinished(string, time.Duration) {}

type Downloader struct {
	api      lingq.API
	options  Options
	cache    *PageCache
	recorder Recorder
}

type Option func(*Downloader)

func WithRecorder(recorder Recorder) Option {
	return func(d *Downloader) {
		if recorder != nil {
			d.recorder = recorder
		}
	}
}

func NewDownloader(api lingq.API, options Options, opts ...Option) *Downloader {
	if options.PageSize <= 0 {
		options.PageSize = DefaultPageSize
	}
	if options.RateLimit.MaxRetries < 0 {
		options.RateLimit.MaxRetries = 0
	}

	downloader := &Downloader{
		api:      api,
		options:  options,
		recorder: noopRecorder{},
	}
	if options.CacheDirectory != "" {
		downloader.cache = NewPageCache(options.CacheDirectory)
	}
	for _, opt := range opts {
		opt(downloader)
	}
	return downloader
}

// Download checks the API key, resolves the languages and downloads them in order.
// The returned error is set only when the whole run has to stop; per-language failures are in the Result.
func (d *Downloader) Download(ctx context.Context, requested []string) (Result, error) {
	if err := d.api.TestConnection(ctx); err != nil {
		return Result{}, fmt.Errorf("api.TestConnection > %w", err)
	}

	languages, err := d.ResolveLanguages(ctx, requested)
	if err != nil {
		return Result{}, fmt.Errorf("ResolveLanguages > %w", err)
	}
	slog.Default().Info("will download LingQs", "languages", languages)

	var result Result
	for _, code := range languages {
		languageResult, err := d.DownloadLanguage(ctx, code)
		result.Languages = append(result.Languages, languageResult)
		if err != nil {
			return result, fmt.Errorf("DownloadLanguage(%s) > %w", code, err)
		}
	}
	return result, nil
}

// DownloadLanguage fetches every page of a language.
// It returns an error only for failures that should stop the whole run: an invalid API key or a cancelled context.
func (d *Downloader) DownloadLanguage(ctx context.Context, code string) (LanguageResult, error) {
	logger := slog.Default().With("language", code)
	startedAt := time.Now()
	result := LanguageResult{
		Code: code,
	}

	if d.cache != nil && !d.options.Resume {
		if err := d.cache.clear(code); err != nil {
			logger.Warn("failed to clear the page cache", "error", err)
		}
	}

	for page := 1; ; page++ {
		cardPage, cached, err := d.fetchPage(ctx, code, page)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			if isFatal(err) {
				return result, err
			}
			result.Err = err
			logger.Warn("stopped downloading",
				"page", page,
				"downloaded", len(result.Cards),
				"error", err,
			)
			break
		}

		result.Pages++
		if len(cardPage.Results) == 0 {
			result.Complete = true
			break
		}
		result.Cards = append(result.Cards, cardPage.Results...)
		d.recorder.CardsDownloaded(code, len(cardPage.Results))
		logger.Info("downloaded a page",
			"page", page,
			"cards", len(cardPage.Results),
			"total", len(result.Cards),
			"count", cardPage.Count,
			"cached", cached,
		)

		if !cardPage.HasNext() {
			result.Complete = true
			break
		}
		if cached {
			continue
		}
		if err := sleep(ctx, d.pageDelay(page+1)); err != nil {
			return result, err
		}
	}

	elapsed := time.Since(startedAt)
	d.recorder.DownloadFinished(code, elapsed)
	logger.Info("finished downloading",
		"cards", len(result.Cards),
		"pages", result.Pages,
		"complete", result.Complete,
		"elapsed", elapsed,
	)
	return result, nil
}

func (d *Downloader) fetchPage(ctx context.Context, code string, page int) (lingq.CardPage, bool, error) {
	fetch := func() (lingq.CardPage, error) {
		return d.fetchPageWithRetry(ctx, code, page)
	}
	if d.cache == nil {
		cardPage, err := fetch()
		return cardPage, false, err
	}

	return d.cache.cache(code, d.options.PageSize, page, fetch)
}

func (d *Downloader) fetchPageWithRetry(ctx context.Context, code string, page int) (lingq.CardPage, error) {
	logger := slog.Default().With("language", code, "page", page)
	rateLimit := d.options.RateLimit

	var cardPage lingq.CardPage
	rateLimited := 0
	err := retry.Do(
		func() error {
			result, err := d.api.ListCards(ctx, code, page, d.options.PageSize)
			if err != nil {
				var rateLimitErr *lingq.RateLimitError
				if errors.As(err, &rateLimitErr) {
					d.recorder.RateLimited(code)
				}
				return err
			}
			cardPage = result
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(rateLimit.MaxRetries)+1),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			d.recorder.Retried(code)

			var rateLimitErr *lingq.RateLimitError
			if errors.As(err, &rateLimitErr) {
				wait := rateLimitWait(rateLimit, rateLimited, rateLimitErr.RetryAfter)
				rateLimited++
				logger.Warn("rate limited, waiting",
					"wait", wait,
					"retry", n+1,
					"max_retries", rateLimit.MaxRetries,
				)
				return wait
			}

			wait := retry.BackOffDelay(n, err, config)
			logger.Warn("request failed, retrying",
				"wait", wait,
				"retry", n+1,
				"max_retries", rateLimit.MaxRetries,
				"error", err,
			)
			return wait
		}),
		retry.Delay(rateLimit.Backoff),
	)
	if err != nil {
		if isRetryable(err) {
			return lingq.CardPage{}, fmt.Errorf("page %d failed after %d retries: %w", page, rateLimit.MaxRetries, err)
		}
		return lingq.CardPage{}, fmt.Errorf("page %d: %w", page, err)
	}
	return cardPage, nil
}

// rateLimitWait returns the wait after the n-th consecutive rate limit, honoring a longer Retry-After.
func rateLimitWait(rateLimit RateLimit, n int, retryAfter time.Duration) time.Duration {
	wait := rateLimit.BaseWait + rateLimit.WaitStep*time.Duration(n)
	if retryAfter > wait {
		return retryAfter
	}
	return wait
}

func (d *Downloader) pageDelay(page int) time.Duration {
	for _, delay := range d.options.PageDelays {
		if page < delay.Before {
			return delay.Delay
		}
	}
	return d.options.DefaultPageDelay
}

func isRetryable(err error) bool {
	if isFatal(err) {
		return false
	}

	var rateLimitErr *lingq.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}
	var statusErr *lingq.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func isFatal(err error) bool {
	return errors.Is(err, lingq.ErrUnauthorized) || errors.Is(err, context.Canceled)
}

func sleep(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
