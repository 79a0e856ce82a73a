package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/lingq-export/internal/config"
	"github.com/at-ishikawa/lingq-export/internal/download"
	"github.com/at-ishikawa/lingq-export/internal/lingq"
	"github.com/at-ishikawa/lingq-export/internal/metrics"
)

var errMissingAPIKey = errors.New("a LingQ API key is required: pass --api-key or set LINGQ_API_KEY")

// loadConfig loads the config file, lets apply override values from command line flags, and validates the result.
func loadConfig(apply func(cfg *config.Config)) (*config.Config, error) {
	loader, err := config.NewConfigLoader(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create config loader: %w", err)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if apply == nil {
		return cfg, nil
	}

	apply(cfg)
	if err := loader.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyAPIKey(cmd *cobra.Command, apiKey string, cfg *config.Config) {
	if cmd.Flags().Changed("api-key") {
		cfg.LingQ.APIKey = apiKey
	}
}

func newLingQClient(cfg *config.Config, recorder *metrics.Recorder) (*lingq.Client, error) {
	if cfg.LingQ.APIKey == "" {
		return nil, errMissingAPIKey
	}
	return lingq.NewClient(lingq.Config{
		BaseURL: cfg.LingQ.BaseURL,
		APIKey:  cfg.LingQ.APIKey,
		Timeout: cfg.LingQ.Timeout,
	}, lingq.WithObserver(recorder)), nil
}

func downloadOptions(cfg *config.Config, resume bool) download.Options {
	pageDelays, defaultPageDelay := download.ProgressivePageDelays(cfg.RateLimit.PageDelay)
	return download.Options{
		PageSize: cfg.LingQ.PageSize,
		RateLimit: download.RateLimit{
			BaseWait:   cfg.RateLimit.BaseWait,
			WaitStep:   cfg.RateLimit.WaitStep,
			MaxRetries: cfg.RateLimit.MaxRetries,
			Backoff:    cfg.RateLimit.Backoff,
		},
		PageDelays:       pageDelays,
		DefaultPageDelay: defaultPageDelay,
		CacheDirectory:   cfg.Cache.Directory,
		Resume:           resume,
	}
}
