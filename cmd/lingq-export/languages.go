package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/lingq-export/internal/cli"
	"github.com/at-ishikawa/lingq-export/internal/config"
	"github.com/at-ishikawa/lingq-export/internal/download"
)

func newLanguagesCommand(apiKey *string) *cobra.Command {
	return &cobra.Command{
		Use:   "languages [languages...]",
		Short: "Show how many LingQs each language has without downloading them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(func(cfg *config.Config) {
				applyAPIKey(cmd, *apiKey, cfg)
			})
			if err != nil {
				return err
			}

			client, err := newLingQClient(cfg, nil)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			downloader := download.NewDownloader(client, downloadOptions(cfg, false))
			counts, err := downloader.CountLanguages(cmd.Context(), args)
			if err != nil {
				return fmt.Errorf("downloader.CountLanguages > %w", err)
			}
			return cli.PrintLanguageCounts(cmd.OutOrStdout(), counts)
		},
	}
}
