package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/lingq-export/internal/cli"
	"github.com/at-ishikawa/lingq-export/internal/config"
	"github.com/at-ishikawa/lingq-export/internal/database"
	"github.com/at-ishikawa/lingq-export/internal/download"
	"github.com/at-ishikawa/lingq-export/internal/export"
	"github.com/at-ishikawa/lingq-export/internal/metrics"
)

type downloadFlags struct {
	languages       []string
	formats         *export.FormatSet
	outputDir       string
	pageSize        int
	resume          bool
	plainText       bool
	metricsTextfile string
}

func newDownloadCommand(apiKey *string) *cobra.Command {
	flags := downloadFlags{
		formats: export.DefaultFormats(),
	}

	command := &cobra.Command{
		Use:   "lingq-export [languages...]",
		Short: "Download your LingQs and export them as CSV, JSON and more",
		Long: `Download every saved LingQ of your account through the LingQ API and export them.
Languages can be given as arguments or with --languages; all languages of the account are used otherwise.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(func(cfg *config.Config) {
				applyAPIKey(cmd, *apiKey, cfg)
				flags.apply(cmd, cfg)
			})
			if err != nil {
				return err
			}

			requested := append(append([]string{}, flags.languages...), args...)
			return runDownload(cmd, cfg, requested, flags.resume)
		},
	}

	command.Flags().StringSliceVar(&flags.languages, "languages", nil, "language codes to download, e.g. es,fr (default all languages)")
	command.Flags().Var(flags.formats, "format", "export formats: csv, json, both, yaml, pdf, mysql")
	command.Flags().StringVar(&flags.outputDir, "output-dir", "", "output directory (default from config, or the current directory)")
	command.Flags().IntVar(&flags.pageSize, "page-size", download.DefaultPageSize, "number of LingQs per request")
	command.Flags().BoolVar(&flags.resume, "resume", false, "reuse pages cached by an interrupted run")
	command.Flags().BoolVar(&flags.plainText, "plain-text", false, "strip HTML from notes and fragments")
	command.Flags().StringVar(&flags.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file")
	return command
}

// apply overrides config values with the flags given on the command line.
func (flags downloadFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("format") {
		cfg.Outputs.Formats = nil
		for _, format := range flags.formats.Formats() {
			cfg.Outputs.Formats = append(cfg.Outputs.Formats, string(format))
		}
	}
	if cmd.Flags().Changed("output-dir") {
		cfg.Outputs.Directory = flags.outputDir
	}
	if cmd.Flags().Changed("page-size") {
		cfg.LingQ.PageSize = flags.pageSize
	}
	if cmd.Flags().Changed("plain-text") {
		cfg.Outputs.PlainText = flags.plainText
	}
	if cmd.Flags().Changed("metrics-textfile") {
		cfg.Metrics.Textfile = flags.metricsTextfile
	}
}

func runDownload(cmd *cobra.Command, cfg *config.Config, requested []string, resume bool) error {
	ctx := cmd.Context()
	formats, err := export.ParseFormats(cfg.Outputs.Formats...)
	if err != nil {
		return fmt.Errorf("export.ParseFormats > %w", err)
	}
	if formats.Len() == 0 {
		formats = export.DefaultFormats()
	}

	recorder := metrics.NewRecorder()
	client, err := newLingQClient(cfg, recorder)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exporterOptions := []export.Option{}
	if formats.Has(export.FormatMySQL) {
		sink, closeDB, err := newCardSink(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeDB()
		exporterOptions = append(exporterOptions, export.WithSink(sink))
	}
	exporter := export.NewExporter(export.Options{
		Directory:   cfg.Outputs.Directory,
		Formats:     formats,
		PlainText:   cfg.Outputs.PlainText,
		PDFTemplate: cfg.Outputs.PDFTemplate,
	}, exporterOptions...)

	downloader := download.NewDownloader(client, downloadOptions(cfg, resume), download.WithRecorder(recorder))
	result, downloadErr := downloader.Download(ctx, requested)
	if downloadErr != nil && result.TotalCards() == 0 {
		return fmt.Errorf("downloader.Download > %w", downloadErr)
	}

	// Whatever was downloaded is saved, even when the run was interrupted.
	paths, exportErr := exporter.Export(context.WithoutCancel(ctx), result)
	if err := cli.PrintSummary(cmd.OutOrStdout(), result, paths); err != nil {
		return err
	}
	if cfg.Metrics.Textfile != "" {
		if err := recorder.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			slog.Default().Warn("failed to write metrics", "error", err)
		}
	}

	if downloadErr != nil {
		return fmt.Errorf("downloader.Download > %w", downloadErr)
	}
	if exportErr != nil {
		return fmt.Errorf("exporter.Export > %w", exportErr)
	}
	return result.Err()
}

func newCardSink(ctx context.Context, cfg *config.Config) (*database.CardSink, func(), error) {
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("database.Connect > %w", err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			slog.Default().Warn("failed to close the database", "error", err)
		}
	}

	sink := database.NewCardSink(db, database.WithFlattenOptions(export.FlattenOptions{
		PlainText: cfg.Outputs.PlainText,
	}))
	if err := sink.EnsureSchema(ctx); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("sink.EnsureSchema > %w", err)
	}
	return sink, closeDB, nil
}
