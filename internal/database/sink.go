package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/at-ishikawa/lingq-export/internal/download"
	"github.com/at-ishikawa/lingq-export/internal/export"
)

const (
	cardsTable = "lingqs"

	defaultBatchSize = 500
)

// rowColumns follow the column order of export.Row.
var rowColumns = []string{
	"id",
	"term",
	"fragment",
	"best_translation",
	"translation_locale",
	"all_translations",
	"importance",
	"status",
	"notes",
	"tags",
	"srs_due_date",
	"last_reviewed_correct",
	"words",
	"audio",
	"url",
}

const createCardsTable = `CREATE TABLE IF NOT EXISTS lingqs (
	language VARCHAR(16) NOT NULL,
	id BIGINT NOT NULL,
	term VARCHAR(512) NOT NULL,
	fragment TEXT NOT NULL,
	best_translation TEXT NOT NULL,
	translation_locale VARCHAR(16) NOT NULL,
	all_translations TEXT NOT NULL,
	importance INT NOT NULL,
	status INT NOT NULL,
	notes TEXT NOT NULL,
	tags TEXT NOT NULL,
	srs_due_date VARCHAR(32) NOT NULL,
	last_reviewed_correct VARCHAR(32) NOT NULL,
	words TEXT NOT NULL,
	audio VARCHAR(1024) NOT NULL,
	url VARCHAR(1024) NOT NULL,
	raw JSON NOT NULL,
	exported_at DATETIME NOT NULL,
	PRIMARY KEY (language, id)
) DEFAULT CHARSET=utf8mb4`

// CardSink upserts downloaded cards into the lingqs table.
type CardSink struct {
	db        *sqlx.DB
	batchSize int
	now       func() time.Time
	options   export.FlattenOptions
}

var _ export.Sink = (*CardSink)(nil)

type SinkOption func(*CardSink)

func WithBatchSize(size int) SinkOption {
	return func(s *CardSink) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

func WithClock(now func() time.Time) SinkOption {
	return func(s *CardSink) {
		s.now = now
	}
}

func WithFlattenOptions(options export.FlattenOptions) SinkOption {
	return func(s *CardSink) {
		s.options = options
	}
}

func NewCardSink(db *sqlx.DB, opts ...SinkOption) *CardSink {
	sink := &CardSink{
		db:        db,
		batchSize: defaultBatchSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(sink)
	}
	return sink
}

// EnsureSchema creates the lingqs table when it does not exist.
func (s *CardSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createCardsTable); err != nil {
		return fmt.Errorf("db.ExecContext(create %s) > %w", cardsTable, err)
	}
	return nil
}

// Write upserts every card of the result in a single transaction.
func (s *CardSink) Write(ctx context.Context, result download.Result) error {
	exportedAt := s.now().UTC().Truncate(time.Second)

	var rows []export.LanguageRow
	var raws [][]byte
	for _, language := range result.Languages {
		for _, card := range language.Cards {
			raw, err := json.Marshal(card)
			if err != nil {
				return fmt.Errorf("json.Marshal(card %d) > %w", card.PK, err)
			}
			rows = append(rows, export.LanguageRow{
				Language: language.Code,
				Row:      export.FlattenWith(card, s.options),
			})
			raws = append(raws, raw)
		}
	}
	if len(rows) == 0 {
		return nil
	}

	err := RunInTx(ctx, s.db, func(ctx context.Context, tx *sqlx.Tx) error {
		for start := 0; start < len(rows); start += s.batchSize {
			end := min(start+s.batchSize, len(rows))
			query, args, err := upsertQuery(rows[start:end], raws[start:end], exportedAt)
			if err != nil {
				return fmt.Errorf("upsertQuery > %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("tx.ExecContext(upsert %s) > %w", cardsTable, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Default().Info("upserted LingQs", "table", cardsTable, "cards", len(rows))
	return nil
}

func upsertQuery(rows []export.LanguageRow, raws [][]byte, exportedAt time.Time) (string, []any, error) {
	columns := append([]string{"language"}, rowColumns...)
	columns = append(columns, "raw", "exported_at")

	builder := squirrel.Insert(cardsTable).Columns(columns...)
	for i, row := range rows {
		builder = builder.Values(
			row.Language,
			row.ID,
			row.Term,
			row.Fragment,
			row.BestTranslation,
			row.TranslationLocale,
			row.AllTranslations,
			row.Importance,
			row.Status,
			row.Notes,
			row.Tags,
			row.SRSDueDate,
			row.LastReviewedCorrect,
			row.Words,
			row.Audio,
			row.URL,
			string(raws[i]),
			exportedAt,
		)
	}

	updates := make([]string, 0, len(columns)-2)
	for _, column := range columns {
		if column == "language" || column == "id" {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = VALUES(%s)", column, column))
	}
	return builder.Suffix("ON DUPLICATE KEY UPDATE " + strings.Join(updates, ", ")).ToSql()
}
