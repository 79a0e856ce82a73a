//go:build integration

package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/at-ishikawa/lingq-export/internal/config"
	"github.com/at-ishikawa/lingq-export/internal/lingq"
)

func startMySQL(t *testing.T) config.DatabaseConfig {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := tcmysql.Run(ctx, "mysql:8.0",
		tcmysql.WithDatabase("lingq"),
		tcmysql.WithUsername("user"),
		tcmysql.WithPassword("password"),
	)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate the container: %v", err)
		}
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	return config.DatabaseConfig{
		Host:     host,
		Port:     port.Int(),
		Database: "lingq",
		Username: "user",
		Password: "password",
	}
}

func TestCardSink_Integration(t *testing.T) {
	ctx := context.Background()
	db, err := Connect(ctx, startMySQL(t))
	require.NoError(t, err)
	defer db.Close()

	sink := NewCardSink(db, WithBatchSize(2))
	require.NoError(t, sink.EnsureSchema(ctx))
	// The schema is created only once.
	require.NoError(t, sink.EnsureSchema(ctx))

	result := sinkResult()
	require.NoError(t, sink.Write(ctx, result))

	// Writing again updates the existing rows.
	result.Languages[0].Cards[0] = lingq.Card{
		PK:    1,
		Term:  "hola",
		Hints: []lingq.Hint{{Text: "hi", Locale: "en", Popularity: 9}},
		Raw:   []byte(`{"pk":1,"term":"hola","status":2}`),
	}
	require.NoError(t, sink.Write(ctx, result))

	var count int
	require.NoError(t, db.GetContext(ctx, &count, "SELECT COUNT(*) FROM lingqs"))
	assert.Equal(t, 3, count)

	var got struct {
		Language        string `db:"language"`
		Term            string `db:"term"`
		BestTranslation string `db:"best_translation"`
		Raw             string `db:"raw"`
	}
	require.NoError(t, db.GetContext(ctx, &got,
		"SELECT language, term, best_translation, raw FROM lingqs WHERE language = ? AND id = ?", "es", 1))
	assert.Equal(t, "es", got.Language)
	assert.Equal(t, "hola", got.Term)
	assert.Equal(t, "hi", got.BestTranslation)
	assert.JSONEq(t, `{"pk":1,"term":"hola","status":2}`, got.Raw)
}
