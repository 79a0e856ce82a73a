package main

import (
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/at-ishikawa/lingq-export/internal/lingq"
	"github.com/at-ishikawa/lingq-export/internal/testutil"
)

func TestNewLanguagesCommand(t *testing.T) {
	apiKey := ""
	cmd := newLanguagesCommand(&apiKey)

	assert.Equal(t, "languages [languages...]", cmd.Use)
	assert.NotNil(t, cmd.RunE)
}

func TestLanguagesCommand(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr error
	}{
		{
			name: "all languages of the account",
			args: []string{"--api-key", "secret"},
			want: "es          3\nfr          1\n\nTotal:      4\n",
		},
		{
			name: "given languages",
			args: []string{"--api-key", "secret", "fr"},
			want: "fr          1\n\nTotal:      1\n",
		},
		{
			name:    "invalid API key",
			args:    []string{"--api-key", "wrong"},
			wantErr: lingq.ErrUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := testutil.NewFakeLingQ(t, "secret")
			fake.SetContexts("es", "fr")
			fake.AddCards("es", testutil.NewCard(1, "hola"), testutil.NewCard(2, "adiós"), testutil.NewCard(3, "gato"))
			fake.AddCards("fr", testutil.NewCard(4, "bonjour"))
			configPath := testutil.SetupTestConfig(t, t.TempDir(), fake.URL())

			args := append([]string{"languages", "--config", configPath}, tt.args...)
			got, err := runCommand(t, args...)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, got, tt.want)
			assert.Empty(t, fake.CardRequests("de"))
		})
	}
}
