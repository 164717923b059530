package admin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adaptivenexus/scandoq-chatboat/internal/domain"
)

func TestLoadHistory(t *testing.T) {
	t.Run("empty path means no history", func(t *testing.T) {
		history, err := loadHistory("")
		require.NoError(t, err)
		assert.Nil(t, history)
	})

	t.Run("maps roles and drops unknown ones", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "history.json")
		require.NoError(t, os.WriteFile(path, []byte(`[
			{"role":"user","content":"hi"},
			{"role":"bot","content":"Hello! How can I help you today?"},
			{"role":"system","content":"ignored"}
		]`), 0o600))

		history, err := loadHistory(path)

		require.NoError(t, err)
		assert.Equal(t, []domain.ChatTurn{
			{Role: domain.RoleUser, Content: "hi"},
			{Role: domain.RoleAssistant, Content: "Hello! How can I help you today?"},
		}, history)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "history.json")
		require.NoError(t, os.WriteFile(path, []byte(`{`), 0o600))

		_, err := loadHistory(path)

		assert.Error(t, err)
	})
}

func TestCommands_Flags(t *testing.T) {
	ask := AskCmd()
	require.NotNil(t, ask.Flags().Lookup("owner"))
	assert.Error(t, ask.Args(ask, nil))

	ingest := IngestCmd()
	assert.Error(t, ingest.Args(ingest, nil))
	assert.NoError(t, ingest.Args(ingest, []string{"doc-1"}))

	serve := ServeCmd()
	assert.NotNil(t, serve.Flags().Lookup("no-migrate"))
	assert.NotNil(t, serve.Flags().Lookup("no-worker"))
}
