//go:build e2e

package e2e

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const leaseText = `Residential lease agreement.

The tenant rents the apartment on Main Street for twelve months. The lease ends in May next year and renews only with written notice.

The deposit equals two months of rent and is returned within thirty days after the lease ends.`

type documentData struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	Processed  bool   `json:"processed"`
	ChunkCount int    `json:"chunk_count"`
	LastError  string `json:"last_error"`
}

type chatData struct {
	Content   string `json:"content"`
	Documents []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"documents"`
}

func uploadDocument(t *testing.T, env *E2ETestEnv, owner, filename, title string, content []byte) documentData {
	t.Helper()
	resp := env.Upload(filename, title, content, owner)
	require.Equal(t, http.StatusCreated, resp.StatusCode, resp.Error)

	var doc documentData
	require.NoError(t, json.Unmarshal(resp.Data, &doc))
	return doc
}

func TestE2E_DocumentLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	const owner = "owner-a"
	doc := uploadDocument(t, env, owner, "lease.txt", "Lease", []byte(leaseText))
	assert.Equal(t, "Lease", doc.Title)
	assert.Equal(t, "uploaded", doc.Status)
	assert.False(t, doc.Processed)

	t.Run("process", func(t *testing.T) {
		resp := env.Post("/documents/"+doc.ID+"/process", nil, owner)
		require.Equal(t, http.StatusOK, resp.StatusCode, resp.Error)

		var result struct {
			Status      string `json:"status"`
			ChunksCount int    `json:"chunks_count"`
			Partial     bool   `json:"partial"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		assert.Equal(t, "processed", result.Status)
		assert.Greater(t, result.ChunksCount, 0)
		assert.False(t, result.Partial)
		assert.Equal(t, result.ChunksCount, env.ChunkCount(doc.ID))
	})

	t.Run("reprocess replaces chunks", func(t *testing.T) {
		before := env.ChunkCount(doc.ID)
		resp := env.Post("/documents/"+doc.ID+"/process", nil, owner)
		require.Equal(t, http.StatusOK, resp.StatusCode, resp.Error)
		assert.Equal(t, before, env.ChunkCount(doc.ID))
	})

	t.Run("get and list", func(t *testing.T) {
		resp := env.Get("/documents/"+doc.ID, owner)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got documentData
		require.NoError(t, json.Unmarshal(resp.Data, &got))
		assert.True(t, got.Processed)
		assert.Equal(t, "processed", got.Status)
		assert.Greater(t, got.ChunkCount, 0)

		resp = env.Get("/documents", owner)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var page struct {
			Items []documentData `json:"items"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &page))
		require.Len(t, page.Items, 1)
		assert.Equal(t, doc.ID, page.Items[0].ID)
	})

	t.Run("download content", func(t *testing.T) {
		status, body := env.Download(doc.ID, owner)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, leaseText, string(body))
	})

	t.Run("chat cites the document", func(t *testing.T) {
		resp := env.Post("/chat", map[string]interface{}{
			"history": []map[string]string{},
			"query":   "When does the lease end?",
		}, owner)
		require.Equal(t, http.StatusOK, resp.StatusCode, resp.Error)

		var answer chatData
		require.NoError(t, json.Unmarshal(resp.Data, &answer))
		assert.Contains(t, answer.Content, "May")
		assert.NotContains(t, answer.Content, "USED_SOURCES")
		require.Len(t, answer.Documents, 1)
		assert.Equal(t, doc.ID, answer.Documents[0].ID)
		assert.Equal(t, "Lease", answer.Documents[0].Title)
	})

	t.Run("delete", func(t *testing.T) {
		resp := env.Delete("/documents/"+doc.ID, owner)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = env.Get("/documents/"+doc.ID, owner)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", resp.Code)

		env.Pipeline.Wait()
		assert.Equal(t, 0, env.ChunkCount(doc.ID))
	})
}

func TestE2E_OwnerIsolation(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	doc := uploadDocument(t, env, "owner-a", "lease.txt", "Lease", []byte(leaseText))
	resp := env.Post("/documents/"+doc.ID+"/process", nil, "owner-a")
	require.Equal(t, http.StatusOK, resp.StatusCode, resp.Error)

	t.Run("other owner cannot read", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, env.Get("/documents/"+doc.ID, "owner-b").StatusCode)
		assert.Equal(t, http.StatusNotFound, env.Post("/documents/"+doc.ID+"/process", nil, "owner-b").StatusCode)
		assert.Equal(t, http.StatusNotFound, env.Delete("/documents/"+doc.ID, "owner-b").StatusCode)

		status, _ := env.Download(doc.ID, "owner-b")
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("other owner gets no sources", func(t *testing.T) {
		resp := env.Post("/chat", map[string]string{"query": "When does the lease end?"}, "owner-b")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var answer chatData
		require.NoError(t, json.Unmarshal(resp.Data, &answer))
		assert.Empty(t, answer.Documents)
	})

	t.Run("missing owner header", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, env.Get("/documents", "").StatusCode)
	})
}

func TestE2E_IngestionFailures(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	const owner = "owner-a"

	t.Run("binary content fails at processing", func(t *testing.T) {
		doc := uploadDocument(t, env, owner, "archive.zip", "", []byte("PK\x03\x04\xff\xfe\x14\x00"))

		resp := env.Post("/documents/"+doc.ID+"/process", nil, owner)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "UNSUPPORTED_FORMAT", resp.Code)
	})

	t.Run("blank text fails and records the reason", func(t *testing.T) {
		doc := uploadDocument(t, env, owner, "blank.txt", "", []byte("   \n\n  "))

		resp := env.Post("/documents/"+doc.ID+"/process", nil, owner)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "EMPTY_DOCUMENT", resp.Code)

		resp = env.Get("/documents/"+doc.ID, owner)
		var got documentData
		require.NoError(t, json.Unmarshal(resp.Data, &got))
		assert.Equal(t, "failed", got.Status)
		assert.NotEmpty(t, got.LastError)
		assert.Equal(t, 0, env.ChunkCount(doc.ID))
	})
}

func TestE2E_CLI(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.BuildBinaries()

	const owner = "cli-owner"

	filePath := filepath.Join(t.TempDir(), "lease.txt")
	require.NoError(t, os.WriteFile(filePath, []byte(leaseText), 0600))

	out, err := env.RunScandoq(owner, "upload", filePath, "--title", "Lease", "--process", "--output")
	require.NoError(t, err, out)

	var uploaded struct {
		Document documentData `json:"document"`
		Process  struct {
			Status string `json:"status"`
		} `json:"process"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &uploaded), out)
	assert.Equal(t, "processed", uploaded.Process.Status)

	out, err = env.RunScandoq(owner, "docs")
	require.NoError(t, err, out)
	assert.Contains(t, out, uploaded.Document.ID)
	assert.Contains(t, out, "Lease")

	out, err = env.RunScandoq(owner, "ask", "When", "does", "the", "lease", "end?")
	require.NoError(t, err, out)
	assert.Contains(t, out, "May")
	assert.Contains(t, out, "Sources:")

	out, err = env.RunScandoq(owner, "rm", uploaded.Document.ID)
	require.NoError(t, err, out)
	assert.True(t, strings.HasPrefix(out, "Deleted"))

	out, err = env.RunScandoq("", "docs")
	assert.Error(t, err)
	assert.Contains(t, out, "SCANDOQ_OWNER_ID")
}
