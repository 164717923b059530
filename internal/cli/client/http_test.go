package client

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressReader_ReportsProgress(t *testing.T) {
	data := []byte("hello world this is test data")
	reader := bytes.NewReader(data)

	var progressCalls []struct{ current, total int64 }
	pr := &progressReader{
		reader: reader,
		total:  int64(len(data)),
		onProgress: func(current, total int64) {
			progressCalls = append(progressCalls, struct{ current, total int64 }{current, total})
		},
	}

	result, err := io.ReadAll(pr)
	require.NoError(t, err)
	assert.Equal(t, data, result)

	// Progress should have been called at least once
	assert.NotEmpty(t, progressCalls)

	// Final progress should equal total
	lastCall := progressCalls[len(progressCalls)-1]
	assert.Equal(t, int64(len(data)), lastCall.current)
	assert.Equal(t, int64(len(data)), lastCall.total)
}

func TestProgressReader_NilCallback(t *testing.T) {
	data := []byte("hello world")
	reader := bytes.NewReader(data)

	pr := &progressReader{
		reader:     reader,
		total:      int64(len(data)),
		onProgress: nil, // No callback
	}

	result, err := io.ReadAll(pr)
	require.NoError(t, err)
	assert.Equal(t, data, result)
}

func TestProgressReader_SmallReads(t *testing.T) {
	data := []byte("hello world")
	reader := bytes.NewReader(data)

	var progressValues []int64
	pr := &progressReader{
		reader: reader,
		total:  int64(len(data)),
		onProgress: func(current, total int64) {
			progressValues = append(progressValues, current)
		},
	}

	// Read one byte at a time
	buf := make([]byte, 1)
	for {
		n, err := pr.Read(buf)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}

	// Progress should increase monotonically
	for i := 1; i < len(progressValues); i++ {
		assert.GreaterOrEqual(t, progressValues[i], progressValues[i-1])
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *APIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	api, err := NewAPIClientWithConfig("user-42", srv.URL)
	require.NoError(t, err)
	return api
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
}

func TestAPIClient_SendsOwnerHeader(t *testing.T) {
	api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "user-42", r.Header.Get("X-Owner-ID"))
		assert.Equal(t, "/documents/abc", r.URL.Path)
		writeData(w, http.StatusOK, map[string]string{"id": "abc"})
	})

	resp, err := api.Get("/documents/abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"abc"}`, string(resp.Data))
}

func TestAPIClient_PostEncodesJSON(t *testing.T) {
	api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body.Query)
		writeData(w, http.StatusOK, map[string]string{"content": "hi"})
	})

	_, err := api.Post("/chat", ChatRequest{Query: "hello"})
	require.NoError(t, err)
}

func TestAPIClient_ParsesErrors(t *testing.T) {
	api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"document is being processed","code":"IN_PROGRESS"}`))
	})

	_, err := api.Post("/documents/abc/process", nil)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "IN_PROGRESS", apiErr.Code)
	assert.Equal(t, "document is being processed", apiErr.Message)
}

func TestAPIClient_NonJSONError(t *testing.T) {
	api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	_, err := api.Get("/documents")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "bad gateway")
}

func TestAPIClient_NoContent(t *testing.T) {
	api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	})

	resp, err := api.Delete("/documents/abc")
	require.NoError(t, err)
	assert.Empty(t, resp.Data)
}

func TestAPIClient_UploadFile(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("some notes"), 0600))

	api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "user-42", r.Header.Get("X-Owner-ID"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "My notes", r.FormValue("title"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "notes.txt", header.Filename)

		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "some notes", string(data))

		writeData(w, http.StatusCreated, map[string]string{"id": "doc-1"})
	})

	var last int64
	resp, err := api.UploadFile("/documents", filePath, "My notes", func(current, total int64) {
		last = current
		assert.Equal(t, int64(len("some notes")), total)
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"doc-1"}`, string(resp.Data))
	assert.Equal(t, int64(len("some notes")), last)
}

func TestAPIClient_UploadFile_MissingFile(t *testing.T) {
	api, err := NewAPIClientWithConfig("user-42", "http://127.0.0.1:0")
	require.NoError(t, err)

	_, err = api.UploadFile("/documents", filepath.Join(t.TempDir(), "missing.pdf"), "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open file")
}

func TestAPIClient_DownloadFile(t *testing.T) {
	api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/documents/abc/content", r.URL.Path)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("file body"))
	})

	outputPath := filepath.Join(t.TempDir(), "out.txt")
	require.NoError(t, api.DownloadFileWithProgress("/documents/abc/content", outputPath, nil))

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, "file body", string(data))
}

func TestAPIClient_DownloadFile_NotFound(t *testing.T) {
	api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"document not found","code":"NOT_FOUND"}`))
	})

	err := api.DownloadFileWithProgress("/documents/abc/content", filepath.Join(t.TempDir(), "out"), nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
}
