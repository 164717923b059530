//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adaptivenexus/scandoq-chatboat/internal/api/handlers"
	"github.com/adaptivenexus/scandoq-chatboat/internal/database"
	"github.com/adaptivenexus/scandoq-chatboat/internal/domain"
	"github.com/adaptivenexus/scandoq-chatboat/internal/openai"
	"github.com/adaptivenexus/scandoq-chatboat/internal/repository"
	"github.com/adaptivenexus/scandoq-chatboat/internal/server"
	"github.com/adaptivenexus/scandoq-chatboat/internal/service"
	"github.com/adaptivenexus/scandoq-chatboat/internal/storage"
	"github.com/adaptivenexus/scandoq-chatboat/internal/testutil"
)

const embeddingDims = 768

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	Pipeline     *service.Pipeline
	ServerURL    string
	ServerCloser func()
	BinaryDir    string
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with containers and server
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.RustFSCredential,
		SecretAccessKey: testutil.RustFSCredential,
		Bucket:          "test-documents",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	env := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		RustFSC:    s3C,
		Pool:       pool,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	env.ServerURL, env.ServerCloser = env.startServer(s3Client, port)

	return env
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pipeline != nil {
		e.Pipeline.Wait()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// BuildBinaries builds the scandoq CLI
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "scandoq-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, "scandoq"), "./cmd/scandoq")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build scandoq: %v\n%s", err, out)
	}
}

// RunScandoq runs the scandoq CLI as owner
func (e *E2ETestEnv) RunScandoq(owner string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "scandoq"), args...)
	cmd.Dir = e.T.TempDir()
	cmd.Env = append(os.Environ(),
		"SCANDOQ_OWNER_ID="+owner,
		"SCANDOQ_API_URL="+e.ServerURL,
		"XDG_CONFIG_HOME="+cmd.Dir,
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse represents a standard API response
type APIResponse struct {
	StatusCode int
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error,omitempty"`
	Code       string          `json:"code,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path, owner string) *APIResponse {
	return e.doRequest(http.MethodGet, path, nil, "", owner)
}

// Post performs a POST request with a JSON body
func (e *E2ETestEnv) Post(path string, body interface{}, owner string) *APIResponse {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			e.T.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	return e.doRequest(http.MethodPost, path, reader, "application/json", owner)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path, owner string) *APIResponse {
	return e.doRequest(http.MethodDelete, path, nil, "", owner)
}

// Upload posts a multipart document upload
func (e *E2ETestEnv) Upload(filename, title string, content []byte, owner string) *APIResponse {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if title != "" {
		_ = mw.WriteField("title", title)
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		e.T.Fatalf("failed to create form file: %v", err)
	}
	_, _ = part.Write(content)
	_ = mw.Close()

	return e.doRequest(http.MethodPost, "/documents", &buf, mw.FormDataContentType(), owner)
}

// Download fetches a document's stored file
func (e *E2ETestEnv) Download(id, owner string) (int, []byte) {
	req, err := http.NewRequest(http.MethodGet, e.ServerURL+"/documents/"+id+"/content", nil)
	if err != nil {
		e.T.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("X-Owner-ID", owner)

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		e.T.Fatalf("download failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		e.T.Fatalf("failed to read body: %v", err)
	}
	return resp.StatusCode, body
}

func (e *E2ETestEnv) doRequest(method, path string, body io.Reader, contentType, owner string) *APIResponse {
	req, err := http.NewRequest(method, e.ServerURL+path, body)
	if err != nil {
		e.T.Fatalf("failed to create request: %v", err)
	}
	if owner != "" {
		req.Header.Set("X-Owner-ID", owner)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		e.T.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		e.T.Fatalf("failed to read body: %v", err)
	}

	apiResp := &APIResponse{}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, apiResp); err != nil {
			e.T.Fatalf("%s %s: unexpected body %q", method, path, respBody)
		}
	}
	apiResp.StatusCode = resp.StatusCode
	return apiResp
}

// ChunkCount returns the stored chunks of a document
func (e *E2ETestEnv) ChunkCount(documentID string) int {
	var n int
	err := e.Pool.QueryRow(e.Ctx, `SELECT COUNT(*) FROM document_chunks WHERE document_id = $1`, documentID).Scan(&n)
	if err != nil {
		e.T.Fatalf("failed to count chunks: %v", err)
	}
	return n
}

func (e *E2ETestEnv) startServer(files service.FileStore, port int) (string, func()) {
	documents := repository.NewDocumentRepository(e.Pool)
	store := repository.NewDocumentChunkRepository(e.Pool)
	embeddings := service.NewEmbeddingService(hashEmbedder{}, service.EmbeddingOptions{Timeout: 5 * time.Second})

	e.Pipeline = service.NewPipeline(service.PipelineDeps{
		Documents: documents,
		Files:     files,
		Extractor: service.NewExtractionService(nil, 10*time.Second),
		Chunker:   service.NewChunker(service.DefaultChunkConfig()),
		Embedder:  embeddings,
		Store:     store,
		Locker:    repository.NewAdvisoryLocker(e.Pool),
		Retriever: service.NewRetrievalService(embeddings, store, 5, 5*time.Second),
		Generator: service.NewGenerationService(&scriptedChat{}, 10*time.Second),
	}, service.PipelineConfig{
		EmbedConcurrency: 4,
		StoreTimeout:     5 * time.Second,
		TopK:             5,
	})

	documentSvc := service.NewDocumentService(documents, repository.NewTxRunner(e.Pool), files, e.Pipeline)

	router := server.NewRouter(server.RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(documentSvc),
		ChatHandler:     handlers.NewChatHandler(e.Pipeline),
		HealthHandler:   handlers.NewHealthHandler(database.NewChecker(e.Pool)),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.T.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(e.T, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

// hashEmbedder maps words onto a fixed-size bag-of-words vector so that
// texts sharing words land close together.
type hashEmbedder struct{}

func (hashEmbedder) Embed(_ context.Context, text string, _ domain.EmbeddingIntent) ([]float32, error) {
	vec := make([]float32, embeddingDims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?\"'()")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[h.Sum32()%embeddingDims]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

// scriptedChat answers with the first context line and cites every title
// that appears in the prompt.
type scriptedChat struct{}

func (*scriptedChat) Chat(_ context.Context, req openai.ChatRequest) (string, error) {
	var titles []string
	for _, line := range strings.Split(req.Prompt, "\n") {
		if title, ok := strings.CutPrefix(line, "Document: "); ok {
			titles = append(titles, strings.TrimSpace(title))
		}
	}
	if len(titles) == 0 {
		return "I could not find that in your documents.\nUSED_SOURCES: NONE", nil
	}
	return "According to your documents, the lease ends in May.\nUSED_SOURCES: " + strings.Join(titles, ", "), nil
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
