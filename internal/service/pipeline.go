package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/adaptivenexus/scandoq-chatboat/internal/domain"
	"github.com/adaptivenexus/scandoq-chatboat/internal/telemetry"
)

// MaxDocumentBytes caps how much of a stored file is read for ingestion.
const MaxDocumentBytes = 50 << 20

// FileStore holds the raw bytes of uploaded documents.
type FileStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// PipelineDocumentRepository is the document state the pipeline reads and advances.
type PipelineDocumentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	MarkProcessed(ctx context.Context, id string, chunkCount int) error
	MarkFailed(ctx context.Context, id string, reason string) error
}

// TextExtractor turns raw bytes into text
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, format domain.Format) (string, error)
}

// DocumentEmbedder embeds chunk texts
type DocumentEmbedder interface {
	Available() bool
	Embed(ctx context.Context, text string, intent domain.EmbeddingIntent) ([]float32, error)
}

// Retriever finds context for a question
type Retriever interface {
	Retrieve(ctx context.Context, query, ownerID string, k int) ([]domain.RetrievedChunk, error)
}

// Generator produces an answer with citations
type Generator interface {
	Generate(ctx context.Context, history []domain.ChatTurn, query string, chunks []domain.RetrievedChunk) domain.Answer
}

// PipelineDeps are the collaborators of a Pipeline.
type PipelineDeps struct {
	Documents PipelineDocumentRepository
	Files     FileStore
	Extractor TextExtractor
	Chunker   *Chunker
	Embedder  DocumentEmbedder
	Store     VectorStore
	Locker    Locker
	Retriever Retriever
	Generator Generator
}

// PipelineConfig tunes ingestion and answering.
type PipelineConfig struct {
	EmbedConcurrency int
	StoreTimeout     time.Duration
	TopK             int
}

// Pipeline ingests documents into the vector store and answers questions
// grounded in them.
type Pipeline struct {
	deps PipelineDeps
	cfg  PipelineConfig

	// pending tracks asynchronous vector cleanups.
	pending sync.WaitGroup
}

func NewPipeline(deps PipelineDeps, cfg PipelineConfig) *Pipeline {
	if cfg.EmbedConcurrency <= 0 {
		cfg.EmbedConcurrency = 1
	}
	if deps.Chunker == nil {
		deps.Chunker = NewChunker(DefaultChunkConfig())
	}
	if deps.Locker == nil {
		deps.Locker = NewKeyedLocker()
	}
	return &Pipeline{deps: deps, cfg: cfg}
}

// Ingest extracts, chunks, embeds and stores a document, then marks it
// processed. On failure the document stays unprocessed and the reason is
// recorded. Chunks whose embedding is unavailable are skipped, which is
// reported through IngestResult.ChunkCount rather than as an error.
func (p *Pipeline) Ingest(ctx context.Context, documentID string) (result *domain.IngestResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "Pipeline.Ingest", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "ingest",
	})
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("pipeline: ingest %s panicked: %v", documentID, r)
			result = nil
			err = domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "ingestion failed", fmt.Errorf("panic: %v", r))
			p.recordFailure(ctx, documentID, err)
		}
		if err != nil && domain.IsRetryable(err) && !errors.Is(err, domain.ErrIngestionInProgress) {
			span.SetError(err)
		}
	}()

	unlock, ok, err := p.deps.Locker.TryLock(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire ingestion lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrIngestionInProgress
	}
	defer unlock()

	result, err = p.ingest(ctx, documentID)
	if err != nil {
		if !errors.Is(err, domain.ErrDocumentNotFound) {
			p.recordFailure(ctx, documentID, err)
		}
		return nil, err
	}

	log.Printf("pipeline: ingested document %s (%d/%d chunks)", documentID, result.ChunkCount, result.TotalChunks)
	if result.Partial() {
		telemetry.CaptureMessage(ctx, fmt.Sprintf("document %s stored %d of %d chunks", documentID, result.ChunkCount, result.TotalChunks))
	}
	return result, nil
}

func (p *Pipeline) ingest(ctx context.Context, documentID string) (*domain.IngestResult, error) {
	if p.deps.Embedder == nil || !p.deps.Embedder.Available() {
		return nil, domain.ErrCredentialMissing
	}

	doc, err := p.deps.Documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	data, err := p.readFile(ctx, doc.StorageKey)
	if err != nil {
		return nil, err
	}
	telemetry.AddBreadcrumb(ctx, "ingest", fmt.Sprintf("read %d bytes", len(data)))

	text, err := p.deps.Extractor.Extract(ctx, data, doc.Format())
	if err != nil {
		return nil, err
	}

	chunks := p.deps.Chunker.Split(text)
	if len(chunks) == 0 {
		return nil, domain.ErrEmptyDocument
	}
	telemetry.AddBreadcrumb(ctx, "ingest", fmt.Sprintf("split into %d chunks", len(chunks)))

	// An outage that leaves no chunk embedded still replaces the old set and
	// reports zero stored chunks.
	records, err := p.embedChunks(ctx, doc, chunks)
	if err != nil {
		return nil, err
	}

	storeCtx, cancel := withTimeout(ctx, p.cfg.StoreTimeout)
	defer cancel()
	if err := p.deps.Store.ReplaceDocument(storeCtx, doc.ID, records); err != nil {
		return nil, domain.Wrap(domain.ErrStoreUnavailable, err)
	}

	if err := p.deps.Documents.MarkProcessed(ctx, doc.ID, len(records)); err != nil {
		return nil, fmt.Errorf("failed to mark document processed: %w", err)
	}

	return &domain.IngestResult{
		DocumentID:  doc.ID,
		ChunkCount:  len(records),
		TotalChunks: len(chunks),
	}, nil
}

func (p *Pipeline) readFile(ctx context.Context, key string) ([]byte, error) {
	rc, err := p.deps.Files.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxDocumentBytes))
	if err != nil {
		return nil, domain.Wrap(domain.ErrStorageOperationFail, err)
	}
	return data, nil
}

// embedChunks embeds chunks on a bounded pool. Results are placed by chunk
// index so ordering survives concurrency; unavailable embeddings are skipped.
func (p *Pipeline) embedChunks(ctx context.Context, doc *domain.Document, chunks []string) ([]domain.VectorRecord, error) {
	vectors := make([][]float32, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.EmbedConcurrency)
	for i, chunk := range chunks {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("embedding chunk %d panicked: %v", i, r)
				}
			}()

			vec, err := p.deps.Embedder.Embed(gctx, chunk, domain.IntentDocument)
			if err != nil {
				if domain.IsSkippable(err) {
					log.Printf("pipeline: skipping chunk %d of document %s: %v", i, doc.ID, err)
					return nil
				}
				return err
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := make([]domain.VectorRecord, 0, len(chunks))
	for i, vec := range vectors {
		if vec == nil {
			continue
		}
		records = append(records, domain.VectorRecord{
			ID:         recordID(doc.ID, i),
			DocumentID: doc.ID,
			OwnerID:    doc.OwnerID,
			Title:      doc.Title,
			ChunkIndex: i,
			Text:       chunks[i],
			Embedding:  vec,
		})
	}
	return records, nil
}

func recordID(documentID string, index int) string {
	return fmt.Sprintf("%s_%d", documentID, index)
}

func (p *Pipeline) recordFailure(ctx context.Context, documentID string, cause error) {
	reason := cause.Error()
	var de *domain.DomainError
	if errors.As(cause, &de) {
		reason = de.Message
	}

	ctx, cancel := withTimeout(context.WithoutCancel(ctx), p.cfg.StoreTimeout)
	defer cancel()
	if err := p.deps.Documents.MarkFailed(ctx, documentID, reason); err != nil {
		log.Printf("pipeline: failed to record failure for document %s: %v", documentID, err)
	}
}

// Answer retrieves the owner's relevant chunks and generates a cited reply.
// It never fails; retrieval errors produce the apology reply.
func (p *Pipeline) Answer(ctx context.Context, history []domain.ChatTurn, query, ownerID string) (answer domain.Answer) {
	ctx, span := telemetry.StartSpan(ctx, "Pipeline.Answer", telemetry.SpanAttributes{
		OwnerID:   ownerID,
		Operation: "answer",
	})
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("pipeline: answer panicked: %v", r)
			answer = domain.Answer{Text: ApologyMessage, References: []domain.DocumentRef{}}
		}
	}()

	chunks, err := p.deps.Retriever.Retrieve(ctx, query, ownerID, p.cfg.TopK)
	if err != nil {
		log.Printf("pipeline: retrieval failed for owner %s: %v", ownerID, err)
		span.SetError(err)
		return domain.Answer{Text: ApologyMessage, References: []domain.DocumentRef{}}
	}

	answer = p.deps.Generator.Generate(ctx, history, query, chunks)
	if IsGenerationFailure(answer) {
		log.Printf("pipeline: answer for owner %s fell back to %q", ownerID, answer.Text)
	}
	return answer
}

// Forget removes a document's vectors in the background. Failures are
// logged and never reach the caller.
func (p *Pipeline) Forget(documentID string) {
	p.pending.Add(1)
	go func() {
		defer p.pending.Done()

		ctx, cancel := withTimeout(context.Background(), p.cfg.StoreTimeout)
		defer cancel()
		if err := p.deps.Store.DeleteByDocument(ctx, documentID); err != nil {
			log.Printf("pipeline: failed to delete vectors of document %s: %v", documentID, err)
		}
	}()
}

// Wait blocks until background cleanups finish.
func (p *Pipeline) Wait() {
	p.pending.Wait()
}
