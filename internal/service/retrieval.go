package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/adaptivenexus/scandoq-chatboat/internal/domain"
	"github.com/adaptivenexus/scandoq-chatboat/internal/telemetry"
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 5

// QueryEmbedder embeds user questions
type QueryEmbedder interface {
	Embed(ctx context.Context, text string, intent domain.EmbeddingIntent) ([]float32, error)
}

// RetrievalService finds the owner's chunks closest to a question
type RetrievalService struct {
	embedder QueryEmbedder
	store    VectorStore
	topK     int
	timeout  time.Duration
}

func NewRetrievalService(embedder QueryEmbedder, store VectorStore, topK int, timeout time.Duration) *RetrievalService {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &RetrievalService{embedder: embedder, store: store, topK: topK, timeout: timeout}
}

// Retrieve returns up to k chunks of ownerID nearest to query. k <= 0 uses
// the configured default. An unavailable embedding yields no chunks and no
// error so the answer can still be generated without context.
func (s *RetrievalService) Retrieve(ctx context.Context, query, ownerID string, k int) ([]domain.RetrievedChunk, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Retrieve", telemetry.SpanAttributes{
		OwnerID:   ownerID,
		Operation: "retrieve",
	})
	defer span.End()

	if k <= 0 {
		k = s.topK
	}

	vector, err := s.embedder.Embed(ctx, query, domain.IntentQuery)
	if err != nil {
		if domain.IsSkippable(err) || errors.Is(err, domain.ErrCredentialMissing) {
			log.Printf("retrieval: continuing without context: %v", err)
			return nil, nil
		}
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	chunks, err := s.store.Search(ctx, vector, ownerID, k)
	if err != nil {
		return nil, domain.Wrap(domain.ErrStoreUnavailable, err)
	}
	return chunks, nil
}
