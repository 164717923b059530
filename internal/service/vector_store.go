package service

import (
	"context"

	"github.com/adaptivenexus/scandoq-chatboat/internal/domain"
)

// VectorStore persists chunk vectors and answers owner-scoped nearest
// neighbor queries by ascending L2 distance.
type VectorStore interface {
	// Upsert appends records. Any failure fails the whole batch.
	Upsert(ctx context.Context, records []domain.VectorRecord) error
	// ReplaceDocument removes every record of documentID and stores records
	// in its place as one unit.
	ReplaceDocument(ctx context.Context, documentID string, records []domain.VectorRecord) error
	// Search returns at most k records owned by ownerID, nearest first.
	Search(ctx context.Context, query []float32, ownerID string, k int) ([]domain.RetrievedChunk, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}
