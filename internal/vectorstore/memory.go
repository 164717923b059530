// Package vectorstore holds vector store backends that live outside Postgres.
package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/adaptivenexus/scandoq-chatboat/internal/domain"
)

// MemoryStore keeps vectors in process and searches them exhaustively.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]domain.VectorRecord // by document id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]domain.VectorRecord)}
}

func (s *MemoryStore) Upsert(_ context.Context, records []domain.VectorRecord) error {
	if err := validateRecords(records); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records[r.DocumentID] = append(s.records[r.DocumentID], cloneRecord(r))
	}
	return nil
}

func (s *MemoryStore) ReplaceDocument(_ context.Context, documentID string, records []domain.VectorRecord) error {
	if err := validateRecords(records); err != nil {
		return err
	}

	fresh := make([]domain.VectorRecord, 0, len(records))
	for _, r := range records {
		if r.DocumentID != documentID {
			return fmt.Errorf("record %s belongs to document %s, not %s", r.ID, r.DocumentID, documentID)
		}
		fresh = append(fresh, cloneRecord(r))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(fresh) == 0 {
		delete(s.records, documentID)
		return nil
	}
	s.records[documentID] = fresh
	return nil
}

func (s *MemoryStore) Search(_ context.Context, query []float32, ownerID string, k int) ([]domain.RetrievedChunk, error) {
	if k <= 0 {
		return []domain.RetrievedChunk{}, nil
	}

	s.mu.RLock()
	hits := make([]domain.RetrievedChunk, 0)
	for _, recs := range s.records {
		for _, r := range recs {
			if r.OwnerID != ownerID {
				continue
			}
			if len(r.Embedding) != len(query) {
				continue
			}
			hits = append(hits, domain.RetrievedChunk{
				DocumentID: r.DocumentID,
				Title:      r.Title,
				Text:       r.Text,
				ChunkIndex: r.ChunkIndex,
				Distance:   L2Distance(query, r.Embedding),
			})
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		if hits[i].DocumentID != hits[j].DocumentID {
			return hits[i].DocumentID < hits[j].DocumentID
		}
		return hits[i].ChunkIndex < hits[j].ChunkIndex
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *MemoryStore) DeleteByDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, documentID)
	return nil
}

// Count returns the number of stored records of a document.
func (s *MemoryStore) Count(documentID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[documentID])
}

// Records returns a copy of a document's records in storage order.
func (s *MemoryStore) Records(documentID string) []domain.VectorRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.VectorRecord, len(s.records[documentID]))
	copy(out, s.records[documentID])
	return out
}

// L2Distance is the Euclidean distance between a and b.
func L2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func validateRecords(records []domain.VectorRecord) error {
	for _, r := range records {
		if r.DocumentID == "" || r.OwnerID == "" {
			return fmt.Errorf("record %q is missing its document or owner", r.ID)
		}
		if len(r.Embedding) == 0 {
			return fmt.Errorf("record %q has no embedding", r.ID)
		}
	}
	return nil
}

func cloneRecord(r domain.VectorRecord) domain.VectorRecord {
	r.Embedding = append([]float32(nil), r.Embedding...)
	return r
}
