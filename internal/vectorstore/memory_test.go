package vectorstore

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adaptivenexus/scandoq-chatboat/internal/domain"
)

func record(doc, owner string, idx int, vec ...float32) domain.VectorRecord {
	return domain.VectorRecord{
		ID:         fmt.Sprintf("%s_%d", doc, idx),
		DocumentID: doc,
		OwnerID:    owner,
		Title:      "Title " + doc,
		ChunkIndex: idx,
		Text:       fmt.Sprintf("chunk %d of %s", idx, doc),
		Embedding:  vec,
	}
}

func TestMemoryStore_SearchOrdersByDistance(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []domain.VectorRecord{
		record("d1", "alice", 0, 1, 0),
		record("d1", "alice", 1, 0, 1),
		record("d2", "alice", 0, 3, 4),
	}))

	hits, err := s.Search(ctx, []float32{0, 0}, "alice", 10)

	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.InDelta(t, 1.0, hits[0].Distance, 1e-9)
	assert.InDelta(t, 1.0, hits[1].Distance, 1e-9)
	assert.InDelta(t, 5.0, hits[2].Distance, 1e-9)
	assert.Equal(t, "d2", hits[2].DocumentID)
}

func TestMemoryStore_SearchLimit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Upsert(ctx, []domain.VectorRecord{record("d1", "alice", i, float32(i))}))
	}

	hits, err := s.Search(ctx, []float32{0}, "alice", 3)

	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{hits[0].ChunkIndex, hits[1].ChunkIndex, hits[2].ChunkIndex})
}

func TestMemoryStore_EmptyOwner(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, []domain.VectorRecord{record("d1", "alice", 0, 1)}))

	hits, err := s.Search(ctx, []float32{1}, "bob", 5)

	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryStore_OwnerIsolationProperty(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	owners := []string{"alice", "bob", "carol", "dave"}

	for trial := 0; trial < 25; trial++ {
		s := NewMemoryStore()
		ctx := context.Background()
		docOwner := map[string]string{}

		for d := 0; d < 12; d++ {
			doc := fmt.Sprintf("doc-%d-%d", trial, d)
			owner := owners[r.Intn(len(owners))]
			docOwner[doc] = owner
			var recs []domain.VectorRecord
			for c := 0; c < 1+r.Intn(6); c++ {
				recs = append(recs, record(doc, owner, c, r.Float32(), r.Float32(), r.Float32()))
			}
			require.NoError(t, s.ReplaceDocument(ctx, doc, recs))
		}

		for _, owner := range owners {
			query := []float32{r.Float32(), r.Float32(), r.Float32()}
			hits, err := s.Search(ctx, query, owner, 1+r.Intn(10))
			require.NoError(t, err)
			for _, h := range hits {
				assert.Equal(t, owner, docOwner[h.DocumentID])
			}
			assert.True(t, sort.SliceIsSorted(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance }))
		}
	}
}

func TestMemoryStore_ReplaceDocument(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.ReplaceDocument(ctx, "d1", []domain.VectorRecord{
		record("d1", "alice", 0, 1), record("d1", "alice", 1, 2), record("d1", "alice", 2, 3),
	}))
	require.NoError(t, s.ReplaceDocument(ctx, "d1", []domain.VectorRecord{
		record("d1", "alice", 0, 5), record("d1", "alice", 1, 6),
	}))

	assert.Equal(t, 2, s.Count("d1"))
	recs := s.Records("d1")
	assert.Equal(t, []float32{5}, recs[0].Embedding)
}

func TestMemoryStore_ReplaceDocumentRejectsForeignRecords(t *testing.T) {
	s := NewMemoryStore()

	err := s.ReplaceDocument(context.Background(), "d1", []domain.VectorRecord{record("d2", "alice", 0, 1)})

	assert.Error(t, err)
	assert.Equal(t, 0, s.Count("d1"))
}

func TestMemoryStore_UpsertValidates(t *testing.T) {
	s := NewMemoryStore()

	err := s.Upsert(context.Background(), []domain.VectorRecord{record("d1", "", 0, 1)})
	assert.Error(t, err)

	err = s.Upsert(context.Background(), []domain.VectorRecord{record("d1", "alice", 0)})
	assert.Error(t, err)
}

func TestMemoryStore_DeleteByDocument(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, []domain.VectorRecord{record("d1", "alice", 0, 1), record("d2", "alice", 0, 1)}))

	require.NoError(t, s.DeleteByDocument(ctx, "d1"))
	require.NoError(t, s.DeleteByDocument(ctx, "missing"))

	hits, err := s.Search(ctx, []float32{1}, "alice", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "d2", hits[0].DocumentID)
}

func TestL2Distance(t *testing.T) {
	assert.InDelta(t, 5.0, L2Distance([]float32{0, 0}, []float32{3, 4}), 1e-9)
	assert.Equal(t, 0.0, L2Distance([]float32{1, 2}, []float32{1, 2}))
}
