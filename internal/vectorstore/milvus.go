package vectorstore

import (
	"context"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/adaptivenexus/scandoq-chatboat/internal/domain"
)

// Field names of the chunk collection
const (
	FieldID         = "id"
	FieldDocumentID = "document_id"
	FieldOwnerID    = "owner_id"
	FieldChunkIndex = "chunk_index"
	FieldTitle      = "title"
	FieldText       = "text"
	FieldVector     = "vector"
)

// DefaultCollection is the Milvus collection holding document chunks.
const DefaultCollection = "document_chunks"

// OwnerDocuments lists the documents an owner may search.
type OwnerDocuments interface {
	ListIDsByOwner(ctx context.Context, ownerID string) ([]string, error)
}

type MilvusConfig struct {
	Address    string
	Collection string
	Dimensions int
}

// MilvusStore keeps chunk vectors in a Milvus collection. Owner scoping is
// a filter expression evaluated by Milvus, so limits stay exact.
type MilvusStore struct {
	client     *milvusclient.Client
	collection string
	dim        int
	owners     OwnerDocuments
}

// NewMilvusStore connects to Milvus and makes sure the collection exists
// with an L2 HNSW index and is loaded.
func NewMilvusStore(ctx context.Context, cfg MilvusConfig, owners OwnerDocuments) (*MilvusStore, error) {
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	client, err := milvusclient.New(ctx, &milvusclient.ClientConfig{Address: cfg.Address})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus at %s: %w", cfg.Address, err)
	}

	s := &MilvusStore{
		client:     client,
		collection: cfg.Collection,
		dim:        cfg.Dimensions,
		owners:     owners,
	}
	if err := s.ensureCollection(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *MilvusStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(s.collection))
	if err != nil {
		return fmt.Errorf("failed to check if collection exists: %w", err)
	}

	if !exists {
		schema := &entity.Schema{
			CollectionName: s.collection,
			Description:    "Document chunks for retrieval",
			Fields: []*entity.Field{
				{
					Name:       FieldID,
					DataType:   entity.FieldTypeVarChar,
					PrimaryKey: true,
					AutoID:     false,
					TypeParams: map[string]string{"max_length": "128"},
				},
				{
					Name:       FieldDocumentID,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "64"},
				},
				{
					Name:       FieldOwnerID,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "128"},
				},
				{
					Name:     FieldChunkIndex,
					DataType: entity.FieldTypeInt64,
				},
				{
					Name:       FieldTitle,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "1024"},
				},
				{
					Name:       FieldText,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "65535"},
				},
				{
					Name:       FieldVector,
					DataType:   entity.FieldTypeFloatVector,
					TypeParams: map[string]string{"dim": strconv.Itoa(s.dim)},
				},
			},
		}

		if err := s.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(s.collection, schema)); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", s.collection, err)
		}

		idx := index.NewHNSWIndex(entity.L2, 16, 200)
		if _, err := s.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(s.collection, FieldVector, idx)); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", FieldVector, err)
		}
		log.Printf("milvus: created collection %s (dim %d)", s.collection, s.dim)
	}

	task, err := s.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(s.collection))
	if err != nil {
		return fmt.Errorf("failed to load collection %s into memory: %w", s.collection, err)
	}
	return task.Await(ctx)
}

// Close releases the Milvus connection.
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func (s *MilvusStore) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := validateRecords(records); err != nil {
		return err
	}

	n := len(records)
	ids := make([]string, n)
	docIDs := make([]string, n)
	ownerIDs := make([]string, n)
	indexes := make([]int64, n)
	titles := make([]string, n)
	texts := make([]string, n)
	vectors := make([][]float32, n)
	for i, r := range records {
		if len(r.Embedding) != s.dim {
			return fmt.Errorf("record %s has %d dimensions, collection expects %d", r.ID, len(r.Embedding), s.dim)
		}
		ids[i] = r.ID
		docIDs[i] = r.DocumentID
		ownerIDs[i] = r.OwnerID
		indexes[i] = int64(r.ChunkIndex)
		titles[i] = r.Title
		texts[i] = r.Text
		vectors[i] = r.Embedding
	}

	opt := milvusclient.NewColumnBasedInsertOption(s.collection).
		WithVarcharColumn(FieldID, ids).
		WithVarcharColumn(FieldDocumentID, docIDs).
		WithVarcharColumn(FieldOwnerID, ownerIDs).
		WithInt64Column(FieldChunkIndex, indexes).
		WithVarcharColumn(FieldTitle, titles).
		WithVarcharColumn(FieldText, texts).
		WithFloatVectorColumn(FieldVector, s.dim, vectors)

	if _, err := s.client.Upsert(ctx, opt); err != nil {
		return fmt.Errorf("failed to upsert %d records: %w", n, err)
	}
	return nil
}

// ReplaceDocument upserts the new generation first and then deletes chunks
// it no longer has, so searches never see the document empty.
func (s *MilvusStore) ReplaceDocument(ctx context.Context, documentID string, records []domain.VectorRecord) error {
	kept := make([]int64, 0, len(records))
	for _, r := range records {
		if r.DocumentID != documentID {
			return fmt.Errorf("record %s belongs to document %s, not %s", r.ID, r.DocumentID, documentID)
		}
		kept = append(kept, int64(r.ChunkIndex))
	}

	if err := s.Upsert(ctx, records); err != nil {
		return err
	}

	if _, err := s.client.Delete(ctx, milvusclient.NewDeleteOption(s.collection).WithExpr(staleChunksExpr(documentID, kept))); err != nil {
		return fmt.Errorf("failed to delete stale chunks of %s: %w", documentID, err)
	}
	return nil
}

func (s *MilvusStore) Search(ctx context.Context, query []float32, ownerID string, k int) ([]domain.RetrievedChunk, error) {
	if k <= 0 {
		return []domain.RetrievedChunk{}, nil
	}

	docIDs, err := s.owners.ListIDsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents of owner: %w", err)
	}
	if len(docIDs) == 0 {
		return []domain.RetrievedChunk{}, nil
	}

	opt := milvusclient.NewSearchOption(s.collection, k, []entity.Vector{entity.FloatVector(query)}).
		WithANNSField(FieldVector).
		WithFilter(ownerFilterExpr(ownerID, docIDs)).
		WithOutputFields(FieldDocumentID, FieldTitle, FieldText, FieldChunkIndex).
		WithConsistencyLevel(entity.ClStrong)

	results, err := s.client.Search(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to search collection %s: %w", s.collection, err)
	}
	if len(results) == 0 {
		return []domain.RetrievedChunk{}, nil
	}

	rs := results[0]
	docCol := rs.GetColumn(FieldDocumentID)
	titleCol := rs.GetColumn(FieldTitle)
	textCol := rs.GetColumn(FieldText)
	idxCol := rs.GetColumn(FieldChunkIndex)
	if docCol == nil || titleCol == nil || textCol == nil || idxCol == nil {
		return nil, fmt.Errorf("search result is missing output fields")
	}

	hits := make([]domain.RetrievedChunk, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		docID, err := docCol.GetAsString(i)
		if err != nil {
			return nil, err
		}
		title, err := titleCol.GetAsString(i)
		if err != nil {
			return nil, err
		}
		text, err := textCol.GetAsString(i)
		if err != nil {
			return nil, err
		}
		chunkIndex, err := idxCol.GetAsInt64(i)
		if err != nil {
			return nil, err
		}
		var score float32
		if i < len(rs.Scores) {
			score = rs.Scores[i]
		}
		hits = append(hits, domain.RetrievedChunk{
			DocumentID: docID,
			Title:      title,
			Text:       text,
			ChunkIndex: int(chunkIndex),
			Distance:   l2FromMilvus(score),
		})
	}
	return hits, nil
}

func (s *MilvusStore) DeleteByDocument(ctx context.Context, documentID string) error {
	expr := FieldDocumentID + " == " + strconv.Quote(documentID)
	if _, err := s.client.Delete(ctx, milvusclient.NewDeleteOption(s.collection).WithExpr(expr)); err != nil {
		return fmt.Errorf("failed to delete chunks of %s: %w", documentID, err)
	}
	return nil
}

// ownerFilterExpr scopes a search to the owner's own documents.
func ownerFilterExpr(ownerID string, docIDs []string) string {
	quoted := make([]string, len(docIDs))
	for i, id := range docIDs {
		quoted[i] = strconv.Quote(id)
	}
	return fmt.Sprintf("%s == %s && %s in [%s]",
		FieldOwnerID, strconv.Quote(ownerID),
		FieldDocumentID, strings.Join(quoted, ", "))
}

func staleChunksExpr(documentID string, kept []int64) string {
	expr := FieldDocumentID + " == " + strconv.Quote(documentID)
	if len(kept) == 0 {
		return expr
	}
	idx := make([]string, len(kept))
	for i, k := range kept {
		idx[i] = strconv.FormatInt(k, 10)
	}
	return expr + " && " + FieldChunkIndex + " not in [" + strings.Join(idx, ", ") + "]"
}

// l2FromMilvus converts Milvus' squared L2 score into Euclidean distance.
func l2FromMilvus(score float32) float64 {
	if score <= 0 {
		return 0
	}
	return math.Sqrt(float64(score))
}
