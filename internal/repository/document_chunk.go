package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/adaptivenexus/scandoq-chatboat/internal/domain"
)

// ChunkEmbeddingDimensions is the width of the document_chunks.embedding
// column.
const ChunkEmbeddingDimensions = 768

// DocumentChunkRepository is the pgvector-backed vector store. Chunks
// reference their document, so owner scoping is a join on documents.
type DocumentChunkRepository struct {
	pool *pgxpool.Pool
	db   dbtx
}

func NewDocumentChunkRepository(pool *pgxpool.Pool) *DocumentChunkRepository {
	return &DocumentChunkRepository{pool: pool, db: pool}
}

const upsertChunkSQL = `INSERT INTO document_chunks (id, document_id, chunk_index, title, content, embedding, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO UPDATE
	SET chunk_index = EXCLUDED.chunk_index,
	    title = EXCLUDED.title,
	    content = EXCLUDED.content,
	    embedding = EXCLUDED.embedding,
	    created_at = EXCLUDED.created_at`

func (r *DocumentChunkRepository) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	return insertChunks(ctx, r.db, records)
}

// ReplaceDocument swaps a document's chunk set in a single transaction.
func (r *DocumentChunkRepository) ReplaceDocument(ctx context.Context, documentID string, records []domain.VectorRecord) error {
	for _, rec := range records {
		if rec.DocumentID != documentID {
			return fmt.Errorf("record %s belongs to document %s, not %s", rec.ID, rec.DocumentID, documentID)
		}
	}

	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
			return err
		}
		return insertChunks(ctx, tx, records)
	})
}

func insertChunks(ctx context.Context, db dbtx, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, rec := range records {
		if len(rec.Embedding) == 0 {
			return fmt.Errorf("record %s has no embedding", rec.ID)
		}
		batch.Queue(upsertChunkSQL,
			rec.ID, rec.DocumentID, rec.ChunkIndex, rec.Title, rec.Text,
			pgvector.NewVector(rec.Embedding), now,
		)
	}

	br := db.SendBatch(ctx, batch)
	for range records {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return err
		}
	}
	return br.Close()
}

// Search returns the owner's k nearest chunks by L2 distance. The ORDER BY
// is the bare distance operator so the HNSW index serves it; iterative scan
// keeps walking the graph until k chunks pass the owner filter.
func (r *DocumentChunkRepository) Search(ctx context.Context, query []float32, ownerID string, k int) ([]domain.RetrievedChunk, error) {
	hits := make([]domain.RetrievedChunk, 0, k)
	if k <= 0 {
		return hits, nil
	}

	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SET LOCAL hnsw.iterative_scan = strict_order`); err != nil {
			return err
		}

		rows, err := tx.Query(ctx,
			`SELECT c.document_id::text, d.title, c.content, c.chunk_index, c.embedding <-> $1 AS distance
			 FROM document_chunks c
			 JOIN documents d ON d.id = c.document_id
			 WHERE d.owner_id = $2
			 ORDER BY c.embedding <-> $1
			 LIMIT $3`,
			pgvector.NewVector(query), ownerID, k,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var h domain.RetrievedChunk
			var chunkIndex int32
			if err := rows.Scan(&h.DocumentID, &h.Title, &h.Text, &chunkIndex, &h.Distance); err != nil {
				return err
			}
			h.ChunkIndex = int(chunkIndex)
			hits = append(hits, h)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return hits, nil
}

func (r *DocumentChunkRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	if !validID(documentID) {
		return nil
	}
	_, err := r.db.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	return err
}

// countByDocument returns the number of stored chunks of a document.
func (r *DocumentChunkRepository) countByDocument(ctx context.Context, documentID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM document_chunks WHERE document_id = $1`, documentID).Scan(&n)
	return n, err
}
