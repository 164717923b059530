package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adaptivenexus/scandoq-chatboat/internal/domain"
	"github.com/adaptivenexus/scandoq-chatboat/internal/pagination"
	"github.com/adaptivenexus/scandoq-chatboat/internal/service"
)

const documentColumns = `id, owner_id, title, filename, mime_type, storage_key, size_bytes,
	processed, chunk_count, last_error, uploaded_at, processed_at`

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (`+documentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		d.ID, d.OwnerID, d.Title, d.Filename, d.MimeType, d.StorageKey, d.SizeBytes,
		d.Processed, d.ChunkCount, nullableString(d.LastError), d.UploadedAt, d.ProcessedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	if !validID(id) {
		return nil, domain.ErrDocumentNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	return scanDocument(row)
}

// GetByIDForOwner returns ErrDocumentNotFound for documents of other owners.
func (r *DocumentRepository) GetByIDForOwner(ctx context.Context, id, ownerID string) (*domain.Document, error) {
	if !validID(id) {
		return nil, domain.ErrDocumentNotFound
	}
	row := r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	)
	return scanDocument(row)
}

func (r *DocumentRepository) ListByOwnerWithCursor(ctx context.Context, ownerID string, cursor *pagination.Cursor, limit int) (*service.DocumentPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT `+documentColumns+`
			 FROM documents
			 WHERE owner_id = $1 AND (uploaded_at, id) < ($2, $3)
			 ORDER BY uploaded_at DESC, id DESC
			 LIMIT $4`,
			ownerID, cursor.UploadedAt, cursor.ID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+documentColumns+`
			 FROM documents
			 WHERE owner_id = $1
			 ORDER BY uploaded_at DESC, id DESC
			 LIMIT $2`,
			ownerID, limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, hasMore := pagination.Trim(items, limit)

	var nextCursor string
	if hasMore {
		last := items[len(items)-1]
		nextCursor = pagination.Cursor{ID: last.ID, UploadedAt: last.UploadedAt}.Encode()
	}

	return &service.DocumentPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// ListIDsByOwner returns the ids of every document the owner holds.
func (r *DocumentRepository) ListIDsByOwner(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id::text FROM documents WHERE owner_id = $1`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkProcessed records a successful ingestion and clears any prior failure.
func (r *DocumentRepository) MarkProcessed(ctx context.Context, id string, chunkCount int) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents
		 SET processed = TRUE, chunk_count = $1, last_error = NULL, processed_at = $2
		 WHERE id = $3`,
		chunkCount, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// MarkFailed records why the last ingestion failed. A previously processed
// document keeps its processed flag.
func (r *DocumentRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	if !validID(id) {
		return domain.ErrDocumentNotFound
	}
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET last_error = $1 WHERE id = $2`,
		reason, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.ErrDocumentNotFound
	}
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var d domain.Document
	var lastError pgtype.Text
	var chunkCount int32
	err := row.Scan(
		&d.ID, &d.OwnerID, &d.Title, &d.Filename, &d.MimeType, &d.StorageKey, &d.SizeBytes,
		&d.Processed, &chunkCount, &lastError, &d.UploadedAt, &d.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	d.ChunkCount = int(chunkCount)
	if lastError.Valid {
		d.LastError = lastError.String
	}
	return &d, nil
}
