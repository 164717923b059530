package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adaptivenexus/scandoq-chatboat/internal/domain"
	"github.com/adaptivenexus/scandoq-chatboat/internal/pagination"
	"github.com/adaptivenexus/scandoq-chatboat/internal/telemetry"
)

// DocumentRepositoryInterface defines the repository interface for document persistence
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByIDForOwner(ctx context.Context, id, ownerID string) (*domain.Document, error)
	ListByOwnerWithCursor(ctx context.Context, ownerID string, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error)
	Delete(ctx context.Context, id string) error
}

type DocumentPageResult struct {
	Items      []*domain.Document
	NextCursor string
	HasMore    bool
}

// IngestionJobRepositoryInterface defines the repository interface for ingestion job persistence
type IngestionJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.IngestionJob) error
}

// DocumentIngester runs and undoes ingestion of a single document.
type DocumentIngester interface {
	Ingest(ctx context.Context, documentID string) (*domain.IngestResult, error)
	Forget(documentID string)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// DocumentService handles uploads and the lifecycle of an owner's documents
type DocumentService struct {
	repo     DocumentRepositoryInterface
	txRunner TxRunner
	files    FileStore
	ingester DocumentIngester
	uuidGen  UUIDGenerator
}

func NewDocumentService(repo DocumentRepositoryInterface, txRunner TxRunner, files FileStore, ingester DocumentIngester) *DocumentService {
	return NewDocumentServiceWithUUIDGen(repo, txRunner, files, ingester, &DefaultUUIDGenerator{})
}

// NewDocumentServiceWithUUIDGen creates a DocumentService with custom UUID generator (for testing)
func NewDocumentServiceWithUUIDGen(repo DocumentRepositoryInterface, txRunner TxRunner, files FileStore, ingester DocumentIngester, uuidGen UUIDGenerator) *DocumentService {
	return &DocumentService{
		repo:     repo,
		txRunner: txRunner,
		files:    files,
		ingester: ingester,
		uuidGen:  uuidGen,
	}
}

type UploadInput struct {
	OwnerID     string
	Title       string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type ListDocumentsInput struct {
	OwnerID string
	Cursor  string
	Limit   int
}

type ListDocumentsOutput struct {
	Items   []*domain.Document
	Cursor  string
	HasMore bool
}

// Upload stores the file and records the document together with a pending
// ingestion job.
func (s *DocumentService) Upload(ctx context.Context, input UploadInput) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Upload", telemetry.SpanAttributes{
		OwnerID:   input.OwnerID,
		Operation: "upload",
	})
	defer span.End()

	filename := sanitizeFilename(input.Filename)
	if input.OwnerID == "" || filename == "" || input.Body == nil {
		return nil, domain.ErrMissingRequiredField
	}
	if input.Size > MaxDocumentBytes {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "file too large")
	}

	contentType := input.ContentType
	if hint := domain.FormatFromFilename(filename).MimeType(); hint != "" {
		contentType = hint
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	now := time.Now().UTC()
	docID := s.uuidGen.NewString()
	jobID := s.uuidGen.NewString()
	key := storageKey(input.OwnerID, docID, filename)

	doc := domain.NewDocument(docID, input.OwnerID, strings.TrimSpace(input.Title), filename, contentType, key, input.Size, now)
	if err := domain.ValidateDocument(doc); err != nil {
		return nil, err
	}

	if err := s.files.Put(ctx, key, input.Body, input.Size, contentType); err != nil {
		span.SetError(err)
		return nil, domain.Wrap(domain.ErrStorageOperationFail, err)
	}

	job := domain.NewIngestionJob(jobID, docID, now)
	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Documents().Create(ctx, doc); err != nil {
			return err
		}
		return repos.IngestionJobs().Create(ctx, job)
	})
	if err != nil {
		if delErr := s.files.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			log.Printf("documents: failed to remove orphaned file %s: %v", key, delErr)
		}
		span.SetError(err)
		return nil, fmt.Errorf("failed to record document: %w", err)
	}

	log.Printf("documents: uploaded %s for owner %s (%d bytes)", docID, input.OwnerID, input.Size)
	return doc, nil
}

// Get returns a document the owner holds.
func (s *DocumentService) Get(ctx context.Context, ownerID, id string) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Get", telemetry.SpanAttributes{
		OwnerID:    ownerID,
		DocumentID: id,
		Operation:  "get",
	})
	defer span.End()

	return s.repo.GetByIDForOwner(ctx, id, ownerID)
}

func (s *DocumentService) List(ctx context.Context, input ListDocumentsInput) (*ListDocumentsOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.List", telemetry.SpanAttributes{
		OwnerID:   input.OwnerID,
		Operation: "list",
	})
	defer span.End()

	if input.Limit <= 0 {
		input.Limit = 20
	}
	if input.Limit > 100 {
		input.Limit = 100
	}

	cursor, err := pagination.Decode(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "invalid cursor")
	}

	page, err := s.repo.ListByOwnerWithCursor(ctx, input.OwnerID, cursor, input.Limit)
	if err != nil {
		return nil, err
	}

	return &ListDocumentsOutput{
		Items:   page.Items,
		Cursor:  page.NextCursor,
		HasMore: page.HasMore,
	}, nil
}

// Content opens the stored file of one of the owner's documents.
func (s *DocumentService) Content(ctx context.Context, ownerID, id string) (*domain.Document, io.ReadCloser, error) {
	doc, err := s.repo.GetByIDForOwner(ctx, id, ownerID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.files.Open(ctx, doc.StorageKey)
	if err != nil {
		return nil, nil, err
	}
	return doc, rc, nil
}

// Process runs ingestion synchronously for one of the owner's documents.
func (s *DocumentService) Process(ctx context.Context, ownerID, id string) (*domain.IngestResult, error) {
	if _, err := s.repo.GetByIDForOwner(ctx, id, ownerID); err != nil {
		return nil, err
	}
	return s.ingester.Ingest(ctx, id)
}

// Delete removes the document, its file and, in the background, its vectors.
func (s *DocumentService) Delete(ctx context.Context, ownerID, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Delete", telemetry.SpanAttributes{
		OwnerID:    ownerID,
		DocumentID: id,
		Operation:  "delete",
	})
	defer span.End()

	doc, err := s.repo.GetByIDForOwner(ctx, id, ownerID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, doc.ID); err != nil {
		span.SetError(err)
		return err
	}

	if err := s.files.Delete(ctx, doc.StorageKey); err != nil {
		log.Printf("documents: failed to delete file %s: %v", doc.StorageKey, err)
	}
	s.ingester.Forget(doc.ID)
	return nil
}

func storageKey(ownerID, docID, filename string) string {
	return fmt.Sprintf("documents/%s/%s/%s", ownerID, docID, filename)
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == "/" {
		return ""
	}
	return name
}
