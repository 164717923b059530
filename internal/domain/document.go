package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Format is the declared content format of an uploaded file.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatUnknown  Format = "unknown"
)

// FormatFromFilename declares a format from the file extension.
func FormatFromFilename(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return FormatPDF
	case ".txt":
		return FormatText
	case ".md", ".markdown":
		return FormatMarkdown
	}
	return FormatUnknown
}

// MimeType returns the MIME hint for the format, empty when unknown.
func (f Format) MimeType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatText:
		return "text/plain"
	case FormatMarkdown:
		return "text/markdown"
	}
	return ""
}

// DocumentStatus is derived from the persisted document columns.
type DocumentStatus string

const (
	DocumentStatusUploaded  DocumentStatus = "uploaded"
	DocumentStatusProcessed DocumentStatus = "processed"
	DocumentStatusFailed    DocumentStatus = "failed"
)

// Document is a user-uploaded file and its ingestion state.
type Document struct {
	ID          string
	OwnerID     string
	Title       string
	Filename    string
	MimeType    string
	StorageKey  string
	SizeBytes   int64
	Processed   bool
	ChunkCount  int
	LastError   string
	UploadedAt  time.Time
	ProcessedAt *time.Time
}

// NewDocument creates an unprocessed Document.
func NewDocument(id, ownerID, title, filename, mimeType, storageKey string, size int64, uploadedAt time.Time) *Document {
	if title == "" {
		title = filename
	}
	return &Document{
		ID:         id,
		OwnerID:    ownerID,
		Title:      title,
		Filename:   filename,
		MimeType:   mimeType,
		StorageKey: storageKey,
		SizeBytes:  size,
		UploadedAt: uploadedAt,
	}
}

// Format returns the declared format of the document's file.
func (d *Document) Format() Format {
	return FormatFromFilename(d.Filename)
}

// Status derives the lifecycle state. Processing is never persisted.
func (d *Document) Status() DocumentStatus {
	switch {
	case d.Processed:
		return DocumentStatusProcessed
	case d.LastError != "":
		return DocumentStatusFailed
	}
	return DocumentStatusUploaded
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.OwnerID == "" {
		return fmt.Errorf("document OwnerID is required")
	}

	if d.Filename == "" {
		return fmt.Errorf("document Filename is required")
	}

	if d.StorageKey == "" {
		return fmt.Errorf("document StorageKey is required")
	}

	if d.SizeBytes < 0 {
		return fmt.Errorf("document SizeBytes cannot be negative")
	}

	return nil
}

// DocumentRef identifies a cited document.
type DocumentRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// IngestResult summarizes a successful ingestion.
type IngestResult struct {
	DocumentID string
	// ChunkCount is the number of chunks actually stored.
	ChunkCount int
	// TotalChunks is the number of chunks produced by the chunker.
	TotalChunks int
}

// Partial reports whether some chunks were skipped for lack of an embedding.
func (r *IngestResult) Partial() bool {
	return r.ChunkCount < r.TotalChunks
}
