package service

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/adaptivenexus/scandoq-chatboat/internal/domain"
)

// TextTranscriber reads the text out of a file with a multimodal model
type TextTranscriber interface {
	ExtractText(ctx context.Context, data []byte, mimeType string) (string, error)
}

// ExtractionService turns raw uploaded bytes into plain text
type ExtractionService struct {
	transcriber TextTranscriber
	timeout     time.Duration
}

// NewExtractionService creates an ExtractionService. A nil transcriber
// disables the multimodal fallback.
func NewExtractionService(transcriber TextTranscriber, timeout time.Duration) *ExtractionService {
	return &ExtractionService{transcriber: transcriber, timeout: timeout}
}

// Extract returns the plain text of data declared as format. Native parsing
// is tried first; blank results fall back to the transcriber.
func (s *ExtractionService) Extract(ctx context.Context, data []byte, format domain.Format) (string, error) {
	var text string
	switch format {
	case domain.FormatPDF:
		t, err := pdfPlainText(data)
		if err != nil {
			log.Printf("extraction: pdf parse failed, falling back: %v", err)
		}
		text = t
	default:
		t, err := decodeUTF8(data)
		if err != nil {
			return "", domain.Wrap(domain.ErrUnsupportedFormat, err)
		}
		text = t
	}

	text = stripNUL(text)
	if strings.TrimSpace(text) == "" {
		text = stripNUL(s.transcribe(ctx, data, format))
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.ErrEmptyDocument
	}
	return text, nil
}

func (s *ExtractionService) transcribe(ctx context.Context, data []byte, format domain.Format) string {
	if s.transcriber == nil || len(data) == 0 {
		return ""
	}

	mimeType := format.MimeType()
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.transcriber.ExtractText(ctx, data, mimeType)
	if err != nil {
		log.Printf("extraction: multimodal fallback failed (%s): %v", mimeType, err)
		return ""
	}
	return text
}

// pdfPlainText concatenates page texts in page order.
func pdfPlainText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, content)
	}
	return strings.Join(pages, "\n"), nil
}

func decodeUTF8(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", fmt.Errorf("content is not valid UTF-8")
	}
	return string(data), nil
}

func stripNUL(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
