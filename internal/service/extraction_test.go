package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/adaptivenexus/scandoq-chatboat/internal/domain"
)

// MockTranscriber mocks the multimodal extraction model
type MockTranscriber struct {
	mock.Mock
}

func (m *MockTranscriber) ExtractText(ctx context.Context, data []byte, mimeType string) (string, error) {
	args := m.Called(ctx, data, mimeType)
	return args.String(0), args.Error(1)
}

func TestExtractionService_PlainText(t *testing.T) {
	svc := NewExtractionService(nil, 0)

	text, err := svc.Extract(context.Background(), []byte("Quarterly revenue grew."), domain.FormatText)

	require.NoError(t, err)
	assert.Equal(t, "Quarterly revenue grew.", text)
}

func TestExtractionService_StripsBOMAndNUL(t *testing.T) {
	svc := NewExtractionService(nil, 0)

	text, err := svc.Extract(context.Background(), []byte("\xef\xbb\xbf# Title\x00\nbody\x00"), domain.FormatMarkdown)

	require.NoError(t, err)
	assert.Equal(t, "# Title\nbody", text)
}

func TestExtractionService_InvalidUTF8IsUnsupported(t *testing.T) {
	svc := NewExtractionService(nil, 0)

	_, err := svc.Extract(context.Background(), []byte{0xff, 0xfe, 0xfd}, domain.FormatText)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)

	_, err = svc.Extract(context.Background(), []byte{0xc3, 0x28}, domain.FormatUnknown)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestExtractionService_UnknownFormatDecodesUTF8(t *testing.T) {
	svc := NewExtractionService(nil, 0)

	text, err := svc.Extract(context.Background(), []byte("name,amount\nrent,1200"), domain.FormatUnknown)

	require.NoError(t, err)
	assert.Equal(t, "name,amount\nrent,1200", text)
}

func TestExtractionService_BlankTextUsesFallback(t *testing.T) {
	transcriber := new(MockTranscriber)
	svc := NewExtractionService(transcriber, 0)

	data := []byte("   \n  ")
	transcriber.On("ExtractText", mock.Anything, data, "text/plain").Return("recovered\x00 text", nil)

	text, err := svc.Extract(context.Background(), data, domain.FormatText)

	require.NoError(t, err)
	assert.Equal(t, "recovered text", text)
	transcriber.AssertExpectations(t)
}

func TestExtractionService_MalformedPDFUsesFallback(t *testing.T) {
	transcriber := new(MockTranscriber)
	svc := NewExtractionService(transcriber, 0)

	data := []byte("%PDF-1.7 this is not really a pdf")
	transcriber.On("ExtractText", mock.Anything, data, "application/pdf").Return("Scanned invoice 42", nil)

	text, err := svc.Extract(context.Background(), data, domain.FormatPDF)

	require.NoError(t, err)
	assert.Equal(t, "Scanned invoice 42", text)
	transcriber.AssertExpectations(t)
}

func TestExtractionService_FallbackFailureIsEmptyDocument(t *testing.T) {
	transcriber := new(MockTranscriber)
	svc := NewExtractionService(transcriber, 0)

	data := []byte("%PDF-1.7 broken")
	transcriber.On("ExtractText", mock.Anything, data, "application/pdf").Return("", errors.New("quota exceeded"))

	_, err := svc.Extract(context.Background(), data, domain.FormatPDF)

	assert.ErrorIs(t, err, domain.ErrEmptyDocument)
}

func TestExtractionService_FallbackReturnsBlank(t *testing.T) {
	transcriber := new(MockTranscriber)
	svc := NewExtractionService(transcriber, 0)

	data := []byte("\x00\x00")
	transcriber.On("ExtractText", mock.Anything, data, mock.Anything).Return("\x00 ", nil)

	_, err := svc.Extract(context.Background(), data, domain.FormatUnknown)

	assert.ErrorIs(t, err, domain.ErrEmptyDocument)
}

func TestExtractionService_NoTranscriberIsEmptyDocument(t *testing.T) {
	svc := NewExtractionService(nil, 0)

	_, err := svc.Extract(context.Background(), []byte(""), domain.FormatText)

	assert.ErrorIs(t, err, domain.ErrEmptyDocument)
}
