// Package telemetry wraps Sentry tracing for the ingestion and answer paths.
package telemetry

import (
	"context"
	"log"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/adaptivenexus/scandoq-chatboat/internal/domain"
)

const (
	serviceName = "scandoq"

	// OpIngestJob is the transaction op of background ingestion jobs.
	OpIngestJob = "queue.process"
)

// Config holds the configuration for Sentry initialization.
type Config struct {
	DSN              string
	Environment      string
	TracesSampleRate float64
	Debug            bool
}

// Init initializes Sentry with tracing and returns a flush function. An
// empty DSN yields a no-op.
func Init(cfg Config) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate == 0 {
		cfg.TracesSampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		ServerName:       serviceName,
		TracesSampler: sentry.TracesSampler(func(ctx sentry.SamplingContext) float64 {
			return sampleRate(ctx.Span, cfg.TracesSampleRate)
		}),
	})
	if err != nil {
		log.Printf("sentry: failed to initialize (continuing without tracing): %v", err)
		return func() {}, nil
	}

	log.Printf("sentry: tracing initialized (environment: %s, sample_rate: %.2f)", cfg.Environment, cfg.TracesSampleRate)
	return func() { sentry.Flush(5 * time.Second) }, nil
}

// sampleRate never samples the health check and always samples ingestion
// jobs. Child spans follow their parent.
func sampleRate(span *sentry.Span, base float64) float64 {
	var emptySpanID sentry.SpanID
	switch {
	case span.Name == "GET /health":
		return 0
	case span.ParentSpanID != emptySpanID:
		if span.Sampled.Bool() {
			return 1
		}
		return 0
	case span.Op == OpIngestJob:
		return 1
	default:
		return base
	}
}

// SpanAttributes contains common attributes for service spans.
type SpanAttributes struct {
	OwnerID    string
	DocumentID string
	Operation  string
}

// Span wraps sentry.Span; the zero value is safe to use.
type Span struct {
	inner *sentry.Span
}

// End finishes the span.
func (s *Span) End() {
	if s.inner != nil {
		s.inner.Finish()
	}
}

// SetError records err on the span. Only failures of the service or its
// dependencies are sent as exceptions; caller mistakes set a status only.
func (s *Span) SetError(err error) {
	if s.inner == nil || err == nil {
		return
	}

	code := domain.CodeOf(err)
	s.inner.Status = spanStatusForCode(code)
	s.inner.SetTag("error_code", code)

	if !reportable(code) {
		return
	}
	if hub := sentry.GetHubFromContext(s.inner.Context()); hub != nil {
		hub.CaptureException(err)
	}
}

func spanStatusForCode(code string) sentry.SpanStatus {
	switch code {
	case domain.ErrCodeNotFound:
		return sentry.SpanStatusNotFound
	case domain.ErrCodeValidation, domain.ErrCodeUnsupported, domain.ErrCodeEmptyDocument:
		return sentry.SpanStatusInvalidArgument
	case domain.ErrCodeInProgress:
		return sentry.SpanStatusAborted
	case domain.ErrCodeCredential:
		return sentry.SpanStatusFailedPrecondition
	case domain.ErrCodeEmbedding, domain.ErrCodeStore, domain.ErrCodeGeneration:
		return sentry.SpanStatusUnavailable
	default:
		return sentry.SpanStatusInternalError
	}
}

func reportable(code string) bool {
	switch code {
	case domain.ErrCodeNotFound, domain.ErrCodeValidation, domain.ErrCodeUnsupported,
		domain.ErrCodeEmptyDocument, domain.ErrCodeInProgress:
		return false
	}
	return true
}

func setAttributes(span *sentry.Span, attrs SpanAttributes) {
	if attrs.OwnerID != "" {
		span.SetTag("owner_id", attrs.OwnerID)
	}
	if attrs.DocumentID != "" {
		span.SetTag("document_id", attrs.DocumentID)
	}
	if attrs.Operation != "" {
		span.SetData("operation", attrs.Operation)
	}
}

// StartSpan starts a child of the span in ctx, or a new transaction when
// there is none.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}

	setAttributes(span, attrs)
	return span.Context(), &Span{inner: span}
}

// StartTransaction starts a root span for work that does not come from an
// HTTP request.
func StartTransaction(ctx context.Context, name string, op string) (context.Context, *Span) {
	options := []sentry.SpanOption{
		sentry.WithTransactionName(name),
		sentry.WithTransactionSource(sentry.SourceTask),
	}
	if op != "" {
		options = append(options, sentry.WithOpName(op))
	}

	span := sentry.StartSpan(ctx, op, options...)
	return span.Context(), &Span{inner: span}
}

// CaptureMessage captures a message to Sentry with the current context.
func CaptureMessage(ctx context.Context, message string) {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureMessage(message)
	} else {
		sentry.CaptureMessage(message)
	}
}

// AddBreadcrumb adds a breadcrumb to the current scope.
func AddBreadcrumb(ctx context.Context, category, message string) {
	breadcrumb := &sentry.Breadcrumb{
		Type:      "default",
		Category:  category,
		Message:   message,
		Level:     sentry.LevelInfo,
		Timestamp: time.Now(),
	}

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.AddBreadcrumb(breadcrumb, nil)
	} else {
		sentry.AddBreadcrumb(breadcrumb)
	}
}
