package service

import (
	"context"
	"log"
	"time"

	"golang.org/x/time/rate"

	"github.com/adaptivenexus/scandoq-chatboat/internal/domain"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	Embed(ctx context.Context, text string, intent domain.EmbeddingIntent) ([]float32, error)
}

// EmbeddingOptions bounds each embedding call.
type EmbeddingOptions struct {
	Timeout       time.Duration
	RatePerSecond float64
}

// EmbeddingService applies credential, rate and timeout policy to an
// EmbeddingClient and classifies its failures.
type EmbeddingService struct {
	client  EmbeddingClient
	timeout time.Duration
	limiter *rate.Limiter
}

// NewEmbeddingService creates a new EmbeddingService. A nil client means no
// credential is configured.
func NewEmbeddingService(client EmbeddingClient, opts EmbeddingOptions) *EmbeddingService {
	s := &EmbeddingService{client: client, timeout: opts.Timeout}
	if opts.RatePerSecond > 0 {
		burst := int(opts.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return s
}

// Available reports whether embeddings can be requested at all.
func (s *EmbeddingService) Available() bool {
	return s != nil && s.client != nil
}

// Embed returns ErrCredentialMissing without a client and
// ErrEmbeddingUnavailable for any per-call failure.
func (s *EmbeddingService) Embed(ctx context.Context, text string, intent domain.EmbeddingIntent) ([]float32, error) {
	if !s.Available() {
		return nil, domain.ErrCredentialMissing
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, domain.Wrap(domain.ErrEmbeddingUnavailable, err)
		}
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	embedding, err := s.client.Embed(ctx, text, intent)
	if err != nil {
		log.Printf("embedding: %s embedding failed: %v", intent, err)
		return nil, domain.Wrap(domain.ErrEmbeddingUnavailable, err)
	}
	return embedding, nil
}
