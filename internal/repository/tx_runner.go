package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adaptivenexus/scandoq-chatboat/internal/service"
)

// TxRunner records an upload's document row and its ingestion job
// atomically.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

func (r *TxRunner) WithTx(ctx context.Context, fn func(repos service.TxRepositories) error) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(txScoped{tx: tx})
	})
}

// inTx commits when fn succeeds and rolls back otherwise, including on panic.
func inTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, pool, fn)
}

type txScoped struct {
	tx pgx.Tx
}

func (s txScoped) Documents() service.DocumentRepositoryInterface {
	return &DocumentRepository{db: s.tx}
}

func (s txScoped) IngestionJobs() service.IngestionJobRepositoryInterface {
	return &IngestionJobRepository{db: s.tx}
}
