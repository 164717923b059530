package service

import "context"

// TxRepositories exposes the repositories an upload writes through, bound
// to one transaction.
type TxRepositories interface {
	Documents() DocumentRepositoryInterface
	IngestionJobs() IngestionJobRepositoryInterface
}

// TxRunner runs fn in a transaction that commits only when fn returns nil.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
