package service

import "context"

// stubTx hands the same repositories to every call and counts how often a
// transaction was opened.
type stubTx struct {
	documents DocumentRepositoryInterface
	jobs      IngestionJobRepositoryInterface
	opened    int
	beginErr  error
}

func (s *stubTx) Documents() DocumentRepositoryInterface { return s.documents }

func (s *stubTx) IngestionJobs() IngestionJobRepositoryInterface { return s.jobs }

func (s *stubTx) WithTx(_ context.Context, fn func(repos TxRepositories) error) error {
	s.opened++
	if s.beginErr != nil {
		return s.beginErr
	}
	return fn(s)
}
