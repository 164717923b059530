package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Checker confirms the database answers queries.
type Checker struct {
	pool *pgxpool.Pool
}

func NewChecker(pool *pgxpool.Pool) *Checker {
	return &Checker{pool: pool}
}

// Ping runs SELECT 1 on a pooled connection.
func (c *Checker) Ping(ctx context.Context) error {
	var one int
	return c.pool.QueryRow(ctx, "SELECT 1").Scan(&one)
}
