package repository

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AdvisoryLocker holds per-key Postgres session advisory locks, so every
// process sharing the database sees the same lease.
type AdvisoryLocker struct {
	pool *pgxpool.Pool
}

func NewAdvisoryLocker(pool *pgxpool.Pool) *AdvisoryLocker {
	return &AdvisoryLocker{pool: pool}
}

// TryLock takes the lock without waiting. The returned unlock releases the
// lock and the connection holding it.
func (l *AdvisoryLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire connection: %w", err)
	}

	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock(hashtextextended($1, 0))`, key).Scan(&ok); err != nil {
		conn.Release()
		return nil, false, err
	}
	if !ok {
		conn.Release()
		return nil, false, nil
	}

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			defer conn.Release()
			var released bool
			err := conn.QueryRow(context.Background(), `SELECT pg_advisory_unlock(hashtextextended($1, 0))`, key).Scan(&released)
			if err != nil || !released {
				log.Printf("advisory lock: failed to release %s (released=%v): %v", key, released, err)
				// A session lock that failed to release must not return to the pool.
				_ = conn.Conn().Close(context.Background())
			}
		})
	}
	return unlock, true, nil
}
