//go:build integration

package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adaptivenexus/scandoq-chatboat/internal/database"
	"github.com/adaptivenexus/scandoq-chatboat/internal/testutil"
)

func TestChecker_Ping(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() { _ = pc.Terminate(ctx) })

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	checker := database.NewChecker(pool)
	require.NoError(t, checker.Ping(ctx))

	pool.Close()
	assert.Error(t, checker.Ping(ctx))
}
