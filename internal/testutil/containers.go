// Package testutil starts the backing services integration and e2e tests
// run against.
package testutil

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/adaptivenexus/scandoq-chatboat/internal/database"
)

const (
	pgvectorImage = "pgvector/pgvector:0.8.1-pg18"
	rustfsImage   = "rustfs/rustfs:latest"

	pgCredential = "scandoq"

	// RustFSCredential is both the access key and the secret key.
	RustFSCredential = "rustfsadmin"
)

// service is a started container reachable at host:port.
type service struct {
	Container testcontainers.Container
	Host      string
	Port      string
}

func (s service) addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// Terminate stops and removes the container.
func (s service) Terminate(ctx context.Context) error {
	return testcontainers.TerminateContainer(s.Container)
}

func start(ctx context.Context, t *testing.T, req testcontainers.ContainerRequest, port string) service {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start %s: %v", req.Image, err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get %s host: %v", req.Image, err)
	}
	mapped, err := container.MappedPort(ctx, nat.Port(port))
	if err != nil {
		t.Fatalf("failed to get %s port: %v", req.Image, err)
	}

	return service{Container: container, Host: host, Port: mapped.Port()}
}

// PostgresContainer is a pgvector-enabled PostgreSQL instance.
type PostgresContainer struct {
	service
}

func NewPostgresContainer(ctx context.Context, t *testing.T) *PostgresContainer {
	t.Helper()
	return &PostgresContainer{start(ctx, t, testcontainers.ContainerRequest{
		Image:        pgvectorImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     pgCredential,
			"POSTGRES_PASSWORD": pgCredential,
			"POSTGRES_DB":       pgCredential,
		},
		// postgres restarts once after initdb
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithStartupTimeout(60 * time.Second),
	}, "5432/tcp")}
}

// ConnectionString returns the PostgreSQL connection URL.
func (pc *PostgresContainer) ConnectionString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(pgCredential, pgCredential),
		Host:     pc.addr(),
		Path:     "/" + pgCredential,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// RustFSContainer is an S3-compatible object store.
type RustFSContainer struct {
	service
}

func NewRustFSContainer(ctx context.Context, t *testing.T) *RustFSContainer {
	t.Helper()
	return &RustFSContainer{start(ctx, t, testcontainers.ContainerRequest{
		Image:        rustfsImage,
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"RUSTFS_ACCESS_KEY": RustFSCredential,
			"RUSTFS_SECRET_KEY": RustFSCredential,
		},
		WaitingFor: wait.ForListeningPort("9000/tcp").WithStartupTimeout(30 * time.Second),
	}, "9000/tcp")}
}

// Endpoint returns the S3 endpoint URL.
func (rc *RustFSContainer) Endpoint() string {
	return "http://" + rc.addr()
}

// NewTestPool connects to pc, retrying while the server settles, and applies
// the migrations in migrationsDir the same way the daemon does.
func NewTestPool(ctx context.Context, t *testing.T, pc *PostgresContainer, migrationsDir string) *pgxpool.Pool {
	t.Helper()

	var pool *pgxpool.Pool
	var err error
	for attempt := 1; attempt <= 5; attempt++ {
		pool, err = database.NewPool(ctx, database.Config{
			URL:            pc.ConnectionString(),
			MaxConns:       16,
			ConnectTimeout: 5 * time.Second,
		})
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("failed to create pool after retries: %v", err)
	}

	abs, err := filepath.Abs(migrationsDir)
	if err == nil {
		err = database.Migrate(pc.ConnectionString(), "file://"+filepath.ToSlash(abs))
	}
	if err != nil {
		pool.Close()
		t.Fatalf("failed to run migrations: %v", fmt.Errorf("%s: %w", migrationsDir, err))
	}

	return pool
}
