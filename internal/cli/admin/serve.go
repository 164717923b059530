package admin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/adaptivenexus/scandoq-chatboat/internal/api/handlers"
	"github.com/adaptivenexus/scandoq-chatboat/internal/cli"
	"github.com/adaptivenexus/scandoq-chatboat/internal/config"
	"github.com/adaptivenexus/scandoq-chatboat/internal/database"
	"github.com/adaptivenexus/scandoq-chatboat/internal/jobs"
	"github.com/adaptivenexus/scandoq-chatboat/internal/server"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the scandoq API server and the background ingestion worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (default from SCANDOQ_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-worker", false, "Do not run the background ingestion worker")
	cli.SetEnv(cmd, "SCANDOQ_PORT", "SCANDOQ_LLM_API_KEY", "SCANDOQ_VECTOR_BACKEND", "SCANDOQ_S3_ENDPOINT",
		"SCANDOQ_WORKER_POLL_INTERVAL", "SCANDOQ_SENTRY_DSN")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if portFlag, _ := cmd.Flags().GetString("port"); portFlag != "" {
		cfg.Port = portFlag
	}

	flushTelemetry := initTelemetry(cfg)
	defer flushTelemetry()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	a, err := newApp(ctx, cfg, appOptions{migrate: !noMigrate})
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: server.NewRouter(server.RouterConfig{
			DocumentHandler: handlers.NewDocumentHandler(a.documentSvc),
			ChatHandler:     handlers.NewChatHandler(a.pipeline),
			HealthHandler:   handlers.NewHealthHandler(database.NewChecker(a.pool)),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if noWorker, _ := cmd.Flags().GetBool("no-worker"); !noWorker {
		worker := jobs.NewWorker(jobs.NewIngestionWorker(a.jobs, a.pipeline), cfg.WorkerPollInterval)
		g.Go(func() error { return worker.Run(gctx) })
	}

	g.Go(func() error {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Println("server exited")
	return nil
}
