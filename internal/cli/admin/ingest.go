package admin

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/adaptivenexus/scandoq-chatboat/internal/cli"
	"github.com/adaptivenexus/scandoq-chatboat/internal/config"
)

// IngestCmd runs one ingestion synchronously, outside the worker.
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <document-id>",
		Short: "Ingest a stored document now",
		Long:  "Extract, chunk, embed and index one uploaded document, replacing any previous vectors",
		Args:  cobra.ExactArgs(1),
		RunE:  runIngest,
	}
	cli.SetEnv(cmd, "SCANDOQ_LLM_API_KEY", "SCANDOQ_EMBEDDING_MODEL", "SCANDOQ_VECTOR_BACKEND")
	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	defer initTelemetry(cfg)()

	a, err := newApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.pipeline.Ingest(ctx, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "processed %s: %d chunks stored", result.DocumentID, result.ChunkCount)
	if result.Partial() {
		fmt.Fprintf(out, " (%d skipped without an embedding)", result.TotalChunks-result.ChunkCount)
	}
	fmt.Fprintln(out)
	return nil
}
