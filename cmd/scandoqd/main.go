package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adaptivenexus/scandoq-chatboat/internal/cli"
	"github.com/adaptivenexus/scandoq-chatboat/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "scandoqd",
		Short: "Scandoq daemon",
		Long:  "Scandoq daemon for serving the document chat API, ingesting documents and applying migrations",
	}

	cli.AddHelpJSONFlag(rootCmd)
	cli.SetEnv(rootCmd, "SCANDOQ_DATABASE_URL", "SCANDOQ_ENVIRONMENT", "SCANDOQ_DEBUG")
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.IngestCmd())
	rootCmd.AddCommand(admin.AskCmd())
	rootCmd.AddCommand(admin.MigrateCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
