package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adaptivenexus/scandoq-chatboat/internal/cli"
	"github.com/adaptivenexus/scandoq-chatboat/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "scandoq",
		Short: "Scandoq CLI - chat with your documents",
		Long: `Scandoq CLI uploads documents and answers questions from them.

Environment variables:
  SCANDOQ_OWNER_ID   Owner id sent with every request (required)
  SCANDOQ_API_URL    API base URL (default: http://localhost:8080)`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("owner", "", "Owner id (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)
	cli.SetEnv(rootCmd, "SCANDOQ_OWNER_ID", "SCANDOQ_API_URL")

	rootCmd.AddCommand(client.UploadCmd())
	rootCmd.AddCommand(client.DocsCmd())
	rootCmd.AddCommand(client.ProcessCmd())
	rootCmd.AddCommand(client.RmCmd())
	rootCmd.AddCommand(client.DownloadCmd())
	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.ProfileCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
