package admin

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adaptivenexus/scandoq-chatboat/internal/config"
	"github.com/adaptivenexus/scandoq-chatboat/internal/database"
)

// MigrateCmd applies pending database migrations and exits.
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			source, _ := cmd.Flags().GetString("source")
			return database.Migrate(cfg.DatabaseURL, source)
		},
	}

	cmd.Flags().String("source", database.DefaultMigrationsSource, "Migration source URL")
	return cmd
}
