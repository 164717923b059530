package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// ProfileCmd creates the profile parent command
func ProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage the stored owner and API URL",
		Long:  "Set, clear and inspect the defaults stored in the global config (~/.config/scandoq/config.json)",
	}

	cmd.AddCommand(profileSetCmd())
	cmd.AddCommand(profileClearCmd())
	cmd.AddCommand(profileStatusCmd())

	return cmd
}

func profileSetCmd() *cobra.Command {
	var ownerID, apiURL string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store the owner id and API URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !IsValidOwnerID(ownerID) {
				return fmt.Errorf("invalid owner id %q", ownerID)
			}
			if err := SaveGlobalConfig(&GlobalConfig{OwnerID: ownerID, APIURL: apiURL}); err != nil {
				return fmt.Errorf("failed to save profile: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Profile saved")
			return nil
		},
	}

	cmd.Flags().StringVar(&ownerID, "owner", "", "Owner id sent as X-Owner-ID")
	cmd.Flags().StringVar(&apiURL, "url", defaultAPIURL, "API URL")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func profileClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := DeleteGlobalConfig(); err != nil {
				return fmt.Errorf("failed to clear profile: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Profile cleared")
			return nil
		},
	}
}

func profileStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the effective owner and where it comes from",
		RunE: func(cmd *cobra.Command, args []string) error {
			flagOwner, _ := cmd.Flags().GetString("owner")
			flagURL, _ := cmd.Flags().GetString("api-url")
			source, ownerID, apiURL := GetSettingsSource(flagOwner, flagURL)

			out := cmd.OutOrStdout()
			if outputJSON, _ := cmd.Flags().GetBool("output"); outputJSON {
				data, err := json.MarshalIndent(map[string]interface{}{
					"configured": source != SourceNone,
					"source":     string(source),
					"owner_id":   ownerID,
					"api_url":    apiURL,
				}, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			if source == SourceNone {
				fmt.Fprintln(out, "No owner configured")
				fmt.Fprintln(out, "Run 'scandoq profile set --owner <id>' or set "+envOwnerID)
				return nil
			}
			fmt.Fprintf(out, "Owner:  %s (from %s)\n", ownerID, source)
			fmt.Fprintf(out, "API:    %s\n", apiURL)
			return nil
		},
	}
}
