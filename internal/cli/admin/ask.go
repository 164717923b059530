package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adaptivenexus/scandoq-chatboat/internal/cli"
	"github.com/adaptivenexus/scandoq-chatboat/internal/config"
	"github.com/adaptivenexus/scandoq-chatboat/internal/domain"
)

// AskCmd answers a question against one owner's documents.
func AskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from an owner's documents",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}

	cmd.Flags().String("owner", "", "Owner whose documents are searched")
	cmd.Flags().String("history", "", "Path to a JSON file of prior turns ([{\"role\",\"content\"}])")
	cmd.Flags().Bool("json", false, "Print the answer and cited documents as JSON")
	_ = cmd.MarkFlagRequired("owner")
	cli.SetEnv(cmd, "SCANDOQ_LLM_API_KEY", "SCANDOQ_CHAT_MODEL", "SCANDOQ_RETRIEVAL_TOP_K")

	return cmd
}

type askOutput struct {
	Content   string               `json:"content"`
	Documents []domain.DocumentRef `json:"documents"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	owner, _ := cmd.Flags().GetString("owner")
	historyPath, _ := cmd.Flags().GetString("history")
	asJSON, _ := cmd.Flags().GetBool("json")

	history, err := loadHistory(historyPath)
	if err != nil {
		return err
	}

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

	answer := a.pipeline.Answer(ctx, history, strings.Join(args, " "), owner)

	out := cmd.OutOrStdout()
	if asJSON {
		docs := answer.References
		if docs == nil {
			docs = []domain.DocumentRef{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(askOutput{Content: answer.Text, Documents: docs})
	}

	fmt.Fprintln(out, answer.Text)
	if len(answer.References) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Sources:")
		for _, ref := range answer.References {
			fmt.Fprintf(out, "  - %s (%s)\n", ref.Title, ref.ID)
		}
	}
	return nil
}

func loadHistory(path string) ([]domain.ChatTurn, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	var raw []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse history: %w", err)
	}

	history := make([]domain.ChatTurn, 0, len(raw))
	for _, turn := range raw {
		role, ok := domain.ParseChatRole(turn.Role)
		if !ok {
			continue
		}
		history = append(history, domain.ChatTurn{Role: role, Content: turn.Content})
	}
	return history, nil
}
