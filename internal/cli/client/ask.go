package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// ChatTurn is one prior message sent with a question.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents the chat API request.
type ChatRequest struct {
	History []ChatTurn `json:"history"`
	Query   string     `json:"query"`
}

// DocumentRef is a document cited by an answer.
type DocumentRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ChatResponse represents the chat API response.
type ChatResponse struct {
	Content   string        `json:"content"`
	Documents []DocumentRef `json:"documents"`
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var (
		historyPath string
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about your documents",
		Long: `Ask a question answered from your processed documents.

Examples:
  scandoq ask "When does the lease end?"
  scandoq ask "And the deposit?" --history turns.json
  scandoq ask -i`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !interactive && len(args) == 0 {
				return fmt.Errorf("a question is required unless --interactive is set")
			}

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			history, err := readHistory(historyPath)
			if err != nil {
				return err
			}

			if interactive {
				return runChatLoop(cmd.InOrStdin(), cmd.OutOrStdout(), api, history)
			}

			resp, err := ask(api, history, strings.Join(args, " "))
			if err != nil {
				return err
			}

			if outputJSON, _ := cmd.Flags().GetBool("output"); outputJSON {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			printAnswer(cmd.OutOrStdout(), resp)
			return nil
		},
	}

	cmd.Flags().StringVar(&historyPath, "history", "", "JSON file with prior turns ([{\"role\",\"content\"}])")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Start a conversation that keeps its history")

	return cmd
}

func ask(api *APIClient, history []ChatTurn, query string) (*ChatResponse, error) {
	if history == nil {
		history = []ChatTurn{}
	}
	resp, err := api.Post("/chat", ChatRequest{History: history, Query: query})
	if err != nil {
		return nil, fmt.Errorf("ask failed: %w", err)
	}

	var answer ChatResponse
	if err := json.Unmarshal(resp.Data, &answer); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &answer, nil
}

func runChatLoop(in io.Reader, out io.Writer, api *APIClient, history []ChatTurn) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		query := strings.TrimSpace(scanner.Text())
		switch query {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		resp, err := ask(api, history, query)
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		printAnswer(out, resp)
		fmt.Fprintln(out)

		history = append(history,
			ChatTurn{Role: "user", Content: query},
			ChatTurn{Role: "assistant", Content: resp.Content},
		)
	}
}

func printAnswer(out io.Writer, resp *ChatResponse) {
	fmt.Fprintln(out, resp.Content)
	if len(resp.Documents) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Sources:")
	for _, doc := range resp.Documents {
		fmt.Fprintf(out, "  - %s (%s)\n", doc.Title, doc.ID)
	}
}

func readHistory(path string) ([]ChatTurn, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	var history []ChatTurn
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to parse history: %w", err)
	}
	return history, nil
}
