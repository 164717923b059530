package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// DocumentResponse mirrors the API document representation.
type DocumentResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Filename    string `json:"filename"`
	MimeType    string `json:"mime_type"`
	SizeBytes   int64  `json:"size_bytes"`
	Status      string `json:"status"`
	Processed   bool   `json:"processed"`
	ChunkCount  int    `json:"chunk_count"`
	LastError   string `json:"last_error,omitempty"`
	UploadedAt  string `json:"uploaded_at"`
	ProcessedAt string `json:"processed_at,omitempty"`
}

// ListDocumentsResponse represents one page of documents.
type ListDocumentsResponse struct {
	Items   []DocumentResponse `json:"items"`
	Cursor  string             `json:"cursor,omitempty"`
	HasMore bool               `json:"has_more"`
}

// ProcessResponse represents the result of an ingestion run.
type ProcessResponse struct {
	Status      string `json:"status"`
	ChunksCount int    `json:"chunks_count"`
	TotalChunks int    `json:"total_chunks"`
	Partial     bool   `json:"partial"`
}

// UploadCmd creates the upload command.
func UploadCmd() *cobra.Command {
	var (
		title   string
		process bool
	)

	cmd := &cobra.Command{
		Use:   "upload <filepath>",
		Short: "Upload a document",
		Long: `Upload a PDF, DOCX, text or audio file.

Examples:
  scandoq upload contract.pdf --title "Lease 2024"
  scandoq upload notes.txt --process`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runUpload(cmd.OutOrStdout(), cmd.ErrOrStderr(), api, args[0], title, process, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Document title (defaults to the filename)")
	cmd.Flags().BoolVar(&process, "process", false, "Ingest the document right after the upload")

	return cmd
}

func runUpload(out, progress io.Writer, api *APIClient, filePath, title string, process, outputJSON bool) error {
	var onProgress ProgressFunc
	if !outputJSON {
		onProgress = func(current, total int64) {
			if total > 0 {
				fmt.Fprintf(progress, "\rUploading... %3d%%", current*100/total)
			}
		}
	}

	resp, err := api.UploadFile("/documents", filePath, title, onProgress)
	if onProgress != nil {
		fmt.Fprintln(progress)
	}
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	var doc DocumentResponse
	if err := json.Unmarshal(resp.Data, &doc); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	var processed *ProcessResponse
	if process {
		processed, err = processDocument(api, doc.ID)
		if err != nil {
			return err
		}
	}

	if outputJSON {
		return printJSON(out, map[string]interface{}{
			"document": doc,
			"process":  processed,
		})
	}

	fmt.Fprintf(out, "Uploaded %s (%s)\n", doc.Title, doc.ID)
	if processed != nil {
		printProcessResult(out, processed)
	}
	return nil
}

// DocsCmd creates the document list command.
func DocsCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:     "docs",
		Aliases: []string{"ls"},
		Short:   "List your documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runDocs(cmd.OutOrStdout(), api, limit, cursor, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func runDocs(out io.Writer, api *APIClient, limit int, cursor string, outputJSON bool) error {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	path := "/documents"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	resp, err := api.Get(path)
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	var page ListDocumentsResponse
	if err := json.Unmarshal(resp.Data, &page); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		return printJSON(out, page)
	}

	if len(page.Items) == 0 {
		fmt.Fprintln(out, "No documents found")
		return nil
	}

	for _, doc := range page.Items {
		fmt.Fprintf(out, "%s  %-10s %4d chunks  %s\n", doc.ID, doc.Status, doc.ChunkCount, doc.Title)
		if doc.LastError != "" {
			fmt.Fprintf(out, "    last error: %s\n", doc.LastError)
		}
	}
	if page.HasMore {
		fmt.Fprintf(out, "\nMore results: --cursor %s\n", page.Cursor)
	}
	return nil
}

// ProcessCmd creates the process command.
func ProcessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process <document-id>",
		Short: "Extract, chunk and embed a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			result, err := processDocument(api, args[0])
			if err != nil {
				return err
			}

			if outputJSON, _ := cmd.Flags().GetBool("output"); outputJSON {
				return printJSON(cmd.OutOrStdout(), result)
			}
			printProcessResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

func processDocument(api *APIClient, id string) (*ProcessResponse, error) {
	resp, err := api.Post("/documents/"+url.PathEscape(id)+"/process", nil)
	if err != nil {
		return nil, fmt.Errorf("process failed: %w", err)
	}

	var result ProcessResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &result, nil
}

func printProcessResult(out io.Writer, result *ProcessResponse) {
	if result.Partial {
		fmt.Fprintf(out, "Processed %d of %d chunks (some embeddings failed)\n", result.ChunksCount, result.TotalChunks)
		return
	}
	fmt.Fprintf(out, "Processed %d chunks\n", result.ChunksCount)
}

// RmCmd creates the document delete command.
func RmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <document-id>",
		Aliases: []string{"delete"},
		Short:   "Delete a document and its chunks",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			if _, err := api.Delete("/documents/" + url.PathEscape(args[0])); err != nil {
				return fmt.Errorf("delete failed: %w", err)
			}

			if outputJSON, _ := cmd.Flags().GetBool("output"); outputJSON {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"success":     true,
					"document_id": args[0],
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

// DownloadCmd creates the download command.
func DownloadCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "download <document-id>",
		Short: "Download the original file of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runDownload(cmd.OutOrStdout(), api, args[0], outputPath, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "out", "o", "", "Output path (defaults to the uploaded filename)")

	return cmd
}

func runDownload(out io.Writer, api *APIClient, id, outputPath string, outputJSON bool) error {
	escaped := url.PathEscape(id)

	if outputPath == "" {
		resp, err := api.Get("/documents/" + escaped)
		if err != nil {
			return fmt.Errorf("failed to get document: %w", err)
		}
		var doc DocumentResponse
		if err := json.Unmarshal(resp.Data, &doc); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		outputPath = safeFilename(doc.Filename, id)
	}

	if err := api.DownloadFileWithProgress("/documents/"+escaped+"/content", outputPath, nil); err != nil {
		_ = os.Remove(outputPath)
		return fmt.Errorf("download failed: %w", err)
	}

	if outputJSON {
		return printJSON(out, map[string]interface{}{
			"success":     true,
			"document_id": id,
			"path":        outputPath,
		})
	}
	fmt.Fprintf(out, "Downloaded document to %s\n", outputPath)
	return nil
}

func safeFilename(name, fallback string) string {
	base := name
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if base == "" || base == "." || base == ".." {
		return fallback
	}
	return base
}

func printJSON(out io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(data))
	return nil
}
