package client

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// UploadFailure represents one chunk that could not be ingested.
type UploadFailure struct {
	ChunkIndex int    `json:"chunk_index"`
	Reason     string `json:"reason"`
}

// UploadResult represents the upload API response.
type UploadResult struct {
	IDs         []string        `json:"ids"`
	TotalChunks int             `json:"total_chunks"`
	Failures    []UploadFailure `json:"failures"`
}

// UploadCmd creates the upload command.
func UploadCmd() *cobra.Command {
	var (
		title    string
		source   string
		category string
		docType  string
	)

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a document to the knowledge base",
		Long:  "Uploads a document; its text is extracted, chunked, embedded and stored.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			if docType == "" {
				docType = guessDocumentType(args[0])
			}
			return runUpload(cmd, args[0], map[string]string{
				"title":         title,
				"source":        source,
				"category":      category,
				"document_type": docType,
			}, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&title, "title", "T", "", "Document title (required)")
	cmd.Flags().StringVarP(&source, "source", "s", "upload", "Document source")
	cmd.Flags().StringVarP(&category, "category", "c", "geral", "Document category")
	cmd.Flags().StringVarP(&docType, "type", "t", "", "Document type (default: inferred from extension)")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func guessDocumentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "pdf"
	default:
		return "txt"
	}
}

func runUpload(cmd *cobra.Command, filePath string, fields map[string]string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.UploadDocument("/knowledge/upload", filePath, fields)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	var result UploadResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse upload result: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Stored %d of %d chunks.\n", len(result.IDs), result.TotalChunks)
	if len(result.Failures) > 0 {
		fmt.Println("\nFailed chunks (queued for retry):")
		for _, failure := range result.Failures {
			fmt.Printf("  chunk %d: %s\n", failure.ChunkIndex, failure.Reason)
		}
	}

	return nil
}
