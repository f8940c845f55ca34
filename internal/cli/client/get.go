package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// GetItem represents a full knowledge item.
type GetItem struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	Source       string `json:"source"`
	Category     string `json:"category"`
	DocumentType string `json:"document_type"`
	FileURL      string `json:"file_url,omitempty"`
	ChunkIndex   int    `json:"chunk_index"`
	TotalChunks  int    `json:"total_chunks"`
	FileName     string `json:"file_name,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// GetCmd creates the get command.
func GetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a knowledge item by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runGet(cmd, args[0], outputJSON)
		},
	}
}

func runGet(cmd *cobra.Command, id string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/knowledge/" + id)
	if err != nil {
		return fmt.Errorf("get failed: %w", err)
	}

	var item GetItem
	if err := json.Unmarshal(resp.Data, &item); err != nil {
		return fmt.Errorf("failed to parse item: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(item, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("ID:       %s\n", item.ID)
	fmt.Printf("Title:    %s\n", item.Title)
	fmt.Printf("Source:   %s\n", item.Source)
	fmt.Printf("Category: %s\n", item.Category)
	fmt.Printf("Type:     %s\n", item.DocumentType)
	fmt.Printf("Chunk:    %d/%d\n", item.ChunkIndex+1, item.TotalChunks)
	if item.FileName != "" {
		fmt.Printf("File:     %s\n", item.FileName)
	}
	if item.FileURL != "" {
		fmt.Printf("URL:      %s\n", item.FileURL)
	}
	fmt.Printf("Created:  %s\n", item.CreatedAt)
	fmt.Printf("\n%s\n", item.Content)

	return nil
}
