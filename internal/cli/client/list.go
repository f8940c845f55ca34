package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// ListItem represents one knowledge item in a listing.
type ListItem struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Source       string `json:"source"`
	Category     string `json:"category"`
	DocumentType string `json:"document_type"`
	ChunkIndex   int    `json:"chunk_index"`
	TotalChunks  int    `json:"total_chunks"`
	CreatedAt    string `json:"created_at"`
}

// ListResult represents the list API response.
type ListResult struct {
	Items   []ListItem `json:"items"`
	Page    int        `json:"page"`
	Size    int        `json:"size"`
	Total   int64      `json:"total"`
	HasMore bool       `json:"has_more"`
}

// ListCmd creates the list command.
func ListCmd() *cobra.Command {
	var (
		page     int
		limit    int
		source   string
		category string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List knowledge items",
		Long:  "Lists stored knowledge items, newest first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runList(cmd, page, limit, source, category, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&page, "page", "p", 1, "Page number")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Items per page")
	cmd.Flags().StringVarP(&source, "source", "s", "", "Filter by source")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Filter by category")

	return cmd
}

func runList(cmd *cobra.Command, page, limit int, source, category string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/knowledge/list?page=%d&limit=%d", page, limit)
	if source != "" {
		path += "&source=" + source
	}
	if category != "" {
		path += "&category=" + category
	}

	resp, err := api.Get(path)
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	var result ListResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse list: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(result.Items) == 0 {
		fmt.Println("No knowledge items found.")
		return nil
	}

	fmt.Printf("Page %d (%d of %d items):\n\n", result.Page, len(result.Items), result.Total)
	for _, item := range result.Items {
		fmt.Printf("%s  [%s/%s]  %s (chunk %d/%d)\n",
			item.ID, item.Source, item.Category, item.Title, item.ChunkIndex+1, item.TotalChunks)
	}
	if result.HasMore {
		fmt.Printf("\nMore results available. Use --page %d\n", result.Page+1)
	}

	return nil
}
