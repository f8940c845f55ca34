package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// StatsResult represents the stats API response.
type StatsResult struct {
	Total      int64            `json:"total"`
	BySource   map[string]int64 `json:"by_source"`
	ByCategory map[string]int64 `json:"by_category"`
}

// StatsCmd creates the stats command.
func StatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge base statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runStats(cmd, outputJSON)
		},
	}
}

func runStats(cmd *cobra.Command, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/knowledge/stats")
	if err != nil {
		return fmt.Errorf("stats failed: %w", err)
	}

	var stats StatsResult
	if err := json.Unmarshal(resp.Data, &stats); err != nil {
		return fmt.Errorf("failed to parse stats: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Total items: %d\n", stats.Total)
	if len(stats.BySource) > 0 {
		fmt.Println("\nBy source:")
		for source, count := range stats.BySource {
			fmt.Printf("  %-12s %d\n", source, count)
		}
	}
	if len(stats.ByCategory) > 0 {
		fmt.Println("\nBy category:")
		for category, count := range stats.ByCategory {
			fmt.Printf("  %-12s %d\n", category, count)
		}
	}

	return nil
}
