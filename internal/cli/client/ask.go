package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// AskRequest represents the search API request.
type AskRequest struct {
	Query      string  `json:"query"`
	Persona    string  `json:"persona,omitempty"`
	Source     string  `json:"source,omitempty"`
	Category   string  `json:"category,omitempty"`
	MaxResults int     `json:"max_results,omitempty"`
	Threshold  float64 `json:"threshold,omitempty"`
}

// AskSource represents one cited passage in an answer.
type AskSource struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Source     string  `json:"source"`
	Category   string  `json:"category"`
	Similarity float64 `json:"similarity"`
}

// AskResponse represents the search API response.
type AskResponse struct {
	Answer     string      `json:"answer"`
	Confidence float64     `json:"confidence"`
	Persona    string      `json:"persona"`
	Sources    []AskSource `json:"sources"`
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var (
		persona    string
		source     string
		category   string
		maxResults int
		threshold  float64
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the knowledge base a question",
		Long:  "Asks a question and receives a persona-aware answer synthesized from stored knowledge.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAsk(cmd, AskRequest{
				Query:      args[0],
				Persona:    persona,
				Source:     source,
				Category:   category,
				MaxResults: maxResults,
				Threshold:  threshold,
			}, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&persona, "persona", "P", "", "Answer persona (geral, tecnico, comercial, suporte)")
	cmd.Flags().StringVarP(&source, "source", "s", "", "Filter by source")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Filter by category")
	cmd.Flags().IntVarP(&maxResults, "max-results", "n", 0, "Maximum number of cited passages")
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0, "Minimum similarity for cited passages")

	return cmd
}

func runAsk(cmd *cobra.Command, req AskRequest, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/knowledge/search", req)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	var askResp AskResponse
	if err := json.Unmarshal(resp.Data, &askResp); err != nil {
		return fmt.Errorf("failed to parse answer: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(askResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(askResp.Answer)
	fmt.Printf("\nConfidence: %.2f (persona: %s)\n", askResp.Confidence, askResp.Persona)

	if len(askResp.Sources) > 0 {
		fmt.Printf("\nSources:\n")
		for i, src := range askResp.Sources {
			fmt.Printf("%d. %s (%.2f)\n", i+1, src.Title, src.Similarity)
			content := src.Content
			if len(content) > 100 {
				content = content[:97] + "..."
			}
			fmt.Printf("   %s\n", content)
			fmt.Printf("   ID: %s\n", src.ID)
			if i < len(askResp.Sources)-1 {
				fmt.Println(strings.Repeat("-", 40))
			}
		}
	}

	return nil
}
