package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sabia-ai/sabia/internal/cli"
	"github.com/sabia-ai/sabia/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "sabia",
		Short: "Sabia CLI - RAG knowledge base client",
		Long: `Sabia CLI provides commands to query and manage the knowledge base.

Environment variables:
  SABIA_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.ListCmd())
	rootCmd.AddCommand(client.StatsCmd())
	rootCmd.AddCommand(client.GetCmd())
	rootCmd.AddCommand(client.UploadCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
