package cmd

import (
	"github.com/spf13/cobra"
)

var (
	collectorURL string
	token        string
)

var rootCmd = &cobra.Command{
	Use:   "swatch",
	Short: "StackWatch CLI",
	Long: `swatch is the command-line interface for the StackWatch collector.

Seed synthetic events for load and dedup testing, and inspect
per-organization usage counters.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&collectorURL, "url", "http://localhost:8077", "collector base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "client token")
}
