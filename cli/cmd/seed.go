package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/stackwatch-systems/stackwatch/cli/internal/seeder"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed synthetic events",
	Long:  "Generate and submit synthetic events to the collector for load and dedup testing",
	Example: `  swatch seed --count 1000 --types error,log
  swatch seed --count 50 --batch-size 10 --repeat-rate 0.5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")
		batchSize, _ := cmd.Flags().GetInt("batch-size")
		types, _ := cmd.Flags().GetString("types")
		repeatRate, _ := cmd.Flags().GetFloat64("repeat-rate")

		runner := seeder.NewRunner(seeder.Config{
			CollectorURL: collectorURL,
			Token:        token,
			Count:        count,
			BatchSize:    batchSize,
			EventTypes:   strings.Split(types, ","),
			RepeatRate:   repeatRate,
		})
		return runner.Run()
	},
}

func init() {
	seedCmd.Flags().Int("count", 100, "number of events to submit")
	seedCmd.Flags().Int("batch-size", 25, "events per submission")
	seedCmd.Flags().String("types", "error,log,notfound,featureusage", "comma-separated event types")
	seedCmd.Flags().Float64("repeat-rate", 0.3, "fraction of events repeating an earlier signature")
	rootCmd.AddCommand(seedCmd)
}
