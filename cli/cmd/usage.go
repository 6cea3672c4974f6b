package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var usageCmd = &cobra.Command{
	Use:   "usage <organization-id>",
	Short: "Show organization usage counters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := &http.Client{Timeout: 10 * time.Second}

		req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/api/v2/usage/%s", collectorURL, args[0]), nil)
		if err != nil {
			return err
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to fetch usage: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("collector returned %s", resp.Status)
		}

		var pretty map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&pretty); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(pretty)
	},
}

func init() {
	rootCmd.AddCommand(usageCmd)
}
