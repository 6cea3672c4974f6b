package main

import (
	"os"

	"github.com/stackwatch-systems/stackwatch/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
