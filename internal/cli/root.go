package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "triaged",
	Short: "Trust and anomaly triage engine",
	Long:  "Turns behavioral signals into bounded risk scores, classifies them into severities with deterministic actions, chains escalations, and commits every decision into two independently signed append-only registries.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
