package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "pulseloop",
	Short: "AI-mediated feedback conversations over Slack, Google Chat, and Teams",
	Long: `PulseLoop runs short, bounded feedback conversations (peer review,
360, self-reflection, pulse check) through the messaging platform your
organization already uses. It normalizes each platform's wire protocol
into one canonical message model and drives turn-taking with an LLM.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".pulseloop.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
