package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pulseloop/pulseloop/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactive setup: configure provider, platform, and secrets",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.RunWizard()
		exitOnError(err)
		fmt.Printf("Configured provider %s. Run `pulseloop serve` to start.\n", cfg.Provider)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
