package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "comitebot",
	Short: "Telegram bot that relays committee queries and suggestions",
	Long: "comitebot collects one private message per button press from members of the " +
		"source group and forwards it to the committee's topics in the destination group.",
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load before reading the environment (default ./.env when present)")
}
