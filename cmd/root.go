// Package cmd holds the gitfeed command line.
package cmd

import (
	"errors"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"gitfeed/internal"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "gitfeed",
	Short: "GitHub webhook listener and activity feed",
	Long: `gitfeed receives GitHub push and pull request webhooks, stores them as
flat activity records and serves the most recent ones to a polling page.

Running gitfeed without a subcommand starts the server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "path to config file")
	rootCmd.AddCommand(serveCmd, tailCmd, normalizeCmd, followCmd)
}

// loadConfig reads the config file. When the default file is absent the
// configuration comes from the environment alone.
func loadConfig(cmd *cobra.Command) (internal.Config, error) {
	internal.LoadDotenv()
	if _, err := os.Stat(cfgFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
			return internal.ConfigFromEnv(), nil
		}
		return internal.Config{}, err
	}
	return internal.LoadConfig(cfgFile)
}
