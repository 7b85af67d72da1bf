// Package cli implements the syncqueue command line
package cli

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jzx17/syncqueue/internal/logging"
)

// Options are the persistent flags shared by all commands
type Options struct {
	ManifestPath string
	Debug        bool
	JSON         bool
	EnvFile      string
}

// NewRootCmd builds the syncqueue command tree
func NewRootCmd(version string) *cobra.Command {
	opts := &Options{}

	rootCmd := &cobra.Command{
		Use:           "syncqueue",
		Short:         "Priority batch execution engine for sync jobs",
		Long:          `syncqueue runs a manifest of dependent sync jobs with bounded concurrency, timeouts and classified retries.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.EnvFile != "" {
				// a missing .env file is not an error
				_ = godotenv.Load(opts.EnvFile)
			}
			logOpts := logging.FromEnv()
			logOpts.Debug = opts.Debug
			logOpts.Writer = cmd.ErrOrStderr()
			logging.Setup(logOpts)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.ManifestPath, "manifest", "f", "manifest.yaml", "manifest file")
	rootCmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&opts.JSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file loaded before the manifest")

	rootCmd.AddCommand(
		newRunCmd(opts),
		newValidateCmd(opts),
	)

	return rootCmd
}
