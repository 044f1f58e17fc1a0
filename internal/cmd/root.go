package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "dashauth",
	Short: "Session and company-scoped authorization service for the dashboard",
	Long: `dashauth issues signed session cookies for dashboard users, rate-limits
login attempts and answers per-company capability checks.

Configuration is read from a YAML file (--config) and DASHAUTH_* environment
variables, which take precedence over the file.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, which serve uses for
// shutdown.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
