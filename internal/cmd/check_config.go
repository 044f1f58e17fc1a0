package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/c2tech/dashauth"
	"github.com/c2tech/dashauth/store/memory"
)

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate the configuration and print the security report",
	Long: `Validate the configuration without contacting any store and print the
resulting security posture: production mode, degraded signing secret,
break-glass status, cookie policy and rate-limit backend.

With --strict the command fails when the report carries warnings.`,
	RunE: runCheckConfig,
}

var checkStrict bool

func init() {
	checkConfigCmd.Flags().BoolVar(&checkStrict, "strict", false, "exit non-zero when the report has warnings")
	rootCmd.AddCommand(checkConfigCmd)
}

func runCheckConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath, nil)
	if err != nil {
		return err
	}
	return checkConfig(cmd.Context(), cfg, cmd.OutOrStdout(), checkStrict)
}

func checkConfig(ctx context.Context, cfg FileConfig, out io.Writer, strict bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	engine, closeEngine, err := buildEngine(ctx, cfg, memory.New(), log, false)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	defer closeEngine()

	report := engine.SecurityReport()
	data, err := yaml.Marshal(struct {
		Store  string                  `yaml:"store"`
		Report dashauth.SecurityReport `yaml:"report"`
	}{Store: cfg.Store.Driver, Report: report})
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if _, err := out.Write(data); err != nil {
		return err
	}

	if strict && len(report.Warnings) > 0 {
		return fmt.Errorf("security report has %d warning(s)", len(report.Warnings))
	}
	return nil
}
