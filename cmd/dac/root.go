package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/born-ml/dac/internal/config"
	"github.com/born-ml/dac/internal/logging"
)

// Persistent flags
var (
	configPath string
	logLevel   string
	logFormat  string
	seed       int64
)

var rootCmd = &cobra.Command{
	Use:   "dac",
	Short: "Discriminative attribution from counterfactuals",
	Long: `dac trains a classifier and a style-conditioned CycleGAN on a two-class
synthetic colour dataset, translates every analysis image to the other class,
keeps the translations that fool the classifier and explains the decision with
integrated gradients against the counterfactual.

Examples:
  dac run                                   # YAML report to stdout
  dac run --config dac.yaml --report out.json --report-format json
  dac baselines --samples 16                # zero / uniform / blur baselines
  dac config > dac.yaml                     # effective configuration`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file (defaults when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 0, "random seed (overrides the configuration when set)")

	rootCmd.AddCommand(runCmd, baselinesCmd, configCmd, versionCmd)
}

// loadConfig reads --config and applies flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return cfg, err
		}
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = seed
		cfg.Training.Seed = seed
	}
	return cfg, cfg.Validate()
}

// newLogger builds the stderr logger from the persistent flags.
func newLogger() (*slog.Logger, error) {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	return logging.New(os.Stderr, level, logging.Format(logFormat))
}
