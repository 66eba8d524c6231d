package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/born-ml/dac/internal/dac"
	"github.com/born-ml/dac/internal/pipeline"
)

// Report flags
var (
	reportPath   string
	reportFormat string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full attribution pipeline",
	Long: `Run trains the classifier and the CycleGAN, generates counterfactuals for the
analysis split, selects the successful ones and writes a report with the
attribution summaries, hybrid classifications and threshold sweeps.

When no counterfactual fools the classifier the partial report is still written
and the command fails.

Examples:
  dac run
  dac run --report report.yaml
  dac run --report-format json --log-format json`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&reportPath, "report", "o", "", "write the report to this file instead of stdout")
	runCmd.Flags().StringVar(&reportFormat, "report-format", "yaml", "report format: yaml or json")
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}

	report, runErr := pipeline.Run(cmd.Context(), cfg, logger)
	if report != nil {
		if err := writeReport(cmd, report); err != nil {
			return err
		}
	}
	if errors.Is(runErr, dac.ErrNoSuccessfulConversions) {
		return fmt.Errorf("%w: train longer or lower training.discriminator_lr", runErr)
	}
	return runErr
}

func writeReport(cmd *cobra.Command, v any) error {
	out, err := pipeline.Encode(v, pipeline.Format(reportFormat))
	if err != nil {
		return err
	}
	if reportPath == "" {
		_, err = cmd.OutOrStdout().Write(out)
		return err
	}
	return os.WriteFile(reportPath, out, 0o644)
}
