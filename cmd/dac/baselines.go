package main

import (
	"github.com/spf13/cobra"

	"github.com/born-ml/dac/internal/pipeline"
)

var baselineSamples int

var baselinesCmd = &cobra.Command{
	Use:   "baselines",
	Short: "Compare attribution baselines on a batch",
	Long: `Baselines trains the classifier and attributes its decision on the first
analysis samples against each of attribution.baselines (zero, uniform noise or
a Gaussian blur of the input). The report gives the attribution magnitude and
how far each result is from the completeness identity.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := newLogger()
		if err != nil {
			return err
		}
		report, err := pipeline.Baselines(cmd.Context(), cfg, baselineSamples, logger)
		if err != nil {
			return err
		}
		return writeReport(cmd, report)
	},
}

func init() {
	baselinesCmd.Flags().IntVarP(&baselineSamples, "samples", "n", 8, "number of analysis samples to attribute")
	baselinesCmd.Flags().StringVarP(&reportPath, "report", "o", "", "write the report to this file instead of stdout")
	baselinesCmd.Flags().StringVar(&reportFormat, "report-format", "yaml", "report format: yaml or json")
}
