package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/balu-16/certificate-place-final/pkg/diagnostics"
)

var sampleOutput string

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Write a minimal valid PDF for testing the delivery path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := diagnostics.SamplePDF()
		if err != nil {
			return err
		}
		if err := os.WriteFile(sampleOutput, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", sampleOutput, err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), diagnostics.ValidatePDF(data))
		}
		successColor.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s (%d bytes)\n", sampleOutput, len(data))
		return nil
	},
}

func init() {
	sampleCmd.Flags().StringVarP(&sampleOutput, "output", "o", "test.pdf", "Output PDF path")
	rootCmd.AddCommand(sampleCmd)
}
