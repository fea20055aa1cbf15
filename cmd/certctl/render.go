package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/balu-16/certificate-place-final/pkg/bytea"
	"github.com/balu-16/certificate-place-final/pkg/diagnostics"
	"github.com/balu-16/certificate-place-final/pkg/pdf"
)

var (
	renderOutput   string
	diagnoseOutput string
)

var renderCmd = &cobra.Command{
	Use:   "render [input]",
	Short: "Render a certificate payload to a PDF file",
	Long:  "Decodes a certificate payload and writes the PDF it holds. Image payloads (PNG, JPEG, GIF, WebP, BMP, TIFF or an image data URL) are placed on a landscape 11 x 8.2 inch page.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRender,
}

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose [input]",
	Short: "Run a payload through decode, detection, assembly and validation",
	Long:  "Runs the full delivery pipeline on a certificate payload and reports every step, the PDF header and trailer checks, and why the payload cannot be served when it fails.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDiagnose,
}

func init() {
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "certificate.pdf", "Output PDF path")
	diagnoseCmd.Flags().StringVarP(&diagnoseOutput, "output", "o", "", "Also write the rendered PDF to this path")
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(diagnoseCmd)
}

func probe(cmd *cobra.Command, args []string) (*diagnostics.ProbeResult, error) {
	raw, err := readInput(argOrEmpty(args), cmd.InOrStdin())
	if err != nil {
		return nil, err
	}
	logger := cliLogger()
	inspector := diagnostics.NewInspector(bytea.NewDecoder(logger), pdf.NewAssembler(pdf.DefaultOptions(), logger), logger)
	return inspector.Probe(cmd.Context(), raw), nil
}

func runRender(cmd *cobra.Command, args []string) error {
	result, err := probe(cmd, args)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("cannot render certificate: %s", result.Error)
	}
	if err := os.WriteFile(renderOutput, result.Document, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", renderOutput, err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{"output": renderOutput, "size": result.Size})
	}
	successColor.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s (%d bytes)\n", renderOutput, result.Size)
	return nil
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	result, err := probe(cmd, args)
	if err != nil {
		return err
	}

	if result.Success && diagnoseOutput != "" {
		if err := os.WriteFile(diagnoseOutput, result.Document, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", diagnoseOutput, err)
		}
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), result)
	}
	printProbe(cmd.OutOrStdout(), result)
	return nil
}
