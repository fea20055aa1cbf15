package main

import (
	"github.com/spf13/cobra"

	"github.com/balu-16/certificate-place-final/pkg/bytea"
	"github.com/balu-16/certificate-place-final/pkg/diagnostics"
)

var decodeCmd = &cobra.Command{
	Use:   "decode [input]",
	Short: "Detect the stored shape of a certificate payload and decode it",
	Long:  "Decodes a certificate payload stored as hex (\\x...), JSON byte array, base64 or a binary string, and reports the detected format, decoded size and whether the bytes start with a PDF header.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	raw, err := readInput(argOrEmpty(args), cmd.InOrStdin())
	if err != nil {
		return err
	}

	logger := cliLogger()
	inspector := diagnostics.NewInspector(bytea.NewDecoder(logger), nil, logger)
	report := inspector.Inspect(raw, "input")

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), report)
	}
	printReport(cmd.OutOrStdout(), report)
	return nil
}
