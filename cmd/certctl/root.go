package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/balu-16/certificate-place-final/pkg/logging"
)

var (
	jsonOutput bool
	noColor    bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "certctl",
	Short: "Decode, diagnose and render stored certificate payloads",
	Long:  "A CLI for the certificate service. Decodes bytea payloads in any stored shape, reports what they contain, renders them to PDF and scans the database for broken certificates. Input can be a file path, a raw payload string, or piped via stdin.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
}

func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", errorColor.Sprint("Error:"), err)
		return err
	}
	return nil
}

// cliLogger logs decoder internals to stderr only when --verbose is set.
func cliLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	return logging.Must("debug", true)
}
