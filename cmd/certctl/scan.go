package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/balu-16/certificate-place-final/internal/certificates"
	"github.com/balu-16/certificate-place-final/internal/config"
	"github.com/balu-16/certificate-place-final/internal/database"
	"github.com/balu-16/certificate-place-final/internal/integrity"
	"github.com/balu-16/certificate-place-final/pkg/bytea"
	"github.com/balu-16/certificate-place-final/pkg/diagnostics"
	"github.com/balu-16/certificate-place-final/pkg/pdf"
)

var (
	scanConfig    string
	scanBatchSize int
	scanOutputDir string
	scanNoReport  bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Check every approved certificate in the database",
	Long:  "Connects to the database from the service configuration, inspects every approved certificate payload and writes an XLSX report of the results.",
	Args:  cobra.NoArgs,
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanConfig, "config", "config.json", "Service config file")
	scanCmd.Flags().IntVar(&scanBatchSize, "batch-size", 0, "Rows per query (default from config)")
	scanCmd.Flags().StringVar(&scanOutputDir, "out", "", "Report directory (default from config)")
	scanCmd.Flags().BoolVar(&scanNoReport, "no-report", false, "Skip writing the XLSX report")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(scanConfig)
	if err != nil {
		return err
	}
	if scanBatchSize > 0 {
		cfg.Scan.BatchSize = scanBatchSize
	}
	if scanOutputDir != "" {
		cfg.Scan.OutputDir = scanOutputDir
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	logger := cliLogger()
	inspector := diagnostics.NewInspector(bytea.NewDecoder(logger), pdf.NewAssembler(pdf.DefaultOptions(), logger), logger)
	scanner := integrity.NewScanner(certificates.NewRepository(db), inspector, cfg.Scan.BatchSize, logger)

	summary, err := scanner.Scan(cmd.Context())
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	reportPath := ""
	if !scanNoReport {
		reportPath, err = integrity.NewExcelExporter(integrity.DefaultExcelOptions()).Save(summary, cfg.Scan.OutputDir)
		if err != nil {
			return err
		}
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{"summary": summary, "report": reportPath})
	}
	printScan(cmd.OutOrStdout(), summary, reportPath)
	return nil
}
