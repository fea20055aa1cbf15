package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/balu-16/certificate-place-final/internal/certificates"
	"github.com/balu-16/certificate-place-final/internal/config"
	"github.com/balu-16/certificate-place-final/internal/database"
	"github.com/balu-16/certificate-place-final/internal/integrity"
	"github.com/balu-16/certificate-place-final/pkg/diagnostics"
	"github.com/balu-16/certificate-place-final/pkg/logging"
	"github.com/balu-16/certificate-place-final/pkg/pdf"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	once := flag.Bool("once", false, "run a single scan and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logging.Must("info", false).Fatal("Failed to load configuration", zap.Error(err))
	}

	logger := logging.Must(cfg.Logging.Level, cfg.Logging.Development)
	defer logger.Sync()

	if err := integrity.ValidateSchedule(cfg.Scan.Schedule); err != nil {
		logger.Fatal("Invalid scan schedule", zap.String("schedule", cfg.Scan.Schedule), zap.Error(err))
	}

	// Connect to database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}
	logger.Info("Connected to database")

	inspector := diagnostics.NewInspector(nil, pdf.NewAssembler(pdf.DefaultOptions(), logger), logger)
	scanner := integrity.NewScanner(certificates.NewRepository(db), inspector, cfg.Scan.BatchSize, logger)
	scheduler := integrity.NewScheduler(scanner, integrity.NewExcelExporter(integrity.DefaultExcelOptions()), cfg.Scan.OutputDir, logger)

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	if *once || cfg.Scan.RunOnStart {
		result, err := scheduler.RunNow(ctx)
		if err != nil {
			logger.Error("Integrity scan failed", zap.Error(err))
		} else {
			logger.Info("Integrity scan finished",
				zap.Int("healthy", result.Summary.Healthy()),
				zap.Int("total", result.Summary.Total),
				zap.String("report", result.ReportPath))
		}
		if *once {
			return
		}
	}

	if err := scheduler.Start(cfg.Scan.Schedule); err != nil {
		logger.Fatal("Failed to start integrity scheduler", zap.Error(err))
	}

	logger.Info("Integrity worker running", zap.Time("next_run", scheduler.NextRun()))
	<-ctx.Done()

	scheduler.Stop()
	logger.Info("Integrity worker stopped")
}
