package integrity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ErrScanRunning is returned by RunNow while another scan is in progress.
var ErrScanRunning = errors.New("integrity scan already running")

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule checks a five field cron expression or descriptor.
func ValidateSchedule(expr string) error {
	_, err := scheduleParser.Parse(expr)
	return err
}

// RunResult is the outcome of one scheduled or manual scan.
type RunResult struct {
	Summary    *Summary
	ReportPath string
}

// Scheduler runs the integrity scan on a cron schedule and writes each
// summary to an XLSX workbook.
type Scheduler struct {
	scanner   *Scanner
	exporter  *ExcelExporter
	outputDir string
	timeout   time.Duration
	logger    *zap.Logger

	cron    *cron.Cron
	entryID cron.EntryID

	mu      sync.Mutex
	running bool
	busy    bool
	last    *RunResult
}

func NewScheduler(scanner *Scanner, exporter *ExcelExporter, outputDir string, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if exporter == nil {
		exporter = NewExcelExporter(DefaultExcelOptions())
	}
	return &Scheduler{
		scanner:   scanner,
		exporter:  exporter,
		outputDir: outputDir,
		timeout:   30 * time.Minute,
		logger:    logger.Named("scheduler"),
		cron:      cron.New(cron.WithParser(scheduleParser)),
	}
}

// Start registers the scan under expr and starts the cron loop.
func (s *Scheduler) Start(expr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("integrity scheduler already running")
	}

	entryID, err := s.cron.AddFunc(expr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if _, err := s.RunNow(ctx); err != nil && !errors.Is(err, ErrScanRunning) {
			s.logger.Error("Scheduled integrity scan failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.entryID = entryID
	s.running = true
	s.cron.Start()

	s.logger.Info("Integrity scheduler started",
		zap.String("schedule", expr),
		zap.Time("next_run", s.cron.Entry(entryID).Next))
	return nil
}

// Stop halts the cron loop and waits for a scan in progress to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Stopping integrity scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// NextRun returns the next scheduled run, or the zero time when stopped.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// LastResult returns the most recent completed run, if any.
func (s *Scheduler) LastResult() *RunResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// RunNow scans immediately. Overlapping runs are rejected with ErrScanRunning.
func (s *Scheduler) RunNow(ctx context.Context) (*RunResult, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		s.logger.Warn("Skipping integrity scan, previous run still in progress")
		return nil, ErrScanRunning
	}
	s.busy = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	summary, err := s.scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := &RunResult{Summary: summary}
	if s.outputDir != "" {
		path, err := s.exporter.Save(summary, s.outputDir)
		if err != nil {
			return result, err
		}
		result.ReportPath = path
		s.logger.Info("Integrity report written", zap.String("path", path))
	}

	s.mu.Lock()
	s.last = result
	s.mu.Unlock()
	return result, nil
}
