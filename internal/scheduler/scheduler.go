package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"SetupScanner/internal/recorder"
	"SetupScanner/internal/scan"
)

// ErrScanRunning is returned when a scan is requested while another one is
// still in flight.
var ErrScanRunning = errors.New("scan already running")

// Scanner runs one live scan over a universe.
type Scanner interface {
	Run(ctx context.Context, symbols []string) (*scan.Result, error)
}

// Scheduler triggers recurring live scans and records their results.
type Scheduler struct {
	Cron     *cron.Cron
	Scanner  Scanner
	Recorder recorder.Recorder
	Symbols  []string
	Ctx      context.Context
	// OnResult, when set, receives every successful scan result.
	OnResult func(*scan.Result)

	running sync.Mutex
}

// NewScheduler creates a new Scheduler. At most one scan runs at a time: a
// cron tick or RunNow call that arrives while a scan is in flight is skipped.
func NewScheduler(ctx context.Context, sc Scanner, rec recorder.Recorder, symbols []string) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		Scanner:  sc,
		Recorder: rec,
		Symbols:  symbols,
		Ctx:      ctx,
	}
}

// Register adds the scan task on a six-field (seconds first) cron spec.
func (s *Scheduler) Register(scanCron string) error {
	if _, err := s.Cron.AddFunc(scanCron, s.scanTask); err != nil {
		return fmt.Errorf("register scan task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Int("jobs", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running scan to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// RunNow executes the scan task immediately (manual trigger / run on start).
func (s *Scheduler) RunNow() (*scan.Result, error) {
	return s.runScan()
}

func (s *Scheduler) scanTask() {
	if _, err := s.runScan(); errors.Is(err, ErrScanRunning) {
		log.Warn().Msg("previous scan still running, tick skipped")
	} else if err != nil {
		log.Error().Err(err).Msg("scheduled scan failed")
	}
}

func (s *Scheduler) runScan() (*scan.Result, error) {
	if !s.running.TryLock() {
		return nil, ErrScanRunning
	}
	defer s.running.Unlock()

	log.Info().Msg("running scan task")
	res, err := s.Scanner.Run(s.Ctx, s.Symbols)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if err := s.Recorder.RecordScan(res); err != nil {
		log.Error().Err(err).Msg("record scan")
	}
	if s.OnResult != nil {
		s.OnResult(res)
	}
	return res, nil
}
