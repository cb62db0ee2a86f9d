package recorder

import (
	"SetupScanner/internal/backtest"
	"SetupScanner/internal/scan"
)

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordScan(_ *scan.Result) error         { return nil }
func (n *NoopRecorder) RecordBacktest(_ *backtest.Result) error { return nil }
func (n *NoopRecorder) Close() error                            { return nil }
