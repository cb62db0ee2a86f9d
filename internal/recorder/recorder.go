package recorder

import (
	"SetupScanner/internal/backtest"
	"SetupScanner/internal/scan"
)

// Recorder persists scan and backtest results for later analysis.
type Recorder interface {
	RecordScan(res *scan.Result) error
	RecordBacktest(res *backtest.Result) error
	Close() error
}
