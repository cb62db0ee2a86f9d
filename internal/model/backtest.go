package model

import "time"

// EntryPolicy fixes the fill price of a hypothetical entry.
type EntryPolicy string

const (
	EntryClose    EntryPolicy = "close"
	EntryNextOpen EntryPolicy = "next_open"
)

// ExitPolicy decides when a trade closes before its holding period ends.
type ExitPolicy string

const (
	// ExitFixed always holds for the full holding period.
	ExitFixed ExitPolicy = "fixed"
	// ExitNormCrossDown closes on the first bar whose normalized price
	// crosses down through zero, or at the holding period.
	ExitNormCrossDown ExitPolicy = "norm_cross_down"
)

// ExitReason records why a trade closed.
type ExitReason string

const (
	ReasonHoldingPeriod ExitReason = "holding_period"
	ReasonNormCrossDown ExitReason = "norm_cross_down"
	ReasonEndOfData     ExitReason = "end_of_data"
)

// BacktestTrade is one hypothetical entry opened on a passing bar.
type BacktestTrade struct {
	Symbol      string
	SignalIndex int // bar that passed the evaluator
	SignalTime  time.Time
	EntryIndex  int
	EntryTime   time.Time
	EntryPrice  float64
	ExitIndex   int
	ExitTime    time.Time
	ExitPrice   float64
	ReturnPct   float64
	Score       float64
	Momentum    MomentumState
	ExitReason  ExitReason
	Truncated   bool
}

// Held is the number of bars between entry and exit.
func (t BacktestTrade) Held() int { return t.ExitIndex - t.EntryIndex }

// Win reports a strictly positive return.
func (t BacktestTrade) Win() bool { return t.ReturnPct > 0 }

// BacktestStats aggregates closed (non-truncated) trades.
type BacktestStats struct {
	Trades      int
	EarlyExits  int // closed by the exit policy before the holding period
	Wins        int
	Losses      int
	Truncated   int
	WinRate     float64 // 0-1
	MeanReturn  float64 // percent
	TotalReturn float64 // simple sum of percent returns
	Median      float64
	Best        float64
	Worst       float64
}

// PriceBucketStats is BacktestStats restricted to an entry-price band.
type PriceBucketStats struct {
	Label string
	Min   float64
	Max   float64 // +Inf for the open top bucket
	Stats BacktestStats
}

// SymbolBacktest is the replay outcome of one symbol.
type SymbolBacktest struct {
	Symbol        string
	BarsEvaluated int
	Excluded      int // indeterminate bars
	InvalidEntry  int // passing bars skipped for a non-positive entry price
	Trades        []BacktestTrade
	Stats         BacktestStats
}
