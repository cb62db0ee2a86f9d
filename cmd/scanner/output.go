package main

import (
	"encoding/json"
	"io"
	"math"
	"time"

	"SetupScanner/internal/backtest"
	"SetupScanner/internal/model"
	"SetupScanner/internal/scan"
)

const dateLayout = "2006-01-02"

type failureJSON struct {
	Symbol string `json:"symbol"`
	Error  string `json:"error"`
}

type setupJSON struct {
	Rank              int                `json:"rank"`
	Symbol            string             `json:"symbol"`
	Date              string             `json:"date"`
	Close             float64            `json:"close"`
	Score             float64            `json:"score"`
	SubScores         map[string]float64 `json:"sub_scores"`
	ConsolidationBars int                `json:"consolidation_bars,omitempty"`
	RangeHigh         float64            `json:"range_high,omitempty"`
	RangeLow          float64            `json:"range_low,omitempty"`
	RangePct          float64            `json:"range_pct,omitempty"`
	PositionInRange   float64            `json:"position_in_range,omitempty"`
	Momentum          string             `json:"momentum"`
	ForceIndex        float64            `json:"force_index"`
	NormPrice         float64            `json:"normalized_price"`
	Fader             string             `json:"fader"`
	VolumeRatio       float64            `json:"volume_ratio"`
	Zone              string             `json:"zone,omitempty"`
	ZonePosition      float64            `json:"zone_position,omitempty"`
}

type scanJSON struct {
	StartedAt  time.Time     `json:"started_at"`
	DurationMs int64         `json:"duration_ms"`
	Scanned    int           `json:"scanned"`
	Setups     []setupJSON   `json:"setups"`
	Failures   []failureJSON `json:"failures"`
}

func failures(in []model.SymbolFailure) []failureJSON {
	out := make([]failureJSON, 0, len(in))
	for _, f := range in {
		out = append(out, failureJSON{Symbol: f.Symbol, Error: f.Err.Error()})
	}
	return out
}

func scanView(res *scan.Result) scanJSON {
	v := scanJSON{
		StartedAt:  res.StartedAt,
		DurationMs: res.Duration.Milliseconds(),
		Scanned:    res.Scanned,
		Setups:     make([]setupJSON, 0, len(res.Setups)),
		Failures:   failures(res.Failures),
	}
	for i, s := range res.Setups {
		sub := map[string]float64{}
		for name, p := range map[string]*float64{
			"consolidation": s.SubScores.Consolidation,
			"extremity":     s.SubScores.Extremity,
			"momentum":      s.SubScores.Momentum,
			"volume":        s.SubScores.Volume,
		} {
			if p != nil {
				sub[name] = *p
			}
		}
		row := setupJSON{
			Rank:        i + 1,
			Symbol:      s.Symbol,
			Date:        s.Time.Format(dateLayout),
			Close:       s.Close,
			Score:       s.Score,
			SubScores:   sub,
			Momentum:    s.Momentum.String(),
			ForceIndex:  s.ForceIndex,
			NormPrice:   s.NormPrice,
			Fader:       s.Fader.String(),
			VolumeRatio: s.VolumeRatio,
		}
		if s.Zone != model.ZoneUnset {
			row.Zone, row.ZonePosition = s.Zone.String(), s.ZonePosition
		}
		if r := s.Range; r != nil {
			row.ConsolidationBars = r.Duration()
			row.RangeHigh, row.RangeLow = r.High, r.Low
			row.RangePct = r.WidthPct()
			row.PositionInRange = s.PositionInRange
		}
		v.Setups = append(v.Setups, row)
	}
	return v
}

type statsJSON struct {
	Trades      int     `json:"trades"`
	EarlyExits  int     `json:"early_exits"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	Truncated   int     `json:"truncated"`
	WinRate     float64 `json:"win_rate"`
	MeanReturn  float64 `json:"mean_return_pct"`
	TotalReturn float64 `json:"total_return_pct"`
	Median      float64 `json:"median_return_pct"`
	Best        float64 `json:"best_return_pct"`
	Worst       float64 `json:"worst_return_pct"`
}

type bucketJSON struct {
	Label string    `json:"label"`
	Min   float64   `json:"min"`
	Max   *float64  `json:"max,omitempty"`
	Stats statsJSON `json:"stats"`
}

type symbolJSON struct {
	Symbol        string    `json:"symbol"`
	BarsEvaluated int       `json:"bars_evaluated"`
	Excluded      int       `json:"excluded"`
	InvalidEntry  int       `json:"invalid_entry"`
	Stats         statsJSON `json:"stats"`
}

type tradeJSON struct {
	Symbol     string  `json:"symbol"`
	Signal     string  `json:"signal_date"`
	Entry      string  `json:"entry_date"`
	EntryPrice float64 `json:"entry_price"`
	Exit       string  `json:"exit_date"`
	ExitPrice  float64 `json:"exit_price"`
	ReturnPct  float64 `json:"return_pct"`
	Score      float64 `json:"score"`
	Momentum   string  `json:"momentum"`
	Held       int     `json:"held"`
	ExitReason string  `json:"exit_reason"`
	Truncated  bool    `json:"truncated,omitempty"`
}

type backtestJSON struct {
	StartedAt      time.Time     `json:"started_at"`
	DurationMs     int64         `json:"duration_ms"`
	HoldingPeriod  int           `json:"holding_period"`
	Entry          string        `json:"entry"`
	Exit           string        `json:"exit"`
	AllowTruncated bool          `json:"allow_truncated"`
	Stats          statsJSON     `json:"stats"`
	Buckets        []bucketJSON  `json:"price_buckets"`
	Symbols        []symbolJSON  `json:"symbols"`
	Trades         []tradeJSON   `json:"trades,omitempty"`
	Failures       []failureJSON `json:"failures"`
}

func statsView(s model.BacktestStats) statsJSON {
	return statsJSON(s)
}

func backtestView(res *backtest.Result, withTrades bool) backtestJSON {
	v := backtestJSON{
		StartedAt:      res.StartedAt,
		DurationMs:     res.Duration.Milliseconds(),
		HoldingPeriod:  res.HoldingPeriod,
		Entry:          string(res.Entry),
		Exit:           string(res.Exit),
		AllowTruncated: res.AllowTruncated,
		Stats:          statsView(res.Stats),
		Failures:       failures(res.Failures),
	}
	for _, b := range res.Buckets {
		bj := bucketJSON{Label: b.Label, Min: b.Min, Stats: statsView(b.Stats)}
		if !math.IsInf(b.Max, 1) {
			hi := b.Max
			bj.Max = &hi
		}
		v.Buckets = append(v.Buckets, bj)
	}
	for _, sb := range res.Symbols {
		v.Symbols = append(v.Symbols, symbolJSON{
			Symbol:        sb.Symbol,
			BarsEvaluated: sb.BarsEvaluated,
			Excluded:      sb.Excluded,
			InvalidEntry:  sb.InvalidEntry,
			Stats:         statsView(sb.Stats),
		})
	}
	if withTrades {
		for _, t := range res.Trades {
			v.Trades = append(v.Trades, tradeJSON{
				Symbol:     t.Symbol,
				Signal:     t.SignalTime.Format(dateLayout),
				Entry:      t.EntryTime.Format(dateLayout),
				EntryPrice: t.EntryPrice,
				Exit:       t.ExitTime.Format(dateLayout),
				ExitPrice:  t.ExitPrice,
				ReturnPct:  t.ReturnPct,
				Score:      t.Score,
				Momentum:   t.Momentum.String(),
				Held:       t.Held(),
				ExitReason: string(t.ExitReason),
				Truncated:  t.Truncated,
			})
		}
	}
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
