package main

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"SetupScanner/internal/backtest"
	"SetupScanner/internal/model"
	"SetupScanner/internal/scan"
)

func ptr(v float64) *float64 { return &v }

func TestScanViewRanksAndOmitsInactiveSubScores(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	res := &scan.Result{
		Scanned: 3,
		Setups: []model.SetupRecord{
			{Symbol: "AAA", Time: day, Score: 50, SubScores: model.SubScores{Consolidation: ptr(25), Volume: ptr(25)},
				Range: &model.ConsolidationRange{StartIndex: 10, EndIndex: 59, High: 110, Low: 100}, PositionInRange: 20},
			{Symbol: "BBB", Time: day, Score: 10, SubScores: model.SubScores{Volume: ptr(10)}},
		},
		Failures: []model.SymbolFailure{{Symbol: "CCC", Err: errors.New("boom")}},
	}

	v := scanView(res)
	if len(v.Setups) != 2 || v.Setups[0].Rank != 1 || v.Setups[1].Rank != 2 {
		t.Fatalf("unexpected ranks: %+v", v.Setups)
	}
	a := v.Setups[0]
	if a.ConsolidationBars != 50 || a.RangePct != 10 || a.Date != "2024-03-01" {
		t.Errorf("range fields = %d %.2f %s", a.ConsolidationBars, a.RangePct, a.Date)
	}
	if _, ok := v.Setups[1].SubScores["consolidation"]; ok {
		t.Error("inactive sub-score should be omitted")
	}
	if v.Failures[0].Error != "boom" {
		t.Errorf("failure = %+v", v.Failures[0])
	}
}

func TestBacktestViewOpenBucketAndTrades(t *testing.T) {
	res := &backtest.Result{
		HoldingPeriod: 5,
		Entry:         model.EntryClose,
		Buckets: []model.PriceBucketStats{
			{Label: "$0-10", Min: 0, Max: 10},
			{Label: "$10+", Min: 10, Max: math.Inf(1)},
		},
		Trades: []model.BacktestTrade{{Symbol: "AAA", ReturnPct: 2.5, EntryIndex: 3, ExitIndex: 7,
			ExitReason: model.ReasonNormCrossDown}},
	}

	v := backtestView(res, false)
	if v.Trades != nil {
		t.Error("trades should be omitted unless requested")
	}
	if v.Buckets[0].Max == nil || *v.Buckets[0].Max != 10 {
		t.Errorf("closed bucket max = %v", v.Buckets[0].Max)
	}
	if v.Buckets[1].Max != nil {
		t.Error("open bucket should have no max")
	}

	var buf bytes.Buffer
	if err := writeJSON(&buf, backtestView(res, true)); err != nil {
		t.Fatalf("writeJSON: %v", err)
	}
	for _, want := range []string{`"return_pct": 2.5`, `"held": 4`, `"exit_reason": "norm_cross_down"`} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %s:\n%s", want, buf.String())
		}
	}
}
