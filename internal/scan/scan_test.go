package scan

import (
	"context"
	"errors"
	"testing"
	"time"

	"SetupScanner/internal/collector"
	"SetupScanner/internal/config"
	"SetupScanner/internal/model"
)

var day0 = time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)

// rangeBound oscillates inside 99..101; the last bar carries lastVolume
// against a 1000 baseline.
func rangeBound(symbol string, n int, lastVolume float64) *model.PriceSeries {
	s := &model.PriceSeries{Symbol: symbol}
	for i := 0; i < n; i++ {
		b := model.OHLCV{Time: day0.AddDate(0, 0, i), High: 101, Low: 100, Close: 100.5, Volume: 1000}
		if i%2 == 1 {
			b.High, b.Low, b.Close = 100, 99, 99.5
		}
		b.Open = b.Close
		s.Bars = append(s.Bars, b)
	}
	s.Bars[n-1].Volume = lastVolume
	return s
}

func testEngine(t *testing.T, cfg *config.Config, f collector.Fetcher) *Engine {
	t.Helper()
	e, err := New(cfg, collector.NewCollector(f, nil), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func consolidationOnly() *config.Config {
	cfg := config.Default()
	cfg.Criteria.Active = []config.CriterionName{config.CriterionConsolidation}
	cfg.Scan.Workers = 2
	return cfg
}

func TestRun_RanksAndRecordsFailures(t *testing.T) {
	f := &collector.MockFetcher{
		Series: map[string]*model.PriceSeries{
			"CCC":   rangeBound("CCC", 80, 1200),
			"AAA":   rangeBound("AAA", 80, 3000),
			"BBB":   rangeBound("BBB", 80, 1200),
			"SHORT": rangeBound("SHORT", 30, 1000),
		},
		Errors: map[string]error{"GONE": errors.New("file missing")},
	}
	res, err := testEngine(t, consolidationOnly(), f).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Scanned != 5 {
		t.Errorf("scanned = %d, want 5", res.Scanned)
	}
	want := []string{"AAA", "BBB", "CCC"}
	if len(res.Setups) != len(want) {
		t.Fatalf("setups = %+v", res.Setups)
	}
	for i, sym := range want {
		if res.Setups[i].Symbol != sym {
			t.Errorf("rank %d = %s, want %s", i, res.Setups[i].Symbol, sym)
		}
	}
	if res.Setups[0].Score != 50 || res.Setups[1].Score != res.Setups[2].Score {
		t.Errorf("unexpected scores %.2f %.2f %.2f", res.Setups[0].Score, res.Setups[1].Score, res.Setups[2].Score)
	}

	if len(res.Failures) != 2 || res.Failures[0].Symbol != "GONE" || res.Failures[1].Symbol != "SHORT" {
		t.Fatalf("failures = %+v", res.Failures)
	}
	if !errors.Is(res.Failures[1].Err, model.ErrInsufficientData) {
		t.Errorf("short series should fail with ErrInsufficientData, got %v", res.Failures[1].Err)
	}
}

func TestRun_ConfigErrorBeforeScan(t *testing.T) {
	cfg := consolidationOnly()
	cfg.Indicators.Consolidation.MinWindow = -3
	_, err := New(cfg, collector.NewCollector(&collector.MockFetcher{}, nil), nil)
	var ce *model.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestRun_Cancelled(t *testing.T) {
	f := &collector.MockFetcher{Generated: []string{"A", "B", "C"}, Bars: 100}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := testEngine(t, consolidationOnly(), f).Run(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestScanSeries_LookbackWindow(t *testing.T) {
	s := rangeBound("WIN", 80, 1000)
	// break the range on the last two bars
	for i := 78; i < 80; i++ {
		s.Bars[i].High, s.Bars[i].Low, s.Bars[i].Close = 140, 130, 135
	}

	cfg := consolidationOnly()
	rec, err := testEngine(t, cfg, &collector.MockFetcher{}).ScanSeries(s)
	if err != nil {
		t.Fatal(err)
	}
	if rec != nil {
		t.Fatalf("last bar is a breakout, expected no setup, got bar %d", rec.Index)
	}

	cfg.Scan.LookbackBars = 5
	rec, err = testEngine(t, cfg, &collector.MockFetcher{}).ScanSeries(s)
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil || rec.Index != 77 {
		t.Fatalf("expected the most recent passing bar 77, got %+v", rec)
	}
}

func TestRank(t *testing.T) {
	setups := []model.SetupRecord{
		{Symbol: "B", Score: 40},
		{Symbol: "A", Score: 40},
		{Symbol: "C", Score: 90},
		{Symbol: "D", Score: 10},
	}
	Rank(setups)
	got := ""
	for _, s := range setups {
		got += s.Symbol
	}
	if got != "CABD" {
		t.Errorf("rank order = %s, want CABD", got)
	}
}
