package backtest

import (
	"context"
	"errors"
	"math"
	"testing"

	"SetupScanner/internal/collector"
	"SetupScanner/internal/config"
	"SetupScanner/internal/model"
	"SetupScanner/internal/strategy"
)

func faderConfig() *config.Config {
	cfg := config.Default()
	cfg.Criteria.Active = []config.CriterionName{config.CriterionFader}
	cfg.Scan.Workers = 3
	return cfg
}

func mockUniverse(bars int, symbols ...string) *collector.Collector {
	return collector.NewCollector(&collector.MockFetcher{Generated: symbols, Bars: bars, Price: 25}, nil)
}

func TestReplay_TradesMatchQualifyingBars(t *testing.T) {
	cfg := faderConfig()
	col := mockUniverse(200, "SYN")
	e, err := New(cfg, col, nil)
	if err != nil {
		t.Fatal(err)
	}
	s, err := col.Load("SYN")
	if err != nil {
		t.Fatal(err)
	}
	sb, err := e.ReplaySeries(s)
	if err != nil {
		t.Fatal(err)
	}

	ev, _ := strategy.NewEvaluator(cfg)
	a, _ := ev.Prepare(s)
	qualifying := 0
	for i := a.WarmUp(); i <= 200-63-1; i++ {
		rec, err := a.Evaluate(i)
		if err != nil {
			t.Fatal(err)
		}
		if rec.Passed {
			qualifying++
		}
	}
	if qualifying == 0 {
		t.Fatal("fixture produced no passing bars")
	}
	if len(sb.Trades) != qualifying {
		t.Errorf("trades = %d, want %d qualifying bars", len(sb.Trades), qualifying)
	}
	for _, tr := range sb.Trades {
		if tr.ExitIndex > 199 || tr.Truncated {
			t.Fatalf("trade exits past the series: %+v", tr)
		}
		if tr.ExitIndex-tr.EntryIndex != 63 || tr.EntryIndex != tr.SignalIndex {
			t.Fatalf("unexpected holding window: %+v", tr)
		}
		want := (s.Bars[tr.ExitIndex].Close - tr.EntryPrice) / tr.EntryPrice * 100
		if math.Abs(tr.ReturnPct-want) > 1e-9 {
			t.Fatalf("return %f, want %f", tr.ReturnPct, want)
		}
	}
	if sb.BarsEvaluated != 200-63-a.WarmUp() {
		t.Errorf("bars evaluated = %d, want %d", sb.BarsEvaluated, 200-63-a.WarmUp())
	}
}

func TestReplay_NextOpen(t *testing.T) {
	cfg := faderConfig()
	cfg.Backtest.Entry = string(model.EntryNextOpen)
	col := mockUniverse(200, "SYN")
	e, _ := New(cfg, col, nil)
	s, _ := col.Load("SYN")
	sb, err := e.ReplaySeries(s)
	if err != nil {
		t.Fatal(err)
	}
	if len(sb.Trades) == 0 {
		t.Fatal("expected trades")
	}
	for _, tr := range sb.Trades {
		if tr.EntryIndex != tr.SignalIndex+1 || tr.EntryPrice != s.Bars[tr.EntryIndex].Open {
			t.Fatalf("next_open entry mismatch: %+v", tr)
		}
		if tr.ExitIndex > 199 {
			t.Fatalf("exit past the series: %+v", tr)
		}
	}
}

func TestReplay_Truncated(t *testing.T) {
	cfg := faderConfig()
	cfg.Backtest.AllowTruncated = true
	col := mockUniverse(200, "SYN")
	e, _ := New(cfg, col, nil)
	s, _ := col.Load("SYN")
	sb, err := e.ReplaySeries(s)
	if err != nil {
		t.Fatal(err)
	}
	truncated := 0
	for _, tr := range sb.Trades {
		if tr.Truncated {
			truncated++
			if tr.ExitIndex != 199 {
				t.Fatalf("truncated trade should close on the last bar: %+v", tr)
			}
		}
	}
	if truncated == 0 {
		t.Fatal("expected truncated trades near the end of the series")
	}
	if sb.Stats.Truncated != truncated || sb.Stats.Trades+truncated != len(sb.Trades) {
		t.Errorf("stats %+v do not separate %d truncated trades", sb.Stats, truncated)
	}
}

func TestRun_HoldingPeriodTooLong(t *testing.T) {
	cfg := faderConfig()
	cfg.Backtest.HoldingPeriod = 250
	e, _ := New(cfg, mockUniverse(200, "A", "B"), nil)
	_, err := e.Run(context.Background(), nil)
	var ce *model.ConfigError
	if !errors.As(err, &ce) || ce.Field != "backtest.holding_period" {
		t.Fatalf("expected holding period ConfigError, got %v", err)
	}
}

func TestRun_Aggregates(t *testing.T) {
	cfg := faderConfig()
	f := &collector.MockFetcher{
		Generated: []string{"BBB", "AAA"},
		Bars:      200,
		Price:     8,
		Errors:    map[string]error{"ZZZ": errors.New("unreadable")},
	}
	e, _ := New(cfg, collector.NewCollector(f, nil), nil)
	res, err := e.Run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Symbols) != 2 || res.Symbols[0].Symbol != "AAA" {
		t.Fatalf("symbols = %+v", res.Symbols)
	}
	if len(res.Failures) != 1 || res.Failures[0].Symbol != "ZZZ" {
		t.Errorf("failures = %+v", res.Failures)
	}
	total := len(res.Symbols[0].Trades) + len(res.Symbols[1].Trades)
	if len(res.Trades) != total || res.Stats.Trades != total {
		t.Errorf("aggregate trades %d / stats %d, want %d", len(res.Trades), res.Stats.Trades, total)
	}
	bucketed := 0
	for _, b := range res.Buckets {
		bucketed += b.Stats.Trades
	}
	if bucketed != total {
		t.Errorf("bucketed trades = %d, want %d", bucketed, total)
	}
	if res.HoldingPeriod != 63 || res.Entry != model.EntryClose {
		t.Errorf("run parameters not recorded: %d %s", res.HoldingPeriod, res.Entry)
	}
}

func TestRunHorizons_SharedSignals(t *testing.T) {
	cfg := faderConfig()
	cfg.Backtest.HoldingPeriods = []int{5, 21, 63}
	e, _ := New(cfg, mockUniverse(300, "AAA", "BBB"), nil)
	rs, err := e.RunHorizons(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rs) != 3 {
		t.Fatalf("results = %d, want 3", len(rs))
	}
	if len(rs[0].Trades) == 0 {
		t.Fatal("fixture produced no trades")
	}
	for k, res := range rs {
		if res.HoldingPeriod != cfg.Backtest.HoldingPeriods[k] {
			t.Errorf("result %d holding period = %d", k, res.HoldingPeriod)
		}
		if len(res.Trades) != len(rs[0].Trades) {
			t.Fatalf("horizon %d has %d trades, want %d", res.HoldingPeriod, len(res.Trades), len(rs[0].Trades))
		}
		for i, tr := range res.Trades {
			if tr.SignalIndex != rs[0].Trades[i].SignalIndex || tr.Symbol != rs[0].Trades[i].Symbol {
				t.Fatalf("horizon %d trade %d signal differs", res.HoldingPeriod, i)
			}
			if tr.Held() != res.HoldingPeriod || tr.ExitReason != model.ReasonHoldingPeriod {
				t.Fatalf("horizon %d trade held %d (%s)", res.HoldingPeriod, tr.Held(), tr.ExitReason)
			}
		}
	}
}

func TestRunHorizons_LongestMustFit(t *testing.T) {
	cfg := faderConfig()
	cfg.Backtest.HoldingPeriods = []int{5, 21, 252}
	e, _ := New(cfg, mockUniverse(200, "A"), nil)
	_, err := e.RunHorizons(context.Background(), nil)
	var ce *model.ConfigError
	if !errors.As(err, &ce) || ce.Field != "backtest.holding_periods" {
		t.Fatalf("expected holding periods ConfigError, got %v", err)
	}
}

func TestReplay_NormCrossDownExit(t *testing.T) {
	cfg := faderConfig()
	cfg.Backtest.Exit = string(model.ExitNormCrossDown)
	col := mockUniverse(400, "SYN")
	e, _ := New(cfg, col, nil)
	s, _ := col.Load("SYN")
	sb, err := e.ReplaySeries(s)
	if err != nil {
		t.Fatal(err)
	}
	ev, _ := strategy.NewEvaluator(cfg)
	a, _ := ev.Prepare(s)
	crossed := func(j int) bool {
		prev, ok1 := a.Norm(j - 1)
		cur, ok2 := a.Norm(j)
		return ok1 && ok2 && prev > 0 && cur <= 0
	}

	early := 0
	for _, tr := range sb.Trades {
		if tr.Held() > 63 {
			t.Fatalf("trade held past the cap: %+v", tr)
		}
		for j := tr.SignalIndex + 1; j < tr.ExitIndex; j++ {
			if crossed(j) {
				t.Fatalf("trade %d missed the cross at bar %d", tr.SignalIndex, j)
			}
		}
		switch tr.ExitReason {
		case model.ReasonNormCrossDown:
			early++
			if !crossed(tr.ExitIndex) {
				t.Fatalf("early exit without a cross: %+v", tr)
			}
		case model.ReasonHoldingPeriod:
			if tr.Held() != 63 {
				t.Fatalf("capped exit held %d bars", tr.Held())
			}
		default:
			t.Fatalf("unexpected exit reason %q", tr.ExitReason)
		}
	}
	if early == 0 {
		t.Fatal("fixture produced no early exits")
	}
	if sb.Stats.EarlyExits != early {
		t.Errorf("early exits = %d, want %d", sb.Stats.EarlyExits, early)
	}
}

func TestReplay_InvalidEntryCounted(t *testing.T) {
	cfg := faderConfig()
	cfg.Backtest.Entry = string(model.EntryNextOpen)
	col := mockUniverse(200, "SYN")
	e, _ := New(cfg, col, nil)
	loaded, _ := col.Load("SYN")
	s := &model.PriceSeries{Symbol: loaded.Symbol, Bars: append([]model.OHLCV(nil), loaded.Bars...)}
	for i := range s.Bars {
		s.Bars[i].Open = 0
	}
	sb, err := e.ReplaySeries(s)
	if err != nil {
		t.Fatal(err)
	}
	if len(sb.Trades) != 0 || sb.InvalidEntry == 0 {
		t.Fatalf("trades %d invalid %d, want zero trades and counted entries", len(sb.Trades), sb.InvalidEntry)
	}
	if sb.Excluded != 0 {
		t.Errorf("invalid entries leaked into excluded: %d", sb.Excluded)
	}
}
