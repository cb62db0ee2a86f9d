// Package backtest replays the setup evaluator over full histories and
// measures the return of one or more holding periods after every passing bar.
package backtest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"SetupScanner/internal/collector"
	"SetupScanner/internal/config"
	"SetupScanner/internal/metrics"
	"SetupScanner/internal/model"
	"SetupScanner/internal/strategy"
)

// Result is the outcome of one replay run at one holding period.
type Result struct {
	StartedAt      time.Time
	Duration       time.Duration
	HoldingPeriod  int
	Entry          model.EntryPolicy
	Exit           model.ExitPolicy
	AllowTruncated bool
	Symbols        []model.SymbolBacktest
	Trades         []model.BacktestTrade
	Stats          model.BacktestStats
	Buckets        []model.PriceBucketStats
	Failures       []model.SymbolFailure
}

// Engine replays a universe.
type Engine struct {
	ev             *strategy.Evaluator
	col            *collector.Collector
	metrics        *metrics.Metrics
	workers        int
	hold           int
	horizons       []int
	entry          model.EntryPolicy
	exit           model.ExitPolicy
	allowTruncated bool
	buckets        []float64
}

// New validates cfg and builds an engine. m may be nil.
func New(cfg *config.Config, col *collector.Collector, m *metrics.Metrics) (*Engine, error) {
	ev, err := strategy.NewEvaluator(cfg)
	if err != nil {
		return nil, err
	}
	return &Engine{
		ev:             ev,
		col:            col,
		metrics:        m,
		workers:        cfg.Scan.Workers,
		hold:           cfg.Backtest.HoldingPeriod,
		horizons:       append([]int(nil), cfg.Horizons()...),
		entry:          model.EntryPolicy(cfg.Backtest.Entry),
		exit:           model.ExitPolicy(cfg.Backtest.Exit),
		allowTruncated: cfg.Backtest.AllowTruncated,
		buckets:        cfg.Backtest.PriceBuckets,
	}, nil
}

// Run replays at the single configured holding period. A holding period that
// does not fit a loaded series aborts the run with a *model.ConfigError
// before any replay.
func (e *Engine) Run(ctx context.Context, symbols []string) (*Result, error) {
	rs, err := e.run(ctx, symbols, []int{e.hold}, "backtest.holding_period")
	if err != nil {
		return nil, err
	}
	return rs[0], nil
}

// RunHorizons replays once per configured holding period and returns one
// Result per horizon, shortest first. Every horizon sees the same signal
// bars: the replay stops where the longest horizon still fits.
func (e *Engine) RunHorizons(ctx context.Context, symbols []string) ([]*Result, error) {
	return e.run(ctx, symbols, e.horizons, "backtest.holding_periods")
}

func (e *Engine) run(ctx context.Context, symbols []string, holds []int, field string) ([]*Result, error) {
	start := time.Now()
	if len(symbols) == 0 {
		var err error
		if symbols, err = e.col.Universe(); err != nil {
			return nil, err
		}
	}

	series, failures, err := e.loadAll(ctx, symbols)
	if err != nil {
		return nil, err
	}
	longest := holds[len(holds)-1]
	for _, s := range series {
		if err := checkHold(s, longest, field); err != nil {
			return nil, err
		}
	}

	results := make([]*Result, len(holds))
	for k, h := range holds {
		results[k] = &Result{
			StartedAt:      start,
			HoldingPeriod:  h,
			Entry:          e.entry,
			Exit:           e.exit,
			AllowTruncated: e.allowTruncated,
			Failures:       append([]model.SymbolFailure(nil), failures...),
		}
	}
	log.Info().Int("symbols", len(series)).Ints("holding_periods", holds).
		Str("entry", string(e.entry)).Str("exit", string(e.exit)).Msg("backtest started")

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, s := range series {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			reps, err := e.replay(s, holds)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn().Err(err).Str("symbol", s.Symbol).Msg("symbol skipped")
				for _, res := range results {
					res.Failures = append(res.Failures, model.SymbolFailure{Symbol: s.Symbol, Err: err})
				}
				e.metrics.Symbol(metrics.RunBacktest, false)
				return nil
			}
			e.metrics.Symbol(metrics.RunBacktest, true)
			log.Debug().Str("symbol", s.Symbol).Int("trades", len(reps[0].Trades)).Msg("replayed")
			for k, sb := range reps {
				results[k].Symbols = append(results[k].Symbols, sb)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, res := range results {
		e.finish(res, start)
	}
	e.metrics.RunFinished(metrics.RunBacktest, start)
	return results, nil
}

// finish orders a result and computes its aggregates.
func (e *Engine) finish(res *Result, start time.Time) {
	sort.Slice(res.Symbols, func(i, j int) bool { return res.Symbols[i].Symbol < res.Symbols[j].Symbol })
	sort.Slice(res.Failures, func(i, j int) bool { return res.Failures[i].Symbol < res.Failures[j].Symbol })
	for _, sb := range res.Symbols {
		res.Trades = append(res.Trades, sb.Trades...)
	}
	res.Stats = ComputeStats(res.Trades)
	res.Buckets = BucketStats(res.Trades, e.buckets)
	res.Duration = time.Since(start)

	e.metrics.Trades(len(res.Trades))
	log.Info().Int("holding_period", res.HoldingPeriod).Int("trades", res.Stats.Trades).
		Int("truncated", res.Stats.Truncated).Int("early_exits", res.Stats.EarlyExits).
		Float64("win_rate", res.Stats.WinRate).Float64("mean_return", res.Stats.MeanReturn).
		Int("skipped", len(res.Failures)).Dur("took", res.Duration).Msg("backtest finished")
}

func (e *Engine) loadAll(ctx context.Context, symbols []string) ([]*model.PriceSeries, []model.SymbolFailure, error) {
	var (
		mu       sync.Mutex
		series   []*model.PriceSeries
		failures []model.SymbolFailure
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, sym := range symbols {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := e.col.Load(sym)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn().Err(err).Str("symbol", sym).Msg("load failed")
				failures = append(failures, model.SymbolFailure{Symbol: sym, Err: err})
				e.metrics.Symbol(metrics.RunBacktest, false)
				return nil
			}
			series = append(series, s)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Symbol < series[j].Symbol })
	return series, failures, nil
}

// CheckHoldingPeriod rejects a holding period that leaves no replayable bar.
func (e *Engine) CheckHoldingPeriod(s *model.PriceSeries) error {
	return checkHold(s, e.hold, "backtest.holding_period")
}

func checkHold(s *model.PriceSeries, hold int, field string) error {
	if hold >= s.Len() {
		return model.NewConfigError(field, "%d bars does not fit %s with %d bars", hold, s.Symbol, s.Len())
	}
	return nil
}

// lastSignal is the last bar whose full holding period fits the series.
func (e *Engine) lastSignal(n, hold int) int {
	if e.allowTruncated {
		if e.entry == model.EntryNextOpen {
			return n - 2
		}
		return n - 1
	}
	last := n - hold - 1
	if e.entry == model.EntryNextOpen {
		last--
	}
	return last
}

// ReplaySeries evaluates every bar from the warm-up index to the last bar
// with room for the holding period and opens a trade on each passing bar.
func (e *Engine) ReplaySeries(s *model.PriceSeries) (model.SymbolBacktest, error) {
	if err := e.CheckHoldingPeriod(s); err != nil {
		return model.SymbolBacktest{}, err
	}
	reps, err := e.replay(s, []int{e.hold})
	if err != nil {
		return model.SymbolBacktest{}, err
	}
	return reps[0], nil
}

// replay walks the signal bars once and closes every entry at each of holds.
func (e *Engine) replay(s *model.PriceSeries, holds []int) ([]model.SymbolBacktest, error) {
	a, err := e.ev.Prepare(s)
	if err != nil {
		return nil, err
	}
	var evaluated, excluded, invalid int
	trades := make([][]model.BacktestTrade, len(holds))
	last := e.lastSignal(a.Len(), holds[len(holds)-1])
	for i := a.WarmUp(); i <= last; i++ {
		rec, err := a.Evaluate(i)
		if errors.Is(err, model.ErrIndeterminate) {
			excluded++
			continue
		}
		if err != nil {
			return nil, err
		}
		evaluated++
		if !rec.Passed {
			continue
		}
		entryIdx, entryPrice := e.entryAt(s, i)
		if entryPrice <= 0 {
			invalid++
			log.Debug().Str("symbol", s.Symbol).Int("bar", i).Float64("entry_price", entryPrice).Msg("passing bar skipped, no valid entry price")
			continue
		}
		for k, h := range holds {
			trades[k] = append(trades[k], e.trade(a, rec, entryIdx, entryPrice, h))
		}
	}
	e.metrics.Bars(metrics.RunBacktest, evaluated)

	out := make([]model.SymbolBacktest, len(holds))
	for k := range holds {
		out[k] = model.SymbolBacktest{
			Symbol:        s.Symbol,
			BarsEvaluated: evaluated,
			Excluded:      excluded,
			InvalidEntry:  invalid,
			Trades:        trades[k],
			Stats:         ComputeStats(trades[k]),
		}
	}
	return out, nil
}

func (e *Engine) entryAt(s *model.PriceSeries, signal int) (int, float64) {
	if e.entry == model.EntryNextOpen {
		return signal + 1, s.Bars[signal+1].Open
	}
	return signal, s.Bars[signal].Close
}

func (e *Engine) trade(a *strategy.Analysis, rec model.SetupRecord, entryIdx int, entryPrice float64, hold int) model.BacktestTrade {
	s := a.Series()
	exitIdx := entryIdx + hold
	reason := model.ReasonHoldingPeriod
	truncated := false
	if exitIdx > s.Len()-1 {
		exitIdx = s.Len() - 1
		reason = model.ReasonEndOfData
		truncated = true
	}
	if e.exit == model.ExitNormCrossDown {
		if j, ok := crossDown(a, rec.Index+1, exitIdx); ok {
			exitIdx, reason, truncated = j, model.ReasonNormCrossDown, false
		}
	}
	exit := s.Bars[exitIdx]
	return model.BacktestTrade{
		Symbol:      s.Symbol,
		SignalIndex: rec.Index,
		SignalTime:  rec.Time,
		EntryIndex:  entryIdx,
		EntryTime:   s.Bars[entryIdx].Time,
		EntryPrice:  entryPrice,
		ExitIndex:   exitIdx,
		ExitTime:    exit.Time,
		ExitPrice:   exit.Close,
		ReturnPct:   (exit.Close - entryPrice) / entryPrice * 100,
		Score:       rec.Score,
		Momentum:    rec.Momentum,
		ExitReason:  reason,
		Truncated:   truncated,
	}
}

// crossDown finds the first bar in [from, to] where the normalized price
// moves from above zero to at or below zero.
func crossDown(a *strategy.Analysis, from, to int) (int, bool) {
	for j := from; j <= to; j++ {
		prev, okP := a.Norm(j - 1)
		cur, okC := a.Norm(j)
		if okP && okC && prev > 0 && cur <= 0 {
			return j, true
		}
	}
	return 0, false
}
