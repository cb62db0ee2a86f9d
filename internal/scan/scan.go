// Package scan runs the setup evaluator over the latest bars of every symbol
// in a universe and ranks the passing setups.
package scan

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

// Result is the outcome of one live scan.
type Result struct {
	StartedAt time.Time
	Duration  time.Duration
	Scanned   int
	Setups    []model.SetupRecord // ranked
	Failures  []model.SymbolFailure
}

// Engine scans a universe with a bounded worker pool.
type Engine struct {
	ev       *strategy.Evaluator
	col      *collector.Collector
	metrics  *metrics.Metrics
	workers  int
	lookback int
}

// New validates cfg and builds an engine. m may be nil.
func New(cfg *config.Config, col *collector.Collector, m *metrics.Metrics) (*Engine, error) {
	ev, err := strategy.NewEvaluator(cfg)
	if err != nil {
		return nil, err
	}
	return &Engine{
		ev:       ev,
		col:      col,
		metrics:  m,
		workers:  cfg.Scan.Workers,
		lookback: cfg.Scan.LookbackBars,
	}, nil
}

// Run scans symbols, or the collector's universe when symbols is empty.
// Per-symbol problems are recorded as failures; only cancellation aborts.
func (e *Engine) Run(ctx context.Context, symbols []string) (*Result, error) {
	start := time.Now()
	if len(symbols) == 0 {
		var err error
		if symbols, err = e.col.Universe(); err != nil {
			return nil, err
		}
	}
	log.Info().Int("symbols", len(symbols)).Msg("scan started")

	res := &Result{StartedAt: start}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, sym := range symbols {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := e.scanSymbol(sym)

			mu.Lock()
			defer mu.Unlock()
			res.Scanned++
			if err != nil {
				log.Warn().Err(err).Str("symbol", sym).Msg("symbol skipped")
				res.Failures = append(res.Failures, model.SymbolFailure{Symbol: sym, Err: err})
				e.metrics.Symbol(metrics.RunScan, false)
				return nil
			}
			e.metrics.Symbol(metrics.RunScan, true)
			if rec != nil {
				res.Setups = append(res.Setups, *rec)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	Rank(res.Setups)
	sort.Slice(res.Failures, func(i, j int) bool { return res.Failures[i].Symbol < res.Failures[j].Symbol })
	res.Duration = time.Since(start)
	e.metrics.Setups(len(res.Setups))
	e.metrics.RunFinished(metrics.RunScan, start)
	log.Info().Int("scanned", res.Scanned).Int("setups", len(res.Setups)).
		Int("skipped", len(res.Failures)).Dur("took", res.Duration).Msg("scan finished")
	return res, nil
}

func (e *Engine) scanSymbol(symbol string) (*model.SetupRecord, error) {
	s, err := e.col.Load(symbol)
	if err != nil {
		return nil, err
	}
	return e.ScanSeries(s)
}

// ScanSeries evaluates the last lookback bars of s and returns the most
// recent passing setup, or nil when none passes.
func (e *Engine) ScanSeries(s *model.PriceSeries) (*model.SetupRecord, error) {
	a, err := e.ev.Prepare(s)
	if err != nil {
		return nil, err
	}
	last := a.Len() - 1
	first := max(a.WarmUp(), last-e.lookback+1)
	e.metrics.Bars(metrics.RunScan, last-first+1)
	for i := last; i >= first; i-- {
		rec, err := a.Evaluate(i)
		if errors.Is(err, model.ErrIndeterminate) {
			log.Debug().Str("symbol", s.Symbol).Int("bar", i).Msg("indeterminate position, bar excluded")
			continue
		}
		if err != nil {
			return nil, err
		}
		if rec.Passed {
			return &rec, nil
		}
	}
	return nil, nil
}

// Rank orders setups by score descending, ties broken by symbol ascending.
func Rank(setups []model.SetupRecord) {
	sort.SliceStable(setups, func(i, j int) bool {
		if setups[i].Score != setups[j].Score {
			return setups[i].Score > setups[j].Score
		}
		return setups[i].Symbol < setups[j].Symbol
	})
}
