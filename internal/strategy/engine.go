package strategy

import (
	"fmt"
	"math"
	"time"

	"SetupScanner/internal/calculator"
	"SetupScanner/internal/config"
	"SetupScanner/internal/model"
)

// MaxScore is the upper bound of the quality score. Disabled criteria drop
// their component and the score is not rescaled, so a run with fewer active
// criteria has a lower attainable maximum.
const MaxScore = 100

// Evaluator applies one fixed criteria configuration to any series.
type Evaluator struct {
	cfg      *config.Config
	norm     calculator.Normalizer
	force    calculator.ForceParams
	cons     calculator.ConsolidationParams
	fader    calculator.FaderParams
	states   map[model.MomentumState]bool
	zones    map[model.PriceZone]bool
	wantFade model.FaderState
	weekly   bool
	sigma    bool
	warmUp   int
}

// NewEvaluator validates cfg and derives the warm-up length for its active
// criteria.
func NewEvaluator(cfg *config.Config) (*Evaluator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Evaluator{
		cfg:    cfg,
		norm:   cfg.Normalizer(),
		force:  cfg.ForceParams(),
		cons:   cfg.ConsolidationParams(),
		fader:  cfg.FaderParams(),
		states: make(map[model.MomentumState]bool),
		zones:  make(map[model.PriceZone]bool),
		weekly: cfg.Criteria.Fader.Timeframe == config.TimeframeWeekly,
		sigma:  cfg.Criteria.Position.ThresholdMode == config.ThresholdSigma,
	}
	for _, name := range cfg.Criteria.Momentum.States {
		s, _ := model.ParseMomentumState(name)
		e.states[s] = true
	}
	for _, name := range cfg.Criteria.PriceZone.Zones {
		z, _ := model.ParsePriceZone(name)
		e.zones[z] = true
	}
	e.wantFade, _ = model.ParseFaderState(cfg.Criteria.Fader.State)

	cr := cfg.Criteria
	warm := cfg.Indicators.VolumeLookback
	if cr.Has(config.CriterionConsolidation) {
		warm = max(warm, e.cons.MaxWindow-1)
	}
	if cr.Has(config.CriterionMomentum) {
		warm = max(warm, e.momentumLookback())
	}
	if cr.Has(config.CriterionPosition) {
		warm = max(warm, e.norm.Lookback())
	}
	if cr.Has(config.CriterionFader) {
		if e.weekly {
			// Needs Lookback+2 completed weeks of at most five sessions.
			warm = max(warm, 5*(e.fader.Lookback()+2))
		} else {
			warm = max(warm, e.fader.Lookback()+1)
		}
	}
	if cr.Has(config.CriterionTrend) {
		warm = max(warm, cr.Trend.SMAPeriod-1+cr.Trend.RiseLookback)
	}
	e.warmUp = warm
	return e, nil
}

func (e *Evaluator) momentumLookback() int {
	if e.cfg.Indicators.ForceIndex.Classifier == config.ClassifierDeviation {
		return e.force.SigmaLookback()
	}
	return e.force.Lookback()
}

// WarmUp is the first bar index the evaluator can score.
func (e *Evaluator) WarmUp() int { return e.warmUp }

// Config returns the configuration the evaluator was built from.
func (e *Evaluator) Config() *config.Config { return e.cfg }

// Analysis holds every indicator line for one series. Lines are computed
// once over the whole series; each recurrence is causal, so reading slot i
// never depends on bars after i.
type Analysis struct {
	ev     *Evaluator
	series *model.PriceSeries
	closes []float64
	highs  []float64
	lows   []float64
	vols   []float64
	force   calculator.ForceResult
	norm    calculator.Line
	normDev calculator.Line
	fader   calculator.Line
	weekly  []model.FaderState
	trend   calculator.Line
}

// Prepare validates the series and computes its indicator lines.
func (e *Evaluator) Prepare(s *model.PriceSeries) (*Analysis, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.Len() <= e.warmUp {
		return nil, fmt.Errorf("%s: %w: %d bars, need more than %d", s.Symbol, model.ErrInsufficientData, s.Len(), e.warmUp)
	}
	closes := s.Closes()
	a := &Analysis{
		ev:     e,
		series: s,
		closes: closes,
		highs:  s.Highs(),
		lows:   s.Lows(),
		vols:   s.Volumes(),
		force:  calculator.ForceIndex(s, e.force),
		norm:   e.norm.Compute(s),
		fader:  calculator.Fader(closes, e.fader),
		trend:  calculator.SMA(calculator.FromValues(closes), e.cfg.Criteria.Trend.SMAPeriod),
	}
	if b, ok := e.norm.(calculator.BasisNormalizer); ok && e.sigma {
		a.normDev = b.Deviation(s)
	}
	if e.weekly {
		times := make([]time.Time, s.Len())
		for i, bar := range s.Bars {
			times[i] = bar.Time
		}
		a.weekly = calculator.WeeklyFaderStates(times, closes, e.fader)
	}
	return a, nil
}

// Series returns the analysed series.
func (a *Analysis) Series() *model.PriceSeries { return a.series }

// Len is the number of bars in the analysed series.
func (a *Analysis) Len() int { return len(a.closes) }

// WarmUp is the first index Evaluate accepts.
func (a *Analysis) WarmUp() int { return a.ev.warmUp }

// Norm is the normalized price at bar i.
func (a *Analysis) Norm(i int) (float64, bool) { return a.norm.At(i) }

func (a *Analysis) faderAt(i int) model.FaderState {
	if a.weekly != nil {
		return a.weekly[i]
	}
	st, _ := calculator.FaderStateAt(a.fader, i)
	return st
}

func (a *Analysis) momentumAt(i int) (model.MomentumState, float64) {
	v, ok := a.force.Value.At(i)
	if !ok {
		return model.MomentumUnset, 0
	}
	if a.ev.cfg.Indicators.ForceIndex.Classifier == config.ClassifierDeviation {
		sigma, ok := a.force.Sigma.At(i)
		if !ok {
			return model.MomentumUnset, v
		}
		return calculator.ClassifyDeviation(v, sigma, a.ev.cfg.Indicators.ForceIndex.DeviationMultiplier), v
	}
	d, _ := a.force.Change.At(i)
	return calculator.ClassifyDirection(v, d), v
}

// Evaluate scores bar i using only data at indices <= i. It returns
// ErrInsufficientData before the warm-up index and ErrIndeterminate when the
// price-position criterion is active but the range normalizer saw a flat
// window.
func (a *Analysis) Evaluate(i int) (model.SetupRecord, error) {
	if i < a.ev.warmUp || i >= a.Len() {
		return model.SetupRecord{}, fmt.Errorf("%s bar %d: %w", a.series.Symbol, i, model.ErrInsufficientData)
	}
	cfg := a.ev.cfg
	cr := cfg.Criteria
	bar := a.series.Bars[i]

	rec := model.SetupRecord{
		Symbol: a.series.Symbol,
		Index:  i,
		Time:   bar.Time,
		Close:  bar.Close,
		Passed: true,
	}
	rec.Momentum, rec.ForceIndex = a.momentumAt(i)
	rec.Fader = a.faderAt(i)
	rec.VolumeRatio, _ = calculator.VolumeRatio(a.vols, i, cfg.Indicators.VolumeLookback)
	if pos, ok := calculator.ZonePosition(bar.Close); ok {
		rec.ZonePosition = pos
		rec.Zone = calculator.ClassifyZone(pos, cr.PriceZone.BuyMax, cr.PriceZone.SellMin)
	}
	norm, normOK := a.norm.At(i)
	if normOK {
		rec.NormPrice = norm
	} else if cr.Has(config.CriterionPosition) {
		return model.SetupRecord{}, fmt.Errorf("%s bar %d: %w", a.series.Symbol, i, model.ErrIndeterminate)
	}
	// In sigma mode the threshold and the extremity are measured in
	// deviations of close; a zero deviation is as indeterminate as a flat
	// range.
	threshold, extremity := cr.Position.Threshold, norm
	if a.ev.sigma && cr.Has(config.CriterionPosition) {
		dev, ok := a.normDev.At(i)
		if !ok || dev == 0 {
			return model.SetupRecord{}, fmt.Errorf("%s bar %d: %w", a.series.Symbol, i, model.ErrIndeterminate)
		}
		threshold, extremity = cr.Position.Threshold*dev, norm/dev
	}

	check := func(name config.CriterionName, passed bool, format string, args ...any) {
		rec.Checks = append(rec.Checks, model.CriterionCheck{
			Name:   string(name),
			Passed: passed,
			Detail: fmt.Sprintf(format, args...),
		})
		rec.Passed = rec.Passed && passed
	}

	for _, name := range cr.Active {
		switch name {
		case config.CriterionConsolidation:
			r, err := calculator.FindConsolidation(a.highs, a.lows, i, a.ev.cons)
			days := 0
			if err == nil {
				rec.Range = &r
				rec.PositionInRange = r.Position(bar.Close)
				days = r.Duration()
			}
			passed := rec.Range != nil
			if gate := cr.Consolidation.MaxPositionInRange; passed && gate > 0 {
				passed = rec.PositionInRange <= gate
			}
			check(name, passed, "%d bars", days)
			rec.SubScores.Consolidation = ptr(scoreConsolidation(days, cfg.Scoring.ConsolidationPerBar))

		case config.CriterionMomentum:
			check(name, a.ev.states[rec.Momentum], "%s (fi %.4f)", rec.Momentum, rec.ForceIndex)
			rec.SubScores.Momentum = ptr(scoreMomentum(rec.Momentum))

		case config.CriterionPosition:
			passed := norm < threshold
			if cr.Position.Operator == config.OperatorGreater {
				passed = norm > threshold
			}
			check(name, passed, "%s %.4f %s %.4f", a.ev.norm.Mode(), norm, cr.Position.Operator, threshold)
			rec.SubScores.Extremity = ptr(scoreExtremity(extremity, cfg.Scoring.ExtremityScale))

		case config.CriterionFader:
			check(name, rec.Fader == a.ev.wantFade, "%s %s", cr.Fader.Timeframe, rec.Fader)

		case config.CriterionPriceZone:
			check(name, a.ev.zones[rec.Zone], "%s %.1f%%", rec.Zone, rec.ZonePosition)

		case config.CriterionPriceBand:
			passed := bar.Close >= cr.PriceBand.Min && (cr.PriceBand.Max <= 0 || bar.Close <= cr.PriceBand.Max)
			check(name, passed, "close %.4f", bar.Close)

		case config.CriterionTrend:
			check(name, calculator.TrendUp(a.closes, a.trend, i, cr.Trend.RiseLookback), "sma(%d)", cr.Trend.SMAPeriod)
		}
	}

	rec.SubScores.Volume = ptr(scoreVolume(rec.VolumeRatio, cfg.Scoring.VolumeScale))
	rec.Score = math.Min(MaxScore, math.Max(0, rec.SubScores.Total()))
	return rec, nil
}

func ptr(v float64) *float64 { return &v }
