package strategy

import (
	"errors"
	"math"
	"testing"
	"time"

	"SetupScanner/internal/calculator"
	"SetupScanner/internal/config"
	"SetupScanner/internal/model"
)

func TestEvaluate_PriceZone(t *testing.T) {
	// rangeBound closes alternate 100.5 (5% of the $100-110 bucket) and
	// 99.5 (95% of $90-100).
	tests := []struct {
		name  string
		zones []string
		bar   int
		zone  model.PriceZone
		pass  bool
	}{
		{"buy zone passes", []string{"buy"}, 78, model.ZoneBuy, true},
		{"sell zone fails buy", []string{"buy"}, 79, model.ZoneSell, false},
		{"sell zone accepted", []string{"sell"}, 79, model.ZoneSell, true},
		{"neutral only", []string{"neutral"}, 78, model.ZoneBuy, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := withCriteria(config.CriterionPriceZone)
			cfg.Criteria.PriceZone.Zones = tt.zones
			a := mustAnalysis(t, cfg, rangeBound(80, 1000))
			rec, err := a.Evaluate(tt.bar)
			if err != nil {
				t.Fatal(err)
			}
			if rec.Zone != tt.zone || rec.Passed != tt.pass {
				t.Errorf("zone %s passed %v, want %s %v (%+v)", rec.Zone, rec.Passed, tt.zone, tt.pass, rec.Checks)
			}
			if rec.Score != 0 {
				t.Errorf("price zone adds no points, score %.2f", rec.Score)
			}
		})
	}

	a := mustAnalysis(t, withCriteria(config.CriterionPriceZone), rangeBound(80, 1000))
	rec, _ := a.Evaluate(78)
	if math.Abs(rec.ZonePosition-5) > 1e-9 {
		t.Errorf("zone position = %f, want 5", rec.ZonePosition)
	}
}

func sigmaConfig(mode string, threshold float64) *config.Config {
	cfg := withCriteria(config.CriterionPosition)
	cfg.Criteria.Position.Mode = "basis"
	cfg.Criteria.Position.Operator = config.OperatorGreater
	cfg.Criteria.Position.Threshold = threshold
	cfg.Criteria.Position.ThresholdMode = mode
	cfg.Scoring.ExtremityScale = 10
	return cfg
}

func TestEvaluate_SigmaThreshold(t *testing.T) {
	// A steady 0.5/bar climb sits about 16 price units (1.7 deviations of
	// close) above its 68-bar EMA basis.
	s := trendSeries(120, 0.5)
	tests := []struct {
		name      string
		mode      string
		threshold float64
		pass      bool
	}{
		{"one sigma", config.ThresholdSigma, 1, true},
		{"three sigma", config.ThresholdSigma, 3, false},
		{"three price units", config.ThresholdAbsolute, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := mustAnalysis(t, sigmaConfig(tt.mode, tt.threshold), s)
			rec, err := a.Evaluate(119)
			if err != nil {
				t.Fatal(err)
			}
			if rec.Passed != tt.pass {
				t.Errorf("norm %.4f passed %v, want %v (%+v)", rec.NormPrice, rec.Passed, tt.pass, rec.Checks)
			}
		})
	}

	rec, err := mustAnalysis(t, sigmaConfig(config.ThresholdSigma, 1), s).Evaluate(119)
	if err != nil {
		t.Fatal(err)
	}
	if e := *rec.SubScores.Extremity; e < 12 || e > 20 {
		t.Errorf("sigma extremity = %.2f, want about 16.6 deviations-scaled points", e)
	}
	rec, _ = mustAnalysis(t, sigmaConfig(config.ThresholdAbsolute, 1), s).Evaluate(119)
	if *rec.SubScores.Extremity != 25 {
		t.Errorf("absolute extremity should hit the cap, got %.2f", *rec.SubScores.Extremity)
	}
}

func TestEvaluate_SigmaFlatIsIndeterminate(t *testing.T) {
	s := &model.PriceSeries{Symbol: "FLAT"}
	for i := 0; i < 90; i++ {
		s.Bars = append(s.Bars, model.OHLCV{Time: day0.AddDate(0, 0, i), Open: 50, High: 50.5, Low: 49.5, Close: 50, Volume: 10})
	}
	a := mustAnalysis(t, sigmaConfig(config.ThresholdSigma, -2), s)
	if _, err := a.Evaluate(89); !errors.Is(err, model.ErrIndeterminate) {
		t.Errorf("zero deviation: expected ErrIndeterminate, got %v", err)
	}
}

func TestEvaluate_WeeklyFader(t *testing.T) {
	cfg := withCriteria(config.CriterionFader)
	cfg.Criteria.Fader.Timeframe = config.TimeframeWeekly
	s := randomSeries(480, 5)
	a := mustAnalysis(t, cfg, s)
	if a.WarmUp() != 5*(37+2) {
		t.Fatalf("weekly warm-up = %d, want %d", a.WarmUp(), 5*(37+2))
	}

	times := make([]time.Time, s.Len())
	for i, b := range s.Bars {
		times[i] = b.Time
	}
	states := calculator.WeeklyFaderStates(times, s.Closes(), cfg.FaderParams())
	passed := 0
	for i := a.WarmUp(); i < s.Len(); i++ {
		rec, err := a.Evaluate(i)
		if err != nil {
			t.Fatal(err)
		}
		if rec.Fader != states[i] {
			t.Fatalf("bar %d: fader %s, want weekly %s", i, rec.Fader, states[i])
		}
		if rec.Passed != (states[i] == model.Rising) {
			t.Fatalf("bar %d: passed %v with weekly state %s", i, rec.Passed, states[i])
		}
		if rec.Passed {
			passed++
		}
	}
	if passed == 0 {
		t.Fatal("expected rising weeks in the fixture")
	}
}
