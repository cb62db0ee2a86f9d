package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"SetupScanner/internal/calculator"
	"SetupScanner/internal/model"
)

// CriterionName identifies one evaluator criterion.
type CriterionName string

const (
	CriterionConsolidation CriterionName = "consolidation"
	CriterionMomentum      CriterionName = "momentum"
	CriterionPosition      CriterionName = "price_position"
	CriterionFader         CriterionName = "fader"
	CriterionPriceBand     CriterionName = "price_band"
	CriterionTrend         CriterionName = "trend"
	CriterionPriceZone     CriterionName = "price_zone"
)

// KnownCriteria lists every recognised criterion name.
var KnownCriteria = []CriterionName{
	CriterionConsolidation,
	CriterionMomentum,
	CriterionPosition,
	CriterionFader,
	CriterionPriceBand,
	CriterionTrend,
	CriterionPriceZone,
}

// Comparison operators for the price-position criterion.
const (
	OperatorGreater = "gt"
	OperatorLess    = "lt"
)

// Price-position threshold modes. In sigma mode the threshold is a multiple
// of the rolling close deviation instead of a normalized price level.
const (
	ThresholdAbsolute = "absolute"
	ThresholdSigma    = "sigma"
)

// Fader timeframes.
const (
	TimeframeDaily  = "daily"
	TimeframeWeekly = "weekly"
)

// Momentum classifier modes.
const (
	ClassifierDirection = "direction"
	ClassifierDeviation = "deviation"
)

// Criteria is the set of active criteria and their parameters.
type Criteria struct {
	Active        []CriterionName `yaml:"active"`
	Consolidation struct {
		// MaxPositionInRange gates on close sitting in the lower part of
		// the range (0-100). Zero disables the gate.
		MaxPositionInRange float64 `yaml:"max_position_in_range"`
	} `yaml:"consolidation"`
	Momentum struct {
		States []string `yaml:"states"`
	} `yaml:"momentum"`
	Position struct {
		Mode          string  `yaml:"mode"`
		Operator      string  `yaml:"operator"`
		Threshold     float64 `yaml:"threshold"`
		ThresholdMode string  `yaml:"threshold_mode"`
	} `yaml:"price_position"`
	Fader struct {
		State     string `yaml:"state"`
		Timeframe string `yaml:"timeframe"`
	} `yaml:"fader"`
	PriceBand struct {
		Min float64 `yaml:"min"`
		Max float64 `yaml:"max"`
	} `yaml:"price_band"`
	Trend struct {
		SMAPeriod    int `yaml:"sma_period"`
		RiseLookback int `yaml:"rise_lookback"`
	} `yaml:"trend"`
	// PriceZone places close inside its dollar bucket ($1 wide below $10,
	// $10 wide above) and accepts the listed zones.
	PriceZone struct {
		Zones   []string `yaml:"zones"`
		BuyMax  float64  `yaml:"buy_max"`
		SellMin float64  `yaml:"sell_min"`
	} `yaml:"price_zone"`
}

// Has reports whether the named criterion is active.
func (c Criteria) Has(name CriterionName) bool {
	for _, n := range c.Active {
		if n == name {
			return true
		}
	}
	return false
}

// Config holds all application configuration.
type Config struct {
	Data struct {
		Dir     string   `yaml:"dir"`
		Symbols []string `yaml:"symbols"`
	} `yaml:"data"`
	Criteria   Criteria `yaml:"criteria"`
	Indicators struct {
		ForceIndex struct {
			ATRPeriod           int     `yaml:"atr_period"`
			AutoScalePeriod     int     `yaml:"auto_scale_period"`
			SmoothPeriod        int     `yaml:"smooth_period"`
			ScaleFactor         float64 `yaml:"scale_factor"`
			WeightSource        string  `yaml:"weight_source"`
			Classifier          string  `yaml:"classifier"`
			DeviationPeriod     int     `yaml:"deviation_period"`
			DeviationMultiplier float64 `yaml:"deviation_multiplier"`
		} `yaml:"force_index"`
		Normalizer struct {
			RangePeriod int `yaml:"range_period"`
			BasisPeriod int `yaml:"basis_period"`
		} `yaml:"normalizer"`
		Consolidation struct {
			MinWindow      int     `yaml:"min_window"`
			MaxWindow      int     `yaml:"max_window"`
			Step           int     `yaml:"step"`
			MaxWidth       float64 `yaml:"max_width"`
			TouchRatio     float64 `yaml:"touch_ratio"`
			TouchTolerance float64 `yaml:"touch_tolerance"`
		} `yaml:"consolidation"`
		Fader struct {
			Fast      int     `yaml:"fast"`
			Slow      int     `yaml:"slow"`
			JMALength int     `yaml:"jma_length"`
			JMAPhase  float64 `yaml:"jma_phase"`
			JMAPower  float64 `yaml:"jma_power"`
		} `yaml:"fader"`
		VolumeLookback int `yaml:"volume_lookback"`
	} `yaml:"indicators"`
	Scoring struct {
		ExtremityScale      float64 `yaml:"extremity_scale"`
		ConsolidationPerBar float64 `yaml:"consolidation_per_bar"`
		VolumeScale         float64 `yaml:"volume_scale"`
	} `yaml:"scoring"`
	Scan struct {
		Workers      int `yaml:"workers"`
		LookbackBars int `yaml:"lookback_bars"`
	} `yaml:"scan"`
	Backtest struct {
		HoldingPeriod  int       `yaml:"holding_period"`
		HoldingPeriods []int     `yaml:"holding_periods"`
		Entry          string    `yaml:"entry"`
		Exit           string    `yaml:"exit"`
		AllowTruncated bool      `yaml:"allow_truncated"`
		PriceBuckets   []float64 `yaml:"price_buckets"`
	} `yaml:"backtest"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Schedule struct {
		ScanCron string `yaml:"scan_cron"`
	} `yaml:"schedule"`
	Metrics struct {
		Listen string `yaml:"listen"`
	} `yaml:"metrics"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

// Load reads config from a YAML file over the defaults, then applies
// environment variable overrides. Keys present in the file win, including
// explicit zeros.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("SCANNER_DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	if v := os.Getenv("SCANNER_SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("SCANNER_HOLDING_PERIOD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backtest.HoldingPeriod = n
		}
	}
	if v := os.Getenv("SCANNER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scan.Workers = n
		}
	}
	if v := os.Getenv("SCANNER_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SCANNER_SCAN_CRON"); v != "" {
		cfg.Schedule.ScanCron = v
	}
	return cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields of a config built in code. Explicit
// non-zero values are kept. Load does not call it: a file is decoded over
// Default() instead, so zeros written in the file are honoured.
func (c *Config) ApplyDefaults() {
	if c.Data.Dir == "" {
		c.Data.Dir = "data/bars"
	}

	cr := &c.Criteria
	if len(cr.Active) == 0 {
		cr.Active = []CriterionName{CriterionConsolidation, CriterionMomentum, CriterionPosition, CriterionFader}
	}
	if len(cr.Momentum.States) == 0 {
		cr.Momentum.States = []string{model.StronglyNegative.String(), model.Negative.String()}
	}
	if cr.Position.Mode == "" {
		cr.Position.Mode = "range"
	}
	if cr.Position.Operator == "" {
		cr.Position.Operator = OperatorLess
		if cr.Position.Threshold == 0 {
			cr.Position.Threshold = -0.2
		}
	}
	if cr.Position.ThresholdMode == "" {
		cr.Position.ThresholdMode = ThresholdAbsolute
	}
	if cr.Fader.State == "" {
		cr.Fader.State = model.Rising.String()
	}
	if cr.Fader.Timeframe == "" {
		cr.Fader.Timeframe = TimeframeDaily
	}
	if len(cr.PriceZone.Zones) == 0 {
		cr.PriceZone.Zones = []string{model.ZoneBuy.String()}
	}
	if cr.PriceZone.BuyMax == 0 {
		cr.PriceZone.BuyMax = 35
	}
	if cr.PriceZone.SellMin == 0 {
		cr.PriceZone.SellMin = 65
	}
	if cr.Trend.SMAPeriod == 0 {
		cr.Trend.SMAPeriod = 50
	}
	if cr.Trend.RiseLookback == 0 {
		cr.Trend.RiseLookback = 5
	}

	fi := &c.Indicators.ForceIndex
	if fi.ATRPeriod == 0 {
		fi.ATRPeriod = 11
	}
	if fi.AutoScalePeriod == 0 {
		fi.AutoScalePeriod = 1
	}
	if fi.SmoothPeriod == 0 {
		fi.SmoothPeriod = 13
	}
	if fi.ScaleFactor == 0 {
		fi.ScaleFactor = 13
	}
	if fi.WeightSource == "" {
		fi.WeightSource = calculator.WeightATR
	}
	if fi.Classifier == "" {
		fi.Classifier = ClassifierDirection
	}
	if fi.DeviationPeriod == 0 {
		fi.DeviationPeriod = 50
	}
	if fi.DeviationMultiplier == 0 {
		fi.DeviationMultiplier = 2
	}

	n := &c.Indicators.Normalizer
	if n.RangePeriod == 0 {
		n.RangePeriod = 20
	}
	if n.BasisPeriod == 0 {
		n.BasisPeriod = 68
	}

	cons := &c.Indicators.Consolidation
	if cons.MinWindow == 0 {
		cons.MinWindow = 10
	}
	if cons.MaxWindow == 0 {
		cons.MaxWindow = 60
	}
	if cons.Step == 0 {
		cons.Step = 1
	}
	if cons.MaxWidth == 0 {
		cons.MaxWidth = 0.15
	}
	if cons.TouchRatio == 0 {
		cons.TouchRatio = 0.7
	}
	if cons.TouchTolerance == 0 {
		cons.TouchTolerance = 0.1
	}

	f := &c.Indicators.Fader
	if f.Fast == 0 {
		f.Fast = 2
	}
	if f.Slow == 0 {
		f.Slow = 2
	}
	if f.JMALength == 0 {
		f.JMALength = 7
	}
	if f.JMAPhase == 0 {
		f.JMAPhase = 126
	}
	if f.JMAPower == 0 {
		f.JMAPower = 0.89144
	}
	if c.Indicators.VolumeLookback == 0 {
		c.Indicators.VolumeLookback = 20
	}

	if c.Scoring.ExtremityScale == 0 {
		c.Scoring.ExtremityScale = 25
	}
	if c.Scoring.ConsolidationPerBar == 0 {
		c.Scoring.ConsolidationPerBar = 0.5
	}
	if c.Scoring.VolumeScale == 0 {
		c.Scoring.VolumeScale = 50
	}

	if c.Scan.Workers == 0 {
		c.Scan.Workers = 4
	}
	if c.Scan.LookbackBars == 0 {
		c.Scan.LookbackBars = 1
	}

	if c.Backtest.HoldingPeriod == 0 {
		c.Backtest.HoldingPeriod = 63
	}
	if c.Backtest.Entry == "" {
		c.Backtest.Entry = string(model.EntryClose)
	}
	if c.Backtest.Exit == "" {
		c.Backtest.Exit = string(model.ExitFixed)
	}
	if len(c.Backtest.PriceBuckets) == 0 {
		c.Backtest.PriceBuckets = []float64{0, 1, 5, 10, 20, 50, 100}
	}

	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/setup_scanner.db"
	}
	if c.Schedule.ScanCron == "" {
		c.Schedule.ScanCron = "0 30 18 * * 1-5"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks the configuration before any computation starts. Every
// problem is reported as a *model.ConfigError.
func (c *Config) Validate() error {
	cr := c.Criteria
	if len(cr.Active) == 0 {
		return model.NewConfigError("criteria.active", "at least one criterion is required")
	}
	for _, name := range cr.Active {
		if !known(name) {
			return model.NewConfigError("criteria.active", "unknown criterion %q", name)
		}
	}
	for _, s := range cr.Momentum.States {
		if _, err := model.ParseMomentumState(s); err != nil {
			return model.NewConfigError("criteria.momentum.states", "%v", err)
		}
	}
	if cr.Has(CriterionMomentum) && len(cr.Momentum.States) == 0 {
		return model.NewConfigError("criteria.momentum.states", "momentum criterion needs at least one state")
	}
	switch cr.Position.Mode {
	case "range", "basis":
	default:
		return model.NewConfigError("criteria.price_position.mode", "unknown normalizer mode %q", cr.Position.Mode)
	}
	switch cr.Position.Operator {
	case OperatorGreater, OperatorLess:
	default:
		return model.NewConfigError("criteria.price_position.operator", "unknown operator %q", cr.Position.Operator)
	}
	switch cr.Position.ThresholdMode {
	case ThresholdAbsolute:
	case ThresholdSigma:
		if cr.Has(CriterionPosition) && cr.Position.Mode != "basis" {
			return model.NewConfigError("criteria.price_position.threshold_mode", "sigma thresholds need the basis normalizer")
		}
	default:
		return model.NewConfigError("criteria.price_position.threshold_mode", "unknown threshold mode %q", cr.Position.ThresholdMode)
	}
	if _, err := model.ParseFaderState(cr.Fader.State); err != nil {
		return model.NewConfigError("criteria.fader.state", "%v", err)
	}
	switch cr.Fader.Timeframe {
	case TimeframeDaily, TimeframeWeekly:
	default:
		return model.NewConfigError("criteria.fader.timeframe", "unknown timeframe %q", cr.Fader.Timeframe)
	}
	for _, z := range cr.PriceZone.Zones {
		if _, err := model.ParsePriceZone(z); err != nil {
			return model.NewConfigError("criteria.price_zone.zones", "%v", err)
		}
	}
	if cr.Has(CriterionPriceZone) && len(cr.PriceZone.Zones) == 0 {
		return model.NewConfigError("criteria.price_zone.zones", "price zone criterion needs at least one zone")
	}
	if z := cr.PriceZone; z.BuyMax < 0 || z.SellMin > 100 || z.BuyMax > z.SellMin {
		return model.NewConfigError("criteria.price_zone", "need 0 <= buy_max <= sell_min <= 100")
	}
	if cr.Has(CriterionPriceBand) && cr.PriceBand.Max > 0 && cr.PriceBand.Min > cr.PriceBand.Max {
		return model.NewConfigError("criteria.price_band", "min %.4f exceeds max %.4f", cr.PriceBand.Min, cr.PriceBand.Max)
	}
	if p := cr.Consolidation.MaxPositionInRange; p < 0 || p > 100 {
		return model.NewConfigError("criteria.consolidation.max_position_in_range", "must be within [0, 100]")
	}

	fi := c.Indicators.ForceIndex
	switch fi.WeightSource {
	case calculator.WeightATR, calculator.WeightVolume:
	default:
		return model.NewConfigError("indicators.force_index.weight_source", "unknown weight source %q", fi.WeightSource)
	}
	switch fi.Classifier {
	case ClassifierDirection, ClassifierDeviation:
	default:
		return model.NewConfigError("indicators.force_index.classifier", "unknown classifier %q", fi.Classifier)
	}
	if fi.DeviationPeriod < 2 {
		return model.NewConfigError("indicators.force_index.deviation_period", "must be at least 2")
	}
	if fi.ScaleFactor <= 0 || fi.DeviationMultiplier <= 0 {
		return model.NewConfigError("indicators.force_index", "scale_factor and deviation_multiplier must be positive")
	}

	cons := c.Indicators.Consolidation
	if cons.MinWindow > cons.MaxWindow {
		return model.NewConfigError("indicators.consolidation", "min_window %d exceeds max_window %d", cons.MinWindow, cons.MaxWindow)
	}
	ratios := []struct {
		field string
		v     float64
	}{
		{"max_width", cons.MaxWidth},
		{"touch_ratio", cons.TouchRatio},
		{"touch_tolerance", cons.TouchTolerance},
	}
	for _, r := range ratios {
		if r.v <= 0 || r.v > 1 {
			return model.NewConfigError("indicators.consolidation."+r.field, "must be within (0, 1]")
		}
	}
	if c.Indicators.Fader.JMAPower <= 0 {
		return model.NewConfigError("indicators.fader.jma_power", "must be positive, got %g", c.Indicators.Fader.JMAPower)
	}
	if _, hull := c.FaderParams().Periods(); hull < 2 {
		return model.NewConfigError("indicators.fader", "hull period %d must be at least 2", hull)
	}

	periods := []struct {
		field string
		v     int
	}{
		{"indicators.force_index.atr_period", fi.ATRPeriod},
		{"indicators.force_index.auto_scale_period", fi.AutoScalePeriod},
		{"indicators.force_index.smooth_period", fi.SmoothPeriod},
		{"indicators.normalizer.range_period", c.Indicators.Normalizer.RangePeriod},
		{"indicators.normalizer.basis_period", c.Indicators.Normalizer.BasisPeriod},
		{"indicators.consolidation.min_window", cons.MinWindow},
		{"indicators.consolidation.step", cons.Step},
		{"indicators.fader.fast", c.Indicators.Fader.Fast},
		{"indicators.fader.slow", c.Indicators.Fader.Slow},
		{"indicators.fader.jma_length", c.Indicators.Fader.JMALength},
		{"indicators.volume_lookback", c.Indicators.VolumeLookback},
		{"criteria.trend.sma_period", cr.Trend.SMAPeriod},
		{"criteria.trend.rise_lookback", cr.Trend.RiseLookback},
		{"scan.workers", c.Scan.Workers},
		{"scan.lookback_bars", c.Scan.LookbackBars},
		{"backtest.holding_period", c.Backtest.HoldingPeriod},
	}
	for _, p := range periods {
		if p.v <= 0 {
			return model.NewConfigError(p.field, "must be positive, got %d", p.v)
		}
	}

	for i, h := range c.Backtest.HoldingPeriods {
		if h <= 0 {
			return model.NewConfigError("backtest.holding_periods", "must be positive, got %d", h)
		}
		if i > 0 && h <= c.Backtest.HoldingPeriods[i-1] {
			return model.NewConfigError("backtest.holding_periods", "must be strictly ascending")
		}
	}
	switch model.EntryPolicy(c.Backtest.Entry) {
	case model.EntryClose, model.EntryNextOpen:
	default:
		return model.NewConfigError("backtest.entry", "unknown entry policy %q", c.Backtest.Entry)
	}
	switch model.ExitPolicy(c.Backtest.Exit) {
	case model.ExitFixed, model.ExitNormCrossDown:
	default:
		return model.NewConfigError("backtest.exit", "unknown exit policy %q", c.Backtest.Exit)
	}
	for i := 1; i < len(c.Backtest.PriceBuckets); i++ {
		if c.Backtest.PriceBuckets[i] <= c.Backtest.PriceBuckets[i-1] {
			return model.NewConfigError("backtest.price_buckets", "edges must be strictly ascending")
		}
	}
	return nil
}

func known(name CriterionName) bool {
	for _, k := range KnownCriteria {
		if k == name {
			return true
		}
	}
	return false
}

// ForceParams maps the force index section onto calculator parameters.
func (c *Config) ForceParams() calculator.ForceParams {
	fi := c.Indicators.ForceIndex
	return calculator.ForceParams{
		ATRPeriod:       fi.ATRPeriod,
		AutoScalePeriod: fi.AutoScalePeriod,
		SmoothPeriod:    fi.SmoothPeriod,
		ScaleFactor:     fi.ScaleFactor,
		WeightSource:    fi.WeightSource,
		DeviationPeriod: fi.DeviationPeriod,
	}
}

// ConsolidationParams maps the consolidation section onto calculator parameters.
func (c *Config) ConsolidationParams() calculator.ConsolidationParams {
	cons := c.Indicators.Consolidation
	return calculator.ConsolidationParams{
		MinWindow:      cons.MinWindow,
		MaxWindow:      cons.MaxWindow,
		Step:           cons.Step,
		MaxWidth:       cons.MaxWidth,
		TouchRatio:     cons.TouchRatio,
		TouchTolerance: cons.TouchTolerance,
	}
}

// FaderParams maps the fader section onto calculator parameters.
func (c *Config) FaderParams() calculator.FaderParams {
	f := c.Indicators.Fader
	return calculator.FaderParams{
		Fast: f.Fast,
		Slow: f.Slow,
		JMA:  calculator.JMAParams{Length: f.JMALength, Phase: f.JMAPhase, Power: f.JMAPower},
	}
}

// Horizons returns the holding periods of a multi-horizon replay, falling
// back to the single holding period.
func (c *Config) Horizons() []int {
	if len(c.Backtest.HoldingPeriods) == 0 {
		return []int{c.Backtest.HoldingPeriod}
	}
	return c.Backtest.HoldingPeriods
}

// Normalizer returns the configured price-position normalizer.
func (c *Config) Normalizer() calculator.Normalizer {
	if c.Criteria.Position.Mode == "basis" {
		return calculator.BasisNormalizer{Period: c.Indicators.Normalizer.BasisPeriod}
	}
	return calculator.RangeNormalizer{Period: c.Indicators.Normalizer.RangePeriod}
}
