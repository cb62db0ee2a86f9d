package calculator

import "SetupScanner/internal/model"

// Weight sources for the force index.
const (
	WeightATR    = "atr"
	WeightVolume = "volume"
)

// ForceParams configures the volatility-scaled force index.
type ForceParams struct {
	ATRPeriod       int
	AutoScalePeriod int
	SmoothPeriod    int
	ScaleFactor     float64
	WeightSource    string
	DeviationPeriod int
}

// ForceResult carries every intermediate line so callers can classify
// without recomputing.
type ForceResult struct {
	Weight Line
	Raw    Line
	Value  Line
	Change Line // c[i] - c[i-1]
	Sigma  Line // rolling population std of Value
}

func (p ForceParams) weightLookback() int {
	if p.WeightSource == WeightVolume {
		return 0
	}
	return p.ATRPeriod
}

// Lookback is the first index at which Value is defined.
func (p ForceParams) Lookback() int {
	raw := max(1, p.weightLookback()+p.AutoScalePeriod-1)
	return raw + p.SmoothPeriod - 1
}

// SigmaLookback is the first index at which Sigma is defined.
func (p ForceParams) SigmaLookback() int {
	return p.Lookback() + p.DeviationPeriod - 1
}

// ForceIndex computes raw = (c[i]-c[i-1]) * weight/avg(weight) * scale and
// smooths it with an EMA. A zero average weight falls back to a ratio of 1.
func ForceIndex(s *model.PriceSeries, p ForceParams) ForceResult {
	closes := s.Closes()
	n := len(closes)

	var weight Line
	if p.WeightSource == WeightVolume {
		weight = FromValues(s.Volumes())
	} else {
		weight = ATR(s.Highs(), s.Lows(), closes, p.ATRPeriod)
	}
	avg := SMA(weight, p.AutoScalePeriod)

	change := NewLine(n)
	raw := NewLine(n)
	for i := 1; i < n; i++ {
		d := closes[i] - closes[i-1]
		change[i] = d
		w, okW := weight.At(i)
		a, okA := avg.At(i)
		if !okW || !okA {
			continue
		}
		ratio := 1.0
		if a != 0 {
			ratio = w / a
		}
		raw[i] = d * ratio * p.ScaleFactor
	}
	value := EMA(raw, p.SmoothPeriod)
	return ForceResult{
		Weight: weight,
		Raw:    raw,
		Value:  value,
		Change: change,
		Sigma:  StdDev(value, p.DeviationPeriod),
	}
}

// ClassifyDirection combines the force index sign with the sign of the
// one-bar price change. v == 0 counts as non-negative and d == 0 selects
// the weak band.
func ClassifyDirection(v, d float64) model.MomentumState {
	if v < 0 {
		if d < 0 {
			return model.StronglyNegative
		}
		return model.Negative
	}
	if d > 0 {
		return model.StronglyPositive
	}
	return model.Positive
}

// ClassifyDeviation splits each sign into a strong band beyond k*sigma and
// a weak band inside it.
func ClassifyDeviation(v, sigma, k float64) model.MomentumState {
	t := k * sigma
	switch {
	case v < -t:
		return model.StronglyNegative
	case v < 0:
		return model.Negative
	case v > t:
		return model.StronglyPositive
	default:
		return model.Positive
	}
}
