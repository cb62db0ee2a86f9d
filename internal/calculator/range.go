package calculator

import (
	"math"

	"github.com/markcheno/go-talib"

	"SetupScanner/internal/model"
)

// Highest is the rolling maximum of high over lookback bars ending at i.
func Highest(high []float64, lookback int) Line {
	if lookback <= 0 {
		return NewLine(len(high))
	}
	return applyDefined(FromValues(high), lookback-1, func(v []float64) []float64 {
		return talib.Max(v, lookback)
	})
}

// Lowest is the rolling minimum of low over lookback bars ending at i.
func Lowest(low []float64, lookback int) Line {
	if lookback <= 0 {
		return NewLine(len(low))
	}
	return applyDefined(FromValues(low), lookback-1, func(v []float64) []float64 {
		return talib.Min(v, lookback)
	})
}

// Normalizer maps a close into a comparable position value.
type Normalizer interface {
	// Compute returns one value per bar. An undefined slot at or past
	// Lookback means the position is indeterminate at that bar.
	Compute(s *model.PriceSeries) Line
	// Lookback is the first index at which Compute can be defined.
	Lookback() int
	Mode() string
}

// RangeNormalizer places close within the rolling high/low channel:
// 2*(c-LL)/(HH-LL) - 1, clamped to [-1, 1]. A zero-width channel is
// indeterminate.
type RangeNormalizer struct {
	Period int
}

func (r RangeNormalizer) Lookback() int { return r.Period - 1 }
func (r RangeNormalizer) Mode() string  { return "range" }

func (r RangeNormalizer) Compute(s *model.PriceSeries) Line {
	closes := s.Closes()
	hh := Highest(s.Highs(), r.Period)
	ll := Lowest(s.Lows(), r.Period)
	out := NewLine(len(closes))
	for i, c := range closes {
		h, okH := hh.At(i)
		l, okL := ll.At(i)
		if !okH || !okL || h == l {
			continue
		}
		out[i] = clamp(2*(c-l)/(h-l)-1, -1, 1)
	}
	return out
}

// BasisNormalizer is the signed distance of close from its EMA basis, in
// price units.
type BasisNormalizer struct {
	Period int
}

func (b BasisNormalizer) Lookback() int { return b.Period - 1 }
func (b BasisNormalizer) Mode() string  { return "basis" }

func (b BasisNormalizer) Compute(s *model.PriceSeries) Line {
	closes := FromValues(s.Closes())
	basis := EMA(closes, b.Period)
	out := NewLine(len(closes))
	for i, c := range closes {
		if v, ok := basis.At(i); ok {
			out[i] = c - v
		}
	}
	return out
}

// Deviation is the rolling standard deviation of close over the basis
// period: the band unit for sigma thresholds.
func (b BasisNormalizer) Deviation(s *model.PriceSeries) Line {
	return StdDev(FromValues(s.Closes()), b.Period)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
