package calculator

import (
	"math"

	"github.com/markcheno/go-talib"
)

// SMA is the simple moving average. The first defined slot is
// first(src)+period-1.
func SMA(src Line, period int) Line {
	if period <= 0 {
		return NewLine(len(src))
	}
	return applyDefined(src, period-1, func(v []float64) []float64 {
		return talib.Sma(v, period)
	})
}

// EMA is the exponential moving average with k = 2/(period+1), seeded with
// the first defined input. The recurrence runs from the seed, but the first
// period-1 outputs are left undefined as warm-up.
func EMA(src Line, period int) Line {
	out := NewLine(len(src))
	start := src.FirstDefined()
	if period <= 0 || start < 0 {
		return out
	}
	k := 2.0 / float64(period+1)
	ema := src[start]
	for i := start; i < len(src); i++ {
		if i > start {
			ema = src[i]*k + ema*(1-k)
		}
		if i >= start+period-1 {
			out[i] = ema
		}
	}
	return out
}

// WMA is the linearly weighted moving average, weights 1..period with the
// most recent bar weighted highest.
func WMA(src Line, period int) Line {
	if period <= 0 {
		return NewLine(len(src))
	}
	return applyDefined(src, period-1, func(v []float64) []float64 {
		return talib.Wma(v, period)
	})
}

// HullPeriods returns the half and smoothing lengths used by HMA.
func HullPeriods(period int) (half, smooth int) {
	half = period / 2
	smooth = int(math.Round(math.Sqrt(float64(period))))
	if smooth < 1 {
		smooth = 1
	}
	return half, smooth
}

// HullLookback is the number of leading undefined slots HMA adds.
func HullLookback(period int) int {
	_, smooth := HullPeriods(period)
	return period - 1 + smooth - 1
}

// HMA is 2*WMA(period/2) - WMA(period), smoothed by WMA(round(sqrt(period))).
// period must be at least 2.
func HMA(src Line, period int) Line {
	if period < 2 {
		return NewLine(len(src))
	}
	half, smooth := HullPeriods(period)
	fast := WMA(src, half)
	slow := WMA(src, period)
	raw := NewLine(len(src))
	for i := range src {
		f, okF := fast.At(i)
		s, okS := slow.At(i)
		if okF && okS {
			raw[i] = 2*f - s
		}
	}
	return WMA(raw, smooth)
}
