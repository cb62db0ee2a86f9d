package calculator

import "github.com/markcheno/go-talib"

// ATR is Wilder's average true range. True range needs the previous close,
// so the first defined slot is index period.
func ATR(high, low, close []float64, period int) Line {
	n := len(close)
	out := NewLine(n)
	if period <= 0 || n <= period || len(high) != n || len(low) != n {
		return out
	}
	res := talib.Atr(high, low, close, period)
	for i := period; i < n; i++ {
		out[i] = res[i]
	}
	return out
}

// StdDev is the rolling population standard deviation over period slots.
func StdDev(src Line, period int) Line {
	if period <= 1 {
		return NewLine(len(src))
	}
	return applyDefined(src, period-1, func(v []float64) []float64 {
		return talib.StdDev(v, period, 1)
	})
}
