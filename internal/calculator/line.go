// Package calculator holds the pure indicator recurrences. Every function
// takes its inputs by value or read-only slice and returns a freshly
// allocated Line aligned index-for-index with the input bars.
package calculator

import "math"

// Line is a per-bar derived value. NaN marks an undefined slot; undefined
// slots only ever appear as a leading prefix.
type Line []float64

// NewLine returns a Line of n undefined slots.
func NewLine(n int) Line {
	l := make(Line, n)
	for i := range l {
		l[i] = math.NaN()
	}
	return l
}

// FromValues wraps raw inputs (closes, volumes) as a fully defined Line.
func FromValues(v []float64) Line {
	l := make(Line, len(v))
	copy(l, v)
	return l
}

// At returns the value at i and whether it is defined.
func (l Line) At(i int) (float64, bool) {
	if i < 0 || i >= len(l) || math.IsNaN(l[i]) {
		return 0, false
	}
	return l[i], true
}

// Defined reports whether slot i holds a value.
func (l Line) Defined(i int) bool {
	_, ok := l.At(i)
	return ok
}

// FirstDefined returns the first defined index, or -1.
func (l Line) FirstDefined() int {
	for i, v := range l {
		if !math.IsNaN(v) {
			return i
		}
	}
	return -1
}

// applyDefined runs a TA-Lib style function over the defined suffix of src.
// TA-Lib writes zeros into its own lookback slots; those are replaced by NaN
// so the warm-up region stays undefined.
func applyDefined(src Line, lookback int, fn func([]float64) []float64) Line {
	out := NewLine(len(src))
	start := src.FirstDefined()
	if start < 0 || len(src)-start <= lookback {
		return out
	}
	res := fn(src[start:])
	for i := lookback; i < len(res); i++ {
		out[start+i] = res[i]
	}
	return out
}
