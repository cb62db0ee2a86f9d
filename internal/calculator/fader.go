package calculator

import "SetupScanner/internal/model"

// FaderParams configures the cascaded-WMA / Hull / JMA composite.
type FaderParams struct {
	Fast int
	Slow int
	JMA  JMAParams
}

// Periods derives the five WMA stage lengths and the Hull length from the
// two inputs: f, s, t=f+s, F=s+t, Ft=t+F and hull S=F+Ft.
func (p FaderParams) Periods() (stages [5]int, hull int) {
	t := p.Fast + p.Slow
	big := p.Slow + t
	bigT := t + big
	return [5]int{p.Fast, p.Slow, t, big, bigT}, big + bigT
}

// Lookback is the first index at which Fader is defined.
func (p FaderParams) Lookback() int {
	stages, hull := p.Periods()
	cascade := 0
	for _, s := range stages {
		cascade += s - 1
	}
	cascade += HullLookback(hull)
	return max(cascade, p.JMA.Length-1)
}

// Fader is the mean of the Hull-smoothed WMA cascade and the JMA of close.
func Fader(close []float64, p FaderParams) Line {
	src := FromValues(close)
	stages, hull := p.Periods()
	cascade := src
	for _, period := range stages {
		cascade = WMA(cascade, period)
	}
	hma := HMA(cascade, hull)
	jma := JMA(src, p.JMA)

	out := NewLine(len(close))
	for i := range close {
		h, okH := hma.At(i)
		j, okJ := jma.At(i)
		if okH && okJ {
			out[i] = (h + j) / 2
		}
	}
	return out
}

// FaderStateAt is Rising when fader[i] is strictly above fader[i-1] and
// Falling otherwise. It reports false when either slot is undefined.
func FaderStateAt(f Line, i int) (model.FaderState, bool) {
	cur, ok := f.At(i)
	if !ok {
		return model.FaderUnset, false
	}
	prev, ok := f.At(i - 1)
	if !ok {
		return model.FaderUnset, false
	}
	if cur > prev {
		return model.Rising, true
	}
	return model.Falling, true
}
