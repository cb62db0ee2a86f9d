package calculator

import (
	"time"

	"SetupScanner/internal/model"
)

// WeekIndex numbers the ISO week of every daily bar, starting at 0 for the
// week of the first bar. times must be ascending.
func WeekIndex(times []time.Time) []int {
	out := make([]int, len(times))
	w := -1
	var lastY, lastW int
	for i, t := range times {
		y, wk := t.ISOWeek()
		if w < 0 || y != lastY || wk != lastW {
			w++
			lastY, lastW = y, wk
		}
		out[i] = w
	}
	return out
}

// WeeklyCloses returns the last close of every week in week.
func WeeklyCloses(closes []float64, week []int) []float64 {
	if len(week) == 0 {
		return nil
	}
	out := make([]float64, week[len(week)-1]+1)
	for i, c := range closes {
		out[week[i]] = c
	}
	return out
}

// WeeklyFaderStates computes the fader on weekly closes and gives each daily
// bar the state of the last week completed before its own week, so a daily
// bar never sees the rest of its week.
func WeeklyFaderStates(times []time.Time, closes []float64, p FaderParams) []model.FaderState {
	week := WeekIndex(times)
	f := Fader(WeeklyCloses(closes, week), p)
	out := make([]model.FaderState, len(closes))
	for i, w := range week {
		out[i], _ = FaderStateAt(f, w-1)
	}
	return out
}
