package model

import (
	"fmt"
	"time"
)

// OHLCV represents a single daily trading session.
type OHLCV struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// PriceSeries holds the ordered daily bars of one symbol. It is treated as
// immutable once loaded; indicator code reads it and never writes to Bars.
type PriceSeries struct {
	Symbol string
	Bars   []OHLCV
}

// Len returns the number of bars in the series.
func (s *PriceSeries) Len() int { return len(s.Bars) }

// Validate checks the contract a bar source must honour: non-empty, strictly
// increasing dates, no duplicates.
func (s *PriceSeries) Validate() error {
	if len(s.Bars) == 0 {
		return fmt.Errorf("%s: %w: no bars", s.Symbol, ErrInvalidSeries)
	}
	for i := 1; i < len(s.Bars); i++ {
		prev, cur := s.Bars[i-1].Time, s.Bars[i].Time
		if cur.Equal(prev) {
			return fmt.Errorf("%s: %w: duplicate date %s", s.Symbol, ErrInvalidSeries, cur.Format("2006-01-02"))
		}
		if cur.Before(prev) {
			return fmt.Errorf("%s: %w: bar %d out of order", s.Symbol, ErrInvalidSeries, i)
		}
	}
	return nil
}

// Closes extracts the close prices.
func (s *PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Highs extracts the session highs.
func (s *PriceSeries) Highs() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.High
	}
	return out
}

// Lows extracts the session lows.
func (s *PriceSeries) Lows() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Low
	}
	return out
}

// Volumes extracts the session volumes.
func (s *PriceSeries) Volumes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Volume
	}
	return out
}
