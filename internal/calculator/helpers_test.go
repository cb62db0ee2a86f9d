package calculator

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"SetupScanner/internal/model"
)

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func seriesFromCloses(closes []float64) *model.PriceSeries {
	s := &model.PriceSeries{Symbol: "TEST"}
	for i, c := range closes {
		s.Bars = append(s.Bars, model.OHLCV{
			Time:   day0.AddDate(0, 0, i),
			Open:   c,
			High:   c + 0.25,
			Low:    c - 0.25,
			Close:  c,
			Volume: 1000,
		})
	}
	return s
}

func randomSeries(n int, seed int64) *model.PriceSeries {
	rng := rand.New(rand.NewSource(seed))
	s := &model.PriceSeries{Symbol: "RAND"}
	price := 50.0
	for i := 0; i < n; i++ {
		open := price
		price *= 1 + (rng.Float64()-0.5)*0.06
		hi := math.Max(open, price) * (1 + rng.Float64()*0.02)
		lo := math.Min(open, price) * (1 - rng.Float64()*0.02)
		s.Bars = append(s.Bars, model.OHLCV{
			Time:   day0.AddDate(0, 0, i),
			Open:   open,
			High:   hi,
			Low:    lo,
			Close:  price,
			Volume: 1e5 + rng.Float64()*1e5,
		})
	}
	return s
}

func prefix(s *model.PriceSeries, k int) *model.PriceSeries {
	return &model.PriceSeries{Symbol: s.Symbol, Bars: s.Bars[:k+1]}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Abs(b))
}

func assertFirstDefined(t *testing.T, name string, l Line, want int) {
	t.Helper()
	if got := l.FirstDefined(); got != want {
		t.Errorf("%s: first defined index %d, want %d", name, got, want)
	}
	for i := want; i >= 0 && i < len(l); i++ {
		if !l.Defined(i) {
			t.Errorf("%s: slot %d undefined after warm-up", name, i)
			return
		}
	}
}
