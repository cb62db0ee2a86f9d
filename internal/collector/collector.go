package collector

import (
	"fmt"
	"math"
	"sort"
	"time"

	"SetupScanner/internal/model"
)

// MockFetcher serves fixed or generated series for development and testing.
type MockFetcher struct {
	Series map[string]*model.PriceSeries
	Errors map[string]error
	// Generated lists symbols synthesised on demand with Bars bars each.
	Generated []string
	Bars      int
	Price     float64
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) Symbols() ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for s := range m.Series {
		add(s)
	}
	for s := range m.Errors {
		add(s)
	}
	for _, s := range m.Generated {
		add(s)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MockFetcher) LoadSeries(symbol string) (*model.PriceSeries, error) {
	if err, ok := m.Errors[symbol]; ok {
		return nil, err
	}
	if s, ok := m.Series[symbol]; ok {
		return s, nil
	}
	for _, g := range m.Generated {
		if g == symbol {
			return &model.PriceSeries{Symbol: symbol, Bars: generateMockBars(m.Price, m.Bars)}, nil
		}
	}
	return nil, fmt.Errorf("mock: unknown symbol %s", symbol)
}

var mockStart = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// generateMockBars is a slow sine wave around basePrice, so generated series
// move through ranges, breakouts and pullbacks deterministically.
func generateMockBars(basePrice float64, count int) []model.OHLCV {
	if basePrice <= 0 {
		basePrice = 100
	}
	bars := make([]model.OHLCV, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + 0.08*math.Sin(float64(i)/9) + 0.02*math.Sin(float64(i)/2.3))
		bars[i] = model.OHLCV{
			Time:   mockStart.AddDate(0, 0, i),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000 * (1 + 0.5*math.Sin(float64(i)/3)),
		}
	}
	return bars
}

// Collector resolves the symbol universe and loads validated series.
type Collector struct {
	Fetcher Fetcher
	Symbols []string
}

// NewCollector creates a new Collector. An empty symbol list means every
// symbol the fetcher serves.
func NewCollector(fetcher Fetcher, symbols []string) *Collector {
	return &Collector{Fetcher: fetcher, Symbols: symbols}
}

// Universe returns the de-duplicated, sorted symbol list for a run.
func (c *Collector) Universe() ([]string, error) {
	symbols := c.Symbols
	if len(symbols) == 0 {
		var err error
		symbols, err = c.Fetcher.Symbols()
		if err != nil {
			return nil, fmt.Errorf("list symbols from %s: %w", c.Fetcher.Name(), err)
		}
	}
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

// Load fetches one series and checks the ordering contract.
func (c *Collector) Load(symbol string) (*model.PriceSeries, error) {
	s, err := c.Fetcher.LoadSeries(symbol)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", symbol, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
