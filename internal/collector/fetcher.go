package collector

import "SetupScanner/internal/model"

// Fetcher is a source of daily bar series. Implementations return bars in
// chronological order with no duplicate dates.
type Fetcher interface {
	// Symbols lists every symbol the source can serve.
	Symbols() ([]string, error)
	LoadSeries(symbol string) (*model.PriceSeries, error)
	Name() string
}
