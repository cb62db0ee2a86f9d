package collector

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"SetupScanner/internal/model"
)

// dateLayouts covers the export formats seen in daily bar dumps.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-07:00",
	time.RFC3339,
	"01/02/2006",
	"20060102",
}

// CSVFetcher reads one <SYMBOL>.csv file per symbol from Dir. Files need a
// header row naming Date, Open, High, Low, Close and Volume columns in any
// order; extra columns are ignored.
type CSVFetcher struct {
	Dir string
}

// NewCSVFetcher creates a CSVFetcher over dir.
func NewCSVFetcher(dir string) *CSVFetcher {
	return &CSVFetcher{Dir: dir}
}

func (f *CSVFetcher) Name() string { return "csv" }

// Symbols returns the base names of all .csv files in Dir, sorted.
func (f *CSVFetcher) Symbols() ([]string, error) {
	entries, err := os.ReadDir(f.Dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}
	var symbols []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		symbols = append(symbols, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}
	sort.Strings(symbols)
	return symbols, nil
}

// LoadSeries parses <Dir>/<symbol>.csv. Rows with unparsable prices are
// skipped, bars are sorted by date and a repeated date keeps the last row.
func (f *CSVFetcher) LoadSeries(symbol string) (*model.PriceSeries, error) {
	file, err := os.Open(filepath.Join(f.Dir, symbol+".csv"))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", symbol, err)
	}
	defer file.Close()

	bars, err := parseBars(file)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", symbol, err)
	}
	s := &model.PriceSeries{Symbol: symbol, Bars: bars}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func parseBars(r io.Reader) ([]model.OHLCV, error) {
	// BOMOverride switches to UTF-16 when a UTF-16 BOM is present and
	// strips a UTF-8 BOM otherwise.
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var bars []model.OHLCV
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		bar, ok := parseRow(rec, cols)
		if !ok {
			continue
		}
		bars = append(bars, bar)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	uniq := bars[:0]
	for _, b := range bars {
		if n := len(uniq); n > 0 && uniq[n-1].Time.Equal(b.Time) {
			uniq[n-1] = b
			continue
		}
		uniq = append(uniq, b)
	}
	return uniq, nil
}

type columns struct {
	date, open, high, low, close, volume int
}

func columnIndex(header []string) (columns, error) {
	c := columns{-1, -1, -1, -1, -1, -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "date", "datetime", "timestamp":
			c.date = i
		case "open":
			c.open = i
		case "high":
			c.high = i
		case "low":
			c.low = i
		case "close":
			c.close = i
		case "volume":
			c.volume = i
		}
	}
	if c.date < 0 || c.open < 0 || c.high < 0 || c.low < 0 || c.close < 0 {
		return c, fmt.Errorf("header %v: missing date/open/high/low/close column", header)
	}
	return c, nil
}

func parseRow(rec []string, c columns) (model.OHLCV, bool) {
	field := func(i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	t, ok := parseDate(field(c.date))
	if !ok {
		return model.OHLCV{}, false
	}
	var prices [4]float64
	for k, idx := range []int{c.open, c.high, c.low, c.close} {
		d, err := decimal.NewFromString(field(idx))
		if err != nil {
			return model.OHLCV{}, false
		}
		prices[k] = d.InexactFloat64()
	}
	vol, err := decimal.NewFromString(field(c.volume))
	if err != nil {
		vol = decimal.Zero
	}
	return model.OHLCV{
		Time:   t,
		Open:   prices[0],
		High:   prices[1],
		Low:    prices[2],
		Close:  prices[3],
		Volume: vol.InexactFloat64(),
	}, true
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
