package collector

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"SetupScanner/internal/model"
)

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCSVFetcher_LoadSeries(t *testing.T) {
	dir := t.TempDir()
	body := "\ufeffDate,Open,High,Low,Close,Adj Close,Volume\n" +
		"2024-01-03,10.5,11,10,10.75,10.7,1200\n" +
		"2024-01-02,10,10.6,9.9,10.5,10.4,1000\n" +
		"2024-01-04,,,,,,\n" +
		"2024-01-03,10.5,11.2,10,11,10.9,1300\n" +
		"2024-01-05,11,11.5,10.9,11.4,11.3,\n"
	writeFile(t, dir, "BHP.csv", []byte(body))

	s, err := NewCSVFetcher(dir).LoadSeries("BHP")
	if err != nil {
		t.Fatalf("LoadSeries: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("expected 3 bars, got %d", s.Len())
	}
	if got := s.Bars[0].Time.Format("2006-01-02"); got != "2024-01-02" {
		t.Errorf("first bar %s, want 2024-01-02", got)
	}
	if s.Bars[1].Close != 11 || s.Bars[1].Volume != 1300 {
		t.Errorf("duplicate date should keep the last row, got %+v", s.Bars[1])
	}
	if s.Bars[2].Volume != 0 {
		t.Errorf("missing volume should read as 0, got %v", s.Bars[2].Volume)
	}
}

func TestCSVFetcher_UTF16(t *testing.T) {
	dir := t.TempDir()
	text := "date,close,open,low,high,volume\n01/02/2024,5,4,3.5,5.5,10\n"
	data := []byte{0xFF, 0xFE}
	for _, r := range text {
		data = append(data, byte(r), 0)
	}
	writeFile(t, dir, "CBA.csv", data)

	s, err := NewCSVFetcher(dir).LoadSeries("CBA")
	if err != nil {
		t.Fatalf("LoadSeries: %v", err)
	}
	if s.Len() != 1 || s.Bars[0].Close != 5 || s.Bars[0].High != 5.5 {
		t.Errorf("unexpected bars %+v", s.Bars)
	}
}

func TestCSVFetcher_Errors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "NOHDR.csv", []byte("Date,Price\n2024-01-02,5\n"))
	writeFile(t, dir, "EMPTY.csv", []byte("Date,Open,High,Low,Close,Volume\n"))
	f := NewCSVFetcher(dir)

	if _, err := f.LoadSeries("NOHDR"); err == nil {
		t.Error("expected missing column error")
	}
	if _, err := f.LoadSeries("EMPTY"); !errors.Is(err, model.ErrInvalidSeries) {
		t.Errorf("expected ErrInvalidSeries, got %v", err)
	}
	if _, err := f.LoadSeries("MISSING"); err == nil {
		t.Error("expected open error")
	}
}

func TestCSVFetcher_Symbols(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "WES.csv", nil)
	writeFile(t, dir, "ANZ.CSV", nil)
	writeFile(t, dir, "notes.txt", nil)
	if err := os.Mkdir(filepath.Join(dir, "sub.csv"), 0o755); err != nil {
		t.Fatal(err)
	}
	got, err := NewCSVFetcher(dir).Symbols()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "ANZ" || got[1] != "WES" {
		t.Errorf("symbols = %v", got)
	}
}

func TestCollector_Universe(t *testing.T) {
	m := &MockFetcher{Generated: []string{"ZZZ", "AAA"}, Bars: 10}
	c := NewCollector(m, nil)
	got, err := c.Universe()
	if err != nil || len(got) != 2 || got[0] != "AAA" {
		t.Fatalf("universe = %v, %v", got, err)
	}

	c = NewCollector(m, []string{"B", "A", "B", ""})
	got, _ = c.Universe()
	if len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Errorf("configured universe = %v", got)
	}
}

func TestCollector_Load(t *testing.T) {
	boom := errors.New("boom")
	m := &MockFetcher{
		Generated: []string{"GEN"},
		Bars:      50,
		Price:     20,
		Errors:    map[string]error{"BAD": boom},
		Series:    map[string]*model.PriceSeries{"EMPTY": {Symbol: "EMPTY"}},
	}
	c := NewCollector(m, nil)

	s, err := c.Load("GEN")
	if err != nil || s.Len() != 50 {
		t.Fatalf("generated load: %v", err)
	}
	if _, err := c.Load("BAD"); !errors.Is(err, boom) {
		t.Errorf("expected wrapped fetch error, got %v", err)
	}
	if _, err := c.Load("EMPTY"); !errors.Is(err, model.ErrInvalidSeries) {
		t.Errorf("expected ErrInvalidSeries, got %v", err)
	}
}
