package sink

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"histfill/internal/domain"
)

func f(v float64) *float64 { return domain.Float(v) }

func TestMonthlySinkPartitions(t *testing.T) {
	dir := t.TempDir()
	s := NewMonthlySink(dir)

	rows := []domain.Row{
		{Symbol: "MSFT", Date: "2024-02-01", Open: f(1), Close: f(2), Volume: f(10)},
		{Symbol: "AAPL", Date: "2024-01-31", Open: f(3), Close: f(4), Volume: f(20)},
		{Symbol: "AAPL", Date: "2024-02-01", Open: f(5), Close: f(6), Volume: f(30)},
		{Symbol: "MSFT", Date: "2024-01-30", Open: f(7), Close: f(8), Volume: f(40)},
	}

	written, err := s.WriteMonthly(rows)
	if err != nil {
		t.Fatalf("WriteMonthly: %v", err)
	}
	if len(written) != 2 {
		t.Fatalf("wrote %d files, want 2 (one per month): %v", len(written), written)
	}

	jan, err := ReadMonthly(filepath.Join(dir, "2024-01.parquet"))
	if err != nil {
		t.Fatalf("ReadMonthly jan: %v", err)
	}
	if len(jan) != 2 {
		t.Fatalf("january has %d rows, want 2", len(jan))
	}
	// Sorted by (date, symbol).
	if jan[0].Date != "2024-01-30" || jan[0].Symbol != "MSFT" {
		t.Errorf("jan[0] = %s/%s, want 2024-01-30/MSFT", jan[0].Date, jan[0].Symbol)
	}
	if jan[1].Date != "2024-01-31" || jan[1].Symbol != "AAPL" {
		t.Errorf("jan[1] = %s/%s, want 2024-01-31/AAPL", jan[1].Date, jan[1].Symbol)
	}

	feb, err := ReadMonthly(filepath.Join(dir, "2024-02.parquet"))
	if err != nil {
		t.Fatalf("ReadMonthly feb: %v", err)
	}
	if len(feb) != 2 {
		t.Fatalf("february has %d rows, want 2", len(feb))
	}
	// Same date: symbol breaks the tie.
	if feb[0].Symbol != "AAPL" || feb[1].Symbol != "MSFT" {
		t.Errorf("feb order = %s, %s; want AAPL, MSFT", feb[0].Symbol, feb[1].Symbol)
	}
}

func TestMonthlySinkNoRowsNoFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewMonthlySink(dir)

	written, err := s.WriteMonthly(nil)
	if err != nil {
		t.Fatalf("WriteMonthly(nil): %v", err)
	}
	if len(written) != 0 {
		t.Errorf("wrote %v, want no files", written)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("output dir not empty: %v", entries)
	}
}

func TestMonthlySinkNullsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewMonthlySink(dir)

	rows := []domain.Row{
		{Symbol: "AAPL", Date: "2024-03-04", Open: nil, High: f(2), Low: f(1), Close: f(1.5), Volume: nil},
	}
	if _, err := s.WriteMonthly(rows); err != nil {
		t.Fatalf("WriteMonthly: %v", err)
	}

	got, err := ReadMonthly(filepath.Join(dir, "2024-03.parquet"))
	if err != nil {
		t.Fatalf("ReadMonthly: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d rows, want 1", len(got))
	}
	if got[0].Open != nil || got[0].Volume != nil {
		t.Errorf("null open/volume did not survive the round trip: %+v", got[0])
	}
	if got[0].Close == nil || *got[0].Close != 1.5 {
		t.Errorf("close = %v, want 1.5", got[0].Close)
	}
}

func TestSymbolSinkHeaderOrder(t *testing.T) {
	dir := t.TempDir()
	s := NewSymbolSink(dir)

	rows := []domain.Row{
		{
			Symbol: "NVDA", Date: "2024-01-02",
			Open: f(1), High: f(2), Low: f(0.5), Close: f(1.5), Volume: f(100),
			Extra: map[string]float64{"daily_return": 0.01, "rsi_rsi": 55},
		},
		{
			Symbol: "NVDA", Date: "2024-01-03",
			Open: f(1.5), High: f(2.5), Low: f(1), Close: f(2), Volume: f(120),
			Extra: map[string]float64{"volume_zscore": 0.7},
		},
	}

	path, err := s.WriteSymbol("NVDA", rows)
	if err != nil {
		t.Fatalf("WriteSymbol: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2 rows", len(lines))
	}

	wantHeader := "date,close,daily_return,high,low,open,rsi_rsi,volume,volume_zscore"
	if lines[0] != wantHeader {
		t.Errorf("header = %q, want %q", lines[0], wantHeader)
	}
}

func TestSymbolSinkEmptySymbol(t *testing.T) {
	dir := t.TempDir()
	s := NewSymbolSink(dir)

	path, err := s.WriteSymbol("GHOST", nil)
	if err != nil {
		t.Fatalf("WriteSymbol: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	got := strings.TrimSpace(string(data))
	if got != "date,open,high,low,close,volume" {
		t.Errorf("empty-symbol file = %q, want canonical OHLCV header only", got)
	}
}

func TestSymbolSinkRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewSymbolSink(dir)

	rows := []domain.Row{
		{Symbol: "AAPL", Date: "2024-01-02", Open: f(185.25), Close: f(186.5), Volume: f(5e7),
			Extra: map[string]float64{"daily_return": 0.0123456789}},
		{Symbol: "AAPL", Date: "2024-01-03", Open: nil, Close: f(187)},
	}

	path, err := s.WriteSymbol("AAPL", rows)
	if err != nil {
		t.Fatalf("WriteSymbol: %v", err)
	}

	got, err := ReadSymbol(path, "AAPL")
	if err != nil {
		t.Fatalf("ReadSymbol: %v", err)
	}
	if len(got) != len(rows) {
		t.Fatalf("round trip row count = %d, want %d", len(got), len(rows))
	}
	if got[0].Open == nil || *got[0].Open != 185.25 {
		t.Errorf("open = %v, want 185.25", got[0].Open)
	}
	if got[0].Extra["daily_return"] != 0.0123456789 {
		t.Errorf("daily_return = %v, want 0.0123456789", got[0].Extra["daily_return"])
	}
	if got[1].Open != nil {
		t.Errorf("null open should stay null, got %v", *got[1].Open)
	}
	if got[1].Close == nil || *got[1].Close != 187 {
		t.Errorf("close = %v, want 187", got[1].Close)
	}
}
