package sink

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"histfill/internal/domain"
)

// canonicalHeader is written when a symbol produced no rows at all.
var canonicalHeader = []string{"date", "open", "high", "low", "close", "volume"}

// SymbolSink writes one CSV per symbol holding its full row history with all
// attached derived and indicator columns.
type SymbolSink struct {
	OutputDir string
}

// NewSymbolSink creates a SymbolSink rooted at the given output directory.
func NewSymbolSink(outputDir string) *SymbolSink {
	return &SymbolSink{OutputDir: outputDir}
}

// WriteSymbol writes <OutputDir>/<SYMBOL>.csv. The column set is the union of
// all keys seen across the symbol's rows, with date always first and the
// remaining columns sorted alphabetically. A symbol with zero rows still gets
// a file containing just the canonical OHLCV header.
func (s *SymbolSink) WriteSymbol(symbol string, rows []domain.Row) (string, error) {
	if err := os.MkdirAll(s.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}

	path := filepath.Join(s.OutputDir, symbol+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := columnsFor(rows)
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("writing header for %s: %w", symbol, err)
	}

	for _, row := range rows {
		record := make([]string, len(header))
		for i, col := range header {
			record[i] = cellValue(row, col)
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("writing row for %s: %w", symbol, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flushing %s: %w", path, err)
	}
	return path, nil
}

// columnsFor returns the header for a symbol's rows: date first, then the
// union of all other keys sorted alphabetically. With no rows the canonical
// OHLCV header is used.
func columnsFor(rows []domain.Row) []string {
	if len(rows) == 0 {
		return canonicalHeader
	}

	seen := map[string]bool{"open": true, "high": true, "low": true, "close": true, "volume": true}
	for _, row := range rows {
		for k := range row.Extra {
			seen[k] = true
		}
	}

	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return append([]string{"date"}, cols...)
}

// cellValue renders one column of one row. Null values become empty cells.
func cellValue(row domain.Row, col string) string {
	var v *float64
	switch col {
	case "date":
		return row.Date
	case "open":
		v = row.Open
	case "high":
		v = row.High
	case "low":
		v = row.Low
	case "close":
		v = row.Close
	case "volume":
		v = row.Volume
	default:
		if x, ok := row.Extra[col]; ok {
			v = &x
		}
	}
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

// ReadSymbol reads a per-symbol CSV back into rows. Used by tests and ad-hoc
// inspection tooling.
func ReadSymbol(path, symbol string) ([]domain.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: empty file", path)
	}

	header := records[0]
	rows := make([]domain.Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := domain.Row{Symbol: symbol}
		for i, col := range header {
			if i >= len(rec) || rec[i] == "" {
				continue
			}
			if col == "date" {
				row.Date = rec[i]
				continue
			}
			val, err := strconv.ParseFloat(rec[i], 64)
			if err != nil {
				continue
			}
			switch col {
			case "open":
				row.Open = &val
			case "high":
				row.High = &val
			case "low":
				row.Low = &val
			case "close":
				row.Close = &val
			case "volume":
				row.Volume = &val
			default:
				row.SetExtra(col, val)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
