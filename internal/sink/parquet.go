// Package sink writes backfill output to disk: pooled monthly Parquet
// partitions for the eod variant, or one CSV per symbol for the features
// variant.
package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/parquet-go/parquet-go"

	"histfill/internal/domain"
)

// MonthlySink writes pooled rows from all symbols as one Parquet file per
// calendar month.
type MonthlySink struct {
	OutputDir string
}

// NewMonthlySink creates a MonthlySink rooted at the given output directory.
func NewMonthlySink(outputDir string) *MonthlySink {
	return &MonthlySink{OutputDir: outputDir}
}

// monthlyRecord is the Parquet schema for monthly partitions. Numeric fields
// are optional so that a null survives the round trip.
type monthlyRecord struct {
	Symbol string   `parquet:"symbol"`
	Date   string   `parquet:"date"`
	Open   *float64 `parquet:"open,optional"`
	High   *float64 `parquet:"high,optional"`
	Low    *float64 `parquet:"low,optional"`
	Close  *float64 `parquet:"close,optional"`
	Volume *float64 `parquet:"volume,optional"`
}

// WriteMonthly groups rows by calendar year-month and writes one Parquet
// file per month at <OutputDir>/<YYYY-MM>.parquet, each sorted by
// (date, symbol). It returns the written paths. No rows means no files, which
// is not an error.
func (s *MonthlySink) WriteMonthly(rows []domain.Row) ([]string, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	groups := make(map[string][]monthlyRecord)
	for _, r := range rows {
		ym := r.YearMonth()
		groups[ym] = append(groups[ym], monthlyRecord{
			Symbol: r.Symbol,
			Date:   r.Date,
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}

	if err := os.MkdirAll(s.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	months := make([]string, 0, len(groups))
	for ym := range groups {
		months = append(months, ym)
	}
	sort.Strings(months)

	var written []string
	for _, ym := range months {
		records := groups[ym]
		sort.Slice(records, func(i, j int) bool {
			if records[i].Date != records[j].Date {
				return records[i].Date < records[j].Date
			}
			return records[i].Symbol < records[j].Symbol
		})

		path := filepath.Join(s.OutputDir, ym+".parquet")
		if err := parquet.WriteFile(path, records); err != nil {
			return written, fmt.Errorf("writing %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// ReadMonthly reads one monthly partition back. Used by tests and ad-hoc
// inspection tooling.
func ReadMonthly(path string) ([]domain.Row, error) {
	records, err := parquet.ReadFile[monthlyRecord](path)
	if err != nil {
		return nil, err
	}
	rows := make([]domain.Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, domain.Row{
			Symbol: rec.Symbol,
			Date:   rec.Date,
			Open:   rec.Open,
			High:   rec.High,
			Low:    rec.Low,
			Close:  rec.Close,
			Volume: rec.Volume,
		})
	}
	return rows, nil
}
