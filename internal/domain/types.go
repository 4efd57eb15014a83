// Package domain defines the core data types shared across the backfill
// pipeline: daily OHLCV rows, date ranges, and run summaries.
package domain

import (
	"time"
)

// DateFormat is the canonical on-the-wire and on-disk date layout.
const DateFormat = "2006-01-02"

// ---------------------------------------------------------------------------
// Rows
// ---------------------------------------------------------------------------

// Row is one daily OHLCV record for a symbol, optionally annotated with
// derived-feature and vendor-indicator fields. Numeric fields are pointers so
// that a value the vendor omitted, or that failed numeric coercion, stays
// distinguishable from zero. Extra holds derived/indicator columns; an absent
// key means the value is null for that date.
type Row struct {
	Symbol string
	Date   string // YYYY-MM-DD
	Open   *float64
	High   *float64
	Low    *float64
	Close  *float64
	Volume *float64
	Extra  map[string]float64
}

// SetExtra attaches a named feature value to the row, allocating the map on
// first use.
func (r *Row) SetExtra(name string, v float64) {
	if r.Extra == nil {
		r.Extra = make(map[string]float64)
	}
	r.Extra[name] = v
}

// YearMonth returns the YYYY-MM prefix of the row's date.
func (r *Row) YearMonth() string {
	if len(r.Date) < 7 {
		return r.Date
	}
	return r.Date[:7]
}

// Float returns a pointer to v. Convenience for building nullable fields.
func Float(v float64) *float64 { return &v }

// ---------------------------------------------------------------------------
// Date range
// ---------------------------------------------------------------------------

// DateRange is an inclusive calendar date window. Start is never after End.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// LastYears returns the range covering the trailing n years ending today.
func LastYears(n int) DateRange {
	now := time.Now().UTC().Truncate(24 * time.Hour)
	return DateRange{Start: now.AddDate(-n, 0, 0), End: now}
}

// StartDate returns Start formatted as YYYY-MM-DD.
func (dr DateRange) StartDate() string { return dr.Start.Format(DateFormat) }

// EndDate returns End formatted as YYYY-MM-DD.
func (dr DateRange) EndDate() string { return dr.End.Format(DateFormat) }

// ---------------------------------------------------------------------------
// Run results
// ---------------------------------------------------------------------------

// SymbolResult records the outcome of one symbol's backfill. Err is empty on
// success.
type SymbolResult struct {
	Symbol     string `json:"symbol"`
	RowCount   int    `json:"row_count,omitempty"`
	OutputPath string `json:"output_path,omitempty"`
	Err        string `json:"error,omitempty"`
}

// Failed reports whether the symbol's pipeline ended in an error.
func (r SymbolResult) Failed() bool { return r.Err != "" }

// RunSummary is the aggregate outcome of one backfill run.
type RunSummary struct {
	StartDate    string         `json:"start_date"`
	EndDate      string         `json:"end_date"`
	TickerCount  int            `json:"tickers_count"`
	Rows         int            `json:"rows"`
	FilesWritten []string       `json:"files_written"`
	Results      []SymbolResult `json:"results"`
	Errors       []SymbolResult `json:"errors"`
	MinDate      string         `json:"min_date,omitempty"`
	MaxDate      string         `json:"max_date,omitempty"`
}
