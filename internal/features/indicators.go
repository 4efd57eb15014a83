package features

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"histfill/internal/config"
	"histfill/internal/domain"
	"histfill/internal/provider"
)

// MergeIndicators fetches every configured technical indicator for the symbol
// and left-joins the resulting fields onto rows by exact date match. A failing
// indicator call is logged and skipped; it never fails the symbol. When two
// indicators supply the same field for a date, the later-configured one wins.
// Indicator dates absent from rows are dropped: the OHLCV series is
// authoritative for which dates exist.
func MergeIndicators(ctx context.Context, fetcher provider.IndicatorFetcher, symbol string, rows []domain.Row, technicals []config.Technical, dr domain.DateRange, log *slog.Logger) {
	if len(technicals) == 0 || len(rows) == 0 {
		return
	}
	if log == nil {
		log = slog.Default()
	}

	merged := make(map[string]map[string]float64)

	for _, tech := range technicals {
		for _, params := range indicatorCalls(tech) {
			values, err := fetcher.FetchIndicator(ctx, symbol, tech.Name, params, dr)
			if err != nil {
				log.Warn("indicator fetch failed, skipping",
					"symbol", symbol,
					"indicator", tech.Name,
					"err", err,
				)
				continue
			}
			for date, fields := range values {
				dst := merged[date]
				if dst == nil {
					dst = make(map[string]float64, len(fields))
					merged[date] = dst
				}
				for k, v := range fields {
					dst[k] = v
				}
			}
		}
	}

	for i := range rows {
		for k, v := range merged[rows[i].Date] {
			rows[i].SetExtra(k, v)
		}
	}
}

// indicatorCalls expands one configured technical into the parameter sets of
// its vendor calls: one call per period when a periods list is present,
// otherwise a single call carrying the configured parameter map.
func indicatorCalls(tech config.Technical) []map[string]string {
	if len(tech.Periods) > 0 {
		calls := make([]map[string]string, 0, len(tech.Periods))
		for _, p := range tech.Periods {
			calls = append(calls, map[string]string{"time_period": strconv.Itoa(p)})
		}
		return calls
	}

	params := make(map[string]string, len(tech.Params))
	for k, v := range tech.Params {
		params[k] = fmt.Sprint(v)
	}
	return []map[string]string{params}
}
