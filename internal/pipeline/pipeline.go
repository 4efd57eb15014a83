// Package pipeline orchestrates a backfill run: it fans symbols out to a
// bounded worker pool, runs each symbol's fetch/derive/merge/write stages,
// and aggregates per-symbol outcomes into a run summary.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"histfill/internal/config"
	"histfill/internal/domain"
	"histfill/internal/features"
	"histfill/internal/provider"
	"histfill/internal/sink"
)

// Backfill runs one backfill over a symbol universe. Exactly one of Monthly
// or Symbols must be set; it selects the deployment variant. Indicators and
// Features are only consulted in the per-symbol variant.
type Backfill struct {
	Series     provider.SeriesFetcher
	Indicators provider.IndicatorFetcher
	Features   *config.FeatureConfig
	Monthly    *sink.MonthlySink
	Symbols    *sink.SymbolSink
	Range      domain.DateRange
	Workers    int
	Log        *slog.Logger
}

// Run processes every symbol independently on a bounded worker pool and
// returns the aggregate summary. Per-symbol failures are recorded, never
// propagated; Run only fails when the pooled monthly write fails.
func (b *Backfill) Run(ctx context.Context, symbols []string) (*domain.RunSummary, error) {
	log := b.Log
	if log == nil {
		log = slog.Default()
	}

	workers := b.Workers
	if workers <= 0 {
		workers = 8
	}
	if workers > len(symbols) && len(symbols) > 0 {
		workers = len(symbols)
	}

	enabled := b.enabledDerived(log)

	summary := &domain.RunSummary{
		StartDate:   b.Range.StartDate(),
		EndDate:     b.Range.EndDate(),
		TickerCount: len(symbols),
	}

	log.Info("starting backfill",
		"tickers", len(symbols),
		"from", summary.StartDate,
		"to", summary.EndDate,
		"workers", workers,
	)

	symCh := make(chan string, len(symbols))
	for _, sym := range symbols {
		symCh <- sym
	}
	close(symCh)

	var (
		mu       sync.Mutex
		pooled   []domain.Row
		done     atomic.Int64
		runStart = time.Now()
		wg       sync.WaitGroup
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range symCh {
				if ctx.Err() != nil {
					return
				}

				rows, res := b.processSymbol(ctx, sym, enabled, log)
				n := done.Add(1)

				mu.Lock()
				if res.Failed() {
					summary.Errors = append(summary.Errors, res)
				} else {
					summary.Results = append(summary.Results, res)
					summary.Rows += len(rows)
					if b.Monthly != nil {
						pooled = append(pooled, rows...)
					} else if res.OutputPath != "" {
						summary.FilesWritten = append(summary.FilesWritten, res.OutputPath)
					}
					for _, r := range rows {
						if summary.MinDate == "" || r.Date < summary.MinDate {
							summary.MinDate = r.Date
						}
						if r.Date > summary.MaxDate {
							summary.MaxDate = r.Date
						}
					}
				}
				mu.Unlock()

				if res.Failed() {
					log.Warn("symbol failed",
						"progress", progress(n, len(symbols)),
						"symbol", sym,
						"err", res.Err,
					)
				} else {
					log.Info("symbol done",
						"progress", progress(n, len(symbols)),
						"symbol", sym,
						"rows", res.RowCount,
					)
				}
			}
		}()
	}

	wg.Wait()

	if b.Monthly != nil {
		files, err := b.Monthly.WriteMonthly(pooled)
		if err != nil {
			return summary, err
		}
		summary.FilesWritten = files
	}

	log.Info("backfill complete",
		"ok", len(summary.Results),
		"failed", len(summary.Errors),
		"rows", summary.Rows,
		"files", len(summary.FilesWritten),
		"elapsed", time.Since(runStart).Round(time.Second),
	)
	return summary, nil
}

// processSymbol runs one symbol's full pipeline. Any error is converted into
// the symbol's failure record at this boundary.
func (b *Backfill) processSymbol(ctx context.Context, symbol string, enabled []string, log *slog.Logger) ([]domain.Row, domain.SymbolResult) {
	rows, err := b.Series.FetchDaily(ctx, symbol, b.Range)
	if err != nil {
		return nil, domain.SymbolResult{Symbol: symbol, Err: err.Error()}
	}

	if len(enabled) > 0 {
		features.Annotate(rows, enabled)
	}
	if b.Indicators != nil && b.Features != nil && len(b.Features.Technicals) > 0 {
		features.MergeIndicators(ctx, b.Indicators, symbol, rows, b.Features.Technicals, b.Range, log)
	}

	res := domain.SymbolResult{Symbol: symbol, RowCount: len(rows)}
	if b.Symbols != nil {
		path, err := b.Symbols.WriteSymbol(symbol, rows)
		if err != nil {
			return nil, domain.SymbolResult{Symbol: symbol, Err: err.Error()}
		}
		res.OutputPath = path
	}
	return rows, res
}

// enabledDerived filters the configured derived feature names down to the
// recognized set, warning once per unknown name.
func (b *Backfill) enabledDerived(log *slog.Logger) []string {
	if b.Features == nil {
		return nil
	}
	var enabled []string
	for _, name := range b.Features.Core.Derived {
		if !features.Recognized(name) {
			log.Warn("ignoring unrecognized derived feature", "name", name)
			continue
		}
		enabled = append(enabled, name)
	}
	return enabled
}

func progress(done int64, total int) string {
	return fmt.Sprintf("%d/%d", done, total)
}
