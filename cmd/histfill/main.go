package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"histfill/internal/config"
	"histfill/internal/domain"
	"histfill/internal/httpapi"
	"histfill/internal/pipeline"
	"histfill/internal/provider/eodhd"
	"histfill/internal/provider/twelvedata"
	"histfill/internal/recorder"
	"histfill/internal/scheduler"
	"histfill/internal/sink"
	"histfill/internal/tickers"
	"histfill/internal/util"
)

const (
	modeEOD      = "eod"
	modeFeatures = "features"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:           "histfill",
		Short:         "histfill backfills historical daily OHLCV data",
		Long:          "histfill fetches years of daily OHLCV bars for a ticker list, optionally enriches them with derived features and vendor indicators, and writes monthly Parquet or per-symbol CSV files.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigPath(), "configuration file path")

	rootCmd.AddCommand(newRunCmd(&cfgPath, modeEOD,
		"Run one EODHD backfill into monthly Parquet files"))
	rootCmd.AddCommand(newRunCmd(&cfgPath, modeFeatures,
		"Run one feature backfill into per-symbol CSV files"))
	rootCmd.AddCommand(newServeCmd(&cfgPath))
	rootCmd.AddCommand(newScheduleCmd(&cfgPath))

	return rootCmd
}

func defaultConfigPath() string {
	if p := os.Getenv("HISTFILL_CONFIG"); p != "" {
		return p
	}
	return "config/histfill.yaml"
}

// newRunCmd creates a one-shot backfill command for the given mode.
func newRunCmd(cfgPath *string, mode, short string) *cobra.Command {
	return &cobra.Command{
		Use:   mode,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(*cfgPath, mode)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			summary, err := app.runOnce(ctx)
			if err != nil {
				return err
			}
			return printSummary(summary)
		},
	}
}

func newServeCmd(cfgPath *string) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the backfill trigger API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(*cfgPath, mode)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return app.serve(ctx)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", modeEOD, "backfill variant to serve: eod or features")
	return cmd
}

func newScheduleCmd(cfgPath *string) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run backfills on the configured cron schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(*cfgPath, mode)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return app.schedule(ctx)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", modeEOD, "backfill variant to schedule: eod or features")
	return cmd
}

// ---------------------------------------------------------------------------
// Application wiring
// ---------------------------------------------------------------------------

// app holds the long-lived dependencies shared across backfill runs.
type app struct {
	cfg  *config.Config
	log  *slog.Logger
	mode string
	rec  *recorder.SQLiteRecorder
}

func newApp(cfgPath, mode string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	log := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(log)

	switch mode {
	case modeEOD:
		if cfg.Vendor.EODHDToken == "" {
			return nil, fmt.Errorf("EODHD_API_TOKEN is not set")
		}
	case modeFeatures:
		if cfg.Vendor.TwelveDataKey == "" {
			return nil, fmt.Errorf("TWELVEDATA_API_KEY is not set")
		}
	default:
		return nil, fmt.Errorf("unknown mode %q (want %s or %s)", mode, modeEOD, modeFeatures)
	}

	a := &app{cfg: cfg, log: log, mode: mode}

	if cfg.Storage.SQLitePath != "" {
		rec, err := recorder.NewSQLiteRecorder(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening run recorder: %w", err)
		}
		a.rec = rec
	}
	return a, nil
}

func (a *app) Close() {
	if a.rec != nil {
		a.rec.Close()
	}
}

// runOnce executes one full backfill: the ticker universe and feature config
// are re-read on every run so a scheduled daemon picks up edits without a
// restart.
func (a *app) runOnce(ctx context.Context) (*domain.RunSummary, error) {
	symbols, err := tickers.Load(a.cfg.Backfill.TickersPath)
	if err != nil {
		return nil, err
	}

	b := &pipeline.Backfill{
		Range:   domain.LastYears(a.cfg.Backfill.Years),
		Workers: a.cfg.Backfill.MaxWorkers,
		Log:     a.log,
	}

	switch a.mode {
	case modeEOD:
		b.Series = eodhd.NewClient(a.cfg.Vendor.EODHDBaseURL, a.cfg.Vendor.EODHDToken)
		b.Monthly = sink.NewMonthlySink(a.cfg.Storage.OutputDir)
	case modeFeatures:
		feats, err := config.LoadFeatures(a.cfg.Backfill.FeaturesPath)
		if err != nil {
			return nil, err
		}
		td := twelvedata.NewClient(a.cfg.Vendor.TwelveDataBaseURL, a.cfg.Vendor.TwelveDataKey)
		b.Series = td
		b.Indicators = td
		b.Features = feats
		b.Symbols = sink.NewSymbolSink(a.cfg.Storage.OutputDir)
	}

	summary, err := b.Run(ctx, symbols)
	if err != nil {
		return nil, err
	}

	if a.rec != nil {
		if rerr := a.rec.RecordRun(a.mode, summary); rerr != nil {
			a.log.Warn("recording run", "err", rerr)
		}
	}
	return summary, nil
}

// serve exposes runOnce over HTTP and blocks until the context is cancelled.
func (a *app) serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:    net.JoinHostPort(a.cfg.Server.Host, strconv.Itoa(a.cfg.Server.Port)),
		Handler: httpapi.NewServer(a.runOnce, a.log).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("http server listening", "addr", srv.Addr, "mode", a.mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// schedule runs backfills on the configured cron expression until the context
// is cancelled. Overlapping ticks are skipped by the scheduler.
func (a *app) schedule(ctx context.Context) error {
	spec := a.cfg.Schedule.Cron
	if spec == "" {
		return fmt.Errorf("schedule.cron is not set in the configuration")
	}

	sched := scheduler.New(a.log)
	err := sched.Register(spec, func() {
		summary, err := a.runOnce(ctx)
		if err != nil {
			a.log.Error("scheduled backfill failed", "err", err)
			return
		}
		a.log.Info("scheduled backfill complete",
			"ok", len(summary.Results),
			"failed", len(summary.Errors),
			"rows", summary.Rows,
		)
	})
	if err != nil {
		return err
	}

	a.log.Info("scheduling backfills", "cron", spec, "mode", a.mode)
	sched.Run(ctx)
	return nil
}

func printSummary(summary *domain.RunSummary) error {
	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
