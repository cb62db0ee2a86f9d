package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"SetupScanner/internal/backtest"
	"SetupScanner/internal/collector"
	"SetupScanner/internal/config"
	"SetupScanner/internal/logger"
	"SetupScanner/internal/metrics"
	"SetupScanner/internal/recorder"
	"SetupScanner/internal/scan"
	"SetupScanner/internal/scheduler"
)

type options struct {
	configPath string
	dataDir    string
	symbols    string
	noRecord   bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "scanner",
		Short:        "Equity setup scanner and replay backtester",
		SilenceUsage: true,
	}
	defaultCfg := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultCfg = v
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultCfg, "path to YAML config")
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "directory of <SYMBOL>.csv files (overrides config)")
	root.PersistentFlags().StringVar(&opts.symbols, "symbols", "", "comma-separated symbol list (default: every file in the data dir)")
	root.PersistentFlags().BoolVar(&opts.noRecord, "no-record", false, "do not write results to SQLite")

	root.AddCommand(newScanCmd(opts), newBacktestCmd(opts), newScheduleCmd(opts))
	return root
}

// setup loads and validates config, then builds the shared collaborators.
func (o *options) setup() (*config.Config, *collector.Collector, recorder.Recorder, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if o.dataDir != "" {
		cfg.Data.Dir = o.dataDir
	}
	if o.symbols != "" {
		cfg.Data.Symbols = strings.Split(o.symbols, ",")
	}
	logger.Init(cfg.Log.Level, cfg.Log.Pretty)
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}

	fetcher := collector.NewCSVFetcher(cfg.Data.Dir)
	log.Info().Str("source", fetcher.Name()).Str("dir", cfg.Data.Dir).Msg("data source")
	col := collector.NewCollector(fetcher, cfg.Data.Symbols)

	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if !o.noRecord && cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		} else {
			rec = sr
		}
	}
	return cfg, col, rec, nil
}

func newScanCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Evaluate the latest bars of every symbol and print ranked setups",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, col, rec, err := opts.setup()
			if err != nil {
				return err
			}
			defer rec.Close()

			eng, err := scan.New(cfg, col, metrics.New())
			if err != nil {
				return err
			}
			res, err := eng.Run(cmd.Context(), nil)
			if err != nil {
				return err
			}
			if err := rec.RecordScan(res); err != nil {
				log.Error().Err(err).Msg("record scan")
			}
			return writeJSON(cmd.OutOrStdout(), scanView(res))
		},
	}
}

func newBacktestCmd(opts *options) *cobra.Command {
	var (
		hold      int
		entry     string
		truncated bool
		trades    bool
		horizons  []int
		exit      string
	)
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay the evaluator over full histories at one or more holding periods",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, col, rec, err := opts.setup()
			if err != nil {
				return err
			}
			defer rec.Close()
			if cmd.Flags().Changed("hold") {
				cfg.Backtest.HoldingPeriod = hold
			}
			if cmd.Flags().Changed("entry") {
				cfg.Backtest.Entry = entry
			}
			if cmd.Flags().Changed("allow-truncated") {
				cfg.Backtest.AllowTruncated = truncated
			}
			if cmd.Flags().Changed("horizons") {
				cfg.Backtest.HoldingPeriods = horizons
			}
			if cmd.Flags().Changed("exit") {
				cfg.Backtest.Exit = exit
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			eng, err := backtest.New(cfg, col, metrics.New())
			if err != nil {
				return err
			}
			results, err := eng.RunHorizons(cmd.Context(), nil)
			if err != nil {
				return err
			}
			views := make([]backtestJSON, 0, len(results))
			for _, res := range results {
				if err := rec.RecordBacktest(res); err != nil {
					log.Error().Err(err).Int("holding_period", res.HoldingPeriod).Msg("record backtest")
				}
				views = append(views, backtestView(res, trades))
			}
			if len(views) == 1 {
				return writeJSON(cmd.OutOrStdout(), views[0])
			}
			return writeJSON(cmd.OutOrStdout(), views)
		},
	}
	cmd.Flags().IntVar(&hold, "hold", 0, "holding period in bars (overrides config)")
	cmd.Flags().StringVar(&entry, "entry", "", "entry policy: close or next_open (overrides config)")
	cmd.Flags().BoolVar(&truncated, "allow-truncated", false, "keep signals whose exit passes the last bar")
	cmd.Flags().BoolVar(&trades, "trades", false, "include every trade in the output")
	cmd.Flags().IntSliceVar(&horizons, "horizons", nil, "ascending holding periods, one result each (overrides config)")
	cmd.Flags().StringVar(&exit, "exit", "", "exit policy: fixed or norm_cross_down (overrides config)")
	return cmd
}

func newScheduleCmd(opts *options) *cobra.Command {
	var runOnStart bool
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the live scan on the configured cron schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, col, rec, err := opts.setup()
			if err != nil {
				return err
			}
			defer rec.Close()

			m := metrics.New()
			eng, err := scan.New(cfg, col, m)
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			if cfg.Metrics.Listen != "" {
				srv := metrics.NewServer(cfg.Metrics.Listen, m)
				srv.Start()
				defer func() {
					sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer scancel()
					if err := srv.Stop(sctx); err != nil {
						log.Error().Err(err).Msg("stop metrics server")
					}
				}()
			}

			sched := scheduler.NewScheduler(ctx, eng, rec, nil)
			sched.OnResult = func(res *scan.Result) {
				if err := writeJSON(cmd.OutOrStdout(), scanView(res)); err != nil {
					log.Error().Err(err).Msg("write scan result")
				}
			}
			if err := sched.Register(cfg.Schedule.ScanCron); err != nil {
				return fmt.Errorf("register cron tasks: %w", err)
			}
			sched.Start()
			defer sched.Stop()

			if runOnStart || os.Getenv("RUN_ON_START") == "true" {
				log.Info().Msg("run on start enabled, executing scan now")
				go func() {
					if _, err := sched.RunNow(); err != nil {
						log.Error().Err(err).Msg("startup scan failed")
					}
				}()
			}

			log.Info().Str("cron", cfg.Schedule.ScanCron).Msg("scheduler running, press Ctrl+C to stop")
			<-ctx.Done()

			log.Info().Msg("shutdown signal received, stopping")
			return nil
		},
	}
	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "run one scan immediately")
	return cmd
}
