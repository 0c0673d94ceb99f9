package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cartridge/dinosweep/internal/bridge"
	"github.com/cartridge/dinosweep/internal/env"
	"github.com/cartridge/dinosweep/internal/events"
	"github.com/cartridge/dinosweep/internal/game"
	"github.com/cartridge/dinosweep/internal/health"
	"github.com/cartridge/dinosweep/internal/metrics"
	"github.com/cartridge/dinosweep/internal/report"
	"github.com/cartridge/dinosweep/internal/sweep"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the grid search against the game",
	RunE:  runSweep,
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			logger.Warn().Msg("Shutdown signal received, stopping sweep...")
			cancel()
		case <-ctx.Done():
		}
	}()

	collector := metrics.NewCollector(logger)
	options := []sweep.Option{sweep.WithMetrics(collector)}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		options = append(options, sweep.WithStore(store))
	}

	if cfg.NATSURL != "" {
		publisher, err := events.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject, logger)
		if err != nil {
			return fmt.Errorf("connect nats %s: %w", cfg.NATSURL, err)
		}
		defer publisher.Close()
		options = append(options, sweep.WithPublisher(publisher))
	}

	p, err := cfg.NewPolicy()
	if err != nil {
		return err
	}
	harness := sweep.NewHarness(p, cfg.ActorOptions(), logger, options...)
	grid := cfg.Grid()

	logger.Info().
		Bool("simulate", cfg.Simulate).
		Str("policy", cfg.Policy).
		Str("env_addr", cfg.EnvAddr).
		Int("total_episodes", grid.Total()).
		Msg("Program starting")

	sessions := &sessionOpener{collector: collector}
	stats, err := sweep.Run(ctx, sessions.open, harness, grid)
	if sessions.watchdog != nil {
		warnIfStalled(logger.With().Str("sweep_id", stats.SweepID).Logger(), sessions.watchdog)
	}
	if stats.Len() > 0 {
		writeReport(stats)
	}
	if err != nil {
		return fmt.Errorf("sweep %s: %w", stats.SweepID, err)
	}
	logger.Info().Str("sweep_id", stats.SweepID).Int("episodes", stats.Episodes()).Msg("Done")
	return nil
}

// sessionOpener opens the configured environment, wrapped in a stall watchdog when one
// is configured. The watchdog is kept so the sweep can report its final state.
type sessionOpener struct {
	collector *metrics.Collector
	watchdog  *health.Watchdog
}

func (o *sessionOpener) open(ctx context.Context) (env.Session, error) {
	var (
		session env.Session
		err     error
	)
	if cfg.Simulate {
		simCfg := env.DefaultSimConfig()
		simCfg.Seed = cfg.SimSeed
		session = env.NewSim(simCfg)
	} else {
		session, err = bridge.Dial(cfg.EnvAddr)
		if err != nil {
			return nil, err
		}
	}
	if cfg.StallAfter <= 0 {
		return session, nil
	}
	o.watchdog = health.NewWatchdog(session, cfg.Watchdog(), o.collector, logger)
	go o.watchdog.Start(ctx)
	return o.watchdog, nil
}

type stallReporter interface {
	Stalled() bool
	Idle() time.Duration
}

// warnIfStalled logs when the environment was still stalled as the sweep ended.
func warnIfStalled(log zerolog.Logger, w stallReporter) bool {
	if !w.Stalled() {
		return false
	}
	log.Warn().Dur("idle", w.Idle()).Msg("Environment stalled at sweep end")
	return true
}

func writeReport(stats sweep.AggregateStats) {
	for _, cell := range report.Summarize(stats) {
		logger.Info().
			Str("params", cell.Params.String()).
			Int("count", cell.Count).
			Float64("mean", cell.Mean).
			Float64("stddev", cell.StdDev).
			Float64("min", cell.Min).
			Float64("max", cell.Max).
			Msg("Cell summary")
	}
	if best, ok := report.Best(report.Summarize(stats)); ok {
		logger.Info().Str("params", best.Params.String()).Float64("mean", best.Mean).Msg("Best parameters")
	}
	if cfg.HeatmapPath == "" {
		return
	}
	if err := renderHeatmapFile(cfg.HeatmapPath, stats); err != nil {
		logger.Error().Err(err).Str("path", cfg.HeatmapPath).Msg("failed to write heatmap")
		return
	}
	logger.Info().Str("path", cfg.HeatmapPath).Msg("Heatmap written")
}

func renderHeatmapFile(path string, stats sweep.AggregateStats) error {
	if path == "" {
		return fmt.Errorf("%w: --heatmap-path is required to render a heatmap", game.ErrConfiguration)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.RenderHeatMap(f, stats); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
