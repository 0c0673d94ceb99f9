package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpServer "github.com/cartridge/dinosweep/internal/http"
	"github.com/cartridge/dinosweep/internal/metrics"
	"github.com/cartridge/dinosweep/internal/storage"
	"github.com/cartridge/dinosweep/internal/sweep"
)

var reportSweepID string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect stored sweep results",
}

var reportServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored sweeps, summaries and heatmaps over HTTP",
	RunE:  runReportServe,
}

var reportRenderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the heatmap of a stored sweep to heatmap-path",
	RunE:  runReportRender,
}

func init() {
	reportRenderCmd.Flags().StringVar(&reportSweepID, "sweep-id", "", "Sweep to render (defaults to the newest)")
	reportCmd.AddCommand(reportServeCmd, reportRenderCmd)
}

func requireStore(ctx context.Context) (storage.ResultStore, error) {
	store, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("reports need a result store; set db-driver")
	}
	return store, nil
}

func runReportServe(cmd *cobra.Command, args []string) error {
	store, err := requireStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	h := httpServer.NewServer(store, metrics.NewCollector(logger), logger)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("report HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)
	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-sig:
		logger.Info().Msg("shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	<-errCh
	logger.Info().Msg("report server stopped")
	return nil
}

func runReportRender(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := requireStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	id := reportSweepID
	if id == "" {
		sweeps, err := store.ListSweeps(ctx)
		if err != nil {
			return err
		}
		if len(sweeps) == 0 {
			return fmt.Errorf("no sweeps stored: %w", storage.ErrNotFound)
		}
		id = sweeps[0].ID
	}
	records, err := store.ListEpisodes(ctx, id)
	if err != nil {
		return fmt.Errorf("sweep %s: %w", id, err)
	}
	if err := renderHeatmapFile(cfg.HeatmapPath, sweep.FromRecords(id, records)); err != nil {
		return err
	}
	logger.Info().Str("sweep_id", id).Str("path", cfg.HeatmapPath).Int("episodes", len(records)).Msg("Heatmap written")
	return nil
}
