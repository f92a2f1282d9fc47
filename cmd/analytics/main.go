package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marketintel/analytics/internal/config"
	httpiface "github.com/marketintel/analytics/internal/interfaces/http"
	applog "github.com/marketintel/analytics/internal/log"
)

const (
	appName = "analytics"
	version = "v1.4.0"
)

func main() {
	var (
		debugLog      bool
		providersPath string
		dbConfigPath  string
	)

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Market-intelligence analytics service",
		Version: version,
		Long: `Market-intelligence analytics: multi-provider news ingestion and ranking,
event-study forecasting, resilient quote routing, portfolio impact
attribution and a two-model debate, served over HTTP.`,
	}
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&providersPath, "providers", "configs/providers.yaml", "Provider operations config")
	rootCmd.PersistentFlags().StringVar(&dbConfigPath, "config", "configs/app.yaml", "Application config (database, cache)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the periodic scoring worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := applog.Init(appName, debugLog)
			a, err := buildApp(logger, providersPath, dbConfigPath)
			if err != nil {
				return err
			}
			defer a.Close()
			return runServe(cmd.Context(), a)
		},
	}

	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run one pipeline tick (market snapshot, news, events, forecasts) and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := applog.Init(appName, debugLog)
			a, err := buildApp(logger, providersPath, dbConfigPath)
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.orch.RunIntel(cmd.Context(), httpiface.IntelRequest{Timeframe: "1h", NewsTimespan: "6h"})
			if err != nil {
				return err
			}
			logger.Info().
				Str("etag", resp.ETag).
				Int("top_news", len(resp.TopNews)).
				Int("forecasts", len(resp.Forecast)).
				Strs("changed_blocks", resp.ChangedBlocks).
				Msg("pipeline tick complete")
			return nil
		},
	}

	forecastCmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast maintenance commands",
	}
	scoreCmd := &cobra.Command{
		Use:   "score",
		Short: "Score expired forecasts against realized prices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := applog.Init(appName, debugLog)
			a, err := buildApp(logger, providersPath, dbConfigPath)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.forecast.ScoreExpired(cmd.Context(), time.Now().UTC(),
				config.DefaultForecastSettings().NeutralBandPct, 500)
			if err != nil {
				return err
			}
			logger.Info().Int("scored", n).Msg("expired forecasts scored")
			return nil
		},
	}
	forecastCmd.AddCommand(scoreCmd)

	portfolioCmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Portfolio commands",
	}
	briefCmd := &cobra.Command{
		Use:   "brief",
		Short: "Print the deterministic daily portfolio brief as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := applog.Init(appName, debugLog)
			a, err := buildApp(logger, providersPath, dbConfigPath)
			if err != nil {
				return err
			}
			defer a.Close()

			base, _ := cmd.Flags().GetString("base")
			resp, err := a.orch.PortfolioDailyBrief(cmd.Context(), base)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
	briefCmd.Flags().String("base", "USD", "Base currency (TRY or USD)")
	portfolioCmd.AddCommand(briefCmd)

	rootCmd.AddCommand(serveCmd, ingestCmd, forecastCmd, portfolioCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runServe starts the calibration sweep, the periodic worker and the HTTP
// server, then blocks until the context is cancelled and shuts down
// gracefully.
func runServe(ctx context.Context, a *app) error {
	server, err := httpiface.NewServer(httpiface.DefaultServerConfig(), a.orch, a.registry)
	if err != nil {
		return err
	}

	if err := a.collector.StartTracking(ctx); err != nil {
		return err
	}
	defer a.collector.StopTracking()

	go a.runWorker(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// runWorker drives the background cadence work: syncing price bars,
// scoring expired forecasts, and purging events and bars past retention.
// News ingest itself stays request-driven; the event store's own interval
// gate dedups overlapping requests.
func (a *app) runWorker(ctx context.Context) {
	interval := time.Duration(a.settings.NewsIngestIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now().UTC()
			if written := a.barsSync.Sync(ctx, now, nil); written > 0 {
				a.log.Info().Int("bars", written).Msg("synced price bars")
			}
			if n, err := a.forecast.ScoreExpired(ctx, now, config.DefaultForecastSettings().NeutralBandPct, 500); err != nil {
				a.log.Warn().Err(err).Msg("forecast scoring tick failed")
			} else if n > 0 {
				a.log.Info().Int("scored", n).Msg("scored expired forecasts")
			}
			if purged, err := a.store.Purge(ctx, now, nil); err != nil {
				a.log.Warn().Err(err).Msg("event purge tick failed")
			} else if purged > 0 {
				a.log.Info().Int64("purged", purged).Msg("purged events past retention")
			}
			cutoff := now.AddDate(0, 0, -a.settings.RetentionDays)
			if purged, err := a.dbManager.Repository().PriceBars.Purge(ctx, cutoff); err != nil {
				a.log.Warn().Err(err).Msg("bar purge tick failed")
			} else if purged > 0 {
				a.log.Info().Int64("purged", purged).Msg("purged bars past retention")
			}
		}
	}
}
