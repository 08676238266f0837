package main

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"locationfeed/internal/admin"
	"locationfeed/internal/config"
	"locationfeed/internal/feed"
	"locationfeed/internal/metrics"
	"locationfeed/internal/store"
)

var (
	playConfigPath  string
	playPreset      string
	playPrintOnly   bool
	playLogFile     string
	playTUI         bool
	playAdminAddr   string
	playMetricsAddr string
	playIterations  int
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Replay route segments into the location store",
	Long: `play drops and recreates the database named by CLOUDANT_URL, then posts
every feature of every route file in order, stamping properties.ts with the
send time, pausing between points and between routes, for the configured
number of passes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := config.LoadEnv()
		if err != nil {
			return err
		}
		cfg, err := loadPlaybackConfig(playConfigPath, playPreset)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("iterations") {
			cfg.Iterations = playIterations
			if err := cfg.Validate(); err != nil {
				return err
			}
		}

		var logOut io.Writer = os.Stderr
		if playTUI {
			logOut = io.Discard
		}
		log := setupLogger(e, logOut)
		ctx, stop := signalContext(cmd.Context(), log)
		defer stop()

		runID := uuid.NewString()
		settings := feed.SettingsFromConfig(cfg)
		m := metrics.NewCollector(settings.PerPointDelay, settings.InterRouteDelay, settings.Iterations)
		metricsAddr := playMetricsAddr
		if metricsAddr == "" {
			metricsAddr = e.MetricsAddr
		}
		if metricsAddr != "" {
			srv := m.Serve(metricsAddr)
			defer srv.Close()
		}

		var (
			client   *store.Client
			resetter feed.Resetter
		)
		if !playPrintOnly {
			url, err := config.ResolveStoreURL(e, cfg)
			if err != nil {
				return err
			}
			client, err = store.New(url, store.Options{
				Timeout:   cfg.RequestTimeout,
				RateLimit: cfg.RateLimit,
				Metrics:   m,
			})
			if err != nil {
				return err
			}
			resetter = client
		}

		writer, tui, cleanup, err := newWriters(writerOptions{
			printOnly: playPrintOnly,
			logFile:   playLogFile,
			tui:       playTUI,
			runID:     runID,
			settings:  settings,
			store:     client,
			metrics:   m,
			env:       e,
		})
		if err != nil {
			return err
		}
		defer cleanup()

		feeder := feed.NewFeeder(runID, settings, resetter, writer, nil, m)

		if playAdminAddr != "" {
			srv := admin.NewServer(feeder)
			go func() {
				if err := srv.Start(ctx, playAdminAddr); err != nil {
					log.Error("admin server failed", "err", err)
				}
			}()
		}
		if tui != nil {
			go pushStatus(ctx, feeder, tui)
		}

		log.Info("playback starting", "run_id", runID, "routes", len(settings.RouteFiles), "print_only", playPrintOnly)
		err = feeder.Play(ctx)
		if errors.Is(err, context.Canceled) {
			log.Info("playback stopped", "run_id", runID)
			return nil
		}
		if err != nil {
			return err
		}
		log.Info("playback finished", "run_id", runID, "points_sent", feeder.Status().PointsSent)
		return nil
	},
}

// pushStatus forwards feeder progress to the TUI until ctx is done.
func pushStatus(ctx context.Context, f *feed.Feeder, tui *feed.TUIWriter) {
	t := time.NewTicker(500 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			tui.SetStatus(f.Status())
		}
	}
}

func init() {
	playCmd.Flags().StringVar(&playConfigPath, "config", "", "Path to playback configuration YAML (overrides --preset)")
	playCmd.Flags().StringVar(&playPreset, "preset", "route3", "Built-in playback preset (route3, route3-short)")
	playCmd.Flags().BoolVar(&playPrintOnly, "print-only", false, "Print stamped features to STDOUT instead of writing to the store")
	playCmd.Flags().StringVar(&playLogFile, "log-file", "", "Path to export sent points (JSONL)")
	playCmd.Flags().BoolVar(&playTUI, "tui", false, "Show a live playback view")
	playCmd.Flags().StringVar(&playAdminAddr, "admin-addr", "", "Address for the admin status server (e.g. :8080)")
	playCmd.Flags().StringVar(&playMetricsAddr, "metrics-addr", "", "Address for the Prometheus /metrics endpoint (overrides METRICS_ADDR)")
	playCmd.Flags().IntVar(&playIterations, "iterations", 0, "Override the number of passes")
}
