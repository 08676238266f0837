package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"locationfeed/internal/config"
	"locationfeed/internal/feed"
	"locationfeed/internal/store"
)

var (
	replayInput     string
	replaySpeed     float64
	replayPrintOnly bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a recorded point log",
	Long:  "replay posts points from a --log-file recording back into the store or STDOUT, keeping their original spacing.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		e, err := config.LoadEnv()
		if err != nil {
			return err
		}
		log := setupLogger(e, os.Stderr)
		ctx, stop := signalContext(cmd.Context(), log)
		defer stop()

		var client *store.Client
		if !replayPrintOnly {
			url, err := config.ResolveStoreURL(e, nil)
			if err != nil {
				return err
			}
			if client, err = store.New(url, store.Options{}); err != nil {
				return err
			}
		}
		writer, _, cleanup, err := newWriters(writerOptions{
			printOnly: replayPrintOnly,
			runID:     uuid.NewString(),
			store:     client,
			env:       e,
		})
		if err != nil {
			return err
		}
		defer cleanup()

		n, err := feed.ReplayLogFile(ctx, replayInput, writer, replaySpeed)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		log.Info("replay finished", "points", n)
		return err
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to point log file")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier")
	replayCmd.Flags().BoolVar(&replayPrintOnly, "print-only", false, "Print points to STDOUT instead of writing to the store")
	replayCmd.MarkFlagRequired("input")
}
