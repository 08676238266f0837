package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"locationfeed/internal/config"
	"locationfeed/internal/geojson"
	"locationfeed/internal/store"
)

var (
	watchSince     string
	watchHeartbeat time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow location updates arriving in the store",
	Long:  "watch follows the database's continuous changes feed and prints the id, timestamp and position of every location document.",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := config.LoadEnv()
		if err != nil {
			return err
		}
		url, err := config.ResolveStoreURL(e, nil)
		if err != nil {
			return err
		}
		log := setupLogger(e, os.Stderr)
		ctx, stop := signalContext(cmd.Context(), log)
		defer stop()

		client, err := store.New(url, store.Options{})
		if err != nil {
			return err
		}
		log.Info("watching changes", "url", client.URL(), "since", watchSince)
		out := cmd.OutOrStdout()
		err = client.Changes(ctx, store.ChangesOptions{Since: watchSince, Heartbeat: watchHeartbeat}, func(c store.Change) error {
			return printChange(out, c)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

// printChange writes one line per location document; other changes are
// ignored.
func printChange(w io.Writer, c store.Change) error {
	if c.Deleted || len(c.Doc) == 0 {
		return nil
	}
	var f geojson.Feature
	if err := json.Unmarshal(c.Doc, &f); err != nil || f.Type != "Feature" {
		return nil
	}
	lon, lat, ok := f.Point()
	if !ok {
		return nil
	}
	ts, _ := f.Timestamp()
	_, err := fmt.Fprintf(w, "%s\t%s\t%.6f,%.6f\n", c.ID, time.UnixMilli(ts).UTC().Format(time.RFC3339Nano), lon, lat)
	return err
}

func init() {
	watchCmd.Flags().StringVar(&watchSince, "since", "now", "Changes feed start sequence (now, 0 or a sequence token)")
	watchCmd.Flags().DurationVar(&watchHeartbeat, "heartbeat", 30*time.Second, "Changes feed heartbeat interval")
}
