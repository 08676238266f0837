package main

import (
	"fmt"
	"net"
	"strconv"

	"locationfeed/internal/config"
	"locationfeed/internal/feed"
	"locationfeed/internal/metrics"
	"locationfeed/internal/store"
)

type writerOptions struct {
	printOnly bool
	logFile   string
	tui       bool
	runID     string
	settings  feed.Settings
	store     *store.Client
	metrics   *metrics.Collector
	env       config.Env
}

// newWriters sets up the point sinks based on flags and env vars. It returns
// the combined writer, the TUI writer when enabled, and a cleanup function to
// close any resources.
func newWriters(opts writerOptions) (feed.PointWriter, *feed.TUIWriter, func(), error) {
	var (
		writers []feed.PointWriter
		closers []func() error
		tui     *feed.TUIWriter
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}

	switch {
	case opts.printOnly && !opts.tui:
		writers = append(writers, feed.NewStdoutWriter())
	case !opts.printOnly:
		if opts.store == nil {
			return nil, nil, nil, fmt.Errorf("store client required unless print-only")
		}
		writers = append(writers, feed.NewStoreWriter(opts.store, nilSafeRejects(opts.metrics)))
	}

	if opts.env.GreptimeEndpoint != "" {
		host, port, err := splitEndpoint(opts.env.GreptimeEndpoint)
		if err != nil {
			return nil, nil, nil, err
		}
		gw, err := feed.NewGreptimeDBWriter(host, port, opts.env.GreptimeDatabase, opts.env.GreptimeTable)
		if err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		writers = append(writers, gw)
	}

	if opts.env.NATSURL != "" {
		nw, err := feed.NewNATSWriter(opts.env.NATSURL, opts.env.NATSSubjectPrefix)
		if err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		writers = append(writers, nw)
		closers = append(closers, nw.Close)
	}

	if opts.logFile != "" {
		fw, err := feed.NewFileWriter(opts.logFile)
		if err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		writers = append(writers, fw)
		closers = append(closers, fw.Close)
	}

	if opts.tui {
		tui = feed.NewTUIWriter(opts.runID, opts.settings)
		writers = append(writers, tui)
		closers = append(closers, tui.Close)
	}

	if len(writers) == 0 {
		cleanup()
		return nil, nil, nil, fmt.Errorf("no point sinks configured")
	}
	if len(writers) == 1 {
		return writers[0], tui, cleanup, nil
	}
	return feed.NewMultiWriter(writers...), tui, cleanup, nil
}

// nilSafeRejects keeps a nil *metrics.Collector from becoming a non-nil
// interface value.
func nilSafeRejects(c *metrics.Collector) interface{ PointRejected() } {
	if c == nil {
		return nil
	}
	return c
}

// splitEndpoint accepts "host" or "host:port".
func splitEndpoint(endpoint string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		return endpoint, feed.DefaultGreptimePort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid GREPTIMEDB_ENDPOINT port %q: %w", portStr, err)
	}
	return host, port, nil
}
