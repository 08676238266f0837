// Feeder replaying recorded route segments as live location updates
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"locationfeed/internal/config"
	"locationfeed/internal/geojson"
	"locationfeed/internal/logging"
	"locationfeed/internal/store"
)

// Metrics receives playback progress. *metrics.Collector implements it.
type Metrics interface {
	PointSent(route string)
	PointFailed()
	PassStarted(pass int)
	PassCompleted()
	RouteStarted(idx int)
	ResetObserved(deleteStatus, createStatus int)
}

// Settings are the playback parameters of one run.
type Settings struct {
	RouteFiles      []string
	PerPointDelay   time.Duration
	InterRouteDelay time.Duration
	Iterations      int
}

// SettingsFromConfig copies the playback parameters out of cfg.
func SettingsFromConfig(cfg *config.PlaybackConfig) Settings {
	return Settings{
		RouteFiles:      append([]string(nil), cfg.RouteFiles...),
		PerPointDelay:   cfg.PerPointDelay,
		InterRouteDelay: cfg.InterRouteDelay,
		Iterations:      cfg.Iterations,
	}
}

// Playback states reported in Status.
const (
	StateIdle      = "idle"
	StateResetting = "resetting"
	StateLoading   = "loading"
	StatePlaying   = "playing"
	StatePausing   = "pausing"
	StateDone      = "done"
	StateStopped   = "stopped"
	StateFailed    = "failed"
)

// Status is a snapshot of playback progress.
type Status struct {
	RunID      string             `json:"run_id"`
	State      string             `json:"state"`
	Pass       int                `json:"pass"`
	Iterations int                `json:"iterations"`
	RouteIndex int                `json:"route_index"`
	Route      string             `json:"route"`
	Point      int                `json:"point"`
	PointsSent int64              `json:"points_sent"`
	LastTS     int64              `json:"last_ts"`
	Reset      *store.ResetResult `json:"reset,omitempty"`
	StartedAt  time.Time          `json:"started_at"`
	Error      string             `json:"error,omitempty"`
}

// ErrNoRoutes is returned by Run when LoadRoutes has not succeeded.
var ErrNoRoutes = errors.New("no routes loaded")

// Feeder owns the loaded routes and streams them to a PointWriter.
type Feeder struct {
	runID    string
	settings Settings
	resetter Resetter
	writer   PointWriter
	clock    Clock
	metrics  Metrics

	lastTS int64

	mu     sync.Mutex
	routes []*geojson.Route
	status Status
}

// NewFeeder creates a feeder. resetter may be nil to skip the store reset;
// clock and m may be nil for wall-clock time and no metrics.
func NewFeeder(runID string, s Settings, resetter Resetter, writer PointWriter, clock Clock, m Metrics) *Feeder {
	if clock == nil {
		clock = RealClock{}
	}
	if m == nil {
		m = nopMetrics{}
	}
	return &Feeder{
		runID:    runID,
		settings: s,
		resetter: resetter,
		writer:   writer,
		clock:    clock,
		metrics:  m,
		status:   Status{RunID: runID, State: StateIdle, Iterations: s.Iterations},
	}
}

// Play resets the store, loads the routes and runs every pass.
func (f *Feeder) Play(ctx context.Context) error {
	log := logging.FromContext(ctx).With("run_id", f.runID)
	ctx = logging.NewContext(ctx, log)
	f.update(func(s *Status) { s.StartedAt = f.clock.Now().UTC() })

	err := f.play(ctx)
	switch {
	case err == nil:
		f.setState(StateDone)
	case errors.Is(err, context.Canceled):
		f.setState(StateStopped)
	default:
		f.update(func(s *Status) {
			s.State = StateFailed
			s.Error = err.Error()
		})
	}
	return err
}

func (f *Feeder) play(ctx context.Context) error {
	if f.resetter != nil {
		if _, err := f.ResetStore(ctx); err != nil {
			return fmt.Errorf("reset store: %w", err)
		}
	} else {
		logging.FromContext(ctx).Info("no store configured, skipping reset")
	}
	if err := f.LoadRoutes(ctx); err != nil {
		return err
	}
	return f.Run(ctx)
}

// ResetStore drops and recreates the destination database. The outcome is
// returned and recorded in Status even when a step answered non-2xx.
func (f *Feeder) ResetStore(ctx context.Context) (store.ResetResult, error) {
	f.setState(StateResetting)
	res, err := f.resetter.Reset(ctx)
	if err != nil {
		return res, err
	}
	f.metrics.ResetObserved(res.DeleteStatus, res.CreateStatus)
	f.update(func(s *Status) { s.Reset = &res })
	if !res.Created() {
		logging.FromContext(ctx).Warn("database was not created, continuing", "status", res.CreateStatus)
	}
	return res, nil
}

// LoadRoutes reads every configured route file in order.
func (f *Feeder) LoadRoutes(ctx context.Context) error {
	f.setState(StateLoading)
	routes, err := geojson.LoadRoutes(f.settings.RouteFiles)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.routes = routes
	f.mu.Unlock()
	total := 0
	for _, r := range routes {
		total += len(r.Features())
	}
	logging.FromContext(ctx).Info("routes loaded", "routes", len(routes), "points", total)
	return nil
}

// Routes returns the loaded routes in playback order.
func (f *Feeder) Routes() []*geojson.Route {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.routes
}

// Run plays every pass: each route's features in order, then the
// inter-route pause, including after the last route of a pass.
func (f *Feeder) Run(ctx context.Context) error {
	if len(f.routes) == 0 {
		return ErrNoRoutes
	}
	log := logging.FromContext(ctx)
	log.Info("starting playback",
		"iterations", f.settings.Iterations,
		"per_point_delay", f.settings.PerPointDelay,
		"inter_route_delay", f.settings.InterRouteDelay)

	for pass := 1; pass <= f.settings.Iterations; pass++ {
		f.metrics.PassStarted(pass)
		for ri, r := range f.routes {
			f.metrics.RouteStarted(ri)
			f.update(func(s *Status) {
				s.State = StatePlaying
				s.Pass = pass
				s.RouteIndex = ri
				s.Route = r.Name
			})
			for i, feat := range r.Features() {
				p := Point{RunID: f.runID, Pass: pass, RouteIndex: ri, Route: r.Name, Index: i, Feature: feat}
				if err := f.SendPoint(ctx, p); err != nil {
					return err
				}
			}
			f.setState(StatePausing)
			if err := f.clock.Sleep(ctx, f.settings.InterRouteDelay); err != nil {
				return err
			}
		}
		f.metrics.PassCompleted()
		log.Info("pass complete", "pass", pass, "iterations", f.settings.Iterations)
	}
	return nil
}

// SendPoint stamps the feature with the current time in milliseconds, writes
// it once and then waits the per-point delay.
func (f *Feeder) SendPoint(ctx context.Context, p Point) error {
	ts := f.stamp()
	p.Feature.SetTimestamp(ts)
	p.SentAt = time.UnixMilli(ts).UTC()
	logging.FromContext(ctx).Debug("sending location", "route", p.Route, "index", p.Index, "feature", p.Feature)

	if err := f.writer.Write(ctx, p); err != nil {
		f.metrics.PointFailed()
		return fmt.Errorf("write point %d of %s: %w", p.Index, p.Route, err)
	}
	f.metrics.PointSent(p.Route)
	f.update(func(s *Status) {
		s.Point = p.Index
		s.PointsSent++
		s.LastTS = ts
	})
	return f.clock.Sleep(ctx, f.settings.PerPointDelay)
}

// stamp returns the current time in ms, forced strictly above the previous
// stamp so repeated sends of a feature never reuse a timestamp.
func (f *Feeder) stamp() int64 {
	ts := f.clock.Now().UnixMilli()
	if ts <= f.lastTS {
		ts = f.lastTS + 1
	}
	f.lastTS = ts
	return ts
}

// Status returns a snapshot of the current progress.
func (f *Feeder) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.status
	if s.Reset != nil {
		r := *s.Reset
		s.Reset = &r
	}
	return s
}

func (f *Feeder) setState(state string) {
	f.update(func(s *Status) { s.State = state })
}

func (f *Feeder) update(fn func(*Status)) {
	f.mu.Lock()
	fn(&f.status)
	f.mu.Unlock()
}

type nopMetrics struct{}

func (nopMetrics) PointSent(string)       {}
func (nopMetrics) PointFailed()           {}
func (nopMetrics) PassStarted(int)        {}
func (nopMetrics) PassCompleted()         {}
func (nopMetrics) RouteStarted(int)       {}
func (nopMetrics) ResetObserved(int, int) {}
