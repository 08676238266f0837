package metrics

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	PointsSent      *prometheus.CounterVec // route label
	PointWriteErrs  prometheus.Counter
	PointsRejected  prometheus.Counter // non-2xx from the store
	PassesCompleted prometheus.Counter

	CurrentPass  prometheus.Gauge
	CurrentRoute prometheus.Gauge

	StoreRequests   *prometheus.CounterVec // method, code
	StoreErrors     *prometheus.CounterVec // method
	StoreDuration   *prometheus.HistogramVec
	ResetStatus     *prometheus.GaugeVec // op: delete|create
	PerPointDelay   prometheus.Gauge     // seconds
	InterRouteDelay prometheus.Gauge     // seconds
	Iterations      prometheus.Gauge
}

func NewCollector(perPointDelay, interRouteDelay time.Duration, iterations int) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		PointsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "locationfeed_points_sent_total",
			Help: "Total points written, by route.",
		}, []string{"route"}),
		PointWriteErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "locationfeed_point_write_errors_total",
			Help: "Total point writes that failed in any sink.",
		}),
		PointsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "locationfeed_points_rejected_total",
			Help: "Total point writes answered with a non-2xx status.",
		}),
		PassesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "locationfeed_passes_completed_total",
			Help: "Total playback passes completed.",
		}),
		CurrentPass: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "locationfeed_current_pass",
			Help: "1-based index of the running pass.",
		}),
		CurrentRoute: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "locationfeed_current_route",
			Help: "0-based index of the route being played.",
		}),
		StoreRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "locationfeed_store_requests_total",
			Help: "Store HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "locationfeed_store_request_errors_total",
			Help: "Store HTTP requests that failed without a response.",
		}, []string{"method"}),
		StoreDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "locationfeed_store_request_duration_seconds",
			Help:    "Duration of store HTTP requests.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"method"}),
		ResetStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "locationfeed_reset_status_code",
			Help: "HTTP status of the last reset step.",
		}, []string{"op"}),
		PerPointDelay: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "locationfeed_per_point_delay_seconds",
			Help: "Pause after each point in seconds.",
		}),
		InterRouteDelay: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "locationfeed_inter_route_delay_seconds",
			Help: "Pause after each route in seconds.",
		}),
		Iterations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "locationfeed_iterations",
			Help: "Configured number of passes.",
		}),
	}

	reg.MustRegister(
		c.PointsSent, c.PointWriteErrs, c.PointsRejected, c.PassesCompleted,
		c.CurrentPass, c.CurrentRoute,
		c.StoreRequests, c.StoreErrors, c.StoreDuration, c.ResetStatus,
		c.PerPointDelay, c.InterRouteDelay, c.Iterations,
	)

	c.PerPointDelay.Set(perPointDelay.Seconds())
	c.InterRouteDelay.Set(interRouteDelay.Seconds())
	c.Iterations.Set(float64(iterations))

	return c
}

// StoreRequestObserve implements store.RequestMetrics.
func (c *Collector) StoreRequestObserve(method string, status int, d time.Duration) {
	c.StoreRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	c.StoreDuration.WithLabelValues(method).Observe(d.Seconds())
}

// StoreRequestErrInc implements store.RequestMetrics.
func (c *Collector) StoreRequestErrInc(method string) {
	c.StoreErrors.WithLabelValues(method).Inc()
}

// PointSent, PointFailed, PointRejected, PassStarted, PassCompleted,
// RouteStarted and ResetObserved implement feed.Metrics.
func (c *Collector) PointSent(route string) { c.PointsSent.WithLabelValues(route).Inc() }
func (c *Collector) PointFailed()           { c.PointWriteErrs.Inc() }
func (c *Collector) PointRejected()         { c.PointsRejected.Inc() }
func (c *Collector) PassStarted(pass int)   { c.CurrentPass.Set(float64(pass)) }
func (c *Collector) PassCompleted()         { c.PassesCompleted.Inc() }
func (c *Collector) RouteStarted(idx int)   { c.CurrentRoute.Set(float64(idx)) }
func (c *Collector) ResetObserved(deleteStatus, createStatus int) {
	c.ResetStatus.WithLabelValues("delete").Set(float64(deleteStatus))
	c.ResetStatus.WithLabelValues("create").Set(float64(createStatus))
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "err", err)
		}
	}()
	slog.Info("metrics listening", "addr", addr)
	return srv
}
