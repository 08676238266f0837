package feed

import (
	"context"
	"time"

	"locationfeed/internal/geojson"
	"locationfeed/internal/logging"
	"locationfeed/internal/store"
)

// Point is one stamped feature on its way to the sinks.
type Point struct {
	RunID      string           `json:"run_id"`
	Pass       int              `json:"pass"`
	RouteIndex int              `json:"route_index"`
	Route      string           `json:"route"`
	Index      int              `json:"index"`
	Feature    *geojson.Feature `json:"feature"`
	SentAt     time.Time        `json:"sent_at"`
}

// PointWriter is an interface to support different point sinks.
type PointWriter interface {
	Write(ctx context.Context, p Point) error
}

// Resetter drops and recreates the destination store.
type Resetter interface {
	Reset(ctx context.Context) (store.ResetResult, error)
}

type poster interface {
	Post(ctx context.Context, doc any) (int, error)
}

type rejectCounter interface {
	PointRejected()
}

// StoreWriter posts each feature as a new document. A non-2xx answer is not
// an error; it is counted and logged at debug level.
type StoreWriter struct {
	client   poster
	rejected rejectCounter
}

// NewStoreWriter creates a StoreWriter. m may be nil.
func NewStoreWriter(c poster, m rejectCounter) *StoreWriter {
	return &StoreWriter{client: c, rejected: m}
}

// Write posts the point's feature.
func (w *StoreWriter) Write(ctx context.Context, p Point) error {
	status, err := w.client.Post(ctx, p.Feature)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		logging.FromContext(ctx).Debug("point rejected", "route", p.Route, "index", p.Index, "status", status)
		if w.rejected != nil {
			w.rejected.PointRejected()
		}
	}
	return nil
}
