package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCounters(t *testing.T) {
	c := NewCollector(time.Second, 5*time.Second, 100)
	c.PointSent("route3a")
	c.PointSent("route3a")
	c.PointRejected()
	c.PassStarted(3)
	c.StoreRequestObserve("POST", 201, 10*time.Millisecond)
	c.StoreRequestErrInc("DELETE")
	c.ResetObserved(200, 201)

	if got := testutil.ToFloat64(c.PointsSent.WithLabelValues("route3a")); got != 2 {
		t.Fatalf("points sent = %v", got)
	}
	if got := testutil.ToFloat64(c.PointsRejected); got != 1 {
		t.Fatalf("points rejected = %v", got)
	}
	if got := testutil.ToFloat64(c.CurrentPass); got != 3 {
		t.Fatalf("current pass = %v", got)
	}
	if got := testutil.ToFloat64(c.StoreRequests.WithLabelValues("POST", "201")); got != 1 {
		t.Fatalf("store requests = %v", got)
	}
	if got := testutil.ToFloat64(c.ResetStatus.WithLabelValues("create")); got != 201 {
		t.Fatalf("create status = %v", got)
	}
	if got := testutil.ToFloat64(c.PerPointDelay); got != 1 {
		t.Fatalf("per point delay = %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector(500*time.Millisecond, 5*time.Second, 100)
	c.PointSent("r")
	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), `locationfeed_points_sent_total{route="r"} 1`) {
		t.Fatalf("metric missing from output:\n%s", b)
	}
}
