package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type request struct {
	method string
	path   string
	query  string
	body   string
	user   string
}

// fakeCouch records every request and answers with configurable statuses.
type fakeCouch struct {
	mu           sync.Mutex
	reqs         []request
	deleteStatus int
	createStatus int
	postStatus   int
}

func (f *fakeCouch) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	user, _, _ := r.BasicAuth()
	f.mu.Lock()
	f.reqs = append(f.reqs, request{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, body: string(b), user: user})
	f.mu.Unlock()
	switch r.Method {
	case http.MethodDelete:
		w.WriteHeader(f.deleteStatus)
	case http.MethodPut:
		w.WriteHeader(f.createStatus)
	case http.MethodPost:
		w.WriteHeader(f.postStatus)
	}
	fmt.Fprint(w, `{"ok":true}`)
}

func newFake(t *testing.T, f *fakeCouch) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	u := strings.Replace(srv.URL, "http://", "http://admin:secret@", 1) + "/locations"
	c, err := New(u, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, srv
}

type recMetrics struct {
	observed []string
	errs     int
}

func (m *recMetrics) StoreRequestObserve(method string, status int, d time.Duration) {
	m.observed = append(m.observed, fmt.Sprintf("%s %d", method, status))
}
func (m *recMetrics) StoreRequestErrInc(string) { m.errs++ }

func TestResetDeleteThenCreate(t *testing.T) {
	f := &fakeCouch{deleteStatus: 200, createStatus: 201}
	c, _ := newFake(t, f)

	res, err := c.Reset(context.Background())
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if !res.Deleted() || !res.Created() {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(f.reqs) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(f.reqs))
	}
	if f.reqs[0].method != http.MethodDelete || f.reqs[1].method != http.MethodPut {
		t.Fatalf("wrong order: %+v", f.reqs)
	}
	for _, r := range f.reqs {
		if r.path != "/locations" {
			t.Errorf("request hit %s, want /locations", r.path)
		}
		if r.user != "admin" {
			t.Errorf("credentials not forwarded: %q", r.user)
		}
	}
}

func TestResetReportsFailedCreate(t *testing.T) {
	f := &fakeCouch{deleteStatus: 404, createStatus: 412}
	c, _ := newFake(t, f)
	res, err := c.Reset(context.Background())
	if err != nil {
		t.Fatalf("non-2xx statuses must not be errors: %v", err)
	}
	if res.Deleted() || res.Created() {
		t.Fatalf("expected failed outcome, got %+v", res)
	}
	if res.DeleteStatus != 404 || res.CreateStatus != 412 {
		t.Fatalf("statuses not recorded: %+v", res)
	}
}

func TestCreatedOnlyOn201(t *testing.T) {
	if (ResetResult{CreateStatus: 202}).Created() {
		t.Fatalf("202 must not count as created")
	}
	if !(ResetResult{DeleteStatus: 202}).Deleted() {
		t.Fatalf("202 delete counts as deleted")
	}
}

func TestResetTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	u := srv.URL + "/db"
	srv.Close()
	c, err := New(u, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m := &recMetrics{}
	c.metrics = m
	if _, err := c.Reset(context.Background()); err == nil {
		t.Fatalf("expected transport error")
	}
	if m.errs != 1 {
		t.Fatalf("expected one error observation, got %d", m.errs)
	}
}

func TestPostSendsJSON(t *testing.T) {
	f := &fakeCouch{postStatus: 500}
	c, _ := newFake(t, f)
	m := &recMetrics{}
	c.metrics = m
	status, err := c.Post(context.Background(), map[string]any{"type": "Feature", "properties": map[string]any{"ts": 5}})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if status != 500 {
		t.Fatalf("status = %d", status)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(f.reqs[0].body), &doc); err != nil {
		t.Fatalf("body not JSON: %v", err)
	}
	if doc["type"] != "Feature" {
		t.Fatalf("unexpected body %v", doc)
	}
	if len(m.observed) != 1 || m.observed[0] != "POST 500" {
		t.Fatalf("unexpected observations %v", m.observed)
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "ftp://host/db", "http://", "://bad"} {
		if _, err := New(u, Options{}); err == nil {
			t.Errorf("New(%q) should fail", u)
		}
	}
}

func TestURLRedacted(t *testing.T) {
	c, err := New("https://user:pw@example.com/db", Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if strings.Contains(c.URL(), "pw") {
		t.Fatalf("password leaked: %s", c.URL())
	}
}

func TestRateLimitHonoursContext(t *testing.T) {
	f := &fakeCouch{postStatus: 201}
	srv := httptest.NewServer(f)
	defer srv.Close()
	c, err := New(srv.URL+"/db", Options{RateLimit: 0.001})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Post(context.Background(), map[string]any{}); err != nil {
		t.Fatalf("first post: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Post(ctx, map[string]any{}); err == nil {
		t.Fatalf("second post should be throttled past the deadline")
	}
	if len(f.reqs) != 1 {
		t.Fatalf("throttled request reached the server")
	}
}

func TestChanges(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/db/_changes" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.RawQuery
		fmt.Fprintln(w, `{"seq":"1-a","id":"d1","changes":[{"rev":"1-x"}],"doc":{"type":"Feature","properties":{"ts":1}}}`)
		fmt.Fprintln(w)
		fmt.Fprintln(w, `{"seq":2,"id":"d2","deleted":true}`)
		fmt.Fprintln(w, `{"last_seq":"2-b","pending":0}`)
	}))
	defer srv.Close()

	c, err := New(srv.URL+"/db", Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var got []Change
	err = c.Changes(context.Background(), ChangesOptions{Since: "0"}, func(ch Change) error {
		got = append(got, ch)
		return nil
	})
	if err != nil {
		t.Fatalf("Changes: %v", err)
	}
	if len(got) != 2 || got[0].ID != "d1" || !got[1].Deleted {
		t.Fatalf("unexpected changes: %+v", got)
	}
	if !strings.Contains(string(got[0].Doc), `"ts":1`) {
		t.Fatalf("doc not included: %s", got[0].Doc)
	}
	for _, want := range []string{"feed=continuous", "include_docs=true", "since=0"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %s", gotQuery, want)
		}
	}
}

func TestChangesCallbackError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"seq":1,"id":"d1"}`)
		fmt.Fprintln(w, `{"seq":2,"id":"d2"}`)
	}))
	defer srv.Close()
	c, _ := New(srv.URL+"/db", Options{})
	stop := errors.New("stop")
	calls := 0
	err := c.Changes(context.Background(), ChangesOptions{}, func(Change) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Fatalf("expected stop after first change, got %v (%d calls)", err, calls)
	}
}

func TestChangesBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	c, _ := New(srv.URL+"/db", Options{})
	if err := c.Changes(context.Background(), ChangesOptions{}, func(Change) error { return nil }); err == nil {
		t.Fatalf("expected error for 401")
	}
}
