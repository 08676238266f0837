package feed

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	tea "github.com/charmbracelet/bubbletea"

	"locationfeed/internal/geojson"
)

func newTestFeature(lon, lat float64) *geojson.Feature {
	f := geojson.NewPoint(lon, lat, map[string]any{"name": "p"})
	f.SetTimestamp(1_700_000_000_000)
	return f
}

func testPoint() Point {
	return Point{
		RunID:   "run-1",
		Pass:    2,
		Route:   "route_a",
		Index:   1,
		Feature: newTestFeature(-92.466, 44.023),
		SentAt:  time.UnixMilli(1_700_000_000_000).UTC(),
	}
}

func TestFileWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.jsonl")
	w, err := NewFileWriter(path)
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	p := testPoint()
	if err := w.Write(context.Background(), p); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Write(context.Background(), p); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	lines := 0
	for sc.Scan() {
		var got struct {
			RunID   string `json:"run_id"`
			Pass    int    `json:"pass"`
			Route   string `json:"route"`
			Feature struct {
				Properties map[string]any `json:"properties"`
			} `json:"feature"`
		}
		if err := json.Unmarshal(sc.Bytes(), &got); err != nil {
			t.Fatalf("line %d: %v", lines, err)
		}
		if got.RunID != "run-1" || got.Pass != 2 || got.Route != "route_a" {
			t.Fatalf("unexpected line %s", sc.Text())
		}
		if got.Feature.Properties["ts"] != float64(1_700_000_000_000) {
			t.Fatalf("missing ts in %s", sc.Text())
		}
		lines++
	}
	if lines != 2 {
		t.Fatalf("expected 2 lines, got %d", lines)
	}
}

type recWriter struct {
	name string
	log  *[]string
	err  error
}

func (r *recWriter) Write(context.Context, Point) error {
	*r.log = append(*r.log, r.name)
	return r.err
}

func TestMultiWriter(t *testing.T) {
	var log []string
	a := &recWriter{name: "a", log: &log}
	b := &recWriter{name: "b", log: &log}
	mw := NewMultiWriter(a, nil, b)
	if mw.Len() != 2 {
		t.Fatalf("expected nil writer skipped, got %d", mw.Len())
	}
	if err := mw.Write(context.Background(), testPoint()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if strings.Join(log, ",") != "a,b" {
		t.Fatalf("unexpected order %v", log)
	}

	log = nil
	a.err = errors.New("fail")
	if err := mw.Write(context.Background(), testPoint()); err == nil {
		t.Fatalf("expected error")
	}
	if len(log) != 1 {
		t.Fatalf("expected fan-out to stop at first error, got %v", log)
	}
}

func TestStdoutWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	w := &StdoutWriter{out: &buf}
	if err := w.Write(context.Background(), testPoint()); err != nil {
		t.Fatalf("write: %v", err)
	}
	var f geojson.Feature
	if err := json.Unmarshal(buf.Bytes(), &f); err != nil {
		t.Fatalf("output is not a feature: %v (%q)", err, buf.String())
	}
	if f.Type != "Feature" || f.Properties["name"] != "p" {
		t.Fatalf("unexpected feature %s", buf.String())
	}
}

func TestStdoutWriterColor(t *testing.T) {
	var buf bytes.Buffer
	w := &StdoutWriter{out: &buf, colorize: true}
	if err := w.Write(context.Background(), testPoint()); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"route_a", "#1", "pass=2", "-92.466000,44.023000"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

type fakePublisher struct {
	subjects []string
	data     [][]byte
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.subjects = append(f.subjects, subject)
	f.data = append(f.data, data)
	return nil
}

func TestNATSWriter(t *testing.T) {
	pub := &fakePublisher{}
	w := &NATSWriter{nc: pub, prefix: "locations"}
	p := testPoint()
	p.Route = "route 3.a"
	if err := w.Write(context.Background(), p); err != nil {
		t.Fatalf("write: %v", err)
	}
	if pub.subjects[0] != "locations.route_3_a" {
		t.Fatalf("unexpected subject %q", pub.subjects[0])
	}
	var f geojson.Feature
	if err := json.Unmarshal(pub.data[0], &f); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if ts, ok := f.Timestamp(); !ok || ts != 1_700_000_000_000 {
		t.Fatalf("unexpected ts %v %v", ts, ok)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close without connection: %v", err)
	}
}

func TestSubjectToken(t *testing.T) {
	cases := map[string]string{
		"route3":    "route3",
		" a b ":     "a_b",
		"x.*>":      "x___",
		"":          "_",
		"dir/route": "dir_route",
	}
	for in, want := range cases {
		if got := subjectToken(in); got != want {
			t.Errorf("subjectToken(%q) = %q, want %q", in, got, want)
		}
	}
}

type mockGreptimeClient struct {
	table *table.Table
	err   error
}

func (m *mockGreptimeClient) Write(_ context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error) {
	if len(tables) > 0 {
		m.table = tables[0]
	}
	return &gpb.GreptimeResponse{}, m.err
}

func TestGreptimeWriterRows(t *testing.T) {
	m := &mockGreptimeClient{}
	w := &GreptimeDBWriter{client: m, table: "route_points"}
	if err := w.Write(context.Background(), testPoint()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if m.table == nil {
		t.Fatalf("expected table to be captured")
	}
	rows := m.table.GetRows()
	if len(rows.Schema) != 7 {
		t.Fatalf("unexpected schema length: %d", len(rows.Schema))
	}
	if rows.Schema[0].SemanticType != gpb.SemanticType_TAG {
		t.Fatalf("run_id should be a tag")
	}
	if rows.Schema[6].Datatype != gpb.ColumnDataType_TIMESTAMP_MILLISECOND {
		t.Fatalf("ts column type = %v", rows.Schema[6].Datatype)
	}
	vals := rows.Rows[0].Values
	if got := vals[0].GetStringValue(); got != "run-1" {
		t.Fatalf("run_id = %s", got)
	}
	if got := vals[1].GetStringValue(); got != "route_a" {
		t.Fatalf("route = %s", got)
	}
	if got := vals[2].GetI64Value(); got != 2 {
		t.Fatalf("pass = %d", got)
	}
	if got := vals[4].GetF64Value(); got != -92.466 {
		t.Fatalf("lon = %f", got)
	}
	if got := vals[5].GetF64Value(); got != 44.023 {
		t.Fatalf("lat = %f", got)
	}
}

func TestGreptimeWriterError(t *testing.T) {
	m := &mockGreptimeClient{err: errors.New("unavailable")}
	w := &GreptimeDBWriter{client: m, table: "route_points"}
	if err := w.Write(context.Background(), testPoint()); err == nil {
		t.Fatalf("expected error")
	}
	if err := w.WriteBatch(context.Background(), nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
}

type fakeProgram struct{ msgs []tea.Msg }

func (f *fakeProgram) Send(msg tea.Msg) { f.msgs = append(f.msgs, msg) }

func TestTUIWriterMessages(t *testing.T) {
	p := &fakeProgram{}
	w := &TUIWriter{program: p}
	pt := testPoint()
	if err := w.Write(context.Background(), pt); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg, ok := p.msgs[0].(pointMsg)
	if !ok {
		t.Fatalf("expected pointMsg, got %T", p.msgs[0])
	}
	if msg.Feature == pt.Feature {
		t.Fatalf("expected feature to be copied")
	}
	w.SetStatus(Status{State: StatePausing})
	if _, ok := p.msgs[1].(statusMsg); !ok {
		t.Fatalf("expected statusMsg, got %T", p.msgs[1])
	}
}

func TestTUIModelUpdate(t *testing.T) {
	s := Settings{RouteFiles: []string{"a.json", "b.json"}, PerPointDelay: time.Second, InterRouteDelay: 5 * time.Second, Iterations: 100}
	m := newTUIModel("run-1", s)
	mi, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	m = mi.(tuiModel)
	mi, _ = m.Update(pointMsg{testPoint()})
	m = mi.(tuiModel)
	if m.status.PointsSent != 1 || m.status.Route != "route_a" || m.status.State != StatePlaying {
		t.Fatalf("unexpected status %+v", m.status)
	}
	if len(m.logs) != 1 || !strings.Contains(m.logs[0], "route_a #1") {
		t.Fatalf("unexpected logs %v", m.logs)
	}
	if !strings.Contains(m.View(), "pass 2/100") {
		t.Fatalf("status line missing from view")
	}

	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'w'}})
	m = mi.(tuiModel)
	if !m.wrap {
		t.Fatalf("wrap not toggled")
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	m = mi.(tuiModel)
	if m.autoscroll {
		t.Fatalf("autoscroll not toggled")
	}
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
}
