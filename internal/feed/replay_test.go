package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestReplayLog(t *testing.T) {
	base := time.UnixMilli(1_600_000_000_000).UTC()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := 0; i < 3; i++ {
		p := testPoint()
		p.Index = i
		p.SentAt = base.Add(time.Duration(i) * 2 * time.Second)
		if err := enc.Encode(p); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}

	clock := newFakeClock()
	w := &collectWriter{}
	n, err := ReplayLog(context.Background(), &buf, w, clock, 2)
	if err != nil {
		t.Fatalf("ReplayLog: %v", err)
	}
	if n != 3 || len(w.got) != 3 {
		t.Fatalf("expected 3 points, got %d/%d", n, len(w.got))
	}
	for i, g := range w.got {
		if g.index != i || g.route != "route_a" {
			t.Fatalf("point %d mismatch: %+v", i, g)
		}
	}
	if len(clock.sleeps) != 2 || clock.sleeps[0] != time.Second || clock.sleeps[1] != time.Second {
		t.Fatalf("expected two 1s sleeps at 2x speed, got %v", clock.sleeps)
	}
	if w.got[0].ts != clock.now.Add(-2*time.Second).UnixMilli() {
		t.Fatalf("expected restamped ts, got %d", w.got[0].ts)
	}
}

func TestReplayLogNoDelay(t *testing.T) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := 0; i < 2; i++ {
		p := testPoint()
		p.SentAt = p.SentAt.Add(time.Duration(i) * time.Hour)
		_ = enc.Encode(p)
	}
	clock := newFakeClock()
	w := &collectWriter{}
	if _, err := ReplayLog(context.Background(), &buf, w, clock, 0); err != nil {
		t.Fatalf("ReplayLog: %v", err)
	}
	if len(clock.sleeps) != 0 {
		t.Fatalf("expected no sleeps, got %v", clock.sleeps)
	}
	if w.got[1].ts <= w.got[0].ts {
		t.Fatalf("ts not increasing: %d, %d", w.got[0].ts, w.got[1].ts)
	}
}

func TestReplayLogBadInput(t *testing.T) {
	buf := bytes.NewBufferString(`{"route":"r","feature":{"type":"Feature"`)
	if _, err := ReplayLog(context.Background(), buf, &collectWriter{}, newFakeClock(), 0); err == nil {
		t.Fatalf("expected decode error")
	}
}
