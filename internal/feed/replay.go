package feed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"time"
)

// ReplayLog replays points recorded by FileWriter from r to writer, keeping
// the recorded spacing between sends. A speed >1 accelerates playback; if
// speed <= 0, no delay is inserted. Each point is restamped with the clock's
// current time.
func ReplayLog(ctx context.Context, r io.Reader, writer PointWriter, clock Clock, speed float64) (int, error) {
	if clock == nil {
		clock = RealClock{}
	}
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var (
		prev   time.Time
		lastTS int64
		n      int
	)
	for {
		var p Point
		if err := dec.Decode(&p); err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, err
		}
		if p.Feature == nil {
			continue
		}
		if !prev.IsZero() && speed > 0 {
			diff := p.SentAt.Sub(prev)
			if speed != 1 {
				diff = time.Duration(float64(diff) / speed)
			}
			if diff > 0 {
				if err := clock.Sleep(ctx, diff); err != nil {
					return n, err
				}
			}
		}
		prev = p.SentAt

		ts := clock.Now().UnixMilli()
		if ts <= lastTS {
			ts = lastTS + 1
		}
		lastTS = ts
		p.Feature.SetTimestamp(ts)
		p.SentAt = time.UnixMilli(ts).UTC()
		if err := writer.Write(ctx, p); err != nil {
			return n, err
		}
		n++
	}
}

// ReplayLogFile opens a file and replays its points.
func ReplayLogFile(ctx context.Context, path string, writer PointWriter, speed float64) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return ReplayLog(ctx, f, writer, nil, speed)
}
