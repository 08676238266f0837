package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Change is one row of the continuous changes feed.
type Change struct {
	Seq     json.RawMessage `json:"seq"`
	ID      string          `json:"id"`
	Deleted bool            `json:"deleted,omitempty"`
	Doc     json.RawMessage `json:"doc,omitempty"`
}

// ChangesOptions controls the feed request.
type ChangesOptions struct {
	Since     string        // "now", "0" or a sequence token; empty means "now"
	Heartbeat time.Duration // keep-alive interval, default 30s
}

// Changes follows the continuous changes feed with docs included and calls fn
// for every change until ctx is cancelled, the server ends the feed or fn
// returns an error.
func (c *Client) Changes(ctx context.Context, opts ChangesOptions, fn func(Change) error) error {
	since := opts.Since
	if since == "" {
		since = "now"
	}
	hb := opts.Heartbeat
	if hb <= 0 {
		hb = 30 * time.Second
	}

	u := c.dbURL.JoinPath("_changes")
	q := u.Query()
	q.Set("feed", "continuous")
	q.Set("include_docs", "true")
	q.Set("since", since)
	q.Set("heartbeat", strconv.FormatInt(hb.Milliseconds(), 10))
	u.RawQuery = q.Encode()

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build changes request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	// The feed is long-lived, so the client timeout must not apply.
	hc := *c.http
	hc.Timeout = 0
	resp, err := hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("GET %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("changes feed: unexpected status %d", resp.StatusCode)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue // heartbeat
		}
		var ch Change
		if err := json.Unmarshal(line, &ch); err != nil {
			return fmt.Errorf("decode change: %w", err)
		}
		if ch.ID == "" {
			continue // trailing last_seq row
		}
		if err := fn(ch); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("read changes: %w", err)
	}
	return nil
}
