// Package store talks to a CouchDB/Cloudant database over its REST API.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"locationfeed/internal/logging"
)

// RequestMetrics receives one observation per store request.
type RequestMetrics interface {
	StoreRequestObserve(method string, status int, d time.Duration)
	StoreRequestErrInc(method string)
}

// Options tunes the HTTP client. The zero value means no timeout and no
// rate limit.
type Options struct {
	Timeout    time.Duration
	RateLimit  float64 // requests per second, 0 = unlimited
	HTTPClient *http.Client
	Metrics    RequestMetrics
}

// Client issues requests against one database URL. Credentials embedded in
// the URL are sent as basic auth by net/http.
type Client struct {
	dbURL   *url.URL
	http    *http.Client
	limiter *rate.Limiter
	metrics RequestMetrics
}

// New parses rawURL and returns a client for it.
func New(rawURL string, opts Options) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse store url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("store url must be http or https, got %q", u.Redacted())
	}
	if u.Host == "" {
		return nil, fmt.Errorf("store url has no host: %q", u.Redacted())
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return &Client{dbURL: u, http: hc, limiter: limiter, metrics: opts.Metrics}, nil
}

// URL returns the database URL with the password redacted.
func (c *Client) URL() string { return c.dbURL.Redacted() }

// ResetResult reports the outcome of dropping and recreating the database.
type ResetResult struct {
	DeleteStatus int `json:"delete_status"`
	CreateStatus int `json:"create_status"`
}

// Deleted reports whether the DELETE returned a 2xx status.
func (r ResetResult) Deleted() bool { return is2xx(r.DeleteStatus) }

// Created reports whether the PUT returned 201 Created.
func (r ResetResult) Created() bool { return r.CreateStatus == http.StatusCreated }

// Reset deletes and recreates the database. Non-2xx statuses are reported in
// the result, not as errors; only transport failures return an error.
func (c *Client) Reset(ctx context.Context) (ResetResult, error) {
	log := logging.FromContext(ctx)
	var res ResetResult

	log.Info("deleting database", "url", c.URL())
	status, err := c.Delete(ctx)
	if err != nil {
		return res, err
	}
	res.DeleteStatus = status
	log.Info("delete finished", "status", status)

	status, err = c.Create(ctx)
	if err != nil {
		return res, err
	}
	res.CreateStatus = status
	log.Info("create finished", "status", status)
	if res.Created() {
		log.Info("database created successfully")
	}
	return res, nil
}

// Delete issues DELETE <url> and returns the status code.
func (c *Client) Delete(ctx context.Context) (int, error) {
	return c.do(ctx, http.MethodDelete, c.dbURL, nil)
}

// Create issues PUT <url> and returns the status code.
func (c *Client) Create(ctx context.Context) (int, error) {
	return c.do(ctx, http.MethodPut, c.dbURL, nil)
}

// Post writes doc as a new document with POST <url>.
func (c *Client) Post(ctx context.Context, doc any) (int, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("encode document: %w", err)
	}
	return c.do(ctx, http.MethodPost, c.dbURL, body)
}

func (c *Client) do(ctx context.Context, method string, u *url.URL, body []byte) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return 0, fmt.Errorf("build %s request: %w", method, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if c.metrics != nil {
			c.metrics.StoreRequestErrInc(method)
		}
		return 0, fmt.Errorf("%s %s: %w", method, u.Redacted(), err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if c.metrics != nil {
		c.metrics.StoreRequestObserve(method, resp.StatusCode, time.Since(start))
	}
	return resp.StatusCode, nil
}

func is2xx(status int) bool { return status >= 200 && status < 300 }
