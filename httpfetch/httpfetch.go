// Package httpfetch provides the only network egress the sandbox allows:
// a rate-limited HTTP client restricted to an explicit host allow-list,
// backing the curl coreutil.
package httpfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Options configures a Client. AllowedHosts is mandatory: a Client with
// an empty list refuses every request.
type Options struct {
	AllowedHosts  []string
	RatePerSecond float64
	Burst         int
	Timeout       time.Duration
	MaxBodyBytes  int64
}

// Client performs rate-limited HTTP requests restricted to an allow-list
// of hosts, the sandbox's one sanctioned network egress point.
type Client struct {
	hosts   map[string]bool
	limiter *rate.Limiter
	hc      *http.Client
	maxBody int64
}

func New(opts Options) *Client {
	hosts := make(map[string]bool, len(opts.AllowedHosts))
	for _, h := range opts.AllowedHosts {
		hosts[strings.ToLower(h)] = true
	}
	rps := opts.RatePerSecond
	if rps <= 0 {
		rps = 1
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 10 << 20
	}
	return &Client{
		hosts:   hosts,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		hc:      &http.Client{Timeout: timeout},
		maxBody: maxBody,
	}
}

// Result is what a Fetch call returns to its caller: enough to let the
// curl coreutil render a response the way a real HTTP client would.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ErrHostNotAllowed reports a request whose host isn't on the allow-list.
type ErrHostNotAllowed struct{ Host string }

func (e *ErrHostNotAllowed) Error() string {
	return fmt.Sprintf("httpfetch: host %q is not on the allow-list", e.Host)
}

func (c *Client) Fetch(ctx context.Context, method, rawURL string, body io.Reader, headers map[string]string) (*Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: %w", err)
	}
	if !c.hosts[strings.ToLower(u.Hostname())] {
		return nil, &ErrHostNotAllowed{Host: u.Hostname()}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("httpfetch: rate limit: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return nil, fmt.Errorf("httpfetch: reading body: %w", err)
	}
	return &Result{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}
