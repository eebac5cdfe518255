package semdex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Header names of the gateway protocol.
const (
	tokenHeader     = "x-service-token"
	requestIDHeader = "X-Request-Id"
)

// baseURL is a placeholder origin; the UDS dialer ignores the host.
const baseURL = "http://semdex"

// Client talks to a semdex gateway over its Unix domain socket. A Client
// is safe for concurrent use; construct one per process and share it.
type Client struct {
	httpc          *http.Client
	token          string
	timeout        time.Duration
	rebuildTimeout time.Duration
	obs            *observer
}

// New builds a Client. Without options it dials /tmp/semdex.sock and
// sends no credential.
func New(opts ...Option) (*Client, error) {
	cfg := clientConfig{
		socketPath:     DefaultSocketPath,
		timeout:        DefaultTimeout,
		rebuildTimeout: DefaultRebuildTimeout,
	}
	for _, o := range opts {
		o.apply(&cfg)
	}
	if cfg.socketPath == "" {
		return nil, fmt.Errorf("semdex: empty socket path")
	}
	if cfg.timeout <= 0 {
		return nil, fmt.Errorf("semdex: timeout must be positive, got %v", cfg.timeout)
	}
	if cfg.rebuildTimeout <= 0 {
		return nil, fmt.Errorf("semdex: rebuild timeout must be positive, got %v", cfg.rebuildTimeout)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	socket := cfg.socketPath
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socket)
		},
	}
	return &Client{
		httpc:          &http.Client{Transport: transport},
		token:          cfg.token,
		timeout:        cfg.timeout,
		rebuildTimeout: cfg.rebuildTimeout,
		obs:            obs,
	}, nil
}

// Indexer returns a service that mirrors listing lifecycle events into
// the gateway index.
func (c *Client) Indexer(source ListingSource) *Indexer {
	return &Indexer{gateway: c, source: source, obs: c.obs}
}

// Reconciler returns the discovery service over this client and the
// given authoritative source.
func (c *Client) Reconciler(source ListingSource) *Reconciler {
	return &Reconciler{gateway: c, source: source, obs: c.obs, now: time.Now}
}

// Index creates or replaces one record. Re-indexing unchanged text is
// cheap: the gateway reuses the stored vector.
func (c *Client) Index(ctx context.Context, rec Record) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("index", start, err) }()

	var out okResponse
	return c.post(ctx, "/api/v1/index", rec, &out, c.timeout)
}

// Remove deletes one record. Removing an absent id is not an error.
func (c *Client) Remove(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("remove", start, err) }()

	var out okResponse
	return c.post(ctx, "/api/v1/remove", removeRequest{ID: id}, &out, c.timeout)
}

// Search runs a vector search. The gateway ranks by ascending cosine
// distance and applies its adaptive cutoff before answering.
func (c *Client) Search(ctx context.Context, q SearchQuery) (res SearchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	err = c.post(ctx, "/api/v1/search", q, &res, c.timeout)
	return res, err
}

// Rebuild replaces the whole index with the given records and returns
// the indexed count. Runs under the rebuild timeout; re-embedding a
// large corpus is slow.
func (c *Client) Rebuild(ctx context.Context, records []Record) (count int, err error) {
	start := time.Now()
	defer func() { c.obs.observe("rebuild", start, err) }()

	var out rebuildResponse
	if err := c.post(ctx, "/api/v1/rebuild", rebuildRequest{Records: records}, &out, c.rebuildTimeout); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// Health reports gateway readiness. Needs no service token.
func (c *Client) Health(ctx context.Context) (h Health, err error) {
	start := time.Now()
	defer func() { c.obs.observe("health", start, err) }()

	err = c.get(ctx, "/health", &h)
	return h, err
}

// Usage reports the embedding token spend. Period is "day" or "month".
func (c *Client) Usage(ctx context.Context, period string) (u Usage, err error) {
	start := time.Now()
	defer func() { c.obs.observe("usage", start, err) }()

	err = c.get(ctx, "/api/v1/usage?period="+url.QueryEscape(period), &u)
	return u, err
}

type okResponse struct {
	OK bool `json:"ok"`
}

type removeRequest struct {
	ID string `json:"id"`
}

type rebuildRequest struct {
	Records []Record `json:"records"`
}

type rebuildResponse struct {
	OK    bool `json:"ok"`
	Count int  `json:"count"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) post(ctx context.Context, path string, in, out any, timeout time.Duration) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("semdex: encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(body), out, timeout)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out, c.timeout)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, body)
	if err != nil {
		return fmt.Errorf("semdex: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set(tokenHeader, c.token)
	}
	req.Header.Set(requestIDHeader, uuid.NewString())

	resp, err := c.httpc.Do(req)
	if err != nil {
		// Dial failures and deadline hits land here; both mean the
		// gateway could not answer in time.
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("semdex: decode response: %w", err)
	}
	return nil
}

// decodeAPIError turns a non-2xx response into an APIError. A body that
// is not the gateway's error shape still yields a readable message.
func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode}

	var wire errorResponse
	if err := json.Unmarshal(body, &wire); err == nil && wire.Code != "" {
		apiErr.Code = wire.Code
		apiErr.Message = wire.Message
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(body))
	return apiErr
}
