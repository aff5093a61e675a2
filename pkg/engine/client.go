package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/zep-us/callbridge/pkg/logger"
)

// DefaultMaxResponseBytes caps how much of an upstream body is buffered
const DefaultMaxResponseBytes = 10 << 20

// Options configures a Client
type Options struct {
	BaseURL          string        // Upstream base URL, e.g. "http://localhost:9000"
	APIKey           string        // Injected as Authorization when non-empty
	Timeout          time.Duration // Per-call timeout; 0 disables
	MaxConcurrent    int           // Bound on in-flight async calls; <= 0 uses 1000
	MaxResponseBytes int64         // <= 0 uses DefaultMaxResponseBytes
	Header           http.Header   // Added to every request built by NewRequest
	HTTPClient       *http.Client  // Optional; a pooled client is created when nil
}

// Client builds and runs Delegate calls against one upstream
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	maxBody    int64
	header     http.Header
	httpClient *http.Client
	sem        *semaphore.Weighted
}

// NewClient creates a Client with a shared, connection-pooled transport
func NewClient(opts Options) *Client {
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1000
	}
	maxBody := opts.MaxResponseBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxResponseBytes
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		// Tuned for many concurrent I/O-bound calls to a single upstream
		transport := &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          maxConcurrent * 2,
			MaxIdleConnsPerHost:   maxConcurrent,
			MaxConnsPerHost:       maxConcurrent * 2,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
		httpClient = &http.Client{Transport: transport}
	}

	logger.Debug("Engine client created: baseURL=%s, maxConcurrent=%d, timeout=%v", opts.BaseURL, maxConcurrent, opts.Timeout)

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		timeout:    opts.Timeout,
		maxBody:    maxBody,
		header:     opts.Header.Clone(),
		httpClient: httpClient,
		sem:        semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// NewRequest builds a request against the client's base URL.
// Default headers are applied first, then header, then the API key.
func (c *Client) NewRequest(method, path string, body []byte, header http.Header) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}
	for k, vals := range c.header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	for k, vals := range header {
		req.Header.Del(k)
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}
	return req, nil
}

// NewCall wraps req in an unexecuted Delegate.
// The request body is buffered so the call can be cloned and replayed.
func (c *Client) NewCall(req *http.Request) (Delegate, error) {
	var body []byte
	if req.Body != nil && req.Body != http.NoBody {
		data, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to buffer request body: %w", err)
		}
		body = data
	}
	tmpl := req.Clone(context.Background())
	tmpl.Body = nil
	return &httpCall{client: c, req: tmpl, body: body}, nil
}

// acquire waits for an in-flight slot until ctx is done
func (c *Client) acquire(ctx context.Context) error {
	return c.sem.Acquire(ctx, 1)
}

func (c *Client) release() {
	c.sem.Release(1)
}
