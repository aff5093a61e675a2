// Command loadtest drives a running callbridge with tagged calls and optional mid-run cancellation.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/zep-us/callbridge/internal/handler/http/calls"
	"github.com/zep-us/callbridge/pkg/logger"
)

type options struct {
	baseURL     string
	path        string
	method      string
	mode        string
	requests    int
	concurrency int
	tags        int
	timeout     time.Duration
	payload     string
	cancelAfter time.Duration
}

func (o *options) tagFor(i int) string {
	return fmt.Sprintf("load-%d", i%o.tags)
}

func newHTTPClient(o *options) *http.Client {
	return &http.Client{
		Timeout: o.timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			MaxIdleConns:          o.concurrency,
			MaxIdleConnsPerHost:   o.concurrency,
			MaxConnsPerHost:       o.concurrency,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: o.timeout,
		},
	}
}

func send(ctx context.Context, client *http.Client, o *options, tag string) result {
	var body io.Reader
	if o.payload != "" && o.method != http.MethodGet {
		body = strings.NewReader(o.payload)
	}
	url := strings.TrimRight(o.baseURL, "/") + "/v1/calls/" + strings.TrimLeft(o.path, "/")
	req, err := http.NewRequestWithContext(ctx, o.method, url, body)
	if err != nil {
		return result{tag: tag, err: err}
	}
	req.Header.Set(calls.HeaderTag, tag)
	req.Header.Set(calls.HeaderMode, o.mode)

	start := time.Now()
	resp, err := client.Do(req)
	lat := time.Since(start)
	if err != nil {
		return result{tag: tag, latency: lat, err: err}
	}
	defer resp.Body.Close()

	r := result{tag: tag, statusCode: resp.StatusCode, latency: lat}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		r.snippet = strings.TrimSpace(string(b))
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return r
}

// cancelTag issues DELETE /v1/tags/:tag and returns how many calls the server canceled
func cancelTag(ctx context.Context, client *http.Client, baseURL, tag string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, strings.TrimRight(baseURL, "/")+"/v1/tags/"+tag, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("cancel %s: unexpected status %d", tag, resp.StatusCode)
	}
	var out struct {
		Canceled int `json:"canceled"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.Canceled, nil
}

func run(ctx context.Context, o *options, w io.Writer) error {
	if o.requests <= 0 || o.concurrency <= 0 || o.tags <= 0 {
		return fmt.Errorf("requests, concurrency and tags must be > 0")
	}
	if o.concurrency > o.requests {
		o.concurrency = o.requests
	}
	o.method = strings.ToUpper(o.method)
	client := newHTTPClient(o)

	jobs := make(chan int, o.requests)
	results := make(chan result, o.requests)

	canceled := -1
	var cancelWG sync.WaitGroup
	if o.cancelAfter > 0 {
		cancelWG.Add(1)
		go func() {
			defer cancelWG.Done()
			select {
			case <-time.After(o.cancelAfter):
			case <-ctx.Done():
				return
			}
			n, err := cancelTag(ctx, client, o.baseURL, o.tagFor(0))
			if err != nil {
				logger.Warn("Cancel request failed: %v", err)
				return
			}
			canceled = n
		}()
	}

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < o.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results <- send(ctx, client, o, o.tagFor(i))
			}
		}()
	}
	for i := 0; i < o.requests; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	elapsed := time.Since(start)
	cancelWG.Wait()
	close(results)

	all := make([]result, 0, o.requests)
	for r := range results {
		all = append(all, r)
	}
	summarize(all, elapsed).print(w, canceled)
	return nil
}

func newRootCommand() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:          "loadtest",
		Short:        "Send tagged calls through a running callbridge and report latency.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), o, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.baseURL, "url", "http://localhost:8080", "callbridge base URL")
	f.StringVar(&o.path, "path", "/", "upstream path appended to /v1/calls/")
	f.StringVar(&o.method, "method", http.MethodGet, "HTTP method")
	f.StringVar(&o.mode, "mode", "sync", "call mode: sync or async")
	f.IntVar(&o.requests, "requests", 1000, "total number of calls")
	f.IntVar(&o.concurrency, "concurrency", 100, "number of concurrent senders")
	f.IntVar(&o.tags, "tags", 4, "number of distinct tags to rotate through")
	f.DurationVar(&o.timeout, "timeout", 60*time.Second, "per-request timeout")
	f.StringVar(&o.payload, "payload", "", "request body for non-GET methods")
	f.DurationVar(&o.cancelAfter, "cancel-after", 0, "cancel tag load-0 after this long (0 = never)")
	return cmd
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

