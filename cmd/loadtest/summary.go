package main

import (
	"fmt"
	"io"
	"sort"
	"time"
)

type result struct {
	tag        string
	statusCode int
	latency    time.Duration
	err        error
	snippet    string
}

type summary struct {
	total      int
	success    int
	errors     int
	elapsed    time.Duration
	statuses   map[int]int
	perTag     map[string]int
	errorKinds map[string]int
	latencies  []time.Duration // sorted
}

func summarize(results []result, elapsed time.Duration) *summary {
	s := &summary{
		total:      len(results),
		elapsed:    elapsed,
		statuses:   make(map[int]int),
		perTag:     make(map[string]int),
		errorKinds: make(map[string]int),
	}
	for _, r := range results {
		s.perTag[r.tag]++
		s.latencies = append(s.latencies, r.latency)
		if r.err != nil {
			s.errors++
			s.errorKinds[r.err.Error()]++
			continue
		}
		s.statuses[r.statusCode]++
		if r.statusCode >= 200 && r.statusCode < 400 {
			s.success++
			continue
		}
		s.errors++
		key := fmt.Sprintf("HTTP %d", r.statusCode)
		if r.snippet != "" {
			key += ": " + truncate(r.snippet, 120)
		}
		s.errorKinds[key]++
	}
	sort.Slice(s.latencies, func(i, j int) bool { return s.latencies[i] < s.latencies[j] })
	return s
}

// percentile uses nearest-rank on the sorted latencies
func (s *summary) percentile(p float64) time.Duration {
	if len(s.latencies) == 0 {
		return 0
	}
	idx := int(p*float64(len(s.latencies))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(s.latencies) {
		idx = len(s.latencies) - 1
	}
	return s.latencies[idx]
}

func (s *summary) mean() time.Duration {
	if len(s.latencies) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range s.latencies {
		sum += d
	}
	return sum / time.Duration(len(s.latencies))
}

type kindCount struct {
	kind  string
	count int
}

// topErrors returns at most n error kinds, most frequent first
func (s *summary) topErrors(n int) []kindCount {
	out := make([]kindCount, 0, len(s.errorKinds))
	for k, v := range s.errorKinds {
		out = append(out, kindCount{k, v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].kind < out[j].kind
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func (s *summary) print(w io.Writer, canceled int) {
	fmt.Fprintln(w, "=== callbridge load test ===")
	fmt.Fprintf(w, "Requests:       %d\n", s.total)
	fmt.Fprintf(w, "Success:        %d\n", s.success)
	fmt.Fprintf(w, "Errors:         %d\n", s.errors)
	if canceled >= 0 {
		fmt.Fprintf(w, "Canceled:       %d\n", canceled)
	}
	fmt.Fprintf(w, "Total Elapsed:  %v\n", s.elapsed)
	fmt.Fprintf(w, "Status Counts:  %v\n", s.statuses)
	fmt.Fprintf(w, "Per Tag:        %v\n", s.perTag)
	if len(s.latencies) > 0 {
		fmt.Fprintf(w, "Avg Latency:    %v\n", s.mean())
		fmt.Fprintf(w, "P50 Latency:    %v\n", s.percentile(0.50))
		fmt.Fprintf(w, "P90 Latency:    %v\n", s.percentile(0.90))
		fmt.Fprintf(w, "P99 Latency:    %v\n", s.percentile(0.99))
	}
	if top := s.topErrors(10); len(top) > 0 {
		fmt.Fprintln(w, "Top Error Kinds:")
		for i, e := range top {
			fmt.Fprintf(w, "  %d) %s  (count=%d)\n", i+1, e.kind, e.count)
		}
	}
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
