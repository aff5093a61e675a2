// Package registry tracks in-flight calls by tag so that groups of calls
// can be inspected and canceled together.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/zep-us/callbridge/pkg/callmetrics"
	"github.com/zep-us/callbridge/pkg/logger"
)

// Call is what the registry needs from a tracked call
type Call interface {
	ID() string
	Cancel()
}

// Registry maps tags to the set of calls registered under them.
// All methods are safe for concurrent use; Add and Remove are idempotent.
type Registry struct {
	mu    sync.Mutex
	byTag map[any]map[Call]struct{}
	tagOf map[Call]any
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		byTag: make(map[any]map[Call]struct{}),
		tagOf: make(map[Call]any),
	}
}

// Add registers c under tag. Tags must be comparable.
// Re-adding moves the call to the new tag.
func (r *Registry) Add(c Call, tag any) {
	if c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.tagOf[c]; ok {
		if old == tag {
			return
		}
		r.removeLocked(c, old)
	}
	set, ok := r.byTag[tag]
	if !ok {
		set = make(map[Call]struct{})
		r.byTag[tag] = set
	}
	set[c] = struct{}{}
	r.tagOf[c] = tag
	callmetrics.InflightCalls.Set(float64(len(r.tagOf)))
	logger.Debug("Registry: added call %s under tag %v", c.ID(), tag)
}

// Remove deregisters c; removing an unknown call is a no-op
func (r *Registry) Remove(c Call) {
	if c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tag, ok := r.tagOf[c]
	if !ok {
		return
	}
	r.removeLocked(c, tag)
	callmetrics.InflightCalls.Set(float64(len(r.tagOf)))
	logger.Debug("Registry: removed call %s", c.ID())
}

func (r *Registry) removeLocked(c Call, tag any) {
	delete(r.tagOf, c)
	if set, ok := r.byTag[tag]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(r.byTag, tag)
		}
	}
}

// Cancel cancels every call registered under tag and returns how many were canceled.
// Calls stay registered until their completion protocol removes them.
func (r *Registry) Cancel(tag any) int {
	calls := r.snapshot(func(t any) bool { return t == tag })
	for _, c := range calls {
		c.Cancel()
	}
	if len(calls) > 0 {
		logger.Info("Registry: canceled %d calls with tag %v", len(calls), tag)
	}
	return len(calls)
}

// CancelAll cancels every registered call
func (r *Registry) CancelAll() int {
	calls := r.snapshot(func(any) bool { return true })
	for _, c := range calls {
		c.Cancel()
	}
	if len(calls) > 0 {
		logger.Info("Registry: canceled all %d calls", len(calls))
	}
	return len(calls)
}

// snapshot collects matching calls so Cancel runs outside the lock
func (r *Registry) snapshot(match func(tag any) bool) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for tag, set := range r.byTag {
		if !match(tag) {
			continue
		}
		for c := range set {
			out = append(out, c)
		}
	}
	return out
}

// Count returns the number of calls registered under tag
func (r *Registry) Count(tag any) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byTag[tag])
}

// Len returns the total number of registered calls
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tagOf)
}

// Counts returns in-flight counts keyed by the tag's string form
func (r *Registry) Counts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.byTag))
	for tag, set := range r.byTag {
		out[fmt.Sprint(tag)] += len(set)
	}
	return out
}

// Tags returns the string form of every tag with at least one call, sorted
func (r *Registry) Tags() []string {
	counts := r.Counts()
	tags := make([]string, 0, len(counts))
	for t := range counts {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}
