// Package domain implements the Domain Handle, spec.md §4.7: the Leader's
// per-domain control object holding an ordered shard->worker-address list
// and a bounded-concurrency fan-out RPC to every healthy shard.
//
// Grounded on johnjansen-torua/cmd/coordinator/main.go's handleBroadcast
// (parallel POST to every registered node, tolerant of individual
// failures) generalized from "every node" to "every healthy shard of one
// domain" and bounded to 16 in-flight requests per spec.md §4.7.
package domain

import (
	"context"
	"sync"

	"github.com/flowmesh/dataflow/internal/graph"
	"github.com/flowmesh/dataflow/internal/transport"
)

// maxInFlight bounds concurrent fan-out RPCs per SendToHealthy call
// (spec.md §4.7: "bounded concurrency = 16 in-flight").
const maxInFlight = 16

// Shard is one shard's current placement: the worker URI serving it, and
// whether that worker is currently believed healthy.
type Shard struct {
	URI     string
	Healthy bool
}

// Handle is the Leader-side control object for one domain.
type Handle struct {
	mu     sync.RWMutex
	Idx    graph.DomainIndex
	shards []Shard
}

// New constructs a Handle for domain idx with the given initial shard
// placements.
func New(idx graph.DomainIndex, shards []Shard) *Handle {
	return &Handle{Idx: idx, shards: append([]Shard(nil), shards...)}
}

// Shards returns a snapshot of the current shard placements.
func (h *Handle) Shards() []Shard {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Shard(nil), h.shards...)
}

// SetHealthy updates the health bit for shard i, called by the Leader
// when a worker is removed or re-added (spec.md §4.5
// handle_failed_workers).
func (h *Handle) SetHealthy(shardIdx int, healthy bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if shardIdx >= 0 && shardIdx < len(h.shards) {
		h.shards[shardIdx].Healthy = healthy
	}
}

// AssignedToWorker reports whether any shard of this domain is currently
// placed on the worker at uri (spec.md §4.7: "assigned_to_worker(uri) is
// a predicate used by placement and view-filtering").
func (h *Handle) AssignedToWorker(uri string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.shards {
		if s.URI == uri {
			return true
		}
	}
	return false
}

// Endpoint is a function that builds the worker URL to POST to for a
// given shard's base URI; call sites pass e.g. func(base string) string {
// return base + "/rpc/run_domain" }.
type Endpoint func(baseURI string) string

// SendToHealthy fans req out to every healthy shard in parallel, bounded
// to maxInFlight concurrent requests, and returns responses in shard
// order. Unhealthy shards contribute a nil response with no error, the
// way spec.md §4.7 specifies ("unhealthy shards contribute None").
func SendToHealthy[Req any, Resp any](ctx context.Context, h *Handle, endpoint Endpoint, req Req) ([]*Resp, error) {
	shards := h.Shards()
	out := make([]*Resp, len(shards))
	sem := make(chan struct{}, maxInFlight)
	var wg sync.WaitGroup
	errs := make([]error, len(shards))

	for i, s := range shards {
		if !s.Healthy {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, s Shard) {
			defer wg.Done()
			defer func() { <-sem }()
			var resp Resp
			url := endpoint(s.URI)
			if err := transport.Post(ctx, url, req, &resp); err != nil {
				errs[i] = err
				return
			}
			out[i] = &resp
		}(i, s)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return out, err
		}
	}
	return out, nil
}
