// Package channel implements the Channel Coordinator, spec.md §2 item 2:
// a process-wide registry mapping (domain, shard) to the network address
// a worker is serving that shard from, used by workers to find peers
// without going through the Leader.
//
// It is the multi-reader/single-writer structure spec.md §5 calls out as
// one of only two pieces of state shared mutable across threads (the
// other being the per-request read-address map in internal/leader);
// writes happen only inside a migration. Grounded on
// johnjansen-torua/internal/coordinator/shard_registry.go's RWMutex-guarded
// map pattern, generalized from a single shard->node map to a
// (domain,shard)->address map.
package channel

import (
	"fmt"
	"sync"

	"github.com/flowmesh/dataflow/internal/graph"
)

// Key identifies one shard of one domain.
type Key struct {
	Domain graph.DomainIndex
	Shard  int
}

// Coordinator is the process-wide (domain,shard) -> address registry.
type Coordinator struct {
	mu   sync.RWMutex
	addr map[Key]string
}

func New() *Coordinator {
	return &Coordinator{addr: make(map[Key]string)}
}

// Put records the address for (domain, shard). Called only from within a
// migration's "Boot domains" step (spec.md §4.4 step 4) or gossip receipt.
func (c *Coordinator) Put(domain graph.DomainIndex, shard int, address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addr[Key{domain, shard}] = address
}

// Lookup returns the address serving (domain, shard), if known.
func (c *Coordinator) Lookup(domain graph.DomainIndex, shard int) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.addr[Key{domain, shard}]
	return a, ok
}

// MustLookup is Lookup but returns an error instead of a boolean, for call
// sites that treat a missing mapping as a hard failure (spec.md §7:
// NoSuchDomain).
func (c *Coordinator) MustLookup(domain graph.DomainIndex, shard int) (string, error) {
	a, ok := c.Lookup(domain, shard)
	if !ok {
		return "", fmt.Errorf("channel: no address known for domain %d shard %d", domain, shard)
	}
	return a, nil
}

// Shards returns n shard addresses for domain, in shard order; a shard with
// no known address (every shard, if the domain is unknown) is an empty
// string. Used by DomainHandle to build
// its shard list and by the gossip broadcast to describe a domain fully.
func (c *Coordinator) Shards(domain graph.DomainIndex, n int) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = c.addr[Key{domain, i}]
	}
	return out
}

// Forget removes every address entry for domain, called when a domain is
// torn down (spec.md §3 Lifecycle: "Domains ... destroyed only when every
// node inside is removed").
func (c *Coordinator) Forget(domain graph.DomainIndex, nShards int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i < nShards; i++ {
		delete(c.addr, Key{domain, i})
	}
}
