package worker

import (
	"sync"

	"github.com/flowmesh/dataflow/internal/value"
)

// ReaderState is the materialization status of one key in a partially
// materialized Reader (spec.md glossary: "Partial materialization: a
// reader or operator state that can be empty for some keys and filled on
// demand by upquery").
type ReaderState byte

const (
	// StateMiss means the key has never been filled; an upquery must run
	// before this key can be answered.
	StateMiss ReaderState = iota
	StateHit
)

// ReaderCache is the leaf cache backing a Reader node (spec.md glossary:
// "Reader: a leaf cache keyed by the query's parameter columns; the only
// node type an adapter reads from"). Grounded on the same RWMutex +
// plain-map pattern as BaseTable, since both are worker-local thread-safe
// stores the teacher's storage.MemoryStore models.
type ReaderCache struct {
	mu      sync.RWMutex
	rows    map[string][]value.Row
	partial bool
}

// NewReaderCache constructs a cache; partial controls whether a miss
// returns StateMiss (triggering an upquery) or an empty hit (full
// materialization, spec.md §4.4 step 2).
func NewReaderCache(partial bool) *ReaderCache {
	return &ReaderCache{rows: make(map[string][]value.Row), partial: partial}
}

// Lookup returns the rows for key and whether the key is materialized.
func (c *ReaderCache) Lookup(key value.Row) ([]value.Row, ReaderState) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rows, ok := c.rows[rowKeyString(key)]
	if !ok {
		if c.partial {
			return nil, StateMiss
		}
		return nil, StateHit // fully materialized: absence means "no rows", not "unknown"
	}
	return rows, StateHit
}

// Fill installs rows as the materialized result for key, called after an
// upquery resolves a partial miss, or directly by a full-materialization
// write path.
func (c *ReaderCache) Fill(key value.Row, rows []value.Row) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows[rowKeyString(key)] = rows
}

// Evict empties the cache, returning the approximate byte count freed
// (spec.md §4.5 flush_partial: "evicts all partial state from every node;
// returns total bytes").
func (c *ReaderCache) Evict() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	freed := 0
	for k, rows := range c.rows {
		freed += len(k)
		for _, r := range rows {
			freed += len(r) * 16 // coarse per-value estimate, not exact
		}
	}
	c.rows = make(map[string][]value.Row)
	return freed
}

func (c *ReaderCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rows)
}
