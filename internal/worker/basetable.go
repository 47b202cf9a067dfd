// Package worker implements the Worker component of spec.md §2 item 4: a
// process owning a set of domains, each a single-threaded cooperative
// scheduler running operator nodes, with persistent base-table storage
// and a reader cache.
//
// basetable.go is the persisted-state half, spec.md §6 "Persisted state":
// "Per base table: an on-disk log of committed operations plus a
// checkpoint containing the last applied ReplicationOffset. Offsets must
// be written atomically with the operations batch." Grounded on
// johnjansen-torua/internal/storage's Store interface / MemoryStore,
// extended with the replication-offset checkpoint the CDC replicator
// requires and a TableOperation log instead of a bare key-value Put.
package worker

import (
	"errors"
	"sync"

	"github.com/flowmesh/dataflow/internal/replication"
	"github.com/flowmesh/dataflow/internal/value"
)

// ErrRowNotFound mirrors storage.ErrKeyNotFound from the teacher's store
// package, scoped to base-table primary-key lookups.
var ErrRowNotFound = errors.New("worker: row not found")

// OperationKind tags a TableOperation the way spec.md §4.6 describes
// ("TableOperation::Insert batches" for the snapshot phase, generalized
// to cover streamed updates/deletes too).
type OperationKind byte

const (
	OpInsert OperationKind = iota
	OpDelete
	OpUpdate
)

// TableOperation is one mutation against a base table.
type TableOperation struct {
	Kind OperationKind
	Row  value.Row // OpInsert, OpUpdate (new values)
	Old  value.Row // OpDelete, OpUpdate (key to match)
}

// BaseTable is the durable store backing one Base node (spec.md glossary:
// "Base: a graph node that materializes an upstream table; only node type
// that accepts writes from the replicator").
type BaseTable struct {
	mu          sync.RWMutex
	name        string
	keyCols     []int
	rows        map[string]value.Row
	log         []TableOperation // stand-in for the on-disk operation log
	offset      replication.Offset
	lastTxID    string
}

func NewBaseTable(name string, keyCols []int) *BaseTable {
	return &BaseTable{name: name, keyCols: keyCols, rows: make(map[string]value.Row)}
}

func rowKeyString(k value.Row) string {
	s := ""
	for _, v := range k {
		s += "\x00" + v.String()
	}
	return s
}

// PerformAll applies ops in order and durably records offset as the
// checkpoint for the batch, in one logical commit (spec.md §6:
// "Offsets must be written atomically with the operations batch (same
// durable commit) to preserve idempotence").
func (t *BaseTable) PerformAll(ops []TableOperation, offset replication.Offset) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, op := range ops {
		switch op.Kind {
		case OpInsert:
			t.rows[rowKeyString(op.Row.Key(t.keyCols))] = op.Row.Clone()
		case OpDelete:
			delete(t.rows, rowKeyString(op.Old.Key(t.keyCols)))
		case OpUpdate:
			delete(t.rows, rowKeyString(op.Old.Key(t.keyCols)))
			t.rows[rowKeyString(op.Row.Key(t.keyCols))] = op.Row.Clone()
		}
		t.log = append(t.log, op)
	}
	t.offset = offset
	return nil
}

// Offset returns the last durably-committed replication offset for this
// table, the value spec.md §8 invariant 3 requires survives crash
// recovery unchanged.
func (t *BaseTable) Offset() replication.Offset {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.offset
}

// SetTimestamp records the upstream transaction id the most recent
// committed batch belonged to (spec.md §4.6: "if txid is present, also
// submit a Timestamp{node, txid} update"), a separate, best-effort
// watermark alongside the offset checkpoint rather than part of the same
// atomic commit — mirrors noria_adapter.rs's update_timestamp call, made
// only after perform_all has already durably applied the batch.
func (t *BaseTable) SetTimestamp(txid string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastTxID = txid
}

// Timestamp returns the last transaction id recorded via SetTimestamp.
func (t *BaseTable) Timestamp() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastTxID
}

// Get looks up a row by its key-column values.
func (t *BaseTable) Get(key value.Row) (value.Row, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.rows[rowKeyString(key)]
	if !ok {
		return nil, ErrRowNotFound
	}
	return r.Clone(), nil
}

// Scan returns every row, used by Internal-node operators reading their
// Base parent and by the snapshot phase's verification queries.
func (t *BaseTable) Scan() []value.Row {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]value.Row, 0, len(t.rows))
	for _, r := range t.rows {
		out = append(out, r.Clone())
	}
	return out
}

func (t *BaseTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}
