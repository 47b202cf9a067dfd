package leader

import (
	"context"
	"fmt"

	"github.com/flowmesh/dataflow/internal/ferr"
	"github.com/flowmesh/dataflow/internal/graph"
	"github.com/flowmesh/dataflow/internal/migration"
	"github.com/flowmesh/dataflow/internal/recipe"
	"github.com/flowmesh/dataflow/internal/replication"
	"github.com/flowmesh/dataflow/internal/value"
	"github.com/flowmesh/dataflow/internal/worker"
)

// This file implements replication.LeaderFacade, the only surface of the
// Leader spec.md §5 permits the Replicator to call.

// ExtendRecipeWithOffset applies a SchemaChange action (spec.md §4.6:
// "SchemaChange{ddl} -> Leader extend_recipe_with_offset(ddl, pos,
// non_breaking=false); on success set schema_offset = pos"). Unlike the
// client-facing extend_recipe, the offset here is set outright rather
// than max-merged: the replicator is the schema offset's sole writer in
// steady state, so its own position is always the correct one to adopt.
// nonBreaking is accepted for interface parity with the original design's
// cache-invalidation hint (spec.md: "drop cached table mutators") but this
// implementation has no mutator cache to invalidate, since
// replication_facade.go calls straight through to the worker on every
// PerformTableOps.
func (l *Leader) ExtendRecipeWithOffset(ctx context.Context, ddl string, pos replication.Offset, nonBreaking bool) error {
	offset := pos
	_, err := l.applyRecipeChange(ctx, func(cur *recipe.Recipe) (*recipe.Recipe, error) {
		return cur.Extend(ddl)
	}, &offset, offsetOverwriteSchema)
	return err
}

// PerformTableOps applies a batch of replication ops to table's Base node
// (spec.md §4.6 "TableAction{table, ops, txid?} -> perform_all(ops) on the
// base's table mutator"), routing to whichever worker currently hosts it
// and advancing table's offset atomically with the batch.
func (l *Leader) PerformTableOps(ctx context.Context, table string, ops []replication.TableOperation, pos replication.Offset) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx, ok := l.rec.Alias(table)
	if !ok {
		return ferr.Newf(ferr.KindTableNotFound, "replication: unknown table %q", table)
	}
	n, ok := l.g.Node(idx)
	if !ok || n.Variant != graph.VariantBase {
		return ferr.Newf(ferr.KindTableNotFound, "replication: %q is not a base table", table)
	}

	wd, ok := l.anyOwnerLocked(n.Domain)
	if !ok {
		return ferr.Newf(ferr.KindNoSuchDomain, "replication: no worker hosts domain %d", n.Domain)
	}

	workerOps := make([]worker.TableOperation, len(ops))
	for i, op := range ops {
		workerOps[i] = worker.TableOperation{
			Kind: replicationKindToWorkerKind(op.Kind),
			Row:  anyRowToValueRow(op.Row),
			Old:  anyRowToValueRow(op.Old),
		}
	}

	if err := l.rpc.ApplyTableOps(ctx, wd, worker.ApplyTableOpsRequest{
		Domain: n.Domain,
		Node:   idx,
		Ops:    workerOps,
		Offset: pos,
	}); err != nil {
		return err
	}

	l.tableOffsets[table] = pos
	l.persistLocked(ctx)
	return nil
}

// UpdateTimestamp forwards a transaction-id watermark to whichever worker
// hosts table's Base node (spec.md §4.6: "if txid is present, also submit
// a Timestamp{node, txid} update"), the separate follow-up call
// noria_adapter.rs's update_timestamp makes after perform_all.
func (l *Leader) UpdateTimestamp(ctx context.Context, table string, txid string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx, ok := l.rec.Alias(table)
	if !ok {
		return ferr.Newf(ferr.KindTableNotFound, "replication: unknown table %q", table)
	}
	n, ok := l.g.Node(idx)
	if !ok || n.Variant != graph.VariantBase {
		return ferr.Newf(ferr.KindTableNotFound, "replication: %q is not a base table", table)
	}

	wd, ok := l.anyOwnerLocked(n.Domain)
	if !ok {
		return ferr.Newf(ferr.KindNoSuchDomain, "replication: no worker hosts domain %d", n.Domain)
	}

	return l.rpc.UpdateTimestamp(ctx, wd, worker.UpdateTimestampRequest{Domain: n.Domain, Node: idx, TxID: txid})
}

func replicationKindToWorkerKind(k replication.TableOpKind) worker.OperationKind {
	switch k {
	case replication.TableOpInsert:
		return worker.OpInsert
	case replication.TableOpDelete:
		return worker.OpDelete
	default:
		return worker.OpUpdate
	}
}

// anyRowToValueRow converts the replicator's deliberately loose []any row
// shape into value.Row, mirroring internal/replication/mysql.go's
// unexported anyToValue helper — the Leader is the seam where replication
// values cross into the typed value model.
func anyRowToValueRow(row []replication.Value) value.Row {
	if row == nil {
		return nil
	}
	out := make(value.Row, len(row))
	for i, v := range row {
		out[i] = anyToValue(v)
	}
	return out
}

func anyToValue(v any) value.Value {
	switch t := v.(type) {
	case nil:
		return value.Null
	case value.Value:
		return t
	case int64:
		return value.NewInt64(t)
	case int:
		return value.NewInt64(int64(t))
	case uint64:
		return value.NewUint64(t)
	case []byte:
		return value.NewText(string(t))
	case string:
		return value.NewText(t)
	default:
		return value.NewText(fmt.Sprintf("%v", t))
	}
}

// SetReplicationOffset atomically updates the in-memory and
// authority-stored schema offset (spec.md §4.5 set_replication_offset).
func (l *Leader) SetReplicationOffset(ctx context.Context, pos replication.Offset) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.schemaOffset = pos
	l.persistLocked(ctx)
	return nil
}

// SchemaOffset returns the Leader's current schema offset (spec.md §4.6
// step 1).
func (l *Leader) SchemaOffset(ctx context.Context) (replication.Offset, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.schemaOffset, nil
}

// TableOffsets returns every base table's stored offset (spec.md §4.6
// step 1).
func (l *Leader) TableOffsets(ctx context.Context) (map[string]replication.Offset, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]replication.Offset, len(l.tableOffsets))
	for k, v := range l.tableOffsets {
		out[k] = v
	}
	return out, nil
}

// KnownTables lists every installed base table by name, the set the
// Replicator snapshots on first run (spec.md §4.6 step 2).
func (l *Leader) KnownTables(ctx context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []string
	for _, n := range l.g.Nodes() {
		if n.Variant == graph.VariantBase {
			out = append(out, n.Name)
		}
	}
	return out, nil
}

func (l *Leader) anyOwnerLocked(d graph.DomainIndex) (migration.WorkerDescriptor, bool) {
	for _, wd := range l.domainOwners[d] {
		return wd, true
	}
	return migration.WorkerDescriptor{}, false
}

var _ replication.LeaderFacade = (*Leader)(nil)
