package replication

import (
	"context"
	"time"

	"github.com/flowmesh/dataflow/internal/ferr"
	"go.uber.org/zap"
)

// backoffDuration is the fixed reconnect delay spec.md §4.6 "Error
// policy" specifies: "All other errors cause a 30-second backoff and full
// reconnect".
const backoffDuration = 30 * time.Second

// Source is the upstream-specific half of the Replicator: snapshot the
// database, then stream decoded Actions until ctx is cancelled or the
// source decides it must terminate (e.g. an invariant violation).
// mysql.go and postgres.go each provide one implementation.
type Source interface {
	// Snapshot acquires a consistent snapshot, records the position it
	// was taken at, and calls emit once per batch of rows per table
	// (spec.md §4.6 step 2).
	Snapshot(ctx context.Context, tables []string, emit func(table string, ops []TableOperation) error) (snapshotPos Offset, err error)

	// StreamFrom starts replaying the upstream log at from (inclusive of
	// anything after it) and calls emit for each decoded Action until ctx
	// is done or an unrecoverable error occurs (spec.md §4.6 steps 3-4).
	StreamFrom(ctx context.Context, from Offset, emit func(Action) error) error

	Close() error
}

// LeaderFacade is the only surface of the Leader the Replicator is
// allowed to call (spec.md §5: "communicating with the Leader only
// through the Leader's RPC surface (specifically
// extend_recipe_with_offset, table(name).perform_all,
// set_replication_offset)").
type LeaderFacade interface {
	ExtendRecipeWithOffset(ctx context.Context, ddl string, pos Offset, nonBreaking bool) error
	PerformTableOps(ctx context.Context, table string, ops []TableOperation, pos Offset) error
	UpdateTimestamp(ctx context.Context, table string, txid string) error
	SetReplicationOffset(ctx context.Context, pos Offset) error
	SchemaOffset(ctx context.Context) (Offset, error)
	TableOffsets(ctx context.Context) (map[string]Offset, error)
	KnownTables(ctx context.Context) ([]string, error)
}

// Replicator is the long-running task of spec.md §4.6, owned by the
// Leader process and run parallel to the Leader's event loop (spec.md §5
// layer 3).
type Replicator struct {
	leader LeaderFacade
	src    Source
	log    *zap.Logger

	// ready is closed once the snapshot-plus-catch-up phase completes
	// (spec.md §4.6 "Ready signal").
	ready chan struct{}

	warnedMissing map[string]bool
}

func New(leader LeaderFacade, src Source, log *zap.Logger) *Replicator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Replicator{
		leader:        leader,
		src:           src,
		log:           log,
		ready:         make(chan struct{}),
		warnedMissing: make(map[string]bool),
	}
}

// Ready returns a channel closed once the Replicator has completed
// snapshot+catch-up and entered steady-state streaming, so the Leader can
// mark itself ready to serve writes (spec.md §4.6 "Ready signal").
func (r *Replicator) Ready() <-chan struct{} { return r.ready }

// Run is the infinite supervisor loop spec.md §4.6 "Error policy"
// describes: run one lifecycle pass; on a RecipeInvariantViolated error,
// stop entirely; on anything else, back off 30s and retry.
func (r *Replicator) Run(ctx context.Context) {
	for {
		err := r.runOnce(ctx)
		if err == nil {
			return // ctx cancelled cleanly (Leader demotion, see Stop)
		}
		if ferr.Is(err, ferr.KindRecipeInvariant) {
			r.log.Error("replicator terminating on invariant violation", zap.Error(err))
			return
		}
		r.log.Warn("replicator error, backing off", zap.Error(err), zap.Duration("backoff", backoffDuration))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoffDuration):
		}
	}
}

func (r *Replicator) runOnce(ctx context.Context) error {
	schemaOffset, err := r.leader.SchemaOffset(ctx)
	if err != nil {
		return err
	}
	tableOffsets, err := r.leader.TableOffsets(ctx)
	if err != nil {
		return err
	}

	tables, err := r.leader.KnownTables(ctx)
	if err != nil {
		return err
	}

	maxKnown := schemaOffset
	anyMissing := len(tableOffsets) == 0
	for _, t := range tables {
		off, ok := tableOffsets[t]
		if !ok || off.IsZero() {
			anyMissing = true
			continue
		}
		maxKnown = Max(maxKnown, off)
	}

	snapshotPos := maxKnown
	if anyMissing {
		pos, err := r.src.Snapshot(ctx, tables, func(table string, ops []TableOperation) error {
			return r.leader.PerformTableOps(ctx, table, ops, snapshotPos)
		})
		if err != nil {
			return err
		}
		snapshotPos = pos
		if err := r.leader.SetReplicationOffset(ctx, snapshotPos); err != nil {
			return err
		}
	}

	// Catch-up: start at the minimum of every table offset and the
	// snapshot position (spec.md §4.6 step 3).
	from := snapshotPos
	for _, off := range tableOffsets {
		from = Min(from, off)
	}

	if !r.readyClosed() {
		close(r.ready)
	}

	return r.src.StreamFrom(ctx, from, func(a Action) error {
		return r.applyAction(ctx, a, tableOffsets)
	})
}

func (r *Replicator) readyClosed() bool {
	select {
	case <-r.ready:
		return true
	default:
		return false
	}
}

// applyAction dispatches one decoded Action to the Leader per spec.md
// §4.6 "Action types", tracking the per-table offsets we've observed this
// run so a duplicate/lagging event is skipped rather than double-applied
// (idempotent replay, spec.md §8 invariant 3).
func (r *Replicator) applyAction(ctx context.Context, a Action, tableOffsets map[string]Offset) error {
	switch a.Kind {
	case ActionSchemaChange:
		if err := r.leader.ExtendRecipeWithOffset(ctx, a.DDL, a.Offset, false); err != nil {
			return err
		}
		return nil

	case ActionTable:
		known, ok := tableOffsets[a.Table]
		if ok && !known.IsZero() && a.Offset.Compare(known) <= 0 {
			return nil // already applied, per §4.6 "Skip silently if pos ≤ table_offset"
		}
		if err := r.leader.PerformTableOps(ctx, a.Table, a.Ops, a.Offset); err != nil {
			if ferr.Is(err, ferr.KindTableNotFound) {
				if !r.warnedMissing[a.Table] {
					r.warnedMissing[a.Table] = true
					r.log.Warn("discarding event for unknown table", zap.String("table", a.Table))
				}
				// Still advance our local view so we don't loop forever
				// on an event we can never apply (spec.md §4.6
				// "Missing-table handling").
				tableOffsets[a.Table] = a.Offset
				return nil
			}
			return err
		}
		tableOffsets[a.Table] = a.Offset
		if a.TxID != "" {
			// Best-effort, non-atomic follow-up (spec.md §4.6: "if txid
			// is present, also submit a Timestamp{node, txid} update");
			// the original itself makes this call separately from
			// perform_all, so a failure here doesn't roll back the
			// table ops that already landed.
			if err := r.leader.UpdateTimestamp(ctx, a.Table, a.TxID); err != nil {
				r.log.Warn("timestamp update failed", zap.String("table", a.Table), zap.Error(err))
			}
		}
		return nil

	case ActionLogPosition:
		for t := range tableOffsets {
			tableOffsets[t] = Max(tableOffsets[t], a.Offset)
		}
		return r.leader.SetReplicationOffset(ctx, a.Offset)

	default:
		return nil
	}
}

// Close releases the upstream Source's connections.
func (r *Replicator) Close() error { return r.src.Close() }
