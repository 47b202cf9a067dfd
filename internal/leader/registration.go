package leader

import (
	"context"
	"strings"

	"github.com/flowmesh/dataflow/internal/authority"
	"github.com/flowmesh/dataflow/internal/ferr"
	"github.com/flowmesh/dataflow/internal/graph"
	"github.com/flowmesh/dataflow/internal/migration"
	"github.com/flowmesh/dataflow/internal/recipe"
	"github.com/flowmesh/dataflow/internal/replication"
	"github.com/flowmesh/dataflow/internal/worker"
)

// Bootstrap seeds a freshly constructed Leader from a durable
// ControllerState read at startup (spec.md §4.5: "process-local state is
// always rebuildable from an Authority read"). The persisted recipe is
// queued as a pending recovery rather than activated immediately —
// activation boots domains on live workers, and none have registered with
// this process yet — so HandleRegisterFromAuthority drains it the moment
// quorum is reached, the same path a mid-run worker failure uses.
func (l *Leader) Bootstrap(cs authority.ControllerState) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.schemaOffset = cs.SchemaOffset
	l.tableOffsets = make(map[string]replication.Offset, len(cs.TableOffsets))
	for k, v := range cs.TableOffsets {
		l.tableOffsets[k] = v
	}
	for table, volume := range cs.NodeRestrictions {
		l.restrictions[migration.RestrictionKey{Table: table}] = volume
	}

	if len(cs.Recipes) == 0 {
		return
	}
	original, err := recipe.Blank().Extend(strings.Join(cs.Recipes, ";\n"))
	if err != nil {
		l.log.Warn("bootstrap: failed to parse persisted recipe text", zapErr(err))
		return
	}
	names := make([]string, 0, len(original.Aliases()))
	for name := range original.Aliases() {
		names = append(names, name)
	}
	l.pendingRecovery = names
	l.recoveryOriginal = original
}

// HandleRegisterFromAuthority admits a worker the Authority reports as
// live (spec.md §4.5 handle_register_from_authority(desc)): register it,
// gossip every domain already booted to it, and if quorum is now met,
// drain pending_recovery by replaying the queries it blocked.
//
// rpc errors while gossiping are downgraded to a log warning rather than
// failing registration (spec.md: "rpc error downgraded to warning") —
// a worker that cannot yet be reached for gossip is still worth admitting
// to the registry; the next migration's RunDomain call will surface any
// real connectivity problem.
func (l *Leader) HandleRegisterFromAuthority(ctx context.Context, desc migration.WorkerDescriptor) error {
	l.mu.Lock()
	l.workers[desc.ID] = desc

	var descriptors []migration.DomainDescriptor
	for d, owners := range l.domainOwners {
		if _, hosted := owners[desc.ID]; hosted {
			continue
		}
		shards := l.coordinator.Shards(d, shardCountForDomain(l.g, d))
		descriptors = append(descriptors, migration.DomainDescriptor{Domain: d, NShards: len(shards), Shards: shards})
	}
	pending := append([]string(nil), l.pendingRecovery...)
	quorumNowMet := len(l.workers) >= l.quorumTarget
	l.mu.Unlock()

	if len(descriptors) > 0 {
		if err := l.rpc.Gossip(ctx, desc, descriptors); err != nil {
			l.log.Warn("gossip to newly registered worker failed", zapErr(err))
		}
	}

	if !quorumNowMet || len(pending) == 0 {
		return nil
	}
	return l.drainPendingRecovery(ctx)
}

// drainPendingRecovery re-extends every query make_recovery dropped, now
// that quorum has been restored (spec.md §4.3 MakeRecovery doc: "a clone
// of the original recipe for re-installation once the underlying failure
// is resolved").
func (l *Leader) drainPendingRecovery(ctx context.Context) error {
	l.mu.Lock()
	queries := append([]string(nil), l.pendingRecovery...)
	original := l.recoveryOriginal
	l.pendingRecovery = nil
	l.recoveryOriginal = nil
	l.mu.Unlock()

	if original == nil {
		return nil
	}
	text := recipeText(original)
	_, err := l.ExtendRecipe(ctx, text, nil)
	if err != nil {
		l.mu.Lock()
		l.pendingRecovery = queries
		l.recoveryOriginal = original
		l.mu.Unlock()
	}
	return err
}

func recipeText(r *recipe.Recipe) string {
	var out string
	for _, s := range r.Statements() {
		out += s.Text + ";\n"
	}
	return out
}

// HandleFailedWorkers removes dead workers from the registry and puts
// every query whose graph touched them into recovery (spec.md §4.5
// handle_failed_workers(ids)): recipe.make_recovery drops the affected
// queries immediately (so the quorum gate closes), then the original
// recipe is queued for replay once handle_register_from_authority sees
// quorum restored.
func (l *Leader) HandleFailedWorkers(ctx context.Context, ids []string) error {
	l.mu.Lock()

	affected := make(map[string]bool, len(ids))
	for _, id := range ids {
		affected[id] = true
		delete(l.workers, id)
	}

	var affectedQueries []string
	for d, owners := range l.domainOwners {
		hit := false
		for id := range owners {
			if affected[id] {
				hit = true
				delete(owners, id)
			}
		}
		if !hit {
			continue
		}
		for name, idx := range l.rec.Aliases() {
			if n, ok := l.g.Node(idx); ok && n.Domain == d {
				affectedQueries = append(affectedQueries, name)
			}
		}
	}

	if len(affectedQueries) == 0 {
		l.mu.Unlock()
		return nil
	}

	recovery, original := l.rec.MakeRecovery(affectedQueries)
	l.rec = recovery
	l.pendingRecovery = affectedQueries
	l.recoveryOriginal = original
	l.mu.Unlock()

	return nil
}

// ReplicateReaders adds a mirror Reader for each named query (spec.md
// §4.5 replicate_readers(spec)): a second Reader fed by the same leaf
// node, placed independently so it can land on a different worker.
func (l *Leader) ReplicateReaders(ctx context.Context, spec ReaderReplicationSpec) (ReaderReplicationResult, error) {
	result := ReaderReplicationResult{Readers: make(map[string]map[graph.DomainIndex]graph.Index)}

	for _, name := range spec.Queries {
		l.mu.RLock()
		idx, ok := l.rec.Alias(name)
		l.mu.RUnlock()
		if !ok {
			return result, ferr.Newf(ferr.KindViewNotFound, "replicate_readers: no such query %q", name)
		}

		activation, err := l.Migrate(ctx, func(m *migration.Migration) error {
			if spec.WorkerURI != "" {
				m.PinWorker(spec.WorkerURI)
			}
			n, ok := m.Graph().Node(idx)
			if !ok || n.Variant != graph.VariantReader {
				return ferr.Newf(ferr.KindViewNotFound, "replicate_readers: %q is not a reader", name)
			}
			parent := n.Parents[0]
			_, err := m.AddReader(name+"_mirror", parent, append([]int(nil), n.ReaderKey...))
			return err
		})
		if err != nil {
			return result, err
		}

		l.mu.RLock()
		perQuery := make(map[graph.DomainIndex]graph.Index)
		for _, newIdx := range activation.NewNodes {
			if n, ok := l.g.Node(newIdx); ok && n.Variant == graph.VariantReader {
				perQuery[n.Domain] = newIdx
			}
		}
		l.mu.RUnlock()
		result.Readers[name] = perQuery
	}
	return result, nil
}

// GetStatistics aggregates per-domain/per-node stats from every registered
// worker (spec.md §4.5 get_statistics).
func (l *Leader) GetStatistics(ctx context.Context) (map[graph.DomainIndex]worker.DomainStats, error) {
	l.mu.RLock()
	workers := make([]migration.WorkerDescriptor, 0, len(l.workers))
	for _, w := range l.workers {
		workers = append(workers, w)
	}
	l.mu.RUnlock()

	out := make(map[graph.DomainIndex]worker.DomainStats)
	for _, wd := range workers {
		stats, err := l.rpc.GetStatistics(ctx, wd)
		if err != nil {
			l.log.Warn("get_statistics rpc failed", zapErr(err))
			continue
		}
		for d, s := range stats {
			agg := out[d]
			agg.TotalRows += s.TotalRows
			agg.TotalBytes += s.TotalBytes
			out[d] = agg
		}
	}
	return out, nil
}

// FlushPartial evicts every reader cache on every registered worker,
// returning total bytes freed (spec.md §4.5 flush_partial).
func (l *Leader) FlushPartial(ctx context.Context) (int, error) {
	l.mu.RLock()
	workers := make([]migration.WorkerDescriptor, 0, len(l.workers))
	for _, w := range l.workers {
		workers = append(workers, w)
	}
	l.mu.RUnlock()

	total := 0
	for _, wd := range workers {
		freed, err := l.rpc.FlushPartial(ctx, wd)
		if err != nil {
			l.log.Warn("flush_partial rpc failed", zapErr(err))
			continue
		}
		total += freed
	}
	return total, nil
}

func shardCountForDomain(g *graph.Graph, d graph.DomainIndex) int {
	n := 1
	for _, node := range g.Nodes() {
		if node.Domain == d && node.Sharding.ByCol && node.Sharding.N > n {
			n = node.Sharding.N
		}
	}
	return n
}
