package leader

import (
	"context"

	"github.com/flowmesh/dataflow/internal/authority"
	"github.com/flowmesh/dataflow/internal/ferr"
	"github.com/flowmesh/dataflow/internal/graph"
	"github.com/flowmesh/dataflow/internal/migration"
	"github.com/flowmesh/dataflow/internal/recipe"
	"github.com/flowmesh/dataflow/internal/replication"
)

// offsetMode tells applyRecipeChange how to reconcile an incoming offset
// with the Leader's schema/table offsets (spec.md §4.5 "Replication offset
// policy" and §4.6's extend_recipe_with_offset, which has its own,
// stricter rule).
type offsetMode int

const (
	offsetNone offsetMode = iota
	offsetMaxMerge
	offsetOverwriteSchema
	offsetOverwriteAll
)

// ExtendRecipe appends newly declared tables/queries to the active
// recipe and lowers them into the graph (spec.md §4.5 extend_recipe(spec)
// / §6 POST /extend_recipe). The incoming offset, if any, is max-merged
// into the schema offset — extend_recipe never moves the offset
// backwards, since a replayed DDL statement can arrive with a stale
// position.
func (l *Leader) ExtendRecipe(ctx context.Context, text string, offset *replication.Offset) (recipe.ActivationResult, error) {
	return l.applyRecipeChange(ctx, func(cur *recipe.Recipe) (*recipe.Recipe, error) {
		return cur.Extend(text)
	}, offset, offsetMaxMerge)
}

// InstallRecipe replaces the entire statement list (spec.md §4.5
// install_recipe(spec) / §6 POST /install_recipe). Unlike ExtendRecipe,
// the incoming offset overwrites the schema offset outright and every
// per-table offset is cleared: a full install is the replicator's signal
// that it is about to replay from scratch.
func (l *Leader) InstallRecipe(ctx context.Context, text string, offset *replication.Offset) (recipe.ActivationResult, error) {
	return l.applyRecipeChange(ctx, func(cur *recipe.Recipe) (*recipe.Recipe, error) {
		return cur.Replace(text)
	}, offset, offsetOverwriteAll)
}

// RemoveQuery drops a cached query by name (spec.md §4.5 remove_query(name)
// / §6 POST /remove_query), tearing down its Reader and any operator
// nodes that become orphaned as a result.
func (l *Leader) RemoveQuery(ctx context.Context, name string) (recipe.ActivationResult, error) {
	return l.applyRecipeChange(ctx, func(cur *recipe.Recipe) (*recipe.Recipe, error) {
		return cur.RemoveQuery(name)
	}, nil, offsetNone)
}

// RemoveNode tears down a single node directly by index (spec.md §6 POST
// /remove_node), used for adapter-driven cleanup outside the named-query
// recipe flow. It is only valid on a node with no remaining children,
// same as graph.Remove's invariant v.
func (l *Leader) RemoveNode(ctx context.Context, idx graph.Index) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkQuorum(); err != nil {
		return err
	}
	g2 := l.g.Clone()
	if _, ok := g2.Node(idx); !ok {
		return ferr.Newf(ferr.KindInvalidNodeType, "no such node %d", idx)
	}
	if _, err := migration.RemoveLeaves(ctx, g2, []graph.Index{idx}, l.domainWorkersLocked, l.removeNodesLocked); err != nil {
		return err
	}
	l.g = g2
	return nil
}

// Migrate runs an arbitrary graph edit against a *migration.Migration
// (spec.md §4.5 migrate(fn)), for callers building nodes directly rather
// than through recipe text. fn's returned nodes are committed and
// gossiped exactly as a recipe activation's would be.
func (l *Leader) Migrate(ctx context.Context, fn func(*migration.Migration) error) (recipe.ActivationResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkQuorum(); err != nil {
		return recipe.ActivationResult{}, err
	}

	g2 := l.g.Clone()
	m := migration.New(g2)
	if err := fn(m); err != nil {
		return recipe.ActivationResult{}, err
	}

	if _, err := l.commitMigrationLocked(ctx, m); err != nil {
		return recipe.ActivationResult{}, err
	}
	result := recipe.ActivationResult{NewNodes: m.Added()}
	l.g = g2
	return result, nil
}

// applyRecipeChange is the shared spine behind Extend/Install/RemoveQuery:
// derive the next recipe value, lower it against a cloned graph, commit
// the migration, then only swap in the new graph/recipe/offsets once
// every step has succeeded (spec.md §4.3: a failed activation or commit
// leaves the recipe, and therefore the graph, unchanged).
func (l *Leader) applyRecipeChange(ctx context.Context, derive func(*recipe.Recipe) (*recipe.Recipe, error), offset *replication.Offset, mode offsetMode) (recipe.ActivationResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkQuorum(); err != nil {
		return recipe.ActivationResult{}, err
	}

	next, err := derive(l.rec)
	if err != nil {
		return recipe.ActivationResult{}, err
	}

	g2 := l.g.Clone()
	m := migration.New(g2)
	result, err := recipe.Activate(next, m, resolveTable(g2))
	if err != nil {
		return recipe.ActivationResult{}, err
	}

	commitResult, err := l.commitMigrationLocked(ctx, m)
	if err != nil {
		return recipe.ActivationResult{}, err
	}

	if len(result.RemovedLeaves) > 0 {
		if _, err := migration.RemoveLeaves(ctx, g2, result.RemovedLeaves, l.domainWorkersLocked, l.removeNodesLocked); err != nil {
			return recipe.ActivationResult{}, err
		}
	}

	l.g = g2
	l.rec = next
	l.nextDomain = commitResult.NextDomain

	switch mode {
	case offsetOverwriteAll:
		l.tableOffsets = make(map[string]replication.Offset)
		if offset != nil {
			l.schemaOffset = *offset
		}
	case offsetOverwriteSchema:
		if offset != nil {
			l.schemaOffset = *offset
		}
	case offsetMaxMerge:
		if offset != nil {
			l.schemaOffset = replication.Max(l.schemaOffset, *offset)
		}
	}

	l.persistLocked(ctx)
	return result, nil
}

// commitMigrationLocked runs commit-protocol steps 1-5 against m and
// records, for each domain booted, which worker now owns it (so a later
// RemoveLeaves call can reach every affected worker).
func (l *Leader) commitMigrationLocked(ctx context.Context, m *migration.Migration) (*migration.Result, error) {
	workers := make([]migration.WorkerDescriptor, 0, len(l.workers))
	for _, w := range l.workers {
		workers = append(workers, w)
	}

	deps := migration.Deps{
		Workers:      workers,
		Restrictions: l.restrictions,
		Coordinator:  l.coordinator,
		NextDomain:   l.nextDomain,
		RunDomain: func(ctx context.Context, wd migration.WorkerDescriptor, body migration.RunDomainBody) (string, error) {
			addr, err := l.rpc.RunDomain(ctx, wd, body)
			if err != nil {
				return "", err
			}
			l.recordDomainOwner(body.Domain, wd)
			return addr, nil
		},
		Gossip: func(ctx context.Context, descriptors []migration.DomainDescriptor) error {
			for _, w := range l.workers {
				if err := l.rpc.Gossip(ctx, w, descriptors); err != nil {
					return err
				}
			}
			return nil
		},
		RemoveNodes: func(ctx context.Context, wd migration.WorkerDescriptor, domain graph.DomainIndex, nodes []graph.Index) error {
			return l.rpc.RemoveNodes(ctx, wd, domain, nodes)
		},
	}

	result, err := m.Commit(ctx, deps)
	if err != nil {
		return nil, ferr.Wrap(ferr.KindDomainCreationFailed, "committing migration", err)
	}
	return result, nil
}

func (l *Leader) recordDomainOwner(d graph.DomainIndex, wd migration.WorkerDescriptor) {
	owners, ok := l.domainOwners[d]
	if !ok {
		owners = make(map[string]migration.WorkerDescriptor)
		l.domainOwners[d] = owners
	}
	owners[wd.ID] = wd
}

func (l *Leader) domainWorkersLocked(d graph.DomainIndex) []migration.WorkerDescriptor {
	owners := l.domainOwners[d]
	out := make([]migration.WorkerDescriptor, 0, len(owners))
	for _, w := range owners {
		out = append(out, w)
	}
	return out
}

func (l *Leader) removeNodesLocked(ctx context.Context, wd migration.WorkerDescriptor, domain graph.DomainIndex, nodes []graph.Index) error {
	return l.rpc.RemoveNodes(ctx, wd, domain, nodes)
}

// persistLocked writes the current recipe/offset state to the Authority
// (spec.md §4.5: every recipe transition persists ControllerState). Per
// spec.md §7(d): if the in-memory apply already succeeded and this CAS
// fails, the Leader panics to force re-election rather than risk serving
// from state the durable record no longer agrees with.
func (l *Leader) persistLocked(ctx context.Context) {
	if l.authority == nil {
		return
	}
	statements := make([]string, 0)
	for _, s := range l.rec.Statements() {
		statements = append(statements, s.Text)
	}
	tableOffsets := make(map[string]replication.Offset, len(l.tableOffsets))
	for k, v := range l.tableOffsets {
		tableOffsets[k] = v
	}

	_, err := l.authority.Update(ctx, func(cs authority.ControllerState) (authority.ControllerState, error) {
		cs.Recipes = statements
		cs.RecipeVersion = l.rec.Version()
		cs.SchemaOffset = l.schemaOffset
		cs.TableOffsets = tableOffsets
		cs.NodeRestrictions = restrictionsToNodeMap(l.restrictions)
		return cs, nil
	})
	if err != nil {
		panic("leader: authority CAS failed after in-memory apply succeeded: " + err.Error())
	}
}

// restrictionsToNodeMap narrows migration's (table,shard)->volume table
// down to ControllerState.NodeRestrictions' table->volume shape; every
// shard of a base table is placed under the same volume restriction in
// practice (placement.go records it per-shard only because PlaceDomains
// operates one shard at a time), so collapsing to table is lossless here.
func restrictionsToNodeMap(r map[migration.RestrictionKey]string) map[string]string {
	out := make(map[string]string, len(r))
	for k, v := range r {
		out[k.Table] = v
	}
	return out
}
