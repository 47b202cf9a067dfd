// Package recipe implements the Recipe of spec.md §4.3: a versioned,
// named set of installed SQL statements (tables and cached queries) with
// a stable alias namespace, supporting extend/replace/remove_query/revert
// and, via Activate, lowering newly added statements into dataflow graph
// nodes through a Migration.
//
// Grounded on noria/server/src/controller/inner.rs's apply_recipe /
// extend_recipe / install_recipe / remove_query flow (original_source)
// for the revert-on-failure and prior-snapshot semantics; expressed here
// as an immutable value (each operation returns a new *Recipe) rather
// than Rust's mem::replace dance, since Go has no affine types to enforce
// the "old recipe consumed" discipline the original leans on.
package recipe

import (
	"github.com/flowmesh/dataflow/internal/ferr"
	"github.com/flowmesh/dataflow/internal/graph"
)

// Recipe is `{version, statements[], aliases: name->node_index, prior}`
// per spec.md §4.3.
type Recipe struct {
	version    uint64
	statements []Statement
	aliases    map[string]graph.Index
	prior      *Recipe
}

// Blank returns the empty recipe a fresh Leader (or a failed migration's
// rollback target) starts from.
func Blank() *Recipe {
	return &Recipe{aliases: make(map[string]graph.Index)}
}

func (r *Recipe) Version() uint64 { return r.version }

// Statements returns the recipe's installed statements in declared order.
func (r *Recipe) Statements() []Statement {
	return append([]Statement(nil), r.statements...)
}

// Alias resolves name to its global node index, if the recipe has
// installed it.
func (r *Recipe) Alias(name string) (graph.Index, bool) {
	idx, ok := r.aliases[name]
	return idx, ok
}

// Aliases returns every installed name, unordered.
func (r *Recipe) Aliases() map[string]graph.Index {
	out := make(map[string]graph.Index, len(r.aliases))
	for k, v := range r.aliases {
		out[k] = v
	}
	return out
}

func (r *Recipe) clone() *Recipe {
	return &Recipe{
		version:    r.version,
		statements: append([]Statement(nil), r.statements...),
		aliases:    r.Aliases(),
		prior:      r.prior,
	}
}

// Extend parses one or more statements and appends any not already
// present by name (spec.md §4.3: "parses one or more statements and
// appends them. Parse error yields (recipe_unchanged, error)").
func (r *Recipe) Extend(text string) (*Recipe, error) {
	parsed, err := parseStatements(text)
	if err != nil {
		return r, err
	}

	next := r.clone()
	next.prior = r
	next.version = r.version + 1

	existing := make(map[string]bool, len(r.statements))
	for _, s := range r.statements {
		existing[s.Name] = true
	}
	for _, s := range parsed {
		if existing[s.Name] {
			continue
		}
		next.statements = append(next.statements, s)
		existing[s.Name] = true
	}
	return next, nil
}

// Replace installs an entirely new statement list, keeping the receiver
// as prior for Revert (spec.md §4.3: "installs a new statement list;
// keeps prior for revert").
func (r *Recipe) Replace(text string) (*Recipe, error) {
	parsed, err := parseStatements(text)
	if err != nil {
		return r, err
	}
	next := &Recipe{
		version:    r.version + 1,
		statements: parsed,
		aliases:    make(map[string]graph.Index),
		prior:      r,
	}
	return next, nil
}

// RemoveQuery marks name for removal; the statement and its alias are
// dropped from the next recipe, and Activate against that recipe reports
// the old alias's node as a removed leaf for the caller to tear down
// (spec.md §4.3: "marks the alias for removal").
func (r *Recipe) RemoveQuery(name string) (*Recipe, error) {
	next := r.clone()
	next.prior = r
	next.version = r.version + 1

	filtered := next.statements[:0]
	found := false
	for _, s := range next.statements {
		if s.Name == name {
			found = true
			continue
		}
		filtered = append(filtered, s)
	}
	next.statements = filtered
	if !found {
		return r, ferr.Newf(ferr.KindViewNotFound, "no such query %q", name)
	}
	delete(next.aliases, name)
	return next, nil
}

// Revert restores the prior recipe (spec.md §4.3; algebraic law
// `recipe.extend(s).revert() = recipe`).
func (r *Recipe) Revert() (*Recipe, error) {
	if r.prior == nil {
		return r, ferr.New(ferr.KindUnsupported, "recipe has no prior snapshot to revert to")
	}
	return r.prior, nil
}

// MakeRecovery builds a recipe that first drops affectedQueries, paired
// with a clone of the original recipe for re-installation once the
// underlying failure (e.g. a dead worker) is resolved (spec.md §4.3;
// used by Leader.HandleFailedWorkers, grounded on
// noria/server/src/controller/inner.rs's make_recovery / two-phase
// recovery-then-reinstall in handle_failed_workers).
func (r *Recipe) MakeRecovery(affectedQueries []string) (recovery *Recipe, original *Recipe) {
	recovery = r.clone()
	recovery.prior = r
	recovery.version = r.version + 1

	affected := make(map[string]bool, len(affectedQueries))
	for _, q := range affectedQueries {
		affected[q] = true
	}
	filtered := recovery.statements[:0]
	for _, s := range recovery.statements {
		if affected[s.Name] {
			delete(recovery.aliases, s.Name)
			continue
		}
		filtered = append(filtered, s)
	}
	recovery.statements = filtered

	original = r.clone()
	original.prior = nil
	return recovery, original
}
