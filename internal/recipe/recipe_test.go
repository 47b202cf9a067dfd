package recipe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowmesh/dataflow/internal/channel"
	"github.com/flowmesh/dataflow/internal/graph"
	"github.com/flowmesh/dataflow/internal/migration"
)

func resolveFromGraph(g *graph.Graph) ResolveTable {
	return func(name string) (graph.Index, []string, bool) {
		for _, n := range g.Nodes() {
			if n.Variant == graph.VariantBase && n.Name == name {
				return n.Index, append([]string(nil), n.Columns...), true
			}
		}
		return 0, nil, false
	}
}

func TestExtendActivateInstallsTableAndCache(t *testing.T) {
	r := Blank()
	r, err := r.Extend("CREATE TABLE t(id INT, v INT)")
	require.NoError(t, err)
	r, err = r.Extend("CREATE CACHE q FROM SELECT v FROM t WHERE id = ?")
	require.NoError(t, err)
	require.Equal(t, uint64(2), r.Version())

	g := graph.New()
	m := migration.New(g)
	result, err := Activate(r, m, resolveFromGraph(g))
	require.NoError(t, err)
	require.Len(t, result.NewNodes, 2) // base + reader (no local predicates to filter on)
	require.Empty(t, result.RemovedLeaves)

	readerIdx, ok := r.Alias("q")
	require.True(t, ok)
	readerNode := g.MustNode(readerIdx)
	require.Equal(t, graph.VariantReader, readerNode.Variant)
	require.Equal(t, []int{0}, readerNode.ReaderKey)
}

func TestExtendIsIdempotentByName(t *testing.T) {
	r := Blank()
	r, err := r.Extend("CREATE TABLE t(id INT, v INT)")
	require.NoError(t, err)
	r2, err := r.Extend("CREATE TABLE t(id INT, v INT)")
	require.NoError(t, err)
	require.Len(t, r2.Statements(), 1)
}

func TestRemoveQueryDropsLeaf(t *testing.T) {
	r := Blank()
	r, err := r.Extend("CREATE TABLE t(id INT, v INT); CREATE CACHE q FROM SELECT v FROM t WHERE id = ?")
	require.NoError(t, err)

	g := graph.New()
	m := migration.New(g)
	_, err = Activate(r, m, resolveFromGraph(g))
	require.NoError(t, err)

	r2, err := r.RemoveQuery("q")
	require.NoError(t, err)

	m2 := migration.New(g)
	result, err := Activate(r2, m2, resolveFromGraph(g))
	require.NoError(t, err)
	require.Empty(t, result.NewNodes)
	require.Len(t, result.RemovedLeaves, 1)

	_, stillAliased := r2.Alias("q")
	require.False(t, stillAliased)
}

func TestRevertRestoresPriorRecipe(t *testing.T) {
	r := Blank()
	r1, err := r.Extend("CREATE TABLE t(id INT)")
	require.NoError(t, err)
	r2, err := r1.Extend("CREATE TABLE u(id INT)")
	require.NoError(t, err)

	back, err := r2.Revert()
	require.NoError(t, err)
	require.Equal(t, r1.Version(), back.Version())
	require.Len(t, back.Statements(), 1)
}

func TestMakeRecoveryDropsAffectedQueries(t *testing.T) {
	r := Blank()
	r, err := r.Extend("CREATE TABLE t(id INT, v INT); CREATE CACHE q FROM SELECT v FROM t WHERE id = ?")
	require.NoError(t, err)

	recovery, original := r.MakeRecovery([]string{"q"})
	require.Len(t, recovery.Statements(), 1)
	require.Len(t, original.Statements(), 2)
	_, ok := recovery.Alias("q")
	require.False(t, ok)
}

func TestActivateJoinAcrossTwoBases(t *testing.T) {
	r := Blank()
	r, err := r.Extend("CREATE TABLE a(id INT, aval INT); CREATE TABLE b(id INT, bval INT); " +
		"CREATE CACHE ab FROM SELECT aval FROM a JOIN b ON a.id = b.id WHERE a.id = ?")
	require.NoError(t, err)

	g := graph.New()
	m := migration.New(g)
	result, err := Activate(r, m, resolveFromGraph(g))
	require.NoError(t, err)
	require.NotEmpty(t, result.NewNodes)

	readerIdx, ok := r.Alias("ab")
	require.True(t, ok)
	readerNode := g.MustNode(readerIdx)
	require.Equal(t, graph.VariantReader, readerNode.Variant)
}

func TestActivateCommitsThroughMigration(t *testing.T) {
	r := Blank()
	r, err := r.Extend("CREATE TABLE t(id INT, v INT)")
	require.NoError(t, err)

	g := graph.New()
	m := migration.New(g)
	_, err = Activate(r, m, resolveFromGraph(g))
	require.NoError(t, err)

	deps := migration.Deps{
		Workers:      []migration.WorkerDescriptor{{ID: "w1", URI: "http://w1", Healthy: true}},
		Restrictions: map[migration.RestrictionKey]string{},
		Coordinator:  channel.New(),
		RunDomain: func(ctx context.Context, w migration.WorkerDescriptor, body migration.RunDomainBody) (string, error) {
			return w.URI, nil
		},
	}
	result, err := m.Commit(context.Background(), deps)
	require.NoError(t, err)
	require.NotEmpty(t, result.NewNodes)
}
