package querygraph

import (
	"testing"

	"github.com/stretchr/testify/require"
	"vitess.io/vitess/go/vt/sqlparser"
)

func parseSelect(t *testing.T, sql string) *sqlparser.Select {
	t.Helper()
	stmt, err := sqlparser.Parse(sql)
	require.NoError(t, err)
	sel, ok := stmt.(*sqlparser.Select)
	require.True(t, ok, "expected *sqlparser.Select, got %T", stmt)
	return sel
}

func TestBuildSelectEqualityParameter(t *testing.T) {
	sel := parseSelect(t, "SELECT v FROM t WHERE id = ?")
	qg, err := BuildSelect(sel)
	require.NoError(t, err)
	require.Equal(t, []string{"t"}, qg.Relations)
	require.Len(t, qg.Parameters, 1)
	require.Equal(t, OpEq, qg.Parameters[0].Op)
	require.Equal(t, IndexHash, qg.Key.Index)
	require.False(t, qg.Key.Bogokey)
}

func TestBuildSelectNoParamsIsBogokey(t *testing.T) {
	sel := parseSelect(t, "SELECT v FROM t")
	qg, err := BuildSelect(sel)
	require.NoError(t, err)
	require.True(t, qg.Key.Bogokey)
	require.Equal(t, IndexHash, qg.Key.Index)
}

func TestBuildSelectRangeParameterIsOrdered(t *testing.T) {
	sel := parseSelect(t, "SELECT v FROM t WHERE id > ?")
	qg, err := BuildSelect(sel)
	require.NoError(t, err)
	require.Equal(t, IndexOrdered, qg.Key.Index)
}

func TestBuildSelectMixedRangeDirectionsUnsupported(t *testing.T) {
	sel := parseSelect(t, "SELECT v FROM t WHERE id > ? AND id < ?")
	_, err := BuildSelect(sel)
	require.Error(t, err)
}

func TestBuildSelectExplicitJoinEquality(t *testing.T) {
	sel := parseSelect(t, "SELECT a.v FROM a JOIN b ON a.id = b.a_id")
	qg, err := BuildSelect(sel)
	require.NoError(t, err)
	require.Len(t, qg.Edges, 1)
	require.Equal(t, EdgeJoin, qg.Edges[0].Kind)
}

func TestBuildSelectBetweenNormalizesToRange(t *testing.T) {
	sel := parseSelect(t, "SELECT v FROM t WHERE id BETWEEN ? AND ?")
	qg, err := BuildSelect(sel)
	require.NoError(t, err)
	require.Len(t, qg.Parameters, 2)
}

func TestBuildSelectOrSingleTableStaysLocal(t *testing.T) {
	sel := parseSelect(t, "SELECT v FROM t WHERE v = 1 OR v = 2")
	qg, err := BuildSelect(sel)
	require.NoError(t, err)
	require.NotEmpty(t, qg.GlobalPredicates)
}

func TestBuildSelectOrAcrossJoinUnsupported(t *testing.T) {
	sel := parseSelect(t, "SELECT a.v FROM a, b WHERE a.id = ? OR b.id = ?")
	_, err := BuildSelect(sel)
	require.Error(t, err)
}

func TestHashDeterministic(t *testing.T) {
	sel1 := parseSelect(t, "SELECT v FROM t WHERE id = ?")
	sel2 := parseSelect(t, "SELECT v FROM t WHERE id = ?")
	qg1, err := BuildSelect(sel1)
	require.NoError(t, err)
	qg2, err := BuildSelect(sel2)
	require.NoError(t, err)
	require.Equal(t, qg1.Hash(), qg2.Hash())
}
