package materialize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowmesh/dataflow/internal/graph"
)

func TestBuildMaterializesBaseFull(t *testing.T) {
	g := graph.New()
	baseNode, err := g.AddBase("t", []string{"id", "v"}, graph.NotSharded())
	require.NoError(t, err)
	base := baseNode.Index
	readerNode, err := g.AddReader("t_reader", base, []int{0})
	require.NoError(t, err)
	reader := readerNode.Index

	plan, err := Build(g, []graph.Index{base, reader})
	require.NoError(t, err)
	require.Equal(t, Full, plan.Kind[base])
	require.Equal(t, Partial, plan.Kind[reader])
	require.Equal(t, []graph.Index{base}, plan.UpqueryPath[reader])
}

func TestBuildBogokeyReaderIsFull(t *testing.T) {
	g := graph.New()
	baseNode, err := g.AddBase("t", []string{"id", "v"}, graph.NotSharded())
	require.NoError(t, err)
	base := baseNode.Index
	readerNode, err := g.AddReader("t_reader", base, nil)
	require.NoError(t, err)
	reader := readerNode.Index

	plan, err := Build(g, []graph.Index{base, reader})
	require.NoError(t, err)
	require.Equal(t, Full, plan.Kind[reader])
}
