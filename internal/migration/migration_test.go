package migration

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowmesh/dataflow/internal/channel"
	"github.com/flowmesh/dataflow/internal/graph"
)

func TestCommitPlacesAndBootsDomains(t *testing.T) {
	g := graph.New()
	m := New(g)

	base, err := m.AddBase("t", []string{"id", "v"}, graph.NotSharded())
	require.NoError(t, err)
	_, err = m.AddReader("t_reader", base, []int{0})
	require.NoError(t, err)

	var booted []RunDomainBody
	deps := Deps{
		Workers:      []WorkerDescriptor{{ID: "w1", URI: "http://w1", Healthy: true}},
		Restrictions: map[RestrictionKey]string{},
		Coordinator:  channel.New(),
		NextDomain:   0,
		RunDomain: func(ctx context.Context, w WorkerDescriptor, body RunDomainBody) (string, error) {
			booted = append(booted, body)
			return w.URI, nil
		},
	}

	result, err := m.Commit(context.Background(), deps)
	require.NoError(t, err)
	require.Len(t, result.NewNodes, 2)
	require.Equal(t, graph.DomainIndex(2), result.NextDomain)
	require.Len(t, booted, 2)

	baseNode := g.MustNode(base)
	require.True(t, baseNode.Placed())
	addr, ok := deps.Coordinator.Lookup(baseNode.Domain, 0)
	require.True(t, ok)
	require.Equal(t, "http://w1", addr)
}

func TestCommitNoAvailableWorkers(t *testing.T) {
	g := graph.New()
	m := New(g)
	_, err := m.AddBase("t", []string{"id"}, graph.NotSharded())
	require.NoError(t, err)

	deps := Deps{
		Restrictions: map[RestrictionKey]string{},
		Coordinator:  channel.New(),
		RunDomain: func(ctx context.Context, w WorkerDescriptor, body RunDomainBody) (string, error) {
			return "", nil
		},
	}
	_, err = m.Commit(context.Background(), deps)
	require.Error(t, err)
}

func TestCommitRemovesAlreadyBootedDomainsOnFailure(t *testing.T) {
	g := graph.New()
	m := New(g)
	base, err := m.AddBase("t", []string{"id", "v"}, graph.NotSharded())
	require.NoError(t, err)
	_, err = m.AddReader("t_reader", base, []int{0})
	require.NoError(t, err)

	var booted []RunDomainBody
	var cleanedUp []graph.DomainIndex
	deps := Deps{
		Workers:      []WorkerDescriptor{{ID: "w1", URI: "http://w1", Healthy: true}},
		Restrictions: map[RestrictionKey]string{},
		Coordinator:  channel.New(),
		RunDomain: func(ctx context.Context, w WorkerDescriptor, body RunDomainBody) (string, error) {
			booted = append(booted, body)
			if len(booted) == 2 {
				return "", errors.New("worker unreachable")
			}
			return w.URI, nil
		},
		RemoveNodes: func(ctx context.Context, w WorkerDescriptor, domain graph.DomainIndex, nodes []graph.Index) error {
			cleanedUp = append(cleanedUp, domain)
			return nil
		},
	}

	_, err = m.Commit(context.Background(), deps)
	require.Error(t, err)
	require.Len(t, booted, 2, "the base domain boots before the reader domain fails")
	require.Equal(t, []graph.DomainIndex{booted[0].Domain}, cleanedUp, "the already-booted base domain must be cleaned up on the reader domain's failure")
}

func TestRemoveLeavesWalksOrphanAncestors(t *testing.T) {
	g := graph.New()
	m := New(g)
	base, err := m.AddBase("t", []string{"id", "v"}, graph.NotSharded())
	require.NoError(t, err)
	reader, err := m.AddReader("t_reader", base, []int{0})
	require.NoError(t, err)

	deps := Deps{
		Workers:      []WorkerDescriptor{{ID: "w1", URI: "http://w1", Healthy: true}},
		Restrictions: map[RestrictionKey]string{},
		Coordinator:  channel.New(),
		RunDomain: func(ctx context.Context, w WorkerDescriptor, body RunDomainBody) (string, error) {
			return w.URI, nil
		},
	}
	_, err = m.Commit(context.Background(), deps)
	require.NoError(t, err)

	removed, err := RemoveLeaves(context.Background(), g, []graph.Index{reader},
		func(graph.DomainIndex) []WorkerDescriptor { return deps.Workers },
		func(ctx context.Context, w WorkerDescriptor, domain graph.DomainIndex, nodes []graph.Index) error { return nil },
	)
	require.NoError(t, err)
	require.Contains(t, removed, reader)
	require.False(t, g.Contains(reader))
	require.True(t, g.Contains(base))
}
