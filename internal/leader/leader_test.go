package leader

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/flowmesh/dataflow/internal/authority"
	"github.com/flowmesh/dataflow/internal/ferr"
	"github.com/flowmesh/dataflow/internal/graph"
	"github.com/flowmesh/dataflow/internal/migration"
	"github.com/flowmesh/dataflow/internal/replication"
	"github.com/flowmesh/dataflow/internal/worker"
)

// fakeRPC answers every Worker RPC in-process, so leader tests exercise
// the full commit path without a network.
type fakeRPC struct {
	mu         sync.Mutex
	ops        []worker.ApplyTableOpsRequest
	timestamps []worker.UpdateTimestampRequest
	addrN      int
}

func (f *fakeRPC) RunDomain(ctx context.Context, wd migration.WorkerDescriptor, body migration.RunDomainBody) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addrN++
	return wd.URI, nil
}

func (f *fakeRPC) Gossip(ctx context.Context, wd migration.WorkerDescriptor, descriptors []migration.DomainDescriptor) error {
	return nil
}

func (f *fakeRPC) RemoveNodes(ctx context.Context, wd migration.WorkerDescriptor, domain graph.DomainIndex, nodes []graph.Index) error {
	return nil
}

func (f *fakeRPC) ApplyTableOps(ctx context.Context, wd migration.WorkerDescriptor, req worker.ApplyTableOpsRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, req)
	return nil
}

func (f *fakeRPC) UpdateTimestamp(ctx context.Context, wd migration.WorkerDescriptor, req worker.UpdateTimestampRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timestamps = append(f.timestamps, req)
	return nil
}

func (f *fakeRPC) GetStatistics(ctx context.Context, wd migration.WorkerDescriptor) (map[graph.DomainIndex]worker.DomainStats, error) {
	return map[graph.DomainIndex]worker.DomainStats{0: {TotalRows: 1}}, nil
}

func (f *fakeRPC) FlushPartial(ctx context.Context, wd migration.WorkerDescriptor) (int, error) {
	return 7, nil
}

var _ RPC = (*fakeRPC)(nil)

func newTestLeader(t *testing.T) (*Leader, *fakeRPC) {
	t.Helper()
	rpc := &fakeRPC{}
	l := New(Config{
		Authority:    authority.NewFake(),
		RPC:          rpc,
		QuorumTarget: 1,
	})
	l.mu.Lock()
	l.workers["w1"] = migration.WorkerDescriptor{ID: "w1", URI: "http://w1", Healthy: true}
	l.mu.Unlock()
	return l, rpc
}

func TestExtendRecipeBlockedWithoutQuorum(t *testing.T) {
	l := New(Config{Authority: authority.NewFake(), RPC: &fakeRPC{}, QuorumTarget: 1})
	_, err := l.ExtendRecipe(context.Background(), "CREATE TABLE t(id int, v int)", nil)
	require.Error(t, err)
}

func TestExtendRecipeInstallsBaseTable(t *testing.T) {
	l, _ := newTestLeader(t)
	result, err := l.ExtendRecipe(context.Background(), "CREATE TABLE t(id int, v int)", nil)
	require.NoError(t, err)
	require.Len(t, result.NewNodes, 1)

	inputs := l.Inputs()
	require.Contains(t, inputs, "t")
}

func TestExtendRecipeInstallsCachedQuery(t *testing.T) {
	l, _ := newTestLeader(t)
	ctx := context.Background()
	_, err := l.ExtendRecipe(ctx, "CREATE TABLE t(id int, v int)", nil)
	require.NoError(t, err)

	result, err := l.ExtendRecipe(ctx, "CREATE CACHE q FROM SELECT v FROM t WHERE id = ?", nil)
	require.NoError(t, err)
	require.Len(t, result.NewNodes, 1) // just the reader; no filter node (id = ? is a parameter)

	outputs := l.Outputs()
	require.Contains(t, outputs, "q")

	tb, err := l.TableBuilder("t")
	require.NoError(t, err)
	require.Equal(t, []string{"http://w1"}, tb.ShardAddrs)

	replicas, err := l.ViewBuilder(ViewRequest{Name: "q"})
	require.NoError(t, err)
	require.Len(t, replicas, 1)
}

func TestRemoveQueryDropsReader(t *testing.T) {
	l, _ := newTestLeader(t)
	ctx := context.Background()
	_, err := l.ExtendRecipe(ctx, "CREATE TABLE t(id int, v int)", nil)
	require.NoError(t, err)
	_, err = l.ExtendRecipe(ctx, "CREATE CACHE q FROM SELECT v FROM t WHERE id = ?", nil)
	require.NoError(t, err)

	result, err := l.RemoveQuery(ctx, "q")
	require.NoError(t, err)
	require.NotEmpty(t, result.RemovedLeaves)

	_, ok := l.Outputs()["q"]
	require.False(t, ok)
}

func TestExtendRecipeMaxMergesOffset(t *testing.T) {
	l, _ := newTestLeader(t)
	ctx := context.Background()
	low := replication.Offset{Engine: replication.EngineMySQL, LogName: "bin.1", Position: 10}
	high := replication.Offset{Engine: replication.EngineMySQL, LogName: "bin.1", Position: 50}

	_, err := l.ExtendRecipe(ctx, "CREATE TABLE t(id int, v int)", &high)
	require.NoError(t, err)
	_, err = l.ExtendRecipe(ctx, "CREATE TABLE t2(id int)", &low)
	require.NoError(t, err)

	off, err := l.SchemaOffset(ctx)
	require.NoError(t, err)
	require.Equal(t, high, off)
}

func TestInstallRecipeClearsTableOffsets(t *testing.T) {
	l, _ := newTestLeader(t)
	ctx := context.Background()
	pos := replication.Offset{Engine: replication.EngineMySQL, LogName: "bin.1", Position: 5}
	_, err := l.ExtendRecipe(ctx, "CREATE TABLE t(id int, v int)", nil)
	require.NoError(t, err)
	require.NoError(t, l.PerformTableOps(ctx, "t", nil, pos))

	offsets, err := l.TableOffsets(ctx)
	require.NoError(t, err)
	require.Contains(t, offsets, "t")

	_, err = l.InstallRecipe(ctx, "CREATE TABLE t(id int, v int)", nil)
	require.NoError(t, err)

	offsets, err = l.TableOffsets(ctx)
	require.NoError(t, err)
	require.Empty(t, offsets)
}

func TestGetStatisticsAggregatesAcrossWorkers(t *testing.T) {
	l, _ := newTestLeader(t)
	stats, err := l.GetStatistics(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats[0].TotalRows)
}

func TestFlushPartialSumsAcrossWorkers(t *testing.T) {
	l, _ := newTestLeader(t)
	freed, err := l.FlushPartial(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7, freed)
}

func TestHandleFailedWorkersQueuesRecovery(t *testing.T) {
	l, _ := newTestLeader(t)
	ctx := context.Background()
	_, err := l.ExtendRecipe(ctx, "CREATE TABLE t(id int, v int)", nil)
	require.NoError(t, err)
	_, err = l.ExtendRecipe(ctx, "CREATE CACHE q FROM SELECT v FROM t WHERE id = ?", nil)
	require.NoError(t, err)

	require.NoError(t, l.HandleFailedWorkers(ctx, []string{"w1"}))

	_, err = l.ExtendRecipe(ctx, "CREATE TABLE t2(id int)", nil)
	require.Error(t, err, "quorum should be closed once the sole worker is marked failed")
}

func TestCommitMigrationPropagatesRunDomainFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRPC := NewMockRPC(ctrl)
	mockRPC.EXPECT().RunDomain(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("worker unreachable"))

	l := New(Config{Authority: authority.NewFake(), RPC: mockRPC, QuorumTarget: 1})
	l.mu.Lock()
	l.workers["w1"] = migration.WorkerDescriptor{ID: "w1", URI: "http://w1", Healthy: true}
	l.mu.Unlock()

	_, err := l.ExtendRecipe(context.Background(), "CREATE TABLE t(id int, v int)", nil)
	require.Error(t, err)
	require.Equal(t, ferr.KindDomainCreationFailed, ferr.KindOf(err))
}
