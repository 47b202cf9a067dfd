package authority

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFakeUpdateAppliesAndPersists(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	state, err := f.Update(ctx, func(s ControllerState) (ControllerState, error) {
		s.Recipes = append(s.Recipes, "CREATE TABLE t(id INT)")
		s.RecipeVersion = 1
		return s, nil
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1), state.RecipeVersion)

	read, err := f.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"CREATE TABLE t(id INT)"}, read.Recipes)
}

func TestFakeUpdatePropagatesApplyError(t *testing.T) {
	f := NewFake()
	boom := errFakeApply{}
	_, err := f.Update(context.Background(), func(s ControllerState) (ControllerState, error) {
		return s, boom
	})
	require.ErrorIs(t, err, boom)
}

type errFakeApply struct{}

func (errFakeApply) Error() string { return "boom" }

func TestFakeWorkerHeartbeatExpires(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	require.NoError(t, f.WorkerHeartbeat(ctx, WorkerDescriptor{ID: "w1", URI: "http://w1"}, time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	live, err := f.LiveWorkers(ctx)
	require.NoError(t, err)
	require.Empty(t, live)
}

func TestFakeWorkerHeartbeatLiveWithinTTL(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	require.NoError(t, f.WorkerHeartbeat(ctx, WorkerDescriptor{ID: "w1", URI: "http://w1"}, time.Minute))
	live, err := f.LiveWorkers(ctx)
	require.NoError(t, err)
	require.Len(t, live, 1)
	require.Equal(t, "http://w1", live[0].URI)
}

func TestFakeLeaderEpochMonotonic(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	e1, err := f.LeaderEpoch(ctx)
	require.NoError(t, err)
	e2, err := f.LeaderEpoch(ctx)
	require.NoError(t, err)
	require.Greater(t, e2, e1)
}
