package replication

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeLeaderFacade is a minimal in-process LeaderFacade, enough to drive
// Replicator.applyAction without a real Leader.
type fakeLeaderFacade struct {
	tableOps   []TableOperation
	timestamps map[string]string
}

func newFakeLeaderFacade() *fakeLeaderFacade {
	return &fakeLeaderFacade{timestamps: make(map[string]string)}
}

func (f *fakeLeaderFacade) ExtendRecipeWithOffset(ctx context.Context, ddl string, pos Offset, nonBreaking bool) error {
	return nil
}

func (f *fakeLeaderFacade) PerformTableOps(ctx context.Context, table string, ops []TableOperation, pos Offset) error {
	f.tableOps = append(f.tableOps, ops...)
	return nil
}

func (f *fakeLeaderFacade) UpdateTimestamp(ctx context.Context, table string, txid string) error {
	f.timestamps[table] = txid
	return nil
}

func (f *fakeLeaderFacade) SetReplicationOffset(ctx context.Context, pos Offset) error { return nil }

func (f *fakeLeaderFacade) SchemaOffset(ctx context.Context) (Offset, error) { return Zero, nil }

func (f *fakeLeaderFacade) TableOffsets(ctx context.Context) (map[string]Offset, error) {
	return nil, nil
}

func (f *fakeLeaderFacade) KnownTables(ctx context.Context) ([]string, error) { return nil, nil }

var _ LeaderFacade = (*fakeLeaderFacade)(nil)

func TestApplyActionSubmitsTimestampWhenTxIDPresent(t *testing.T) {
	leader := newFakeLeaderFacade()
	r := New(leader, nil, nil)

	err := r.applyAction(context.Background(), Action{
		Kind:  ActionTable,
		Table: "users",
		Ops:   []TableOperation{{Kind: TableOpInsert, Row: []Value{int64(1)}}},
		TxID:  "42",
	}, map[string]Offset{})
	require.NoError(t, err)
	require.Equal(t, "42", leader.timestamps["users"])
}

func TestApplyActionSkipsTimestampWhenTxIDAbsent(t *testing.T) {
	leader := newFakeLeaderFacade()
	r := New(leader, nil, nil)

	err := r.applyAction(context.Background(), Action{
		Kind:  ActionTable,
		Table: "users",
		Ops:   []TableOperation{{Kind: TableOpInsert, Row: []Value{int64(1)}}},
	}, map[string]Offset{})
	require.NoError(t, err)
	require.Empty(t, leader.timestamps)
}
