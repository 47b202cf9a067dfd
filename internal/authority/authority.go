// Package authority implements the external coordination service spec.md
// §4.5/§5 calls the Authority: the sole holder of durable cluster state
// ("controller-state"), worker/adapter heartbeats, and the monotonic
// leader-epoch counter used for leader election. Process-local Leader
// state is always rebuildable from an Authority read.
//
// Grounded on johnjansen-torua/internal/storage's Store interface plus a
// production/in-memory pair (redis.go / fake.go), generalized from a bare
// key-value Put/Get to the CAS-update-function shape
// update_controller_state(f) spec.md §4.5 requires.
package authority

import (
	"context"
	"errors"
	"time"

	"github.com/flowmesh/dataflow/internal/replication"
)

// ErrCASConflict is returned by Authority.Update when another leader wrote
// controller-state between this caller's read and its write attempt; the
// caller must re-read and retry (or, if it holds the in-memory apply
// already, escalate per spec.md §7(d)).
var ErrCASConflict = errors.New("authority: compare-and-swap conflict")

// ControllerState is the durable record spec.md §4.5 names:
// "ControllerState{config, recipes[], recipe_version, node_restrictions,
// replication_offset}". Recipes are persisted as their raw statement text
// (grounded on noria/server/src/controller/inner.rs's
// `state.recipes.push(add_txt.to_string())`), not as the in-memory
// recipe.Recipe value: the Leader reconstructs a Recipe by replaying this
// text through recipe.Blank().Extend/Replace on recovery, the same way it
// rebuilds every other piece of process-local state from an Authority
// read.
type ControllerState struct {
	Config           map[string]string
	Recipes          []string
	RecipeVersion    uint64
	NodeRestrictions map[string]string // table -> volume id, see placement.go
	SchemaOffset     replication.Offset
	TableOffsets     map[string]replication.Offset
}

// WorkerDescriptor is what a worker/adapter heartbeat registers, enough
// for handle_register_from_authority (spec.md §4.5) to re-admit it.
type WorkerDescriptor struct {
	ID     string
	URI    string
	Region string
}

// Authority is the interface the Leader depends on; Fake and Redis are the
// two implementations, mirroring the teacher's Store/MemoryStore split.
type Authority interface {
	// Update runs f against the current ControllerState (or a zero value
	// if none exists yet) and CASes the result back. On a CAS conflict
	// Update returns ErrCASConflict without retrying f; re-reading and
	// retrying is left to the caller.
	Update(ctx context.Context, f func(ControllerState) (ControllerState, error)) (ControllerState, error)

	// Read returns the current state without attempting a write.
	Read(ctx context.Context) (ControllerState, error)

	// WorkerHeartbeat refreshes worker/<id>'s TTL, registering it if new.
	WorkerHeartbeat(ctx context.Context, w WorkerDescriptor, ttl time.Duration) error

	// RegisterAdapter refreshes adapter/<id>'s TTL.
	RegisterAdapter(ctx context.Context, id string, ttl time.Duration) error

	// LeaderEpoch atomically increments and returns "leader-epoch", used
	// to fence a demoted leader's in-flight RPCs.
	LeaderEpoch(ctx context.Context) (uint64, error)

	// LiveWorkers returns every worker whose heartbeat has not expired.
	LiveWorkers(ctx context.Context) ([]WorkerDescriptor, error)
}
