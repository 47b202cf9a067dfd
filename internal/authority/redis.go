package authority

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flowmesh/dataflow/internal/wire"
)

const (
	controllerStateKey = "controller-state"
	leaderEpochKey     = "leader-epoch"
	workerKeyPrefix    = "worker/"
	adapterKeyPrefix   = "adapter/"
)

// Redis is the production Authority, grounded on mredis's bare
// *redis.Client wrapper (LerianStudio-midaz/common/mredis) but widened
// from a connection holder into the full CAS/heartbeat/epoch surface
// spec.md §4.5 asks of an Authority: controller-state under optimistic
// WATCH/MULTI, worker/adapter leases under SET…EX, and leader-epoch
// under INCR.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an already-connected client. Connection setup (DSN
// parsing, Ping) is the caller's concern — mirrors mredis.Connect,
// which is itself this package's license to own only the CAS verbs.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Update performs the CAS spec.md §4.5 names: read controller-state,
// apply f, write back only if nothing else changed it meanwhile. Uses
// WATCH so the MULTI/EXEC fails (go-redis turns this into
// redis.TxFailedErr) if another leader's write landed first.
func (r *Redis) Update(ctx context.Context, apply func(ControllerState) (ControllerState, error)) (ControllerState, error) {
	var result ControllerState

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readState(ctx, tx)
		if err != nil {
			return err
		}

		next, err := apply(current)
		if err != nil {
			return err
		}

		body, err := wire.Marshal(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, controllerStateKey, body, 0)
			return nil
		})
		if err != nil {
			return err
		}

		result = next
		return nil
	}, controllerStateKey)

	if errors.Is(err, redis.TxFailedErr) {
		return ControllerState{}, ErrCASConflict
	}
	if err != nil {
		return ControllerState{}, err
	}
	return result, nil
}

func (r *Redis) Read(ctx context.Context) (ControllerState, error) {
	return readState(ctx, r.client)
}

// readState accepts either *redis.Client or *redis.Tx, since Update
// reads through a watched transaction while Read reads through the
// plain client.
func readState(ctx context.Context, cmdable redis.Cmdable) (ControllerState, error) {
	body, err := cmdable.Get(ctx, controllerStateKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return ControllerState{}, nil
	}
	if err != nil {
		return ControllerState{}, err
	}
	var state ControllerState
	if err := wire.Unmarshal(body, &state); err != nil {
		return ControllerState{}, err
	}
	return state, nil
}

func (r *Redis) WorkerHeartbeat(ctx context.Context, w WorkerDescriptor, ttl time.Duration) error {
	body, err := wire.Marshal(w)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, workerKeyPrefix+w.ID, body, ttl).Err()
}

func (r *Redis) RegisterAdapter(ctx context.Context, id string, ttl time.Duration) error {
	return r.client.Set(ctx, adapterKeyPrefix+id, []byte{1}, ttl).Err()
}

func (r *Redis) LeaderEpoch(ctx context.Context) (uint64, error) {
	n, err := r.client.Incr(ctx, leaderEpochKey).Result()
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// LiveWorkers scans worker/* keys; an expired lease's key has already
// been reaped by Redis itself, so every key found here is live by
// construction — unlike Fake, there is no lazy-prune step to write.
func (r *Redis) LiveWorkers(ctx context.Context) ([]WorkerDescriptor, error) {
	var out []WorkerDescriptor
	iter := r.client.Scan(ctx, 0, workerKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		body, err := r.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue // lease expired between Scan and Get
		}
		if err != nil {
			return nil, err
		}
		var w WorkerDescriptor
		if err := wire.Unmarshal(body, &w); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

var _ Authority = (*Redis)(nil)
