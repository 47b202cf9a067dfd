package authority

import (
	"context"
	"sync"
	"time"
)

// Fake is an in-memory Authority for tests and single-process runs,
// mirroring johnjansen-torua's storage.MemoryStore: a mutex-guarded map
// standing in for the durable backend. Unlike Redis, a single mutex
// already serializes every Update call, so ErrCASConflict can never
// occur here — there is no second writer to race against.
type Fake struct {
	mu       sync.RWMutex
	state    ControllerState
	workers  map[string]fakeLease
	adapters map[string]time.Time
	epoch    uint64
}

type fakeLease struct {
	desc    WorkerDescriptor
	expires time.Time
}

// NewFake returns an empty Fake authority, ready for immediate use.
func NewFake() *Fake {
	return &Fake{
		workers:  make(map[string]fakeLease),
		adapters: make(map[string]time.Time),
	}
}

func (f *Fake) Update(ctx context.Context, apply func(ControllerState) (ControllerState, error)) (ControllerState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	next, err := apply(f.state)
	if err != nil {
		return ControllerState{}, err
	}
	f.state = next
	return f.state, nil
}

func (f *Fake) Read(ctx context.Context) (ControllerState, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state, nil
}

func (f *Fake) WorkerHeartbeat(ctx context.Context, w WorkerDescriptor, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.workers[w.ID] = fakeLease{desc: w, expires: time.Now().Add(ttl)}
	return nil
}

func (f *Fake) RegisterAdapter(ctx context.Context, id string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adapters[id] = time.Now().Add(ttl)
	return nil
}

func (f *Fake) LeaderEpoch(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.epoch++
	return f.epoch, nil
}

// LiveWorkers returns every worker whose lease has not expired. Expired
// entries are pruned lazily here rather than by a background sweep, same
// as the teacher's stores do no background GC of their own.
func (f *Fake) LiveWorkers(ctx context.Context) ([]WorkerDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	out := make([]WorkerDescriptor, 0, len(f.workers))
	for id, lease := range f.workers {
		if lease.expires.Before(now) {
			delete(f.workers, id)
			continue
		}
		out = append(out, lease.desc)
	}
	return out, nil
}

var _ Authority = (*Fake)(nil)
