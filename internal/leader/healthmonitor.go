package leader

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/flowmesh/dataflow/internal/migration"
)

// workerHealth tracks one worker's consecutive probe outcomes. Grounded on
// johnjansen-torua/internal/coordinator's HealthMonitor/NodeHealth pair,
// generalized from Torua's storage nodes to dataflow workers: a worker
// only needs at least one healthy heartbeat to be admitted, but is marked
// unhealthy after maxFailures back-to-back /health probe failures, the
// same hysteresis the teacher applies before triggering redistribution.
type workerHealth struct {
	status           string
	consecutiveFails int
}

// HealthMonitor actively probes every registered worker's /health endpoint
// (internal/worker/http.go's route), complementing the Authority
// heartbeat's TTL-based liveness signal with a faster, direct check —
// spec.md §4.5's handle_failed_workers doesn't say how a failure is
// detected, only how it is handled, so both signals feed the same call.
type HealthMonitor struct {
	mu          sync.RWMutex
	workers     map[string]*workerHealth
	httpClient  *http.Client
	checkFunc   func(uri string) error
	onUnhealthy func(workerID string)
	interval    time.Duration
	maxFailures int
	log         *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHealthMonitor builds a monitor that probes every interval and marks a
// worker unhealthy after 3 consecutive failed probes.
func NewHealthMonitor(interval time.Duration, log *zap.Logger) *HealthMonitor {
	if log == nil {
		log = zap.NewNop()
	}
	return &HealthMonitor{
		interval:    interval,
		maxFailures: 3,
		workers:     make(map[string]*workerHealth),
		httpClient:  &http.Client{Timeout: 2 * time.Second},
		log:         log,
	}
}

// SetOnUnhealthy installs the callback fired the moment a worker crosses
// the failure threshold; the Leader wires this to HandleFailedWorkers.
func (h *HealthMonitor) SetOnUnhealthy(callback func(workerID string)) {
	h.onUnhealthy = callback
}

// SetCheckFunction overrides the default HTTP probe, for tests.
func (h *HealthMonitor) SetCheckFunction(checkFunc func(uri string) error) {
	h.checkFunc = checkFunc
}

// Start runs the probe loop until ctx is canceled or Stop is called.
// workerProvider is consulted on every tick so newly registered or removed
// workers are picked up without a restart.
func (h *HealthMonitor) Start(ctx context.Context, workerProvider func() []migration.WorkerDescriptor) {
	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	if h.checkFunc == nil {
		h.checkFunc = h.defaultCheck
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()

		h.checkAll(workerProvider())
		for {
			select {
			case <-ticker.C:
				h.checkAll(workerProvider())
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the probe loop and waits for it to exit.
func (h *HealthMonitor) Stop() {
	if h.cancel != nil {
		h.cancel()
	}
	h.wg.Wait()
}

func (h *HealthMonitor) checkAll(workers []migration.WorkerDescriptor) {
	live := make(map[string]bool, len(workers))
	for _, wd := range workers {
		live[wd.ID] = true
		h.checkOne(wd)
	}

	h.mu.Lock()
	for id := range h.workers {
		if !live[id] {
			delete(h.workers, id)
		}
	}
	h.mu.Unlock()
}

func (h *HealthMonitor) checkOne(wd migration.WorkerDescriptor) {
	h.mu.Lock()
	wh, ok := h.workers[wd.ID]
	if !ok {
		wh = &workerHealth{status: "unknown"}
		h.workers[wd.ID] = wh
	}
	h.mu.Unlock()

	err := h.checkFunc(wd.URI)

	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		wh.consecutiveFails++
		if wh.consecutiveFails >= h.maxFailures && wh.status != "unhealthy" {
			wh.status = "unhealthy"
			h.log.Warn("worker marked unhealthy", zap.String("worker", wd.ID), zap.Int("failures", wh.consecutiveFails))
			if h.onUnhealthy != nil {
				go h.onUnhealthy(wd.ID)
			}
		}
		return
	}
	wh.status = "healthy"
	wh.consecutiveFails = 0
}

func (h *HealthMonitor) defaultCheck(uri string) error {
	url := strings.TrimRight(uri, "/") + "/health"
	resp, err := h.httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("health probe: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health probe: status %d", resp.StatusCode)
	}
	return nil
}

// IsHealthy reports whether id's last probe succeeded; unknown workers
// report false.
func (h *HealthMonitor) IsHealthy(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	wh, ok := h.workers[id]
	return ok && wh.status == "healthy"
}
