package worker

import (
	"fmt"
	"sync"

	"github.com/flowmesh/dataflow/internal/graph"
	"github.com/flowmesh/dataflow/internal/replication"
	"go.uber.org/zap"
)

// RunDomainRequest mirrors spec.md §4.5's RunDomain(builder) RPC kind:
// the Leader ships a domain's node set and placement to the worker that
// should host one shard of it.
type RunDomainRequest struct {
	Index      graph.DomainIndex
	Shard      int
	NShards    int
	Nodes      []graph.Index
	Persistence PersistenceParams
}

// PersistenceParams configures how a domain's base tables are checkpointed;
// named per spec.md §4.4 step 4 ("persistence_params") but left minimal
// since the durable log itself is an in-memory stand-in (see
// basetable.go's doc comment).
type PersistenceParams struct {
	Directory string
}

// RunDomainResponse is the worker's reply: the externally reachable
// address other workers (and the Leader) should use to reach this shard,
// recorded into the Channel Coordinator (spec.md §4.4 step 4).
type RunDomainResponse struct {
	ExternalAddr string
}

// RemoveNodesRequest mirrors the §4.5 RemoveNodes{nodes} RPC kind.
type RemoveNodesRequest struct {
	Domain graph.DomainIndex
	Nodes  []graph.Index
}

// NodeStats is per-node memory/materialization statistics returned by
// GetStatistics (spec.md §4.5).
type NodeStats struct {
	Rows       int
	ApproxBytes int
}

// DomainStats aggregates NodeStats across a domain.
type DomainStats struct {
	TotalRows  int
	TotalBytes int
}

// Worker owns a set of domains, each with its own single-threaded runtime
// (spec.md §2 item 4). Grounded on johnjansen-torua/cmd/node/main.go's
// server struct, which owns a map of shards; generalized from shard.Shard
// to DomainRuntime, one per (domain,shard) this process hosts.
type Worker struct {
	mu          sync.RWMutex
	ExternalURI string
	log         *zap.Logger
	domains     map[graph.DomainIndex]*DomainRuntime
	graph       *graph.Graph
}

func New(externalURI string, g *graph.Graph, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{
		ExternalURI: externalURI,
		log:         log,
		domains:     make(map[graph.DomainIndex]*DomainRuntime),
		graph:       g,
	}
}

// RunDomain boots a new domain runtime on this worker (spec.md §4.4 step
// 4: "Boot domains"). If the domain already exists (a later migration
// adding nodes to it), the new nodes are appended instead, honoring
// invariant v.
func (w *Worker) RunDomain(req RunDomainRequest) (RunDomainResponse, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	d, exists := w.domains[req.Index]
	if !exists {
		d = NewDomainRuntime(req.Index, req.Shard, req.NShards, w.graph)
		w.domains[req.Index] = d
		go d.Start()
		w.log.Info("domain booted", zap.Uint32("domain", uint32(req.Index)), zap.Int("shard", req.Shard))
	} else {
		d.AddNodes(req.Nodes)
		w.log.Info("domain extended", zap.Uint32("domain", uint32(req.Index)), zap.Int("new_nodes", len(req.Nodes)))
	}
	return RunDomainResponse{ExternalAddr: w.ExternalURI}, nil
}

// ApplyTableOpsRequest is the worker-side RPC body for the Leader's
// "table(name).perform_all" path spec.md §5 names as one of the three
// calls the replicator is allowed to make into the Leader; the Leader
// forwards it on to whichever worker hosts the target Base node.
type ApplyTableOpsRequest struct {
	Domain graph.DomainIndex
	Node   graph.Index
	Ops    []TableOperation
	Offset replication.Offset
}

// ApplyTableOps applies a batch of TableOperations to the Base node's
// store and advances its checkpointed offset atomically with the batch
// (spec.md §6 "Persisted state").
func (w *Worker) ApplyTableOps(req ApplyTableOpsRequest) error {
	w.mu.RLock()
	d, ok := w.domains[req.Domain]
	w.mu.RUnlock()
	if !ok {
		return fmt.Errorf("worker: no such domain %d", req.Domain)
	}
	base, ok := d.Base(req.Node)
	if !ok {
		return fmt.Errorf("worker: node %d is not a base table on domain %d", req.Node, req.Domain)
	}
	if err := base.PerformAll(req.Ops, req.Offset); err != nil {
		return err
	}
	for _, op := range req.Ops {
		kind := PacketInsert
		row := op.Row
		if op.Kind == OpDelete {
			kind = PacketDelete
			row = op.Old
		}
		d.Deliver(Packet{Kind: kind, Node: req.Node, Row: row})
	}
	return nil
}

// RemoveNodes implements the §4.5 RemoveNodes RPC.
func (w *Worker) RemoveNodes(req RemoveNodesRequest) error {
	w.mu.RLock()
	d, ok := w.domains[req.Domain]
	w.mu.RUnlock()
	if !ok {
		return fmt.Errorf("worker: no such domain %d", req.Domain)
	}
	d.RemoveNodes(req.Nodes)
	return nil
}

// UpdateTimestampRequest mirrors the §4.6 Timestamp{node, txid} update the
// Replicator submits after a TableAction carrying a transaction id is
// applied, symmetric with ApplyTableOpsRequest's Domain/Node addressing.
type UpdateTimestampRequest struct {
	Domain graph.DomainIndex
	Node   graph.Index
	TxID   string
}

// UpdateTimestamp records the upstream transaction id a base table's most
// recent batch belonged to (spec.md §4.6). Distinct from ApplyTableOps:
// the original's own update_timestamp call is made separately from
// perform_all, not bundled atomically with it.
func (w *Worker) UpdateTimestamp(req UpdateTimestampRequest) error {
	w.mu.RLock()
	d, ok := w.domains[req.Domain]
	w.mu.RUnlock()
	if !ok {
		return fmt.Errorf("worker: no such domain %d", req.Domain)
	}
	base, ok := d.Base(req.Node)
	if !ok {
		return fmt.Errorf("worker: node %d is not a base table on domain %d", req.Node, req.Domain)
	}
	base.SetTimestamp(req.TxID)
	return nil
}

// Domain returns the runtime for idx, if hosted here.
func (w *Worker) Domain(idx graph.DomainIndex) (*DomainRuntime, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	d, ok := w.domains[idx]
	return d, ok
}

// GetStatistics aggregates per-domain stats across every domain this
// worker hosts (spec.md §4.5 get_statistics).
func (w *Worker) GetStatistics() map[graph.DomainIndex]DomainStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[graph.DomainIndex]DomainStats, len(w.domains))
	for idx, d := range w.domains {
		var stats DomainStats
		for _, b := range d.bases {
			stats.TotalRows += b.Len()
		}
		for _, r := range d.readers {
			stats.TotalBytes += r.Len() * 64
		}
		out[idx] = stats
	}
	return out
}

// FlushPartial evicts every reader cache across every domain, returning
// total bytes freed (spec.md §4.5 flush_partial).
func (w *Worker) FlushPartial() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	total := 0
	for _, d := range w.domains {
		for _, r := range d.readers {
			total += r.Evict()
		}
	}
	return total
}

// Domains returns the set of domain indices this worker currently hosts,
// in no particular order.
func (w *Worker) Domains() []graph.DomainIndex {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]graph.DomainIndex, 0, len(w.domains))
	for idx := range w.domains {
		out = append(out, idx)
	}
	return out
}
