package leader

import (
	"context"
	"fmt"

	"github.com/flowmesh/dataflow/internal/graph"
	"github.com/flowmesh/dataflow/internal/migration"
	"github.com/flowmesh/dataflow/internal/transport"
	"github.com/flowmesh/dataflow/internal/worker"
)

// RPC is every Worker/Leader RPC kind spec.md §4.5 names, from the
// Leader's calling side. HTTPRPC is the production implementation; tests
// supply a fake.
type RPC interface {
	RunDomain(ctx context.Context, wd migration.WorkerDescriptor, body migration.RunDomainBody) (string, error)
	Gossip(ctx context.Context, wd migration.WorkerDescriptor, descriptors []migration.DomainDescriptor) error
	RemoveNodes(ctx context.Context, wd migration.WorkerDescriptor, domain graph.DomainIndex, nodes []graph.Index) error
	ApplyTableOps(ctx context.Context, wd migration.WorkerDescriptor, req worker.ApplyTableOpsRequest) error
	UpdateTimestamp(ctx context.Context, wd migration.WorkerDescriptor, req worker.UpdateTimestampRequest) error
	GetStatistics(ctx context.Context, wd migration.WorkerDescriptor) (map[graph.DomainIndex]worker.DomainStats, error)
	FlushPartial(ctx context.Context, wd migration.WorkerDescriptor) (int, error)
}

// HTTPRPC calls a worker's internal/worker/http.go Server over the
// msgpack-framed internal/transport client.
type HTTPRPC struct{}

func NewHTTPRPC() HTTPRPC { return HTTPRPC{} }

func (HTTPRPC) RunDomain(ctx context.Context, wd migration.WorkerDescriptor, body migration.RunDomainBody) (string, error) {
	req := worker.RunDomainRequest{Index: body.Domain, Shard: body.Shard, NShards: body.NShards, Nodes: body.Nodes}
	var resp worker.RunDomainResponse
	if err := transport.Post(ctx, wd.URI+"/run_domain", req, &resp); err != nil {
		return "", fmt.Errorf("leader: run_domain against %s: %w", wd.URI, err)
	}
	return resp.ExternalAddr, nil
}

func (HTTPRPC) Gossip(ctx context.Context, wd migration.WorkerDescriptor, descriptors []migration.DomainDescriptor) error {
	var out struct{}
	if err := transport.Post(ctx, wd.URI+"/gossip_domain_information", descriptors, &out); err != nil {
		return fmt.Errorf("leader: gossip against %s: %w", wd.URI, err)
	}
	return nil
}

func (HTTPRPC) RemoveNodes(ctx context.Context, wd migration.WorkerDescriptor, domain graph.DomainIndex, nodes []graph.Index) error {
	req := worker.RemoveNodesRequest{Domain: domain, Nodes: nodes}
	var out struct{}
	if err := transport.Post(ctx, wd.URI+"/remove_nodes", req, &out); err != nil {
		return fmt.Errorf("leader: remove_nodes against %s: %w", wd.URI, err)
	}
	return nil
}

func (HTTPRPC) ApplyTableOps(ctx context.Context, wd migration.WorkerDescriptor, req worker.ApplyTableOpsRequest) error {
	var out struct{}
	if err := transport.Post(ctx, wd.URI+"/apply_table_ops", req, &out); err != nil {
		return fmt.Errorf("leader: apply_table_ops against %s: %w", wd.URI, err)
	}
	return nil
}

func (HTTPRPC) UpdateTimestamp(ctx context.Context, wd migration.WorkerDescriptor, req worker.UpdateTimestampRequest) error {
	var out struct{}
	if err := transport.Post(ctx, wd.URI+"/update_timestamp", req, &out); err != nil {
		return fmt.Errorf("leader: update_timestamp against %s: %w", wd.URI, err)
	}
	return nil
}

func (HTTPRPC) GetStatistics(ctx context.Context, wd migration.WorkerDescriptor) (map[graph.DomainIndex]worker.DomainStats, error) {
	var out map[graph.DomainIndex]worker.DomainStats
	if err := transport.Get(ctx, wd.URI+"/get_statistics", &out); err != nil {
		return nil, fmt.Errorf("leader: get_statistics against %s: %w", wd.URI, err)
	}
	return out, nil
}

func (HTTPRPC) FlushPartial(ctx context.Context, wd migration.WorkerDescriptor) (int, error) {
	var out struct{ BytesFreed int }
	if err := transport.Post(ctx, wd.URI+"/flush_partial", struct{}{}, &out); err != nil {
		return 0, fmt.Errorf("leader: flush_partial against %s: %w", wd.URI, err)
	}
	return out.BytesFreed, nil
}

var _ RPC = HTTPRPC{}
