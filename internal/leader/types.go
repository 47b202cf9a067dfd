package leader

import (
	"github.com/flowmesh/dataflow/internal/graph"
	"github.com/flowmesh/dataflow/internal/replication"
)

// TableBuilder is the descriptor table_builder(name) returns (spec.md
// §4.5): enough for an adapter to write directly to a base table's
// shards without routing through the Leader again.
type TableBuilder struct {
	Node       graph.Index
	Columns    []string
	KeyColumns []int
	Dropped    []int
	ShardAddrs []string
}

// ViewRequest is view_builder(req)'s input: a query name plus an
// optional worker-URI filter restricting which replicas are returned
// (spec.md §4.5, §6 "ViewRequest{name, filter?}").
type ViewRequest struct {
	Name         string
	WorkerFilter string
}

// ViewReplica is one reader replica view_builder returns: shard
// addresses, the region it lives in, and its schema (spec.md §4.5:
// "one or more ViewReplicas, each with shard addresses, region,
// returned columns, schema").
type ViewReplica struct {
	Domain     graph.DomainIndex
	Region     string
	Columns    []string
	Schema     []string
	KeyColumns []int
	ShardAddrs []string
}

// RecipeSpec is the body of /extend_recipe and /install_recipe (spec.md
// §6): the recipe text plus an optional replication offset to merge (or
// overwrite) and a readiness gate.
type RecipeSpec struct {
	Recipe             string
	ReplicationOffset  *replication.Offset
	RequireLeaderReady bool
}

// ReaderReplicationSpec is replicate_readers(spec)'s input (spec.md
// §4.5/§6): add a mirror reader for each named query, optionally
// pinned to one worker.
type ReaderReplicationSpec struct {
	Queries   []string
	WorkerURI string
}

// ReaderReplicationResult maps query name to the domain/reader index of
// each mirror created (spec.md §4.5: "returns query→domain→reader map").
type ReaderReplicationResult struct {
	Readers map[string]map[graph.DomainIndex]graph.Index
}

// NodeInfo is one row of GraphInfo's node listing (spec.md §6 "GET
// /nodes?w=<worker> -> list of (idx, name, description)").
type NodeInfo struct {
	Index       graph.Index
	Name        string
	Description string
	Domain      graph.DomainIndex
}

// GraphInfo is get_info's response: every node's identity and current
// placement, for debugging and the `/nodes` listing.
type GraphInfo struct {
	Nodes []NodeInfo
}

// WorkerInfo is what /workers and /healthy_workers report.
type WorkerInfo struct {
	ID      string
	URI     string
	Region  string
	Healthy bool
}
