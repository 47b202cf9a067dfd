package migration

import (
	"github.com/flowmesh/dataflow/internal/ferr"
	"github.com/flowmesh/dataflow/internal/graph"
)

// WorkerDescriptor is the subset of the Leader's worker registry entry
// placement consults (spec.md §4.5: "WorkerId -> Worker{uri, region,
// reader_only, volume_id, healthy}").
type WorkerDescriptor struct {
	ID         string
	URI        string
	Region     string
	ReaderOnly bool
	VolumeID   string
	Healthy    bool
}

// RestrictionKey identifies one (base table, shard) pair in the Leader's
// placement-restriction table (spec.md §3 "Placement restriction").
type RestrictionKey struct {
	Table string
	Shard int
}

// DomainPlan is the input to PlaceDomains for one domain produced by
// AssignDomains: its shard count and whether it needs base-table or
// reader-only placement rules.
type DomainPlan struct {
	Domain    graph.DomainIndex
	NShards   int
	IsReader  bool
	BaseTable string // "" if this domain hosts no base table
}

// Placement is the chosen worker for one (domain, shard).
type Placement struct {
	Domain graph.DomainIndex
	Shard  int
	Worker WorkerDescriptor
}

// PlaceDomains selects a worker for every shard of every plan, honoring
// per-base-table volume restrictions and an optional pinned worker
// (spec.md §4.4 step 3: "For each new domain, select shard workers;
// honor DomainPlacementRestriction for base shards; reject with
// NoAvailableWorkers if constraints cannot be satisfied").
//
// restrictions is mutated in place: the first placement of a restricted
// shard records the chosen worker's volume id, and every subsequent
// placement of that (table,shard) must match it (spec.md §3: "Once set,
// future placements of that shard must land on a worker with the same
// volume id; violation is a fatal placement error").
//
// Open question left to the implementer by spec.md §8: the precise
// tie-break when a base shard carries both a volume restriction and a
// reader-only constraint is ambiguous. This implementation treats them as
// independent filters applied in sequence (reader-only first, then
// volume), which for any non-reader domain makes reader-only workers
// ineligible outright regardless of volume — see DESIGN.md.
func PlaceDomains(plans []DomainPlan, restrictions map[RestrictionKey]string, workers []WorkerDescriptor, pinnedWorker string) ([]Placement, error) {
	healthy := make([]WorkerDescriptor, 0, len(workers))
	for _, w := range workers {
		if w.Healthy {
			healthy = append(healthy, w)
		}
	}
	if len(healthy) == 0 {
		return nil, ferr.New(ferr.KindNoAvailableWorkers, "no healthy workers registered")
	}

	var out []Placement
	for _, plan := range plans {
		for shard := 0; shard < plan.NShards; shard++ {
			candidates := healthy
			if pinnedWorker != "" {
				candidates = filterByURI(candidates, pinnedWorker)
			}
			if !plan.IsReader {
				candidates = filterReaderOnly(candidates, false)
			}
			key := RestrictionKey{Table: plan.BaseTable, Shard: shard}
			if plan.BaseTable != "" {
				if vol, ok := restrictions[key]; ok {
					candidates = filterByVolume(candidates, vol)
				}
			}
			if len(candidates) == 0 {
				return nil, ferr.Newf(ferr.KindNoAvailableWorkers, "no eligible worker for domain %d shard %d", plan.Domain, shard)
			}
			chosen := candidates[shard%len(candidates)]
			if plan.BaseTable != "" {
				if _, ok := restrictions[key]; !ok {
					restrictions[key] = chosen.VolumeID
				}
			}
			out = append(out, Placement{Domain: plan.Domain, Shard: shard, Worker: chosen})
		}
	}
	return out, nil
}

func filterByURI(ws []WorkerDescriptor, uri string) []WorkerDescriptor {
	out := make([]WorkerDescriptor, 0, len(ws))
	for _, w := range ws {
		if w.URI == uri {
			out = append(out, w)
		}
	}
	return out
}

func filterReaderOnly(ws []WorkerDescriptor, readerOnly bool) []WorkerDescriptor {
	out := make([]WorkerDescriptor, 0, len(ws))
	for _, w := range ws {
		if w.ReaderOnly == readerOnly {
			out = append(out, w)
		}
	}
	return out
}

func filterByVolume(ws []WorkerDescriptor, vol string) []WorkerDescriptor {
	out := make([]WorkerDescriptor, 0, len(ws))
	for _, w := range ws {
		if w.VolumeID == vol {
			out = append(out, w)
		}
	}
	return out
}
