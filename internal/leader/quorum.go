package leader

import "github.com/flowmesh/dataflow/internal/ferr"

// checkQuorum implements spec.md §4.5's quorum gate: "any graph-mutating
// or worker-dependent request fails with NoQuorum while workers.len() <
// quorum or pending_recovery is non-empty." Read-only introspection does
// not call this.
//
// Caller must already hold l.mu (read or write).
func (l *Leader) checkQuorum() error {
	if len(l.workers) < l.quorumTarget {
		return ferr.Newf(ferr.KindNoQuorum, "have %d workers, need %d", len(l.workers), l.quorumTarget)
	}
	if len(l.pendingRecovery) > 0 {
		return ferr.Newf(ferr.KindNoQuorum, "%d queries pending recovery", len(l.pendingRecovery))
	}
	return nil
}
