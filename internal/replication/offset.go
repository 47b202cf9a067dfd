// Package replication implements the Replicator, spec.md §4.6: a
// long-running task that snapshots the upstream database into base
// tables and then tails its transaction log into TableOperation batches
// carrying per-table replication offsets.
//
// Grounded on replicators/src/noria_adapter.rs (original_source) for the
// snapshot->catch-up->steady-state lifecycle and action taxonomy; the
// upstream connectivity itself is new Go code built on the pack's MySQL
// and Postgres libraries (see SPEC_FULL.md "Replicator — upstream
// connectivity").
package replication

import "fmt"

// Engine identifies which upstream produced an Offset, since MySQL binlog
// positions and Postgres LSNs are not comparable to each other (spec.md
// §3: "Replication offset ... opaque totally-ordered token").
type Engine byte

const (
	EngineMySQL Engine = iota
	EnginePostgres
)

// Offset is the opaque, totally-ordered position token spec.md §3
// describes: "{log-name, position} for MySQL binlog; lsn for PostgreSQL
// WAL".
type Offset struct {
	Engine   Engine
	LogName  string // MySQL: binlog file name, e.g. "mysql-bin.000003"
	Position uint64 // MySQL: byte offset within LogName; Postgres: LSN
}

// Zero is the "no offset recorded yet" value; a table with Zero offset
// has never been written (spec.md §4.5 replication_offset: "None if any
// base has no offset").
var Zero = Offset{}

func (o Offset) IsZero() bool { return o == Zero }

// Compare orders two offsets of the same Engine. MySQL offsets compare by
// (LogName, Position) lexicographically then numerically, since a higher
// binlog file always supersedes a lower one regardless of byte position;
// Postgres LSNs compare purely numerically. Comparing offsets of
// different engines panics: that indicates a Leader bug (a table cannot
// change upstream engines mid-flight).
func (o Offset) Compare(other Offset) int {
	if o.Engine != other.Engine {
		panic(fmt.Sprintf("replication: cannot compare offsets from different engines (%v vs %v)", o.Engine, other.Engine))
	}
	switch o.Engine {
	case EngineMySQL:
		if o.LogName != other.LogName {
			if o.LogName < other.LogName {
				return -1
			}
			return 1
		}
		fallthrough
	default:
		switch {
		case o.Position < other.Position:
			return -1
		case o.Position > other.Position:
			return 1
		default:
			return 0
		}
	}
}

// Min returns whichever of a, b compares lower; if either is Zero, the
// non-zero one is treated as greater (a Zero offset means "replay from
// the very start"), matching spec.md §4.6 step 3's "min(table_offsets,
// snapshot_pos)" catch-up rule.
func Min(a, b Offset) Offset {
	if a.IsZero() {
		return a
	}
	if b.IsZero() {
		return b
	}
	if a.Compare(b) <= 0 {
		return a
	}
	return b
}

// Max returns whichever of a, b compares higher; if either is Zero, the
// non-zero one wins (a Zero offset means "no offset yet", never higher
// than a real one), the same Zero special-case Min applies above.
func Max(a, b Offset) Offset {
	if a.IsZero() {
		return b
	}
	if b.IsZero() {
		return a
	}
	if a.Compare(b) >= 0 {
		return a
	}
	return b
}

func (o Offset) String() string {
	if o.IsZero() {
		return "<none>"
	}
	if o.Engine == EngineMySQL {
		return fmt.Sprintf("%s:%d", o.LogName, o.Position)
	}
	return fmt.Sprintf("lsn:%d", o.Position)
}
