package replication

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"github.com/flowmesh/dataflow/internal/value"
)

// snapshotPageSize bounds how many rows a single snapshot page pulls
// before yielding, so the snapshot phase can report progress and so a
// single enormous table cannot hold a connection open indefinitely.
const snapshotPageSize = 5000

// SnapshotSource is anything the snapshot phase can page rows out of: a
// MySQL or Postgres *sql.DB, behind one interface so buildSnapshotPage's
// query construction (via squirrel) is shared between engines.
type SnapshotSource interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// buildSnapshotPage constructs "SELECT cols FROM table ORDER BY pk LIMIT
// size OFFSET offset" with squirrel instead of hand-formatted strings,
// giving one placeholder-safe query builder shared by both upstream
// engines (spec.md §4.6 step 2: "copy every table row-by-row into its
// base via TableOperation::Insert batches").
func buildSnapshotPage(table string, cols []string, pkCol string, offset int) (string, []any, error) {
	return sq.Select(cols...).
		From(table).
		OrderBy(pkCol).
		Limit(snapshotPageSize).
		Offset(uint64(offset)).
		ToSql()
}

// ScanPage runs one page of the snapshot scan against src and decodes
// each row into a value.Row using decode, returning fewer than
// snapshotPageSize rows only on the final page.
func ScanPage(ctx context.Context, src SnapshotSource, table string, cols []string, pkCol string, offset int, decode func(*sql.Rows) (value.Row, error)) ([]value.Row, error) {
	query, args, err := buildSnapshotPage(table, cols, pkCol, offset)
	if err != nil {
		return nil, err
	}
	rows, err := src.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []value.Row
	for rows.Next() {
		r, err := decode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
