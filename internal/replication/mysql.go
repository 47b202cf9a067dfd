package replication

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/go-mysql-org/go-mysql/canal"
	"github.com/go-mysql-org/go-mysql/mysql"
	binlog "github.com/go-mysql-org/go-mysql/replication"
	_ "github.com/go-sql-driver/mysql"

	"github.com/flowmesh/dataflow/internal/value"
)

// MySQLConfig names the upstream connection the way spec.md §4.6's
// "Source" configuration table describes it for the MySQL engine.
type MySQLConfig struct {
	Addr     string // host:port
	User     string
	Password string
	Database string
	ServerID uint32 // distinct id this replicator presents to the master
}

// MySQLSource implements Source against a MySQL primary: snapshot via a
// plain *sql.DB with squirrel-built paging queries, steady-state via
// go-mysql-org/go-mysql's canal row-based binlog decoder. Grounded on
// block-spirit's Runner (other_examples), which pairs a *sql.DB copy phase
// with a go-mysql-org/go-mysql-backed repl.Client catch-up phase; canal is
// used here directly instead of spirit's repl wrapper since this
// Replicator has no chunked-copy/checksum responsibilities to share code
// with.
type MySQLSource struct {
	cfg MySQLConfig
	db  *sql.DB

	mu      sync.Mutex
	pkCols  map[string]string
	allCols map[string][]string
}

func NewMySQLSource(cfg MySQLConfig) (*MySQLSource, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true", cfg.User, cfg.Password, cfg.Addr, cfg.Database)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	return &MySQLSource{
		cfg:     cfg,
		db:      db,
		pkCols:  make(map[string]string),
		allCols: make(map[string][]string),
	}, nil
}

func (m *MySQLSource) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return m.db.QueryContext(ctx, query, args...)
}

// Snapshot pages every table with ScanPage and reports the binlog position
// the server was at when the snapshot started (spec.md §4.6 step 2: "get
// the current log position before the scan to avoid missing interleaved
// writes").
func (m *MySQLSource) Snapshot(ctx context.Context, tables []string, emit func(table string, ops []TableOperation) error) (Offset, error) {
	var file string
	var pos uint32
	row := m.db.QueryRowContext(ctx, "SHOW MASTER STATUS")
	if err := row.Scan(&file, &pos, new(string), new(sql.NullString), new(sql.NullString)); err != nil {
		return Zero, fmt.Errorf("mysql snapshot: SHOW MASTER STATUS: %w", err)
	}
	snapshotPos := Offset{Engine: EngineMySQL, LogName: file, Position: uint64(pos)}

	for _, table := range tables {
		cols, pk, err := m.describeTable(ctx, table)
		if err != nil {
			return Zero, err
		}
		offset := 0
		for {
			rows, err := ScanPage(ctx, m, table, cols, pk, offset, func(r *sql.Rows) (value.Row, error) {
				return scanRowAsValues(r, len(cols))
			})
			if err != nil {
				return Zero, err
			}
			if len(rows) == 0 {
				break
			}
			ops := make([]TableOperation, len(rows))
			for i, r := range rows {
				ops[i] = TableOperation{Kind: TableOpInsert, Row: valuesToAny(r)}
			}
			if err := emit(table, ops); err != nil {
				return Zero, err
			}
			if len(rows) < snapshotPageSize {
				break
			}
			offset += len(rows)
		}
	}
	return snapshotPos, nil
}

func (m *MySQLSource) describeTable(ctx context.Context, table string) ([]string, string, error) {
	m.mu.Lock()
	if cols, ok := m.allCols[table]; ok {
		pk := m.pkCols[table]
		m.mu.Unlock()
		return cols, pk, nil
	}
	m.mu.Unlock()

	rows, err := m.db.QueryContext(ctx, fmt.Sprintf("SHOW COLUMNS FROM `%s`", table))
	if err != nil {
		return nil, "", fmt.Errorf("mysql describe %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	var pk string
	for rows.Next() {
		var field, colType, null, key string
		var deflt, extra sql.NullString
		if err := rows.Scan(&field, &colType, &null, &key, &deflt, &extra); err != nil {
			return nil, "", err
		}
		cols = append(cols, field)
		if key == "PRI" && pk == "" {
			pk = field
		}
	}
	if pk == "" && len(cols) > 0 {
		pk = cols[0]
	}

	m.mu.Lock()
	m.allCols[table] = cols
	m.pkCols[table] = pk
	m.mu.Unlock()
	return cols, pk, nil
}

// StreamFrom tails the binlog with a canal.Canal, translating its
// row-change callbacks into Actions (spec.md §4.6 step 3/4).
func (m *MySQLSource) StreamFrom(ctx context.Context, from Offset, emit func(Action) error) error {
	cfg := canal.NewDefaultConfig()
	cfg.Addr = m.cfg.Addr
	cfg.User = m.cfg.User
	cfg.Password = m.cfg.Password
	cfg.ServerID = m.cfg.ServerID
	cfg.Dump.ExecutionPath = "" // incremental only; the snapshot phase already copied rows
	cfg.IncludeTableRegex = []string{".*"}

	c, err := canal.NewCanal(cfg)
	if err != nil {
		return fmt.Errorf("mysql canal: %w", err)
	}
	defer c.Close()

	handler := &mysqlEventHandler{ctx: ctx, emit: emit}
	c.SetEventHandler(handler)

	startPos := mysql.Position{Name: from.LogName, Pos: uint32(from.Position)}
	if from.IsZero() {
		pos, err := c.GetMasterPos()
		if err != nil {
			return fmt.Errorf("mysql GetMasterPos: %w", err)
		}
		startPos = pos
	}

	done := make(chan error, 1)
	go func() { done <- c.RunFrom(startPos) }()

	select {
	case <-ctx.Done():
		c.Close()
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func (m *MySQLSource) Close() error { return m.db.Close() }

type mysqlEventHandler struct {
	canal.DummyEventHandler
	ctx  context.Context
	emit func(Action) error
}

func (h *mysqlEventHandler) OnRow(e *canal.RowsEvent) error {
	table := e.Table.Schema + "." + e.Table.Name
	var ops []TableOperation
	switch e.Action {
	case canal.InsertAction:
		for _, row := range e.Rows {
			ops = append(ops, TableOperation{Kind: TableOpInsert, Row: row})
		}
	case canal.DeleteAction:
		for _, row := range e.Rows {
			ops = append(ops, TableOperation{Kind: TableOpDelete, Old: row})
		}
	case canal.UpdateAction:
		for i := 0; i+1 < len(e.Rows); i += 2 {
			ops = append(ops, TableOperation{Kind: TableOpUpdate, Old: e.Rows[i], Row: e.Rows[i+1]})
		}
	default:
		return nil
	}
	return h.emit(Action{Kind: ActionTable, Table: table, Ops: ops})
}

func (h *mysqlEventHandler) OnDDL(header *binlog.EventHeader, nextPos mysql.Position, queryEvent *binlog.QueryEvent) error {
	ddl := strings.TrimSpace(string(queryEvent.Query))
	if ddl == "" {
		return nil
	}
	return h.emit(Action{
		Kind: ActionSchemaChange,
		DDL:  ddl,
		Offset: Offset{
			Engine:   EngineMySQL,
			LogName:  nextPos.Name,
			Position: uint64(nextPos.Pos),
		},
	})
}

func (h *mysqlEventHandler) OnPosSynced(header *binlog.EventHeader, pos mysql.Position, set mysql.GTIDSet, force bool) error {
	return h.emit(Action{
		Kind: ActionLogPosition,
		Offset: Offset{
			Engine:   EngineMySQL,
			LogName:  pos.Name,
			Position: uint64(pos.Pos),
		},
	})
}

func (h *mysqlEventHandler) String() string { return "flowmesh.replication.mysqlEventHandler" }

func scanRowAsValues(rows *sql.Rows, n int) (value.Row, error) {
	dest := make([]any, n)
	ptrs := make([]any, n)
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	out := make(value.Row, n)
	for i, v := range dest {
		out[i] = anyToValue(v)
	}
	return out, nil
}

func anyToValue(v any) value.Value {
	switch t := v.(type) {
	case nil:
		return value.Null
	case int64:
		return value.NewInt64(t)
	case []byte:
		return value.NewText(string(t))
	case string:
		return value.NewText(t)
	default:
		return value.NewText(fmt.Sprintf("%v", t))
	}
}

func valuesToAny(r value.Row) []any {
	out := make([]any, len(r))
	for i, v := range r {
		out[i] = v
	}
	return out
}
