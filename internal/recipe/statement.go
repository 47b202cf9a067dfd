package recipe

import (
	"hash/fnv"
	"regexp"
	"strconv"
	"strings"

	"github.com/flowmesh/dataflow/internal/ferr"
	"vitess.io/vitess/go/vt/sqlparser"
)

// Kind distinguishes the two statement shapes a recipe installs (spec.md
// §2 item 7's "tables, views, cached queries" — views and cached queries
// are unified here since both lower through the QG Builder onto a
// Reader).
type Kind int

const (
	KindTable Kind = iota
	KindCache
)

// Statement is one parsed line of a recipe (spec.md §4.3: "{version,
// statements[], aliases: name->node_index, ...}").
type Statement struct {
	Kind    Kind
	Name    string
	Text    string
	Columns []string          // KindTable: column names in declared order
	Select  *sqlparser.Select // KindCache: the query to materialize
}

// cacheHeaderRe recognizes the "CREATE CACHE [name] FROM <select>"
// extension recipes use on top of standard SQL; vitess's grammar has no
// notion of a cached-query statement so the SELECT half is sliced out
// textually and parsed on its own.
var cacheHeaderRe = regexp.MustCompile(`(?is)^create\s+cache\s+(?:(\w+)\s+)?from\s+(.*)$`)

// parseStatements splits text into individual statements and parses each,
// grounded on nethalo-dbsafe's internal/parser/sql.go dispatch over
// sqlparser.Parse's returned AST type.
func parseStatements(text string) ([]Statement, error) {
	pieces, err := sqlparser.SplitStatementToPieces(text)
	if err != nil {
		return nil, ferr.Wrap(ferr.KindParse, "splitting recipe text", err)
	}

	out := make([]Statement, 0, len(pieces))
	for _, piece := range pieces {
		trimmed := strings.TrimSpace(piece)
		if trimmed == "" {
			continue
		}
		stmt, err := parseOne(trimmed)
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
	}
	return out, nil
}

func parseOne(text string) (Statement, error) {
	if cacheHeaderRe.MatchString(text) {
		return parseCreateCache(text)
	}
	return parseCreateTable(text)
}

func parseCreateTable(text string) (Statement, error) {
	stmt, err := sqlparser.Parse(text)
	if err != nil {
		return Statement{}, ferr.Wrap(ferr.KindParse, "parsing recipe statement "+strconv.Quote(text), err)
	}
	ct, ok := stmt.(*sqlparser.CreateTable)
	if !ok {
		return Statement{}, ferr.Newf(ferr.KindUnsupported, "statement is neither CREATE TABLE nor CREATE CACHE: %q", text)
	}
	var cols []string
	for _, c := range ct.TableSpec.Columns {
		cols = append(cols, c.Name.String())
	}
	return Statement{Kind: KindTable, Name: ct.Table.Name.String(), Text: text, Columns: cols}, nil
}

func parseCreateCache(text string) (Statement, error) {
	m := cacheHeaderRe.FindStringSubmatch(strings.TrimSuffix(strings.TrimSpace(text), ";"))
	if m == nil {
		return Statement{}, ferr.Newf(ferr.KindUnsupported, "malformed CREATE CACHE statement: %q", text)
	}
	name, selectText := m[1], m[2]

	stmt, err := sqlparser.Parse(selectText)
	if err != nil {
		return Statement{}, ferr.Wrap(ferr.KindParse, "parsing CREATE CACHE FROM clause "+strconv.Quote(selectText), err)
	}
	sel, ok := stmt.(*sqlparser.Select)
	if !ok {
		return Statement{}, ferr.Newf(ferr.KindUnsupported, "CREATE CACHE FROM must be a SELECT: %q", selectText)
	}
	if name == "" {
		name = "q_" + anonymousName(selectText)
	}
	return Statement{Kind: KindCache, Name: name, Text: text, Select: sel}, nil
}

// anonymousName derives a stable alias for a cached query installed
// without an explicit name, so repeated extend() calls with the same text
// resolve to the same alias instead of accumulating duplicates.
func anonymousName(selectText string) string {
	h := fnv.New64a()
	h.Write([]byte(selectText))
	return strconv.FormatUint(h.Sum64(), 16)
}
