// Package sqlconn is the reference "sql" connector (spec §6.1,
// "for SQL only, optional get_connection_identity"). It dispatches by
// dialect the same way database.Database's per-adapter construction does
// in the teacher codebase, one blank import per driver registering
// itself with database/sql.
package sqlconn

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/sqldef/powerquery/connector"
	"github.com/sqldef/powerquery/pqerr"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

const ID = "sql"

// Dialect mirrors the four dialects the folding planner supports
// (spec §4.6).
type Dialect string

const (
	Postgres  Dialect = "postgres"
	MySQL     Dialect = "mysql"
	SQLServer Dialect = "sqlserver"
	SQLite    Dialect = "sqlite"
)

func driverName(d Dialect) (string, error) {
	switch d {
	case Postgres:
		return "postgres", nil
	case MySQL:
		return "mysql", nil
	case SQLServer:
		return "sqlserver", nil
	case SQLite:
		return "sqlite", nil
	default:
		return "", pqerr.New(pqerr.KindInvalidArgument, fmt.Sprintf("sqlconn: unknown dialect %q", d))
	}
}

// Request is the Params payload for a sql-sourced query: an already
// dialect-rewritten SQL string (folding's job) plus positional
// parameters.
type Request struct {
	ConnectionID string
	Connection   string
	Dialect      Dialect
	Sql          string
	Args         []any
}

// Opener abstracts sql.Open so tests can substitute a fake without a
// real network dial; the reference implementation below just calls
// sql.Open directly.
type Opener func(driver, dsn string) (*sql.DB, error)

type Connector struct {
	open  Opener
	pools map[string]*sql.DB
}

func New() *Connector {
	return &Connector{open: sql.Open, pools: map[string]*sql.DB{}}
}

func NewWithOpener(open Opener) *Connector {
	return &Connector{open: open, pools: map[string]*sql.DB{}}
}

func (c *Connector) ID() string             { return ID }
func (c *Connector) PermissionKind() string { return "database" }

func (c *Connector) CacheKey(req connector.Request) (any, error) {
	r, ok := req.Params.(Request)
	if !ok {
		return nil, pqerr.New(pqerr.KindInvalidArgument, "sqlconn: unrecognized request payload")
	}
	identity, _ := c.GetConnectionIdentity(r.Connection)
	return map[string]any{
		"kind":       "sql",
		"dialect":    string(r.Dialect),
		"connection": identity,
		"sql":        r.Sql,
		"args":       r.Args,
	}, nil
}

// GetConnectionIdentity returns a stable key for the connection string
// without leaking credentials embedded in it (e.g. DSN passwords),
// letting the folding planner recognize two sources sharing a
// connection without comparing raw DSNs in cache keys or logs.
func (c *Connector) GetConnectionIdentity(connection string) (string, error) {
	sum := sha256.Sum256([]byte(connection))
	return hex.EncodeToString(sum[:]), nil
}

func (c *Connector) db(driver, dsn string) (*sql.DB, error) {
	key := driver + "|" + dsn
	if db, ok := c.pools[key]; ok {
		return db, nil
	}
	db, err := c.open(driver, dsn)
	if err != nil {
		return nil, err
	}
	c.pools[key] = db
	return db, nil
}

func (c *Connector) Execute(ctx context.Context, req connector.Request, host connector.Host) (connector.Result, error) {
	r, ok := req.Params.(Request)
	if !ok {
		return connector.Result{}, pqerr.New(pqerr.KindInvalidArgument, "sqlconn: unrecognized request payload")
	}
	driver, err := driverName(r.Dialect)
	if err != nil {
		return connector.Result{}, err
	}
	_, pooled := c.pools[driver+"|"+r.Connection]
	db, err := c.db(driver, r.Connection)
	if err != nil {
		return connector.Result{}, pqerr.Wrap(pqerr.KindConnectorFailure, "sqlconn: opening connection", err)
	}
	if !pooled {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := db.PingContext(pctx)
		cancel()
		if err != nil {
			return connector.Result{}, pqerr.Wrap(pqerr.KindConnectorFailure, "sqlconn: connecting", err)
		}
	}

	rows, err := db.QueryContext(ctx, r.Sql, r.Args...)
	if err != nil {
		if ctx.Err() != nil {
			return connector.Result{}, pqerr.Wrap(pqerr.KindCancelled, "sqlconn: query cancelled", ctx.Err())
		}
		return connector.Result{}, pqerr.Wrap(pqerr.KindConnectorFailure, "sqlconn: query failed", err)
	}
	defer rows.Close()

	t, err := decodeRows(rows)
	if err != nil {
		return connector.Result{}, pqerr.Wrap(pqerr.KindConnectorFailure, "sqlconn: decoding rows", err)
	}
	return connector.Result{Table: t, Meta: connector.ResultMeta{RowCountKnown: true}}, nil
}

func decodeRows(rows *sql.Rows) (table.Table, error) {
	colNames, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	cols := make([]table.Column, len(colNames))
	for i, n := range colNames {
		cols[i] = table.Column{Name: n, Type: dataTypeForSQL(colTypes[i].DatabaseTypeName())}
	}

	var data [][]value.Value
	scanDest := make([]any, len(colNames))
	scanBuf := make([]sql.NullString, len(colNames))
	for i := range scanBuf {
		scanDest[i] = &scanBuf[i]
	}
	for rows.Next() {
		if err := rows.Scan(scanDest...); err != nil {
			return nil, err
		}
		row := make([]value.Value, len(colNames))
		for i, s := range scanBuf {
			if !s.Valid {
				row[i] = value.Null()
			} else {
				row[i] = value.Text(s.String)
			}
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return table.New(cols, data), nil
}

func dataTypeForSQL(dbType string) table.DataType {
	switch dbType {
	case "INT", "INT4", "INT8", "INTEGER", "BIGINT", "SMALLINT", "NUMERIC", "DECIMAL", "FLOAT", "DOUBLE", "REAL":
		return table.TypeNumber
	case "BOOL", "BOOLEAN":
		return table.TypeBoolean
	case "DATE":
		return table.TypeDate
	case "DATETIME", "TIMESTAMP", "TIMESTAMPTZ":
		return table.TypeDateTime
	default:
		return table.TypeText
	}
}

// GetSchema satisfies connector.SchemaProvider by querying a zero-row
// result set, the same trick the folding planner uses to type-check a
// foldable prefix without scanning data.
func (c *Connector) GetSchema(ctx context.Context, req connector.Request, host connector.Host) (connector.Schema, error) {
	r, ok := req.Params.(Request)
	if !ok {
		return connector.Schema{}, pqerr.New(pqerr.KindInvalidArgument, "sqlconn: unrecognized request payload")
	}
	limited := Request{ConnectionID: r.ConnectionID, Connection: r.Connection, Dialect: r.Dialect, Sql: wrapForSchema(r), Args: r.Args}
	res, err := c.Execute(ctx, connector.Request{ConnectorID: ID, Params: limited}, host)
	if err != nil {
		return connector.Schema{}, err
	}
	return connector.Schema{Columns: res.Table.Columns()}, nil
}

func wrapForSchema(r Request) string {
	switch r.Dialect {
	case SQLServer:
		return fmt.Sprintf("SELECT TOP 0 * FROM (%s) AS schema_probe", r.Sql)
	default:
		return fmt.Sprintf("SELECT * FROM (%s) AS schema_probe LIMIT 0", r.Sql)
	}
}

// pingTimeout bounds how long Execute's first connection attempt can
// take before a DSN typo turns into a hung step.
const pingTimeout = 5 * time.Second

var _ connector.Connector = (*Connector)(nil)
var _ connector.ConnectionIdentifier = (*Connector)(nil)
var _ connector.SchemaProvider = (*Connector)(nil)
