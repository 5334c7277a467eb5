// Package connector defines the capability contract the execution engine
// calls against pluggable data sources (spec §6.1). Connector
// implementations — file I/O, HTTP clients, SQL drivers — are deliberately
// out of scope of the core; this package specifies only the boundary,
// plus a small set of reference implementations (connector/sqlconn,
// connector/rangeconn, connector/folderconn, connector/odataconn,
// connector/testconn) used for testing and as a template for real ones.
package connector

import (
	"context"

	"github.com/sqldef/powerquery/table"
)

// Connector is the abstraction layer over heterogeneous data sources,
// mirroring how database.Database abstracts over SQL dialects: one
// interface, several reference implementations, never a type switch at
// the call site.
type Connector interface {
	// ID is stable, e.g. "file" | "http" | "odata" | "sql".
	ID() string

	// PermissionKind names the permission class checked via the host's
	// on_permission_request hook before Execute runs.
	PermissionKind() string

	// CacheKey returns a JSON-safe, stable value folded into the overall
	// cache.Key signature for requests against this connector.
	CacheKey(req Request) (any, error)

	// Execute loads the data described by req and returns a table plus
	// source metadata. ctx carries cancellation; Host carries resolved
	// credentials and the logical clock.
	Execute(ctx context.Context, req Request, host Host) (Result, error)
}

// SourceStater is an optional capability: connectors whose backend
// exposes an ETag or last-modified timestamp implement it so the cache
// manager can validate entries without re-executing (spec §6.1, §6.3).
type SourceStater interface {
	GetSourceState(ctx context.Context, req Request, host Host, known KnownState) (SourceState, error)
}

// SchemaProvider is an optional capability used by the folding planners
// to type-check a foldable prefix without materializing data.
type SchemaProvider interface {
	GetSchema(ctx context.Context, req Request, host Host) (Schema, error)
}

// ConnectionIdentifier is an optional SQL-only capability: connectors
// sharing a connection identity let the SQL folding planner recognize
// same-connection joins as foldable.
type ConnectionIdentifier interface {
	GetConnectionIdentity(connection string) (string, error)
}

// StreamingConnector is the optional streaming extension for
// file-backed connectors (spec §6.1): readers that can hand the
// streaming pipeline a byte/row stream instead of a materialized table.
type StreamingConnector interface {
	OpenFile(ctx context.Context, req Request, host Host) (FileHandle, error)
}

// FileHandle is an opaque decoding handle returned by OpenFile; Arrow and
// Parquet decoding live behind it, never inspected by the engine itself.
type FileHandle interface {
	ReadTextStream(ctx context.Context) (<-chan string, <-chan error)
	ReadBinaryStream(ctx context.Context) (<-chan []byte, <-chan error)
	Close() error
}

// Request is the opaque, connector-specific request payload. Concrete
// connectors define their own request struct and type-assert it out of
// Params; the engine only ever threads Request through unexamined,
// keyed by the Source it was built from.
type Request struct {
	ConnectorID string
	Params      any
}

// Result is what Execute returns: the loaded table plus the metadata the
// engine folds into ExecutionMeta.
type Result struct {
	Table table.Table
	Meta  ResultMeta
}

// ResultMeta carries source-level facts the engine can't derive itself.
type ResultMeta struct {
	RowCountKnown bool
	SourceState   SourceState
}

// KnownState is what the engine already has cached, passed to
// GetSourceState so connectors can short-circuit (e.g. a HEAD request
// comparing If-None-Match) instead of always re-fetching.
type KnownState struct {
	KnownEtag             string
	KnownSourceTimestamp  int64 // unix millis; 0 means unknown
	HasKnownSourceTimestamp bool
}

// SourceState is the validation tuple of spec §6.1/§6.3: an opaque ETag
// and/or a source-reported timestamp. Either or both may be absent; the
// cache manager treats absence as "cannot validate, must TTL-expire
// instead".
type SourceState struct {
	Etag                 string
	HasEtag              bool
	SourceTimestamp      int64
	HasSourceTimestamp   bool
}

// Schema is the lightweight column/type description folding planners use
// to decide whether a step can be pushed down without running it.
type Schema struct {
	Columns []table.Column
}

// Host bundles what Execute needs from its caller: a cancellation
// signal already folded into ctx, resolved credentials, and a logical
// clock so cache TTL tests can inject time (spec §6.1: "{ signal,
// credentials, now }").
type Host struct {
	Credentials *Credentials
	Now         func() int64 // unix millis
	Permissions PermissionHook
	Tables      TableAdapter
}

// Credentials is what the on_credential_request hook returns. CredentialID
// is stable and safe to fold into a cache key; Secret never is.
type Credentials struct {
	CredentialID string
	Secret       map[string]string
}

// PermissionHook mirrors spec §6.2's on_permission_request; absence of a
// registered hook at the session level means "allow" (see session.Session).
type PermissionHook func(kind string, details map[string]any) bool

// CredentialHook mirrors spec §6.2's on_credential_request.
type CredentialHook func(ctx context.Context, connectorID string, req Request) (*Credentials, error)

// TableAdapter resolves a host-provided named workbook table, used by the
// "table" query source and by get_table_signature for cache keys of
// table-sourced queries.
type TableAdapter interface {
	GetTable(name string) (table.Table, error)
	GetTableSignature(name string) (string, error)
}
