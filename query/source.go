package query

import "github.com/sqldef/powerquery/value"

// SourceKind identifies which QuerySource variant is populated.
type SourceKind int

const (
	SourceRange SourceKind = iota
	SourceTable
	SourceCsv
	SourceJson
	SourceParquet
	SourceFolder
	SourceDatabase
	SourceApi
	SourceOdata
	SourceSharePoint
	SourceQueryRef
)

// Source is the tagged union of spec §3's QuerySource. Exactly the field
// matching Kind is meaningful; Kind is set by the matching constructor.
type Source struct {
	Kind SourceKind

	Range    *RangeSource
	Table    *TableSource
	Csv      *CsvSource
	Json     *JsonSource
	Parquet  *ParquetSource
	Folder   *FolderSource
	Database *DatabaseSource
	Api      *ApiSource
	Odata    *OdataSource
	SharePoint *SharePointSource
	QueryRef *QueryRefSource
}

// RangeSource is a literal grid, e.g. a spreadsheet selection.
type RangeSource struct {
	Values      [][]value.Value
	HasHeaders  bool
}

// TableSource names a host-resolved workbook table (see connector.TableAdapter).
type TableSource struct {
	Name string
}

type FileOptions struct {
	Delimiter      string // Csv only; defaults to ","
	Encoding       string
	SkipRows       int
}

type CsvSource struct {
	Path    string
	Options FileOptions
}

type JsonSource struct {
	Path     string
	JsonPath string // optional JSONPath-ish selector into the document
}

type ParquetSource struct {
	Path    string
	Options *FileOptions
}

type FolderOptions struct {
	Recursive      bool
	FileExtensions []string
}

type FolderSource struct {
	Path string
	Opts *FolderOptions
}

type DatabaseSource struct {
	ConnectionID string // optional stable identity, used for SQL folding join-same-connection checks
	Connection   string // connection string/DSN
	Sql          string
	Dialect      string // "postgres" | "mysql" | "sqlserver" | "sqlite"
	Columns      []string // optional known output schema
}

type AuthSpec struct {
	Kind string // e.g. "basic", "bearer", "apiKey"
	// Credentials are resolved through the host credential hook, never
	// embedded here beyond a stable non-secret reference.
	CredentialRef string
}

type ApiSource struct {
	Url     string
	Method  string
	Headers map[string]string
	Auth    *AuthSpec
}

type OdataSource struct {
	Url      string
	Headers  map[string]string
	Auth     *AuthSpec
	RowsPath string // optional JSON path to the rows array in the response envelope
}

type SharePointSource struct {
	SiteUrl string
	Mode    string
	Opts    map[string]string
}

// QueryRefSource references another registered query by id; the engine
// (and refresh orchestrator) resolve it via the shared execution context.
type QueryRefSource struct {
	QueryID string
}

func NewRangeSource(values [][]value.Value, hasHeaders bool) Source {
	return Source{Kind: SourceRange, Range: &RangeSource{Values: values, HasHeaders: hasHeaders}}
}

func NewTableSource(name string) Source {
	return Source{Kind: SourceTable, Table: &TableSource{Name: name}}
}

func NewDatabaseSource(d DatabaseSource) Source {
	return Source{Kind: SourceDatabase, Database: &d}
}

func NewOdataSource(o OdataSource) Source {
	return Source{Kind: SourceOdata, Odata: &o}
}

func NewQueryRefSource(queryID string) Source {
	return Source{Kind: SourceQueryRef, QueryRef: &QueryRefSource{QueryID: queryID}}
}
