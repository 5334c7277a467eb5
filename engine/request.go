package engine

import (
	"github.com/sqldef/powerquery/connector"
	"github.com/sqldef/powerquery/connector/folderconn"
	"github.com/sqldef/powerquery/connector/odataconn"
	"github.com/sqldef/powerquery/connector/rangeconn"
	"github.com/sqldef/powerquery/connector/sqlconn"
	"github.com/sqldef/powerquery/folding/odatafold"
	"github.com/sqldef/powerquery/pqerr"
	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/value"
)

// connectorIDFor names the connector registry key a source resolves
// against. Range/Table/Database/Odata/Folder match the reference
// connectors' own ID constants; the remaining source kinds have no
// reference implementation (SPEC_FULL.md's scope), so a caller wiring
// one in registers it under the matching lowercase convention below.
func connectorIDFor(kind query.SourceKind) (string, error) {
	switch kind {
	case query.SourceRange, query.SourceTable:
		return rangeconn.ID, nil
	case query.SourceDatabase:
		return sqlconn.ID, nil
	case query.SourceOdata:
		return odataconn.ID, nil
	case query.SourceFolder:
		return folderconn.ID, nil
	case query.SourceCsv:
		return "csv", nil
	case query.SourceJson:
		return "json", nil
	case query.SourceParquet:
		return "parquet", nil
	case query.SourceApi:
		return "api", nil
	case query.SourceSharePoint:
		return "sharepoint", nil
	default:
		return "", pqerr.New(pqerr.KindInvalidArgument, "engine: unsupported source kind")
	}
}

// buildRequest translates a query.Source into the connector.Request its
// registered connector expects. fold carries the already-rendered
// folding output (nil if folding didn't apply, is disabled, or the
// source kind doesn't fold), so a DatabaseSource/OdataSource request
// reflects the folded SQL/query-string rather than the source's raw text.
func buildRequest(connectorID string, source query.Source, fold *foldResult) (connector.Request, error) {
	switch source.Kind {
	case query.SourceRange:
		r := source.Range
		return connector.Request{ConnectorID: connectorID, Params: rangeconn.RangeRequest{Values: r.Values, HasHeaders: r.HasHeaders}}, nil
	case query.SourceTable:
		return connector.Request{ConnectorID: connectorID, Params: rangeconn.TableRequest{Name: source.Table.Name}}, nil
	case query.SourceDatabase:
		d := source.Database
		sql := d.Sql
		var args []any
		if fold != nil {
			sql = fold.sql
			args = toAnyArgs(fold.args)
		}
		return connector.Request{ConnectorID: connectorID, Params: sqlconn.Request{
			ConnectionID: d.ConnectionID,
			Connection:   d.Connection,
			Dialect:      sqlconn.Dialect(d.Dialect),
			Sql:          sql,
			Args:         args,
		}}, nil
	case query.SourceOdata:
		o := source.Odata
		url := o.Url
		if fold != nil {
			url += fold.odataQuery
		}
		return connector.Request{ConnectorID: connectorID, Params: odataconn.Request{Url: url, Headers: o.Headers, RowsPath: o.RowsPath}}, nil
	case query.SourceFolder:
		f := source.Folder
		req := folderconn.Request{Path: f.Path}
		if f.Opts != nil {
			req.Recursive = f.Opts.Recursive
			req.FileExtensions = f.Opts.FileExtensions
		}
		return connector.Request{ConnectorID: connectorID, Params: req}, nil
	case query.SourceCsv:
		return connector.Request{ConnectorID: connectorID, Params: source.Csv}, nil
	case query.SourceJson:
		return connector.Request{ConnectorID: connectorID, Params: source.Json}, nil
	case query.SourceParquet:
		return connector.Request{ConnectorID: connectorID, Params: source.Parquet}, nil
	case query.SourceApi:
		return connector.Request{ConnectorID: connectorID, Params: source.Api}, nil
	case query.SourceSharePoint:
		return connector.Request{ConnectorID: connectorID, Params: source.SharePoint}, nil
	default:
		return connector.Request{}, pqerr.New(pqerr.KindInvalidArgument, "engine: unsupported source kind")
	}
}

// toAnyArgs unwraps bound bind values into the driver-agnostic []any
// database/sql.QueryContext expects; sqlconn threads these straight
// through to the driver unexamined.
func toAnyArgs(args []value.Value) []any {
	out := make([]any, len(args))
	for i, v := range args {
		switch v.Kind() {
		case value.KindNull:
			out[i] = nil
		case value.KindBool:
			b, _ := v.AsBool()
			out[i] = b
		case value.KindNumber:
			n, _ := v.AsNumber()
			out[i] = n
		case value.KindText:
			s, _ := v.AsText()
			out[i] = s
		default:
			out[i] = v.String()
		}
	}
	return out
}

// foldResult carries a folding planner's rendered output back to
// buildRequest, independent of which planner produced it.
type foldResult struct {
	sql        string
	args       []value.Value
	odataQuery string
}

// odataFoldResult renders an odatafold.Builder's output into the URL
// query-string suffix buildRequest appends to the OdataSource's base URL.
func odataFoldResult(b *odatafold.Builder) *foldResult {
	return &foldResult{odataQuery: b.Render()}
}
