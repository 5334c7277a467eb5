// Package rangeconn is the reference connector for the "range" and
// "table" query sources: literal in-memory grids and host-resolved
// workbook tables. Both are already materialized, so Execute does no
// I/O; it errors on a malformed request, a cancelled context, a missing
// table adapter, or a failed table lookup.
package rangeconn

import (
	"context"

	"github.com/sqldef/powerquery/connector"
	"github.com/sqldef/powerquery/pqerr"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

const ID = "range"

// RangeRequest is the Params payload for a range-sourced query.
type RangeRequest struct {
	Values     [][]value.Value
	HasHeaders bool
}

// TableRequest is the Params payload for a table-sourced query, resolved
// through the host's TableAdapter.
type TableRequest struct {
	Name string
}

type Connector struct{}

func New() *Connector { return &Connector{} }

func (c *Connector) ID() string             { return ID }
func (c *Connector) PermissionKind() string { return "range" }

func (c *Connector) CacheKey(req connector.Request) (any, error) {
	switch p := req.Params.(type) {
	case RangeRequest:
		keys := make([]string, 0, len(p.Values))
		for _, row := range p.Values {
			keys = append(keys, value.CompositeKey(row...))
		}
		return map[string]any{"kind": "range", "hasHeaders": p.HasHeaders, "rows": keys}, nil
	case TableRequest:
		return map[string]any{"kind": "table", "name": p.Name}, nil
	default:
		return nil, pqerr.New(pqerr.KindInvalidArgument, "rangeconn: unrecognized request payload")
	}
}

func (c *Connector) Execute(ctx context.Context, req connector.Request, host connector.Host) (connector.Result, error) {
	select {
	case <-ctx.Done():
		return connector.Result{}, pqerr.Wrap(pqerr.KindCancelled, "rangeconn: execute cancelled", ctx.Err())
	default:
	}

	switch p := req.Params.(type) {
	case RangeRequest:
		return connector.Result{Table: buildRangeTable(p), Meta: connector.ResultMeta{RowCountKnown: true}}, nil
	case TableRequest:
		if host.Tables == nil {
			return connector.Result{}, pqerr.New(pqerr.KindConnectorFailure, "rangeconn: no table adapter registered on host")
		}
		t, err := host.Tables.GetTable(p.Name)
		if err != nil {
			return connector.Result{}, pqerr.Wrap(pqerr.KindConnectorFailure, "rangeconn: resolving table "+p.Name, err)
		}
		return connector.Result{Table: t, Meta: connector.ResultMeta{RowCountKnown: true}}, nil
	default:
		return connector.Result{}, pqerr.New(pqerr.KindInvalidArgument, "rangeconn: unrecognized request payload")
	}
}

// GetSourceState implements connector.SourceStater for table sources
// only; a literal range has no external state to validate against.
func (c *Connector) GetSourceState(ctx context.Context, req connector.Request, host connector.Host, known connector.KnownState) (connector.SourceState, error) {
	p, ok := req.Params.(TableRequest)
	if !ok || host.Tables == nil {
		return connector.SourceState{}, nil
	}
	sig, err := host.Tables.GetTableSignature(p.Name)
	if err != nil {
		return connector.SourceState{}, pqerr.Wrap(pqerr.KindConnectorFailure, "rangeconn: table signature", err)
	}
	return connector.SourceState{Etag: sig, HasEtag: true}, nil
}

func buildRangeTable(p RangeRequest) table.Table {
	if !p.HasHeaders {
		width := 0
		for _, r := range p.Values {
			if len(r) > width {
				width = len(r)
			}
		}
		cols := make([]table.Column, width)
		for i := range cols {
			cols[i] = table.Column{Name: defaultColumnName(i)}
		}
		return table.New(cols, p.Values)
	}
	if len(p.Values) == 0 {
		return table.New(nil, nil)
	}
	header := p.Values[0]
	cols := make([]table.Column, len(header))
	for i, h := range header {
		cols[i] = table.Column{Name: h.String()}
	}
	return table.New(cols, p.Values[1:])
}

func defaultColumnName(i int) string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	if i < 26 {
		return string(letters[i])
	}
	return string(letters[i/26-1]) + string(letters[i%26])
}

var _ connector.Connector = (*Connector)(nil)
var _ connector.SourceStater = (*Connector)(nil)
