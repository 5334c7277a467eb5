// Package odatafold implements spec §4.6's OData folding: accumulating a
// query's foldable step prefix into a `$select/$filter/$orderby/$top`
// query string against an OdataSource, the protocol sibling of
// folding/sqlfold's SQL accumulation.
package odatafold

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/sqldef/powerquery/folding"
	"github.com/sqldef/powerquery/query"
)

// Builder accumulates one foldable OData query string. Once take() sets
// $top, any operation that would need to see rows before that limit
// (another select/filter/sort) is refused, mirroring sqlfold.Builder's
// scope decision for the same reason: a single flat request over a
// wrapped one.
type Builder struct {
	selectCols []string
	filter     string
	orderBy    []string
	top        *int
	topSet     bool
}

// New builds an empty Builder; there is no base fragment to thread
// through unlike sqlfold, since an OData request's resource path is
// already fixed by the OdataSource and never reparsed here.
func New() *Builder {
	return &Builder{}
}

// TryFold implements folding.Folder for one step.
func (b *Builder) TryFold(op query.Operation) (bool, folding.Diagnostic) {
	if b.topSet && opNeedsRowsBeforeTop(op.Kind) {
		return false, folding.Diagnostic{Message: fmt.Sprintf("%v cannot fold after $top is already applied", op.Kind)}
	}
	switch op.Kind {
	case query.OpSelectColumns:
		return b.foldSelectColumns(op.SelectColumns)
	case query.OpFilterRows:
		return b.foldFilterRows(op.FilterRows)
	case query.OpSortRows:
		return b.foldSortRows(op.SortRows)
	case query.OpTake:
		return b.foldTake(op.Take)
	default:
		return false, folding.Diagnostic{}
	}
}

func opNeedsRowsBeforeTop(k query.OpKind) bool {
	switch k {
	case query.OpSelectColumns, query.OpFilterRows, query.OpSortRows, query.OpTake:
		return true
	default:
		return false
	}
}

func (b *Builder) foldSelectColumns(op *query.SelectColumnsOp) (bool, folding.Diagnostic) {
	if op == nil {
		return false, folding.Diagnostic{}
	}
	b.selectCols = op.Columns
	return true, folding.Diagnostic{}
}

func (b *Builder) foldFilterRows(op *query.FilterRowsOp) (bool, folding.Diagnostic) {
	if op == nil {
		return false, folding.Diagnostic{}
	}
	expr, ok := renderODataPredicate(op.Predicate)
	if !ok {
		return false, folding.Diagnostic{}
	}
	if b.filter == "" {
		b.filter = expr
	} else {
		b.filter = fmt.Sprintf("(%s) and (%s)", b.filter, expr)
	}
	return true, folding.Diagnostic{}
}

func (b *Builder) foldSortRows(op *query.SortRowsOp) (bool, folding.Diagnostic) {
	if op == nil || len(op.SortBy) == 0 {
		return false, folding.Diagnostic{}
	}
	var order []string
	for _, key := range op.SortBy {
		// OData's $orderby has no NULLS FIRST/LAST clause; a request for
		// one that doesn't match the server's own null placement simply
		// can't fold.
		if key.Nulls == query.NullsFirst {
			return false, folding.Diagnostic{}
		}
		dir := "asc"
		if key.Direction == query.Desc {
			dir = "desc"
		}
		order = append(order, fmt.Sprintf("%s %s", key.Column, dir))
	}
	b.orderBy = order
	return true, folding.Diagnostic{}
}

func (b *Builder) foldTake(op *query.TakeOp) (bool, folding.Diagnostic) {
	if op == nil {
		return false, folding.Diagnostic{}
	}
	n := op.N
	b.top = &n
	b.topSet = true
	return true, folding.Diagnostic{}
}

// Render assembles the final `?$select=...&$filter=...` query string, in
// the fixed select/filter/orderby/top order spec §4.6 prescribes rather
// than net/url.Values.Encode's alphabetical one.
func (b *Builder) Render() string {
	var parts []string
	if len(b.selectCols) > 0 {
		parts = append(parts, "$select="+url.QueryEscape(strings.Join(b.selectCols, ",")))
	}
	if b.filter != "" {
		parts = append(parts, "$filter="+url.QueryEscape(b.filter))
	}
	if len(b.orderBy) > 0 {
		parts = append(parts, "$orderby="+url.QueryEscape(strings.Join(b.orderBy, ",")))
	}
	if b.top != nil {
		parts = append(parts, fmt.Sprintf("$top=%d", *b.top))
	}
	if len(parts) == 0 {
		return ""
	}
	return "?" + strings.Join(parts, "&")
}
