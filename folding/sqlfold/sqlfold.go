// Package sqlfold implements spec §4.6's SQL folding: accumulating a
// query's foldable step prefix into one SELECT built against a
// DatabaseSource's base SQL, with per-dialect placeholder and LIMIT/TOP
// rendering (grounded on the teacher's per-dialect Database
// implementations, one behavior per adapter/mysql, database/mssql,
// database/sqlite3, sharing one capability contract).
package sqlfold

import (
	"fmt"
	"strings"

	"github.com/sqldef/powerquery/folding"
	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/steps"
	"github.com/sqldef/powerquery/value"
)

// ConnectionResolver answers whether a merge/append's right-hand query
// targets the same database connection identity as the query being
// folded (spec §4.6: "merge/append when right-hand queries target the
// *same* database connection identity").
type ConnectionResolver func(rightQueryID string) (tableExpr string, sameConnection bool)

// Builder accumulates one foldable SELECT. Once take/skip/remove_rows
// sets a row limit, any operation that would need to run after that
// limit (another filter, sort, group, or projection) is refused rather
// than folded into a wrapped subquery — a deliberate scope decision
// (see DESIGN.md) that trades a slightly shorter foldable prefix for a
// single flat, easily-rendered SELECT.
type Builder struct {
	Dialect    Dialect
	ResolveRef ConnectionResolver

	baseFrom string // the DatabaseSource's own SQL, used as "FROM (<base>) AS src"

	selectCols []selectItem // nil = SELECT *
	distinct   bool

	where []string
	args  []value.Value

	groupBy []string
	having  []string

	orderBy []string

	limit      *int
	limitSet   bool
	offset     *int
	joinClause string
	unionAll   []string

	rawFragments []string
}

type selectItem struct {
	expr string
	as   string
}

// rawToken stands in for a verbatim, opaque SQL fragment (the base
// source's own text, a joined right-hand query's text) while the rest
// of the statement is assembled. Opaque fragments are substituted back
// in only after placeholder rewriting and limit rendering have finished
// scanning everything *we* generated, so a jsonb `?` operator or a
// pre-existing bind placeholder inside someone else's raw SQL is never
// mistaken for one of ours.
func (b *Builder) rawToken(sql string) string {
	i := len(b.rawFragments)
	b.rawFragments = append(b.rawFragments, sql)
	return fmt.Sprintf("\x00RAW%d\x00", i)
}

func (b *Builder) resolveRawTokens(sql string) string {
	for i, frag := range b.rawFragments {
		sql = strings.ReplaceAll(sql, fmt.Sprintf("\x00RAW%d\x00", i), frag)
	}
	return sql
}

// New builds a Builder whose base relation is the database source's raw
// SQL, wrapped once so every subsequent clause composes safely
// regardless of what that SQL itself contains.
func New(dialect Dialect, baseSQL string, resolve ConnectionResolver) *Builder {
	return &Builder{Dialect: dialect, baseFrom: baseSQL, ResolveRef: resolve}
}

// TryFold implements folding.Folder for one step.
func (b *Builder) TryFold(op query.Operation) (bool, folding.Diagnostic) {
	if b.limitSet && opNeedsRowsBeforeLimit(op.Kind) {
		return false, folding.Diagnostic{Message: fmt.Sprintf("%v cannot fold after a row limit is already applied", op.Kind)}
	}

	switch op.Kind {
	case query.OpSelectColumns:
		return b.foldSelectColumns(op.SelectColumns)
	case query.OpRenameColumn:
		return b.foldRenameColumn(op.RenameColumn)
	case query.OpChangeType:
		return b.foldChangeType(op.ChangeType)
	case query.OpFilterRows:
		return b.foldFilterRows(op.FilterRows)
	case query.OpSortRows:
		return b.foldSortRows(op.SortRows)
	case query.OpGroupBy:
		return b.foldGroupBy(op.GroupBy)
	case query.OpTake:
		return b.foldTake(op.Take)
	case query.OpSkip:
		return b.foldSkip(op.Skip)
	case query.OpRemoveRows:
		return b.foldRemoveRows(op.RemoveRows)
	case query.OpDistinctRows:
		return b.foldDistinctRows(op.DistinctRows)
	case query.OpAddColumn:
		return b.foldAddColumn(op.AddColumn)
	case query.OpMerge:
		return b.foldMerge(op.Merge)
	case query.OpAppend:
		return b.foldAppend(op.Append)
	default:
		return false, folding.Diagnostic{}
	}
}

// opNeedsRowsBeforeLimit reports whether op would have to see the
// unlimited row set to be correct, and therefore can't fold once a
// take/skip/remove_rows has already bounded the result.
func opNeedsRowsBeforeLimit(k query.OpKind) bool {
	switch k {
	case query.OpFilterRows, query.OpSortRows, query.OpGroupBy, query.OpDistinctRows,
		query.OpSelectColumns, query.OpAddColumn, query.OpTake, query.OpSkip, query.OpRemoveRows:
		return true
	default:
		return false
	}
}

func (b *Builder) foldSelectColumns(op *query.SelectColumnsOp) (bool, folding.Diagnostic) {
	if op == nil || b.groupBy != nil {
		return false, folding.Diagnostic{}
	}
	items := make([]selectItem, len(op.Columns))
	for i, c := range op.Columns {
		items[i] = selectItem{expr: quoteIdent(c)}
	}
	b.selectCols = items
	return true, folding.Diagnostic{}
}

func (b *Builder) foldRenameColumn(op *query.RenameColumnOp) (bool, folding.Diagnostic) {
	if op == nil || b.selectCols == nil {
		// Without a prior select_columns projection we don't know the
		// full column set to re-emit with one renamed, so only fold a
		// rename that follows a select_columns in this prefix.
		return false, folding.Diagnostic{}
	}
	found := false
	for i, item := range b.selectCols {
		if item.expr == quoteIdent(op.Old) && item.as == "" {
			b.selectCols[i].as = quoteIdent(op.New)
			found = true
		}
	}
	if !found {
		return false, folding.Diagnostic{}
	}
	return true, folding.Diagnostic{}
}

func (b *Builder) foldChangeType(op *query.ChangeTypeOp) (bool, folding.Diagnostic) {
	if op == nil || b.selectCols == nil {
		return false, folding.Diagnostic{}
	}
	sqlType, ok := sqlTypeName(op.Type, b.Dialect)
	if !ok {
		return false, folding.Diagnostic{}
	}
	for i, item := range b.selectCols {
		target := item.as
		if target == "" {
			target = item.expr
		}
		if target == quoteIdent(op.Column) {
			b.selectCols[i].expr = fmt.Sprintf("CAST(%s AS %s)", item.expr, sqlType)
			if b.selectCols[i].as == "" {
				b.selectCols[i].as = quoteIdent(op.Column)
			}
			return true, folding.Diagnostic{}
		}
	}
	return false, folding.Diagnostic{}
}

func (b *Builder) foldFilterRows(op *query.FilterRowsOp) (bool, folding.Diagnostic) {
	if op == nil {
		return false, folding.Diagnostic{}
	}
	clause, args, ok := renderPredicate(op.Predicate)
	if !ok {
		return false, folding.Diagnostic{}
	}
	b.where = append(b.where, clause)
	b.args = append(b.args, args...)
	return true, folding.Diagnostic{}
}

func (b *Builder) foldSortRows(op *query.SortRowsOp) (bool, folding.Diagnostic) {
	if op == nil || len(op.SortBy) == 0 {
		return false, folding.Diagnostic{}
	}
	var order []string
	for _, key := range op.SortBy {
		dir := "ASC"
		if key.Direction == query.Desc {
			dir = "DESC"
		}
		nulls := "NULLS LAST"
		if key.Nulls == query.NullsFirst {
			nulls = "NULLS FIRST"
		}
		if b.Dialect == MySQL {
			// MySQL has no NULLS FIRST/LAST syntax; ORDER BY already
			// puts NULLs first ascending / last descending, which is
			// the only ordering folding can express there, so a
			// mismatched request simply doesn't fold.
			if (key.Nulls == query.NullsFirst) != (key.Direction == query.Asc) {
				return false, folding.Diagnostic{}
			}
			order = append(order, fmt.Sprintf("%s %s", quoteIdent(key.Column), dir))
			continue
		}
		order = append(order, fmt.Sprintf("%s %s %s", quoteIdent(key.Column), dir, nulls))
	}
	b.orderBy = order
	return true, folding.Diagnostic{}
}

func (b *Builder) foldGroupBy(op *query.GroupByOp) (bool, folding.Diagnostic) {
	if op == nil || b.selectCols != nil {
		return false, folding.Diagnostic{}
	}
	var items []selectItem
	var groupBy []string
	for _, k := range op.Keys {
		items = append(items, selectItem{expr: quoteIdent(k)})
		groupBy = append(groupBy, quoteIdent(k))
	}
	for _, agg := range op.Aggs {
		fn, ok := sqlAggFunc(agg.Op)
		if !ok {
			return false, folding.Diagnostic{}
		}
		col := "*"
		if agg.Column != "*" {
			col = quoteIdent(agg.Column)
		}
		as := agg.As
		if as == "" {
			as = fmt.Sprintf("%s of %s", steps.AggOpName(agg.Op), agg.Column)
		}
		items = append(items, selectItem{expr: fmt.Sprintf("%s(%s)", fn, col), as: quoteIdent(as)})
	}
	b.selectCols = items
	b.groupBy = groupBy
	return true, folding.Diagnostic{}
}

func sqlAggFunc(op query.AggOp) (string, bool) {
	switch op {
	case query.AggSum:
		return "SUM", true
	case query.AggCount:
		return "COUNT", true
	case query.AggAverage:
		return "AVG", true
	case query.AggMin:
		return "MIN", true
	case query.AggMax:
		return "MAX", true
	case query.AggCountDistinct:
		return "COUNT(DISTINCT", false // needs special-case rendering, not foldable via this simple helper
	default:
		return "", false
	}
}

func (b *Builder) foldTake(op *query.TakeOp) (bool, folding.Diagnostic) {
	if op == nil {
		return false, folding.Diagnostic{}
	}
	n := op.N
	b.limit = &n
	b.limitSet = true
	return true, folding.Diagnostic{}
}

func (b *Builder) foldSkip(op *query.SkipOp) (bool, folding.Diagnostic) {
	if op == nil {
		return false, folding.Diagnostic{}
	}
	n := op.N
	b.offset = &n
	b.limitSet = true
	return true, folding.Diagnostic{}
}

func (b *Builder) foldRemoveRows(op *query.RemoveRowsOp) (bool, folding.Diagnostic) {
	// Only a leading range (offset 0) maps onto OFFSET; removing a range
	// from the middle keeps rows on both sides and stays local.
	if op == nil || op.Offset != 0 {
		return false, folding.Diagnostic{}
	}
	offset := op.Count
	b.offset = &offset
	b.limitSet = true
	return true, folding.Diagnostic{}
}

func (b *Builder) foldDistinctRows(op *query.DistinctRowsOp) (bool, folding.Diagnostic) {
	if op == nil || len(op.Columns) > 0 {
		// DISTINCT ON a subset of columns isn't portable across
		// dialects; only a whole-row DISTINCT folds.
		return false, folding.Diagnostic{}
	}
	b.distinct = true
	return true, folding.Diagnostic{}
}

func (b *Builder) foldAddColumn(op *query.AddColumnOp) (bool, folding.Diagnostic) {
	if op == nil {
		return false, folding.Diagnostic{}
	}
	expr, ok := renderArith(op.Formula)
	if !ok {
		return false, folding.Diagnostic{}
	}
	if b.selectCols == nil {
		// No explicit projection yet: keep "*" visible and add the
		// computed column alongside it.
		b.selectCols = []selectItem{{expr: "*"}}
	}
	b.selectCols = append(b.selectCols, selectItem{expr: expr, as: quoteIdent(op.Name)})
	return true, folding.Diagnostic{}
}

func (b *Builder) foldMerge(op *query.MergeOp) (bool, folding.Diagnostic) {
	if op == nil || op.JoinMode != query.JoinFlat || b.ResolveRef == nil {
		return false, folding.Diagnostic{}
	}
	rightFrom, same := b.ResolveRef(op.RightQuery)
	if !same {
		return false, folding.Diagnostic{Message: "merge crosses connections; privacy firewall keeps it local", Blocked: true}
	}
	joinKind := sqlJoinKind(op.JoinType)
	if joinKind == "" {
		return false, folding.Diagnostic{}
	}
	var on []string
	for i := range op.LeftKeys {
		on = append(on, fmt.Sprintf("src.%s = rhs.%s", quoteIdent(op.LeftKeys[i]), quoteIdent(op.RightKeys[i])))
	}
	b.joinClause = fmt.Sprintf("%s JOIN (%s) AS rhs ON %s", joinKind, b.rawToken(rightFrom), strings.Join(on, " AND "))
	return true, folding.Diagnostic{}
}

func sqlJoinKind(t query.JoinType) string {
	switch t {
	case query.JoinInner:
		return "INNER"
	case query.JoinLeft:
		return "LEFT"
	case query.JoinRight:
		return "RIGHT"
	case query.JoinFull:
		return "FULL"
	default:
		return ""
	}
}

func (b *Builder) foldAppend(op *query.AppendOp) (bool, folding.Diagnostic) {
	if op == nil || b.ResolveRef == nil {
		return false, folding.Diagnostic{}
	}
	for _, id := range op.QueryIDs {
		from, same := b.ResolveRef(id)
		if !same {
			return false, folding.Diagnostic{Message: "append crosses connections; privacy firewall keeps it local", Blocked: true}
		}
		b.unionAll = append(b.unionAll, b.rawToken(from))
	}
	return true, folding.Diagnostic{}
}

// Render assembles the final dialect-specific SQL and its bound args, in
// the order placeholders appear in the text.
func (b *Builder) Render() (string, []value.Value) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if b.distinct {
		sb.WriteString("DISTINCT ")
	}
	if b.selectCols == nil {
		sb.WriteString("*")
	} else {
		parts := make([]string, len(b.selectCols))
		for i, item := range b.selectCols {
			if item.as != "" {
				parts[i] = item.expr + " AS " + item.as
			} else {
				parts[i] = item.expr
			}
		}
		sb.WriteString(strings.Join(parts, ", "))
	}
	fmt.Fprintf(&sb, " FROM (%s) AS src", b.rawToken(b.baseFrom))
	if b.joinClause != "" {
		sb.WriteString(" ")
		sb.WriteString(b.joinClause)
	}
	if len(b.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.where, " AND "))
	}
	if len(b.groupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(b.groupBy, ", "))
	}
	if len(b.orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(b.orderBy, ", "))
	}

	sql := sb.String()
	for _, u := range b.unionAll {
		sql += fmt.Sprintf(" UNION ALL SELECT * FROM (%s) AS src", u)
	}

	args := append([]value.Value(nil), b.args...)
	if b.offset != nil {
		sql += " OFFSET ?"
		args = append(args, value.Number(float64(*b.offset)))
	}
	if b.limit != nil {
		n := *b.limit
		sql = applyLimit(sql, b.baseFrom, b.Dialect)
		args = append(args, value.Number(float64(n)))
	}

	sql = rewritePlaceholders(sql, b.Dialect)
	sql = b.resolveRawTokens(sql)
	return sql, args
}

// sqlTypeName maps a table.DataType (threaded through as interface{} by
// query.ChangeTypeOp to avoid an import cycle) to the dialect's CAST
// target type name.
func sqlTypeName(t any, dialect Dialect) (string, bool) {
	name, ok := t.(fmt.Stringer)
	if !ok {
		return "", false
	}
	switch name.String() {
	case "text":
		return "TEXT", true
	case "number":
		if dialect == SQLServer {
			return "FLOAT", true
		}
		return "DOUBLE PRECISION", true
	case "boolean":
		return "BOOLEAN", true
	case "date":
		return "DATE", true
	case "datetime", "datetimezone":
		return "TIMESTAMP", true
	default:
		return "", false
	}
}
