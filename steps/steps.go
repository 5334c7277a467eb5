// Package steps is the operator library (spec §4.2/§4.3): one pure
// Table x Operation -> Table function per operator, plus the Apply
// dispatcher the streaming compiler and execution engine drive a
// pipeline through.
package steps

import (
	"strings"

	"github.com/sqldef/powerquery/pqerr"
	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/table"
)

// Deps resolves the additional tables a step may reference: merge's
// RightQuery and append's QueryIDs, keyed by query ID. The engine
// resolves and caches these before calling Apply on a step that needs
// them.
type Deps map[string]table.Table

// Apply runs a single pipeline step against t, dispatching on op.Kind.
// Every branch is a pure function: Apply never mutates t or any table
// reachable from deps.
func Apply(t table.Table, op query.Operation, deps Deps) (table.Table, error) {
	switch op.Kind {
	case query.OpSelectColumns:
		return selectColumns(t, op.SelectColumns)
	case query.OpRemoveColumns:
		return removeColumns(t, op.RemoveColumns)
	case query.OpRenameColumn:
		return renameColumn(t, op.RenameColumn)
	case query.OpReorderColumns:
		return reorderColumns(t, op.ReorderColumns)
	case query.OpChangeType:
		return changeType(t, op.ChangeType)
	case query.OpFilterRows:
		return filterRows(t, op.FilterRows)
	case query.OpSortRows:
		return sortRows(t, op.SortRows)
	case query.OpDistinctRows:
		return distinctRows(t, op.DistinctRows)
	case query.OpRemoveRowsWithErrors:
		return removeRowsWithErrors(t, op.RemoveRowsWithErrors)
	case query.OpGroupBy:
		return groupBy(t, op.GroupBy)
	case query.OpAddColumn:
		return addColumn(t, op.AddColumn)
	case query.OpAddIndexColumn:
		return addIndexColumn(t, op.AddIndexColumn)
	case query.OpCombineColumns:
		return combineColumns(t, op.CombineColumns)
	case query.OpSplitColumn:
		return splitColumn(t, op.SplitColumn)
	case query.OpTransformColumns:
		return transformColumns(t, op.TransformColumns)
	case query.OpTransformColumnNames:
		return transformColumnNames(t, op.TransformColumnNames)
	case query.OpFillDown:
		return fillDown(t, op.FillDown)
	case query.OpReplaceValues:
		return replaceValues(t, op.ReplaceValues)
	case query.OpReplaceErrorValues:
		return replaceErrorValues(t, op.ReplaceErrorValues)
	case query.OpPromoteHeaders:
		return promoteHeaders(t)
	case query.OpDemoteHeaders:
		return demoteHeaders(t)
	case query.OpTake:
		return take(t, op.Take)
	case query.OpSkip:
		return skip(t, op.Skip)
	case query.OpRemoveRows:
		return removeRows(t, op.RemoveRows)
	case query.OpPivot:
		return pivotRows(t, op.Pivot)
	case query.OpUnpivot:
		return unpivotRows(t, op.Unpivot)
	case query.OpMerge:
		return applyMerge(t, op.Merge, deps)
	case query.OpExpandTableColumn:
		return expandTableColumn(t, op.ExpandTableColumn)
	case query.OpAppend:
		return appendTables(t, op.Append, deps)
	default:
		return nil, pqerr.New(pqerr.KindInvalidArgument, "apply: unknown operation kind")
	}
}

func applyMerge(t table.Table, op *query.MergeOp, deps Deps) (table.Table, error) {
	right, ok := deps[op.RightQuery]
	if !ok {
		return nil, pqerr.New(pqerr.KindUnknownQuery, "merge: no resolved table for query "+op.RightQuery)
	}
	return merge(t, op, right)
}

// SchemaAfter computes the output schema of op against an input schema
// without executing it, used by the folding planner and streaming
// compiler to type-check a pipeline ahead of time (invariant I1:
// schema_after(op, schema(T)) equals schema(op(T)) whenever it returns
// non-nil). It returns nil, "unknown until executed", for pivot,
// split_column, expand_table_column and promote/demote_headers, whose
// output schema can depend on the data, and also for group_by,
// combine_columns and merge, which it does not model.
func SchemaAfter(cols []table.Column, op query.Operation) []table.Column {
	index := func(name string) int {
		for i, c := range cols {
			if c.Name == name {
				return i
			}
		}
		return -1
	}

	switch op.Kind {
	case query.OpSelectColumns:
		out := make([]table.Column, 0, len(op.SelectColumns.Columns))
		for _, name := range op.SelectColumns.Columns {
			if i := index(name); i >= 0 {
				out = append(out, cols[i])
			} else {
				return nil
			}
		}
		return out
	case query.OpRemoveColumns:
		drop := map[string]bool{}
		for _, name := range op.RemoveColumns.Columns {
			drop[name] = true
		}
		var out []table.Column
		for _, c := range cols {
			if !drop[c.Name] {
				out = append(out, c)
			}
		}
		return out
	case query.OpRenameColumn:
		out := append([]table.Column{}, cols...)
		if i := index(op.RenameColumn.Old); i >= 0 {
			out[i] = table.Column{Name: op.RenameColumn.New, Type: out[i].Type}
		}
		return out
	case query.OpReorderColumns:
		if op.ReorderColumns.Missing == query.MissingError {
			for _, name := range op.ReorderColumns.Columns {
				if index(name) < 0 {
					return nil
				}
			}
		}
		var out []table.Column
		seen := map[string]bool{}
		for _, name := range op.ReorderColumns.Columns {
			if i := index(name); i >= 0 {
				out = append(out, cols[i])
				seen[name] = true
			} else if op.ReorderColumns.Missing == query.MissingUseNull {
				out = append(out, table.Column{Name: name})
				seen[name] = true
			}
		}
		for _, c := range cols {
			if !seen[c.Name] {
				out = append(out, c)
			}
		}
		return out
	case query.OpChangeType:
		out := append([]table.Column{}, cols...)
		if i := index(op.ChangeType.Column); i >= 0 {
			if dt, ok := op.ChangeType.Type.(table.DataType); ok {
				out[i] = table.Column{Name: out[i].Name, Type: dt}
			}
		}
		return out
	case query.OpFilterRows, query.OpSortRows, query.OpDistinctRows,
		query.OpRemoveRowsWithErrors, query.OpFillDown, query.OpReplaceValues,
		query.OpReplaceErrorValues, query.OpTake, query.OpSkip, query.OpRemoveRows:
		return append([]table.Column{}, cols...)
	case query.OpAddColumn:
		return append(append([]table.Column{}, cols...), table.Column{Name: op.AddColumn.Name})
	case query.OpAddIndexColumn:
		return append(append([]table.Column{}, cols...), table.Column{Name: op.AddIndexColumn.Name, Type: table.TypeNumber})
	case query.OpTransformColumns:
		return append([]table.Column{}, cols...)
	case query.OpTransformColumnNames:
		names := make([]string, len(cols))
		for i, c := range cols {
			switch op.TransformColumnNames.Op {
			case query.NameUpper:
				names[i] = strings.ToUpper(c.Name)
			case query.NameLower:
				names[i] = strings.ToLower(c.Name)
			case query.NameTrim:
				names[i] = strings.TrimSpace(c.Name)
			default:
				names[i] = c.Name
			}
		}
		uniq := table.MakeUniqueColumnNames(names)
		out := make([]table.Column, len(cols))
		for i, c := range cols {
			out[i] = table.Column{Name: uniq[i], Type: c.Type}
		}
		return out
	case query.OpUnpivot:
		drop := map[string]bool{}
		for _, name := range op.Unpivot.Columns {
			drop[name] = true
		}
		var out []table.Column
		for _, c := range cols {
			if !drop[c.Name] {
				out = append(out, c)
			}
		}
		return append(out, table.Column{Name: op.Unpivot.NameCol}, table.Column{Name: op.Unpivot.ValueCol})
	case query.OpAppend:
		return append([]table.Column{}, cols...)
	default:
		return nil
	}
}
