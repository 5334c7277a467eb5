package steps

import (
	"strings"

	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

func filterRows(t table.Table, op *query.FilterRowsOp) (table.Table, error) {
	if err := validatePredicateColumns(t, op.Predicate); err != nil {
		return nil, err
	}
	var rows [][]value.Value
	t.IterRows(func(row []value.Value) bool {
		if evalPredicate(t, op.Predicate, row) {
			rows = append(rows, row)
		}
		return true
	})
	return table.New(t.Columns(), rows), nil
}

func validatePredicateColumns(t table.Table, p query.Predicate) error {
	switch p.Kind {
	case query.PredComparison:
		if p.Comparison != nil {
			if _, err := t.ColumnIndex(p.Comparison.Column); err != nil {
				return err
			}
		}
	case query.PredAnd:
		for _, c := range p.And {
			if err := validatePredicateColumns(t, c); err != nil {
				return err
			}
		}
	case query.PredOr:
		for _, c := range p.Or {
			if err := validatePredicateColumns(t, c); err != nil {
				return err
			}
		}
	case query.PredNot:
		if p.Not != nil {
			return validatePredicateColumns(t, *p.Not)
		}
	}
	return nil
}

// evalPredicate is the recursive predicate evaluator of spec §4.2:
// "Empty And = true, empty Or = false."
func evalPredicate(t table.Table, p query.Predicate, row []value.Value) bool {
	switch p.Kind {
	case query.PredComparison:
		if p.Comparison == nil {
			return true
		}
		return evalComparison(t, *p.Comparison, row)
	case query.PredAnd:
		for _, c := range p.And {
			if !evalPredicate(t, c, row) {
				return false
			}
		}
		return true
	case query.PredOr:
		for _, c := range p.Or {
			if evalPredicate(t, c, row) {
				return true
			}
		}
		return false
	case query.PredNot:
		if p.Not == nil {
			return true
		}
		return !evalPredicate(t, *p.Not, row)
	default:
		return false
	}
}

func evalComparison(t table.Table, c query.Comparison, row []value.Value) bool {
	idx, err := t.ColumnIndex(c.Column)
	if err != nil {
		return false
	}
	cell := row[idx]
	caseSensitive := true
	if c.CaseSensitive != nil {
		caseSensitive = *c.CaseSensitive
	}

	switch c.Op {
	case query.CmpIsNull:
		return cell.IsNull()
	case query.CmpIsNotNull:
		return !cell.IsNull()
	case query.CmpEquals:
		return value.Equal(cell, c.Value)
	case query.CmpNotEquals:
		return !value.Equal(cell, c.Value)
	case query.CmpLess:
		return value.Less(cell, c.Value, false)
	case query.CmpLessEq:
		return value.Less(cell, c.Value, false) || value.Equal(cell, c.Value)
	case query.CmpGreater:
		return value.Less(c.Value, cell, false)
	case query.CmpGreaterEq:
		return value.Less(c.Value, cell, false) || value.Equal(cell, c.Value)
	case query.CmpContains:
		return textCompare(cell, c.Value, caseSensitive, strings.Contains)
	case query.CmpStartsWith:
		return textCompare(cell, c.Value, caseSensitive, strings.HasPrefix)
	case query.CmpEndsWith:
		return textCompare(cell, c.Value, caseSensitive, strings.HasSuffix)
	default:
		return false
	}
}

func textCompare(cell, target value.Value, caseSensitive bool, f func(a, b string) bool) bool {
	a, b := asText(cell), asText(target)
	if !caseSensitive {
		a, b = strings.ToLower(a), strings.ToLower(b)
	}
	return f(a, b)
}
