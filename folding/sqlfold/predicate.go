package sqlfold

import (
	"fmt"
	"strings"

	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/value"
)

// renderPredicate translates spec §4.2's filter_rows predicate tree
// into a SQL boolean expression plus the values it binds, in the order
// they appear. ok is false for anything the restricted grammar can't
// express (currently: nothing in the comparison/and/or/not grammar is
// refused, but the hook exists for future additions).
func renderPredicate(p query.Predicate) (string, []value.Value, bool) {
	switch p.Kind {
	case query.PredComparison:
		return renderComparison(p.Comparison)
	case query.PredAnd:
		return renderBoolOp(p.And, "AND")
	case query.PredOr:
		return renderBoolOp(p.Or, "OR")
	case query.PredNot:
		if p.Not == nil {
			return "", nil, false
		}
		inner, args, ok := renderPredicate(*p.Not)
		if !ok {
			return "", nil, false
		}
		return fmt.Sprintf("NOT (%s)", inner), args, true
	default:
		return "", nil, false
	}
}

func renderBoolOp(preds []query.Predicate, joiner string) (string, []value.Value, bool) {
	if len(preds) == 0 {
		return "", nil, false
	}
	var parts []string
	var args []value.Value
	for _, sub := range preds {
		clause, subArgs, ok := renderPredicate(sub)
		if !ok {
			return "", nil, false
		}
		parts = append(parts, clause)
		args = append(args, subArgs...)
	}
	return "(" + strings.Join(parts, " "+joiner+" ") + ")", args, true
}

func renderComparison(c *query.Comparison) (string, []value.Value, bool) {
	if c == nil {
		return "", nil, false
	}
	col := quoteIdent(c.Column)

	switch c.Op {
	case query.CmpIsNull:
		return col + " IS NULL", nil, true
	case query.CmpIsNotNull:
		return col + " IS NOT NULL", nil, true
	}

	caseInsensitive := c.CaseSensitive != nil && !*c.CaseSensitive

	switch c.Op {
	case query.CmpEquals, query.CmpNotEquals, query.CmpLess, query.CmpLessEq, query.CmpGreater, query.CmpGreaterEq:
		op, ok := comparisonOperator(c.Op)
		if !ok {
			return "", nil, false
		}
		lhs := col
		if caseInsensitive {
			lhs = fmt.Sprintf("LOWER(%s)", col)
		}
		return fmt.Sprintf("%s %s ?", lhs, op), []value.Value{lowerIfNeeded(c.Value, caseInsensitive)}, true
	case query.CmpContains:
		return likeClause(col, c.Value, "%%%s%%", caseInsensitive)
	case query.CmpStartsWith:
		return likeClause(col, c.Value, "%s%%", caseInsensitive)
	case query.CmpEndsWith:
		return likeClause(col, c.Value, "%%%s", caseInsensitive)
	default:
		return "", nil, false
	}
}

func comparisonOperator(op query.ComparisonOp) (string, bool) {
	switch op {
	case query.CmpEquals:
		return "=", true
	case query.CmpNotEquals:
		return "<>", true
	case query.CmpLess:
		return "<", true
	case query.CmpLessEq:
		return "<=", true
	case query.CmpGreater:
		return ">", true
	case query.CmpGreaterEq:
		return ">=", true
	default:
		return "", false
	}
}

func likeClause(col string, v value.Value, pattern string, caseInsensitive bool) (string, []value.Value, bool) {
	text, ok := v.AsText()
	if !ok {
		return "", nil, false
	}
	lhs := col
	rhs := text
	if caseInsensitive {
		lhs = fmt.Sprintf("LOWER(%s)", col)
		rhs = strings.ToLower(rhs)
	}
	return fmt.Sprintf("%s LIKE ?", lhs), []value.Value{value.Text(fmt.Sprintf(pattern, rhs))}, true
}

func lowerIfNeeded(v value.Value, caseInsensitive bool) value.Value {
	if !caseInsensitive {
		return v
	}
	text, ok := v.AsText()
	if !ok {
		return v
	}
	return value.Text(strings.ToLower(text))
}
