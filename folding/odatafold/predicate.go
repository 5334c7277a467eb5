package odatafold

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/value"
)

// renderODataPredicate translates spec §4.2's filter_rows predicate tree
// into an OData $filter expression. Unlike sqlfold's renderPredicate,
// there are no bound arguments to thread back out: OData has no bind
// placeholder convention, so every literal is rendered inline.
func renderODataPredicate(p query.Predicate) (string, bool) {
	switch p.Kind {
	case query.PredComparison:
		return renderComparison(p.Comparison)
	case query.PredAnd:
		return renderBoolOp(p.And, "and")
	case query.PredOr:
		return renderBoolOp(p.Or, "or")
	case query.PredNot:
		if p.Not == nil {
			return "", false
		}
		inner, ok := renderODataPredicate(*p.Not)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("not (%s)", inner), true
	default:
		return "", false
	}
}

func renderBoolOp(preds []query.Predicate, joiner string) (string, bool) {
	if len(preds) == 0 {
		return "", false
	}
	var parts []string
	for _, sub := range preds {
		clause, ok := renderODataPredicate(sub)
		if !ok {
			return "", false
		}
		parts = append(parts, clause)
	}
	return "(" + strings.Join(parts, " "+joiner+" ") + ")", true
}

func renderComparison(c *query.Comparison) (string, bool) {
	if c == nil {
		return "", false
	}
	col := c.Column

	switch c.Op {
	case query.CmpIsNull:
		return col + " eq null", true
	case query.CmpIsNotNull:
		return col + " ne null", true
	}

	caseInsensitive := c.CaseSensitive != nil && !*c.CaseSensitive

	switch c.Op {
	case query.CmpEquals, query.CmpNotEquals, query.CmpLess, query.CmpLessEq, query.CmpGreater, query.CmpGreaterEq:
		op, ok := comparisonOperator(c.Op)
		if !ok {
			return "", false
		}
		lit, ok := renderLiteral(c.Value, caseInsensitive)
		if !ok {
			return "", false
		}
		lhs := col
		if caseInsensitive {
			lhs = fmt.Sprintf("tolower(%s)", col)
		}
		return fmt.Sprintf("%s %s %s", lhs, op, lit), true
	case query.CmpContains:
		return textFunc("contains", col, c.Value, caseInsensitive)
	case query.CmpStartsWith:
		return textFunc("startswith", col, c.Value, caseInsensitive)
	case query.CmpEndsWith:
		return textFunc("endswith", col, c.Value, caseInsensitive)
	default:
		return "", false
	}
}

func comparisonOperator(op query.ComparisonOp) (string, bool) {
	switch op {
	case query.CmpEquals:
		return "eq", true
	case query.CmpNotEquals:
		return "ne", true
	case query.CmpLess:
		return "lt", true
	case query.CmpLessEq:
		return "le", true
	case query.CmpGreater:
		return "gt", true
	case query.CmpGreaterEq:
		return "ge", true
	default:
		return "", false
	}
}

func textFunc(name, col string, v value.Value, caseInsensitive bool) (string, bool) {
	text, ok := v.AsText()
	if !ok {
		return "", false
	}
	lhs := col
	if caseInsensitive {
		lhs = fmt.Sprintf("tolower(%s)", col)
		text = strings.ToLower(text)
	}
	return fmt.Sprintf("%s(%s,%s)", name, lhs, quoteODataString(text)), true
}

// renderLiteral renders a bound value inline, the way OData expects a
// literal embedded directly into the $filter expression text.
func renderLiteral(v value.Value, caseInsensitive bool) (string, bool) {
	switch v.Kind() {
	case value.KindNumber:
		f, _ := v.AsNumber()
		return strconv.FormatFloat(f, 'g', -1, 64), true
	case value.KindBool:
		b, _ := v.AsBool()
		return strconv.FormatBool(b), true
	case value.KindText:
		text, _ := v.AsText()
		if caseInsensitive {
			text = strings.ToLower(text)
		}
		return quoteODataString(text), true
	case value.KindNull:
		return "null", true
	default:
		return "", false
	}
}

// quoteODataString renders an OData string literal: single-quoted, with
// embedded single quotes doubled per the OData ABNF.
func quoteODataString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
