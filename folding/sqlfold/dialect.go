package sqlfold

import (
	"fmt"
	"strings"
)

// Dialect selects the placeholder and LIMIT/TOP rendering rules of
// spec §4.6's dialect table.
type Dialect int

const (
	Postgres Dialect = iota
	MySQL
	SQLServer
	SQLite
)

// scanState is the small state machine every dialect-aware scan in this
// file runs, grounded on parser/comments.go's leading/trailing comment
// detection generalized to a single forward pass that also tracks
// string, double-quoted identifier, and bracket-identifier literals so
// a caller can tell a "real" character from one embedded in a literal.
type scanState int

const (
	scanCode scanState = iota
	scanLineComment
	scanBlockComment
	scanSingleQuote
	scanDoubleQuote
	scanBracket
)

// rewritePlaceholders walks sql and renumbers every neutral `?`
// placeholder token (never one inside a string/comment/bracket
// identifier, and never the postgres jsonb `?|`/`?&` operators or a
// doubled `??`; a bare `?` elsewhere, including the jsonb `?` operator,
// is always renumbered) into
// the dialect's own placeholder syntax. MySQL and SQLite both bind with
// a bare `?`, so they pass through untouched; the placeholder count
// always equals len(Builder.args), since every `?` the Builder itself
// emits has a corresponding bound value and the base SQL snippet is
// never expected to carry bind placeholders of its own.
func rewritePlaceholders(sql string, dialect Dialect) string {
	if dialect == MySQL || dialect == SQLite {
		return sql
	}

	var b strings.Builder
	state := scanCode
	n := 0
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch state {
		case scanLineComment:
			b.WriteByte(c)
			if c == '\n' {
				state = scanCode
			}
			continue
		case scanBlockComment:
			b.WriteByte(c)
			if c == '/' && i > 0 && sql[i-1] == '*' {
				state = scanCode
			}
			continue
		case scanSingleQuote:
			b.WriteByte(c)
			if c == '\'' && !(i+1 < len(sql) && sql[i+1] == '\'') {
				state = scanCode
			}
			continue
		case scanDoubleQuote:
			b.WriteByte(c)
			if c == '"' {
				state = scanCode
			}
			continue
		case scanBracket:
			b.WriteByte(c)
			if c == ']' && !(i+1 < len(sql) && sql[i+1] == ']') {
				state = scanCode
			}
			continue
		}

		switch {
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			state = scanLineComment
			b.WriteByte(c)
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			state = scanBlockComment
			b.WriteByte(c)
		case c == '\'':
			state = scanSingleQuote
			b.WriteByte(c)
		case c == '"':
			state = scanDoubleQuote
			b.WriteByte(c)
		case c == '[':
			state = scanBracket
			b.WriteByte(c)
		case c == '?':
			// jsonb containment/existence operators: ?, ?|, ?& applied to
			// an expression are never our own bind placeholder. We only
			// treat a `?` as ours when it isn't immediately adjacent to
			// `|`/`&` and isn't doubled (`??`), which is the shape a
			// hand-written jsonb expression actually takes.
			next := byte(0)
			if i+1 < len(sql) {
				next = sql[i+1]
			}
			if next == '|' || next == '&' || next == '?' {
				b.WriteByte(c)
				continue
			}
			n++
			switch dialect {
			case Postgres:
				fmt.Fprintf(&b, "$%d", n)
			case SQLServer:
				fmt.Fprintf(&b, "@p%d", n)
			default:
				b.WriteByte(c)
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// topLevelKeyword reports whether sql contains keyword at parenthesis
// depth 0, outside strings/comments/brackets — used to decide the MSSQL
// limit strategy (spec §4.6: "only top-level keywords count").
func topLevelKeyword(sql string, keyword string) bool {
	state := scanCode
	depth := 0
	upper := strings.ToUpper(sql)
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch state {
		case scanLineComment:
			if c == '\n' {
				state = scanCode
			}
			continue
		case scanBlockComment:
			if c == '/' && i > 0 && sql[i-1] == '*' {
				state = scanCode
			}
			continue
		case scanSingleQuote:
			if c == '\'' && !(i+1 < len(sql) && sql[i+1] == '\'') {
				state = scanCode
			}
			continue
		case scanDoubleQuote:
			if c == '"' {
				state = scanCode
			}
			continue
		case scanBracket:
			if c == ']' && !(i+1 < len(sql) && sql[i+1] == ']') {
				state = scanCode
			}
			continue
		}
		switch {
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			state = scanLineComment
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			state = scanBlockComment
		case c == '\'':
			state = scanSingleQuote
		case c == '"':
			state = scanDoubleQuote
		case c == '[':
			state = scanBracket
		case c == '(':
			depth++
		case c == ')':
			depth--
		case depth == 0 && matchesKeywordAt(upper, i, keyword):
			return true
		}
	}
	return false
}

func matchesKeywordAt(upper string, i int, keyword string) bool {
	end := i + len(keyword)
	if end > len(upper) || upper[i:end] != keyword {
		return false
	}
	if i > 0 && isIdentByte(upper[i-1]) {
		return false
	}
	if end < len(upper) && isIdentByte(upper[end]) {
		return false
	}
	return true
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// applyLimit wraps or appends the per-dialect limit clause, per spec
// §4.6's dialect table. baseSQL is the source's own raw SQL (scanned,
// not the SELECT folding has built on top of it), since "top-level"
// here means top-level *within the base query*, the only place an
// OFFSET/TOP folding didn't itself introduce could already exist.
func applyLimit(sql, baseSQL string, dialect Dialect) string {
	switch dialect {
	case SQLServer:
		if topLevelKeyword(baseSQL, "OFFSET") {
			return sql + " FETCH NEXT ? ROWS ONLY"
		}
		if topLevelKeyword(baseSQL, "TOP") {
			// A base query already clamps its own row count; folding a
			// further take() on top of that would only ever shrink it,
			// which OFFSET 0 ROWS FETCH NEXT does without disturbing the
			// existing TOP.
			return sql + " OFFSET 0 ROWS FETCH NEXT ? ROWS ONLY"
		}
		return fmt.Sprintf("SELECT TOP (?) * FROM (%s) AS t", sql)
	default:
		return sql + " LIMIT ?"
	}
}
