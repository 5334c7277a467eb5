package steps

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/sqldef/powerquery/value"
)

// formula implements the small sandboxed per-row expression language of
// spec §4.2 ("add_column {name, formula}" / "transform_columns"):
// column references in brackets, numeric/string literals, arithmetic,
// comparisons, and a small stdlib of text and number functions (upper,
// lower, trim, length, round, abs). There are no date functions.
//
// The scanner is a single-pass, bufPos-advancing tokenizer in the same
// style as parser/token.go's Tokenizer, generalized from SQL tokens to
// formula tokens.

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokColumn // [Name]
	tokIdent  // function name or `_`
	tokLParen
	tokRParen
	tokComma
	tokOp // + - * / & = <> < <= > >=
)

type token struct {
	kind tokenKind
	text string
}

type formulaScanner struct {
	buf    []byte
	bufPos int
}

func newFormulaScanner(s string) *formulaScanner {
	return &formulaScanner{buf: []byte(s)}
}

func (s *formulaScanner) peekByte() byte {
	if s.bufPos >= len(s.buf) {
		return 0
	}
	return s.buf[s.bufPos]
}

func (s *formulaScanner) skipSpace() {
	for s.bufPos < len(s.buf) && unicode.IsSpace(rune(s.buf[s.bufPos])) {
		s.bufPos++
	}
}

func (s *formulaScanner) next() (token, error) {
	s.skipSpace()
	if s.bufPos >= len(s.buf) {
		return token{kind: tokEOF}, nil
	}
	c := s.buf[s.bufPos]
	switch {
	case c == '[':
		start := s.bufPos + 1
		end := strings.IndexByte(string(s.buf[start:]), ']')
		if end < 0 {
			return token{}, fmt.Errorf("formula: unterminated column reference starting at %d", s.bufPos)
		}
		name := string(s.buf[start : start+end])
		s.bufPos = start + end + 1
		return token{kind: tokColumn, text: name}, nil
	case c == '"' || c == '\'':
		quote := c
		start := s.bufPos + 1
		i := start
		var sb strings.Builder
		for i < len(s.buf) && s.buf[i] != quote {
			sb.WriteByte(s.buf[i])
			i++
		}
		if i >= len(s.buf) {
			return token{}, fmt.Errorf("formula: unterminated string literal starting at %d", s.bufPos)
		}
		s.bufPos = i + 1
		return token{kind: tokString, text: sb.String()}, nil
	case c == '(':
		s.bufPos++
		return token{kind: tokLParen}, nil
	case c == ')':
		s.bufPos++
		return token{kind: tokRParen}, nil
	case c == ',':
		s.bufPos++
		return token{kind: tokComma}, nil
	case c == '+' || c == '-' || c == '*' || c == '/' || c == '&':
		s.bufPos++
		return token{kind: tokOp, text: string(c)}, nil
	case c == '=':
		s.bufPos++
		return token{kind: tokOp, text: "="}, nil
	case c == '<':
		s.bufPos++
		if s.peekByte() == '>' {
			s.bufPos++
			return token{kind: tokOp, text: "<>"}, nil
		}
		if s.peekByte() == '=' {
			s.bufPos++
			return token{kind: tokOp, text: "<="}, nil
		}
		return token{kind: tokOp, text: "<"}, nil
	case c == '>':
		s.bufPos++
		if s.peekByte() == '=' {
			s.bufPos++
			return token{kind: tokOp, text: ">="}, nil
		}
		return token{kind: tokOp, text: ">"}, nil
	case c >= '0' && c <= '9':
		start := s.bufPos
		for s.bufPos < len(s.buf) && (isDigit(s.buf[s.bufPos]) || s.buf[s.bufPos] == '.') {
			s.bufPos++
		}
		return token{kind: tokNumber, text: string(s.buf[start:s.bufPos])}, nil
	case isIdentStart(c):
		start := s.bufPos
		for s.bufPos < len(s.buf) && isIdentPart(s.buf[s.bufPos]) {
			s.bufPos++
		}
		return token{kind: tokIdent, text: string(s.buf[start:s.bufPos])}, nil
	default:
		return token{}, fmt.Errorf("formula: unexpected character %q at %d", c, s.bufPos)
	}
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isIdentPart(c byte) bool  { return isIdentStart(c) || isDigit(c) }

// exprNode is the parsed formula AST.
type exprNode interface{ eval(row rowCtx) value.Value }

type rowCtx struct {
	columnIndex map[string]int
	row         []value.Value
	bound       value.Value // `_`, valid inside transform_columns
	hasBound    bool
}

type litNode struct{ v value.Value }
type colNode struct{ name string }
type underscoreNode struct{}
type binNode struct {
	op          string
	left, right exprNode
}
type callNode struct {
	fn   string
	args []exprNode
}

func (n litNode) eval(rowCtx) value.Value { return n.v }

func (n colNode) eval(ctx rowCtx) value.Value {
	idx, ok := ctx.columnIndex[n.name]
	if !ok {
		return value.Error("column not found: "+n.name, nil)
	}
	if idx < 0 || idx >= len(ctx.row) {
		return value.Null()
	}
	return ctx.row[idx]
}

func (n underscoreNode) eval(ctx rowCtx) value.Value {
	if !ctx.hasBound {
		return value.Error("`_` is only bound inside transform_columns", nil)
	}
	return ctx.bound
}

func (n binNode) eval(ctx rowCtx) value.Value {
	l := n.left.eval(ctx)
	r := n.right.eval(ctx)
	if l.IsError() {
		return l
	}
	if r.IsError() {
		return r
	}
	switch n.op {
	case "+":
		return arith(l, r, func(a, b float64) float64 { return a + b })
	case "-":
		return arith(l, r, func(a, b float64) float64 { return a - b })
	case "*":
		return arith(l, r, func(a, b float64) float64 { return a * b })
	case "/":
		return arith(l, r, func(a, b float64) float64 {
			if b == 0 {
				return 0
			}
			return a / b
		})
	case "&":
		return value.Text(l.String() + r.String())
	case "=":
		return value.Bool(value.Equal(l, r))
	case "<>":
		return value.Bool(!value.Equal(l, r))
	case "<":
		return value.Bool(value.Less(l, r, false))
	case "<=":
		return value.Bool(value.Less(l, r, false) || value.Equal(l, r))
	case ">":
		return value.Bool(value.Less(r, l, false))
	case ">=":
		return value.Bool(value.Less(r, l, false) || value.Equal(l, r))
	default:
		return value.Error("unknown operator "+n.op, nil)
	}
}

func arith(l, r value.Value, f func(a, b float64) float64) value.Value {
	if l.IsNull() || r.IsNull() {
		return value.Null()
	}
	return value.Number(f(asNumber(l), asNumber(r)))
}

func (n callNode) eval(ctx rowCtx) value.Value {
	args := make([]value.Value, len(n.args))
	for i, a := range n.args {
		args[i] = a.eval(ctx)
		if args[i].IsError() {
			return args[i]
		}
	}
	fn, ok := formulaStdlib[strings.ToLower(n.fn)]
	if !ok {
		return value.Error("unknown function "+n.fn, nil)
	}
	return fn(args)
}

// formulaStdlib is the whole function set: text case/trim/length and
// number round/abs. It has no date functions.
var formulaStdlib = map[string]func(args []value.Value) value.Value{
	"upper": textFn(strings.ToUpper),
	"lower": textFn(strings.ToLower),
	"trim":  textFn(strings.TrimSpace),
	"length": func(args []value.Value) value.Value {
		if len(args) != 1 {
			return value.Error("length() takes 1 argument", nil)
		}
		return value.Number(float64(len([]rune(asText(args[0])))))
	},
	"round": func(args []value.Value) value.Value {
		if len(args) != 1 {
			return value.Error("round() takes 1 argument", nil)
		}
		n := asNumber(args[0])
		if n >= 0 {
			return value.Number(float64(int64(n + 0.5)))
		}
		return value.Number(float64(int64(n - 0.5)))
	},
	"abs": func(args []value.Value) value.Value {
		if len(args) != 1 {
			return value.Error("abs() takes 1 argument", nil)
		}
		n := asNumber(args[0])
		if n < 0 {
			n = -n
		}
		return value.Number(n)
	},
}

func textFn(f func(string) string) func([]value.Value) value.Value {
	return func(args []value.Value) value.Value {
		if len(args) != 1 {
			return value.Error("function takes 1 argument", nil)
		}
		return value.Text(f(asText(args[0])))
	}
}

// formulaParser is a minimal precedence-climbing parser over the token
// stream: comparison < additive(+,-,&) < multiplicative(*,/).
type formulaParser struct {
	scanner *formulaScanner
	cur     token
}

func parseFormula(src string) (exprNode, error) {
	p := &formulaParser{scanner: newFormulaScanner(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	expr, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	if p.cur.kind != tokEOF {
		return nil, fmt.Errorf("formula: unexpected trailing token %q", p.cur.text)
	}
	return expr, nil
}

func (p *formulaParser) advance() error {
	t, err := p.scanner.next()
	if err != nil {
		return err
	}
	p.cur = t
	return nil
}

func (p *formulaParser) parseComparison() (exprNode, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tokOp && isComparisonOp(p.cur.text) {
		op := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = binNode{op: op, left: left, right: right}
	}
	return left, nil
}

func isComparisonOp(op string) bool {
	switch op {
	case "=", "<>", "<", "<=", ">", ">=":
		return true
	}
	return false
}

func (p *formulaParser) parseAdditive() (exprNode, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tokOp && (p.cur.text == "+" || p.cur.text == "-" || p.cur.text == "&") {
		op := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = binNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *formulaParser) parseMultiplicative() (exprNode, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tokOp && (p.cur.text == "*" || p.cur.text == "/") {
		op := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		left = binNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *formulaParser) parsePrimary() (exprNode, error) {
	switch p.cur.kind {
	case tokNumber:
		n, err := strconv.ParseFloat(p.cur.text, 64)
		if err != nil {
			return nil, fmt.Errorf("formula: invalid number %q", p.cur.text)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return litNode{v: value.Number(n)}, nil
	case tokString:
		v := litNode{v: value.Text(p.cur.text)}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return v, nil
	case tokColumn:
		name := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return colNode{name: name}, nil
	case tokIdent:
		name := p.cur.text
		if name == "_" {
			if err := p.advance(); err != nil {
				return nil, err
			}
			return underscoreNode{}, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.kind != tokLParen {
			return nil, fmt.Errorf("formula: expected '(' after function name %q", name)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		var args []exprNode
		for p.cur.kind != tokRParen {
			arg, err := p.parseComparison()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.cur.kind == tokComma {
				if err := p.advance(); err != nil {
					return nil, err
				}
			}
		}
		if err := p.advance(); err != nil { // consume ')'
			return nil, err
		}
		return callNode{fn: name, args: args}, nil
	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		expr, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if p.cur.kind != tokRParen {
			return nil, fmt.Errorf("formula: expected ')'")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return expr, nil
	default:
		return nil, fmt.Errorf("formula: unexpected token")
	}
}

// evalFormula parses and evaluates src for one row; evaluation errors
// surface as an in-cell error sentinel rather than aborting the pipeline
// (spec §7 propagation policy).
func evalFormula(src string, columnIndex map[string]int, row []value.Value, bound *value.Value) value.Value {
	expr, err := parseFormula(src)
	if err != nil {
		return value.Error(err.Error(), err)
	}
	ctx := rowCtx{columnIndex: columnIndex, row: row}
	if bound != nil {
		ctx.bound = *bound
		ctx.hasBound = true
	}
	return expr.eval(ctx)
}
