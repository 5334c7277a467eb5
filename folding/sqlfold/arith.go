package sqlfold

import (
	"fmt"
	"strconv"
	"strings"
)

// renderArith translates the restricted arithmetic grammar spec §4.6
// allows inside a folded add_column (`[Column]` references, numeric
// literals, + - * / and parentheses) into a SQL expression. It returns
// ok == false for anything outside that grammar, which the caller
// treats as "this add_column doesn't fold".
func renderArith(formula string) (sql string, ok bool) {
	p := &arithParser{toks: tokenizeArith(formula)}
	expr, ok := p.parseExpr(0)
	if !ok || p.pos != len(p.toks) {
		return "", false
	}
	return expr, true
}

type arithTokKind int

const (
	arithEOF arithTokKind = iota
	arithNumber
	arithColumn
	arithOp
	arithLParen
	arithRParen
)

type arithTok struct {
	kind arithTokKind
	text string
}

func tokenizeArith(s string) []arithTok {
	var toks []arithTok
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '[':
			j := strings.IndexByte(s[i:], ']')
			if j < 0 {
				return append(toks, arithTok{kind: arithOp, text: "!"}) // forces a parse failure
			}
			toks = append(toks, arithTok{kind: arithColumn, text: s[i+1 : i+j]})
			i += j + 1
		case c == '(':
			toks = append(toks, arithTok{kind: arithLParen})
			i++
		case c == ')':
			toks = append(toks, arithTok{kind: arithRParen})
			i++
		case c == '+' || c == '-' || c == '*' || c == '/':
			toks = append(toks, arithTok{kind: arithOp, text: string(c)})
			i++
		case c >= '0' && c <= '9' || c == '.':
			j := i
			for j < len(s) && (s[j] >= '0' && s[j] <= '9' || s[j] == '.') {
				j++
			}
			toks = append(toks, arithTok{kind: arithNumber, text: s[i:j]})
			i = j
		default:
			toks = append(toks, arithTok{kind: arithOp, text: "!"})
			i++
		}
	}
	return toks
}

type arithParser struct {
	toks []arithTok
	pos  int
}

func (p *arithParser) peek() arithTok {
	if p.pos >= len(p.toks) {
		return arithTok{kind: arithEOF}
	}
	return p.toks[p.pos]
}

var precedence = map[string]int{"+": 1, "-": 1, "*": 2, "/": 2}

// parseExpr is a standard precedence-climbing parser over + - * / and
// parenthesized subexpressions.
func (p *arithParser) parseExpr(minPrec int) (string, bool) {
	lhs, ok := p.parseAtom()
	if !ok {
		return "", false
	}
	for {
		tok := p.peek()
		if tok.kind != arithOp {
			break
		}
		prec, known := precedence[tok.text]
		if !known || prec < minPrec {
			break
		}
		p.pos++
		rhs, ok := p.parseExpr(prec + 1)
		if !ok {
			return "", false
		}
		lhs = fmt.Sprintf("(%s %s %s)", lhs, tok.text, rhs)
	}
	return lhs, true
}

func (p *arithParser) parseAtom() (string, bool) {
	tok := p.peek()
	switch tok.kind {
	case arithNumber:
		p.pos++
		if _, err := strconv.ParseFloat(tok.text, 64); err != nil {
			return "", false
		}
		return tok.text, true
	case arithColumn:
		p.pos++
		return quoteIdent(tok.text), true
	case arithLParen:
		p.pos++
		inner, ok := p.parseExpr(0)
		if !ok {
			return "", false
		}
		if p.peek().kind != arithRParen {
			return "", false
		}
		p.pos++
		return "(" + inner + ")", true
	default:
		return "", false
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
