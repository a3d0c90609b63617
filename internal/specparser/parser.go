package specparser

import (
	"strconv"

	"github.com/oxhq/scribble/internal/sast"
)

// exprParser is a precedence-climbing recursive-descent parser over one
// lexed token stream. It is built fresh per ParseExpr/ParseAnnotation call;
// there is no shared state across parses.
type exprParser struct {
	toks []token
	pos  int
}

func newExprParser(src string) *exprParser {
	return &exprParser{toks: newLexer(src).tokens}
}

func (p *exprParser) peek() token { return p.toks[p.pos] }

func (p *exprParser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *exprParser) atEOF() bool { return p.peek().kind == tokEOF }

func (p *exprParser) is(text string) bool {
	t := p.peek()
	return (t.kind == tokPunct || t.kind == tokIdent) && t.text == text
}

func (p *exprParser) expect(text string) (token, error) {
	if !p.is(text) {
		return token{}, errf(p.peek().offset, "expected %q, found %q", text, p.peek().text)
	}
	return p.advance(), nil
}

// end reports the offset just past the last consumed token, i.e. the start
// of the current lookahead. Node ranges span [start, end).
func (p *exprParser) end() int {
	if p.pos == 0 {
		return 0
	}
	prev := p.toks[p.pos-1]
	return prev.offset + len(prev.text)
}

func span(start, end int) sast.Range {
	return sast.Range{Offset: start, Length: end - start}
}

// ParseExpr parses a single specification expression, as used for
// if_succeeds/invariant predicates and #define bodies.
func ParseExpr(src string) (sast.Expr, error) {
	p := newExprParser(src)
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.atEOF() {
		return nil, errf(p.peek().offset, "unexpected trailing input %q", p.peek().text)
	}
	return e, nil
}

// parseExpr is the lowest-precedence entry point: let-bindings, then the
// conditional operator.
func (p *exprParser) parseExpr() (sast.Expr, error) {
	if p.is("let") {
		return p.parseLet()
	}
	return p.parseConditional()
}

func (p *exprParser) parseLet() (sast.Expr, error) {
	start := p.peek().offset
	p.advance() // "let"
	nameTok := p.advance()
	if nameTok.kind != tokIdent {
		return nil, errf(nameTok.offset, "expected binder name after let")
	}
	if _, err := p.expect(":="); err != nil {
		return nil, err
	}
	value, err := p.parseConditional()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect("in"); err != nil {
		return nil, err
	}
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return sast.NewLet(span(start, p.end()), nameTok.text, value, body), nil
}

func (p *exprParser) parseConditional() (sast.Expr, error) {
	start := p.peek().offset
	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.is("?") {
		return cond, nil
	}
	p.advance()
	then, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(":"); err != nil {
		return nil, err
	}
	els, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return sast.NewConditional(span(start, p.end()), cond, then, els), nil
}

func (p *exprParser) parseBinaryLevel(next func() (sast.Expr, error), ops ...string) (sast.Expr, error) {
	start := p.peek().offset
	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		matched := ""
		for _, op := range ops {
			if p.is(op) {
				matched = op
				break
			}
		}
		if matched == "" {
			return left, nil
		}
		p.advance()
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = sast.NewBinaryOp(span(start, p.end()), matched, left, right)
	}
}

func (p *exprParser) parseOr() (sast.Expr, error)  { return p.parseBinaryLevel(p.parseAnd, "||") }
func (p *exprParser) parseAnd() (sast.Expr, error) { return p.parseBinaryLevel(p.parseEquality, "&&") }
func (p *exprParser) parseEquality() (sast.Expr, error) {
	return p.parseBinaryLevel(p.parseComparison, "==", "!=")
}
func (p *exprParser) parseComparison() (sast.Expr, error) {
	return p.parseBinaryLevel(p.parseAdditive, "<=", ">=", "<", ">")
}
func (p *exprParser) parseAdditive() (sast.Expr, error) {
	return p.parseBinaryLevel(p.parseMultiplicative, "+", "-")
}
func (p *exprParser) parseMultiplicative() (sast.Expr, error) {
	return p.parseBinaryLevel(p.parseUnary, "*", "/", "%")
}

func (p *exprParser) parseUnary() (sast.Expr, error) {
	start := p.peek().offset
	if p.is("!") || p.is("-") || p.is("~") {
		op := p.advance().text
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return sast.NewUnaryOp(span(start, p.end()), op, operand), nil
	}
	return p.parsePostfix()
}

func (p *exprParser) parsePostfix() (sast.Expr, error) {
	start := p.peek().offset
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.is("."):
			p.advance()
			nameTok := p.advance()
			if nameTok.kind != tokIdent {
				return nil, errf(nameTok.offset, "expected member name after '.'")
			}
			e = sast.NewMember(span(start, p.end()), e, nameTok.text)
		case p.is("["):
			p.advance()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect("]"); err != nil {
				return nil, err
			}
			e = sast.NewIndex(span(start, p.end()), e, idx)
		case p.is("("):
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			e = sast.NewCall(span(start, p.end()), e, args)
		default:
			return e, nil
		}
	}
}

func (p *exprParser) parseArgs() ([]sast.Expr, error) {
	p.advance() // "("
	var args []sast.Expr
	if p.is(")") {
		p.advance()
		return args, nil
	}
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.is(",") {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(")"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *exprParser) parsePrimary() (sast.Expr, error) {
	t := p.peek()
	start := t.offset

	switch {
	case t.kind == tokInt:
		p.advance()
		return sast.NewIntLiteral(span(start, p.end()), t.text), nil
	case t.kind == tokHex:
		p.advance()
		return sast.NewAddressLiteral(span(start, p.end()), t.text), nil
	case t.kind == tokString:
		p.advance()
		unquoted, err := strconv.Unquote(t.text)
		if err != nil {
			unquoted = t.text
		}
		return sast.NewStringLiteral(span(start, p.end()), unquoted), nil
	case p.is("("):
		return p.parseParenOrTuple()
	case p.is("true"):
		p.advance()
		return sast.NewBoolLiteral(span(start, p.end()), true), nil
	case p.is("false"):
		p.advance()
		return sast.NewBoolLiteral(span(start, p.end()), false), nil
	case p.is("old"):
		return p.parseOld()
	case p.is("forall") || p.is("exists"):
		return p.parseQuantifier()
	case t.kind == tokIdent:
		p.advance()
		return sast.NewIdentifier(span(start, p.end()), t.text), nil
	default:
		return nil, errf(start, "unexpected token %q", t.text)
	}
}

func (p *exprParser) parseParenOrTuple() (sast.Expr, error) {
	start := p.peek().offset
	p.advance() // "("
	var elems []sast.Expr
	if !p.is(")") {
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
			if p.is(",") {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(")"); err != nil {
		return nil, err
	}
	if len(elems) == 1 {
		return elems[0], nil
	}
	return sast.NewTuple(span(start, p.end()), elems), nil
}

// parseOld parses `old(e)`; validity under if_succeeds-only contexts is
// enforced later by internal/typecheck, not here.
func (p *exprParser) parseOld() (sast.Expr, error) {
	start := p.peek().offset
	p.advance() // "old"
	if _, err := p.expect("("); err != nil {
		return nil, err
	}
	operand, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(")"); err != nil {
		return nil, err
	}
	return sast.NewOld(span(start, p.end()), operand), nil
}

// parseQuantifier parses `forall/exists (T x in R) e`. R is either an
// integer range `lo...hi` or an expression the checker must prove iterable
// (array indices); finiteness is a typecheck-time concern, not a
// grammar concern.
func (p *exprParser) parseQuantifier() (sast.Expr, error) {
	start := p.peek().offset
	kindTok := p.advance()
	kind := sast.Forall
	if kindTok.text == "exists" {
		kind = sast.Exists
	}
	if _, err := p.expect("("); err != nil {
		return nil, err
	}
	boundType, err := p.parseType()
	if err != nil {
		return nil, err
	}
	binderTok := p.advance()
	if binderTok.kind != tokIdent {
		return nil, errf(binderTok.offset, "expected binder name in quantifier")
	}
	if _, err := p.expect("in"); err != nil {
		return nil, err
	}
	rangeExpr, err := p.parseRange()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(")"); err != nil {
		return nil, err
	}
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return sast.NewQuantifier(span(start, p.end()), kind, binderTok.text, boundType, rangeExpr, body), nil
}

// parseRange parses a quantifier range: either `lo...hi` (kept as a "..."
// binary node) or a plain expression naming an iterable.
func (p *exprParser) parseRange() (sast.Expr, error) {
	start := p.peek().offset
	lo, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if !p.is("...") {
		return lo, nil
	}
	p.advance()
	hi, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	return sast.NewBinaryOp(span(start, p.end()), "...", lo, hi), nil
}
