package specparser

import (
	"strconv"

	"github.com/oxhq/scribble/internal/sast"
)

// ParsedAnnotation is the result of parsing one annotation body, offsets
// relative to the text handed to ParseAnnotation. The extractor lifts
// them to file offsets.
type ParsedAnnotation struct {
	Kind  sast.AnnotationKind
	Label string

	// Predicate is set for if_succeeds/invariant; Def for define.
	Predicate sast.Expr
	Def       *sast.UserFunctionDef

	// PredicateOffset is where the expression (or, for define, the whole
	// definition) starts within the input, feeding the annotation record's
	// predicateFileLoc.
	PredicateOffset int

	// End is the offset just past the terminating ';' (or the last token
	// when the ';' is omitted at end of comment).
	End int
}

// ParseAnnotation parses one annotation starting at its kind word (the
// extractor has already consumed the '#'). Grammar
//
//	annotation := kind label? body ';'
//	label      := '{:msg "…"}'
//	body       := expression | identifier '(' params ')' type '=' expression
func ParseAnnotation(src string) (*ParsedAnnotation, error) {
	p := newExprParser(src)

	kindTok := p.advance()
	if kindTok.kind != tokIdent {
		return nil, errf(kindTok.offset, "expected annotation kind, found %q", kindTok.text)
	}
	var kind sast.AnnotationKind
	switch kindTok.text {
	case "if_succeeds":
		kind = sast.IfSucceeds
	case "invariant":
		kind = sast.Invariant
	case "define":
		kind = sast.Define
	default:
		return nil, errf(kindTok.offset, "unknown annotation kind %q", kindTok.text)
	}

	label, err := p.parseLabel()
	if err != nil {
		return nil, err
	}

	out := &ParsedAnnotation{Kind: kind, Label: label}
	out.PredicateOffset = p.peek().offset

	if kind == sast.Define {
		def, err := p.parseDefinition()
		if err != nil {
			return nil, err
		}
		out.Def = def
	} else {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		out.Predicate = expr
	}

	if p.is(";") {
		p.advance()
	}
	out.End = p.end()
	if !p.atEOF() {
		return nil, errf(p.peek().offset, "unexpected trailing input %q after annotation", p.peek().text)
	}
	return out, nil
}

// parseLabel consumes an optional `{:msg "…"}` label.
func (p *exprParser) parseLabel() (string, error) {
	if !p.is("{") {
		return "", nil
	}
	p.advance()
	if _, err := p.expect(":"); err != nil {
		return "", err
	}
	msgTok := p.advance()
	if msgTok.kind != tokIdent || msgTok.text != "msg" {
		return "", errf(msgTok.offset, "expected \"msg\" in label, found %q", msgTok.text)
	}
	strTok := p.advance()
	if strTok.kind != tokString {
		return "", errf(strTok.offset, "expected label string, found %q", strTok.text)
	}
	label, err := strconv.Unquote(strTok.text)
	if err != nil {
		label = strTok.text
	}
	if _, err := p.expect("}"); err != nil {
		return "", err
	}
	return label, nil
}

// parseDefinition parses `name(params) type = expr`. The containing
// contract is filled in by the extractor, which knows the target node.
func (p *exprParser) parseDefinition() (*sast.UserFunctionDef, error) {
	nameTok := p.advance()
	if nameTok.kind != tokIdent {
		return nil, errf(nameTok.offset, "expected function name in define")
	}
	if _, err := p.expect("("); err != nil {
		return nil, err
	}
	var params []sast.Param
	if !p.is(")") {
		for {
			pt, err := p.parseType()
			if err != nil {
				return nil, err
			}
			pn := p.advance()
			if pn.kind != tokIdent {
				return nil, errf(pn.offset, "expected parameter name, found %q", pn.text)
			}
			params = append(params, sast.Param{Name: pn.text, Type: pt})
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
	retType, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect("="); err != nil {
		return nil, err
	}
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &sast.UserFunctionDef{
		Name:       nameTok.text,
		Params:     params,
		ReturnType: retType,
		Body:       body,
	}, nil
}
