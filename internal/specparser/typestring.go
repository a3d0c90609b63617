package specparser

import (
	"strconv"
	"strings"

	"github.com/oxhq/scribble/internal/sast"
)

// ParseTypeString parses the host compiler's external representation of a
// type so the checker can rebuild type
// objects from the strings stored on host-AST declarations. It accepts the
// elementary forms (uintN/intN/bool/address/string/bytes/bytesN), array
// suffixes, mapping(K => V), tuple(...), function types, and the
// declaration-reference forms `contract C`, `struct A.B`, `enum A.E`.
// Storage-location words (storage/memory/calldata/ref/pointer) are
// accepted and ignored.
func ParseTypeString(s string) (sast.Type, error) {
	p := newExprParser(s)
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipStorageLocation()
	if !p.atEOF() {
		return nil, errf(p.peek().offset, "unexpected trailing input %q in type", p.peek().text)
	}
	return t, nil
}

var storageWords = map[string]bool{
	"storage": true, "memory": true, "calldata": true,
	"ref": true, "pointer": true, "slice": true,
}

func (p *exprParser) skipStorageLocation() {
	for p.peek().kind == tokIdent && storageWords[p.peek().text] {
		p.advance()
	}
}

// parseType parses one type from the shared token stream; the quantifier
// grammar uses it for binder types and ParseTypeString for whole strings.
func (p *exprParser) parseType() (sast.Type, error) {
	base, err := p.parseBaseType()
	if err != nil {
		return nil, err
	}
	// array suffixes bind left-to-right: uint256[3][] is an array of arrays
	for p.is("[") {
		p.advance()
		if p.is("]") {
			p.advance()
			base = sast.DynamicArrayType{Elem: base}
			continue
		}
		sizeTok := p.advance()
		if sizeTok.kind != tokInt {
			return nil, errf(sizeTok.offset, "expected array size, found %q", sizeTok.text)
		}
		size, err := strconv.Atoi(sizeTok.text)
		if err != nil {
			return nil, errf(sizeTok.offset, "bad array size %q", sizeTok.text)
		}
		if _, err := p.expect("]"); err != nil {
			return nil, err
		}
		base = sast.FixedArrayType{Elem: base, Size: size}
	}
	return base, nil
}

func (p *exprParser) parseBaseType() (sast.Type, error) {
	t := p.peek()
	if t.kind != tokIdent {
		return nil, errf(t.offset, "expected type, found %q", t.text)
	}

	switch t.text {
	case "bool":
		p.advance()
		return sast.BoolType{}, nil
	case "string":
		p.advance()
		return sast.StringType{}, nil
	case "address":
		p.advance()
		if p.peek().kind == tokIdent && p.peek().text == "payable" {
			p.advance()
			return sast.AddressType{Payable: true}, nil
		}
		return sast.AddressType{}, nil
	case "mapping":
		p.advance()
		if _, err := p.expect("("); err != nil {
			return nil, err
		}
		key, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect("=>"); err != nil {
			return nil, err
		}
		val, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
		return sast.MappingType{Key: key, Value: val}, nil
	case "tuple":
		p.advance()
		if _, err := p.expect("("); err != nil {
			return nil, err
		}
		var elems []sast.Type
		if !p.is(")") {
			for {
				e, err := p.parseType()
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
		return sast.TupleType{Elements: elems}, nil
	case "function":
		return p.parseFunctionType()
	case "type":
		p.advance()
		if _, err := p.expect("("); err != nil {
			return nil, err
		}
		of, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
		return sast.MetaType{Of: of}, nil
	case "contract":
		p.advance()
		name, err := p.parseQualifiedName()
		if err != nil {
			return nil, err
		}
		return sast.ContractType{Name: name}, nil
	case "struct":
		p.advance()
		name, err := p.parseQualifiedName()
		if err != nil {
			return nil, err
		}
		return sast.StructType{Name: name}, nil
	case "enum":
		p.advance()
		name, err := p.parseQualifiedName()
		if err != nil {
			return nil, err
		}
		return sast.EnumType{Name: name}, nil
	}

	if it, ok := integerType(t.text); ok {
		p.advance()
		return it, nil
	}
	if n, ok := bytesWidth(t.text); ok {
		p.advance()
		return sast.BytesType{N: n}, nil
	}

	// a bare identifier names a user declaration; which kind it is gets
	// settled by the checker once it can see the merged tree
	p.advance()
	name := t.text
	for p.is(".") {
		p.advance()
		next := p.advance()
		if next.kind != tokIdent {
			return nil, errf(next.offset, "expected name after '.' in type")
		}
		name += "." + next.text
	}
	return sast.ContractType{Name: name}, nil
}

func (p *exprParser) parseFunctionType() (sast.Type, error) {
	p.advance() // "function"
	if _, err := p.expect("("); err != nil {
		return nil, err
	}
	var params []sast.Type
	if !p.is(")") {
		for {
			pt, err := p.parseType()
			if err != nil {
				return nil, err
			}
			p.skipStorageLocation()
			params = append(params, pt)
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
	// optional visibility/mutability words before returns
	for p.peek().kind == tokIdent {
		switch p.peek().text {
		case "external", "internal", "public", "private", "pure", "view", "payable", "nonpayable":
			p.advance()
			continue
		}
		break
	}
	var returns []sast.Type
	if p.peek().kind == tokIdent && p.peek().text == "returns" {
		p.advance()
		if _, err := p.expect("("); err != nil {
			return nil, err
		}
		for {
			rt, err := p.parseType()
			if err != nil {
				return nil, err
			}
			p.skipStorageLocation()
			returns = append(returns, rt)
			if p.is(",") {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
	}
	return sast.FunctionType{Params: params, Returns: returns}, nil
}

func (p *exprParser) parseQualifiedName() (string, error) {
	t := p.advance()
	if t.kind != tokIdent {
		return "", errf(t.offset, "expected declaration name, found %q", t.text)
	}
	name := t.text
	for p.is(".") {
		p.advance()
		next := p.advance()
		if next.kind != tokIdent {
			return "", errf(next.offset, "expected name after '.'")
		}
		name += "." + next.text
	}
	return name, nil
}

// integerType recognizes int/uint with an optional bit width. Bare int and
// uint alias the 256-bit forms, matching the host language.
func integerType(word string) (sast.IntegerType, bool) {
	signed := false
	rest := ""
	switch {
	case word == "int" || word == "uint":
		return sast.IntegerType{Signed: word == "int", Bits: 256}, true
	case strings.HasPrefix(word, "uint"):
		rest = word[4:]
	case strings.HasPrefix(word, "int"):
		signed = true
		rest = word[3:]
	default:
		return sast.IntegerType{}, false
	}
	bits, err := strconv.Atoi(rest)
	if err != nil || bits < 8 || bits > 256 || bits%8 != 0 {
		return sast.IntegerType{}, false
	}
	return sast.IntegerType{Signed: signed, Bits: bits}, true
}

func bytesWidth(word string) (int, bool) {
	if word == "bytes" {
		return 0, true
	}
	if !strings.HasPrefix(word, "bytes") {
		return 0, false
	}
	n, err := strconv.Atoi(word[5:])
	if err != nil || n < 1 || n > 32 {
		return 0, false
	}
	return n, true
}
