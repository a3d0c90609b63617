// Package extractor locates the doc-comment attached to
// each contract, function, and state variable, scans it for annotation
// introducers, delegates the bodies to internal/specparser, and lifts every
// resulting range to file offsets. Failures surface as positioned
// diagnostics pinned to the offending byte range.
package extractor

import (
	"regexp"

	"github.com/oxhq/scribble/internal/diag"
	"github.com/oxhq/scribble/internal/hostast"
	"github.com/oxhq/scribble/internal/sast"
	"github.com/oxhq/scribble/internal/specparser"
)

// Filter restricts which annotations survive extraction (
// --filter-type/--filter-message). Both patterns are compiled once per run;
// a malformed pattern is a syntax-class user error at startup.
type Filter struct {
	typeRe *regexp.Regexp
	msgRe  *regexp.Regexp
}

// NewFilter compiles the two optional patterns. Empty patterns match
// everything.
func NewFilter(typePat, msgPat string) (*Filter, error) {
	f := &Filter{}
	var err error
	if typePat != "" {
		if f.typeRe, err = regexp.Compile(typePat); err != nil {
			return nil, diag.Wrap(diag.Syntax, diag.Position{}, "bad --filter-type pattern", err)
		}
	}
	if msgPat != "" {
		if f.msgRe, err = regexp.Compile(msgPat); err != nil {
			return nil, diag.Wrap(diag.Syntax, diag.Position{}, "bad --filter-message pattern", err)
		}
	}
	return f, nil
}

// Match reports whether an annotation with the given kind and label passes
// the filter.
func (f *Filter) Match(kind sast.AnnotationKind, label string) bool {
	if f == nil {
		return true
	}
	if f.typeRe != nil && !f.typeRe.MatchString(string(kind)) {
		return false
	}
	if f.msgRe != nil && !f.msgRe.MatchString(label) {
		return false
	}
	return true
}

// Extractor walks source units and accumulates annotations. IDs are unique
// and monotonic across every unit one Extractor processes, in source
// order within a file and file order across calls.
type Extractor struct {
	arena  *hostast.Arena
	nextID int
}

func New(arena *hostast.Arena) *Extractor {
	return &Extractor{arena: arena}
}

// ExtractUnit extracts every annotation attached to declarations in the
// unit, applies the filter, and returns the survivors in source order.
func (x *Extractor) ExtractUnit(unitID hostast.NodeID, filter *Filter) ([]*sast.Annotation, error) {
	unit, ok := x.arena.Get(unitID).(*hostast.SourceUnit)
	if !ok {
		return nil, diag.Newf(diag.Internal, diag.Position{}, "node %d is not a source unit", unitID)
	}
	fi := unit.SourceRange().FileIndex
	var src []byte
	if fi < len(x.arena.Sources) {
		src = x.arena.Sources[fi]
	}
	resolver := diag.NewResolver(x.arena.Files[fi], src)

	var out []*sast.Annotation

	// free-standing functions never take annotations
	for _, fnID := range unit.Functions {
		fn := x.arena.Get(fnID).(*hostast.FunctionDecl)
		text, base, found := x.docCommentFor(fn.DocComment, src, fn.SourceRange().Offset)
		if !found {
			continue
		}
		scrubbed := scrub(text)
		for i := 0; i < len(scrubbed); i++ {
			if introducerAt(scrubbed, i) {
				return nil, diag.Newf(diag.TargetMismatch, resolver.Position(base+i),
					"annotations are not allowed on free-standing functions").WithSource(fn.Name)
			}
		}
	}

	for _, cid := range unit.Contracts {
		contract := x.arena.Get(cid).(*hostast.ContractDecl)

		anns, err := x.extractTarget(contract.DocComment, src, contract.SourceRange().Offset,
			cid, contract.Name, targetContract, fi, resolver, filter)
		if err != nil {
			return nil, err
		}
		out = append(out, anns...)

		for _, vid := range contract.Variables {
			v := x.arena.Get(vid).(*hostast.VariableDecl)
			anns, err := x.extractTarget(v.DocComment, src, v.SourceRange().Offset,
				vid, contract.Name, targetVariable, fi, resolver, filter)
			if err != nil {
				return nil, err
			}
			out = append(out, anns...)
		}

		for _, fid := range contract.Functions {
			fn := x.arena.Get(fid).(*hostast.FunctionDecl)
			anns, err := x.extractTarget(fn.DocComment, src, fn.SourceRange().Offset,
				fid, contract.Name, targetFunction, fi, resolver, filter)
			if err != nil {
				return nil, err
			}
			out = append(out, anns...)
		}
	}
	return out, nil
}

type targetClass int

const (
	targetContract targetClass = iota
	targetFunction
	targetVariable
)

// kindAllowed encodes placement rules: invariant lives on
// contracts (or a single state variable), if_succeeds on functions, define
// on contracts.
func kindAllowed(kind sast.AnnotationKind, tc targetClass) bool {
	switch kind {
	case sast.Invariant:
		return tc == targetContract || tc == targetVariable
	case sast.IfSucceeds:
		return tc == targetFunction
	case sast.Define:
		return tc == targetContract
	}
	return false
}

// docCommentFor prefers the structured documentation node when the host
// AST attached one, falling back to a raw-source scan immediately
// preceding the declaration.
func (x *Extractor) docCommentFor(docID hostast.NodeID, src []byte, declOffset int) (string, int, bool) {
	if docID != 0 {
		doc := x.arena.Get(docID).(*hostast.DocComment)
		return doc.Text, doc.SourceRange().Offset, true
	}
	if len(src) == 0 {
		return "", 0, false
	}
	return precedingComment(src, declOffset)
}

func (x *Extractor) extractTarget(
	docID hostast.NodeID, src []byte, declOffset int,
	target hostast.NodeID, contractName string, tc targetClass,
	fi int, resolver *diag.Resolver, filter *Filter,
) ([]*sast.Annotation, error) {
	text, base, found := x.docCommentFor(docID, src, declOffset)
	if !found {
		return nil, nil
	}
	scrubbed := scrub(text)
	docRange := sast.Range{Offset: base, Length: len(text), FileIndex: fi}

	var out []*sast.Annotation
	for i := 0; i < len(scrubbed); i++ {
		if !introducerAt(scrubbed, i) {
			continue
		}

		// the body runs to the next introducer, a blank comment line, or
		// the end of the comment
		end := len(scrubbed)
		for j := i + 1; j < len(scrubbed); j++ {
			if introducerAt(scrubbed, j) {
				end = j
				break
			}
		}
		if blank := blankLineAfter(scrubbed, i); blank < end {
			end = blank
		}

		body := scrubbed[i+1 : end]
		parsed, err := specparser.ParseAnnotation(body)
		if err != nil {
			pos := resolver.Position(base + i)
			if off, ok := specparser.ParseErrorOffset(err); ok {
				pos = resolver.Position(base + i + 1 + off)
			}
			return nil, diag.Wrap(diag.Syntax, pos, "cannot parse annotation", err).
				WithSource(trimAnnotation(text[i:end]))
		}

		if !kindAllowed(parsed.Kind, tc) {
			return nil, diag.Newf(diag.TargetMismatch, resolver.Position(base+i),
				"%s annotation is not allowed on this target", parsed.Kind).
				WithSource(trimAnnotation(text[i:end]))
		}

		if !filter.Match(parsed.Kind, parsed.Label) {
			i = end - 1
			continue
		}

		delta := base + i + 1
		ann := &sast.Annotation{
			Kind:            parsed.Kind,
			Label:           parsed.Label,
			TargetNodeID:    int(target),
			RawText:         text[i : i+1+parsed.End],
			FullRange:       sast.Range{Offset: base + i, Length: 1 + parsed.End, FileIndex: fi},
			DocCommentRange: docRange,
		}
		if parsed.Predicate != nil {
			sast.Lift(parsed.Predicate, delta, fi)
			ann.Predicate = parsed.Predicate
			ann.PredicateRange = parsed.Predicate.SourceRange()
		}
		if parsed.Def != nil {
			sast.Lift(parsed.Def.Body, delta, fi)
			parsed.Def.Contract = contractName
			ann.UserFunc = parsed.Def
			ann.PredicateRange = sast.Range{
				Offset:    delta + parsed.PredicateOffset,
				Length:    parsed.End - parsed.PredicateOffset,
				FileIndex: fi,
			}
		}
		ann.ID = x.nextID
		x.nextID++
		out = append(out, ann)
		i = end - 1
	}
	return out, nil
}

// trimAnnotation tidies the verbatim annotation slice for diagnostics.
func trimAnnotation(s string) string {
	for len(s) > 0 {
		last := s[len(s)-1]
		if last == ' ' || last == '\t' || last == '\n' || last == '\r' {
			s = s[:len(s)-1]
			continue
		}
		break
	}
	return s
}
