// Package metadata assembles the property map and the bidirectional
// instrumented↔original source map emitted alongside the printed output
// . The JSON shapes here are what
// --instrumentation-metadata-file persists.
package metadata

import (
	"sort"
	"strings"

	"github.com/oxhq/scribble/internal/hostast"
	"github.com/oxhq/scribble/internal/instrument"
	"github.com/oxhq/scribble/internal/printer"
	"github.com/oxhq/scribble/internal/sast"
)

// SourceRange is a byte span in an original input file.
type SourceRange struct {
	Offset    int `json:"start"`
	Length    int `json:"length"`
	FileIndex int `json:"sourceIndex"`
}

// OutputRange is a byte span in one instrumented output file.
type OutputRange struct {
	Offset    int `json:"start"`
	Length    int `json:"length"`
	FileIndex int `json:"fileIndex"`
}

// SpanPair links an instrumented span back to the original span it was
// copied or generated from.
type SpanPair struct {
	Instrumented OutputRange `json:"instrumented"`
	Original     SourceRange `json:"original"`
}

// PropertyRecord is one entry of the property map: one per
// if_succeeds/invariant annotation.
type PropertyRecord struct {
	ID                    int           `json:"id"`
	Contract              string        `json:"contract"`
	TargetKind            string        `json:"targetType"`
	TargetName            string        `json:"targetName"`
	PropertySource        SourceRange   `json:"propertySource"`
	AnnotationSource      SourceRange   `json:"annotationSource"`
	InstrumentationRanges []OutputRange `json:"instrumentationRanges"`
	CheckRanges           []OutputRange `json:"checkRanges"`
	DebugEventSignature   string        `json:"debugEventSignature,omitempty"`
	Message               string        `json:"message"`
}

// Metadata is the full record.
type Metadata struct {
	PropertyMap          []PropertyRecord `json:"propertyMap"`
	InstrToOriginalMap   []SpanPair       `json:"instrToOriginalMap"`
	OtherInstrumentation []OutputRange    `json:"otherInstrumentation"`
	OriginalSourceList   []string         `json:"originalSourceList"`
	InstrSourceList      []string         `json:"instrSourceList"`
}

// PrintedUnit is one unit's printed form plus the index of the output
// file it landed in. OutPath overrides the derived <unit>.instrumented
// name for flat/json outputs that concatenate several units into one
// file.
type PrintedUnit struct {
	Unit      hostast.NodeID
	FileIndex int
	Out       *printer.Output
	OutPath   string
}

// Emit assembles the metadata from the instrumentation context and the
// printed outputs. armed selects the .original suffixes for the original
// source list.
func Emit(ctx *instrument.Ctx, printed []PrintedUnit, originalFiles []string, armed bool) *Metadata {
	md := &Metadata{}

	outSpan := func(id hostast.NodeID) (OutputRange, bool) {
		for _, pu := range printed {
			if span, ok := pu.Out.Spans[id]; ok {
				return OutputRange{Offset: span.Offset, Length: span.Length, FileIndex: pu.FileIndex}, true
			}
		}
		return OutputRange{}, false
	}

	generated := make(map[hostast.NodeID]bool)
	for _, id := range ctx.OtherInstrumentation {
		generated[id] = true
	}
	for _, ids := range ctx.GeneralInstrumentation {
		for _, id := range ids {
			generated[id] = true
		}
	}

	// property map, one record per property annotation in id order
	for _, ann := range ctx.Annotations {
		if !ann.IsProperty() {
			continue
		}
		rec := PropertyRecord{
			ID:                  ann.ID,
			PropertySource:      toSourceRange(ann.PredicateRange),
			AnnotationSource:    toSourceRange(ann.FullRange),
			DebugEventSignature: ann.DebugEventSignature,
			Message:             ann.Label,
		}
		rec.Contract, rec.TargetKind, rec.TargetName = describeTarget(ctx.Arena, hostast.NodeID(ann.TargetNodeID))

		for _, id := range ctx.EvaluationStatements[ann] {
			if span, ok := outSpan(id); ok {
				rec.InstrumentationRanges = append(rec.InstrumentationRanges, span)
			}
			generated[id] = true
		}
		for _, id := range ctx.InstrumentedCheck[ann] {
			if span, ok := outSpan(id); ok {
				rec.CheckRanges = append(rec.CheckRanges, span)
				// the generated check maps back to its annotation span
				md.InstrToOriginalMap = append(md.InstrToOriginalMap, SpanPair{
					Instrumented: span,
					Original:     toSourceRange(ann.FullRange),
				})
			}
			generated[id] = true
		}
		md.PropertyMap = append(md.PropertyMap, rec)
	}
	sort.Slice(md.PropertyMap, func(i, j int) bool { return md.PropertyMap[i].ID < md.PropertyMap[j].ID })

	// nodes copied from the original AST whose source range survived map
	// straight back; generated nodes were handled above or land in
	// otherInstrumentation
	for _, pu := range printed {
		ids := make([]hostast.NodeID, 0, len(pu.Out.Spans))
		for id := range pu.Out.Spans {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			if generated[id] {
				continue
			}
			n := ctx.Arena.Get(id)
			if n == nil {
				continue
			}
			orig := n.SourceRange()
			if orig.Length == 0 || orig.FileIndex >= len(originalFiles) {
				continue
			}
			span := pu.Out.Spans[id]
			md.InstrToOriginalMap = append(md.InstrToOriginalMap, SpanPair{
				Instrumented: OutputRange{Offset: span.Offset, Length: span.Length, FileIndex: pu.FileIndex},
				Original:     SourceRange{Offset: orig.Offset, Length: orig.Length, FileIndex: orig.FileIndex},
			})
		}
	}

	for _, id := range ctx.OtherInstrumentation {
		if span, ok := outSpan(id); ok {
			md.OtherInstrumentation = append(md.OtherInstrumentation, span)
		}
	}

	for _, f := range originalFiles {
		if armed {
			md.OriginalSourceList = append(md.OriginalSourceList, f+".original")
		} else {
			md.OriginalSourceList = append(md.OriginalSourceList, f)
		}
	}
	for _, pu := range printed {
		if pu.OutPath != "" {
			md.InstrSourceList = append(md.InstrSourceList, pu.OutPath)
			continue
		}
		unit := ctx.Arena.Get(pu.Unit).(*hostast.SourceUnit)
		md.InstrSourceList = append(md.InstrSourceList, unit.Path+".instrumented")
	}
	return md
}

func toSourceRange(r sast.Range) SourceRange {
	return SourceRange{Offset: r.Offset, Length: r.Length, FileIndex: r.FileIndex}
}

// describeTarget reports the enclosing contract, target kind, and target
// name of an annotation's host node.
func describeTarget(a *hostast.Arena, id hostast.NodeID) (contract, kind, name string) {
	switch n := a.Get(id).(type) {
	case *hostast.ContractDecl:
		return n.Name, "contract", n.Name
	case *hostast.FunctionDecl:
		name = n.Name
		if c, ok := a.Get(n.ContractID).(*hostast.ContractDecl); ok {
			contract = c.Name
			// a wrapped function keeps its body as <name>_original beside
			// the interposer that carries the user-facing name
			if base := strings.TrimSuffix(n.Name, "_original"); base != n.Name {
				for _, fid := range c.Functions {
					if f, ok := a.Get(fid).(*hostast.FunctionDecl); ok && fid != id && f.Name == base {
						name = base
					}
				}
			}
		}
		return contract, "function", name
	case *hostast.VariableDecl:
		if c, ok := a.Get(n.ContractID).(*hostast.ContractDecl); ok {
			contract = c.Name
		}
		return contract, "variable", n.Name
	}
	return "", "", ""
}
