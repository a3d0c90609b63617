// Package pipeline orchestrates the deterministic compile→check→
// instrument→print sequence: merge the compiled groups,
// extract and check annotations, compute the hierarchy, instrument, and
// render the selected output mode. All phases are synchronous; a fatal
// error aborts before any output is assembled.
package pipeline

import (
	"github.com/oxhq/scribble/internal/cha"
	"github.com/oxhq/scribble/internal/extractor"
	"github.com/oxhq/scribble/internal/flatten"
	"github.com/oxhq/scribble/internal/hostast"
	"github.com/oxhq/scribble/internal/instrument"
	"github.com/oxhq/scribble/internal/merge"
	"github.com/oxhq/scribble/internal/metadata"
	"github.com/oxhq/scribble/internal/printer"
	"github.com/oxhq/scribble/internal/sast"
	"github.com/oxhq/scribble/internal/typecheck"
)

// Options selects what the pipeline produces.
type Options struct {
	FilterType    string
	FilterMessage string

	// CompilerVersion seeds the pragma prepended in flat/json modes.
	CompilerVersion string

	// OutputMode is flat, files, or json.
	OutputMode string

	// Armed selects .original suffixes in the metadata source lists.
	Armed bool

	Instrument instrument.Options
}

// FileOutput is one instrumented file in files mode.
type FileOutput struct {
	Path    string
	Content []byte
}

// Result is everything a run produced.
type Result struct {
	// Files holds per-unit output in files mode (plus the utilities
	// unit); empty in flat/json modes.
	Files []FileOutput
	// Flat is the concatenated output in flat/json modes.
	Flat string
	// Metadata is the emitted property map and source maps.
	Metadata *metadata.Metadata
	// Annotations lists what was extracted, for progress reporting.
	Annotations []*sast.Annotation
	// Ctx exposes the instrumentation context to the CLI layer (ledger
	// records, diff summaries).
	Ctx *instrument.Ctx
}

// Run executes the pipeline over already-compiled groups. The sanity
// predicate is the host oracle's, re-run on every merged unit.
func Run(groups []merge.Group, sanity merge.SanityFunc, opts Options) (*Result, error) {
	merged, err := merge.Merge(groups, sanity)
	if err != nil {
		return nil, err
	}

	filter, err := extractor.NewFilter(opts.FilterType, opts.FilterMessage)
	if err != nil {
		return nil, err
	}

	ext := extractor.New(merged.Arena)
	var anns []*sast.Annotation
	for _, uid := range merged.Units {
		unitAnns, err := ext.ExtractUnit(uid, filter)
		if err != nil {
			return nil, err
		}
		anns = append(anns, unitAnns...)
	}

	hierarchy, err := cha.New(merged.Arena, merged.Units)
	if err != nil {
		return nil, err
	}

	checker := typecheck.NewChecker(merged.Arena, hierarchy)
	for _, ann := range anns {
		ctx := typecheck.Context{Units: merged.Units}
		switch n := merged.Arena.Get(hostast.NodeID(ann.TargetNodeID)).(type) {
		case *hostast.ContractDecl:
			ctx.ContractID = n.ID()
		case *hostast.FunctionDecl:
			ctx.ContractID = n.ContractID
			ctx.FunctionID = n.ID()
		case *hostast.VariableDecl:
			ctx.ContractID = n.ContractID
		}
		if err := checker.CheckAnnotation(ann, ctx); err != nil {
			return nil, err
		}
	}

	callGraph, err := hierarchy.BuildCallGraph()
	if err != nil {
		return nil, err
	}

	ictx := instrument.NewCtx(merged.Arena, merged.Units, hierarchy, callGraph,
		checker.Env, checker.Sem, anns, opts.Instrument)
	if err := instrument.Run(ictx); err != nil {
		return nil, err
	}

	originalFiles := inputFiles(merged.Arena, ictx)
	res := &Result{Annotations: anns, Ctx: ictx}

	switch opts.OutputMode {
	case "flat", "json":
		all := append([]hostast.NodeID{ictx.UtilsUnit}, merged.Units...)
		flat, err := flatten.Flatten(merged.Arena, all, opts.CompilerVersion)
		if err != nil {
			return nil, err
		}
		res.Flat = flat.Text
		combined := &printer.Output{Text: flat.Text, Spans: flat.Spans}
		printed := []metadata.PrintedUnit{{
			Unit: merged.Units[0], FileIndex: 0, Out: combined, OutPath: "flattened.sol",
		}}
		res.Metadata = metadata.Emit(ictx, printed, originalFiles, opts.Armed)

	default: // files
		var printed []metadata.PrintedUnit
		for i, uid := range append(merged.Units, ictx.UtilsUnit) {
			out := printer.Print(merged.Arena, uid)
			unit := merged.Arena.Get(uid).(*hostast.SourceUnit)
			path := unit.Path
			if uid != ictx.UtilsUnit {
				path += ".instrumented"
			}
			res.Files = append(res.Files, FileOutput{Path: path, Content: []byte(out.Text)})
			printed = append(printed, metadata.PrintedUnit{Unit: uid, FileIndex: i, Out: out, OutPath: path})
		}
		res.Metadata = metadata.Emit(ictx, printed, originalFiles, opts.Armed)
	}

	return res, nil
}

// inputFiles returns the original file paths, excluding the synthesized
// utilities file appended during instrumentation.
func inputFiles(a *hostast.Arena, ictx *instrument.Ctx) []string {
	utilsPath := ""
	if u, ok := a.Get(ictx.UtilsUnit).(*hostast.SourceUnit); ok {
		utilsPath = u.Path
	}
	var out []string
	for _, f := range a.Files {
		if f != utilsPath {
			out = append(out, f)
		}
	}
	return out
}
