// Package instrument synthesizes the utilities unit,
// lowers checked annotation expressions to host-AST code, wraps target
// functions with interposers, and installs contract-invariant guards. All
// mutation goes through the arena; every generated node is stamped with
// the source range of the annotation it derives from so the metadata
// emitter can trace it back.
package instrument

import (
	"path"

	"github.com/oxhq/scribble/internal/cha"
	"github.com/oxhq/scribble/internal/hostast"
	"github.com/oxhq/scribble/internal/sast"
	"github.com/oxhq/scribble/internal/typecheck"
)

// UtilsContractName is the name of the synthesized utilities contract;
// every instrumented contract inherits it.
const UtilsContractName = "__scribble_ReentrancyUtils"

// UtilsFileName is the file the utilities unit is written to, under
// --utils-output-path.
const UtilsFileName = "__scribble_ReentrancyUtils.sol"

// AssertMode selects the user-assertion lowering strategy.
type AssertMode string

const (
	// AssertLog emits an event on failure.
	AssertLog AssertMode = "log"
	// AssertMstore writes a magic value at a known memory slot and
	// reverts.
	AssertMstore AssertMode = "mstore"
)

// Options is the filter/output surface of the instrumenter, filled from
// the CLI flags.
type Options struct {
	UserAssertMode  AssertMode
	NoAssert        bool
	DebugEvents     bool
	UtilsOutputPath string
}

// UtilsPath is where generated imports reference the utilities unit.
func (o Options) UtilsPath() string {
	return path.Join(o.UtilsOutputPath, UtilsFileName)
}

type wrapPhase int

// The wrapping state machine; transitions are idempotent
// per (contract, function).
const (
	unannotated wrapPhase = iota
	wrappingStarted
	prologueReady
	instrumented
)

type wrapKey struct {
	contract hostast.NodeID
	function hostast.NodeID
}

// Ctx is the instrumentation context: it lives from after
// the merge until output emission and is the single writer of its maps.
type Ctx struct {
	Arena     *hostast.Arena // doubles as the node factory
	Units     []hostast.NodeID
	Hierarchy *cha.CHA
	Calls     *cha.CallGraph
	Env       *typecheck.Env
	Sem       typecheck.SemanticMap
	Opts      Options

	// Annotations lists every annotation processed, in extraction order.
	Annotations []*sast.Annotation

	// EvaluationStatements maps an annotation to the statements generated
	// to evaluate it (old captures, quantifier loops, let bindings).
	EvaluationStatements map[*sast.Annotation][]hostast.NodeID
	// InstrumentedCheck maps an annotation to its final condition nodes.
	// An invariant checked in several contracts of a hierarchy has one
	// condition node per emitted checker.
	InstrumentedCheck map[*sast.Annotation][]hostast.NodeID
	// DebugEvents maps an annotation to its generated event signature.
	DebugEvents map[*sast.Annotation]string
	// GeneralInstrumentation maps a property id to supporting nodes not
	// tied to one check site (invariant-checker functions, guards).
	GeneralInstrumentation map[int][]hostast.NodeID
	// OtherInstrumentation collects generated nodes attributable to no
	// single annotation (utils plumbing, entry bookkeeping).
	OtherInstrumentation []hostast.NodeID

	// UtilsUnit is the synthesized unit's root.
	UtilsUnit     hostast.NodeID
	utilsContract hostast.NodeID

	wrapState   map[wrapKey]wrapPhase
	nameCounter int
	definesDone map[string]bool // contractName + "." + defineName
}

// NewCtx builds the context once per run, after the merge (
// "Lifecycles").
func NewCtx(arena *hostast.Arena, units []hostast.NodeID, hierarchy *cha.CHA,
	calls *cha.CallGraph, env *typecheck.Env, sem typecheck.SemanticMap,
	anns []*sast.Annotation, opts Options) *Ctx {
	if opts.UserAssertMode == "" {
		opts.UserAssertMode = AssertLog
	}
	return &Ctx{
		Arena:                  arena,
		Units:                  units,
		Hierarchy:              hierarchy,
		Calls:                  calls,
		Env:                    env,
		Sem:                    sem,
		Opts:                   opts,
		Annotations:            anns,
		EvaluationStatements:   make(map[*sast.Annotation][]hostast.NodeID),
		InstrumentedCheck:      make(map[*sast.Annotation][]hostast.NodeID),
		DebugEvents:            make(map[*sast.Annotation]string),
		GeneralInstrumentation: make(map[int][]hostast.NodeID),
		wrapState:              make(map[wrapKey]wrapPhase),
		definesDone:            make(map[string]bool),
	}
}

// mint creates a node id and registers the node built by build. Every
// generated node carries rng, normally the originating annotation's span.
func (c *Ctx) mint(build func(id hostast.NodeID) hostast.Node) hostast.NodeID {
	id := c.Arena.NextID()
	c.Arena.Put(build(id))
	return id
}

// freshName returns a generated-local name that cannot collide with user
// identifiers.
func (c *Ctx) freshName(stem string) string {
	c.nameCounter++
	return stem + itoa(c.nameCounter)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// annRange converts an annotation's file span to a host range, the stamp
// generated nodes carry.
func annRange(r sast.Range) hostast.Range {
	return hostast.Range{Offset: r.Offset, Length: r.Length, FileIndex: r.FileIndex}
}
