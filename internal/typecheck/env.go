// Package typecheck implements name resolution, type assignment, and
// the semantic pass over parsed annotations. Checking is idempotent: an
// already-checked tree gets the same assignments,
// because every rule is a pure function of the node and its scope.
package typecheck

import (
	"github.com/oxhq/scribble/internal/hostast"
	"github.com/oxhq/scribble/internal/sast"
)

// Env is the type environment: one map from SAST node to its
// assigned type, one from (contract, name) to user-function definition.
type Env struct {
	exprTypes map[sast.Expr]sast.Type
	userFuncs map[funcKey]*sast.UserFunctionDef
}

type funcKey struct {
	contract string
	name     string
}

func NewEnv() *Env {
	return &Env{
		exprTypes: make(map[sast.Expr]sast.Type),
		userFuncs: make(map[funcKey]*sast.UserFunctionDef),
	}
}

// TypeOf returns the type assigned to x, if checking has reached it.
func (e *Env) TypeOf(x sast.Expr) (sast.Type, bool) {
	t, ok := e.exprTypes[x]
	return t, ok
}

func (e *Env) setType(x sast.Expr, t sast.Type) {
	e.exprTypes[x] = t
}

// RegisterUserFunc records a #define under its (contract, name) key.
func (e *Env) RegisterUserFunc(def *sast.UserFunctionDef) {
	e.userFuncs[funcKey{contract: def.Contract, name: def.Name}] = def
}

// UserFunc resolves name against the linearized base-contract list of the
// query scope, most-derived first.
func (e *Env) UserFunc(contracts []string, name string) *sast.UserFunctionDef {
	for _, c := range contracts {
		if def, ok := e.userFuncs[funcKey{contract: c, name: name}]; ok {
			return def
		}
	}
	return nil
}

// Flags is the semantic-flag set of semantic map.
type Flags uint8

const (
	ReadsState Flags = 1 << iota
	ReadsOld
	CallsExternal
)

// Pure reports the absence of any state interaction.
func (f Flags) Pure() bool { return f&(ReadsState|CallsExternal) == 0 }

// SemanticMap records per-node semantic flags; the checker fills it and the
// instrumenter consults it (old-capture planning keys off ReadsOld).
type SemanticMap map[sast.Expr]Flags

func (m SemanticMap) Mark(x sast.Expr, f Flags) { m[x] |= f }

func (m SemanticMap) Has(x sast.Expr, f Flags) bool { return m[x]&f != 0 }

// scope is one ring of the name-resolution chain: quantifier and let
// binders, then user-function parameters, then everything the host tree
// provides.
type scope struct {
	parent *scope
	names  map[string]sast.Type
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, names: make(map[string]sast.Type)}
}

func (s *scope) bind(name string, t sast.Type) { s.names[name] = t }

func (s *scope) lookup(name string) (sast.Type, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if t, ok := cur.names[name]; ok {
			return t, true
		}
	}
	return nil, false
}

// Context is the typing context an annotation is checked in:
// the merged units, the contract the target belongs to, and, for function
// targets, the function.
type Context struct {
	Units      []hostast.NodeID
	ContractID hostast.NodeID
	FunctionID hostast.NodeID // zero for contract/variable targets
}
