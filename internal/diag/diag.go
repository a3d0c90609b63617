// Package diag implements scribble's positioned-diagnostic error taxonomy.
//
// Every user-facing failure in the pipeline is a *Diagnostic: a kind drawn
// from a fixed set, a byte position resolved to file:line:col, the
// offending source text, and an optional wrapped cause. Diagnostics never
// get caught except to add coordinates; nothing downstream of a fatal
// diagnostic runs.
package diag

import (
	"fmt"
	"strings"
)

// Kind is the taxonomy of error classes a run can fail with. It mirrors the
// stages of the pipeline: extraction and parsing fail as Syntax, placing an
// annotation on the wrong kind of node fails as TargetMismatch, and so on.
type Kind string

const (
	Syntax           Kind = "syntax"
	TargetMismatch   Kind = "target-mismatch"
	Type             Kind = "type"
	Semantic         Kind = "semantic"
	Merge            Kind = "merge"
	AmbiguousVersion Kind = "ambiguous-version"
	HostCompile      Kind = "host-compile"
	Internal         Kind = "internal"
)

// Position is a resolved file coordinate. Line and Col are 1-based.
type Position struct {
	File string
	Line int
	Col  int
}

func (p Position) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Col)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Diagnostic is the uniform error payload the entire pipeline returns.
// It implements error, and Unwrap exposes the wrapped cause so
// errors.Is/errors.As keep working across diagnostic boundaries.
type Diagnostic struct {
	Kind    Kind
	Code    string // machine-readable discriminant within a kind, e.g. "unknown-name"
	Pos     Position
	Message string
	Source  string // the offending annotation or token text, verbatim
	Cause   error
}

func (d *Diagnostic) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %s", d.Pos, d.Kind, d.Message)
	if d.Source != "" {
		b.WriteString("\n")
		b.WriteString(d.Source)
	}
	return b.String()
}

func (d *Diagnostic) Unwrap() error { return d.Cause }

// New builds a Diagnostic with no wrapped cause.
func New(kind Kind, pos Position, msg string) *Diagnostic {
	return &Diagnostic{Kind: kind, Pos: pos, Message: msg}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, pos Position, format string, args ...any) *Diagnostic {
	return New(kind, pos, fmt.Sprintf(format, args...))
}

// Wrap attaches position and kind to an existing error, the way
// internal/core/errorfmt.go's Wrap attached a CLIError code to an inner
// error. The inner error's text becomes diagnostic detail.
func Wrap(kind Kind, pos Position, msg string, cause error) *Diagnostic {
	return &Diagnostic{Kind: kind, Pos: pos, Message: msg, Cause: cause}
}

// WithSource returns a copy of d with Source set, used once the caller has
// sliced the offending annotation text out of the file.
func (d *Diagnostic) WithSource(src string) *Diagnostic {
	cp := *d
	cp.Source = src
	return &cp
}

// WithCode returns a copy of d carrying a machine-readable subtype
// discriminant.
func (d *Diagnostic) WithCode(code string) *Diagnostic {
	cp := *d
	cp.Code = code
	return &cp
}

// Resolver turns byte offsets in a known file's contents into Positions.
// One Resolver is built per file and reused across every diagnostic raised
// against that file, since scanning line starts is O(n) and diagnostics
// are comparatively rare.
type Resolver struct {
	file       string
	lineStarts []int
}

// NewResolver indexes the newline offsets of src once.
func NewResolver(file string, src []byte) *Resolver {
	starts := []int{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &Resolver{file: file, lineStarts: starts}
}

// Position maps a byte offset to a 1-based line/column pair via binary
// search over the indexed line starts.
func (r *Resolver) Position(offset int) Position {
	lo, hi := 0, len(r.lineStarts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if r.lineStarts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	line := lo + 1
	col := offset - r.lineStarts[lo] + 1
	return Position{File: r.file, Line: line, Col: col}
}
