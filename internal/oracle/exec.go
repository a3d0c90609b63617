package oracle

import (
	"bytes"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/oxhq/scribble/internal/hostast"
	"github.com/oxhq/scribble/internal/merge"
)

// Exec is the source-mode oracle: it invokes the external host compiler
// binary and decodes the bundle it prints. The compiler is expected to
// emit the Bundle JSON of this package on stdout; --path-remapping is
// passed through verbatim.
type Exec struct {
	CompilerPath  string
	PathRemapping string
}

var _ hostast.Oracle = (*Exec)(nil)

// Compile runs the compiler on one file and returns the arena fragment it
// was built in plus the id of the file's own SourceUnit root.
func (e *Exec) Compile(path string, src []byte) (*hostast.Arena, hostast.NodeID, error) {
	g, err := e.CompileGroup(path, src)
	if err != nil {
		return nil, 0, err
	}
	for _, uid := range g.Units {
		if g.Arena.Get(uid).(*hostast.SourceUnit).Path == path {
			return g.Arena, uid, nil
		}
	}
	return nil, 0, fmt.Errorf("compiler output lacks a unit for %s", path)
}

// CompileGroup compiles one file and returns the whole forest (the file
// plus its imports), the shape the merger consumes.
func (e *Exec) CompileGroup(path string, src []byte) (merge.Group, error) {
	args := []string{"--ast-json", path}
	if e.PathRemapping != "" {
		args = append(args, "--path-remapping", e.PathRemapping)
	}
	cmd := exec.Command(e.CompilerPath, args...)
	cmd.Stdin = bytes.NewReader(src)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return merge.Group{}, fmt.Errorf("host compiler rejected %s: %s", path, msg)
	}

	bundle, err := DecodeBundle(stdout.Bytes())
	if err != nil {
		return merge.Group{}, err
	}
	return bundle.BuildGroup()
}

// CompilerVersion detects the version a file selects under
// --compiler-version auto by scanning its version pragma; no compiler
// invocation is needed for this.
func (e *Exec) CompilerVersion(path string, src []byte) (string, error) {
	v := DetectVersion(src)
	if v == "" {
		return "", fmt.Errorf("no version pragma in %s", path)
	}
	return v, nil
}

// Sanity re-validates a merged unit.
func (e *Exec) Sanity(a *hostast.Arena, unit hostast.NodeID) error {
	return merge.Check(a, unit)
}

var pragmaRe = regexp.MustCompile(`pragma\s+solidity\s+[\^>=<~]*\s*(\d+\.\d+(?:\.\d+)?)`)

// DetectVersion extracts the first version a source file's pragma pins.
func DetectVersion(src []byte) string {
	m := pragmaRe.FindSubmatch(src)
	if m == nil {
		return ""
	}
	return string(m[1])
}

// Major reduces a semver string to its major.minor selector, the
// granularity ambiguity is judged at.
func Major(version string) string {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return version
	}
	return parts[0] + "." + parts[1]
}
