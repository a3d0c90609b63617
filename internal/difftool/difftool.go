// Package difftool renders unified diffs between original and
// instrumented sources, used by verbose output and the arm ledger's
// summaries.
package difftool

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Unified returns a unified diff of original → instrumented with three
// lines of context.
func Unified(path string, original, instrumented []byte) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(original)),
		B:        difflib.SplitLines(string(instrumented)),
		FromFile: path,
		ToFile:   path + ".instrumented",
		Context:  3,
	}
	return difflib.GetUnifiedDiffString(diff)
}

// Stat summarizes a diff as added/removed line counts.
func Stat(diff string) (added, removed int) {
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	return added, removed
}
