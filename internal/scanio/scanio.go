// Package scanio expands the CLI's positional arguments into the concrete
// input file list: literal paths, doublestar glob patterns, and
// directories (scanned recursively for target-language sources).
package scanio

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// SourceExt is the target-language source extension directories are
// scanned for.
const SourceExt = ".sol"

// ExpandInputs resolves each argument in order. Results of one pattern
// are sorted; argument order is preserved and duplicates collapse to the
// first occurrence.
func ExpandInputs(args []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			out = append(out, path)
		}
	}

	for _, arg := range args {
		switch {
		case arg == "--":
			add("--")

		case hasGlobMeta(arg):
			matches, err := doublestar.FilepathGlob(arg)
			if err != nil {
				return nil, fmt.Errorf("bad input pattern %q: %w", arg, err)
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("input pattern %q matched nothing", arg)
			}
			sort.Strings(matches)
			for _, m := range matches {
				add(m)
			}

		default:
			info, err := os.Stat(arg)
			if err != nil {
				return nil, fmt.Errorf("cannot read input %q: %w", arg, err)
			}
			if !info.IsDir() {
				add(arg)
				continue
			}
			var found []string
			err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && strings.HasSuffix(path, SourceExt) {
					found = append(found, path)
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("scan directory %q: %w", arg, err)
			}
			sort.Strings(found)
			for _, f := range found {
				add(f)
			}
		}
	}
	return out, nil
}

func hasGlobMeta(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}
