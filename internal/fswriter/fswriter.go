// Package fswriter performs the tool's file writes: atomic single-file
// writes (temp file + rename) and the arm/disarm choreography.
// .instrumented files are written first; only under --arm are originals
// renamed into .original, after every write has succeeded.
package fswriter

import (
	"fmt"
	"os"
	"sort"
)

// Config controls write behavior.
type Config struct {
	UseFsync   bool   // force fsync before rename for durability
	TempSuffix string // suffix for in-flight temp files
}

func DefaultConfig() Config {
	return Config{TempSuffix: ".scribble.tmp"}
}

// Writer performs atomic file writes.
type Writer struct {
	config Config
}

func New(config Config) *Writer {
	if config.TempSuffix == "" {
		config.TempSuffix = ".scribble.tmp"
	}
	return &Writer{config: config}
}

// InstrumentedPath is where a file's rewritten copy lives.
func InstrumentedPath(path string) string { return path + ".instrumented" }

// OriginalPath is where --arm parks the untouched original.
func OriginalPath(path string) string { return path + ".original" }

// WriteFile writes content to path atomically: the bytes land in a temp
// file first and are renamed into place, so a crash never leaves a
// half-written file at path.
func (w *Writer) WriteFile(path string, content []byte, perm os.FileMode) error {
	if perm == 0 {
		perm = 0o644
	}
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode()
	}

	tempPath := path + w.config.TempSuffix
	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if w.config.UseFsync {
		if err := f.Sync(); err != nil {
			f.Close()
			os.Remove(tempPath)
			return fmt.Errorf("sync temp file: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// WriteInstrumented writes every file's .instrumented sibling. Nothing
// else is touched; this is the files-mode output step.
func (w *Writer) WriteInstrumented(outputs map[string][]byte) error {
	for _, path := range sortedPaths(outputs) {
		if err := w.WriteFile(InstrumentedPath(path), outputs[path], 0); err != nil {
			return err
		}
	}
	return nil
}

// Arm swaps instrumented copies into place: originals are renamed to
// .original, then each .instrumented copy replaces its original. The
// renames only start once every .instrumented write has succeeded.
func (w *Writer) Arm(outputs map[string][]byte) error {
	if err := w.WriteInstrumented(outputs); err != nil {
		return err
	}
	for _, path := range sortedPaths(outputs) {
		if err := os.Rename(path, OriginalPath(path)); err != nil {
			return fmt.Errorf("park original %s: %w", path, err)
		}
		if err := w.WriteFile(path, outputs[path], 0); err != nil {
			return err
		}
	}
	return nil
}

// Disarm restores each path from its .original sibling and removes the
// .instrumented copy unless keepInstrumented is set.
func (w *Writer) Disarm(paths []string, keepInstrumented bool) error {
	for _, path := range paths {
		orig := OriginalPath(path)
		if _, err := os.Stat(orig); err != nil {
			return fmt.Errorf("no original for %s: %w", path, err)
		}
		if err := os.Rename(orig, path); err != nil {
			return fmt.Errorf("restore original %s: %w", path, err)
		}
		if !keepInstrumented {
			if err := os.Remove(InstrumentedPath(path)); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove instrumented copy of %s: %w", path, err)
			}
		}
	}
	return nil
}

func sortedPaths(m map[string][]byte) []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
