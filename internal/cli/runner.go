// Package cli wires the parsed options to the pipeline: input discovery,
// host compilation via the oracle, version-ambiguity detection, output
// writing, arm/disarm, and the ledger. The cobra entry point in
// cmd/scribble stays a thin shell around Runner.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/oxhq/scribble/internal/config"
	"github.com/oxhq/scribble/internal/diag"
	"github.com/oxhq/scribble/internal/difftool"
	"github.com/oxhq/scribble/internal/fswriter"
	"github.com/oxhq/scribble/internal/instrument"
	"github.com/oxhq/scribble/internal/ledger"
	"github.com/oxhq/scribble/internal/merge"
	"github.com/oxhq/scribble/internal/metadata"
	"github.com/oxhq/scribble/internal/oracle"
	"github.com/oxhq/scribble/internal/pipeline"
	"github.com/oxhq/scribble/internal/scanio"
)

// Runner executes one invocation.
type Runner struct {
	Opts   *config.Options
	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader
}

func (r *Runner) progressf(format string, args ...any) {
	if r.Opts.Quiet {
		return
	}
	fmt.Fprintf(r.Stderr, format+"\n", args...)
}

// Run dispatches between instrumentation and disarm.
func (r *Runner) Run() error {
	if r.Opts.Disarm {
		return r.disarm()
	}
	return r.instrument()
}

type inputFile struct {
	path   string
	source []byte
}

func (r *Runner) readInputs() ([]inputFile, error) {
	paths, err := scanio.ExpandInputs(r.Opts.Inputs)
	if err != nil {
		return nil, diag.Wrap(diag.Syntax, diag.Position{}, "cannot resolve inputs", err)
	}
	var files []inputFile
	for _, p := range paths {
		if p == "--" {
			src, err := io.ReadAll(r.Stdin)
			if err != nil {
				return nil, fmt.Errorf("read stdin: %w", err)
			}
			files = append(files, inputFile{path: "<stdin>", source: src})
			continue
		}
		src, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		files = append(files, inputFile{path: p, source: src})
	}
	return files, nil
}

// buildGroups compiles every input into merge groups and resolves the
// compiler version, failing when the inputs demand conflicting versions
func (r *Runner) buildGroups(files []inputFile) ([]merge.Group, merge.SanityFunc, string, error) {
	if r.Opts.InputMode == "json" {
		var groups []merge.Group
		for _, f := range files {
			bundle, err := oracle.DecodeBundle(f.source)
			if err != nil {
				return nil, nil, "", diag.Wrap(diag.HostCompile, diag.Position{},
					fmt.Sprintf("bad compiler JSON in %s", f.path), err)
			}
			g, err := bundle.BuildGroup()
			if err != nil {
				return nil, nil, "", diag.Wrap(diag.HostCompile, diag.Position{},
					fmt.Sprintf("bad compiler JSON in %s", f.path), err)
			}
			groups = append(groups, g)
		}
		return groups, merge.Check, r.Opts.CompilerVersion, nil
	}

	ora := &oracle.Exec{CompilerPath: r.Opts.CompilerPath, PathRemapping: r.Opts.PathRemapping}

	version := r.Opts.CompilerVersion
	if version == "auto" {
		majors := map[string]string{} // major → full version
		for _, f := range files {
			v, err := ora.CompilerVersion(f.path, f.source)
			if err != nil {
				continue // a file without a pragma accepts any version
			}
			majors[oracle.Major(v)] = v
		}
		if len(majors) > 1 {
			var detected []string
			for _, v := range majors {
				detected = append(detected, v)
			}
			return nil, nil, "", diag.Newf(diag.AmbiguousVersion, diag.Position{},
				"inputs demand multiple host-compiler versions %v and none was chosen explicitly", detected)
		}
		for _, v := range majors {
			version = v
		}
	}

	var groups []merge.Group
	for _, f := range files {
		g, err := ora.CompileGroup(f.path, f.source)
		if err != nil {
			return nil, nil, "", diag.Wrap(diag.HostCompile, diag.Position{}, "host compilation failed", err)
		}
		groups = append(groups, g)
	}
	return groups, ora.Sanity, version, nil
}

func (r *Runner) instrument() error {
	files, err := r.readInputs()
	if err != nil {
		return err
	}
	r.progressf("scribble: %d input file(s)", len(files))

	groups, sanity, version, err := r.buildGroups(files)
	if err != nil {
		return err
	}

	res, err := pipeline.Run(groups, sanity, pipeline.Options{
		FilterType:      r.Opts.FilterType,
		FilterMessage:   r.Opts.FilterMessage,
		CompilerVersion: version,
		OutputMode:      r.Opts.OutputMode,
		Armed:           r.Opts.Arm,
		Instrument: instrument.Options{
			UserAssertMode:  instrument.AssertMode(r.Opts.UserAssertMode),
			NoAssert:        r.Opts.NoAssert,
			DebugEvents:     r.Opts.DebugEvents,
			UtilsOutputPath: r.Opts.UtilsOutputPath,
		},
	})
	if err != nil {
		return err
	}
	r.progressf("scribble: %d annotation(s) instrumented", len(res.Annotations))

	if err := r.writeOutputs(files, res); err != nil {
		return err
	}
	if r.Opts.MetadataFile != "" {
		data, err := json.MarshalIndent(res.Metadata, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		w := fswriter.New(fswriter.DefaultConfig())
		if err := w.WriteFile(r.Opts.MetadataFile, data, 0); err != nil {
			return err
		}
		r.progressf("scribble: metadata written to %s", r.Opts.MetadataFile)
	}
	return nil
}

func (r *Runner) writeOutputs(files []inputFile, res *pipeline.Result) error {
	w := fswriter.New(fswriter.DefaultConfig())

	switch r.Opts.OutputMode {
	case "flat":
		return r.writeFlat([]byte(res.Flat))
	case "json":
		bundle := map[string]any{
			"sources":                 map[string]string{"flattened.sol": res.Flat},
			"instrumentationMetadata": res.Metadata,
		}
		data, err := json.MarshalIndent(bundle, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal output bundle: %w", err)
		}
		return r.writeFlat(data)
	}

	// files mode: instrumented siblings plus the utilities unit
	outputs := make(map[string][]byte)
	var utils *pipeline.FileOutput
	for i := range res.Files {
		f := res.Files[i]
		if orig, ok := cutSuffix(f.Path, ".instrumented"); ok {
			outputs[orig] = f.Content
		} else {
			utils = &f
		}
	}
	if utils != nil {
		if err := w.WriteFile(utils.Path, utils.Content, 0); err != nil {
			return err
		}
	}

	if !r.Opts.Arm {
		if err := w.WriteInstrumented(outputs); err != nil {
			return err
		}
		r.reportDiffs(files, outputs)
		return nil
	}

	// --arm: swap instrumented copies into place, then record the run
	if err := w.Arm(outputs); err != nil {
		return err
	}
	r.reportDiffs(files, outputs)

	db, err := ledger.Connect(r.Opts.LedgerDSN, false)
	if err != nil {
		r.progressf("scribble: warning: arm ledger unavailable: %v", err)
		return nil
	}
	var records []ledger.FileRecord
	byPath := make(map[string][]byte)
	for _, f := range files {
		byPath[f.path] = f.source
	}
	for path, content := range outputs {
		records = append(records, ledger.FileRecord{
			Path:         path,
			Original:     byPath[path],
			Instrumented: content,
			PropertyMap:  propertyMapFor(res, path),
		})
	}
	runID, err := ledger.New(db).RecordArm(records)
	if err != nil {
		r.progressf("scribble: warning: cannot record arm run: %v", err)
		return nil
	}
	r.progressf("scribble: armed %d file(s), run %s", len(records), runID)
	return nil
}

func (r *Runner) reportDiffs(files []inputFile, outputs map[string][]byte) {
	if r.Opts.Quiet {
		return
	}
	byPath := make(map[string][]byte)
	for _, f := range files {
		byPath[f.path] = f.source
	}
	for path, content := range outputs {
		d, err := difftool.Unified(path, byPath[path], content)
		if err != nil {
			continue
		}
		added, removed := difftool.Stat(d)
		r.progressf("scribble: %s: +%d/-%d lines", path, added, removed)
	}
}

func (r *Runner) writeFlat(data []byte) error {
	if r.Opts.Output == "" || r.Opts.Output == "--" {
		_, err := r.Stdout.Write(data)
		return err
	}
	w := fswriter.New(fswriter.DefaultConfig())
	return w.WriteFile(r.Opts.Output, data, 0)
}

// disarm restores originals. The ledger names and cross-checks the armed
// files; without a usable ledger the positional inputs are restored from
// their .original siblings directly.
func (r *Runner) disarm() error {
	w := fswriter.New(fswriter.DefaultConfig())

	db, err := ledger.Connect(r.Opts.LedgerDSN, false)
	if err == nil {
		l := ledger.New(db)
		run, err := l.ActiveRun()
		if err != nil {
			return err
		}
		if run != nil {
			var paths []string
			for _, f := range run.Files {
				parked, err := os.ReadFile(f.OriginalPath)
				if err != nil {
					return fmt.Errorf("missing parked original %s: %w", f.OriginalPath, err)
				}
				if err := l.VerifyOriginal(f, parked); err != nil {
					return err
				}
				paths = append(paths, f.Path)
			}
			if err := w.Disarm(paths, r.Opts.KeepInstrumented); err != nil {
				return err
			}
			if err := l.MarkDisarmed(run.ID); err != nil {
				return err
			}
			r.progressf("scribble: disarmed %d file(s), run %s", len(paths), run.ID)
			return nil
		}
	}

	if len(r.Opts.Inputs) == 0 {
		return fmt.Errorf("nothing to disarm: no ledger run and no input files given")
	}
	paths, err := scanio.ExpandInputs(r.Opts.Inputs)
	if err != nil {
		return err
	}
	if err := w.Disarm(paths, r.Opts.KeepInstrumented); err != nil {
		return err
	}
	r.progressf("scribble: disarmed %d file(s)", len(paths))
	return nil
}

// propertyMapFor slices the emitted property map down to the records of
// one armed file, keyed by the annotation's original file index.
func propertyMapFor(res *pipeline.Result, path string) any {
	var out []metadata.PropertyRecord
	for i, f := range res.Metadata.OriginalSourceList {
		if f != path && f != path+".original" {
			continue
		}
		for _, rec := range res.Metadata.PropertyMap {
			if rec.AnnotationSource.FileIndex == i {
				out = append(out, rec)
			}
		}
	}
	return out
}

func cutSuffix(s, suffix string) (string, bool) {
	if len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix {
		return s[:len(s)-len(suffix)], true
	}
	return s, false
}
