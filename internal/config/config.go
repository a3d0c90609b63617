// Package config parses the command surface into an Options
// value. Flags are registered on a pflag FlagSet; a .scribble.env file and
// the process environment supply defaults for the settings that are
// machine-local rather than per-invocation (compiler binary, ledger DSN).
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Options is the parsed command surface.
type Options struct {
	Inputs []string // positional: files, directories, globs, or "--"

	InputMode        string // source | json
	CompilerVersion  string // semver or "auto"
	PathRemapping    string
	FilterType       string
	FilterMessage    string
	OutputMode       string // flat | files | json
	Output           string
	UtilsOutputPath  string
	UserAssertMode   string // log | mstore
	NoAssert         bool
	DebugEvents      bool
	MetadataFile     string
	Arm              bool
	Disarm           bool
	KeepInstrumented bool
	Quiet            bool

	// environment-sourced settings
	CompilerPath string // external host compiler binary
	LedgerDSN    string // arm/disarm ledger database
}

// EnvFile is loaded before flag parsing when present.
const EnvFile = ".scribble.env"

func defaults() Options {
	return Options{
		InputMode:       "source",
		CompilerVersion: "auto",
		OutputMode:      "files",
		UserAssertMode:  "log",
		CompilerPath:    "solc",
		LedgerDSN:       ".scribble/ledger.db",
	}
}

// Default returns the built-in option values before env and flags apply.
func Default() Options { return defaults() }

// ApplyEnv overlays the optional env file and process environment onto
// opts; flags parsed afterwards win over both.
func ApplyEnv(opts *Options) {
	_ = godotenv.Load(EnvFile)
	if v := os.Getenv("SCRIBBLE_COMPILER"); v != "" {
		opts.CompilerPath = v
	}
	if v := os.Getenv("SCRIBBLE_LEDGER"); v != "" {
		opts.LedgerDSN = v
	}
}

// BuildFromFlags parses args (without the program name) into Options.
func BuildFromFlags(args []string) (*Options, error) {
	opts := defaults()
	ApplyEnv(&opts)

	fs := pflag.NewFlagSet("scribble", pflag.ContinueOnError)
	RegisterFlags(fs, &opts)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	opts.Inputs = fs.Args()

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &opts, nil
}

// RegisterFlags binds every option onto fs.
func RegisterFlags(fs *pflag.FlagSet, opts *Options) {
	fs.StringVar(&opts.InputMode, "input-mode", opts.InputMode,
		"interpret input as target-language source or a compiler standard-JSON document (source|json)")
	fs.StringVar(&opts.CompilerVersion, "compiler-version", opts.CompilerVersion,
		"host compiler version (semver) or auto for per-file detection")
	fs.StringVar(&opts.PathRemapping, "path-remapping", opts.PathRemapping,
		`path remappings passed to the host compiler verbatim ("a=b;c=d")`)
	fs.StringVar(&opts.FilterType, "filter-type", opts.FilterType,
		"only consider annotations whose kind matches this regex")
	fs.StringVar(&opts.FilterMessage, "filter-message", opts.FilterMessage,
		"only consider annotations whose message matches this regex")
	fs.StringVar(&opts.OutputMode, "output-mode", opts.OutputMode,
		"emit one concatenated file, per-file .instrumented files, or a JSON bundle (flat|files|json)")
	fs.StringVar(&opts.Output, "output", opts.Output,
		"destination for flat/json output, or -- for stdout")
	fs.StringVar(&opts.UtilsOutputPath, "utils-output-path", opts.UtilsOutputPath,
		"directory the synthesized utilities unit lives in")
	fs.StringVar(&opts.UserAssertMode, "user-assert-mode", opts.UserAssertMode,
		"assertion lowering strategy (log|mstore)")
	fs.BoolVar(&opts.NoAssert, "no-assert", opts.NoAssert,
		"skip generation of user assertions")
	fs.BoolVar(&opts.DebugEvents, "debug-events", opts.DebugEvents,
		"emit per-annotation debug events")
	fs.StringVar(&opts.MetadataFile, "instrumentation-metadata-file", opts.MetadataFile,
		"write the instrumentation metadata record to this path")
	fs.BoolVar(&opts.Arm, "arm", opts.Arm,
		"swap originals to .original and instrumented copies into their place")
	fs.BoolVar(&opts.Disarm, "disarm", opts.Disarm,
		"reverse a previous --arm")
	fs.BoolVar(&opts.KeepInstrumented, "keep-instrumented", opts.KeepInstrumented,
		"with --disarm, retain the .instrumented files")
	fs.BoolVar(&opts.Quiet, "quiet", opts.Quiet,
		"suppress progress messages")
}

// Validate enforces the cross-flag rules
func (o *Options) Validate() error {
	switch o.InputMode {
	case "source", "json":
	default:
		return fmt.Errorf("bad --input-mode %q: want source or json", o.InputMode)
	}
	switch o.OutputMode {
	case "flat", "files", "json":
	default:
		return fmt.Errorf("bad --output-mode %q: want flat, files, or json", o.OutputMode)
	}
	switch o.UserAssertMode {
	case "log", "mstore":
	default:
		return fmt.Errorf("bad --user-assert-mode %q: want log or mstore", o.UserAssertMode)
	}
	if o.InputMode == "json" && o.CompilerVersion == "auto" {
		return fmt.Errorf("--compiler-version is mandatory when input is JSON")
	}
	if o.Arm && o.Disarm {
		return fmt.Errorf("--arm and --disarm are mutually exclusive")
	}
	if o.KeepInstrumented && !o.Disarm {
		return fmt.Errorf("--keep-instrumented only applies with --disarm")
	}
	if !o.Disarm && len(o.Inputs) == 0 {
		return fmt.Errorf("no input files given")
	}
	return nil
}
