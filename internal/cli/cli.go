// Package cli parses the pipeplan command line into an Options struct,
// expanding @file argument references first. It owns process-level concerns
// like usage text and exit codes.
//
// Several flags consume every following token up to the next flag
// (--id visit=1 filter=g, --config a=1 b=2, --show config data run), which
// rules out the standard flag package; parsing is a single scan over the
// expanded token stream.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/astrokit/pipeplan/internal/argfile"
)

// ExitError carries a specific process exit code across the CLI boundary.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string { return e.Message }

// ShowTargets are the values accepted by --show, besides config=<glob>.
var ShowTargets = []string{"config", "data", "tasks", "run"}

// ComponentLevel is one name=level pair from --loglevel.
type ComponentLevel struct {
	Name  string
	Level string
}

// Options is the parsed command line. Slice fields preserve command-line
// order; order is significant for override resolution.
type Options struct {
	Input string

	Output string
	Calib  string
	Rerun  string
	Obs    string

	IDClauses         [][]string
	ConfigFiles       []string
	ConfigAssignments []string

	Show []string
	Help bool

	LogLevel      string
	LogComponents []ComponentLevel
	LogDest       string
	LogFormat     string
}

// WantShow reports whether target was requested via --show.
func (o *Options) WantShow(target string) bool {
	for _, t := range o.Show {
		if t == target || strings.HasPrefix(t, target+"=") {
			return true
		}
	}
	return false
}

// ShowPattern returns the glob given as --show config=<glob>, or "".
func (o *Options) ShowPattern(target string) string {
	for _, t := range o.Show {
		if rest, ok := strings.CutPrefix(t, target+"="); ok {
			return rest
		}
	}
	return ""
}

// Parse expands @file references and scans the token stream. It returns an
// ExitError with code 2 on any malformed input.
func Parse(args []string) (*Options, error) {
	tokens, err := argfile.Expand(args)
	if err != nil {
		return nil, &ExitError{Code: 2, Message: err.Error()}
	}

	opts := &Options{LogLevel: "info", LogFormat: "text"}
	seenFlag := false
	i := 0
	for i < len(tokens) {
		tok := tokens[i]
		switch {
		case tok == "-h" || tok == "--help":
			opts.Help = true
			i++

		case strings.HasPrefix(tok, "-") && tok != "-":
			seenFlag = true
			var advance int
			advance, err = parseFlag(opts, tokens, i)
			if err != nil {
				return nil, err
			}
			i += advance

		default:
			if opts.Input != "" || seenFlag {
				return nil, usageErrorf("unexpected argument %q: the input repository must be the single leading positional argument", tok)
			}
			opts.Input = tok
			i++
		}
	}
	return opts, nil
}

// parseFlag handles one flag at tokens[i] and returns how many tokens it
// consumed, the flag included.
func parseFlag(opts *Options, tokens []string, i int) (int, error) {
	flag := tokens[i]
	values := collectValues(tokens, i+1)

	one := func(dest *string) (int, error) {
		if len(values) != 1 {
			return 0, usageErrorf("%s takes exactly one value", flag)
		}
		*dest = values[0]
		return 2, nil
	}

	switch flag {
	case "--output":
		return one(&opts.Output)
	case "--calib":
		return one(&opts.Calib)
	case "--rerun":
		return one(&opts.Rerun)
	case "--obs":
		return one(&opts.Obs)
	case "--logdest":
		return one(&opts.LogDest)

	case "--log-format":
		if len(values) != 1 || (values[0] != "text" && values[0] != "json") {
			return 0, usageErrorf("--log-format must be 'text' or 'json'")
		}
		opts.LogFormat = values[0]
		return 2, nil

	case "--id":
		if len(values) == 0 {
			return 0, usageErrorf("--id needs at least one key=value token")
		}
		opts.IDClauses = append(opts.IDClauses, values)
		return 1 + len(values), nil

	case "--config":
		if len(values) == 0 {
			return 0, usageErrorf("--config needs at least one key=value token")
		}
		opts.ConfigAssignments = append(opts.ConfigAssignments, values...)
		return 1 + len(values), nil

	case "--configfile":
		if len(values) == 0 {
			return 0, usageErrorf("--configfile needs at least one path")
		}
		opts.ConfigFiles = append(opts.ConfigFiles, values...)
		return 1 + len(values), nil

	case "--show":
		if len(values) == 0 {
			return 0, usageErrorf("--show needs at least one of: %s", strings.Join(ShowTargets, ", "))
		}
		for _, v := range values {
			if err := checkShowTarget(v); err != nil {
				return 0, err
			}
		}
		opts.Show = append(opts.Show, values...)
		return 1 + len(values), nil

	case "--loglevel":
		if len(values) == 0 {
			return 0, usageErrorf("--loglevel needs a level or component=level tokens")
		}
		for _, v := range values {
			name, level, hasName := strings.Cut(v, "=")
			if !hasName {
				name, level = "", v
			}
			if !validLogLevel(level) {
				return 0, usageErrorf("invalid log level %q: must be 'debug', 'info', 'warn', or 'error'", level)
			}
			if name == "" {
				opts.LogLevel = level
			} else {
				opts.LogComponents = append(opts.LogComponents, ComponentLevel{Name: name, Level: level})
			}
		}
		return 1 + len(values), nil
	}

	return 0, usageErrorf("unknown flag %q", flag)
}

// collectValues gathers the value tokens following a flag, stopping at the
// next flag token.
func collectValues(tokens []string, start int) []string {
	end := start
	for end < len(tokens) && !(strings.HasPrefix(tokens[end], "-") && tokens[end] != "-") {
		end++
	}
	return tokens[start:end]
}

func checkShowTarget(v string) error {
	name, _, hasPattern := strings.Cut(v, "=")
	for _, t := range ShowTargets {
		if name == t {
			if hasPattern && name != "config" {
				return usageErrorf("--show %s does not take a value", name)
			}
			return nil
		}
	}
	return usageErrorf("unknown --show target %q: must be one of %s", v, strings.Join(ShowTargets, ", "))
}

func validLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

func usageErrorf(format string, args ...any) error {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

// Usage writes the tool's usage text.
func Usage(w io.Writer) {
	fmt.Fprint(w, `pipeplan - resolve a pipeline task invocation into an execution plan.

Usage:
  pipeplan <inputRepoPath> [options]

Arguments:
  inputRepoPath
    Path to the input data repository. Relative paths resolve against
    $PIPE_INPUT_ROOT (default: current directory).

Options:
  --output <path>            Output repository; relative to $PIPE_OUTPUT_ROOT.
  --calib <path>             Calibration repository; relative to $PIPE_CALIB_ROOT.
  --rerun <spec>             Rerun name, or input:output rerun chain, under the
                             input repository's rerun area.
  --obs <path>               Obs package holding camera descriptions and
                             override files (default: $PIPE_OBS_ROOT).
  --id key=v[^v...] ...      Data identifier clause; repeatable. '^' separates
                             alternatives and clauses expand to their cross
                             product.
  --config key=value ...     Configuration overrides, applied left to right.
  --configfile <path> ...    Configuration override files, applied in order.
  --show config[=glob] data tasks [run]
                             Print diagnostics; without 'run', exit afterwards.
  --loglevel <level> [component=level ...]
                             Log thresholds: debug, info, warn, or error.
  --logdest <path>           Also write log output to a file.
  --log-format text|json     Log output format.
  @<path>                    Read additional arguments from a file.
  -h, --help                 Show this help.
`)
}
