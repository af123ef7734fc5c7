// Package cli parses command-line arguments into an app configuration and
// request.
package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/datamill-io/datamill/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Mode selects what the invocation does.
type Mode int

const (
	// ModeRun plans and executes tasks.
	ModeRun Mode = iota
	// ModeList enumerates the stored identifiers of a target type.
	ModeList
	// ModeLocation prints the storage path of one identifier.
	ModeLocation
	// ModeRemove deletes one stored target.
	ModeRemove
)

// Invocation is the parsed command line.
type Invocation struct {
	App     app.Config
	Request app.Request
	Mode    Mode
	// Type is the target type for the diagnostic modes.
	Type string
}

// keyValueList accumulates repeated "key=value" flags.
type keyValueList struct {
	values map[string]string
}

func (l *keyValueList) String() string {
	if l == nil || len(l.values) == 0 {
		return ""
	}
	parts := make([]string, 0, len(l.values))
	for k, v := range l.values {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (l *keyValueList) Set(s string) error {
	key, value, found := strings.Cut(s, "=")
	if !found || key == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	if l.values == nil {
		l.values = map[string]string{}
	}
	l.values[key] = value
	return nil
}

// Parse processes command-line arguments. It returns a populated
// Invocation, a boolean indicating if the program should exit cleanly, or
// an ExitError.
func Parse(args []string, output io.Writer) (*Invocation, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("datamill", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
datamill - A filename-addressed data store with dependency-aware task orchestration.

Usage:
  datamill [options] MACHINE PATTERN
  datamill -list TYPE
  datamill -location TYPE IDENTIFIER
  datamill -remove TYPE IDENTIFIER

Arguments:
  MACHINE
    Name of a registered machine or meta-machine.
  PATTERN
    Identifier pattern: a literal ("a/b~v1"), an index prefix ("a*"),
    any index on a branch ("*~v1"), or "." for everything known.

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to the HCL configuration file.")
	workdirFlag := flagSet.String("workdir", "", "Store root directory, overriding the configuration.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	dryRunFlag := flagSet.Bool("dry-run", false, "Plan and classify tasks without executing anything.")
	overwriteFlag := flagSet.Bool("overwrite", false, "Replace existing outputs instead of skipping their tasks.")
	noFallbackFlag := flagSet.Bool("no-fallback", false, "Disable branch fallback when resolving inputs.")
	listFlag := flagSet.String("list", "", "List stored identifiers of the given target type and exit.")
	locationFlag := flagSet.String("location", "", "Print the storage path of TYPE IDENTIFIER and exit.")
	removeFlag := flagSet.String("remove", "", "Delete the stored target TYPE IDENTIFIER and exit.")

	var params keyValueList
	flagSet.Var(&params, "param", "Machine parameter as name=value. Repeatable.")
	var overrides keyValueList
	flagSet.Var(&overrides, "input", "Variable input target type as input=type. Repeatable.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}
	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	inv := &Invocation{
		App: app.Config{
			ConfigPath: *configFlag,
			Workdir:    *workdirFlag,
			LogFormat:  logFormat,
			LogLevel:   logLevel,
		},
	}

	switch {
	case *listFlag != "":
		inv.Mode = ModeList
		inv.Type = *listFlag
		return inv, false, nil
	case *locationFlag != "":
		inv.Mode = ModeLocation
		inv.Type = *locationFlag
	case *removeFlag != "":
		inv.Mode = ModeRemove
		inv.Type = *removeFlag
	}

	if inv.Mode == ModeLocation || inv.Mode == ModeRemove {
		if flagSet.NArg() < 1 {
			return nil, false, &ExitError{Code: 2, Message: "missing IDENTIFIER argument"}
		}
		inv.Request.Pattern = flagSet.Arg(0)
		return inv, false, nil
	}

	if flagSet.NArg() < 2 {
		slog.Debug("Missing positional arguments, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	inv.Request.Machine = flagSet.Arg(0)
	inv.Request.Pattern = flagSet.Arg(1)
	inv.Request.DryRun = *dryRunFlag
	inv.Request.Overwrite = *overwriteFlag
	inv.Request.NoFallback = *noFallbackFlag
	inv.Request.Overrides = overrides.values
	if len(params.values) > 0 {
		inv.Request.Params = map[string]cty.Value{}
		for k, v := range params.values {
			inv.Request.Params[k] = cty.StringVal(v)
		}
	}

	slog.Debug("CLI parser finished successfully.",
		"machine", inv.Request.Machine, "pattern", inv.Request.Pattern)
	return inv, false, nil
}
