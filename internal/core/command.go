package core

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Command is a single external invocation.
//
// Argv is executed directly: Argv[0] is resolved on PATH and the remaining
// elements are passed as arguments without shell interpretation.
type Command struct {
	// Argv is the program followed by its arguments. Required.
	Argv []string

	// Description is the human-readable label used in reports, e.g.
	// "Extracting source-files".
	Description string

	// Dir is the working directory. Empty means the runner's project root.
	Dir string

	// Env holds variables added to the inherited environment of the child.
	Env map[string]string

	// LogName overrides the stem of the log file name. Empty means the stem
	// is derived from the invoked script or tool.
	LogName string
}

// Validate reports whether the command can be handed to a Runner.
func (c Command) Validate() error {
	if len(c.Argv) == 0 {
		return errors.New("command argv is empty")
	}
	if strings.TrimSpace(c.Argv[0]) == "" {
		return errors.New("command program is empty")
	}
	return nil
}

// String renders the argv for logs. It is not meant to be re-parsed.
func (c Command) String() string {
	return strings.Join(c.Argv, " ")
}

// logStem returns the stem used for the command's log file.
//
// When the program is followed by a script path (python tools/x/extract-a.py),
// the script names the log; otherwise the program itself does.
func (c Command) logStem() string {
	if c.LogName != "" {
		return sanitizeStem(c.LogName)
	}
	target := c.Argv[0]
	if len(c.Argv) > 1 && !strings.HasPrefix(c.Argv[1], "-") {
		target = c.Argv[1]
	}
	base := filepath.Base(target)
	return sanitizeStem(strings.TrimSuffix(base, filepath.Ext(base)))
}

func sanitizeStem(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ' ' || r == ':':
			return '_'
		default:
			return r
		}
	}, strings.TrimSpace(s))
	if s == "" || s == "." {
		return "command"
	}
	return s
}

// Result is the outcome of a command that was started.
type Result struct {
	// ExitCode is the child's exit status. 0 means success.
	ExitCode int

	// LogPath is the file holding the child's combined output.
	LogPath string

	// Duration is the wall time between start and exit.
	Duration time.Duration
}

// Succeeded reports whether the command exited 0.
func (r *Result) Succeeded() bool {
	return r != nil && r.ExitCode == 0
}

// CommandRunner executes a Command. *Runner is the production implementation;
// tests substitute stubs.
type CommandRunner interface {
	Run(ctx context.Context, c Command) (*Result, error)
}

var _ CommandRunner = (*Runner)(nil)
