// Package command runs the external co-simulation program.
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/torosent/cosweep/internal/environ"
)

// ExitError reports an invocation that ran but exited unsuccessfully.
type ExitError struct {
	Code   int // -1 when the process was terminated by a signal
	Signal string
	Err    error
}

func (e *ExitError) Error() string {
	if e.Signal != "" {
		return "terminated by signal: " + e.Signal
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// StartError reports an invocation whose process could not be started.
type StartError struct {
	Path string
	Err  error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("start %s: %v", e.Path, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// Command describes how the external program is launched.
type Command struct {
	Interpreter string   // e.g. "python3"; empty runs Program directly
	Program     string   // path of the program, relative to Dir when not absolute
	Dir         string   // working directory (empty means the driver's)
	Env         []string // complete environment; nil inherits the driver's
	Stdout      io.Writer
	Stderr      io.Writer
}

// Argv returns the full command line for the given positional arguments.
func (c *Command) Argv(args []string) []string {
	argv := make([]string, 0, len(args)+2)
	if c.Interpreter != "" {
		argv = append(argv, c.Interpreter)
	}
	argv = append(argv, c.Program)
	return append(argv, args...)
}

// String renders the command line the way a shell user would type it.
func (c *Command) String(args []string) string {
	argv := c.Argv(args)
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}

// Run starts the program with args and blocks until it exits. extraEnv
// entries are appended to Env for this invocation only.
func (c *Command) Run(ctx context.Context, args []string, extraEnv ...string) error {
	argv := c.Argv(args)
	cmd := exec.CommandContext(ctx, c.resolve(argv[0]), argv[1:]...)
	cmd.Args[0] = argv[0]
	cmd.Dir = c.Dir
	if c.Env != nil || len(extraEnv) > 0 {
		env := c.Env
		if env == nil {
			env = os.Environ()
		}
		cmd.Env = append(append([]string(nil), env...), extraEnv...)
	}
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr

	if err := cmd.Start(); err != nil {
		return &StartError{Path: argv[0], Err: err}
	}
	err := cmd.Wait()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out := &ExitError{Code: exitErr.ExitCode(), Err: err}
		if out.Code == -1 {
			out.Signal = signalName(exitErr)
		}
		return out
	}
	return err
}

// resolve looks a bare executable name up in the PATH of c.Env, which is
// the PATH the child sees. Names with a separator, and names not found
// there, are returned unchanged.
func (c *Command) resolve(name string) string {
	if c.Env == nil || strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
		return name
	}
	pathVar, ok := environ.Lookup(c.Env, "PATH")
	if !ok {
		return name
	}
	for _, dir := range filepath.SplitList(pathVar) {
		if dir == "" || !filepath.IsAbs(dir) {
			continue
		}
		if found, err := exec.LookPath(filepath.Join(dir, name)); err == nil {
			return found
		}
	}
	return name
}

// ExitCode extracts the exit code carried by err: 0 for nil, the process
// code for an ExitError, and -1 for anything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return -1
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, func(r rune) bool {
		return !(r == '/' || r == '.' || r == '-' || r == '_' || r == '=' || r == ':' || r == '+' ||
			('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9'))
	}) == -1 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
