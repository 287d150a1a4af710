package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"deliver/internal/logging"
	"deliver/internal/services"
)

// Command is either an argument vector or a shell-interpreted script.
type Command struct {
	Args   []string
	Script string
}

// Argv builds an argument-vector command.
func Argv(name string, args ...string) Command {
	return Command{Args: append([]string{name}, args...)}
}

// Shell builds a command interpreted by the configured shell.
func Shell(script string) Command {
	return Command{Script: script}
}

// String renders the command for logs.
func (c Command) String() string {
	if c.Script != "" {
		return c.Script
	}
	return strings.Join(c.Args, " ")
}

// Options selects logging and process behaviour for a single Execute call.
type Options struct {
	// EchoCommand logs the command before it runs.
	EchoCommand bool
	// EchoOutput logs captured output when the command succeeds.
	EchoOutput bool
	// LogFailure logs command, exit code, and output when the command fails.
	LogFailure bool
	// Dir runs the command in an explicit directory; empty uses the current directory.
	Dir string
	// Timeout kills the command after the duration; zero disables the limit.
	Timeout time.Duration
	// Env is appended to the inherited environment.
	Env []string
}

// DefaultOptions echoes the command and logs failures but keeps successful
// output quiet.
func DefaultOptions() Options {
	return Options{EchoCommand: true, LogFailure: true}
}

// Result captures the outcome of a command.
type Result struct {
	Command  string
	Success  bool
	ExitCode int
	Output   string
	Duration time.Duration
	TimedOut bool
	// Cause is set when the process could not run to completion: it failed
	// to start, or the context was cancelled.
	Cause error
}

// Err converts a failed result into a *CommandError, or nil on success.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	return &CommandError{
		Command:  r.Command,
		ExitCode: r.ExitCode,
		Output:   r.Output,
		TimedOut: r.TimedOut,
		cause:    r.Cause,
	}
}

// CommandError describes a failed external command.
type CommandError struct {
	Command  string
	ExitCode int
	Output   string
	TimedOut bool
	cause    error
}

func (e *CommandError) Error() string {
	switch {
	case e.TimedOut:
		return fmt.Sprintf("command %q timed out", e.Command)
	case e.cause != nil:
		return fmt.Sprintf("command %q failed: %v", e.Command, e.cause)
	default:
		return fmt.Sprintf("command %q exited with code %d", e.Command, e.ExitCode)
	}
}

// Unwrap exposes the failure class so errors.Is works with service markers.
func (e *CommandError) Unwrap() []error {
	marker := services.ErrExternalTool
	if e.TimedOut {
		marker = services.ErrTimeout
	}
	if e.cause != nil {
		return []error{marker, e.cause}
	}
	return []error{marker}
}

// Tail returns the last n lines of captured output for error summaries.
func (e *CommandError) Tail(n int) string {
	lines := strings.Split(strings.TrimRight(e.Output, "\n"), "\n")
	if n <= 0 || len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}

// Executor abstracts process execution for testability.
type Executor interface {
	// Run executes name with args in dir and returns combined stdout/stderr.
	// A non-zero exit is reported through exitCode with a nil error; err is
	// reserved for processes that could not run or were killed.
	Run(ctx context.Context, dir string, env []string, name string, args []string) (output []byte, exitCode int, err error)
}

// Option configures the runner.
type Option func(*Runner)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(r *Runner) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// WithShell overrides the interpreter used for Script commands.
func WithShell(shell string) Option {
	return func(r *Runner) {
		if shell = strings.TrimSpace(shell); shell != "" {
			r.shell = shell
		}
	}
}

// Runner executes commands and logs their outcome.
type Runner struct {
	logger *slog.Logger
	exec   Executor
	shell  string
}

// New constructs a Runner.
func New(logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		logger: logging.NewComponentLogger(logger, "runner"),
		exec:   SystemExecutor{},
		shell:  "sh",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute runs cmd to completion. It never returns an error: inspect
// Result.Success or convert with Result.Err.
func (r *Runner) Execute(ctx context.Context, cmd Command, opts Options) Result {
	logger := logging.WithContext(ctx, r.logger)
	rendered := cmd.String()
	result := Result{Command: rendered}

	name, args, err := r.resolve(cmd)
	if err != nil {
		result.ExitCode = -1
		result.Cause = err
		if opts.LogFailure {
			logger.Error("command rejected", logging.String("command", rendered), logging.Error(err))
		}
		return result
	}

	if opts.EchoCommand {
		logger.Info("executing command", logging.String("command", rendered))
	}

	runCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	started := time.Now()
	output, exitCode, runErr := r.exec.Run(runCtx, opts.Dir, opts.Env, name, args)
	result.Duration = time.Since(started)
	result.Output = decodeOutput(output)
	result.ExitCode = exitCode

	switch {
	case runErr == nil && exitCode == 0:
		result.Success = true
	case opts.Timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		result.TimedOut = true
	case runErr != nil:
		result.Cause = runErr
		if result.ExitCode == 0 {
			result.ExitCode = -1
		}
	}

	if result.Success {
		logger.Debug("command finished",
			logging.String("command", rendered),
			logging.Duration("duration", result.Duration),
		)
		if opts.EchoOutput && strings.TrimSpace(result.Output) != "" {
			logger.Info(result.Output)
		}
		return result
	}

	if opts.LogFailure {
		attrs := []logging.Attr{
			logging.String("command", rendered),
			logging.Int("return_code", result.ExitCode),
			logging.Duration("duration", result.Duration),
			logging.String("output", result.Output),
		}
		if result.TimedOut {
			attrs = append(attrs, logging.Duration("timeout", opts.Timeout))
		}
		if result.Cause != nil {
			attrs = append(attrs, logging.Error(result.Cause))
		}
		logger.Error("command failed", logging.Args(attrs...)...)
	}
	return result
}

func (r *Runner) resolve(cmd Command) (string, []string, error) {
	if cmd.Script != "" {
		if len(cmd.Args) > 0 {
			return "", nil, errors.New("command has both script and argument vector")
		}
		return r.shell, []string{"-c", cmd.Script}, nil
	}
	if len(cmd.Args) == 0 || strings.TrimSpace(cmd.Args[0]) == "" {
		return "", nil, errors.New("empty command")
	}
	return cmd.Args[0], cmd.Args[1:], nil
}

func decodeOutput(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	return strings.ToValidUTF8(string(raw), string(utf8.RuneError))
}

// SystemExecutor runs real processes via os/exec.
type SystemExecutor struct{}

// Run implements Executor.
func (SystemExecutor) Run(ctx context.Context, dir string, env []string, name string, args []string) ([]byte, int, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
		pwd := dir
		if pwd == "" {
			pwd, _ = os.Getwd()
		}
		if pwd != "" {
			cmd.Env = append(cmd.Env, "PWD="+pwd)
		}
	}
	// Builders commonly fork children that inherit the output pipe; do not
	// wait on them forever once the direct child is gone.
	cmd.WaitDelay = 5 * time.Second

	output, err := cmd.CombinedOutput()
	if err == nil || errors.Is(err, exec.ErrWaitDelay) {
		return output, 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		return output, exitErr.ExitCode(), nil
	}
	code := -1
	if exitErr != nil {
		code = exitErr.ExitCode()
	}
	return output, code, err
}
