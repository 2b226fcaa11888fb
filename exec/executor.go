// Package exec runs external commands behind an interface so the git
// fallback path, the editor opener, and the script runner can be driven by
// recorded responses in tests.
package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CommandExecutor runs external commands in a working directory.
type CommandExecutor interface {
	// Run executes a command and returns stdout, stderr, and any error.
	Run(ctx context.Context, dir string, name string, args ...string) (stdout, stderr []byte, err error)

	// Output executes a command and returns stdout. A non-zero exit is
	// reported as a *CommandError carrying stderr.
	Output(ctx context.Context, dir string, name string, args ...string) ([]byte, error)

	// CombinedOutput executes a command and returns stdout and stderr interleaved.
	CombinedOutput(ctx context.Context, dir string, name string, args ...string) ([]byte, error)

	// Start launches a command without waiting for it.
	Start(ctx context.Context, dir string, name string, args ...string) (CommandHandle, error)
}

// CommandHandle is a started command.
type CommandHandle interface {
	// Wait blocks until the command exits.
	Wait() (stdout, stderr []byte, err error)

	// Pid returns the process id, or 0 when not backed by a real process.
	Pid() int
}

// CommandError reports a failed command together with what it wrote to stderr.
type CommandError struct {
	Name   string
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	cmd := strings.TrimSpace(e.Name + " " + strings.Join(e.Args, " "))
	if e.Stderr == "" {
		return fmt.Sprintf("%s: %v", cmd, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", cmd, e.Stderr, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err means the executable is missing from PATH.
func IsNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}

// RealExecutor executes commands using os/exec.
type RealExecutor struct{}

// NewRealExecutor returns a new RealExecutor.
func NewRealExecutor() *RealExecutor {
	return &RealExecutor{}
}

func (e *RealExecutor) command(ctx context.Context, dir, name string, args []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd
}

// Run executes a command and returns stdout, stderr, and any error.
func (e *RealExecutor) Run(ctx context.Context, dir string, name string, args ...string) (stdout, stderr []byte, err error) {
	cmd := e.command(ctx, dir, name, args)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err = cmd.Run()
	return stdoutBuf.Bytes(), stderrBuf.Bytes(), err
}

// Output executes a command and returns stdout.
func (e *RealExecutor) Output(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	stdout, stderr, err := e.Run(ctx, dir, name, args...)
	if err != nil {
		return stdout, &CommandError{Name: name, Args: args, Stderr: strings.TrimSpace(string(stderr)), Err: err}
	}
	return stdout, nil
}

// CombinedOutput executes a command and returns combined stdout and stderr.
func (e *RealExecutor) CombinedOutput(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	return e.command(ctx, dir, name, args).CombinedOutput()
}

// StartOutputLimit bounds how much of each stream a started command keeps.
const StartOutputLimit = 64 << 10

// Start launches a command. Only the last StartOutputLimit bytes of stdout
// and stderr are kept for Wait, so long-running commands do not grow memory.
func (e *RealExecutor) Start(ctx context.Context, dir string, name string, args ...string) (CommandHandle, error) {
	cmd := e.command(ctx, dir, name, args)

	h := &realCommandHandle{
		cmd:    cmd,
		stdout: &tailBuffer{max: StartOutputLimit},
		stderr: &tailBuffer{max: StartOutputLimit},
	}
	cmd.Stdout = h.stdout
	cmd.Stderr = h.stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return h, nil
}

type realCommandHandle struct {
	cmd    *exec.Cmd
	stdout *tailBuffer
	stderr *tailBuffer
}

func (h *realCommandHandle) Wait() (stdout, stderr []byte, err error) {
	err = h.cmd.Wait()
	return h.stdout.Bytes(), h.stderr.Bytes(), err
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if n >= b.max {
		b.buf = append(b.buf[:0], p[n-b.max:]...)
		return n, nil
	}
	if over := len(b.buf) + n - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	b.buf = append(b.buf, p...)
	return n, nil
}

func (b *tailBuffer) Bytes() []byte {
	return b.buf
}

func (h *realCommandHandle) Pid() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

var _ CommandExecutor = (*RealExecutor)(nil)
var _ CommandHandle = (*realCommandHandle)(nil)
