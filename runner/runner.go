// Package runner executes scripts. Same-terminal scripts run as one shell
// invocation; new-terminal scripts get one pseudo-terminal per command.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	osexec "os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/creack/pty"

	"github.com/codestate/codestate-core/exec"
	"github.com/codestate/codestate-core/failure"
	"github.com/codestate/codestate-core/logger"
	"github.com/codestate/codestate-core/model"
)

// DefaultShell runs every command line.
const DefaultShell = "/bin/sh"

// Runner runs scripts in the script's root directory.
//
// A script with CloseTerminalAfterExecution set is waited for and its
// failure reported. Otherwise its processes are left running and reaped in
// the background; Wait blocks until they have all exited.
type Runner struct {
	executor exec.CommandExecutor
	shell    string
	startPTY func(*osexec.Cmd) (*os.File, error)

	wg sync.WaitGroup
}

// Option configures a Runner.
type Option func(*Runner)

// WithExecutor replaces the executor used for same-terminal scripts.
func WithExecutor(e exec.CommandExecutor) Option {
	return func(r *Runner) {
		r.executor = e
	}
}

// WithShell replaces DefaultShell.
func WithShell(shell string) Option {
	return func(r *Runner) {
		r.shell = shell
	}
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{
		executor: exec.NewRealExecutor(),
		shell:    DefaultShell,
		startPTY: pty.Start,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Wait blocks until every background process has exited.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// RunScript runs s's commands in priority order.
func (r *Runner) RunScript(ctx context.Context, s model.Script) error {
	cmds := s.OrderedCommands()
	if len(cmds) == 0 {
		return nil
	}
	log := logger.WithComponent("runner").With("script", s.Name, "root", s.RootPath)

	if s.ExecutionMode == model.NewTerminals {
		return r.runTerminals(ctx, log, s, cmds)
	}
	return r.runSameTerminal(ctx, log, s, cmds)
}

func (r *Runner) runSameTerminal(ctx context.Context, log *slog.Logger, s model.Script, cmds []model.ScriptCommand) error {
	lines := make([]string, len(cmds))
	for i, c := range cmds {
		lines[i] = c.Command
	}
	line := strings.Join(lines, " && ")
	log.Info("running script", "mode", model.SameTerminal, "command", line)

	if s.CloseTerminalAfterExecution {
		if _, err := r.executor.Output(ctx, s.RootPath, r.shell, "-c", line); err != nil {
			return failure.Wrap(failure.UpstreamFailure, err, "Script %s failed", s.Name)
		}
		return nil
	}

	h, err := r.executor.Start(context.WithoutCancel(ctx), s.RootPath, r.shell, "-c", line)
	if err != nil {
		return failure.Wrap(failure.UpstreamFailure, err, "Failed to start script %s", s.Name)
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		_, stderr, err := h.Wait()
		if err != nil {
			log.Warn("script exited with error", "error", err, "stderr", strings.TrimSpace(string(stderr)))
			return
		}
		log.Debug("script exited")
	}()
	return nil
}

// terminal is one command running on a pseudo-terminal.
type terminal struct {
	name string
	cmd  *osexec.Cmd
	ptmx *os.File
	done chan error
}

func (r *Runner) runTerminals(ctx context.Context, log *slog.Logger, s model.Script, cmds []model.ScriptCommand) error {
	var terms []*terminal
	var errs []error

	for i, c := range cmds {
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("%s #%d", s.Name, i+1)
		}
		t, err := r.open(ctx, s, name, c.Command, log)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		terms = append(terms, t)
	}

	if !s.CloseTerminalAfterExecution {
		for _, t := range terms {
			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				if err := <-t.done; err != nil {
					log.Warn("terminal exited with error", "terminal", t.name, "error", err)
				}
			}()
		}
		return joinScriptErrors(s, errs)
	}

	for _, t := range terms {
		if err := <-t.done; err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.name, err))
		}
	}
	return joinScriptErrors(s, errs)
}

// open starts command on a new pseudo-terminal and drains its output into
// the log. The terminal's done channel yields the exit error.
func (r *Runner) open(ctx context.Context, s model.Script, name, command string, log *slog.Logger) (*terminal, error) {
	runCtx := ctx
	if !s.CloseTerminalAfterExecution {
		runCtx = context.WithoutCancel(ctx)
	}
	cmd := osexec.CommandContext(runCtx, r.shell, "-c", command)
	cmd.Dir = s.RootPath
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	ptmx, err := r.startPTY(cmd)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to start PTY: %w", name, err)
	}
	log.Info("opened terminal", "terminal", name, "command", command, "pid", cmd.Process.Pid)

	t := &terminal{name: name, cmd: cmd, ptmx: ptmx, done: make(chan error, 1)}
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		drain(ptmx, log.With("terminal", name))
	}()
	go func() {
		err := cmd.Wait()
		ptmx.Close()
		<-drained
		t.done <- err
	}()
	return t, nil
}

// drain logs the terminal's output until it closes. Reading never stops
// early, so a chatty command cannot block on a full terminal. On Linux a
// closed terminal reads as EIO rather than EOF.
func drain(r io.Reader, log *slog.Logger) {
	w := &lineLog{log: log}
	_, err := io.Copy(w, r)
	w.flush()
	if err != nil && !errors.Is(err, os.ErrClosed) && !errors.Is(err, syscall.EIO) {
		log.Debug("terminal read ended", "error", err)
	}
}

// maxLineLen splits overlong output lines into several log records.
const maxLineLen = 4 << 10

// lineLog logs written output one line at a time. A carriage return ends a
// line too, so progress bars do not accumulate.
type lineLog struct {
	log *slog.Logger
	buf []byte
}

func (l *lineLog) Write(p []byte) (int, error) {
	for _, c := range p {
		if c == '\n' || c == '\r' {
			l.flush()
			continue
		}
		l.buf = append(l.buf, c)
		if len(l.buf) >= maxLineLen {
			l.flush()
		}
	}
	return len(p), nil
}

func (l *lineLog) flush() {
	if len(l.buf) == 0 {
		return
	}
	l.log.Debug("output", "line", string(l.buf))
	l.buf = l.buf[:0]
}

func joinScriptErrors(s model.Script, errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return failure.Wrap(failure.UpstreamFailure, errors.Join(errs...), "Script %s failed", s.Name)
}
