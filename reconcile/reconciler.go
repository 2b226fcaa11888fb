// Package reconcile aligns a live working tree with a session's stored
// branch before the session is resumed.
//
// Reconcile is a linear state machine:
//
//	Idle → Inspecting → Clean ─────────────────────────────┐
//	                  ↘ AwaitingDecision → Committing → Verifying → SwitchingBranch → Done
//	                                     ↘ Cancelled
//
// Nothing is retried. Any failure ends the invocation and the caller decides
// whether to run it again. A commit, once started, runs to completion even if
// ctx is cancelled.
package reconcile

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/codestate/codestate-core/failure"
	"github.com/codestate/codestate-core/logger"
	"github.com/codestate/codestate-core/model"
	"github.com/codestate/codestate-core/vcs"
)

// State names a step of the reconciliation state machine.
type State string

const (
	StateIdle             State = "idle"
	StateInspecting       State = "inspecting"
	StateClean            State = "clean"
	StateAwaitingDecision State = "awaiting-decision"
	StateCommitting       State = "committing"
	StateVerifying        State = "verifying"
	StateCancelled        State = "cancelled"
	StateSwitchingBranch  State = "switching-branch"
	StateDone             State = "done"
	StateFailed           State = "failed"
)

// Decision is the answer to "the tree is dirty, what now?".
type Decision string

const (
	Commit Decision = "commit"
	Cancel Decision = "cancel"
)

// Decider asks whether to commit uncommitted work at path.
type Decider func(ctx context.Context, path string) (Decision, error)

// MessagePrompter asks for a commit message. A nil result means the prompt
// was dismissed.
type MessagePrompter func(ctx context.Context, path string) (*string, error)

// Prompts bundles the caller-supplied suspension points.
type Prompts struct {
	Decide        Decider
	PromptMessage MessagePrompter
}

// Result is the outcome of a successful reconciliation.
type Result struct {
	Fingerprint   model.GitFingerprint
	WasCommitted  bool
	CommitMessage string // Set only when WasCommitted
}

// Backoff bounds the post-commit dirtiness re-check.
type Backoff struct {
	Attempts int           // Number of re-checks
	Initial  time.Duration // Delay before the first re-check, doubled after each
	Max      time.Duration // Cap on a single delay
}

// DefaultBackoff waits 100ms, 200ms, 400ms, 800ms, 1s.
var DefaultBackoff = Backoff{Attempts: 5, Initial: 100 * time.Millisecond, Max: time.Second}

// Reconciler drives the state machine against a vcs.Gateway.
type Reconciler struct {
	vcs     vcs.Gateway
	backoff Backoff
	observe func(path string, s State)
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithBackoff overrides the settle policy.
func WithBackoff(b Backoff) Option {
	return func(r *Reconciler) {
		if b.Attempts < 1 {
			b.Attempts = 1
		}
		r.backoff = b
	}
}

// WithObserver is called on every state transition.
func WithObserver(fn func(path string, s State)) Option {
	return func(r *Reconciler) {
		r.observe = fn
	}
}

// New creates a Reconciler.
func New(gw vcs.Gateway, opts ...Option) *Reconciler {
	r := &Reconciler{
		vcs:     gw,
		backoff: DefaultBackoff,
		sleep:   sleepCtx,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// run tracks the current state of one invocation.
type run struct {
	r     *Reconciler
	path  string
	state State
	log   *slog.Logger
}

func (x *run) enter(s State) {
	x.log.Debug("state transition", "from", x.state, "to", s)
	x.state = s
	if x.r.observe != nil {
		x.r.observe(x.path, s)
	}
}

func (x *run) fail(err error) (*Result, error) {
	x.log.Warn("reconciliation failed", "state", x.state, "kind", failure.KindOf(err), "error", err)
	x.enter(StateFailed)
	return nil, err
}

// Reconcile makes the tree at path clean and, when targetBranch is not
// empty, checks it out. An empty targetBranch inspects and commits only.
func (r *Reconciler) Reconcile(ctx context.Context, path, targetBranch string, p Prompts) (*Result, error) {
	x := &run{
		r:     r,
		path:  path,
		state: StateIdle,
		log:   logger.WithComponent("reconcile").With("path", path, "target", targetBranch),
	}

	x.enter(StateInspecting)
	live, err := r.inspect(ctx, path)
	if err != nil {
		return x.fail(err)
	}

	result := &Result{Fingerprint: live}

	if !live.IsDirty {
		x.enter(StateClean)
	} else {
		x.enter(StateAwaitingDecision)
		msg, err := r.decide(ctx, path, p)
		if err != nil {
			if failure.KindOf(err) == failure.UserCancelled {
				x.enter(StateCancelled)
			}
			return x.fail(err)
		}

		x.enter(StateCommitting)
		// A started commit is never interrupted.
		if err := r.vcs.CommitAll(context.WithoutCancel(ctx), path, msg); err != nil {
			return x.fail(err)
		}
		result.WasCommitted = true
		result.CommitMessage = msg
		x.log.Info("committed uncommitted changes", "message", msg)

		x.enter(StateVerifying)
		if err := r.verifyClean(ctx, path); err != nil {
			return x.fail(err)
		}
		if result.Fingerprint.Commit, err = r.vcs.CurrentCommit(ctx, path); err != nil {
			return x.fail(err)
		}
		result.Fingerprint.IsDirty = false
	}

	if targetBranch != "" && live.Branch != targetBranch {
		x.enter(StateSwitchingBranch)
		if err := r.vcs.CheckoutBranch(ctx, path, targetBranch); err != nil {
			return x.fail(err)
		}
		x.log.Info("switched branch", "from", live.Branch, "to", targetBranch)

		result.Fingerprint.Branch = targetBranch
		if result.Fingerprint.Commit, err = r.vcs.CurrentCommit(ctx, path); err != nil {
			return x.fail(err)
		}
	}

	x.enter(StateDone)
	return result, nil
}

// Inspect reads the fingerprint at path without prompting or mutating.
func (r *Reconciler) Inspect(ctx context.Context, path string) (model.GitFingerprint, error) {
	x := &run{
		r:     r,
		path:  path,
		state: StateIdle,
		log:   logger.WithComponent("reconcile").With("path", path),
	}
	x.enter(StateInspecting)
	fp, err := r.inspect(ctx, path)
	if err != nil {
		_, err = x.fail(err)
		return fp, err
	}
	x.enter(StateDone)
	return fp, nil
}

// inspect reads branch, commit and dirtiness.
func (r *Reconciler) inspect(ctx context.Context, path string) (model.GitFingerprint, error) {
	var fp model.GitFingerprint
	var err error

	if fp.Branch, err = r.vcs.CurrentBranch(ctx, path); err != nil {
		return fp, err
	}
	if fp.Commit, err = r.vcs.CurrentCommit(ctx, path); err != nil {
		return fp, err
	}
	if fp.IsDirty, err = r.vcs.IsDirty(ctx, path); err != nil {
		return fp, err
	}
	return fp, nil
}

// decide runs the decision and message callbacks and returns the trimmed
// commit message to use.
func (r *Reconciler) decide(ctx context.Context, path string, p Prompts) (string, error) {
	if p.Decide == nil {
		return "", failure.New(failure.UserCancelled, "Working tree at %s has uncommitted changes and no one can confirm a commit", path)
	}

	decision, err := p.Decide(ctx, path)
	if err != nil {
		return "", err
	}
	if decision != Commit {
		return "", failure.New(failure.UserCancelled, "Cancelled: working tree at %s has uncommitted changes", path)
	}

	if p.PromptMessage == nil {
		return "", failure.New(failure.UserCancelled, "Cancelled: no commit message prompt available")
	}
	msg, err := p.PromptMessage(ctx, path)
	if err != nil {
		return "", err
	}
	if msg == nil {
		return "", failure.New(failure.UserCancelled, "Cancelled: commit message prompt dismissed")
	}
	trimmed := strings.TrimSpace(*msg)
	if trimmed == "" {
		return "", failure.New(failure.EmptyCommitMessage, "Commit message is required")
	}
	return trimmed, nil
}

// verifyClean re-checks dirtiness with exponential backoff.
func (r *Reconciler) verifyClean(ctx context.Context, path string) error {
	delay := r.backoff.Initial
	for attempt := 1; attempt <= r.backoff.Attempts; attempt++ {
		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
		dirty, err := r.vcs.IsDirty(ctx, path)
		if err != nil {
			return err
		}
		if !dirty {
			return nil
		}
		delay *= 2
		if r.backoff.Max > 0 && delay > r.backoff.Max {
			delay = r.backoff.Max
		}
	}
	return failure.New(failure.ReconciliationFailed,
		"Working tree at %s is still dirty after committing (%d checks)", path, r.backoff.Attempts)
}
