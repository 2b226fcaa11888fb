// Package resume restores a saved session: it reconciles the working tree
// with the session's branch and then asks the store to reopen files and
// relaunch scripts.
package resume

import (
	"context"
	"sync"
	"time"

	"github.com/codestate/codestate-core/failure"
	"github.com/codestate/codestate-core/logger"
	"github.com/codestate/codestate-core/model"
	"github.com/codestate/codestate-core/paths"
	"github.com/codestate/codestate-core/reconcile"
	"github.com/codestate/codestate-core/store"
)

// Reconciler is the subset of *reconcile.Reconciler the orchestrator uses.
type Reconciler interface {
	Reconcile(ctx context.Context, path, targetBranch string, p reconcile.Prompts) (*reconcile.Result, error)
}

// Orchestrator runs session resumes. Resumes of different sessions run
// concurrently; a second resume of a session that is still in flight is
// rejected with failure.ResumeInProgress.
type Orchestrator struct {
	sessions    store.Sessions
	reconciler  Reconciler
	currentRoot func() string
	onDone      func(id string, err error, elapsed time.Duration)

	mu       sync.Mutex
	inflight map[string]struct{}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCurrentRoot supplies the active project root. It is read once per
// resume.
func WithCurrentRoot(fn func() string) Option {
	return func(o *Orchestrator) {
		o.currentRoot = fn
	}
}

// WithCompletion registers a callback run after every resume attempt.
func WithCompletion(fn func(id string, err error, elapsed time.Duration)) Option {
	return func(o *Orchestrator) {
		o.onDone = fn
	}
}

// New creates an Orchestrator.
func New(sessions store.Sessions, reconciler Reconciler, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sessions:    sessions,
		reconciler:  reconciler,
		currentRoot: func() string { return "" },
		inflight:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// acquire marks id as in flight. It returns false if it already was.
func (o *Orchestrator) acquire(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[id]; busy {
		return false
	}
	o.inflight[id] = struct{}{}
	return true
}

func (o *Orchestrator) release(id string) {
	o.mu.Lock()
	delete(o.inflight, id)
	o.mu.Unlock()
}

// InFlight reports whether a resume of id is running.
func (o *Orchestrator) InFlight(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, busy := o.inflight[id]
	return busy
}

// WorkingPath returns the tree to reconcile for sess: the active root when it
// is the session's project, otherwise the stored project root.
func WorkingPath(currentRoot string, sess *model.Session) string {
	if currentRoot != "" && paths.SamePath(currentRoot, sess.ProjectRoot) {
		return currentRoot
	}
	return sess.ProjectRoot
}

// Resume restores the session identified by id. Reconciliation errors are
// returned unchanged; nothing is launched unless reconciliation succeeds.
func (o *Orchestrator) Resume(ctx context.Context, id string, prompts reconcile.Prompts) (sess *model.Session, err error) {
	start := time.Now()
	defer func() {
		if o.onDone != nil {
			o.onDone(id, err, time.Since(start))
		}
	}()

	if id == "" {
		return nil, failure.New(failure.InvalidRequest, "Session ID is required")
	}

	record, err := o.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, failure.Upstream(err)
	}

	if !o.acquire(record.ID) {
		return nil, failure.New(failure.ResumeInProgress, "Session %q is already being resumed", record.Name)
	}
	defer o.release(record.ID)

	log := logger.WithSession(record.ID).With("component", "resume")
	path := WorkingPath(o.currentRoot(), record)
	log.Info("resuming session", "name", record.Name, "path", path, "branch", record.Git.Branch)

	if record.Git.Branch != "" {
		result, err := o.reconciler.Reconcile(ctx, path, record.Git.Branch, prompts)
		if err != nil {
			log.Warn("reconciliation aborted resume", "kind", failure.KindOf(err), "error", err)
			return nil, err
		}
		if result.WasCommitted {
			log.Info("committed before resume", "message", result.CommitMessage, "commit", result.Fingerprint.Commit)
		}
	} else {
		log.Debug("session has no branch, skipping reconciliation")
	}

	resumed, err := o.sessions.ResumeSession(ctx, record.ID)
	if err != nil {
		log.Error("resume side effects failed", "error", err)
		return nil, failure.Upstream(err)
	}
	log.Info("session resumed")
	return resumed, nil
}
