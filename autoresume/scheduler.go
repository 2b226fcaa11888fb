// Package autoresume launches a project's on-open scripts and terminal
// collections when codestate starts.
package autoresume

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/codestate/codestate-core/failure"
	"github.com/codestate/codestate-core/logger"
	"github.com/codestate/codestate-core/model"
	"github.com/codestate/codestate-core/store"
)

// Item kinds reported to the outcome callback.
const (
	KindScript     = "script"
	KindCollection = "terminal-collection"
)

// Item identifies one launch attempt.
type Item struct {
	Kind string
	ID   string
	Name string
}

// Scheduler resumes every on-open item of a workspace. Each item runs in
// isolation: an error or panic is logged and the next item still runs.
type Scheduler struct {
	scripts     store.Scripts
	collections store.Collections
	outcome     func(Item, error)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithOutcome is called once per attempted item with its error, if any.
func WithOutcome(fn func(Item, error)) Option {
	return func(s *Scheduler) {
		s.outcome = fn
	}
}

// New creates a Scheduler.
func New(scripts store.Scripts, collections store.Collections, opts ...Option) *Scheduler {
	s := &Scheduler{scripts: scripts, collections: collections}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AutoResumeForWorkspace runs the on-open scripts and terminal collections
// of projectRoot. An empty root is a no-op. It never returns an error; all
// failures are logged.
func (s *Scheduler) AutoResumeForWorkspace(ctx context.Context, projectRoot string) {
	log := logger.WithComponent("autoresume")
	if projectRoot == "" {
		log.Info("no workspace root, skipping auto-resume")
		return
	}
	root := filepath.Clean(projectRoot)
	log = log.With("root", root)

	scripts, err := s.openScripts(ctx, root)
	if err != nil {
		log.Error("failed to query scripts for auto-resume", "error", err)
	}
	collections, err := s.openCollections(ctx, root)
	if err != nil {
		log.Error("failed to query terminal collections for auto-resume", "error", err)
	}
	log.Info("starting auto-resume", "scripts", len(scripts), "collections", len(collections))

	var failed int
	for _, sc := range scripts {
		item := Item{Kind: KindScript, ID: sc.ID, Name: sc.Name}
		if !s.run(ctx, item, func(ctx context.Context) error { return s.scripts.ResumeScript(ctx, sc.ID) }) {
			failed++
		}
	}
	for _, tc := range collections {
		item := Item{Kind: KindCollection, ID: tc.ID, Name: tc.Name}
		if !s.run(ctx, item, func(ctx context.Context) error { return s.collections.ExecuteTerminalCollection(ctx, tc.ID) }) {
			failed++
		}
	}

	log.Info("auto-resume completed", "attempted", len(scripts)+len(collections), "failed", failed)
}

func (s *Scheduler) openScripts(ctx context.Context, root string) (out []model.Script, err error) {
	defer recoverInto(&err)
	return s.scripts.GetScripts(ctx, model.ScriptFilter{RootPath: root, Lifecycle: model.LifecycleOpen})
}

// openCollections filters locally; the store returns every collection.
func (s *Scheduler) openCollections(ctx context.Context, root string) (out []model.TerminalCollection, err error) {
	defer recoverInto(&err)
	all, err := s.collections.GetTerminalCollections(ctx)
	if err != nil {
		return nil, err
	}
	for _, tc := range all {
		if tc.RunsOn(root, model.LifecycleOpen) {
			out = append(out, tc)
		}
	}
	return out, nil
}

// run executes one item and reports whether it succeeded.
func (s *Scheduler) run(ctx context.Context, item Item, fn func(context.Context) error) bool {
	log := logger.WithComponent("autoresume").With("kind", item.Kind, "id", item.ID, "name", item.Name)

	err := func() (err error) {
		defer recoverInto(&err)
		return fn(ctx)
	}()

	if s.outcome != nil {
		s.outcome(item, err)
	}
	if err != nil {
		log.Warn("auto-resume item failed", "error", err)
		return false
	}
	log.Info("auto-resumed")
	return true
}

func recoverInto(err *error) {
	if r := recover(); r != nil {
		*err = failure.New(failure.UpstreamFailure, "panic: %v", r)
	}
}

// String renders the item for log lines and CLI output.
func (i Item) String() string {
	return fmt.Sprintf("%s %s (%s)", i.Kind, i.Name, i.ID)
}
