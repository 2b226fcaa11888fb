// Package collector captures the current workspace as a draft session.
package collector

import (
	"context"
	"os"
	"path/filepath"
	"runtime"

	"github.com/codestate/codestate-core/editor"
	"github.com/codestate/codestate-core/failure"
	"github.com/codestate/codestate-core/logger"
	"github.com/codestate/codestate-core/model"
	"github.com/codestate/codestate-core/reconcile"
)

// Reconciler is the part of *reconcile.Reconciler the collector uses.
type Reconciler interface {
	Inspect(ctx context.Context, path string) (model.GitFingerprint, error)
	Reconcile(ctx context.Context, path, targetBranch string, p reconcile.Prompts) (*reconcile.Result, error)
}

// Collector builds draft sessions.
type Collector struct {
	reconciler Reconciler
	editor     string
}

// New creates a Collector. editorCommand is recorded in the draft's
// extensions.
func New(r Reconciler, editorCommand string) *Collector {
	return &Collector{reconciler: r, editor: editorCommand}
}

// Collect returns an unsaved session for root with the given editor files.
// Name, tags and notes are left for the caller to fill in.
//
// With no decision callback the working tree is only inspected, so a dirty
// tree is captured as dirty. With callbacks the tree is first reconciled
// on its current branch, which may commit.
func (c *Collector) Collect(ctx context.Context, root string, files []model.FileState, p reconcile.Prompts) (*model.Session, error) {
	if root == "" {
		return nil, failure.New(failure.NoWorkspace, "No workspace folder found")
	}
	root = filepath.Clean(root)
	log := logger.WithComponent("collector").With("root", root)

	var fp model.GitFingerprint
	if p.Decide == nil {
		var err error
		if fp, err = c.reconciler.Inspect(ctx, root); err != nil {
			return nil, err
		}
	} else {
		res, err := c.reconciler.Reconcile(ctx, root, "", p)
		if err != nil {
			return nil, err
		}
		fp = res.Fingerprint
	}

	draft := &model.Session{
		ProjectRoot:         root,
		Tags:                []string{},
		Files:               editor.Snapshot(root, files),
		Git:                 fp,
		Extensions:          map[string]any{"host": c.hostInfo()},
		TerminalCommands:    []model.TerminalCommand{},
		TerminalCollections: []string{},
		Scripts:             []string{},
	}
	log.Debug("collected draft session", "files", len(draft.Files), "branch", fp.Branch, "dirty", fp.IsDirty)
	return draft, nil
}

func (c *Collector) hostInfo() map[string]any {
	info := map[string]any{
		"os":   runtime.GOOS,
		"arch": runtime.GOARCH,
	}
	if name, err := os.Hostname(); err == nil {
		info["hostname"] = name
	}
	if c.editor != "" {
		info["editor"] = c.editor
	}
	return info
}
