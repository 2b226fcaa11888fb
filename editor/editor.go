// Package editor reopens a session's files in a VS Code compatible editor
// and normalizes captured file lists.
package editor

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/codestate/codestate-core/exec"
	"github.com/codestate/codestate-core/failure"
	"github.com/codestate/codestate-core/logger"
	"github.com/codestate/codestate-core/model"
	"github.com/codestate/codestate-core/paths"
)

// Opener opens files with an editor command that understands
// `--reuse-window --goto path:line:column`.
type Opener struct {
	executor exec.CommandExecutor
	command  string
}

// NewOpener creates an Opener running command through executor.
func NewOpener(executor exec.CommandExecutor, command string) *Opener {
	return &Opener{executor: executor, command: command}
}

// Command returns the editor command.
func (o *Opener) Command() string {
	return o.command
}

// Args builds the editor arguments for files under root. Files open in
// position order with the active file last so it ends up focused. Cursor
// positions are zero-based; the editor expects one-based.
func Args(root string, files []model.FileState) []string {
	ordered := make([]model.FileState, len(files))
	copy(ordered, files)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].IsActive != ordered[j].IsActive {
			return !ordered[i].IsActive
		}
		return ordered[i].Position < ordered[j].Position
	})

	args := []string{"--reuse-window", "--goto"}
	for _, f := range ordered {
		p := f.Path
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		args = append(args, fmt.Sprintf("%s:%d:%d", p, f.Cursor.Line+1, f.Cursor.Column+1))
	}
	return args
}

// OpenFiles opens files in one editor invocation. An empty list does
// nothing.
func (o *Opener) OpenFiles(ctx context.Context, root string, files []model.FileState) error {
	if len(files) == 0 {
		return nil
	}
	args := Args(root, files)
	logger.WithComponent("editor").Info("opening files", "command", o.command, "count", len(files), "root", root)

	if _, err := o.executor.Output(ctx, root, o.command, args...); err != nil {
		if exec.IsNotFound(err) {
			return failure.Wrap(failure.UpstreamFailure, err, "Editor command %q not found", o.command)
		}
		return failure.Wrap(failure.UpstreamFailure, err, "Failed to open files")
	}
	return nil
}

// Snapshot normalizes a captured file list: paths inside root become
// relative, duplicates keep their first occurrence, positions are
// renumbered from zero and at most one file stays active.
func Snapshot(root string, files []model.FileState) []model.FileState {
	ordered := make([]model.FileState, len(files))
	copy(ordered, files)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Position < ordered[j].Position
	})

	out := make([]model.FileState, 0, len(ordered))
	seen := make(map[string]bool, len(ordered))
	active := false
	for _, f := range ordered {
		f.Path = relative(root, f.Path)
		if f.Path == "" || f.Path == "." || seen[f.Path] {
			continue
		}
		seen[f.Path] = true
		if f.IsActive {
			if active {
				f.IsActive = false
			}
			active = true
		}
		f.Position = len(out)
		out = append(out, f)
	}
	return out
}

func relative(root, p string) string {
	if p == "" {
		return ""
	}
	if root == "" || !filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	if !paths.Within(root, p) {
		return filepath.Clean(p)
	}
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return filepath.Clean(p)
	}
	return rel
}
