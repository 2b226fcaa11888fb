package git

import (
	"context"
	"fmt"
	"strings"
)

// FileChange is one entry of `git status --porcelain`.
type FileChange struct {
	Index    byte   // Staging area status (' ' when unchanged)
	Worktree byte   // Working tree status (' ' when unchanged)
	Path     string // Path relative to the repository root
}

// Unmerged reports whether the entry is a merge conflict.
func (c FileChange) Unmerged() bool {
	switch string([]byte{c.Index, c.Worktree}) {
	case "DD", "AU", "UD", "UA", "DU", "AA", "UU":
		return true
	}
	return false
}

// WorktreeStatus summarises uncommitted changes.
type WorktreeStatus struct {
	HasChanges bool
	Files      []FileChange
}

// Staged returns the number of entries with index changes.
func (s *WorktreeStatus) Staged() int {
	n := 0
	for _, f := range s.Files {
		if f.Index != ' ' && f.Index != '?' {
			n++
		}
	}
	return n
}

// GetWorktreeStatus returns the uncommitted changes at path.
func (s *GitService) GetWorktreeStatus(ctx context.Context, path string) (*WorktreeStatus, error) {
	output, err := s.executor.Output(ctx, path, "git", "status", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("git status failed: %w", err)
	}
	return ParsePorcelain(string(output)), nil
}

// ParsePorcelain parses `git status --porcelain` (v1) output.
func ParsePorcelain(output string) *WorktreeStatus {
	status := &WorktreeStatus{}

	// Leading spaces are significant, so only trim the end.
	for _, line := range strings.Split(strings.TrimRight(output, "\n\r\t "), "\n") {
		if len(line) < 4 {
			continue
		}
		path := line[3:]
		// Renames are reported as "old -> new".
		if _, after, ok := strings.Cut(path, " -> "); ok {
			path = after
		}
		status.Files = append(status.Files, FileChange{
			Index:    line[0],
			Worktree: line[1],
			Path:     strings.Trim(path, `"`),
		})
	}
	status.HasChanges = len(status.Files) > 0
	return status
}

// HeadCommit returns the full hash of HEAD.
func (s *GitService) HeadCommit(ctx context.Context, path string) (string, error) {
	output, err := s.executor.Output(ctx, path, "git", "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD commit: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// IsMergeInProgress reports whether a merge is waiting to be concluded.
func (s *GitService) IsMergeInProgress(ctx context.Context, path string) bool {
	_, _, err := s.executor.Run(ctx, path, "git", "rev-parse", "--verify", "--quiet", "MERGE_HEAD")
	return err == nil
}
