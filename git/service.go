package git

import (
	"context"
	"strings"

	pexec "github.com/codestate/codestate-core/exec"
)

// GitService runs git commands through an injected executor.
type GitService struct {
	executor pexec.CommandExecutor
}

// NewGitService creates a GitService backed by the real git binary.
func NewGitService() *GitService {
	return &GitService{executor: pexec.NewRealExecutor()}
}

// NewGitServiceWithExecutor creates a GitService with a custom executor.
func NewGitServiceWithExecutor(exec pexec.CommandExecutor) *GitService {
	return &GitService{executor: exec}
}

// Available reports whether git can be run and path is inside a working tree.
func (s *GitService) Available(ctx context.Context, path string) bool {
	out, err := s.executor.Output(ctx, path, "git", "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(string(out)) == "true"
}
