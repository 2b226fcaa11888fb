package git

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/codestate/codestate-core/logger"
)

// ErrDetachedHead is returned by GetCurrentBranch when HEAD is not on a branch.
var ErrDetachedHead = errors.New("HEAD is detached (not on a branch)")

// GetCurrentBranch returns the name of the checked out branch.
func (s *GitService) GetCurrentBranch(ctx context.Context, path string) (string, error) {
	output, err := s.executor.Output(ctx, path, "git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to get current branch: %w", err)
	}

	branch := strings.TrimSpace(string(output))
	if branch == "HEAD" {
		return "", ErrDetachedHead
	}
	return branch, nil
}

// BranchExists reports whether a local branch exists. Remote-tracking refs
// do not count.
func (s *GitService) BranchExists(ctx context.Context, path, branch string) bool {
	_, _, err := s.executor.Run(ctx, path, "git", "rev-parse", "--verify", "--quiet", "refs/heads/"+branch)
	return err == nil
}

// CheckoutBranch checks out an existing local branch. It never creates a
// branch from a same-named remote one, and fails if local changes would be
// overwritten.
func (s *GitService) CheckoutBranch(ctx context.Context, path, branch string) error {
	output, err := s.executor.CombinedOutput(ctx, path, "git", "checkout", "--no-guess", branch, "--")
	if err != nil {
		return fmt.Errorf("git checkout failed: %s: %w", strings.TrimSpace(string(output)), err)
	}

	logger.WithComponent("git").Info("checked out branch", "branch", branch, "path", path)
	return nil
}
