package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/codestate/codestate-core/logger"
)

// CommitAll stages every change, including untracked files, and commits them.
func (s *GitService) CommitAll(ctx context.Context, path, message string) error {
	logger.WithComponent("git").Info("committing all changes", "path", path)

	if output, err := s.executor.CombinedOutput(ctx, path, "git", "add", "-A"); err != nil {
		return fmt.Errorf("git add failed: %s: %w", strings.TrimSpace(string(output)), err)
	}

	if output, err := s.executor.CombinedOutput(ctx, path, "git", "commit", "-m", message); err != nil {
		return fmt.Errorf("git commit failed: %s: %w", strings.TrimSpace(string(output)), err)
	}

	return nil
}
