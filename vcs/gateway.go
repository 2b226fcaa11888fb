// Package vcs is the version-control boundary of the resume subsystem.
//
// Gateway answers questions about one working tree and performs the two
// mutations reconciliation needs. GitGateway reads state through go-git,
// which sees the worktree, the index and unmerged entries at once, and falls
// back to `git status --porcelain` when go-git cannot open the repository.
// When neither works every query fails with failure.VcsUnavailable.
package vcs

import (
	"context"
	"errors"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	pexec "github.com/codestate/codestate-core/exec"
	"github.com/codestate/codestate-core/failure"
	"github.com/codestate/codestate-core/git"
	"github.com/codestate/codestate-core/logger"
)

// Gateway abstracts a version-control working tree. Every operation is
// scoped to path and reports failures as *failure.Error values.
type Gateway interface {
	// CurrentBranch returns the checked out branch, or "" on a detached HEAD.
	CurrentBranch(ctx context.Context, path string) (string, error)

	// CurrentCommit returns the HEAD commit hash.
	CurrentCommit(ctx context.Context, path string) (string, error)

	// IsDirty reports uncommitted work: worktree edits, staged changes,
	// untracked files, or an unfinished merge.
	IsDirty(ctx context.Context, path string) (bool, error)

	// CommitAll stages everything and commits it. A blank message fails
	// with EmptyCommitMessage.
	CommitAll(ctx context.Context, path, message string) error

	// CheckoutBranch switches to an existing local branch. It is a no-op
	// when the branch is already checked out and fails with BranchNotFound
	// when no local branch has that name, even if a remote one does.
	CheckoutBranch(ctx context.Context, path, branch string) error
}

// GitGateway implements Gateway for git working trees.
type GitGateway struct {
	cli  *git.GitService
	rich bool // consult go-git before the CLI
}

// Option configures a GitGateway.
type Option func(*GitGateway)

// WithExecutor routes CLI calls through exec.
func WithExecutor(exec pexec.CommandExecutor) Option {
	return func(g *GitGateway) {
		g.cli = git.NewGitServiceWithExecutor(exec)
	}
}

// WithoutRichStatus disables go-git so only the CLI is consulted.
func WithoutRichStatus() Option {
	return func(g *GitGateway) {
		g.rich = false
	}
}

// NewGitGateway creates a GitGateway backed by go-git and the git binary.
func NewGitGateway(opts ...Option) *GitGateway {
	g := &GitGateway{cli: git.NewGitService(), rich: true}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// open returns the go-git repository containing path, or nil when go-git is
// disabled or cannot read it.
func (g *GitGateway) open(path string) *gogit.Repository {
	if !g.rich {
		return nil
	}
	repo, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		logger.WithComponent("vcs").Debug("go-git unavailable, using git CLI", "path", path, "error", err)
		return nil
	}
	return repo
}

func unavailable(err error, path string) error {
	return failure.Wrap(failure.VcsUnavailable, err, "no usable git repository at %s", path)
}

// CurrentBranch returns the short branch name of HEAD.
func (g *GitGateway) CurrentBranch(ctx context.Context, path string) (string, error) {
	if repo := g.open(path); repo != nil {
		head, err := repo.Head()
		if err == nil {
			if head.Name().IsBranch() {
				return head.Name().Short(), nil
			}
			return "", nil
		}
	}

	branch, err := g.cli.GetCurrentBranch(ctx, path)
	if errors.Is(err, git.ErrDetachedHead) {
		return "", nil
	}
	if err != nil {
		return "", unavailable(err, path)
	}
	return branch, nil
}

// CurrentCommit returns the hash of HEAD.
func (g *GitGateway) CurrentCommit(ctx context.Context, path string) (string, error) {
	if repo := g.open(path); repo != nil {
		if head, err := repo.Head(); err == nil {
			return head.Hash().String(), nil
		}
	}

	commit, err := g.cli.HeadCommit(ctx, path)
	if err != nil {
		return "", unavailable(err, path)
	}
	return commit, nil
}

// IsDirty consults go-git status and merge state first, then the CLI.
func (g *GitGateway) IsDirty(ctx context.Context, path string) (bool, error) {
	if repo := g.open(path); repo != nil {
		dirty, err := richDirty(repo)
		if err == nil {
			return dirty, nil
		}
		logger.WithComponent("vcs").Debug("go-git status failed, using git CLI", "path", path, "error", err)
	}

	status, err := g.cli.GetWorktreeStatus(ctx, path)
	if err != nil {
		return false, unavailable(err, path)
	}
	return status.HasChanges || g.cli.IsMergeInProgress(ctx, path), nil
}

func richDirty(repo *gogit.Repository) (bool, error) {
	if _, err := repo.Reference(plumbing.ReferenceName("MERGE_HEAD"), false); err == nil {
		return true, nil
	}

	wt, err := repo.Worktree()
	if err != nil {
		return false, err
	}
	status, err := wt.Status()
	if err != nil {
		return false, err
	}
	// Unmerged and untracked entries are not Unmodified, so they count.
	return !status.IsClean(), nil
}

// CommitAll validates the message and commits through the CLI so hooks and
// signing configuration apply.
func (g *GitGateway) CommitAll(ctx context.Context, path, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return failure.New(failure.EmptyCommitMessage, "Commit message is required")
	}

	if err := g.cli.CommitAll(ctx, path, message); err != nil {
		if pexec.IsNotFound(err) {
			return unavailable(err, path)
		}
		return failure.Wrap(failure.UpstreamFailure, err, "Failed to commit changes")
	}
	return nil
}

// CheckoutBranch switches path to branch.
func (g *GitGateway) CheckoutBranch(ctx context.Context, path, branch string) error {
	current, err := g.CurrentBranch(ctx, path)
	if err != nil {
		return err
	}
	if current == branch {
		return nil
	}

	if err := git.ValidateBranchName(branch); err != nil {
		return failure.Wrap(failure.BranchNotFound, err, "Cannot switch to branch %q", branch)
	}
	if !g.branchExists(ctx, path, branch) {
		return failure.New(failure.BranchNotFound, "Branch %q does not exist in %s", branch, path)
	}

	if err := g.cli.CheckoutBranch(ctx, path, branch); err != nil {
		return failure.Wrap(failure.UpstreamFailure, err, "Failed to switch to branch %s", branch)
	}
	return nil
}

// branchExists looks only at local branches.
func (g *GitGateway) branchExists(ctx context.Context, path, branch string) bool {
	if repo := g.open(path); repo != nil {
		_, err := repo.Reference(plumbing.NewBranchReferenceName(branch), false)
		return err == nil
	}
	return g.cli.BranchExists(ctx, path, branch)
}

var _ Gateway = (*GitGateway)(nil)
