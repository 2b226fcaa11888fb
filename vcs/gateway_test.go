package vcs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pexec "github.com/codestate/codestate-core/exec"
	"github.com/codestate/codestate-core/failure"
)

var ctx = context.Background()

// initRepo creates a repository on master with one commit and a second
// branch feature/x pointing at the same commit.
func initRepo(t *testing.T) (string, plumbing.Hash) {
	t.Helper()
	dir := t.TempDir()

	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)

	cfg, err := repo.Config()
	require.NoError(t, err)
	cfg.User.Name = "Test User"
	cfg.User.Email = "test@example.com"
	require.NoError(t, repo.SetConfig(cfg))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("main.go")
	require.NoError(t, err)
	hash, err := wt.Commit("initial", &gogit.CommitOptions{
		Author: &object.Signature{Name: "Test User", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName("feature/x"), hash)
	require.NoError(t, repo.Storer.SetReference(ref))
	return dir, hash
}

func TestGitGateway_CleanRepository(t *testing.T) {
	dir, hash := initRepo(t)
	g := NewGitGateway()

	branch, err := g.CurrentBranch(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, "master", branch)

	commit, err := g.CurrentCommit(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, hash.String(), commit)

	dirty, err := g.IsDirty(ctx, dir)
	require.NoError(t, err)
	assert.False(t, dirty)
}

func TestGitGateway_DirtySignals(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dir string)
	}{
		{"modified file", func(t *testing.T, dir string) {
			require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package changed\n"), 0644))
		}},
		{"untracked file", func(t *testing.T, dir string) {
			require.NoError(t, os.WriteFile(filepath.Join(dir, "new.go"), []byte("package main\n"), 0644))
		}},
		{"staged file", func(t *testing.T, dir string) {
			require.NoError(t, os.WriteFile(filepath.Join(dir, "staged.go"), []byte("package main\n"), 0644))
			repo, err := gogit.PlainOpen(dir)
			require.NoError(t, err)
			wt, err := repo.Worktree()
			require.NoError(t, err)
			_, err = wt.Add("staged.go")
			require.NoError(t, err)
		}},
		{"merge in progress", func(t *testing.T, dir string) {
			head, err := os.ReadFile(filepath.Join(dir, ".git", "refs", "heads", "master"))
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "MERGE_HEAD"), head, 0644))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, _ := initRepo(t)
			tt.setup(t, dir)

			dirty, err := NewGitGateway().IsDirty(ctx, dir)
			require.NoError(t, err)
			assert.True(t, dirty)
		})
	}
}

func TestGitGateway_CommitAll(t *testing.T) {
	dir, hash := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wip.go"), []byte("package main\n"), 0644))
	g := NewGitGateway()

	require.NoError(t, g.CommitAll(ctx, dir, "  wip  "))

	dirty, err := g.IsDirty(ctx, dir)
	require.NoError(t, err)
	assert.False(t, dirty)

	commit, err := g.CurrentCommit(ctx, dir)
	require.NoError(t, err)
	assert.NotEqual(t, hash.String(), commit)

	repo, err := gogit.PlainOpen(dir)
	require.NoError(t, err)
	obj, err := repo.CommitObject(plumbing.NewHash(commit))
	require.NoError(t, err)
	assert.Equal(t, "wip\n", obj.Message)
}

func TestGitGateway_CommitAllBlankMessage(t *testing.T) {
	mock := pexec.NewMockExecutor(nil)
	g := NewGitGateway(WithExecutor(mock))

	err := g.CommitAll(ctx, "/repo", " \t\n")
	assert.True(t, errors.Is(err, failure.ErrEmptyCommitMessage))
	assert.Empty(t, mock.GetCalls(), "blank message must not reach git")
}

func TestGitGateway_CheckoutBranch(t *testing.T) {
	dir, _ := initRepo(t)
	mock := pexec.NewMockExecutor(pexec.NewRealExecutor())
	g := NewGitGateway(WithExecutor(mock))

	t.Run("already on branch", func(t *testing.T) {
		require.NoError(t, g.CheckoutBranch(ctx, dir, "master"))
		assert.Zero(t, mock.CountCalls("git", "checkout"))
	})

	t.Run("missing branch", func(t *testing.T) {
		err := g.CheckoutBranch(ctx, dir, "does-not-exist")
		assert.True(t, errors.Is(err, failure.ErrBranchNotFound))
		assert.Zero(t, mock.CountCalls("git", "checkout"))
	})

	t.Run("option-like branch", func(t *testing.T) {
		err := g.CheckoutBranch(ctx, dir, "--orphan")
		assert.True(t, errors.Is(err, failure.ErrBranchNotFound))
		assert.Zero(t, mock.CountCalls("git", "checkout"))
	})

	t.Run("remote-only branch", func(t *testing.T) {
		repo, err := gogit.PlainOpen(dir)
		require.NoError(t, err)
		head, err := repo.Head()
		require.NoError(t, err)
		remoteRef := plumbing.NewRemoteReferenceName("origin", "remote-only")
		require.NoError(t, repo.Storer.SetReference(plumbing.NewHashReference(remoteRef, head.Hash())))

		err = g.CheckoutBranch(ctx, dir, "remote-only")
		assert.True(t, errors.Is(err, failure.ErrBranchNotFound))
		assert.Zero(t, mock.CountCalls("git", "checkout"))

		_, err = repo.Reference(plumbing.NewBranchReferenceName("remote-only"), false)
		assert.Error(t, err, "no local branch may be created")
	})

	t.Run("existing branch", func(t *testing.T) {
		require.NoError(t, g.CheckoutBranch(ctx, dir, "feature/x"))
		assert.Equal(t, 1, mock.CountCalls("git", "checkout"))

		branch, err := g.CurrentBranch(ctx, dir)
		require.NoError(t, err)
		assert.Equal(t, "feature/x", branch)
	})
}

func TestGitGateway_DetachedHead(t *testing.T) {
	dir, hash := initRepo(t)
	repo, err := gogit.PlainOpen(dir)
	require.NoError(t, err)
	require.NoError(t, repo.Storer.SetReference(plumbing.NewHashReference(plumbing.HEAD, hash)))

	branch, err := NewGitGateway().CurrentBranch(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, "", branch)
}

func TestGitGateway_CLIFallback(t *testing.T) {
	mergeHeadMissing := pexec.MockResponse{Err: errors.New("exit status 1")}

	t.Run("dirty from porcelain", func(t *testing.T) {
		mock := pexec.NewMockExecutor(nil)
		mock.AddExactMatch("git", []string{"status", "--porcelain"}, pexec.MockResponse{Stdout: []byte(" M main.go\n")})
		mock.AddPrefixMatch("git", []string{"rev-parse", "--verify", "--quiet", "MERGE_HEAD"}, mergeHeadMissing)

		dirty, err := NewGitGateway(WithExecutor(mock), WithoutRichStatus()).IsDirty(ctx, "/repo")
		require.NoError(t, err)
		assert.True(t, dirty)
	})

	t.Run("clean from porcelain", func(t *testing.T) {
		mock := pexec.NewMockExecutor(nil)
		mock.AddExactMatch("git", []string{"status", "--porcelain"}, pexec.MockResponse{})
		mock.AddPrefixMatch("git", []string{"rev-parse", "--verify", "--quiet", "MERGE_HEAD"}, mergeHeadMissing)

		dirty, err := NewGitGateway(WithExecutor(mock), WithoutRichStatus()).IsDirty(ctx, "/repo")
		require.NoError(t, err)
		assert.False(t, dirty)
	})

	t.Run("go-git cannot open falls back to CLI", func(t *testing.T) {
		mock := pexec.NewMockExecutor(nil)
		mock.AddExactMatch("git", []string{"status", "--porcelain"}, pexec.MockResponse{Stdout: []byte("?? x\n")})

		dirty, err := NewGitGateway(WithExecutor(mock)).IsDirty(ctx, t.TempDir())
		require.NoError(t, err)
		assert.True(t, dirty)
		assert.Equal(t, 1, mock.CountCalls("git", "status"))
	})

	t.Run("no integration", func(t *testing.T) {
		mock := pexec.NewMockExecutor(nil)
		mock.AddPrefixMatch("git", nil, pexec.MockResponse{
			Stderr: []byte("fatal: not a git repository"),
			Err:    errors.New("exit status 128"),
		})
		g := NewGitGateway(WithExecutor(mock), WithoutRichStatus())

		_, err := g.IsDirty(ctx, "/nowhere")
		assert.Equal(t, failure.VcsUnavailable, failure.KindOf(err))
		_, err = g.CurrentBranch(ctx, "/nowhere")
		assert.Equal(t, failure.VcsUnavailable, failure.KindOf(err))
		_, err = g.CurrentCommit(ctx, "/nowhere")
		assert.Equal(t, failure.VcsUnavailable, failure.KindOf(err))
	})
}

func TestGitGateway_NotARepository(t *testing.T) {
	_, err := NewGitGateway().IsDirty(ctx, t.TempDir())
	assert.True(t, errors.Is(err, failure.ErrVcsUnavailable))
}
