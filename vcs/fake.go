package vcs

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/codestate/codestate-core/failure"
)

// Call records one FakeGateway invocation.
type Call struct {
	Op   string // "CurrentBranch", "IsDirty", "CommitAll", ...
	Path string
	Arg  string // commit message or branch name
}

// FakeGateway is an in-memory Gateway for tests. It models one working tree
// regardless of path and records every call.
type FakeGateway struct {
	mu sync.Mutex

	Branch   string
	Commit   string
	Dirty    bool
	Branches []string // existing branches besides Branch

	// SettleLag is how many IsDirty calls keep reporting dirty after a
	// successful commit. Negative means the tree never becomes clean.
	SettleLag int

	// Errors forces an operation (keyed by Op) to fail.
	Errors map[string]error

	// OnCall, when set, runs after every call is recorded. Tests use it to
	// block or observe ordering.
	OnCall func(Call)

	calls   []Call
	commits int
	lag     int
}

func (f *FakeGateway) record(op, path, arg string) error {
	f.mu.Lock()
	c := Call{Op: op, Path: path, Arg: arg}
	f.calls = append(f.calls, c)
	hook := f.OnCall
	err := f.Errors[op]
	f.mu.Unlock()

	if hook != nil {
		hook(c)
	}
	return err
}

// Calls returns recorded calls, optionally limited to the given ops.
func (f *FakeGateway) Calls(ops ...string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(ops) == 0 {
		return slices.Clone(f.calls)
	}
	var out []Call
	for _, c := range f.calls {
		if slices.Contains(ops, c.Op) {
			out = append(out, c)
		}
	}
	return out
}

// Mutations returns CommitAll calls and CheckoutBranch calls that changed branch.
func (f *FakeGateway) Mutations() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.calls {
		if c.Op == "CommitAll" || c.Op == "checkout" {
			out = append(out, c)
		}
	}
	return out
}

func (f *FakeGateway) CurrentBranch(ctx context.Context, path string) (string, error) {
	if err := f.record("CurrentBranch", path, ""); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Branch, nil
}

func (f *FakeGateway) CurrentCommit(ctx context.Context, path string) (string, error) {
	if err := f.record("CurrentCommit", path, ""); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Commit, nil
}

func (f *FakeGateway) IsDirty(ctx context.Context, path string) (bool, error) {
	if err := f.record("IsDirty", path, ""); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commits > 0 && f.lag != 0 {
		if f.lag > 0 {
			f.lag--
		}
		return true, nil
	}
	return f.Dirty, nil
}

func (f *FakeGateway) CommitAll(ctx context.Context, path, message string) error {
	if err := f.record("CommitAll", path, message); err != nil {
		return err
	}
	if strings.TrimSpace(message) == "" {
		return failure.New(failure.EmptyCommitMessage, "Commit message is required")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits++
	f.Dirty = false
	f.lag = f.SettleLag
	f.Commit = fmt.Sprintf("%s-c%d", f.Commit, f.commits)
	return nil
}

func (f *FakeGateway) CheckoutBranch(ctx context.Context, path, branch string) error {
	if err := f.record("CheckoutBranch", path, branch); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Branch == branch {
		return nil
	}
	if !slices.Contains(f.Branches, branch) {
		return failure.New(failure.BranchNotFound, "Branch %q does not exist in %s", branch, path)
	}
	f.calls = append(f.calls, Call{Op: "checkout", Path: path, Arg: branch})
	f.Branches = append(f.Branches, f.Branch)
	f.Branch = branch
	return nil
}

var _ Gateway = (*FakeGateway)(nil)
