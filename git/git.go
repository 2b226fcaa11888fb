// Package git drives the git command line for a working tree.
//
// It is the coarse backend behind vcs.GitGateway: every query shells out
// through an exec.CommandExecutor, so it works wherever a git binary does.
//   - service.go: GitService struct and constructor
//   - status.go: porcelain status, HEAD commit, merge detection
//   - commit.go: stage-and-commit
//   - branch.go: current branch, existence checks, checkout
package git
