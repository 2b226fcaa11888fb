// Package cli checks the external tools the codestate binary shells out to.
package cli

import (
	"context"
	"fmt"
	osexec "os/exec"
	"strings"

	"github.com/codestate/codestate-core/exec"
)

// Prerequisite is an external command codestate may run.
type Prerequisite struct {
	Name        string   // Command name (e.g., "git", "code")
	Required    bool     // Whether resume cannot work without it
	Description string   // Human-readable description
	InstallURL  string   // URL for installation instructions
	VersionArgs []string // Arguments printing a version, first line used
}

// DefaultPrerequisites returns the tools used to reconcile and resume.
// editorCommand is the configured editor.
func DefaultPrerequisites(editorCommand string) []Prerequisite {
	return []Prerequisite{
		{
			Name:        "git",
			Required:    true,
			Description: "Git version control (commit and checkout)",
			InstallURL:  "https://git-scm.com/downloads",
			VersionArgs: []string{"--version"},
		},
		{
			Name:        editorCommand,
			Required:    false, // Only needed to reopen files
			Description: "Editor (optional, reopens session files)",
			InstallURL:  "https://code.visualstudio.com/docs/setup/setup-overview",
			VersionArgs: []string{"--version"},
		},
	}
}

// CheckResult is the outcome of checking one prerequisite.
type CheckResult struct {
	Prerequisite Prerequisite
	Found        bool
	Path         string // Path to the executable if found
	Version      string // First line of the version output, if any
	Error        error
}

// Checker looks tools up in PATH and asks them for their version.
type Checker struct {
	lookPath func(string) (string, error)
	executor exec.CommandExecutor
}

// NewChecker creates a Checker that runs version commands through executor.
func NewChecker(executor exec.CommandExecutor) *Checker {
	return &Checker{lookPath: osexec.LookPath, executor: executor}
}

// Check verifies that a tool is available in PATH.
func (c *Checker) Check(ctx context.Context, prereq Prerequisite) CheckResult {
	result := CheckResult{Prerequisite: prereq}

	path, err := c.lookPath(prereq.Name)
	if err != nil {
		result.Error = fmt.Errorf("%s not found in PATH", prereq.Name)
		return result
	}
	result.Found = true
	result.Path = path

	if len(prereq.VersionArgs) > 0 {
		result.Version = c.version(ctx, prereq)
	}
	return result
}

// CheckAll checks every prerequisite in order.
func (c *Checker) CheckAll(ctx context.Context, prereqs []Prerequisite) []CheckResult {
	results := make([]CheckResult, len(prereqs))
	for i, prereq := range prereqs {
		results[i] = c.Check(ctx, prereq)
	}
	return results
}

// ValidateRequired returns an error listing every missing required tool.
func ValidateRequired(results []CheckResult) error {
	var missing []string
	for _, r := range results {
		if r.Found || !r.Prerequisite.Required {
			continue
		}
		missing = append(missing, fmt.Sprintf("  - %s (%s)\n    Install: %s",
			r.Prerequisite.Name, r.Prerequisite.Description, r.Prerequisite.InstallURL))
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required tools:\n%s", strings.Join(missing, "\n"))
	}
	return nil
}

func (c *Checker) version(ctx context.Context, prereq Prerequisite) string {
	output, err := c.executor.Output(ctx, "", prereq.Name, prereq.VersionArgs...)
	if err != nil {
		return ""
	}
	first, _, _ := strings.Cut(string(output), "\n")
	version := strings.TrimSpace(first)
	// Limit length to avoid overly long version strings
	if len(version) > 100 {
		version = version[:100] + "..."
	}
	return version
}

// FormatCheckResults renders results for `codestate doctor`.
func FormatCheckResults(results []CheckResult) string {
	var sb strings.Builder

	sb.WriteString("Prerequisites:\n")
	for _, r := range results {
		status := "✓"
		if !r.Found {
			if r.Prerequisite.Required {
				status = "✗"
			} else {
				status = "○"
			}
		}

		fmt.Fprintf(&sb, "  %s %s", status, r.Prerequisite.Name)
		switch {
		case r.Found && r.Version != "":
			fmt.Fprintf(&sb, " (%s)", r.Version)
		case !r.Found && r.Prerequisite.Required:
			sb.WriteString(" [REQUIRED]")
		case !r.Found:
			sb.WriteString(" [optional]")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
