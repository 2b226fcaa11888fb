package model

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/codestate/codestate-core/paths"
)

// Lifecycle controls when a script or terminal collection runs automatically.
type Lifecycle string

const (
	LifecycleOpen   Lifecycle = "open"
	LifecycleResume Lifecycle = "resume"
	LifecycleNone   Lifecycle = "none"
)

// ParseLifecycle accepts both the short form ("open") and the
// trigger form ("on-open").
func ParseLifecycle(s string) (Lifecycle, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "on-") {
	case "open":
		return LifecycleOpen, nil
	case "resume":
		return LifecycleResume, nil
	case "none":
		return LifecycleNone, nil
	default:
		return "", fmt.Errorf("unknown lifecycle %q", s)
	}
}

func (l *Lifecycle) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseLifecycle(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

func (l *Lifecycle) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseLifecycle(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Lifecycles is a set of lifecycle tags.
type Lifecycles []Lifecycle

// Has reports whether l is present.
func (ls Lifecycles) Has(l Lifecycle) bool {
	return slices.Contains(ls, l)
}

// ExecutionMode selects how a script's commands are laid out in terminals.
type ExecutionMode string

const (
	SameTerminal ExecutionMode = "same-terminal"
	NewTerminals ExecutionMode = "new-terminals"
)

// ScriptCommand is one step of a script.
type ScriptCommand struct {
	Command  string `json:"command" yaml:"command"`
	Name     string `json:"name" yaml:"name"`
	Priority int    `json:"priority" yaml:"priority"`
}

// Script is a named, ordered set of shell commands scoped to a project.
type Script struct {
	ID                          string          `json:"id" yaml:"id,omitempty"`
	Name                        string          `json:"name" yaml:"name"`
	RootPath                    string          `json:"rootPath" yaml:"root_path,omitempty"`
	Commands                    []ScriptCommand `json:"commands" yaml:"commands"`
	Lifecycle                   Lifecycles      `json:"lifecycle" yaml:"lifecycle"`
	ExecutionMode               ExecutionMode   `json:"executionMode" yaml:"execution_mode"`
	CloseTerminalAfterExecution bool            `json:"closeTerminalAfterExecution" yaml:"close_terminal_after_execution"`
}

// OrderedCommands returns the commands sorted by ascending priority.
// Commands with equal priority keep their declared order.
func (s *Script) OrderedCommands() []ScriptCommand {
	out := make([]ScriptCommand, len(s.Commands))
	copy(out, s.Commands)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}

// ScriptFilter narrows GetScripts. Empty fields match everything.
type ScriptFilter struct {
	RootPath  string
	Lifecycle Lifecycle
}

// Matches reports whether s passes the filter.
func (f ScriptFilter) Matches(s *Script) bool {
	if f.RootPath != "" && !paths.SamePath(s.RootPath, f.RootPath) {
		return false
	}
	if f.Lifecycle != "" && !s.Lifecycle.Has(f.Lifecycle) {
		return false
	}
	return true
}

// TerminalCollection groups scripts that are launched together.
type TerminalCollection struct {
	ID                          string     `json:"id" yaml:"id,omitempty"`
	Name                        string     `json:"name" yaml:"name"`
	RootPath                    string     `json:"rootPath" yaml:"root_path,omitempty"`
	ScriptReferences            []string   `json:"scriptReferences" yaml:"scripts"`
	Lifecycle                   Lifecycles `json:"lifecycle" yaml:"lifecycle"`
	CloseTerminalAfterExecution bool       `json:"closeTerminalAfterExecution" yaml:"close_terminal_after_execution"`

	// Scripts is a read-only view resolved by the store. It may be empty even
	// when ScriptReferences is not.
	Scripts []Script `json:"scripts,omitempty" yaml:"-"`
}

// RunsOn reports whether the collection belongs to root and carries lifecycle l.
// Roots are compared with paths.SamePath.
func (tc *TerminalCollection) RunsOn(root string, l Lifecycle) bool {
	return paths.SamePath(tc.RootPath, root) && tc.Lifecycle.Has(l)
}

func contains(list []string, v string) bool {
	return slices.Contains(list, v)
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
