// Package model holds the records the resume subsystem reads and reconciles.
// JSON field names follow the UI wire format.
package model

import "time"

// Session is a saved working context tied to a project directory.
type Session struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	ProjectRoot         string            `json:"projectRoot"`
	Tags                []string          `json:"tags"`
	Notes               *string           `json:"notes,omitempty"`
	Files               []FileState       `json:"files"`
	Git                 GitFingerprint    `json:"git"`
	Extensions          map[string]any    `json:"extensions,omitempty"`
	TerminalCommands    []TerminalCommand `json:"terminalCommands,omitempty"`
	TerminalCollections []string          `json:"terminalCollections"`
	Scripts             []string          `json:"scripts"`
	CreatedAt           time.Time         `json:"createdAt"`
	UpdatedAt           time.Time         `json:"updatedAt"`
}

// GitFingerprint is a value snapshot of working tree state.
type GitFingerprint struct {
	Branch  string  `json:"branch"`
	Commit  string  `json:"commit"`
	IsDirty bool    `json:"isDirty"`
	StashID *string `json:"stashId"`
}

// FileState records one open editor buffer.
type FileState struct {
	Path     string `json:"path"`
	Cursor   Cursor `json:"cursor"`
	Scroll   Scroll `json:"scroll"`
	IsActive bool   `json:"isActive"`
	Position int    `json:"position"`
}

// Cursor is a zero-based line/column pair.
type Cursor struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Scroll is the visible viewport offset.
type Scroll struct {
	Top  int `json:"top"`
	Left int `json:"left"`
}

// TerminalCommand groups commands that ran in one terminal at capture time.
type TerminalCommand struct {
	TerminalID   int             `json:"terminalId"`
	TerminalName string          `json:"terminalName"`
	Commands     []ScriptCommand `json:"commands"`
}

// SessionFilter narrows ListSessions.
type SessionFilter struct {
	Tags   []string
	Search string
}

// Matches reports whether s passes the filter. All tags must be present and
// Search must occur in the name or notes.
func (f SessionFilter) Matches(s *Session) bool {
	for _, tag := range f.Tags {
		if !contains(s.Tags, tag) {
			return false
		}
	}
	if f.Search == "" {
		return true
	}
	if containsFold(s.Name, f.Search) {
		return true
	}
	return s.Notes != nil && containsFold(*s.Notes, f.Search)
}

// SessionUpdate is a partial update. Nil fields are left unchanged.
type SessionUpdate struct {
	Name                *string           `json:"name,omitempty"`
	Notes               *string           `json:"notes,omitempty"`
	Tags                []string          `json:"tags,omitempty"`
	Files               []FileState       `json:"files,omitempty"`
	Git                 *GitFingerprint   `json:"git,omitempty"`
	Extensions          map[string]any    `json:"extensions,omitempty"`
	TerminalCommands    []TerminalCommand `json:"terminalCommands,omitempty"`
	TerminalCollections []string          `json:"terminalCollections,omitempty"`
	Scripts             []string          `json:"scripts,omitempty"`
}

// Apply copies the set fields of u onto s.
func (u SessionUpdate) Apply(s *Session) {
	if u.Name != nil {
		s.Name = *u.Name
	}
	if u.Notes != nil {
		s.Notes = u.Notes
	}
	if u.Tags != nil {
		s.Tags = u.Tags
	}
	if u.Files != nil {
		s.Files = u.Files
	}
	if u.Git != nil {
		s.Git = *u.Git
	}
	if u.Extensions != nil {
		s.Extensions = u.Extensions
	}
	if u.TerminalCommands != nil {
		s.TerminalCommands = u.TerminalCommands
	}
	if u.TerminalCollections != nil {
		s.TerminalCollections = u.TerminalCollections
	}
	if u.Scripts != nil {
		s.Scripts = u.Scripts
	}
}
