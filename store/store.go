// Package store is the persistence gateway for sessions, scripts and
// terminal collections.
//
// The resume subsystem only depends on the interfaces declared here.
// FileStore is the JSON-on-disk implementation used by the codestate binary.
package store

import (
	"context"

	"github.com/codestate/codestate-core/model"
)

// Sessions stores saved sessions. Lookups accept an id or an exact name.
type Sessions interface {
	ListSessions(ctx context.Context, filter model.SessionFilter) ([]model.Session, error)
	GetSession(ctx context.Context, idOrName string) (*model.Session, error)
	SaveSession(ctx context.Context, s model.Session) (*model.Session, error)
	UpdateSession(ctx context.Context, idOrName string, u model.SessionUpdate) (*model.Session, error)
	DeleteSession(ctx context.Context, idOrName string) error

	// ResumeSession opens the session's files and launches its scripts and
	// terminal collections. It does not touch version control.
	ResumeSession(ctx context.Context, id string) (*model.Session, error)
}

// Scripts stores scripts.
type Scripts interface {
	GetScripts(ctx context.Context, filter model.ScriptFilter) ([]model.Script, error)
	GetScript(ctx context.Context, id string) (*model.Script, error)
	CreateScript(ctx context.Context, s model.Script) (*model.Script, error)
	UpdateScript(ctx context.Context, s model.Script) error
	DeleteScripts(ctx context.Context, ids ...string) error
	ResumeScript(ctx context.Context, id string) error
}

// Collections stores terminal collections. GetTerminalCollections does not
// filter; callers narrow the result themselves.
type Collections interface {
	GetTerminalCollections(ctx context.Context) ([]model.TerminalCollection, error)
	GetTerminalCollection(ctx context.Context, id string) (*model.TerminalCollection, error)
	CreateTerminalCollection(ctx context.Context, tc model.TerminalCollection) (*model.TerminalCollection, error)
	UpdateTerminalCollection(ctx context.Context, tc model.TerminalCollection) error
	DeleteTerminalCollection(ctx context.Context, id string) error
	ExecuteTerminalCollection(ctx context.Context, id string) error
}

// Gateway is the full persistence contract.
type Gateway interface {
	Sessions
	Scripts
	Collections
}

// Launcher performs the side effects of resuming: opening files in the
// editor and running scripts.
type Launcher interface {
	OpenFiles(ctx context.Context, root string, files []model.FileState) error
	RunScript(ctx context.Context, s model.Script) error
}

// NopLauncher does nothing. Used when no editor or terminal is available.
type NopLauncher struct{}

func (NopLauncher) OpenFiles(context.Context, string, []model.FileState) error { return nil }
func (NopLauncher) RunScript(context.Context, model.Script) error              { return nil }
