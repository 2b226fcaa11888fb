package runner

import (
	"context"

	"github.com/codestate/codestate-core/model"
	"github.com/codestate/codestate-core/store"
)

// Opener opens files in an editor. *editor.Opener satisfies it.
type Opener interface {
	OpenFiles(ctx context.Context, root string, files []model.FileState) error
}

// Launcher pairs an editor with a Runner to perform resume side effects.
type Launcher struct {
	Opener
	*Runner
}

var _ store.Launcher = (*Launcher)(nil)

// NewLauncher creates a Launcher.
func NewLauncher(o Opener, r *Runner) *Launcher {
	return &Launcher{Opener: o, Runner: r}
}
