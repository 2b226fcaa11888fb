package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/codestate/codestate-core/reconcile"
)

// Terminal prompts on a terminal with huh forms. Aborting either form
// (esc or ctrl+c) cancels.
type Terminal struct {
	in         io.Reader
	out        io.Writer
	accessible bool
}

// NewTerminal creates a Terminal reading from in and drawing to out. Set
// accessible for plain line-based prompts when out is not a TTY.
func NewTerminal(in io.Reader, out io.Writer, accessible bool) *Terminal {
	return &Terminal{in: in, out: out, accessible: accessible}
}

func (t *Terminal) run(ctx context.Context, field huh.Field) error {
	form := huh.NewForm(huh.NewGroup(field)).
		WithInput(t.in).
		WithOutput(t.out).
		WithAccessible(t.accessible)
	return form.RunWithContext(ctx)
}

// Decide asks whether to commit the uncommitted changes at path.
func (t *Terminal) Decide(ctx context.Context, path string) (reconcile.Decision, error) {
	choice := string(reconcile.Cancel)
	sel := huh.NewSelect[string]().
		Title("Uncommitted changes").
		Description(fmt.Sprintf("%s has uncommitted changes. Commit them before resuming?", path)).
		Options(
			huh.NewOption("Commit changes", string(reconcile.Commit)),
			huh.NewOption("Cancel", string(reconcile.Cancel)),
		).
		Value(&choice)

	if err := t.run(ctx, sel); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return reconcile.Cancel, nil
		}
		return "", err
	}
	return reconcile.Decision(choice), nil
}

// PromptMessage asks for a commit message. An aborted form returns nil.
func (t *Terminal) PromptMessage(ctx context.Context, path string) (*string, error) {
	var msg string
	input := huh.NewInput().
		Title("Commit message").
		Placeholder("wip: save work before resuming").
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("commit message is required")
			}
			return nil
		}).
		Value(&msg)

	if err := t.run(ctx, input); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// Prompts returns the reconciler callbacks.
func (t *Terminal) Prompts() reconcile.Prompts {
	return reconcile.Prompts{Decide: t.Decide, PromptMessage: t.PromptMessage}
}
