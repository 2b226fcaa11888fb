// Package prompt supplies the decision and commit-message callbacks the
// reconciler suspends on.
//
// Terminal asks on the controlling terminal, Broker asks the connected UI over
// the message protocol, and Fixed answers without asking.
package prompt

import (
	"context"

	"github.com/codestate/codestate-core/reconcile"
)

// Fixed returns canned answers. A nil Message dismisses the message prompt.
type Fixed struct {
	Decision reconcile.Decision
	Message  *string
}

// Prompts returns the reconciler callbacks.
func (f Fixed) Prompts() reconcile.Prompts {
	return reconcile.Prompts{
		Decide: func(context.Context, string) (reconcile.Decision, error) {
			return f.Decision, nil
		},
		PromptMessage: func(context.Context, string) (*string, error) {
			return f.Message, nil
		},
	}
}

// CommitWith answers "commit" with message.
func CommitWith(message string) Fixed {
	return Fixed{Decision: reconcile.Commit, Message: &message}
}

// Refuse answers "cancel".
func Refuse() Fixed {
	return Fixed{Decision: reconcile.Cancel}
}
