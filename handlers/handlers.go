// Package handlers implements the router handlers behind the UI protocol.
// Each handler claims a fixed set of message types and answers every
// request with exactly one response, except prompt replies which are
// consumed silently.
package handlers

import (
	"context"

	"github.com/codestate/codestate-core/collector"
	"github.com/codestate/codestate-core/config"
	"github.com/codestate/codestate-core/model"
	"github.com/codestate/codestate-core/prompt"
	"github.com/codestate/codestate-core/protocol"
	"github.com/codestate/codestate-core/reconcile"
	"github.com/codestate/codestate-core/router"
	"github.com/codestate/codestate-core/store"
)

// Resumer restores a session. *resume.Orchestrator satisfies it.
type Resumer interface {
	Resume(ctx context.Context, id string, prompts reconcile.Prompts) (*model.Session, error)
}

// Deps are the collaborators shared by the handlers.
type Deps struct {
	Store       store.Gateway
	Resumer     Resumer
	Collector   *collector.Collector
	Broker      *prompt.Broker
	Config      *config.Config
	CurrentRoot func() string
}

func (d Deps) currentRoot() string {
	if d.CurrentRoot == nil {
		return ""
	}
	return d.CurrentRoot()
}

// prompts asks the UI behind emit. Without a broker no one can answer, so a
// dirty tree cancels.
func (d Deps) prompts(emit router.Emitter) reconcile.Prompts {
	if d.Broker == nil {
		return reconcile.Prompts{}
	}
	return d.Broker.Prompts(emit)
}

// All returns every handler in registration order.
func All(d Deps) []router.Handler {
	return []router.Handler{
		&Session{d: d},
		&Script{d: d},
		&TerminalCollection{d: d},
		&Config{cfg: d.Config},
		&UI{},
		&GitPrompt{broker: d.Broker},
	}
}

// decode unmarshals the payload into v, answering req with an error when
// it is malformed.
func decode(req *protocol.Request, v any, emit router.Emitter) bool {
	if err := protocol.Decode(req, v); err != nil {
		emit(protocol.Failure(req, err))
		return false
	}
	return true
}

// reply answers req with payload, or with err when it is not nil.
func reply(req *protocol.Request, emit router.Emitter, payload any, err error) {
	if err != nil {
		emit(protocol.Failure(req, err))
		return
	}
	emit(protocol.Success(req, payload))
}

// done is the acknowledgement payload for mutations.
type done struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
}

func ok(id string) done {
	return done{Success: true, ID: id}
}
