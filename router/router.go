// Package router dispatches protocol requests to the handler that claims
// their type.
package router

import (
	"context"
	"fmt"
	"sync"

	"github.com/codestate/codestate-core/failure"
	"github.com/codestate/codestate-core/logger"
	"github.com/codestate/codestate-core/protocol"
)

// Emitter delivers a message to the UI that sent the request.
type Emitter func(*protocol.Response)

// Handler serves a fixed set of message types. Handle emits its own
// response, possibly more than one message, possibly after it returns.
type Handler interface {
	Name() string
	Types() []string
	Handle(ctx context.Context, req *protocol.Request, emit Emitter)
}

// Router maps each message type to exactly one handler.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	order    []Handler
	observe  func(msgType string, handled bool)
}

// Option configures a Router.
type Option func(*Router)

// WithObserver is called once per dispatched request.
func WithObserver(fn func(msgType string, handled bool)) Option {
	return func(r *Router) {
		r.observe = fn
	}
}

// New creates an empty Router.
func New(opts ...Option) *Router {
	r := &Router{handlers: make(map[string]Handler)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds h. It fails without registering anything if any of h's
// types is already claimed.
func (r *Router) Register(h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range h.Types() {
		if prev, ok := r.handlers[t]; ok {
			return fmt.Errorf("message type %q claimed by both %s and %s", t, prev.Name(), h.Name())
		}
	}
	for _, t := range h.Types() {
		r.handlers[t] = h
	}
	r.order = append(r.order, h)
	return nil
}

// MustRegister registers handlers in order and panics on a duplicate claim.
func (r *Router) MustRegister(hs ...Handler) {
	for _, h := range hs {
		if err := r.Register(h); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the handler claiming msgType.
func (r *Router) Lookup(msgType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[msgType]
	return h, ok
}

// Handlers returns the registered handlers in registration order.
func (r *Router) Handlers() []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Handler(nil), r.order...)
}

// Dispatch routes req to its handler. An unclaimed type, or a panic during
// the Handle call, is answered with an error response carrying req's id.
func (r *Router) Dispatch(ctx context.Context, req *protocol.Request, emit Emitter) {
	log := logger.WithComponent("router").With("type", req.Type, "id", req.ID)

	h, ok := r.Lookup(req.Type)
	if r.observe != nil {
		r.observe(req.Type, ok)
	}
	if !ok {
		log.Warn("unknown message type")
		emit(protocol.Failure(req, failure.New(failure.UnknownMessageType, "Unknown message type: %s", req.Type)))
		return
	}

	defer func() {
		if p := recover(); p != nil {
			log.Error("handler panicked", "handler", h.Name(), "panic", p)
			emit(protocol.Failure(req, failure.New(failure.UpstreamFailure, "%v", p)))
		}
	}()

	log.Debug("dispatching", "handler", h.Name())
	h.Handle(ctx, req, emit)
}
