// Package transport carries protocol messages between the UI and the router,
// either as newline-delimited JSON on a stream or over a WebSocket.
package transport

import (
	"context"

	"github.com/codestate/codestate-core/failure"
	"github.com/codestate/codestate-core/protocol"
	"github.com/codestate/codestate-core/router"
)

// TypeParseError names the response sent for a frame that is not a request.
const TypeParseError = "codestate.error"

// Dispatcher routes a decoded request. *router.Router satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *protocol.Request, emit router.Emitter)
}

func parseError(err error) *protocol.Response {
	return &protocol.Response{
		Type:   TypeParseError,
		Status: protocol.StatusError,
		Payload: protocol.ErrorPayload{
			Error: failure.Wrap(failure.InvalidRequest, err, "Parse error").Error(),
			Kind:  failure.InvalidRequest,
		},
	}
}
