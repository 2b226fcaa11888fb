// Package protocol defines the envelopes exchanged with the UI and the names
// of every message type.
//
// A request carries an opaque correlation id that the matching response
// repeats. Responses are named "<request type>.response" unless a handler
// emits a notification with its own name.
package protocol

import (
	"encoding/json"
	"errors"

	"github.com/codestate/codestate-core/failure"
)

// Status is the outcome recorded on a response.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Request is an incoming message.
type Request struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	ID      string          `json:"id"`
}

// Response is an outgoing message. Notifications use the same envelope.
type Response struct {
	Type    string `json:"type"`
	Status  Status `json:"status"`
	Payload any    `json:"payload,omitempty"`
	ID      string `json:"id"`
}

// ErrorPayload is the body of every error response.
type ErrorPayload struct {
	Error string       `json:"error"`
	Kind  failure.Kind `json:"kind,omitempty"`
}

// Message types. Handshake and init.
const (
	TypeUIReady                 = "codestate.ui.ready"
	TypeUIReadyAck              = "ui-ready-ack"
	TypeSessionsInit            = "codestate.sessions.init"
	TypeScriptsInit             = "codestate.scripts.init"
	TypeTerminalCollectionsInit = "codestate.tc.init"
	TypeConfigInit              = "codestate.config.init"
)

// Session operations.
const (
	TypeSessionCreateInit = "codestate.sessions.create.init"
	TypeSessionCreate     = "codestate.session.create"
	TypeSessionUpdate     = "codestate.session.update"
	TypeSessionDelete     = "codestate.session.delete"
	TypeSessionResume     = "codestate.session.resume"
	TypeSessionExport     = "codestate.session.export"
)

// Script operations.
const (
	TypeScriptCreate = "codestate.script.create"
	TypeScriptUpdate = "codestate.script.update"
	TypeScriptDelete = "codestate.script.delete"
	TypeScriptResume = "codestate.script.resume"
)

// Terminal collection operations.
const (
	TypeTerminalCollectionCreate = "codestate.terminal-collection.create"
	TypeTerminalCollectionUpdate = "codestate.terminal-collection.update"
	TypeTerminalCollectionDelete = "codestate.terminal-collection.delete"
	TypeTerminalCollectionResume = "codestate.terminal-collection.resume"
)

// Configuration.
const (
	TypeConfigUpdate = "codestate.config.update"
)

// Reconciliation prompts. The core sends a request notification with a fresh
// id and the UI answers with the matching reply carrying the same id.
const (
	TypeGitDecisionRequest = "codestate.git.decision.request"
	TypeGitDecisionReply   = "codestate.git.decision.reply"
	TypeGitMessageRequest  = "codestate.git.message.request"
	TypeGitMessageReply    = "codestate.git.message.reply"
)

// ResponseType returns the conventional response name for a request type.
func ResponseType(requestType string) string {
	return requestType + ".response"
}

// Success builds a success response to req.
func Success(req *Request, payload any) *Response {
	return &Response{
		Type:    ResponseType(req.Type),
		Status:  StatusSuccess,
		Payload: payload,
		ID:      req.ID,
	}
}

// Failure builds an error response to req. The message is surfaced
// verbatim; the kind is included when err carries one.
func Failure(req *Request, err error) *Response {
	payload := ErrorPayload{Error: err.Error()}
	var fe *failure.Error
	if errors.As(err, &fe) {
		payload.Kind = fe.Kind
	}
	return &Response{
		Type:    ResponseType(req.Type),
		Status:  StatusError,
		Payload: payload,
		ID:      req.ID,
	}
}

// Notification builds an unsolicited message of the given type.
func Notification(typ, id string, payload any) *Response {
	return &Response{Type: typ, Status: StatusSuccess, Payload: payload, ID: id}
}

// Decode unmarshals req.Payload into v. A missing payload leaves v untouched.
// Malformed JSON is an InvalidRequest.
func Decode(req *Request, v any) error {
	if len(req.Payload) == 0 || string(req.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(req.Payload, v); err != nil {
		return failure.Wrap(failure.InvalidRequest, err, "Invalid payload for %s", req.Type)
	}
	return nil
}
