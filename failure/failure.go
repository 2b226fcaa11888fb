// Package failure defines the error kinds shared by the resume subsystem.
//
// Every component returns errors as values. A *failure.Error carries a Kind
// that survives wrapping, so callers can branch on it with errors.Is against
// the sentinel values below or with KindOf.
package failure

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind string

const (
	VcsUnavailable       Kind = "VcsUnavailable"
	EmptyCommitMessage   Kind = "EmptyCommitMessage"
	UserCancelled        Kind = "UserCancelled"
	ReconciliationFailed Kind = "ReconciliationFailed"
	BranchNotFound       Kind = "BranchNotFound"
	SessionNotFound      Kind = "SessionNotFound"
	ScriptNotFound       Kind = "ScriptNotFound"
	CollectionNotFound   Kind = "CollectionNotFound"
	UnknownMessageType   Kind = "UnknownMessageType"
	UpstreamFailure      Kind = "UpstreamFailure"
	ResumeInProgress     Kind = "ResumeInProgress"
	InvalidRequest       Kind = "InvalidRequest"
	NoWorkspace          Kind = "NoWorkspace"
)

// Sentinels for errors.Is. Only the Kind is compared.
var (
	ErrVcsUnavailable       = &Error{Kind: VcsUnavailable}
	ErrEmptyCommitMessage   = &Error{Kind: EmptyCommitMessage}
	ErrUserCancelled        = &Error{Kind: UserCancelled}
	ErrReconciliationFailed = &Error{Kind: ReconciliationFailed}
	ErrBranchNotFound       = &Error{Kind: BranchNotFound}
	ErrSessionNotFound      = &Error{Kind: SessionNotFound}
	ErrScriptNotFound       = &Error{Kind: ScriptNotFound}
	ErrCollectionNotFound   = &Error{Kind: CollectionNotFound}
	ErrUnknownMessageType   = &Error{Kind: UnknownMessageType}
	ErrUpstreamFailure      = &Error{Kind: UpstreamFailure}
	ErrResumeInProgress     = &Error{Kind: ResumeInProgress}
	ErrInvalidRequest       = &Error{Kind: InvalidRequest}
	ErrNoWorkspace          = &Error{Kind: NoWorkspace}
)

// Error is a classified error value.
type Error struct {
	Kind    Kind
	Message string // Human-readable, surfaced verbatim to the UI
	Err     error  // Underlying cause, if any
}

// New returns an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind. The message defaults to err's text.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	msg := ""
	if format != "" {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Upstream wraps an error returned by an external collaborator. An error that
// already carries a Kind is returned as is so its classification survives.
func Upstream(err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	return &Error{Kind: UpstreamFailure, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain.
// Unclassified errors report UpstreamFailure.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return UpstreamFailure
}
