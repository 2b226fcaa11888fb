package handlers

import (
	"context"

	"github.com/codestate/codestate-core/logger"
	"github.com/codestate/codestate-core/prompt"
	"github.com/codestate/codestate-core/protocol"
	"github.com/codestate/codestate-core/router"
)

// UI acknowledges the UI handshake.
type UI struct{}

func (h *UI) Name() string { return "ui" }

func (h *UI) Types() []string { return []string{protocol.TypeUIReady} }

func (h *UI) Handle(_ context.Context, req *protocol.Request, emit router.Emitter) {
	logger.WithComponent("handlers").Debug("UI ready")
	emit(protocol.Notification(protocol.TypeUIReadyAck, req.ID, map[string]string{
		"message": "UI ready acknowledged",
	}))
}

// GitPrompt routes the UI's answers to reconciliation prompts back to the
// waiting resume. A reply carries the id of the request it answers.
type GitPrompt struct {
	broker *prompt.Broker
}

func (h *GitPrompt) Name() string { return "git-prompt" }

func (h *GitPrompt) Types() []string {
	return []string{protocol.TypeGitDecisionReply, protocol.TypeGitMessageReply}
}

func (h *GitPrompt) Handle(ctx context.Context, req *protocol.Request, emit router.Emitter) {
	if err := h.broker.Deliver(ctx, req.ID, req.Payload); err != nil {
		emit(protocol.Failure(req, err))
	}
}
