package handlers

import (
	"context"

	"github.com/codestate/codestate-core/export"
	"github.com/codestate/codestate-core/failure"
	"github.com/codestate/codestate-core/logger"
	"github.com/codestate/codestate-core/model"
	"github.com/codestate/codestate-core/protocol"
	"github.com/codestate/codestate-core/router"
)

// Session serves session listing, CRUD, resume and export.
type Session struct {
	d Deps
}

func (h *Session) Name() string { return "session" }

func (h *Session) Types() []string {
	return []string{
		protocol.TypeSessionsInit,
		protocol.TypeSessionCreateInit,
		protocol.TypeSessionCreate,
		protocol.TypeSessionUpdate,
		protocol.TypeSessionDelete,
		protocol.TypeSessionResume,
		protocol.TypeSessionExport,
	}
}

type sessionIDPayload struct {
	ID string `json:"id"`
}

type createInitPayload struct {
	Files []model.FileState `json:"files"`
}

type createPayload struct {
	SessionData *model.Session `json:"sessionData"`
}

type updatePayload struct {
	ID      string              `json:"id"`
	Updates model.SessionUpdate `json:"updates"`
}

type exportPayload struct {
	ID     string `json:"id"`
	Path   string `json:"path"`
	Format string `json:"format"`
}

func (h *Session) Handle(ctx context.Context, req *protocol.Request, emit router.Emitter) {
	switch req.Type {
	case protocol.TypeSessionsInit:
		sessions, err := h.d.Store.ListSessions(ctx, model.SessionFilter{})
		if sessions == nil {
			sessions = []model.Session{}
		}
		reply(req, emit, map[string]any{
			"sessions":           sessions,
			"currentProjectRoot": h.d.currentRoot(),
		}, err)

	case protocol.TypeSessionCreateInit:
		var p createInitPayload
		if !decode(req, &p, emit) {
			return
		}
		// A dirty tree is committed through the UI before it is captured.
		draft, err := h.d.Collector.Collect(ctx, h.d.currentRoot(), p.Files, h.d.prompts(emit))
		reply(req, emit, map[string]any{"sessionData": draft}, err)

	case protocol.TypeSessionCreate:
		var p createPayload
		if !decode(req, &p, emit) {
			return
		}
		if p.SessionData == nil {
			reply(req, emit, nil, failure.New(failure.InvalidRequest, "No session data provided"))
			return
		}
		saved, err := h.d.Store.SaveSession(ctx, *p.SessionData)
		if err != nil {
			reply(req, emit, nil, err)
			return
		}
		reply(req, emit, ok(saved.ID), nil)

	case protocol.TypeSessionUpdate:
		var p updatePayload
		if !decode(req, &p, emit) {
			return
		}
		if p.ID == "" {
			reply(req, emit, nil, failure.New(failure.InvalidRequest, "Session ID is required"))
			return
		}
		updated, err := h.d.Store.UpdateSession(ctx, p.ID, p.Updates)
		reply(req, emit, map[string]any{"session": updated}, err)

	case protocol.TypeSessionDelete:
		var p sessionIDPayload
		if !decode(req, &p, emit) {
			return
		}
		if p.ID == "" {
			reply(req, emit, nil, failure.New(failure.InvalidRequest, "Session ID is required"))
			return
		}
		reply(req, emit, ok(p.ID), h.d.Store.DeleteSession(ctx, p.ID))

	case protocol.TypeSessionResume:
		var p sessionIDPayload
		if !decode(req, &p, emit) {
			return
		}
		h.resume(ctx, req, p.ID, emit)

	case protocol.TypeSessionExport:
		var p exportPayload
		if !decode(req, &p, emit) {
			return
		}
		h.export(ctx, req, p, emit)
	}
}

// resume asks the UI that sent req for any commit decision.
func (h *Session) resume(ctx context.Context, req *protocol.Request, id string, emit router.Emitter) {
	log := logger.WithComponent("handlers").With("session", id)

	sess, err := h.d.Resumer.Resume(ctx, id, h.d.prompts(emit))
	if err != nil {
		log.Info("resume failed", "kind", failure.KindOf(err), "error", err)
		reply(req, emit, nil, err)
		return
	}
	reply(req, emit, map[string]any{"session": sess}, nil)
}

func (h *Session) export(ctx context.Context, req *protocol.Request, p exportPayload, emit router.Emitter) {
	if p.ID == "" {
		reply(req, emit, nil, failure.New(failure.InvalidRequest, "Session ID is required"))
		return
	}
	sess, err := h.d.Store.GetSession(ctx, p.ID)
	if err != nil {
		reply(req, emit, nil, err)
		return
	}
	format := p.Format
	if format == "" && h.d.Config != nil {
		format = h.d.Config.GetExportFormat()
	}
	path, err := export.WriteSession(sess, p.Path, format)
	reply(req, emit, map[string]any{"success": true, "path": path}, err)
}
