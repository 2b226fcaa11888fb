package handlers

import (
	"context"
	"encoding/json"

	"github.com/codestate/codestate-core/failure"
	"github.com/codestate/codestate-core/model"
	"github.com/codestate/codestate-core/protocol"
	"github.com/codestate/codestate-core/router"
)

// Script serves script CRUD and resume.
type Script struct {
	d Deps
}

func (h *Script) Name() string { return "script" }

func (h *Script) Types() []string {
	return []string{
		protocol.TypeScriptsInit,
		protocol.TypeScriptCreate,
		protocol.TypeScriptUpdate,
		protocol.TypeScriptDelete,
		protocol.TypeScriptResume,
	}
}

type scriptPayload struct {
	ID         string          `json:"id"`
	IDs        []string        `json:"ids"`
	ScriptData json.RawMessage `json:"scriptData"`
}

func (h *Script) Handle(ctx context.Context, req *protocol.Request, emit router.Emitter) {
	var p scriptPayload
	if !decode(req, &p, emit) {
		return
	}

	switch req.Type {
	case protocol.TypeScriptsInit:
		scripts, err := h.d.Store.GetScripts(ctx, model.ScriptFilter{})
		if scripts == nil {
			scripts = []model.Script{}
		}
		reply(req, emit, map[string]any{"scripts": scripts}, err)

	case protocol.TypeScriptCreate:
		if len(p.ScriptData) == 0 || string(p.ScriptData) == "null" {
			reply(req, emit, nil, failure.New(failure.InvalidRequest, "No script data provided"))
			return
		}
		var sc model.Script
		if err := json.Unmarshal(p.ScriptData, &sc); err != nil {
			reply(req, emit, nil, failure.Wrap(failure.InvalidRequest, err, "Invalid script data"))
			return
		}
		if sc.RootPath == "" {
			sc.RootPath = h.d.currentRoot()
		}
		created, err := h.d.Store.CreateScript(ctx, sc)
		if err != nil {
			reply(req, emit, nil, err)
			return
		}
		reply(req, emit, ok(created.ID), nil)

	case protocol.TypeScriptUpdate:
		if p.ID == "" {
			reply(req, emit, nil, failure.New(failure.InvalidRequest, "No script ID provided"))
			return
		}
		current, err := h.d.Store.GetScript(ctx, p.ID)
		if err != nil {
			reply(req, emit, nil, err)
			return
		}
		if err := mergeJSON(current, p.ScriptData); err != nil {
			reply(req, emit, nil, failure.Wrap(failure.InvalidRequest, err, "Invalid script data"))
			return
		}
		current.ID = p.ID
		reply(req, emit, ok(p.ID), h.d.Store.UpdateScript(ctx, *current))

	case protocol.TypeScriptDelete:
		ids := p.IDs
		if p.ID != "" {
			ids = append([]string{p.ID}, ids...)
		}
		if len(ids) == 0 {
			reply(req, emit, nil, failure.New(failure.InvalidRequest, "No script ID provided"))
			return
		}
		reply(req, emit, map[string]any{"success": true, "ids": ids}, h.d.Store.DeleteScripts(ctx, ids...))

	case protocol.TypeScriptResume:
		if p.ID == "" {
			reply(req, emit, nil, failure.New(failure.InvalidRequest, "No script ID provided"))
			return
		}
		reply(req, emit, ok(p.ID), h.d.Store.ResumeScript(ctx, p.ID))
	}
}

// mergeJSON overlays the fields present in patch onto dst.
func mergeJSON(dst any, patch json.RawMessage) error {
	if len(patch) == 0 || string(patch) == "null" {
		return nil
	}
	return json.Unmarshal(patch, dst)
}
