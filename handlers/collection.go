package handlers

import (
	"context"
	"encoding/json"

	"github.com/codestate/codestate-core/failure"
	"github.com/codestate/codestate-core/model"
	"github.com/codestate/codestate-core/protocol"
	"github.com/codestate/codestate-core/router"
)

// TerminalCollection serves terminal collection CRUD and resume.
type TerminalCollection struct {
	d Deps
}

func (h *TerminalCollection) Name() string { return "terminal-collection" }

func (h *TerminalCollection) Types() []string {
	return []string{
		protocol.TypeTerminalCollectionsInit,
		protocol.TypeTerminalCollectionCreate,
		protocol.TypeTerminalCollectionUpdate,
		protocol.TypeTerminalCollectionDelete,
		protocol.TypeTerminalCollectionResume,
	}
}

type collectionPayload struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"terminalCollectionData"`
}

var (
	errNoCollectionData = failure.New(failure.InvalidRequest, "No terminal collection data provided")
	errNoCollectionID   = failure.New(failure.InvalidRequest, "No terminal collection ID provided")
)

func (h *TerminalCollection) Handle(ctx context.Context, req *protocol.Request, emit router.Emitter) {
	var p collectionPayload
	if !decode(req, &p, emit) {
		return
	}
	hasData := len(p.Data) > 0 && string(p.Data) != "null"

	switch req.Type {
	case protocol.TypeTerminalCollectionsInit:
		collections, err := h.d.Store.GetTerminalCollections(ctx)
		if collections == nil {
			collections = []model.TerminalCollection{}
		}
		reply(req, emit, map[string]any{"terminalCollections": collections}, err)

	case protocol.TypeTerminalCollectionCreate:
		if !hasData {
			reply(req, emit, nil, errNoCollectionData)
			return
		}
		var tc model.TerminalCollection
		if err := json.Unmarshal(p.Data, &tc); err != nil {
			reply(req, emit, nil, failure.Wrap(failure.InvalidRequest, err, "Invalid terminal collection data"))
			return
		}
		if len(tc.Lifecycle) == 0 {
			tc.Lifecycle = model.Lifecycles{model.LifecycleOpen}
		}
		if tc.RootPath == "" {
			tc.RootPath = h.d.currentRoot()
		}
		tc.Scripts = nil
		created, err := h.d.Store.CreateTerminalCollection(ctx, tc)
		if err != nil {
			reply(req, emit, nil, err)
			return
		}
		reply(req, emit, ok(created.ID), nil)

	case protocol.TypeTerminalCollectionUpdate:
		if p.ID == "" {
			reply(req, emit, nil, errNoCollectionID)
			return
		}
		if !hasData {
			reply(req, emit, nil, errNoCollectionData)
			return
		}
		current, err := h.d.Store.GetTerminalCollection(ctx, p.ID)
		if err != nil {
			reply(req, emit, nil, err)
			return
		}
		if err := mergeJSON(current, p.Data); err != nil {
			reply(req, emit, nil, failure.Wrap(failure.InvalidRequest, err, "Invalid terminal collection data"))
			return
		}
		current.ID = p.ID
		current.Scripts = nil
		reply(req, emit, ok(p.ID), h.d.Store.UpdateTerminalCollection(ctx, *current))

	case protocol.TypeTerminalCollectionDelete:
		if p.ID == "" {
			reply(req, emit, nil, errNoCollectionID)
			return
		}
		reply(req, emit, ok(p.ID), h.d.Store.DeleteTerminalCollection(ctx, p.ID))

	case protocol.TypeTerminalCollectionResume:
		if p.ID == "" {
			reply(req, emit, nil, errNoCollectionID)
			return
		}
		reply(req, emit, ok(p.ID), h.d.Store.ExecuteTerminalCollection(ctx, p.ID))
	}
}
