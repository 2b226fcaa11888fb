package handlers

import (
	"context"
	"encoding/json"

	"github.com/codestate/codestate-core/config"
	"github.com/codestate/codestate-core/failure"
	"github.com/codestate/codestate-core/protocol"
	"github.com/codestate/codestate-core/router"
)

// Config serves reading and updating user settings.
type Config struct {
	cfg *config.Config
}

func (h *Config) Name() string { return "config" }

func (h *Config) Types() []string {
	return []string{protocol.TypeConfigInit, protocol.TypeConfigUpdate}
}

func (h *Config) Handle(_ context.Context, req *protocol.Request, emit router.Emitter) {
	switch req.Type {
	case protocol.TypeConfigInit:
		reply(req, emit, map[string]any{"config": h.cfg.Snapshot()}, nil)

	case protocol.TypeConfigUpdate:
		var p struct {
			Config json.RawMessage `json:"config"`
		}
		if !decode(req, &p, emit) {
			return
		}
		if len(p.Config) == 0 || string(p.Config) == "null" {
			reply(req, emit, nil, failure.New(failure.InvalidRequest, "Configuration data is required"))
			return
		}
		if err := h.cfg.Merge(p.Config); err != nil {
			reply(req, emit, nil, failure.Wrap(failure.InvalidRequest, err, "Failed to update configuration"))
			return
		}
		reply(req, emit, map[string]any{"config": h.cfg.Snapshot()}, nil)
	}
}
