package handlers

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codestate/codestate-core/collector"
	"github.com/codestate/codestate-core/config"
	"github.com/codestate/codestate-core/failure"
	"github.com/codestate/codestate-core/model"
	"github.com/codestate/codestate-core/prompt"
	"github.com/codestate/codestate-core/protocol"
	"github.com/codestate/codestate-core/reconcile"
	"github.com/codestate/codestate-core/resume"
	"github.com/codestate/codestate-core/router"
	"github.com/codestate/codestate-core/store"
	"github.com/codestate/codestate-core/vcs"
)

var ctx = context.Background()

type harness struct {
	r    *router.Router
	st   *store.FileStore
	gw   *vcs.FakeGateway
	cfg  *config.Config
	root string
	out  chan *protocol.Response
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "store.json"))
	require.NoError(t, err)
	cfg, err := config.LoadFrom(filepath.Join(dir, "config.json"))
	require.NoError(t, err)

	h := &harness{
		st:   st,
		gw:   &vcs.FakeGateway{Branch: "main", Commit: "abc", Branches: []string{"feature"}},
		cfg:  cfg,
		root: "/work/app",
		out:  make(chan *protocol.Response, 16),
	}
	rec := reconcile.New(h.gw, reconcile.WithBackoff(reconcile.Backoff{Attempts: 1, Initial: time.Millisecond}))
	current := func() string { return h.root }

	h.r = router.New()
	h.r.MustRegister(All(Deps{
		Store:       st,
		Resumer:     resume.New(st, rec, resume.WithCurrentRoot(current)),
		Collector:   collector.New(rec, "code"),
		Broker:      prompt.NewBroker(),
		Config:      cfg,
		CurrentRoot: current,
	})...)
	return h
}

func (h *harness) emit(r *protocol.Response) { h.out <- r }

// dispatch sends a request without waiting for its answer.
func (h *harness) dispatch(typ, id string, payload any) {
	var raw json.RawMessage
	if payload != nil {
		raw, _ = json.Marshal(payload)
	}
	go h.r.Dispatch(ctx, &protocol.Request{Type: typ, ID: id, Payload: raw}, h.emit)
}

func (h *harness) next(t *testing.T) *protocol.Response {
	t.Helper()
	select {
	case r := <-h.out:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("no response")
		return nil
	}
}

// call sends a request and decodes the payload of its answer.
func (h *harness) call(t *testing.T, typ string, payload any) (protocol.Status, map[string]any) {
	t.Helper()
	h.dispatch(typ, "req-1", payload)
	resp := h.next(t)
	require.Equal(t, "req-1", resp.ID)
	data, err := json.Marshal(resp.Payload)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return resp.Status, out
}

func (h *harness) saveSession(t *testing.T, s model.Session) string {
	t.Helper()
	saved, err := h.st.SaveSession(ctx, s)
	require.NoError(t, err)
	return saved.ID
}

func TestAll_RegistrationOrder(t *testing.T) {
	var names []string
	for _, hd := range All(Deps{}) {
		names = append(names, hd.Name())
	}
	assert.Equal(t, []string{"session", "script", "terminal-collection", "config", "ui", "git-prompt"}, names)
}

func TestUIReady(t *testing.T) {
	h := newHarness(t)
	h.dispatch(protocol.TypeUIReady, "hello", nil)
	resp := h.next(t)
	assert.Equal(t, protocol.TypeUIReadyAck, resp.Type)
	assert.Equal(t, "hello", resp.ID)
	assert.Equal(t, map[string]string{"message": "UI ready acknowledged"}, resp.Payload)
}

func TestSessionsInit(t *testing.T) {
	h := newHarness(t)
	status, out := h.call(t, protocol.TypeSessionsInit, nil)
	assert.Equal(t, protocol.StatusSuccess, status)
	assert.Equal(t, []any{}, out["sessions"])
	assert.Equal(t, "/work/app", out["currentProjectRoot"])

	h.saveSession(t, model.Session{Name: "one", ProjectRoot: "/work/app"})
	_, out = h.call(t, protocol.TypeSessionsInit, nil)
	assert.Len(t, out["sessions"], 1)
}

func TestSessionCreateInit(t *testing.T) {
	h := newHarness(t)

	status, out := h.call(t, protocol.TypeSessionCreateInit, map[string]any{
		"files": []model.FileState{{Path: "/work/app/main.go", IsActive: true}},
	})
	require.Equal(t, protocol.StatusSuccess, status)
	draft := out["sessionData"].(map[string]any)
	assert.Equal(t, "/work/app", draft["projectRoot"])
	assert.Equal(t, "main", draft["git"].(map[string]any)["branch"])
	assert.Equal(t, "main.go", draft["files"].([]any)[0].(map[string]any)["path"])
	assert.Empty(t, h.gw.Mutations())

	h.root = ""
	status, out = h.call(t, protocol.TypeSessionCreateInit, nil)
	assert.Equal(t, protocol.StatusError, status)
	assert.Equal(t, "No workspace folder found", out["error"])
	assert.Equal(t, string(failure.NoWorkspace), out["kind"])
}

func TestSessionCreateInit_DirtyTreeCommitsThroughUI(t *testing.T) {
	h := newHarness(t)
	h.gw.Dirty = true

	h.dispatch(protocol.TypeSessionCreateInit, "init-1", map[string]any{})

	ask := h.next(t)
	require.Equal(t, protocol.TypeGitDecisionRequest, ask.Type)
	h.dispatch(protocol.TypeGitDecisionReply, ask.ID, map[string]any{"decision": "commit"})

	ask = h.next(t)
	require.Equal(t, protocol.TypeGitMessageRequest, ask.Type)
	h.dispatch(protocol.TypeGitMessageReply, ask.ID, map[string]any{"message": "before save"})

	resp := h.next(t)
	require.Equal(t, "init-1", resp.ID)
	require.Equal(t, protocol.StatusSuccess, resp.Status)
	draft := resp.Payload.(map[string]any)["sessionData"].(*model.Session)
	assert.False(t, draft.Git.IsDirty)
	assert.Equal(t, "abc-c1", draft.Git.Commit)

	commits := h.gw.Calls("CommitAll")
	require.Len(t, commits, 1)
	assert.Equal(t, "before save", commits[0].Arg)
	assert.Empty(t, h.gw.Calls("CheckoutBranch"))
}

func TestSessionCreateInit_DirtyTreeCancelled(t *testing.T) {
	h := newHarness(t)
	h.gw.Dirty = true

	h.dispatch(protocol.TypeSessionCreateInit, "init-1", map[string]any{})
	ask := h.next(t)
	h.dispatch(protocol.TypeGitDecisionReply, ask.ID, map[string]any{"decision": "cancel"})

	resp := h.next(t)
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Equal(t, failure.UserCancelled, resp.Payload.(protocol.ErrorPayload).Kind)
	assert.Empty(t, h.gw.Mutations())
}

func TestSessionCRUD(t *testing.T) {
	h := newHarness(t)

	status, out := h.call(t, protocol.TypeSessionCreate, map[string]any{})
	assert.Equal(t, protocol.StatusError, status)
	assert.Equal(t, "No session data provided", out["error"])

	status, out = h.call(t, protocol.TypeSessionCreate, map[string]any{
		"sessionData": model.Session{Name: "bugfix", ProjectRoot: "/work/app"},
	})
	require.Equal(t, protocol.StatusSuccess, status)
	assert.Equal(t, true, out["success"])
	id := out["id"].(string)
	require.NotEmpty(t, id)

	_, out = h.call(t, protocol.TypeSessionUpdate, map[string]any{"updates": map[string]any{}})
	assert.Equal(t, "Session ID is required", out["error"])

	status, out = h.call(t, protocol.TypeSessionUpdate, map[string]any{
		"id":      id,
		"updates": map[string]any{"notes": "halfway"},
	})
	require.Equal(t, protocol.StatusSuccess, status)
	assert.Equal(t, "halfway", out["session"].(map[string]any)["notes"])

	status, _ = h.call(t, protocol.TypeSessionDelete, map[string]any{"id": id})
	assert.Equal(t, protocol.StatusSuccess, status)

	status, out = h.call(t, protocol.TypeSessionDelete, map[string]any{"id": id})
	assert.Equal(t, protocol.StatusError, status)
	assert.Equal(t, string(failure.SessionNotFound), out["kind"])
}

func TestSessionResume_Clean(t *testing.T) {
	h := newHarness(t)
	id := h.saveSession(t, model.Session{Name: "s", ProjectRoot: "/work/app", Git: model.GitFingerprint{Branch: "feature"}})

	status, out := h.call(t, protocol.TypeSessionResume, map[string]any{"id": id})
	require.Equal(t, protocol.StatusSuccess, status, out)
	assert.Equal(t, id, out["session"].(map[string]any)["id"])
	assert.Len(t, h.gw.Calls("CheckoutBranch"), 1)
}

func TestSessionResume_PromptsThroughUI(t *testing.T) {
	h := newHarness(t)
	h.gw.Dirty = true
	id := h.saveSession(t, model.Session{Name: "s", ProjectRoot: "/work/app", Git: model.GitFingerprint{Branch: "main"}})

	h.dispatch(protocol.TypeSessionResume, "resume-1", map[string]any{"id": id})

	ask := h.next(t)
	require.Equal(t, protocol.TypeGitDecisionRequest, ask.Type)
	h.dispatch(protocol.TypeGitDecisionReply, ask.ID, map[string]any{"decision": "commit"})

	ask = h.next(t)
	require.Equal(t, protocol.TypeGitMessageRequest, ask.Type)
	h.dispatch(protocol.TypeGitMessageReply, ask.ID, map[string]any{"message": "wip"})

	resp := h.next(t)
	assert.Equal(t, "resume-1", resp.ID)
	assert.Equal(t, protocol.StatusSuccess, resp.Status)
	commits := h.gw.Calls("CommitAll")
	require.Len(t, commits, 1)
	assert.Equal(t, "wip", commits[0].Arg)
}

func TestSessionResume_CancelCarriesKind(t *testing.T) {
	h := newHarness(t)
	h.gw.Dirty = true
	id := h.saveSession(t, model.Session{Name: "s", ProjectRoot: "/work/app", Git: model.GitFingerprint{Branch: "main"}})

	h.dispatch(protocol.TypeSessionResume, "resume-1", map[string]any{"id": id})
	ask := h.next(t)
	h.dispatch(protocol.TypeGitDecisionReply, ask.ID, map[string]any{"decision": "cancel"})

	resp := h.next(t)
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Equal(t, failure.UserCancelled, resp.Payload.(protocol.ErrorPayload).Kind)
	assert.Empty(t, h.gw.Mutations())
}

func TestGitPrompt_UnknownReply(t *testing.T) {
	h := newHarness(t)
	status, out := h.call(t, protocol.TypeGitDecisionReply, map[string]any{"decision": "commit"})
	assert.Equal(t, protocol.StatusError, status)
	assert.Equal(t, string(failure.InvalidRequest), out["kind"])
}

func TestSessionExport(t *testing.T) {
	h := newHarness(t)
	id := h.saveSession(t, model.Session{Name: "s", ProjectRoot: "/work/app"})
	path := filepath.Join(t.TempDir(), "s.yaml")

	status, out := h.call(t, protocol.TypeSessionExport, map[string]any{"id": id, "path": path, "format": "yaml"})
	require.Equal(t, protocol.StatusSuccess, status, out)
	assert.Equal(t, path, out["path"])
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "projectRoot: /work/app")
}

func TestScripts(t *testing.T) {
	h := newHarness(t)

	_, out := h.call(t, protocol.TypeScriptCreate, nil)
	assert.Equal(t, "No script data provided", out["error"])

	status, out := h.call(t, protocol.TypeScriptCreate, map[string]any{
		"scriptData": map[string]any{
			"name":     "dev",
			"commands": []map[string]any{{"command": "npm run dev"}},
		},
	})
	require.Equal(t, protocol.StatusSuccess, status, out)
	id := out["id"].(string)

	sc, err := h.st.GetScript(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "/work/app", sc.RootPath, "root defaults to the current project")

	status, _ = h.call(t, protocol.TypeScriptUpdate, map[string]any{
		"id":         id,
		"scriptData": map[string]any{"lifecycle": []string{"on-open"}},
	})
	require.Equal(t, protocol.StatusSuccess, status)
	sc, _ = h.st.GetScript(ctx, id)
	assert.Equal(t, "dev", sc.Name, "fields absent from the patch are kept")
	assert.True(t, sc.Lifecycle.Has(model.LifecycleOpen))

	_, out = h.call(t, protocol.TypeScriptsInit, nil)
	assert.Len(t, out["scripts"], 1)

	status, _ = h.call(t, protocol.TypeScriptResume, map[string]any{"id": id})
	assert.Equal(t, protocol.StatusSuccess, status)

	status, out = h.call(t, protocol.TypeScriptDelete, map[string]any{"ids": []string{id}})
	assert.Equal(t, protocol.StatusSuccess, status)
	assert.Equal(t, []any{id}, out["ids"])

	_, out = h.call(t, protocol.TypeScriptDelete, nil)
	assert.Equal(t, "No script ID provided", out["error"])
}

func TestTerminalCollections(t *testing.T) {
	h := newHarness(t)
	sc, err := h.st.CreateScript(ctx, model.Script{
		Name: "dev", RootPath: "/work/app", Commands: []model.ScriptCommand{{Command: "make"}},
	})
	require.NoError(t, err)

	_, out := h.call(t, protocol.TypeTerminalCollectionCreate, map[string]any{})
	assert.Equal(t, "No terminal collection data provided", out["error"])

	status, out := h.call(t, protocol.TypeTerminalCollectionCreate, map[string]any{
		"terminalCollectionData": map[string]any{"name": "all", "scriptReferences": []string{sc.ID}},
	})
	require.Equal(t, protocol.StatusSuccess, status, out)
	id := out["id"].(string)

	tc, err := h.st.GetTerminalCollection(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.Lifecycles{model.LifecycleOpen}, tc.Lifecycle)

	_, out = h.call(t, protocol.TypeTerminalCollectionUpdate, map[string]any{"terminalCollectionData": map[string]any{}})
	assert.Equal(t, "No terminal collection ID provided", out["error"])

	status, _ = h.call(t, protocol.TypeTerminalCollectionUpdate, map[string]any{
		"id":                     id,
		"terminalCollectionData": map[string]any{"name": "everything"},
	})
	require.Equal(t, protocol.StatusSuccess, status)

	_, out = h.call(t, protocol.TypeTerminalCollectionsInit, nil)
	list := out["terminalCollections"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "everything", list[0].(map[string]any)["name"])

	status, _ = h.call(t, protocol.TypeTerminalCollectionResume, map[string]any{"id": id})
	assert.Equal(t, protocol.StatusSuccess, status)

	status, _ = h.call(t, protocol.TypeTerminalCollectionDelete, map[string]any{"id": id})
	assert.Equal(t, protocol.StatusSuccess, status)

	_, out = h.call(t, protocol.TypeTerminalCollectionResume, nil)
	assert.Equal(t, "No terminal collection ID provided", out["error"])
}

func TestConfig(t *testing.T) {
	h := newHarness(t)

	_, out := h.call(t, protocol.TypeConfigInit, nil)
	assert.Equal(t, "code", out["config"].(map[string]any)["editor_command"])

	_, out = h.call(t, protocol.TypeConfigUpdate, map[string]any{})
	assert.Equal(t, "Configuration data is required", out["error"])

	status, out := h.call(t, protocol.TypeConfigUpdate, map[string]any{"config": map[string]any{"editor_command": "cursor"}})
	require.Equal(t, protocol.StatusSuccess, status, out)
	assert.Equal(t, "cursor", out["config"].(map[string]any)["editor_command"])
	assert.Equal(t, "cursor", h.cfg.GetEditorCommand())
}
