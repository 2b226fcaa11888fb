package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codestate/codestate-core/failure"
	"github.com/codestate/codestate-core/logger"
	"github.com/codestate/codestate-core/model"
	"github.com/codestate/codestate-core/paths"
)

// document is the on-disk layout of store.json.
type document struct {
	Sessions            []model.Session            `json:"sessions"`
	Scripts             []model.Script             `json:"scripts"`
	TerminalCollections []model.TerminalCollection `json:"terminalCollections"`
}

// FileStore keeps every record in a single JSON file and rewrites it on each
// mutation. Reads are served from memory.
type FileStore struct {
	mu       sync.RWMutex
	path     string
	doc      document
	launcher Launcher
	now      func() time.Time
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithLauncher sets the side-effect runner used by the resume operations.
func WithLauncher(l Launcher) FileOption {
	return func(s *FileStore) {
		s.launcher = l
	}
}

// WithClock overrides time.Now for timestamps.
func WithClock(now func() time.Time) FileOption {
	return func(s *FileStore) {
		s.now = now
	}
}

// OpenDefault opens the store at paths.StoreFilePath.
func OpenDefault(opts ...FileOption) (*FileStore, error) {
	path, err := paths.StoreFilePath()
	if err != nil {
		return nil, err
	}
	return Open(path, opts...)
}

// Open loads the store at path. A missing file is an empty store; the file
// is created on the first mutation.
func Open(path string, opts ...FileOption) (*FileStore, error) {
	s := &FileStore{
		path:     path,
		launcher: NopLauncher{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read store: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.doc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	return s, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// persistLocked writes the document atomically. Caller holds s.mu for writing.
func (s *FileStore) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return failure.Wrap(failure.UpstreamFailure, err, "failed to create store directory")
	}

	data, err := json.MarshalIndent(&s.doc, "", "  ")
	if err != nil {
		return failure.Wrap(failure.UpstreamFailure, err, "failed to encode store")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return failure.Wrap(failure.UpstreamFailure, err, "failed to write store")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return failure.Wrap(failure.UpstreamFailure, err, "failed to write store")
	}
	return nil
}

// mutate applies fn to the document and persists it. If fn or the write
// fails the in-memory document is restored.
func (s *FileStore) mutate(fn func(doc *document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := document{
		Sessions:            slices.Clone(s.doc.Sessions),
		Scripts:             slices.Clone(s.doc.Scripts),
		TerminalCollections: slices.Clone(s.doc.TerminalCollections),
	}
	if err := fn(&s.doc); err != nil {
		s.doc = prev
		return err
	}
	if err := s.persistLocked(); err != nil {
		s.doc = prev
		return err
	}
	return nil
}

// Sessions

func cloneSession(in model.Session) model.Session {
	out := in
	out.Tags = slices.Clone(in.Tags)
	out.Files = slices.Clone(in.Files)
	out.Extensions = maps.Clone(in.Extensions)
	out.TerminalCommands = slices.Clone(in.TerminalCommands)
	out.TerminalCollections = slices.Clone(in.TerminalCollections)
	out.Scripts = slices.Clone(in.Scripts)
	return out
}

func findSession(doc *document, idOrName string) int {
	if i := slices.IndexFunc(doc.Sessions, func(s model.Session) bool { return s.ID == idOrName }); i >= 0 {
		return i
	}
	return slices.IndexFunc(doc.Sessions, func(s model.Session) bool { return s.Name == idOrName })
}

func sessionNotFound(idOrName string) error {
	return failure.New(failure.SessionNotFound, "Session not found: %s", idOrName)
}

// ListSessions returns matching sessions, most recently updated first.
func (s *FileStore) ListSessions(ctx context.Context, filter model.SessionFilter) ([]model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Session, 0, len(s.doc.Sessions))
	for i := range s.doc.Sessions {
		if filter.Matches(&s.doc.Sessions[i]) {
			out = append(out, cloneSession(s.doc.Sessions[i]))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// GetSession looks a session up by id, then by name.
func (s *FileStore) GetSession(ctx context.Context, idOrName string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := findSession(&s.doc, idOrName)
	if i < 0 {
		return nil, sessionNotFound(idOrName)
	}
	out := cloneSession(s.doc.Sessions[i])
	return &out, nil
}

// SaveSession stores a new session and assigns its id and timestamps.
func (s *FileStore) SaveSession(ctx context.Context, in model.Session) (*model.Session, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, failure.New(failure.InvalidRequest, "Session name is required")
	}
	if strings.TrimSpace(in.ProjectRoot) == "" {
		return nil, failure.New(failure.InvalidRequest, "Session project root is required")
	}

	sess := cloneSession(in)
	sess.ID = uuid.NewString()
	sess.Name = name
	sess.ProjectRoot = filepath.Clean(in.ProjectRoot)
	sess.CreatedAt = s.now()
	sess.UpdatedAt = sess.CreatedAt
	if sess.Tags == nil {
		sess.Tags = []string{}
	}
	if sess.Files == nil {
		sess.Files = []model.FileState{}
	}
	if sess.TerminalCollections == nil {
		sess.TerminalCollections = []string{}
	}
	if sess.Scripts == nil {
		sess.Scripts = []string{}
	}

	err := s.mutate(func(doc *document) error {
		if findSession(doc, name) >= 0 {
			return failure.New(failure.InvalidRequest, "A session named %q already exists", name)
		}
		doc.Sessions = append(doc.Sessions, sess)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.WithSession(sess.ID).Info("session saved", "name", sess.Name, "root", sess.ProjectRoot)
	out := cloneSession(sess)
	return &out, nil
}

// UpdateSession applies a partial update.
func (s *FileStore) UpdateSession(ctx context.Context, idOrName string, u model.SessionUpdate) (*model.Session, error) {
	var updated model.Session
	err := s.mutate(func(doc *document) error {
		i := findSession(doc, idOrName)
		if i < 0 {
			return sessionNotFound(idOrName)
		}
		next := cloneSession(doc.Sessions[i])
		u.Apply(&next)
		if strings.TrimSpace(next.Name) == "" {
			return failure.New(failure.InvalidRequest, "Session name is required")
		}
		next.UpdatedAt = s.now()
		doc.Sessions[i] = next
		updated = cloneSession(next)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteSession removes a session.
func (s *FileStore) DeleteSession(ctx context.Context, idOrName string) error {
	return s.mutate(func(doc *document) error {
		i := findSession(doc, idOrName)
		if i < 0 {
			return sessionNotFound(idOrName)
		}
		doc.Sessions = slices.Delete(doc.Sessions, i, i+1)
		return nil
	})
}

// ResumeSession opens the session's files, then runs in order: captured
// terminal commands, referenced scripts, root scripts tagged resume, and
// referenced or resume-tagged terminal collections. Every launch is
// attempted; failures are joined into the returned error.
func (s *FileStore) ResumeSession(ctx context.Context, id string) (*model.Session, error) {
	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	log := logger.WithSession(sess.ID).With("component", "store")

	if err := s.launcher.OpenFiles(ctx, sess.ProjectRoot, sess.Files); err != nil {
		return nil, failure.Wrap(failure.UpstreamFailure, err, "Failed to open session files")
	}

	var errs []error
	run := func(sc model.Script) {
		if err := s.launcher.RunScript(ctx, sc); err != nil {
			log.Warn("script failed during session resume", "script", sc.Name, "error", err)
			errs = append(errs, fmt.Errorf("script %s: %w", sc.Name, err))
		}
	}

	for _, tc := range sess.TerminalCommands {
		run(model.Script{
			Name:          tc.TerminalName,
			RootPath:      sess.ProjectRoot,
			Commands:      tc.Commands,
			ExecutionMode: model.SameTerminal,
		})
	}

	scripts, collections := s.resumeTargets(sess, log)
	for _, sc := range scripts {
		run(sc)
	}
	for _, tc := range collections {
		if err := s.ExecuteTerminalCollection(ctx, tc); err != nil {
			log.Warn("terminal collection failed during session resume", "collection", tc, "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		return nil, failure.Wrap(failure.UpstreamFailure, joined, "Session resumed with errors")
	}
	return sess, nil
}

// resumeTargets returns the scripts and collection ids a session resume
// launches. Dangling references are logged and skipped.
func (s *FileStore) resumeTargets(sess *model.Session, log *slog.Logger) ([]model.Script, []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var scripts []model.Script
	seen := map[string]bool{}
	for _, id := range sess.Scripts {
		i := slices.IndexFunc(s.doc.Scripts, func(sc model.Script) bool { return sc.ID == id })
		if i < 0 {
			log.Warn("session references missing script", "script", id)
			continue
		}
		seen[id] = true
		scripts = append(scripts, cloneScript(s.doc.Scripts[i]))
	}
	filter := model.ScriptFilter{RootPath: sess.ProjectRoot, Lifecycle: model.LifecycleResume}
	for i := range s.doc.Scripts {
		sc := &s.doc.Scripts[i]
		if !seen[sc.ID] && filter.Matches(sc) {
			seen[sc.ID] = true
			scripts = append(scripts, cloneScript(*sc))
		}
	}

	var collections []string
	for _, id := range sess.TerminalCollections {
		if !slices.ContainsFunc(s.doc.TerminalCollections, func(tc model.TerminalCollection) bool { return tc.ID == id }) {
			log.Warn("session references missing terminal collection", "collection", id)
			continue
		}
		collections = append(collections, id)
	}
	for i := range s.doc.TerminalCollections {
		tc := &s.doc.TerminalCollections[i]
		if tc.RunsOn(sess.ProjectRoot, model.LifecycleResume) && !slices.Contains(collections, tc.ID) {
			collections = append(collections, tc.ID)
		}
	}
	return scripts, collections
}

// Scripts

func cloneScript(in model.Script) model.Script {
	out := in
	out.Commands = slices.Clone(in.Commands)
	out.Lifecycle = slices.Clone(in.Lifecycle)
	return out
}

func findScript(doc *document, id string) int {
	return slices.IndexFunc(doc.Scripts, func(sc model.Script) bool { return sc.ID == id })
}

func scriptNotFound(id string) error {
	return failure.New(failure.ScriptNotFound, "Script not found: %s", id)
}

func normalizeScript(sc *model.Script) error {
	sc.Name = strings.TrimSpace(sc.Name)
	if sc.Name == "" {
		return failure.New(failure.InvalidRequest, "Script name is required")
	}
	if strings.TrimSpace(sc.RootPath) == "" {
		return failure.New(failure.InvalidRequest, "Script root path is required")
	}
	sc.RootPath = filepath.Clean(sc.RootPath)
	if len(sc.Commands) == 0 {
		return failure.New(failure.InvalidRequest, "Script %q has no commands", sc.Name)
	}
	for _, c := range sc.Commands {
		if strings.TrimSpace(c.Command) == "" {
			return failure.New(failure.InvalidRequest, "Script %q has an empty command", sc.Name)
		}
	}
	switch sc.ExecutionMode {
	case "":
		sc.ExecutionMode = model.SameTerminal
	case model.SameTerminal, model.NewTerminals:
	default:
		return failure.New(failure.InvalidRequest, "Unknown execution mode %q", sc.ExecutionMode)
	}
	if sc.Lifecycle == nil {
		sc.Lifecycle = model.Lifecycles{}
	}
	return nil
}

// GetScripts returns scripts matching filter in creation order.
func (s *FileStore) GetScripts(ctx context.Context, filter model.ScriptFilter) ([]model.Script, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.Script{}
	for i := range s.doc.Scripts {
		if filter.Matches(&s.doc.Scripts[i]) {
			out = append(out, cloneScript(s.doc.Scripts[i]))
		}
	}
	return out, nil
}

// GetScript returns one script.
func (s *FileStore) GetScript(ctx context.Context, id string) (*model.Script, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := findScript(&s.doc, id)
	if i < 0 {
		return nil, scriptNotFound(id)
	}
	out := cloneScript(s.doc.Scripts[i])
	return &out, nil
}

// CreateScript stores a new script under a fresh id.
func (s *FileStore) CreateScript(ctx context.Context, in model.Script) (*model.Script, error) {
	sc := cloneScript(in)
	if err := normalizeScript(&sc); err != nil {
		return nil, err
	}
	sc.ID = uuid.NewString()

	if err := s.mutate(func(doc *document) error {
		doc.Scripts = append(doc.Scripts, sc)
		return nil
	}); err != nil {
		return nil, err
	}
	out := cloneScript(sc)
	return &out, nil
}

// UpdateScript replaces the script with the same id.
func (s *FileStore) UpdateScript(ctx context.Context, in model.Script) error {
	sc := cloneScript(in)
	if err := normalizeScript(&sc); err != nil {
		return err
	}
	return s.mutate(func(doc *document) error {
		i := findScript(doc, sc.ID)
		if i < 0 {
			return scriptNotFound(sc.ID)
		}
		doc.Scripts[i] = sc
		return nil
	})
}

// DeleteScripts removes scripts and any collection references to them.
// Unknown ids fail the whole call.
func (s *FileStore) DeleteScripts(ctx context.Context, ids ...string) error {
	return s.mutate(func(doc *document) error {
		for _, id := range ids {
			if findScript(doc, id) < 0 {
				return scriptNotFound(id)
			}
		}
		doc.Scripts = slices.DeleteFunc(doc.Scripts, func(sc model.Script) bool {
			return slices.Contains(ids, sc.ID)
		})
		for i := range doc.TerminalCollections {
			tc := &doc.TerminalCollections[i]
			tc.ScriptReferences = slices.DeleteFunc(slices.Clone(tc.ScriptReferences), func(ref string) bool {
				return slices.Contains(ids, ref)
			})
		}
		return nil
	})
}

// ResumeScript runs one script through the launcher.
func (s *FileStore) ResumeScript(ctx context.Context, id string) error {
	sc, err := s.GetScript(ctx, id)
	if err != nil {
		return err
	}
	if err := s.launcher.RunScript(ctx, *sc); err != nil {
		return failure.Wrap(failure.UpstreamFailure, err, "Failed to run script %s", sc.Name)
	}
	return nil
}

// Terminal collections

func cloneCollection(in model.TerminalCollection) model.TerminalCollection {
	out := in
	out.ScriptReferences = slices.Clone(in.ScriptReferences)
	out.Lifecycle = slices.Clone(in.Lifecycle)
	out.Scripts = nil
	return out
}

func findCollection(doc *document, id string) int {
	return slices.IndexFunc(doc.TerminalCollections, func(tc model.TerminalCollection) bool { return tc.ID == id })
}

func collectionNotFound(id string) error {
	return failure.New(failure.CollectionNotFound, "Terminal collection not found: %s", id)
}

// resolveLocked fills the derived Scripts view. Missing references are left
// out of the view.
func resolveLocked(doc *document, tc *model.TerminalCollection) {
	tc.Scripts = make([]model.Script, 0, len(tc.ScriptReferences))
	for _, ref := range tc.ScriptReferences {
		if i := findScript(doc, ref); i >= 0 {
			tc.Scripts = append(tc.Scripts, cloneScript(doc.Scripts[i]))
		}
	}
}

func normalizeCollection(tc *model.TerminalCollection) error {
	tc.Name = strings.TrimSpace(tc.Name)
	if tc.Name == "" {
		return failure.New(failure.InvalidRequest, "Terminal collection name is required")
	}
	if strings.TrimSpace(tc.RootPath) == "" {
		return failure.New(failure.InvalidRequest, "Terminal collection root path is required")
	}
	tc.RootPath = filepath.Clean(tc.RootPath)
	if tc.ScriptReferences == nil {
		tc.ScriptReferences = []string{}
	}
	if tc.Lifecycle == nil {
		tc.Lifecycle = model.Lifecycles{}
	}
	return nil
}

// GetTerminalCollections returns every collection with its Scripts view
// resolved.
func (s *FileStore) GetTerminalCollections(ctx context.Context) ([]model.TerminalCollection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.TerminalCollection, 0, len(s.doc.TerminalCollections))
	for _, tc := range s.doc.TerminalCollections {
		c := cloneCollection(tc)
		resolveLocked(&s.doc, &c)
		out = append(out, c)
	}
	return out, nil
}

// GetTerminalCollection returns one collection with its Scripts view resolved.
func (s *FileStore) GetTerminalCollection(ctx context.Context, id string) (*model.TerminalCollection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := findCollection(&s.doc, id)
	if i < 0 {
		return nil, collectionNotFound(id)
	}
	c := cloneCollection(s.doc.TerminalCollections[i])
	resolveLocked(&s.doc, &c)
	return &c, nil
}

// CreateTerminalCollection stores a collection. An empty ID is assigned.
func (s *FileStore) CreateTerminalCollection(ctx context.Context, in model.TerminalCollection) (*model.TerminalCollection, error) {
	tc := cloneCollection(in)
	if err := normalizeCollection(&tc); err != nil {
		return nil, err
	}
	if tc.ID == "" {
		tc.ID = uuid.NewString()
	}

	err := s.mutate(func(doc *document) error {
		if findCollection(doc, tc.ID) >= 0 {
			return failure.New(failure.InvalidRequest, "Terminal collection %s already exists", tc.ID)
		}
		for _, ref := range tc.ScriptReferences {
			if findScript(doc, ref) < 0 {
				return scriptNotFound(ref)
			}
		}
		doc.TerminalCollections = append(doc.TerminalCollections, tc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := cloneCollection(tc)
	return &out, nil
}

// UpdateTerminalCollection replaces the collection with the same id.
func (s *FileStore) UpdateTerminalCollection(ctx context.Context, in model.TerminalCollection) error {
	tc := cloneCollection(in)
	if err := normalizeCollection(&tc); err != nil {
		return err
	}
	return s.mutate(func(doc *document) error {
		i := findCollection(doc, tc.ID)
		if i < 0 {
			return collectionNotFound(tc.ID)
		}
		for _, ref := range tc.ScriptReferences {
			if findScript(doc, ref) < 0 {
				return scriptNotFound(ref)
			}
		}
		doc.TerminalCollections[i] = tc
		return nil
	})
}

// DeleteTerminalCollection removes a collection and session references to it.
func (s *FileStore) DeleteTerminalCollection(ctx context.Context, id string) error {
	return s.mutate(func(doc *document) error {
		i := findCollection(doc, id)
		if i < 0 {
			return collectionNotFound(id)
		}
		doc.TerminalCollections = slices.Delete(doc.TerminalCollections, i, i+1)
		for j := range doc.Sessions {
			doc.Sessions[j].TerminalCollections = slices.DeleteFunc(
				slices.Clone(doc.Sessions[j].TerminalCollections),
				func(ref string) bool { return ref == id })
		}
		return nil
	})
}

// ExecuteTerminalCollection runs the collection's scripts in reference
// order. The collection's close setting overrides each script's.
func (s *FileStore) ExecuteTerminalCollection(ctx context.Context, id string) error {
	tc, err := s.GetTerminalCollection(ctx, id)
	if err != nil {
		return err
	}
	if len(tc.Scripts) != len(tc.ScriptReferences) {
		for _, ref := range tc.ScriptReferences {
			if !slices.ContainsFunc(tc.Scripts, func(sc model.Script) bool { return sc.ID == ref }) {
				return scriptNotFound(ref)
			}
		}
	}

	log := logger.WithComponent("store").With("collection", tc.Name)
	var errs []error
	for _, sc := range tc.Scripts {
		sc.CloseTerminalAfterExecution = tc.CloseTerminalAfterExecution
		if err := s.launcher.RunScript(ctx, sc); err != nil {
			log.Warn("collection script failed", "script", sc.Name, "error", err)
			errs = append(errs, fmt.Errorf("script %s: %w", sc.Name, err))
		}
	}
	if len(errs) > 0 {
		joined := errors.Join(errs...)
		return failure.Wrap(failure.UpstreamFailure, joined, "Terminal collection %s failed", tc.Name)
	}
	return nil
}

var _ Gateway = (*FileStore)(nil)
