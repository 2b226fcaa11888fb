package manifest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/codestate/codestate-core/failure"
	"github.com/codestate/codestate-core/logger"
	"github.com/codestate/codestate-core/model"
	"github.com/codestate/codestate-core/store"
)

// Store is the part of the persistence gateway Import writes to.
type Store interface {
	store.Scripts
	store.Collections
}

// Report counts what Import changed.
type Report struct {
	ScriptsCreated     int
	ScriptsUpdated     int
	CollectionsCreated int
	CollectionsUpdated int
}

func (r Report) String() string {
	return fmt.Sprintf("scripts: %d created, %d updated; collections: %d created, %d updated",
		r.ScriptsCreated, r.ScriptsUpdated, r.CollectionsCreated, r.CollectionsUpdated)
}

// Import upserts m's scripts and collections under root, matching existing
// records by name. Collection script names are resolved to ids. Records in
// the store that the manifest does not mention are left alone.
func Import(ctx context.Context, st Store, root string, m *Manifest) (Report, error) {
	var rep Report
	if errs := Validate(m); len(errs) > 0 {
		joined := make([]error, len(errs))
		for i, e := range errs {
			joined[i] = e
		}
		return rep, failure.Wrap(failure.InvalidRequest, errors.Join(joined...), "Invalid script manifest")
	}
	root = filepath.Clean(root)
	log := logger.WithComponent("manifest").With("root", root)

	existing, err := st.GetScripts(ctx, model.ScriptFilter{RootPath: root})
	if err != nil {
		return rep, failure.Upstream(err)
	}
	byName := make(map[string]string, len(existing))
	for _, s := range existing {
		byName[s.Name] = s.ID
	}

	for _, s := range m.Scripts {
		s.RootPath = root
		if id, ok := byName[s.Name]; ok {
			s.ID = id
			if err := st.UpdateScript(ctx, s); err != nil {
				return rep, failure.Upstream(err)
			}
			rep.ScriptsUpdated++
			continue
		}
		s.ID = ""
		created, err := st.CreateScript(ctx, s)
		if err != nil {
			return rep, failure.Upstream(err)
		}
		byName[s.Name] = created.ID
		rep.ScriptsCreated++
	}

	all, err := st.GetTerminalCollections(ctx)
	if err != nil {
		return rep, failure.Upstream(err)
	}
	collections := make(map[string]string)
	for _, tc := range all {
		if tc.RootPath == root {
			collections[tc.Name] = tc.ID
		}
	}

	for _, tc := range m.Collections {
		tc.RootPath = root
		tc.Scripts = nil
		refs := make([]string, len(tc.ScriptReferences))
		for i, name := range tc.ScriptReferences {
			refs[i] = byName[name]
		}
		tc.ScriptReferences = refs

		if id, ok := collections[tc.Name]; ok {
			tc.ID = id
			if err := st.UpdateTerminalCollection(ctx, tc); err != nil {
				return rep, failure.Upstream(err)
			}
			rep.CollectionsUpdated++
			continue
		}
		tc.ID = ""
		if _, err := st.CreateTerminalCollection(ctx, tc); err != nil {
			return rep, failure.Upstream(err)
		}
		rep.CollectionsCreated++
	}

	log.Info("imported script manifest", "report", rep.String())
	return rep, nil
}
