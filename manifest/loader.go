// Package manifest reads a project's checked-in script definitions from
// .codestate/scripts.yaml and imports them into the store.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/codestate/codestate-core/model"
)

const (
	manifestFileName = "scripts.yaml"
	manifestDir      = ".codestate"
)

// Manifest declares scripts and terminal collections for one project.
// Collections reference scripts by name.
type Manifest struct {
	Scripts     []model.Script             `yaml:"scripts"`
	Collections []model.TerminalCollection `yaml:"collections"`
}

// Path returns the manifest location for a project root.
func Path(root string) string {
	return filepath.Join(root, manifestDir, manifestFileName)
}

// Load reads and parses the manifest under root.
// Returns nil, nil if the file does not exist.
func Load(root string) (*Manifest, error) {
	data, err := os.ReadFile(Path(root))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read script manifest: %w", err)
	}
	return Parse(data)
}

// Parse decodes manifest YAML and applies defaults: scripts without an
// execution mode run in the same terminal and collections without a
// lifecycle run on open.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse script manifest: %w", err)
	}
	for i := range m.Scripts {
		if m.Scripts[i].ExecutionMode == "" {
			m.Scripts[i].ExecutionMode = model.SameTerminal
		}
	}
	for i := range m.Collections {
		if len(m.Collections[i].Lifecycle) == 0 {
			m.Collections[i].Lifecycle = model.Lifecycles{model.LifecycleOpen}
		}
	}
	return &m, nil
}
