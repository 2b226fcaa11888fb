// Package paths resolves where codestate keeps its files.
//
//   - Config (XDG_CONFIG_HOME): config.json
//   - Data (XDG_DATA_HOME): store.json and session exports
//   - State (XDG_STATE_HOME): logs/
//
// Resolution order:
//  1. CODESTATE_HOME set → everything under that directory
//  2. ~/.codestate/ exists → flat layout under ~/.codestate/
//  3. Any XDG variable set → XDG layout, unset variables take their defaults
//  4. Otherwise → ~/.codestate/
package paths

import (
	"os"
	"path/filepath"
	"sync"
)

const appName = "codestate"

var (
	mu       sync.Mutex
	resolved *layout
)

type layout struct {
	configDir string
	dataDir   string
	stateDir  string
	flat      bool
}

func flatLayout(dir string) *layout {
	return &layout{configDir: dir, dataDir: dir, stateDir: dir, flat: true}
}

// resolve computes the layout once and caches it.
func resolve() (*layout, error) {
	mu.Lock()
	defer mu.Unlock()

	if resolved != nil {
		return resolved, nil
	}

	if dir := os.Getenv("CODESTATE_HOME"); dir != "" {
		resolved = flatLayout(dir)
		return resolved, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	legacyDir := filepath.Join(home, "."+appName)
	if info, err := os.Stat(legacyDir); err == nil && info.IsDir() {
		resolved = flatLayout(legacyDir)
		return resolved, nil
	}

	xdg := []struct {
		env, fallback string
	}{
		{"XDG_CONFIG_HOME", filepath.Join(home, ".config")},
		{"XDG_DATA_HOME", filepath.Join(home, ".local", "share")},
		{"XDG_STATE_HOME", filepath.Join(home, ".local", "state")},
	}
	dirs := make([]string, len(xdg))
	anySet := false
	for i, v := range xdg {
		dirs[i] = os.Getenv(v.env)
		if dirs[i] != "" {
			anySet = true
		} else {
			dirs[i] = v.fallback
		}
	}
	if !anySet {
		resolved = flatLayout(legacyDir)
		return resolved, nil
	}

	resolved = &layout{
		configDir: filepath.Join(dirs[0], appName),
		dataDir:   filepath.Join(dirs[1], appName),
		stateDir:  filepath.Join(dirs[2], appName),
	}
	return resolved, nil
}

func under(dir func() (string, error), elem ...string) (string, error) {
	d, err := dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{d}, elem...)...), nil
}

// ConfigDir returns the directory holding config.json.
func ConfigDir() (string, error) {
	r, err := resolve()
	if err != nil {
		return "", err
	}
	return r.configDir, nil
}

// DataDir returns the directory for persistent records.
func DataDir() (string, error) {
	r, err := resolve()
	if err != nil {
		return "", err
	}
	return r.dataDir, nil
}

// StateDir returns the directory for logs and other transient state.
func StateDir() (string, error) {
	r, err := resolve()
	if err != nil {
		return "", err
	}
	return r.stateDir, nil
}

// ConfigFilePath returns the full path to config.json.
func ConfigFilePath() (string, error) {
	return under(ConfigDir, "config.json")
}

// StoreFilePath returns the path of the JSON record store.
func StoreFilePath() (string, error) {
	return under(DataDir, "store.json")
}

// ExportsDir returns the default directory for session exports.
func ExportsDir() (string, error) {
	return under(DataDir, "exports")
}

// LogsDir returns the directory for log files.
func LogsDir() (string, error) {
	return under(StateDir, "logs")
}

// IsLegacyLayout reports whether all files live in one flat directory.
func IsLegacyLayout() bool {
	r, err := resolve()
	if err != nil {
		return true
	}
	return r.flat
}

// Reset clears the cached resolution. Tests only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	resolved = nil
}
