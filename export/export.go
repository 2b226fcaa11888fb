// Package export writes sessions to files in JSON or YAML.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codestate/codestate-core/failure"
	"github.com/codestate/codestate-core/model"
	"github.com/codestate/codestate-core/paths"
)

// Supported formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Encode renders v in format. YAML output uses the JSON field names.
func Encode(v any, format string) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(format) {
	case "", FormatJSON:
		return append(data, '\n'), nil
	case FormatYAML, "yml":
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return nil, err
		}
		return yaml.Marshal(generic)
	default:
		return nil, failure.New(failure.InvalidRequest, "Unsupported export format: %s", format)
	}
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName returns a filesystem-safe default name for sess.
func FileName(sess *model.Session, format string) string {
	base := strings.Trim(unsafeChars.ReplaceAllString(sess.Name, "-"), "-")
	if base == "" {
		base = sess.ID
	}
	ext := FormatJSON
	if f := strings.ToLower(format); f == FormatYAML || f == "yml" {
		ext = FormatYAML
	}
	return base + "." + ext
}

// WriteSession writes sess to path, or to the exports directory when path
// is empty, and returns the path written.
func WriteSession(sess *model.Session, path, format string) (string, error) {
	data, err := Encode(sess, format)
	if err != nil {
		return "", err
	}
	if path == "" {
		dir, err := paths.ExportsDir()
		if err != nil {
			return "", failure.Upstream(err)
		}
		path = filepath.Join(dir, FileName(sess, format))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", failure.Wrap(failure.UpstreamFailure, err, "Failed to export session")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", failure.Wrap(failure.UpstreamFailure, err, "Failed to export session")
	}
	return path, nil
}
