package manifest

import (
	"fmt"
	"strings"

	"github.com/codestate/codestate-core/model"
)

// ValidationError describes a single validation problem.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a Manifest and returns all problems found.
func Validate(m *Manifest) []ValidationError {
	var errs []ValidationError

	names := make(map[string]bool, len(m.Scripts))
	for i, s := range m.Scripts {
		prefix := fmt.Sprintf("scripts[%d]", i)
		if strings.TrimSpace(s.Name) == "" {
			errs = append(errs, ValidationError{Field: prefix + ".name", Message: "name is required"})
		} else if names[s.Name] {
			errs = append(errs, ValidationError{Field: prefix + ".name", Message: fmt.Sprintf("duplicate script %q", s.Name)})
		}
		names[s.Name] = true

		if len(s.Commands) == 0 {
			errs = append(errs, ValidationError{Field: prefix + ".commands", Message: "at least one command is required"})
		}
		for j, c := range s.Commands {
			if strings.TrimSpace(c.Command) == "" {
				errs = append(errs, ValidationError{Field: fmt.Sprintf("%s.commands[%d].command", prefix, j), Message: "command is empty"})
			}
		}
		switch s.ExecutionMode {
		case model.SameTerminal, model.NewTerminals:
		default:
			errs = append(errs, ValidationError{
				Field:   prefix + ".execution_mode",
				Message: fmt.Sprintf("unknown execution mode %q", s.ExecutionMode),
			})
		}
	}

	collections := make(map[string]bool, len(m.Collections))
	for i, tc := range m.Collections {
		prefix := fmt.Sprintf("collections[%d]", i)
		if strings.TrimSpace(tc.Name) == "" {
			errs = append(errs, ValidationError{Field: prefix + ".name", Message: "name is required"})
		} else if collections[tc.Name] {
			errs = append(errs, ValidationError{Field: prefix + ".name", Message: fmt.Sprintf("duplicate collection %q", tc.Name)})
		}
		collections[tc.Name] = true

		for _, ref := range tc.ScriptReferences {
			if !names[ref] {
				errs = append(errs, ValidationError{
					Field:   prefix + ".scripts",
					Message: fmt.Sprintf("script %q is not declared", ref),
				})
			}
		}
	}

	return errs
}
