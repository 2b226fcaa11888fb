package git

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxBranchNameLength bounds the branch names a session may record.
const MaxBranchNameLength = 255

// Git rejects space, ~, ^, :, ?, *, [, \ and control characters.
var validBranchNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9/_.+-]*$`)

// ValidateBranchName checks that branch is safe to pass to git checkout.
func ValidateBranchName(branch string) error {
	if branch == "" {
		return fmt.Errorf("branch name is empty")
	}

	if len(branch) > MaxBranchNameLength {
		return fmt.Errorf("branch name too long (max %d characters)", MaxBranchNameLength)
	}

	if strings.HasPrefix(branch, "-") {
		return fmt.Errorf("branch name cannot start with '-'")
	}

	if strings.HasSuffix(branch, ".lock") || strings.HasSuffix(branch, "/") {
		return fmt.Errorf("branch name cannot end with '.lock' or '/'")
	}

	if strings.Contains(branch, "..") || strings.Contains(branch, "//") {
		return fmt.Errorf("branch name cannot contain '..' or '//'")
	}

	if !validBranchNameRegex.MatchString(branch) {
		return fmt.Errorf("branch name contains invalid characters (use letters, numbers, /, _, ., +, -)")
	}

	return nil
}
