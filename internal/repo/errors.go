package repo

import (
	"fmt"
	"strings"
)

// NotFoundError reports a path that does not exist or is not a valid
// repository marker structure.
type NotFoundError struct {
	Path   string
	Reason string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("repository %q: %s", e.Path, e.Reason)
}

// CycleError reports parent links that loop back on themselves.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("repository parent links form a cycle: %s", strings.Join(e.Chain, " -> "))
}

// RerunConflictError reports two incompatible specifications for the same
// output location.
type RerunConflictError struct {
	Rerun  string
	Reason string
}

func (e *RerunConflictError) Error() string {
	return fmt.Sprintf("--rerun %q conflicts: %s", e.Rerun, e.Reason)
}
