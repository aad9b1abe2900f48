package taskconfig

import "fmt"

// FileNotFoundError reports an explicit --configfile that does not exist.
// Auto-loaded override files are optional and never raise for absence.
type FileNotFoundError struct {
	Path string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("config override file %q does not exist", e.Path)
}

// AssignmentError reports a dotted path that does not resolve to an
// existing field, or a value that does not fit the field's type.
type AssignmentError struct {
	Key    string
	Reason string
}

func (e *AssignmentError) Error() string {
	return fmt.Sprintf("cannot assign config field %q: %s", e.Key, e.Reason)
}

// LimitationError reports a command-line override that only file-based
// override layers may perform.
type LimitationError struct {
	Key    string
	Reason string
}

func (e *LimitationError) Error() string {
	return fmt.Sprintf("config field %q cannot be set from the command line: %s", e.Key, e.Reason)
}
