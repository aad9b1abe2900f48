// Package argfile expands @file references in a raw argument list into the
// tokens read from those files, recursively and in place.
package argfile

import (
	"fmt"
	"os"
	"strings"
)

// Prefix marks a token as an argument-file reference.
const Prefix = "@"

// FileError reports an argument file that could not be read, or a reference
// cycle between argument files.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("argument file %q: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Expand replaces every token of the form @path with the whitespace-delimited
// tokens read from the file at path, preserving relative order. Files may
// themselves contain @file tokens; expansion recurses. Expansion is purely
// textual: no token is dropped or reordered, and file contents are re-read on
// every call.
func Expand(args []string) ([]string, error) {
	return expand(args, nil)
}

// expand carries the stack of files currently being expanded so that a file
// referencing itself, directly or through another file, is rejected instead
// of recursing forever.
func expand(args []string, stack []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		if !strings.HasPrefix(arg, Prefix) {
			out = append(out, arg)
			continue
		}
		path := strings.TrimPrefix(arg, Prefix)
		for _, open := range stack {
			if open == path {
				return nil, &FileError{Path: path, Err: fmt.Errorf("referenced recursively via %v", stack)}
			}
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &FileError{Path: path, Err: err}
		}
		nested, err := expand(strings.Fields(string(data)), append(stack, path))
		if err != nil {
			return nil, err
		}
		out = append(out, nested...)
	}
	return out, nil
}
