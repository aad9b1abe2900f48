package dataid

import (
	"fmt"
	"strings"
)

// SyntaxError reports a malformed token within an identifier clause.
type SyntaxError struct {
	Clause []string
	Token  string
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("bad identifier token %q in clause %q: %s",
		e.Token, strings.Join(e.Clause, " "), e.Reason)
}

// KeyError reports an identifier key the active camera does not define.
type KeyError struct {
	Key    string
	Clause []string
	Valid  []string
}

func (e *KeyError) Error() string {
	msg := fmt.Sprintf("unknown identifier key %q in clause %q",
		e.Key, strings.Join(e.Clause, " "))
	if len(e.Valid) > 0 {
		msg += "; valid keys: " + strings.Join(e.Valid, ", ")
	}
	return msg
}

// ValueError reports a value outside the enumerated domain of its key.
type ValueError struct {
	Key   string
	Value string
	Valid []string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("value %q is not legal for identifier key %q (legal values: %s)",
		e.Value, e.Key, strings.Join(e.Valid, ", "))
}
