// Package dataid parses --id style clauses into the ordered list of concrete
// data identifiers to process.
//
// A clause is the token list following one --id occurrence, e.g.
// ["visit=1^2", "filter=g"]. Each token constrains one identifier key to an
// ordered list of alternatives separated by "^". A clause expands to the
// Cartesian product of its per-key alternatives; separate clauses concatenate
// and never cross-multiply.
package dataid

import "strings"

// altSeparator separates alternative values within one key=value token.
const altSeparator = "^"

// Domain describes the identifier keys valid for the active camera and,
// where the camera enumerates them, their legal values. It is supplied by
// the camera-metadata collaborator and is read-only here.
type Domain interface {
	// HasKey reports whether the key is a valid identifier key.
	HasKey(key string) bool
	// Values returns the enumerated legal values for key and true, or nil
	// and false if the key accepts arbitrary values.
	Values(key string) ([]string, bool)
}

// Identifier is one concrete key/value combination, the unit the pipeline
// ultimately processes. Keys preserves first-written order; keys omitted
// from the originating clause are absent and mean "all values", to be
// expanded later by the data-repository collaborator.
type Identifier struct {
	Keys   []string
	Values map[string]string
}

// Get returns the value for key and whether the identifier constrains it.
func (id Identifier) Get(key string) (string, bool) {
	v, ok := id.Values[key]
	return v, ok
}

// String renders the identifier as space-separated key=value pairs in key
// order, for diagnostics and --show data output.
func (id Identifier) String() string {
	parts := make([]string, len(id.Keys))
	for i, k := range id.Keys {
		parts[i] = k + "=" + id.Values[k]
	}
	return strings.Join(parts, " ")
}

// Expand parses the given clauses against the domain and returns the
// concatenated identifier sequences in clause order. An empty clause list
// yields an empty (non-nil error free) sequence; whether that means "process
// everything" is the caller's decision, never this package's.
func Expand(clauses [][]string, dom Domain) ([]Identifier, error) {
	var out []Identifier
	for _, clause := range clauses {
		ids, err := expandClause(clause, dom)
		if err != nil {
			return nil, err
		}
		out = append(out, ids...)
	}
	return out, nil
}

// expandClause parses one clause and returns its cross product, preserving
// the order of keys as first encountered and of values as written.
func expandClause(clause []string, dom Domain) ([]Identifier, error) {
	keys := make([]string, 0, len(clause))
	alternatives := make(map[string][]string, len(clause))

	for _, token := range clause {
		name, rawValues, ok := strings.Cut(token, "=")
		if !ok || name == "" {
			return nil, &SyntaxError{Clause: clause, Token: token, Reason: "expected key=value"}
		}
		if _, dup := alternatives[name]; dup {
			return nil, &SyntaxError{Clause: clause, Token: token, Reason: "key repeated within clause"}
		}
		if !dom.HasKey(name) {
			return nil, &KeyError{Key: name, Clause: clause, Valid: domainKeys(dom)}
		}
		values := strings.Split(rawValues, altSeparator)
		for _, v := range values {
			if v == "" {
				return nil, &SyntaxError{Clause: clause, Token: token, Reason: "empty value"}
			}
			if legal, enumerated := dom.Values(name); enumerated && !contains(legal, v) {
				return nil, &ValueError{Key: name, Value: v, Valid: legal}
			}
		}
		keys = append(keys, name)
		alternatives[name] = values
	}

	// Iterative Cartesian product: later keys vary fastest, matching the
	// order the alternatives were written.
	ids := []Identifier{{Keys: nil, Values: map[string]string{}}}
	for _, key := range keys {
		next := make([]Identifier, 0, len(ids)*len(alternatives[key]))
		for _, partial := range ids {
			for _, value := range alternatives[key] {
				next = append(next, partial.with(key, value))
			}
		}
		ids = next
	}
	return ids, nil
}

// with returns a copy of the identifier extended by one key/value pair.
func (id Identifier) with(key, value string) Identifier {
	keys := make([]string, len(id.Keys), len(id.Keys)+1)
	copy(keys, id.Keys)
	values := make(map[string]string, len(id.Values)+1)
	for k, v := range id.Values {
		values[k] = v
	}
	keys = append(keys, key)
	values[key] = value
	return Identifier{Keys: keys, Values: values}
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// keyLister is implemented by domains that can enumerate their keys, used
// only to enrich error messages.
type keyLister interface {
	Keys() []string
}

func domainKeys(dom Domain) []string {
	if kl, ok := dom.(keyLister); ok {
		return kl.Keys()
	}
	return nil
}
