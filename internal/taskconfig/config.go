package taskconfig

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// registryNameField is the pseudo-field selecting a registry's active entry.
const registryNameField = "name"

// Config is the root of one task's configuration tree. Once frozen it is
// immutable and safe to share read-only across concurrent workers.
type Config struct {
	root   *Struct
	frozen bool
}

// New wraps a root sub-configuration.
func New(root *Struct) *Config {
	return &Config{root: root}
}

// Root returns the root sub-configuration.
func (c *Config) Root() *Struct { return c.root }

// Freeze makes the configuration immutable. Mutation after Freeze is a
// programmer error and panics.
func (c *Config) Freeze() { c.frozen = true }

// Frozen reports whether the configuration has been frozen.
func (c *Config) Frozen() bool { return c.frozen }

func (c *Config) mustMutable() {
	if c.frozen {
		panic("taskconfig: mutation after Freeze")
	}
}

// Get returns the value at the dotted path. Registry fields answer the
// "name" pseudo-field with their active entry name.
func (c *Config) Get(key string) (cty.Value, error) {
	segs := strings.Split(key, ".")
	cur := c.root
	for i, seg := range segs {
		f, ok := cur.Field(seg)
		if !ok {
			return cty.NilVal, c.noSuchField(key, segs[:i+1])
		}
		if i == len(segs)-1 {
			if leaf, isLeaf := f.(*Leaf); isLeaf {
				return leaf.Value, nil
			}
			return cty.NilVal, &AssignmentError{Key: key, Reason: "refers to a sub-configuration, not a value"}
		}
		switch f := f.(type) {
		case *Struct:
			cur = f
		case *Retargetable:
			cur = f.Sub()
		case *Registry:
			if i == len(segs)-2 && segs[i+1] == registryNameField {
				return cty.StringVal(f.ActiveName()), nil
			}
			cur = f.Active()
		case *Leaf:
			return cty.NilVal, &AssignmentError{Key: key,
				Reason: fmt.Sprintf("%q is a value, not a sub-configuration", strings.Join(segs[:i+1], "."))}
		}
	}
	return cty.NilVal, &AssignmentError{Key: key, Reason: "empty path"}
}

// Set applies one command-line key=value override via dotted-path
// assignment. The command-line layer is deliberately limited: it cannot
// retarget a subtask, cannot set a list-of-strings field, cannot replace a
// strict subset of a list, and only reaches a registry's active entry.
func (c *Config) Set(key, raw string) error {
	c.mustMutable()
	segs := strings.Split(key, ".")
	cur := c.root
	for i, seg := range segs {
		f, ok := cur.Field(seg)
		if !ok {
			return c.noSuchField(key, segs[:i+1])
		}
		if i == len(segs)-1 {
			switch f := f.(type) {
			case *Leaf:
				return c.setLeafFromCommandLine(key, f, raw)
			case *Retargetable:
				return &LimitationError{Key: key, Reason: "subtask retargeting is only available to override files"}
			case *Registry:
				return &AssignmentError{Key: key,
					Reason: fmt.Sprintf("select the active entry with %s.%s=<entry>", key, registryNameField)}
			case *Struct:
				return &AssignmentError{Key: key, Reason: "refers to a sub-configuration, not a settable field"}
			}
		}
		switch f := f.(type) {
		case *Struct:
			cur = f
		case *Retargetable:
			cur = f.Sub()
		case *Registry:
			if i == len(segs)-2 && segs[i+1] == registryNameField {
				if err := f.SetActive(raw); err != nil {
					return &AssignmentError{Key: key, Reason: err.Error()}
				}
				return nil
			}
			// Dotted paths can only ever reach the active entry; non-active
			// entries are addressable from override files alone.
			cur = f.Active()
		case *Leaf:
			return &AssignmentError{Key: key,
				Reason: fmt.Sprintf("%q is a value, not a sub-configuration", strings.Join(segs[:i+1], "."))}
		}
	}
	return &AssignmentError{Key: key, Reason: "empty path"}
}

// Retarget replaces the retargetable sub-configuration at the dotted path
// with the fresh default for tag, discarding prior overrides. Only
// file-based override layers reach this.
func (c *Config) Retarget(key, tag string) error {
	c.mustMutable()
	segs := strings.Split(key, ".")
	cur := c.root
	for i, seg := range segs {
		f, ok := cur.Field(seg)
		if !ok {
			return c.noSuchField(key, segs[:i+1])
		}
		if i == len(segs)-1 {
			retargetable, isRetargetable := f.(*Retargetable)
			if !isRetargetable {
				return &AssignmentError{Key: key, Reason: "field is not retargetable"}
			}
			if err := retargetable.Retarget(tag); err != nil {
				return &AssignmentError{Key: key, Reason: err.Error()}
			}
			return nil
		}
		switch f := f.(type) {
		case *Struct:
			cur = f
		case *Retargetable:
			cur = f.Sub()
		case *Registry:
			cur = f.Active()
		case *Leaf:
			return &AssignmentError{Key: key,
				Reason: fmt.Sprintf("%q is a value, not a sub-configuration", strings.Join(segs[:i+1], "."))}
		}
	}
	return &AssignmentError{Key: key, Reason: "empty path"}
}

// setLeafFromCommandLine converts a raw command-line string to the leaf's
// type, enforcing the command-line layer limitations on list fields.
func (c *Config) setLeafFromCommandLine(key string, leaf *Leaf, raw string) error {
	if leaf.Type.IsListType() {
		elemType := leaf.Type.ElementType()
		if elemType == cty.String {
			return &LimitationError{Key: key, Reason: "list-of-string fields can only be set by override files"}
		}
		parts := strings.Split(raw, ",")
		if current := listLength(leaf.Value); len(parts) < current {
			return &LimitationError{Key: key,
				Reason: fmt.Sprintf("supplies %d of %d elements; the entire list must be given atomically", len(parts), current)}
		}
		elems := make([]cty.Value, len(parts))
		for i, part := range parts {
			v, err := convert.Convert(cty.StringVal(part), elemType)
			if err != nil {
				return &AssignmentError{Key: key, Reason: fmt.Sprintf("element %q: %v", part, err)}
			}
			elems[i] = v
		}
		leaf.Value = cty.ListVal(elems)
		return nil
	}

	v, err := convert.Convert(cty.StringVal(raw), leaf.Type)
	if err != nil {
		return &AssignmentError{Key: key, Reason: err.Error()}
	}
	leaf.Value = v
	return nil
}

// setLeafValue assigns an already-typed value, converting to the leaf type.
// Override files use this path and are exempt from command-line limitations.
func (c *Config) setLeafValue(key string, leaf *Leaf, val cty.Value) error {
	c.mustMutable()
	v, err := convert.Convert(val, leaf.Type)
	if err != nil {
		return &AssignmentError{Key: key, Reason: err.Error()}
	}
	leaf.Value = v
	return nil
}

func listLength(v cty.Value) int {
	if v.IsNull() || !v.IsKnown() {
		return 0
	}
	return v.LengthInt()
}

func (c *Config) noSuchField(key string, prefix []string) error {
	return &AssignmentError{Key: key, Reason: fmt.Sprintf("no such field %q", strings.Join(prefix, "."))}
}

// Walk visits every leaf in declaration order, depth first, calling fn with
// the dotted path, documentation, and current value. Retargetable fields
// contribute their active implementation's leaves; registry fields
// contribute a synthetic <path>.name entry followed by the active entry's
// leaves.
func (c *Config) Walk(fn func(path, doc string, value cty.Value)) {
	walkStruct("", c.root, fn)
}

func walkStruct(prefix string, s *Struct, fn func(path, doc string, value cty.Value)) {
	for _, name := range s.Names() {
		f, _ := s.Field(name)
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		switch f := f.(type) {
		case *Leaf:
			fn(path, f.Doc, f.Value)
		case *Struct:
			walkStruct(path, f, fn)
		case *Retargetable:
			walkStruct(path, f.Sub(), fn)
		case *Registry:
			fn(path+"."+registryNameField, f.Doc, cty.StringVal(f.ActiveName()))
			walkStruct(path, f.Active(), fn)
		}
	}
}

// SubtaskKind classifies the entries reported by WalkSubtasks.
type SubtaskKind string

const (
	KindRetargetable SubtaskKind = "subtask"
	KindRegistry     SubtaskKind = "registry"
)

// WalkSubtasks visits every retargetable and registry field in declaration
// order, reporting its dotted path, kind, and active tag. Used by --show
// tasks.
func (c *Config) WalkSubtasks(fn func(path string, kind SubtaskKind, active string)) {
	walkSubtasks("", c.root, fn)
}

func walkSubtasks(prefix string, s *Struct, fn func(path string, kind SubtaskKind, active string)) {
	for _, name := range s.Names() {
		f, _ := s.Field(name)
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		switch f := f.(type) {
		case *Struct:
			walkSubtasks(path, f, fn)
		case *Retargetable:
			fn(path, KindRetargetable, f.Active())
			walkSubtasks(path, f.Sub(), fn)
		case *Registry:
			fn(path, KindRegistry, f.ActiveName())
			walkSubtasks(path, f.Active(), fn)
		}
	}
}
