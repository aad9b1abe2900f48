// Package taskconfig implements the task configuration tree and its
// override layers.
//
// A configuration is a tree of named fields. Each field is a typed leaf, a
// nested sub-configuration, a retargetable sub-configuration (one of several
// implementations, selected by tag, whose override history is discarded on
// retarget), or a registry (several named, independently overridable
// sub-configurations, one active at a time).
package taskconfig

import (
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Field is one node of the configuration tree.
type Field interface {
	fieldDoc() string
}

// Leaf is a typed scalar or list value.
type Leaf struct {
	Doc   string
	Type  cty.Type
	Value cty.Value
}

// NewLeaf builds a leaf with the given documentation, type, and default.
// The default must conform to the type; violations are programmer errors.
func NewLeaf(doc string, ty cty.Type, def cty.Value) *Leaf {
	val, err := convert.Convert(def, ty)
	if err != nil {
		panic(fmt.Sprintf("taskconfig: default %v does not conform to %s: %v", def, ty.FriendlyName(), err))
	}
	return &Leaf{Doc: doc, Type: ty, Value: val}
}

func (l *Leaf) fieldDoc() string { return l.Doc }

// Struct is an ordered collection of named fields.
type Struct struct {
	Doc    string
	names  []string
	fields map[string]Field
}

// NewStruct builds an empty sub-configuration.
func NewStruct(doc string) *Struct {
	return &Struct{Doc: doc, fields: map[string]Field{}}
}

// Add registers a field under name, preserving insertion order. Duplicate
// names are programmer errors. It returns the struct for chaining.
func (s *Struct) Add(name string, f Field) *Struct {
	if _, dup := s.fields[name]; dup {
		panic(fmt.Sprintf("taskconfig: field %q added twice", name))
	}
	s.names = append(s.names, name)
	s.fields[name] = f
	return s
}

// Names returns the field names in declaration order.
func (s *Struct) Names() []string { return s.names }

// Field returns the named field.
func (s *Struct) Field(name string) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

func (s *Struct) fieldDoc() string { return s.Doc }

// Factory constructs the default sub-configuration for one implementation
// tag of a retargetable or registry field.
type Factory func() *Struct

// Retargetable is a sub-configuration whose implementation is selected by
// tag. Retargeting replaces the sub-tree with the fresh default for the new
// tag, discarding every override applied before the retarget.
type Retargetable struct {
	Doc     string
	Targets map[string]Factory

	active string
	sub    *Struct
}

// NewRetargetable builds a retargetable field with the given initial tag.
func NewRetargetable(doc, active string, targets map[string]Factory) *Retargetable {
	factory, ok := targets[active]
	if !ok {
		panic(fmt.Sprintf("taskconfig: unknown initial target %q", active))
	}
	return &Retargetable{Doc: doc, Targets: targets, active: active, sub: factory()}
}

// Active returns the current implementation tag.
func (r *Retargetable) Active() string { return r.active }

// Sub returns the current implementation's sub-configuration.
func (r *Retargetable) Sub() *Struct { return r.sub }

// Retarget replaces the sub-configuration with a freshly constructed
// default for tag. This is destructive: prior overrides do not survive.
func (r *Retargetable) Retarget(tag string) error {
	factory, ok := r.Targets[tag]
	if !ok {
		return fmt.Errorf("unknown target %q; known targets: %v", tag, tagNames(r.Targets))
	}
	r.active = tag
	r.sub = factory()
	return nil
}

func (r *Retargetable) fieldDoc() string { return r.Doc }

// Registry selects among named, independently overridable
// sub-configurations. Switching the active name keeps every entry's
// overrides; only the active entry is used at run time.
type Registry struct {
	Doc     string
	Targets map[string]Factory

	active  string
	entries map[string]*Struct
}

// NewRegistry builds a registry field with the given initially active name.
func NewRegistry(doc, active string, targets map[string]Factory) *Registry {
	r := &Registry{Doc: doc, Targets: targets, entries: map[string]*Struct{}}
	if err := r.SetActive(active); err != nil {
		panic("taskconfig: " + err.Error())
	}
	return r
}

// ActiveName returns the name of the active entry.
func (r *Registry) ActiveName() string { return r.active }

// SetActive selects the named entry, instantiating it on first use.
// Overrides on other entries persist untouched.
func (r *Registry) SetActive(name string) error {
	if _, err := r.Entry(name); err != nil {
		return err
	}
	r.active = name
	return nil
}

// Entry returns the named entry, instantiating its default on first use.
func (r *Registry) Entry(name string) (*Struct, error) {
	if entry, ok := r.entries[name]; ok {
		return entry, nil
	}
	factory, ok := r.Targets[name]
	if !ok {
		return nil, fmt.Errorf("unknown registry entry %q; known entries: %v", name, tagNames(r.Targets))
	}
	entry := factory()
	r.entries[name] = entry
	return entry, nil
}

// Active returns the active entry's sub-configuration.
func (r *Registry) Active() *Struct {
	return r.entries[r.active]
}

func (r *Registry) fieldDoc() string { return r.Doc }

func tagNames(targets map[string]Factory) []string {
	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
