package taskconfig

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/zclconf/go-cty/cty"
	"go.starlark.net/starlark"
)

// This file binds the configuration tree into starlark so that override
// files can be ordinary scripts mutating a predeclared `config` value:
//
//	config.threshold = 42.5
//	config.background.binSize = 256
//	config.calibrate.retarget("fast")
//	config.select.name = "deep"
//	config.select["wide"].margin = 2
//
// File-based layers are exempt from the command-line limitations: they may
// retarget, set string lists, and address non-active registry entries.

// starStruct wraps a *Struct as a starlark value with attribute get/set.
type starStruct struct {
	cfg  *Config
	node *Struct
	path string
}

// wrapConfig returns the root `config` value for an override script.
func wrapConfig(cfg *Config) *starStruct {
	return &starStruct{cfg: cfg, node: cfg.root, path: "config"}
}

func (s *starStruct) String() string        { return "<" + s.path + ">" }
func (s *starStruct) Type() string          { return "task_config" }
func (s *starStruct) Freeze()               {}
func (s *starStruct) Truth() starlark.Bool  { return starlark.True }
func (s *starStruct) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: task_config") }

func (s *starStruct) child(name string) string { return s.path + "." + name }

func (s *starStruct) Attr(name string) (starlark.Value, error) {
	f, ok := s.node.Field(name)
	if !ok {
		return nil, starlark.NoSuchAttrError(
			fmt.Sprintf("%s has no field %q (fields: %v)", s.path, name, s.node.Names()))
	}
	switch f := f.(type) {
	case *Leaf:
		return ctyToStarlark(f.Value)
	case *Struct:
		return &starStruct{cfg: s.cfg, node: f, path: s.child(name)}, nil
	case *Retargetable:
		return &starRetarget{cfg: s.cfg, node: f, path: s.child(name)}, nil
	case *Registry:
		return &starRegistry{cfg: s.cfg, node: f, path: s.child(name)}, nil
	}
	return nil, fmt.Errorf("%s.%s: unsupported field kind", s.path, name)
}

func (s *starStruct) AttrNames() []string {
	names := append([]string(nil), s.node.Names()...)
	sort.Strings(names)
	return names
}

func (s *starStruct) SetField(name string, val starlark.Value) error {
	f, ok := s.node.Field(name)
	if !ok {
		return &AssignmentError{Key: s.child(name), Reason: "no such field"}
	}
	leaf, isLeaf := f.(*Leaf)
	if !isLeaf {
		return &AssignmentError{Key: s.child(name),
			Reason: "cannot replace a sub-configuration; set its fields, or retarget it"}
	}
	v, err := starlarkToCty(val)
	if err != nil {
		return &AssignmentError{Key: s.child(name), Reason: err.Error()}
	}
	return s.cfg.setLeafValue(s.child(name), leaf, v)
}

// starRetarget wraps a retargetable field. Reads and writes of the active
// implementation's fields pass through; retarget(tag) swaps the
// implementation and discards prior overrides.
type starRetarget struct {
	cfg  *Config
	node *Retargetable
	path string
}

func (r *starRetarget) String() string        { return "<" + r.path + ">" }
func (r *starRetarget) Type() string          { return "task_subtask" }
func (r *starRetarget) Freeze()               {}
func (r *starRetarget) Truth() starlark.Bool  { return starlark.True }
func (r *starRetarget) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: task_subtask") }

func (r *starRetarget) sub() *starStruct {
	return &starStruct{cfg: r.cfg, node: r.node.Sub(), path: r.path}
}

func (r *starRetarget) Attr(name string) (starlark.Value, error) {
	switch name {
	case "retarget":
		return starlark.NewBuiltin("retarget", r.retarget), nil
	case "target":
		return starlark.String(r.node.Active()), nil
	}
	return r.sub().Attr(name)
}

func (r *starRetarget) AttrNames() []string {
	names := append(r.sub().AttrNames(), "retarget", "target")
	sort.Strings(names)
	return names
}

func (r *starRetarget) SetField(name string, val starlark.Value) error {
	return r.sub().SetField(name, val)
}

func (r *starRetarget) retarget(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var tag string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "target", &tag); err != nil {
		return nil, err
	}
	r.cfg.mustMutable()
	if err := r.node.Retarget(tag); err != nil {
		return nil, &AssignmentError{Key: r.path, Reason: err.Error()}
	}
	return starlark.None, nil
}

// starRegistry wraps a registry field. `name` selects the active entry
// (keeping every entry's overrides); indexing addresses any named entry;
// `active` is the active entry.
type starRegistry struct {
	cfg  *Config
	node *Registry
	path string
}

func (r *starRegistry) String() string        { return "<" + r.path + ">" }
func (r *starRegistry) Type() string          { return "task_registry" }
func (r *starRegistry) Freeze()               {}
func (r *starRegistry) Truth() starlark.Bool  { return starlark.True }
func (r *starRegistry) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: task_registry") }

func (r *starRegistry) Attr(name string) (starlark.Value, error) {
	switch name {
	case registryNameField:
		return starlark.String(r.node.ActiveName()), nil
	case "active":
		return &starStruct{cfg: r.cfg, node: r.node.Active(), path: r.path}, nil
	}
	return nil, starlark.NoSuchAttrError(
		fmt.Sprintf("%s has no attribute %q; index entries as %s[\"entry\"]", r.path, name, r.path))
}

func (r *starRegistry) AttrNames() []string {
	return []string{"active", registryNameField}
}

func (r *starRegistry) SetField(name string, val starlark.Value) error {
	if name != registryNameField {
		return &AssignmentError{Key: r.path + "." + name,
			Reason: fmt.Sprintf("only %s.%s can be assigned on a registry field", r.path, registryNameField)}
	}
	s, ok := starlark.AsString(val)
	if !ok {
		return &AssignmentError{Key: r.path + "." + registryNameField, Reason: "entry name must be a string"}
	}
	r.cfg.mustMutable()
	if err := r.node.SetActive(s); err != nil {
		return &AssignmentError{Key: r.path + "." + registryNameField, Reason: err.Error()}
	}
	return nil
}

// Get implements starlark.Mapping so scripts can address non-active
// entries: config.select["wide"].margin = 2.
func (r *starRegistry) Get(k starlark.Value) (starlark.Value, bool, error) {
	name, ok := starlark.AsString(k)
	if !ok {
		return nil, false, fmt.Errorf("%s: registry entries are indexed by string, got %s", r.path, k.Type())
	}
	entry, err := r.node.Entry(name)
	if err != nil {
		return nil, false, &AssignmentError{Key: r.path, Reason: err.Error()}
	}
	return &starStruct{cfg: r.cfg, node: entry, path: fmt.Sprintf("%s[%q]", r.path, name)}, true, nil
}

// ctyToStarlark converts a leaf value for reading inside a script.
func ctyToStarlark(v cty.Value) (starlark.Value, error) {
	if v.IsNull() {
		return starlark.None, nil
	}
	ty := v.Type()
	switch {
	case ty == cty.Bool:
		return starlark.Bool(v.True()), nil
	case ty == cty.String:
		return starlark.String(v.AsString()), nil
	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return starlark.MakeInt64(i), nil
			}
		}
		f, _ := bf.Float64()
		return starlark.Float(f), nil
	case ty.IsListType():
		var elems []starlark.Value
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			sv, err := ctyToStarlark(ev)
			if err != nil {
				return nil, err
			}
			elems = append(elems, sv)
		}
		return starlark.NewList(elems), nil
	}
	return nil, fmt.Errorf("unsupported config value type %s", ty.FriendlyName())
}

// starlarkToCty converts a script value for assignment; the caller converts
// the result to the leaf's declared type.
func starlarkToCty(v starlark.Value) (cty.Value, error) {
	switch v := v.(type) {
	case starlark.NoneType:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case starlark.Bool:
		return cty.BoolVal(bool(v)), nil
	case starlark.String:
		return cty.StringVal(string(v)), nil
	case starlark.Int:
		if i, ok := v.Int64(); ok {
			return cty.NumberIntVal(i), nil
		}
		return cty.NumberVal(new(big.Float).SetInt(v.BigInt())), nil
	case starlark.Float:
		return cty.NumberFloatVal(float64(v)), nil
	case *starlark.List:
		return sequenceToCty(v)
	case starlark.Tuple:
		return sequenceToCty(v)
	}
	return cty.NilVal, fmt.Errorf("unsupported value of type %s", v.Type())
}

func sequenceToCty(seq starlark.Sequence) (cty.Value, error) {
	if seq.Len() == 0 {
		return cty.EmptyTupleVal, nil
	}
	elems := make([]cty.Value, 0, seq.Len())
	it := seq.Iterate()
	defer it.Done()
	var ev starlark.Value
	for it.Next(&ev) {
		cv, err := starlarkToCty(ev)
		if err != nil {
			return cty.NilVal, err
		}
		elems = append(elems, cv)
	}
	return cty.TupleVal(elems), nil
}
