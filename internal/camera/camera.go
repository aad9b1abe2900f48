// Package camera loads camera description files and exposes the identifier
// key domains the active camera defines.
//
// A camera description lives in the obs package at cameras/<name>.hcl:
//
//	camera "testcam" {
//	  key "visit" {
//	    values = ["1", "2", "3"]
//	  }
//	  key "ccd" {}
//	}
//
// A key block without a values attribute accepts arbitrary values; the data
// repository validates those at read time, not this package.
package camera

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/astrokit/pipeplan/internal/ctxlog"
	"github.com/astrokit/pipeplan/internal/fsutil"
)

// camerasDir is the subdirectory of the obs package holding descriptions.
const camerasDir = "cameras"

// keySchema is the HCL shape of one key block.
type keySchema struct {
	Name   string   `hcl:"name,label"`
	Values []string `hcl:"values,optional"`
}

// cameraSchema is the HCL shape of the camera block.
type cameraSchema struct {
	Name string       `hcl:"name,label"`
	Keys []*keySchema `hcl:"key,block"`
}

type fileSchema struct {
	Camera *cameraSchema `hcl:"camera,block"`
}

// Mapper holds one camera's identifier key domains. It satisfies
// dataid.Domain and is read-only after Load.
type Mapper struct {
	name    string
	keys    []string
	domains map[string][]string
}

// NotFoundError reports an obs package that defines no description for the
// requested camera, or a malformed description file.
type NotFoundError struct {
	Camera string
	Path   string
	Reason string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("camera %q (%s): %s", e.Camera, e.Path, e.Reason)
}

// Load reads the description for the named camera from the obs package.
func Load(ctx context.Context, obsPath, name string) (*Mapper, error) {
	path := filepath.Join(obsPath, camerasDir, name+".hcl")
	if !fsutil.IsFile(path) {
		return nil, &NotFoundError{Camera: name, Path: path, Reason: "no description file"}
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, &NotFoundError{Camera: name, Path: path, Reason: diags.Error()}
	}
	var root fileSchema
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, &NotFoundError{Camera: name, Path: path, Reason: diags.Error()}
	}
	if root.Camera == nil {
		return nil, &NotFoundError{Camera: name, Path: path, Reason: "missing camera block"}
	}
	if root.Camera.Name != name {
		return nil, &NotFoundError{Camera: name, Path: path,
			Reason: fmt.Sprintf("file describes camera %q", root.Camera.Name)}
	}

	m := &Mapper{name: name, domains: make(map[string][]string, len(root.Camera.Keys))}
	for _, key := range root.Camera.Keys {
		if _, dup := m.domains[key.Name]; dup {
			return nil, &NotFoundError{Camera: name, Path: path,
				Reason: fmt.Sprintf("key %q declared twice", key.Name)}
		}
		m.keys = append(m.keys, key.Name)
		m.domains[key.Name] = key.Values
	}

	ctxlog.FromContext(ctx).Debug("camera description loaded.",
		"camera", name, "path", path, "keys", len(m.keys))
	return m, nil
}

// Camera returns the camera name.
func (m *Mapper) Camera() string { return m.name }

// Keys returns the valid identifier keys in declaration order.
func (m *Mapper) Keys() []string { return m.keys }

// HasKey reports whether key is a valid identifier key.
func (m *Mapper) HasKey(key string) bool {
	_, ok := m.domains[key]
	return ok
}

// Values returns the enumerated legal values for key and true, or nil and
// false when the key accepts arbitrary values.
func (m *Mapper) Values(key string) ([]string, bool) {
	vals := m.domains[key]
	if len(vals) == 0 {
		return nil, false
	}
	return vals, true
}
