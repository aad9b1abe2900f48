// Package repo resolves input/output/calib repository arguments, --rerun
// specs, and environment-variable root defaults into absolute paths.
//
// A repository root carries a repository.yaml marker naming its camera and,
// for chained repositories, its parent. The rerun area of a repository is
// found by walking the parent chain to the ultimate ancestor and appending
// the fixed "rerun" subdirectory.
package repo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/astrokit/pipeplan/internal/ctxlog"
	"github.com/astrokit/pipeplan/internal/fsutil"
)

const (
	// MarkerFile is the per-repository marker consumed by the resolver.
	MarkerFile = "repository.yaml"
	// RerunDirName is the fixed rerun subdirectory under a root repository.
	RerunDirName = "rerun"

	// Environment variables providing default roots for relative paths.
	EnvInputRoot  = "PIPE_INPUT_ROOT"
	EnvOutputRoot = "PIPE_OUTPUT_ROOT"
	EnvCalibRoot  = "PIPE_CALIB_ROOT"
)

// Marker is the parsed repository.yaml. Camera may be empty on chained
// repositories, which inherit it from an ancestor.
type Marker struct {
	Camera string `yaml:"camera,omitempty"`
	Parent string `yaml:"parent,omitempty"`
}

// Roots holds the environment-derived root directories. It is passed
// explicitly so resolution stays deterministic and testable without
// process-environment mutation. An empty root means "current directory".
type Roots struct {
	Input  string
	Output string
	Calib  string
}

// RootsFromEnv reads the PIPE_*_ROOT variables once.
func RootsFromEnv() Roots {
	return Roots{
		Input:  os.Getenv(EnvInputRoot),
		Output: os.Getenv(EnvOutputRoot),
		Calib:  os.Getenv(EnvCalibRoot),
	}
}

// Request carries the raw path arguments from the command line. Input
// defaults to "." when empty; the other fields default to unset.
type Request struct {
	Input  string
	Output string
	Calib  string
	Rerun  string
}

// Resolved is the outcome of path resolution. Output and Calib are empty
// when neither an argument nor an environment root supplied them.
type Resolved struct {
	Input  string
	Output string
	Calib  string
	Camera string
}

// Resolver resolves repository paths against a fixed set of roots.
type Resolver struct {
	roots Roots
}

func NewResolver(roots Roots) *Resolver {
	return &Resolver{roots: roots}
}

// Resolve turns the raw request into absolute repository paths, applying
// rerun chaining and reading the camera name from the input marker chain.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Resolved, error) {
	log := ctxlog.FromContext(ctx)

	rawInput := req.Input
	if rawInput == "" {
		rawInput = "."
	}
	input, err := resolveSlot(rawInput, r.roots.Input)
	if err != nil {
		return nil, err
	}
	if err := checkRepository(input); err != nil {
		return nil, err
	}

	res := &Resolved{Input: input}

	if req.Output != "" {
		if res.Output, err = resolveSlot(req.Output, r.roots.Output); err != nil {
			return nil, err
		}
	} else if r.roots.Output != "" {
		if res.Output, err = filepath.Abs(r.roots.Output); err != nil {
			return nil, err
		}
	}

	if req.Calib != "" {
		if res.Calib, err = resolveSlot(req.Calib, r.roots.Calib); err != nil {
			return nil, err
		}
	} else if r.roots.Calib != "" {
		if res.Calib, err = filepath.Abs(r.roots.Calib); err != nil {
			return nil, err
		}
	}

	if req.Rerun != "" {
		if req.Output != "" {
			return nil, &RerunConflictError{
				Rerun:  req.Rerun,
				Reason: fmt.Sprintf("--output %q also names the output location", req.Output),
			}
		}
		if err := r.applyRerun(ctx, req.Rerun, res); err != nil {
			return nil, err
		}
	}

	camera, err := cameraForRepository(res.Input)
	if err != nil {
		return nil, err
	}
	res.Camera = camera

	log.Debug("repository paths resolved.",
		"input", res.Input, "output", res.Output, "calib", res.Calib, "camera", res.Camera)
	return res, nil
}

// applyRerun resolves a rerun spec against the input repository's rerun
// root and rewrites the input/output slots accordingly.
func (r *Resolver) applyRerun(ctx context.Context, spec string, res *Resolved) error {
	parts := strings.Split(spec, ":")
	if len(parts) > 2 {
		return &RerunConflictError{Rerun: spec, Reason: "at most one ':' is allowed"}
	}

	root, err := rerunRoot(res.Input)
	if err != nil {
		return err
	}
	resolve := func(part string) string {
		if filepath.IsAbs(part) {
			return filepath.Clean(part)
		}
		return filepath.Join(root, part)
	}

	if len(parts) == 2 {
		inputRerun := resolve(parts[0])
		if !fsutil.IsDir(inputRerun) {
			return &NotFoundError{Path: inputRerun, Reason: "input rerun does not exist"}
		}
		// Reads act on the link target, not the link.
		if res.Input, err = fsutil.Canonical(inputRerun); err != nil {
			return err
		}
		res.Output = resolve(parts[1])
	} else {
		res.Output = resolve(parts[0])
		// Continuing an existing rerun: it becomes the input as well.
		if fsutil.IsDir(res.Output) {
			if res.Input, err = fsutil.Canonical(res.Output); err != nil {
				return err
			}
		}
	}

	ctxlog.FromContext(ctx).Debug("rerun applied.",
		"spec", spec, "rerunRoot", root, "input", res.Input, "output", res.Output)
	return nil
}

// resolveSlot joins a relative path onto its root (or the working directory
// when the root is unset) and returns the absolute form. Absolute paths
// ignore the root.
func resolveSlot(path, root string) (string, error) {
	if !filepath.IsAbs(path) && root != "" {
		path = filepath.Join(root, path)
	}
	return filepath.Abs(path)
}

// checkRepository verifies that path is a directory holding a marker file.
func checkRepository(path string) error {
	if !fsutil.IsDir(path) {
		return &NotFoundError{Path: path, Reason: "no such directory"}
	}
	if !fsutil.IsFile(filepath.Join(path, MarkerFile)) {
		return &NotFoundError{Path: path, Reason: "missing " + MarkerFile}
	}
	return nil
}

// readMarker parses the repository.yaml under the given repository root.
func readMarker(repoPath string) (*Marker, error) {
	data, err := os.ReadFile(filepath.Join(repoPath, MarkerFile))
	if err != nil {
		return nil, &NotFoundError{Path: repoPath, Reason: "missing " + MarkerFile}
	}
	var m Marker
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, &NotFoundError{Path: repoPath, Reason: fmt.Sprintf("malformed %s: %v", MarkerFile, err)}
	}
	return &m, nil
}

// walkChain visits the repository and each ancestor in order, detecting
// parent-link cycles over canonical paths.
func walkChain(repoPath string, visit func(path string, m *Marker) (stop bool, err error)) error {
	seen := map[string]bool{}
	var chain []string
	current := repoPath
	for {
		canon, err := fsutil.Canonical(current)
		if err != nil {
			return err
		}
		if seen[canon] {
			return &CycleError{Chain: append(chain, canon)}
		}
		seen[canon] = true
		chain = append(chain, canon)

		m, err := readMarker(canon)
		if err != nil {
			return err
		}
		stop, err := visit(canon, m)
		if err != nil || stop {
			return err
		}
		if m.Parent == "" {
			return nil
		}
		parent := m.Parent
		if !filepath.IsAbs(parent) {
			parent = filepath.Join(canon, parent)
		}
		if !fsutil.IsDir(parent) {
			return &NotFoundError{Path: parent, Reason: fmt.Sprintf("parent of %s does not exist", canon)}
		}
		current = parent
	}
}

// rerunRoot walks the parent chain of the given repository to its ultimate
// ancestor and appends the rerun subdirectory name.
func rerunRoot(repoPath string) (string, error) {
	var last string
	err := walkChain(repoPath, func(path string, m *Marker) (bool, error) {
		last = path
		return false, nil
	})
	if err != nil {
		return "", err
	}
	return filepath.Join(last, RerunDirName), nil
}

// cameraForRepository returns the camera named by the first marker in the
// parent chain that carries one. Chained repositories inherit the camera of
// their ancestor.
func cameraForRepository(repoPath string) (string, error) {
	var camera string
	err := walkChain(repoPath, func(path string, m *Marker) (bool, error) {
		if m.Camera != "" {
			camera = m.Camera
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return "", err
	}
	if camera == "" {
		return "", &NotFoundError{Path: repoPath, Reason: "no repository in the parent chain names a camera"}
	}
	return camera, nil
}
