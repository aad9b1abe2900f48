package taskconfig

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/astrokit/pipeplan/internal/ctxlog"
	"github.com/astrokit/pipeplan/internal/fsutil"
)

const (
	// overrideDir is the subdirectory of the obs package holding override
	// files.
	overrideDir = "config"
	// overrideExt is the override-file extension.
	overrideExt = ".star"
)

// Overrides names the four override layers for one task, in the fixed order
// they are applied: the obs-package auto-load file, the camera auto-load
// file, each explicit --configfile in command-line order, and each --config
// assignment in command-line order. Later layers win on conflicting keys;
// retargeting additionally discards everything applied before it.
type Overrides struct {
	ObsPath string
	Camera  string
	Task    string

	Files       []string
	Assignments []string
}

// Apply merges all four layers into cfg. The two auto-load layers are
// silently skipped when their file is absent; an absent explicit file is a
// FileNotFoundError.
func Apply(ctx context.Context, cfg *Config, ov Overrides) error {
	log := ctxlog.FromContext(ctx)

	if ov.ObsPath != "" && ov.Task != "" {
		autoFiles := []string{
			filepath.Join(ov.ObsPath, overrideDir, ov.Task+overrideExt),
		}
		if ov.Camera != "" {
			autoFiles = append(autoFiles,
				filepath.Join(ov.ObsPath, overrideDir, ov.Camera, ov.Task+overrideExt))
		}
		for _, path := range autoFiles {
			if !fsutil.IsFile(path) {
				log.Debug("no auto-load override file.", "path", path)
				continue
			}
			log.Debug("applying auto-load override file.", "path", path)
			if err := cfg.ApplyFile(ctx, path); err != nil {
				return err
			}
		}
	}

	for _, path := range ov.Files {
		if !fsutil.IsFile(path) {
			return &FileNotFoundError{Path: path}
		}
		log.Debug("applying override file.", "path", path)
		if err := cfg.ApplyFile(ctx, path); err != nil {
			return err
		}
	}

	for _, assignment := range ov.Assignments {
		key, value, ok := strings.Cut(assignment, "=")
		if !ok || key == "" {
			return &AssignmentError{Key: assignment, Reason: "expected key=value"}
		}
		log.Debug("applying command-line override.", "key", key)
		if err := cfg.Set(key, value); err != nil {
			return err
		}
	}
	return nil
}

// ApplyFile executes one override script against the configuration. The
// script receives the tree as a predeclared `config` value.
func (c *Config) ApplyFile(ctx context.Context, path string) error {
	c.mustMutable()
	log := ctxlog.FromContext(ctx)
	thread := &starlark.Thread{
		Name: path,
		Print: func(_ *starlark.Thread, msg string) {
			log.Info("override file output.", "file", path, "msg", msg)
		},
	}
	predeclared := starlark.StringDict{"config": wrapConfig(c)}
	if _, err := starlark.ExecFileOptions(&syntax.FileOptions{}, thread, path, nil, predeclared); err != nil {
		return fmt.Errorf("config override file %s: %w", path, err)
	}
	return nil
}
