// Package plan assembles the outputs of the resolution components into one
// immutable execution plan.
package plan

import (
	"context"
	"fmt"

	"github.com/astrokit/pipeplan/internal/ctxlog"
	"github.com/astrokit/pipeplan/internal/dataid"
	"github.com/astrokit/pipeplan/internal/repo"
	"github.com/astrokit/pipeplan/internal/taskconfig"
)

// ExecutionPlan is the fully resolved unit handed to the execution layer:
// concrete repository paths, the ordered identifier sequence, and the merged
// task configuration. It is immutable once assembled, so the identifier
// sequence and configuration may be shared read-only across concurrent
// workers without locking.
type ExecutionPlan struct {
	InputRepo  string
	OutputRepo string
	CalibRepo  string
	Camera     string

	Identifiers []dataid.Identifier
	Config      *taskconfig.Config
}

// CameraMismatchError reports a configuration merged for a different camera
// than the one the input repository implies.
type CameraMismatchError struct {
	RepoCamera   string
	ConfigCamera string
}

func (e *CameraMismatchError) Error() string {
	return fmt.Sprintf("input repository implies camera %q but configuration was merged for camera %q",
		e.RepoCamera, e.ConfigCamera)
}

// Assemble builds the plan, cross-checking that the camera used for
// configuration overrides matches the input repository's camera, and
// freezes the configuration. Assembly either fully succeeds or returns an
// error with no partial plan.
func Assemble(ctx context.Context, repos *repo.Resolved, configCamera string, ids []dataid.Identifier, cfg *taskconfig.Config) (*ExecutionPlan, error) {
	if repos.Camera != configCamera {
		return nil, &CameraMismatchError{RepoCamera: repos.Camera, ConfigCamera: configCamera}
	}

	cfg.Freeze()
	p := &ExecutionPlan{
		InputRepo:   repos.Input,
		OutputRepo:  repos.Output,
		CalibRepo:   repos.Calib,
		Camera:      repos.Camera,
		Identifiers: append([]dataid.Identifier(nil), ids...),
		Config:      cfg,
	}

	ctxlog.FromContext(ctx).Debug("execution plan assembled.",
		"input", p.InputRepo, "output", p.OutputRepo, "calib", p.CalibRepo,
		"camera", p.Camera, "identifiers", len(p.Identifiers))
	return p, nil
}
