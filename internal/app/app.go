// Package app wires the resolution components into the pipeplan
// application: repository resolution feeds camera lookup, camera lookup
// feeds identifier expansion and override resolution, and the plan
// assembler composes their outputs.
package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/astrokit/pipeplan/internal/camera"
	"github.com/astrokit/pipeplan/internal/cli"
	"github.com/astrokit/pipeplan/internal/ctxlog"
	"github.com/astrokit/pipeplan/internal/dataid"
	"github.com/astrokit/pipeplan/internal/plan"
	"github.com/astrokit/pipeplan/internal/repo"
	"github.com/astrokit/pipeplan/internal/taskconfig"
)

// EnvObsRoot locates the obs package when --obs is not given.
const EnvObsRoot = "PIPE_OBS_ROOT"

// App holds one invocation's dependencies: output writers, the task being
// planned, and the environment-derived roots.
type App struct {
	outW    io.Writer
	logW    io.Writer
	task    TaskDefinition
	roots   repo.Roots
	obsRoot string

	closeLog func() error
}

// New builds an App. Diagnostic output (--show, --help) goes to outW; log
// records go to logW. roots and obsRoot carry the process environment so
// resolution itself never reads ambient state.
func New(outW, logW io.Writer, task TaskDefinition, roots repo.Roots, obsRoot string) *App {
	return &App{outW: outW, logW: logW, task: task, roots: roots, obsRoot: obsRoot}
}

// Close releases the --logdest file, if one was opened.
func (a *App) Close() error {
	if a.closeLog != nil {
		return a.closeLog()
	}
	return nil
}

// Resolve runs the full resolution pipeline and returns the assembled
// execution plan. proceed is false when the invocation was informational
// (--help, or --show without "run") and the caller should exit cleanly
// without executing anything.
func (a *App) Resolve(ctx context.Context, opts *cli.Options) (p *plan.ExecutionPlan, proceed bool, err error) {
	logger, closeLog, err := newLogger(opts, a.logW)
	if err != nil {
		return nil, false, err
	}
	a.closeLog = closeLog
	ctx = ctxlog.WithLogger(ctx, logger)
	// Each collaborator logs under its own component name so --loglevel
	// component=level thresholds apply.
	scoped := func(component string) context.Context {
		return ctxlog.WithLogger(ctx, logger.With(componentKey, component))
	}

	if opts.Help {
		a.printHelp(ctx, opts)
		return nil, false, nil
	}
	if opts.Input == "" {
		return nil, false, &cli.ExitError{Code: 2, Message: "an input repository path is required (see --help)"}
	}

	obsPath := opts.Obs
	if obsPath == "" {
		obsPath = a.obsRoot
	}
	if obsPath == "" {
		return nil, false, &cli.ExitError{Code: 2,
			Message: "no obs package: give --obs or set " + EnvObsRoot}
	}

	repos, err := repo.NewResolver(a.roots).Resolve(scoped("repo"), repo.Request{
		Input:  opts.Input,
		Output: opts.Output,
		Calib:  opts.Calib,
		Rerun:  opts.Rerun,
	})
	if err != nil {
		return nil, false, err
	}

	mapper, err := camera.Load(scoped("camera"), obsPath, repos.Camera)
	if err != nil {
		return nil, false, err
	}

	ids, err := dataid.Expand(opts.IDClauses, mapper)
	if err != nil {
		return nil, false, err
	}
	if len(ids) == 0 && !a.task.AllowEmptyID {
		return nil, false, &cli.ExitError{Code: 2,
			Message: fmt.Sprintf("task %s requires at least one --id clause", a.task.Name)}
	}

	cfg := a.task.NewConfig()
	if err := taskconfig.Apply(scoped("taskconfig"), cfg, taskconfig.Overrides{
		ObsPath:     obsPath,
		Camera:      mapper.Camera(),
		Task:        a.task.Name,
		Files:       opts.ConfigFiles,
		Assignments: opts.ConfigAssignments,
	}); err != nil {
		return nil, false, err
	}

	p, err = plan.Assemble(scoped("plan"), repos, mapper.Camera(), ids, cfg)
	if err != nil {
		return nil, false, err
	}

	proceed = true
	if len(opts.Show) > 0 {
		if err := a.runShow(opts, p); err != nil {
			return nil, false, err
		}
		proceed = opts.WantShow("run")
	}
	return p, proceed, nil
}

// printHelp writes the usage text and, when the input repository and its
// camera are resolvable, the valid identifier keys for that camera.
func (a *App) printHelp(ctx context.Context, opts *cli.Options) {
	cli.Usage(a.outW)
	if opts.Input == "" {
		return
	}
	repos, err := repo.NewResolver(a.roots).Resolve(ctx, repo.Request{Input: opts.Input})
	if err != nil {
		return
	}
	obsPath := opts.Obs
	if obsPath == "" {
		obsPath = a.obsRoot
	}
	mapper, err := camera.Load(ctx, obsPath, repos.Camera)
	if err != nil {
		return
	}
	fmt.Fprintf(a.outW, "\nIdentifier keys for camera %s: %s\n",
		mapper.Camera(), strings.Join(mapper.Keys(), ", "))
}
