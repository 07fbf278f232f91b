package project

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"git.home.luguber.info/inful/docbot/internal/buildenv"
	"git.home.luguber.info/inful/docbot/internal/logfields"
	"git.home.luguber.info/inful/docbot/internal/runner"
)

// DefaultBranch is checked out when a build does not pin one.
const DefaultBranch = "master"

// defaultCommands is the command sequence used when none is configured.
func defaultCommands() [][]string { return [][]string{{"make"}} }

// builddirPlaceholder is substituted with the build directory in a
// BuildAndMove source template.
const builddirPlaceholder = "{builddir}"

// BuildSpec carries the constructor parameters for a Build.
type BuildSpec struct {
	Branch      string        // defaults to DefaultBranch
	Submodules  []string      // initialized and updated in order
	Commands    [][]string    // defaults to a single "make"
	WorkingCopy string        // fixed directory override, "" = project default
	Every       time.Duration // periodic rebuild interval, 0 = none
}

// Build is a named, branch-pinned command sequence executed inside a build
// environment. It belongs to exactly one Project.
type Build struct {
	name    string
	spec    BuildSpec
	project *Project
}

// NewBuild constructs a Build, applying branch and command defaults.
func NewBuild(name string, spec BuildSpec) *Build {
	if spec.Branch == "" {
		spec.Branch = DefaultBranch
	}
	if len(spec.Commands) == 0 {
		spec.Commands = defaultCommands()
	}
	return &Build{name: name, spec: spec}
}

func (b *Build) Name() string         { return b.name }
func (b *Build) Branch() string       { return b.spec.Branch }
func (b *Build) Project() *Project    { return b.project }
func (b *Build) Every() time.Duration { return b.spec.Every }

func (b *Build) adopt(p *Project) { b.project = p }

// environmentOptions resolves the working copy against the project
// default and combines it with the build's branch and submodules.
func (b *Build) environmentOptions() buildenv.Options {
	dir := b.spec.WorkingCopy
	if dir == "" {
		dir = b.project.spec.WorkingCopy
	}
	return buildenv.Options{
		Dir:        dir,
		RepoURL:    b.project.spec.RepositoryURL,
		Branch:     b.spec.Branch,
		Submodules: b.spec.Submodules,
	}
}

// Run acquires the build environment, executes the configured commands in
// order, and releases the environment on every exit path. The first
// failing step aborts the rest and surfaces unchanged.
func (b *Build) Run(ctx context.Context, sink runner.LineSink) error {
	return b.inEnvironment(ctx, sink, b.execute)
}

// inEnvironment brackets fn with environment acquisition and release.
func (b *Build) inEnvironment(ctx context.Context, sink runner.LineSink, fn func(context.Context, *buildenv.Environment, runner.LineSink) error) error {
	env, err := buildenv.Acquire(ctx, b.environmentOptions(), sink)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := env.Release(); relErr != nil {
			slog.Warn("Failed to release build environment",
				logfields.Build(b.name), logfields.Error(relErr))
		}
	}()

	if head, headErr := env.Head(); headErr == nil {
		slog.Info("Build environment ready",
			logfields.Build(b.name), logfields.Branch(b.spec.Branch),
			slog.String("commit", head))
	}

	return fn(ctx, env, sink)
}

// execute runs the configured command sequence inside the environment.
func (b *Build) execute(ctx context.Context, env *buildenv.Environment, sink runner.LineSink) error {
	for _, argv := range b.spec.Commands {
		if err := runner.RunChecked(ctx, argv, env.Dir(), sink); err != nil {
			return err
		}
	}
	return nil
}

// BuildAndMove is a Build that relocates a directory to a destination
// path after a successful run, replacing any prior contents there.
type BuildAndMove struct {
	Build
	moveTo   string
	moveFrom string
}

// NewBuildAndMove constructs a BuildAndMove. The destination is required;
// moveFrom may reference the build directory via {builddir} and defaults
// to the build directory itself.
func NewBuildAndMove(name string, spec BuildSpec, moveTo, moveFrom string) (*BuildAndMove, error) {
	if moveTo == "" {
		return nil, fmt.Errorf("build %s: required parameter move_to missing or empty", name)
	}
	return &BuildAndMove{Build: *NewBuild(name, spec), moveTo: moveTo, moveFrom: moveFrom}, nil
}

// Run executes the command sequence and, only when every command
// succeeded, removes the destination and moves the resolved source there.
func (b *BuildAndMove) Run(ctx context.Context, sink runner.LineSink) error {
	return b.inEnvironment(ctx, sink, func(ctx context.Context, env *buildenv.Environment, sink runner.LineSink) error {
		if err := b.execute(ctx, env, sink); err != nil {
			return err
		}
		return b.move(ctx, env, sink)
	})
}

// move replaces the destination with the resolved source directory.
func (b *BuildAndMove) move(ctx context.Context, env *buildenv.Environment, sink runner.LineSink) error {
	source := env.Dir()
	if b.moveFrom != "" {
		source = strings.ReplaceAll(b.moveFrom, builddirPlaceholder, env.Dir())
	}
	if err := runner.RunChecked(ctx, []string{"rm", "-rf", b.moveTo}, env.Dir(), sink); err != nil {
		return err
	}
	return runner.RunChecked(ctx, []string{"mv", source, b.moveTo}, env.Dir(), sink)
}
