// Package project models the configured build targets: named projects
// owning branch-pinned command sequences, and the trigger tables that map
// repository-update notifications onto them.
package project

import (
	"context"
	"fmt"
	"time"

	"git.home.luguber.info/inful/docbot/internal/runner"
)

// TriggerKey identifies the builds to run when a notification source
// announces an update on a branch.
type TriggerKey struct {
	Source string
	Branch string
}

// Spec carries the constructor parameters for a Project.
type Spec struct {
	// RepositoryURL is required.
	RepositoryURL string
	// Source is the notification-source identifier this project listens
	// on. Empty means the project is only built on demand.
	Source string
	// WorkingCopy is the default fixed working-copy path for the
	// project's builds. Empty means ephemeral per-build directories.
	WorkingCopy string
}

// Project is a named repository with one or more builds. Immutable after
// construction; configuration reload replaces projects wholesale.
type Project struct {
	name    string
	spec    Spec
	targets []Target
}

// Declaration associates a project with its name for table assembly.
type Declaration struct {
	Name    string
	Project *Project
}

// New constructs a Project owning the given targets. The repository URL
// must be non-empty.
func New(name string, spec Spec, targets ...Target) (*Project, error) {
	if spec.RepositoryURL == "" {
		return nil, fmt.Errorf("project %s: repository URL must not be empty", name)
	}
	p := &Project{name: name, spec: spec, targets: targets}
	for _, t := range targets {
		t.adopt(p)
	}
	return p, nil
}

// Declare constructs a Project and returns its (name, project) pair, a
// convenience for assembling the immutable project table.
func Declare(name string, spec Spec, targets ...Target) (Declaration, error) {
	p, err := New(name, spec, targets...)
	if err != nil {
		return Declaration{}, err
	}
	return Declaration{Name: name, Project: p}, nil
}

// Name returns the project name.
func (p *Project) Name() string { return p.name }

// RepositoryURL returns the project's repository URL.
func (p *Project) RepositoryURL() string { return p.spec.RepositoryURL }

// Source returns the notification-source identifier, or "" if unbound.
func (p *Project) Source() string { return p.spec.Source }

// Targets returns the project's builds in declaration order.
func (p *Project) Targets() []Target { return p.targets }

// Triggers derives the (source, branch) trigger table for this project.
// Projects without a notification source contribute no triggers. Builds
// sharing a branch are listed in declaration order.
func (p *Project) Triggers() map[TriggerKey][]Target {
	triggers := make(map[TriggerKey][]Target)
	if p.spec.Source == "" {
		return triggers
	}
	for _, t := range p.targets {
		key := TriggerKey{Source: p.spec.Source, Branch: t.Branch()}
		triggers[key] = append(triggers[key], t)
	}
	return triggers
}

// Target is one runnable build belonging to a project.
type Target interface {
	Name() string
	Branch() string
	Project() *Project
	// Every returns the periodic rebuild interval, 0 when unscheduled.
	Every() time.Duration
	// Run performs the build, streaming output to sink.
	Run(ctx context.Context, sink runner.LineSink) error

	adopt(p *Project)
}
