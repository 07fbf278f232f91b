// Package buildenv materializes a working copy of a repository branch for
// a single build, supporting both ephemeral (temp) and fixed (persistent)
// directories. Ephemeral directories are removed on release regardless of
// how the build finished.
package buildenv

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/docbot/internal/logfields"
	"git.home.luguber.info/inful/docbot/internal/runner"
)

// Options describes the working copy to acquire.
type Options struct {
	// Dir is a fixed working-copy path. Empty means a fresh ephemeral
	// directory owned (and deleted) by the environment.
	Dir        string
	RepoURL    string
	Branch     string
	Submodules []string
}

// AcquireError reports a failed version-control step during acquisition.
// The ephemeral directory (if any) is already cleaned up when it surfaces.
type AcquireError struct {
	Step string
	Dir  string
	Err  error
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("acquiring build environment in %s: %s: %v", e.Dir, e.Step, e.Err)
}

func (e *AcquireError) Unwrap() error { return e.Err }

// Environment is an acquired working copy. Release must be called exactly
// once per successful Acquire; it is idempotent.
type Environment struct {
	dir       string
	ephemeral bool
	released  bool
	sink      runner.LineSink
}

// Acquire creates (or reuses) the working directory and brings it to the
// requested branch: clone-or-fetch, checkout, pull, then per-submodule
// init and update. Every step is a checked git invocation with output
// routed to sink. On any failure an ephemeral directory is deleted before
// the error propagates; partial state is never left behind.
func Acquire(ctx context.Context, opts Options, sink runner.LineSink) (*Environment, error) {
	env := &Environment{dir: opts.Dir, sink: sink}
	if env.dir == "" {
		dir, err := os.MkdirTemp("", "docbot-")
		if err != nil {
			return nil, fmt.Errorf("failed to create ephemeral build directory: %w", err)
		}
		env.dir = dir
		env.ephemeral = true
		slog.Debug("Created ephemeral build directory", logfields.Path(dir))
	}

	if err := env.checkout(ctx, opts); err != nil {
		if relErr := env.Release(); relErr != nil {
			slog.Warn("Failed to clean up build directory after acquire failure",
				logfields.Path(env.dir), logfields.Error(relErr))
		}
		return nil, err
	}
	return env, nil
}

// checkout runs the version-control sequence inside the directory.
func (e *Environment) checkout(ctx context.Context, opts Options) error {
	if err := os.MkdirAll(e.dir, 0o750); err != nil {
		return &AcquireError{Step: "mkdir", Dir: e.dir, Err: err}
	}

	checked := func(step string, argv ...string) error {
		if err := runner.RunChecked(ctx, argv, e.dir, e.sink); err != nil {
			return &AcquireError{Step: step, Dir: e.dir, Err: err}
		}
		return nil
	}

	if _, err := os.Stat(filepath.Join(e.dir, ".git")); err == nil {
		if err := checked("fetch", "git", "fetch", "origin"); err != nil {
			return err
		}
	} else {
		if err := checked("clone", "git", "clone", opts.RepoURL, e.dir); err != nil {
			return err
		}
	}

	if err := checked("checkout", "git", "checkout", opts.Branch); err != nil {
		return err
	}
	if err := checked("pull", "git", "pull"); err != nil {
		return err
	}

	for _, submodule := range opts.Submodules {
		if err := checked("submodule init", "git", "submodule", "init", submodule); err != nil {
			return err
		}
		if err := checked("submodule update", "git", "submodule", "update", submodule); err != nil {
			return err
		}
	}
	return nil
}

// Dir returns the working-copy directory.
func (e *Environment) Dir() string { return e.dir }

// Release deletes an ephemeral directory. Fixed directories are kept for
// the next build. Safe to call more than once.
func (e *Environment) Release() error {
	if e.released || !e.ephemeral {
		e.released = true
		return nil
	}
	e.released = true
	if err := os.RemoveAll(e.dir); err != nil {
		return fmt.Errorf("failed to clean up build directory: %w", err)
	}
	slog.Debug("Cleaned up ephemeral build directory", logfields.Path(e.dir))
	return nil
}
