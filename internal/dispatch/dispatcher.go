// Package dispatch maps repository-update notifications onto configured
// builds and runs them, announcing progress to the chat transport.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docbot/internal/config"
	"git.home.luguber.info/inful/docbot/internal/logfields"
	"git.home.luguber.info/inful/docbot/internal/project"
)

// Announcer is the transport-facing output of the dispatcher: plain log
// lines, status subject updates, and operator alerts. Implementations
// must tolerate being called from the rebuild worker goroutine.
type Announcer interface {
	Log(line string)
	Status(subject string)
	OperatorAlert(message string)
}

// UnknownProjectError reports a rebuild request for an unconfigured
// project name.
type UnknownProjectError struct {
	Name string
}

func (e *UnknownProjectError) Error() string {
	return fmt.Sprintf("Unknown project: %s", e.Name)
}

// Dispatcher owns the configuration snapshot and the rebuild pipeline.
type Dispatcher struct {
	configPath string
	announcer  Announcer
	// submit hands a build to the execution queue. Defaults to running
	// inline; the daemon injects its worker queue here.
	submit func(project.Target)

	snap atomic.Pointer[Snapshot]

	// blacklist is append-only between reloads: unauthorized senders get
	// one denial reply, then silence.
	mu        sync.Mutex
	blacklist map[string]bool

	commands map[string]CommandHandler
}

// Options configures a Dispatcher.
type Options struct {
	ConfigPath string
	Announcer  Announcer
	// Submit enqueues a build for execution. Nil means rebuild inline.
	Submit func(project.Target)
}

// New creates a dispatcher and loads the initial configuration.
func New(opts Options) (*Dispatcher, error) {
	d := &Dispatcher{
		configPath: opts.ConfigPath,
		announcer:  opts.Announcer,
		submit:     opts.Submit,
		blacklist:  make(map[string]bool),
	}
	if d.submit == nil {
		d.submit = func(t project.Target) { _ = d.Rebuild(context.Background(), t) }
	}
	d.commands = defaultCommands(d)
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload re-reads the configuration document. On any error the previous
// snapshot stays active and the error is returned to the caller. On
// success the snapshot is replaced atomically and the blacklist reset.
func (d *Dispatcher) Reload() error {
	cfg, err := config.Load(d.configPath)
	if err != nil {
		return err
	}
	decls, err := cfg.Assemble()
	if err != nil {
		return &config.Error{Path: d.configPath, Err: err}
	}

	snap := NewSnapshot(cfg.Authorized, decls)
	d.snap.Store(snap)

	d.mu.Lock()
	d.blacklist = make(map[string]bool)
	d.mu.Unlock()

	slog.Info("Configuration loaded",
		slog.Int("projects", len(snap.Projects)),
		slog.Int("triggers", len(snap.Table)),
		slog.Int("authorized", len(snap.Authorized)))
	return nil
}

// Snapshot returns the current configuration snapshot.
func (d *Dispatcher) Snapshot() *Snapshot {
	return d.snap.Load()
}

// Authorize gates a sender identity. Unauthorized senders receive the
// denial reply exactly once; repeats are silently dropped.
func (d *Dispatcher) Authorize(identity string) (reply string, ok bool) {
	if d.Snapshot().Authorized[identity] {
		return "", true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.blacklist[identity] {
		return "", false
	}
	d.blacklist[identity] = true
	slog.Warn("Unauthorized sender blacklisted", slog.String("identity", identity))
	return "You're not authorized.", false
}

// HandleNotification processes a repository-update notification. The
// branch is the slash-delimited ref segment at index 2 (refs/heads/main
// -> main). Malformed refs and unmatched (source, branch) pairs are
// logged and dropped, never raised.
func (d *Dispatcher) HandleNotification(ctx context.Context, source, ref string) {
	if source == "" || ref == "" {
		slog.Warn("Malformed repository-update notification",
			logfields.Source(source), logfields.Ref(ref))
		return
	}
	segments := strings.Split(ref, "/")
	if len(segments) < 3 {
		slog.Warn("Malformed ref in notification",
			logfields.Source(source), logfields.Ref(ref))
		return
	}
	branch := segments[2]

	key := project.TriggerKey{Source: source, Branch: branch}
	targets := d.Snapshot().Table[key]
	if len(targets) == 0 {
		slog.Info("No builds configured for update",
			logfields.Source(source), logfields.Branch(branch))
		return
	}

	slog.Info("Repository update matched",
		logfields.Source(source), logfields.Branch(branch),
		slog.Int("builds", len(targets)))
	for _, t := range targets {
		d.submit(t)
	}
}

// RebuildProject submits every build of the named project, in declaration
// order.
func (d *Dispatcher) RebuildProject(name string) error {
	p, ok := d.Snapshot().Projects[name]
	if !ok {
		return &UnknownProjectError{Name: name}
	}
	for _, t := range p.Targets() {
		d.submit(t)
	}
	return nil
}

// Rebuild runs one build to completion, streaming its output to the
// announcer. Failure is reported to the operator channel and the log
// channel; the dispatcher itself never crashes on a broken build. The
// idle status is announced afterwards on every path. The returned error
// is informational (for metrics); it has already been announced.
func (d *Dispatcher) Rebuild(ctx context.Context, target project.Target) error {
	jobID := uuid.NewString()
	proj := target.Project()

	topic := fmt.Sprintf("Rebuilding %s from project %s", target.Name(), proj.Name())
	d.announcer.Status(topic)
	defer d.announcer.Status("docbot is idle")

	slog.Info("Rebuild started",
		logfields.JobID(jobID), logfields.Project(proj.Name()),
		logfields.Build(target.Name()), logfields.Branch(target.Branch()))
	started := time.Now()

	d.announcer.Log(topic)
	err := target.Run(ctx, func(line []byte) {
		// Decode and trim; empty chunks are not worth a message.
		if msg := strings.TrimSpace(string(line)); msg != "" {
			d.announcer.Log(msg)
		}
	})
	if err != nil {
		d.announcer.OperatorAlert(fmt.Sprintf(
			"Project %s, target %s is broken, traceback logged to docs",
			proj.Name(), target.Name()))
		d.announcer.Log(err.Error())
		slog.Error("Rebuild failed",
			logfields.JobID(jobID), logfields.Project(proj.Name()),
			logfields.Build(target.Name()), logfields.Error(err))
		return err
	}

	d.announcer.Log("done.")
	slog.Info("Rebuild finished",
		logfields.JobID(jobID), logfields.Project(proj.Name()),
		logfields.Build(target.Name()),
		slog.Duration("elapsed", time.Since(started)))
	return nil
}
