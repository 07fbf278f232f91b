package daemon

import (
	"fmt"
	"log/slog"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/docbot/internal/dispatch"
	"git.home.luguber.info/inful/docbot/internal/logfields"
	"git.home.luguber.info/inful/docbot/internal/project"
)

// Scheduler wraps gocron to trigger periodic rebuilds for builds carrying
// an `every` interval.
type Scheduler struct {
	scheduler gocron.Scheduler
	submit    func(project.Target)
	jobs      []uuid.UUID
}

// NewScheduler creates a scheduler submitting due builds through submit.
func NewScheduler(submit func(project.Target)) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, submit: submit}, nil
}

// Sync replaces the scheduled jobs with the periodic builds found in the
// snapshot. Called at startup and after every configuration reload.
func (s *Scheduler) Sync(snap *dispatch.Snapshot) error {
	for _, id := range s.jobs {
		if err := s.scheduler.RemoveJob(id); err != nil {
			slog.Warn("Failed to remove scheduled job", logfields.Error(err))
		}
	}
	s.jobs = s.jobs[:0]

	for _, p := range snap.Projects {
		for _, t := range p.Targets() {
			if t.Every() <= 0 {
				continue
			}
			target := t
			job, err := s.scheduler.NewJob(
				gocron.DurationJob(target.Every()),
				gocron.NewTask(func() { s.submit(target) }),
				gocron.WithName(fmt.Sprintf("%s/%s", p.Name(), target.Name())),
			)
			if err != nil {
				return fmt.Errorf("failed to schedule %s/%s: %w", p.Name(), target.Name(), err)
			}
			s.jobs = append(s.jobs, job.ID())
			slog.Info("Scheduled periodic rebuild",
				logfields.Project(p.Name()), logfields.Build(target.Name()),
				slog.Duration("every", target.Every()))
		}
	}
	return nil
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() { s.scheduler.Start() }

// Stop shuts the scheduler down, waiting for running tasks.
func (s *Scheduler) Stop() error { return s.scheduler.Shutdown() }
