package service

import (
	"context"
	"log"
	"time"

	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/config"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/models"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/repository"
)

// Scheduler moves jobs through the queue in two phases. Admission raises
// PENDING jobs to QUEUED while the queue has room; dispatch raises QUEUED
// jobs to RUNNING while execution slots are free and hands each one to the
// runner on its own goroutine. One failing iteration never stops the loop.
type Scheduler struct {
	repo   repository.JobRepository
	states *StateMachine
	runner *Runner
	cfg    *config.Settings
}

// NewScheduler creates a new scheduler
func NewScheduler(repo repository.JobRepository, states *StateMachine, runner *Runner, cfg *config.Settings) *Scheduler {
	return &Scheduler{
		repo:   repo,
		states: states,
		runner: runner,
		cfg:    cfg,
	}
}

// Run ticks the scheduler until the context is cancelled
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SchedulerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one admission pass followed by one dispatch pass
func (s *Scheduler) Tick(ctx context.Context) {
	if err := s.runAdmission(ctx); err != nil {
		log.Printf("ERROR scheduler: admission pass failed: %v", err)
	}
	if err := s.runDispatch(ctx); err != nil {
		log.Printf("ERROR scheduler: dispatch pass failed: %v", err)
	}
}

func (s *Scheduler) runAdmission(ctx context.Context) error {
	queued, err := s.repo.CountJobsByStatus(ctx, models.StatusQueued)
	if err != nil {
		return err
	}

	room := s.cfg.MaxQueueLength - queued
	if room <= 0 {
		return nil
	}

	pending, err := s.repo.ListJobsByStatus(ctx, models.StatusPending, room)
	if err != nil {
		return err
	}

	for _, job := range pending {
		if err := s.states.MarkQueued(ctx, job, nil); err != nil {
			// Another pass may have moved it already. Skip, never abort.
			log.Printf("WARN scheduler: job_id=%d: admission skipped: %v", job.ID, err)
		}
	}
	return nil
}

func (s *Scheduler) runDispatch(ctx context.Context) error {
	running, err := s.repo.CountJobsByStatus(ctx, models.StatusRunning)
	if err != nil {
		return err
	}

	slots := s.cfg.MaxParallelJobs - running
	if slots <= 0 {
		return nil
	}

	queued, err := s.repo.ListJobsByStatus(ctx, models.StatusQueued, slots)
	if err != nil {
		return err
	}

	for _, job := range queued {
		if err := s.states.MarkRunning(ctx, job, nil); err != nil {
			log.Printf("WARN scheduler: job_id=%d: dispatch skipped: %v", job.ID, err)
			continue
		}

		// Execution outlives the tick; only process shutdown stops it.
		go s.runner.Process(context.WithoutCancel(ctx), job.ID)
	}
	return nil
}

// RecoverInterrupted re-queues jobs left RUNNING by an unclean shutdown.
// Called once at startup before the scheduler loop begins.
func (s *Scheduler) RecoverInterrupted(ctx context.Context) error {
	n, err := s.repo.RequeueInterrupted(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("scheduler: re-queued %d interrupted jobs", n)
	}
	return nil
}
