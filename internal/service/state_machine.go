package service

import (
	"context"
	"log"

	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/models"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/repository"
)

// allowedTransitions is the lifecycle table. COMPLETED and FAILED are
// terminal. PENDING and QUEUED may be failed directly so that stuck pre-run
// jobs can be closed out administratively.
var allowedTransitions = map[models.JobStatus][]models.JobStatus{
	models.StatusPending:   {models.StatusQueued, models.StatusFailed},
	models.StatusQueued:    {models.StatusRunning, models.StatusFailed},
	models.StatusRunning:   {models.StatusCompleted, models.StatusFailed},
	models.StatusCompleted: {},
	models.StatusFailed:    {},
}

// CanTransition reports whether the lifecycle table allows from -> to
func CanTransition(from, to models.JobStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// StateMachine validates and performs lifecycle transitions. Every
// successful transition appends one STATUS_CHANGED event atomically with the
// status write; an invalid transition leaves the job unmodified.
type StateMachine struct {
	repo repository.JobRepository
}

// NewStateMachine creates a new state machine over the given store
func NewStateMachine(repo repository.JobRepository) *StateMachine {
	return &StateMachine{repo: repo}
}

func (m *StateMachine) transition(ctx context.Context, job *models.Job, to models.JobStatus, data map[string]any) error {
	if !CanTransition(job.Status, to) {
		// A violation here is a scheduler bug (double dispatch), never a
		// user-facing job failure. Logged at error level, not retried.
		log.Printf("ERROR job_id=%d: invalid status transition attempted %s -> %s", job.ID, job.Status, to)
		return &repository.InvalidTransitionError{JobID: job.ID, From: job.Status, To: to}
	}

	if err := m.repo.TransitionStatus(ctx, job.ID, job.Status, to, data); err != nil {
		return err
	}

	log.Printf("job_id=%d: status changed %s -> %s", job.ID, job.Status, to)
	job.Status = to
	return nil
}

// MarkQueued raises PENDING to QUEUED
func (m *StateMachine) MarkQueued(ctx context.Context, job *models.Job, data map[string]any) error {
	return m.transition(ctx, job, models.StatusQueued, data)
}

// MarkRunning raises QUEUED to RUNNING
func (m *StateMachine) MarkRunning(ctx context.Context, job *models.Job, data map[string]any) error {
	return m.transition(ctx, job, models.StatusRunning, data)
}

// MarkCompleted finishes a RUNNING job successfully
func (m *StateMachine) MarkCompleted(ctx context.Context, job *models.Job, data map[string]any) error {
	return m.transition(ctx, job, models.StatusCompleted, data)
}

// MarkFailed terminates a job with a classified error. The kind and message
// land on both the job row and the STATUS_CHANGED event.
func (m *StateMachine) MarkFailed(ctx context.Context, job *models.Job, errType models.ErrorType, errMessage string, data map[string]any) error {
	payload := map[string]any{
		"error_type":    string(errType),
		"error_message": errMessage,
	}
	for k, v := range data {
		payload[k] = v
	}
	if err := m.transition(ctx, job, models.StatusFailed, payload); err != nil {
		return err
	}
	job.ErrorType = errType
	job.ErrorMessage = errMessage
	return nil
}
