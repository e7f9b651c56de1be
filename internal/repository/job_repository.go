package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/models"
)

// ErrDuplicateJobKey is returned when a job with the same job_key already
// exists. Callers resolve the race by re-fetching the existing row.
type ErrDuplicateJobKey struct {
	JobKey string
}

func (e *ErrDuplicateJobKey) Error() string {
	return fmt.Sprintf("job with job_key %s already exists", e.JobKey)
}

// InvalidTransitionError is returned when a status transition is not allowed
// by the lifecycle table, or when the stored status no longer matches the
// expected one. It indicates a scheduler bug, not a retryable condition.
type InvalidTransitionError struct {
	JobID int64
	From  models.JobStatus
	To    models.JobStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition job %d from %s to %s", e.JobID, e.From, e.To)
}

// JobRepository defines persistence for jobs and their timeline events
type JobRepository interface {
	CreateJob(ctx context.Context, job *models.Job) error
	GetJobByID(ctx context.Context, id int64) (*models.Job, error)
	GetJobByKey(ctx context.Context, jobKey string) (*models.Job, error)
	ListJobsByStatus(ctx context.Context, status models.JobStatus, limit int) ([]*models.Job, error)
	CountJobsByStatus(ctx context.Context, status models.JobStatus) (int, error)

	// TransitionStatus atomically applies a validated status change and
	// appends the STATUS_CHANGED event in the same transaction.
	TransitionStatus(ctx context.Context, id int64, from, to models.JobStatus, data map[string]any) error
	RequeueInterrupted(ctx context.Context) (int, error)

	UpdateJobProgress(ctx context.Context, id int64, percent float64, downloaded, total int64, speedBPS float64) error
	SetJobArtifact(ctx context.Context, id int64, filePath, thumbnailPath, title string, size int64) error
	SetJobError(ctx context.Context, id int64, errType models.ErrorType, message string) error
	SetArchived(ctx context.Context, id int64, newPath string, archivedAt time.Time) error
	ClearFilePath(ctx context.Context, id int64) error

	ListDeliverableJobs(ctx context.Context, limit int) ([]*models.Job, error)
	ListUnnotifiedFailures(ctx context.Context, maxAttempts, limit int) ([]*models.Job, error)
	ListCleanupCandidates(ctx context.Context, cutoff time.Time, limit int) ([]*models.Job, error)
	MarkJobDelivered(ctx context.Context, id int64, messageRef string) error
	MarkDeliveryFailure(ctx context.Context, id int64, message string) error
	MarkFailureNotified(ctx context.Context, id int64) error

	AddJobEvent(ctx context.Context, jobID int64, kind string, data map[string]any) error
	ListJobEvents(ctx context.Context, jobID int64, limit int) ([]*models.JobEvent, error)
}

// AuthProfileRepository defines persistence for auth profiles
type AuthProfileRepository interface {
	GetProfileByID(ctx context.Context, id string) (*models.AuthProfile, error)
	UpsertProfile(ctx context.Context, profile *models.AuthProfile) error
	PreferredProfileForSource(ctx context.Context, source models.SourceType) (*models.AuthProfile, error)
	MarkProfileSuccess(ctx context.Context, id string) error
	MarkProfileFailure(ctx context.Context, id string) error
}

// ChatSettingsRepository defines persistence for per-chat preferences
type ChatSettingsRepository interface {
	GetOrCreateChatSettings(ctx context.Context, chatID string) (*models.ChatSettings, error)
	SetArchiveMode(ctx context.Context, chatID string, enabled bool) error
	UpdateChatDefaults(ctx context.Context, chatID, defaultJobType, defaultQuality string) error
	SetAdmin(ctx context.Context, chatID string, isAdmin bool) error
}

// DraftRepository defines persistence for ephemeral job drafts
type DraftRepository interface {
	CreateDraft(ctx context.Context, draft *models.JobDraft) error
	GetDraftByID(ctx context.Context, id string) (*models.JobDraft, error)
	DeleteDraft(ctx context.Context, id string) error
	DeleteExpiredDrafts(ctx context.Context, cutoff time.Time) (int, error)
}

// Repository aggregates every persistence concern backed by the one store
type Repository interface {
	JobRepository
	AuthProfileRepository
	ChatSettingsRepository
	DraftRepository
}
