package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/config"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/download"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/metrics"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/models"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/repository"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/urlutil"
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrDraftNotFound     = errors.New("draft not found")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrMaintenanceMode   = errors.New("maintenance mode active")
	ErrUnsupportedSource = errors.New("unsupported source")
)

// RequestError is a rejected submission carrying the text shown to the user
type RequestError struct {
	UserMessage string
	Err         error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.UserMessage
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// CreateResult is the outcome of a submission. Reused means an existing job
// with the same key was returned instead of a new row; FromArchive
// additionally means that job already completed with an artifact on hand.
type CreateResult struct {
	Job         *models.Job
	Reused      bool
	FromArchive bool
}

// JobService handles submission, deduplication, and job queries
type JobService struct {
	repo        repository.Repository
	rateLimiter *RateLimiter
	metrics     *metrics.Metrics
	cfg         *config.Settings
	titleProber download.Engine
}

// NewJobService creates a new job service
func NewJobService(repo repository.Repository, rateLimiter *RateLimiter, metrics *metrics.Metrics, cfg *config.Settings) *JobService {
	return &JobService{
		repo:        repo,
		rateLimiter: rateLimiter,
		metrics:     metrics,
		cfg:         cfg,
	}
}

// AttachTitleProber lets draft creation ask the extraction engine for a
// suggested title. Probe failures are non-fatal.
func (s *JobService) AttachTitleProber(engine download.Engine) {
	s.titleProber = engine
}

// BuildJobKey derives the deduplication key for a request. Two requests for
// the same content, type, and quality always produce the same key.
func BuildJobKey(source models.SourceType, normalizedURL string, jobType models.JobType, quality string) string {
	if quality == "" {
		quality = "best"
	}
	return fmt.Sprintf("%s:%s:%s:%s", source, normalizedURL, jobType, quality)
}

// CreateJob registers a media-retrieval request, reusing an existing job when
// one with the same key already exists.
func (s *JobService) CreateJob(ctx context.Context, req *models.CreateJobRequest) (*CreateResult, error) {
	if err := s.checkAdmission(ctx, req.ChatID); err != nil {
		return nil, err
	}

	rawURL := urlutil.ExtractFirstURL(req.Text)
	normalized, err := urlutil.ValidateURL(rawURL)
	if err != nil {
		return nil, &RequestError{UserMessage: textInvalidURL, Err: err}
	}

	return s.registerJob(ctx, req.ChatID, req.UserID, normalized, req.JobType, req.Quality)
}

// checkAdmission applies maintenance mode and the per-chat submission limit
func (s *JobService) checkAdmission(ctx context.Context, chatID string) error {
	if s.cfg.MaintenanceMode {
		return &RequestError{UserMessage: textMaintenance, Err: ErrMaintenanceMode}
	}
	if err := s.rateLimiter.CheckSubmissionRate(ctx, chatID); err != nil {
		return &RequestError{UserMessage: textRateLimited, Err: err}
	}
	return nil
}

// registerJob resolves defaults, builds the dedup key, and inserts or reuses.
// The URL must already be validated and normalized.
func (s *JobService) registerJob(ctx context.Context, chatID, userID, normalizedURL, rawType, rawQuality string) (*CreateResult, error) {
	settings, err := s.repo.GetOrCreateChatSettings(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat settings: %w", err)
	}

	jobType := resolveJobType(rawType, settings)
	quality := resolveQuality(rawQuality, settings)

	source, err := detectSource(normalizedURL)
	if err != nil {
		return nil, err
	}
	jobKey := BuildJobKey(source, normalizedURL, jobType, quality)

	existing, err := s.repo.GetJobByKey(ctx, jobKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check job key: %w", err)
	}
	if existing != nil {
		return s.reuseJob(ctx, existing, chatID, userID)
	}

	job := &models.Job{
		JobKey:           jobKey,
		URL:              normalizedURL,
		SourceType:       source,
		JobType:          jobType,
		RequestedQuality: quality,
		Status:           models.StatusPending,
		ChatID:           chatID,
		UserID:           userID,
	}

	if err := s.repo.CreateJob(ctx, job); err != nil {
		var dup *repository.ErrDuplicateJobKey
		if errors.As(err, &dup) {
			// Lost the insert race. The winner's row is the job.
			existing, fetchErr := s.repo.GetJobByKey(ctx, dup.JobKey)
			if fetchErr != nil {
				return nil, fmt.Errorf("failed to fetch existing job: %w", fetchErr)
			}
			if existing != nil {
				return s.reuseJob(ctx, existing, chatID, userID)
			}
		}
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	if err := s.repo.AddJobEvent(ctx, job.ID, models.EventJobCreated, map[string]any{
		"chat_id":     chatID,
		"user_id":     userID,
		"source_type": string(source),
		"job_type":    string(jobType),
		"quality":     quality,
	}); err != nil {
		log.Printf("WARN job_id=%d: failed to record creation event: %v", job.ID, err)
	}

	s.metrics.IncrementJobsCreated()
	log.Printf("job_id=%d: job submitted, chat_id=%s, source=%s, type=%s, quality=%s",
		job.ID, chatID, source, jobType, quality)

	return &CreateResult{Job: job}, nil
}

func (s *JobService) reuseJob(ctx context.Context, job *models.Job, chatID, userID string) (*CreateResult, error) {
	if err := s.repo.AddJobEvent(ctx, job.ID, models.EventJobReused, map[string]any{
		"chat_id": chatID,
		"user_id": userID,
	}); err != nil {
		log.Printf("WARN job_id=%d: failed to record reuse event: %v", job.ID, err)
	}

	s.metrics.IncrementJobsReused()
	log.Printf("job_id=%d: duplicate request, existing job reused (status=%s)", job.ID, job.Status)

	return &CreateResult{
		Job:         job,
		Reused:      true,
		FromArchive: job.Status == models.StatusCompleted && job.FilePath != "",
	}, nil
}

// detectSource maps the URL to a known source. Hosts outside the domain
// table are only accepted as GENERIC when the path points at a media file
// directly; anything else is rejected before a row is created.
func detectSource(normalizedURL string) (models.SourceType, error) {
	source, known := urlutil.DetectSourceType(urlutil.Domain(normalizedURL))
	if known {
		return source, nil
	}
	if urlutil.IsDirectMediaURL(normalizedURL) {
		return models.SourceGeneric, nil
	}
	return "", &RequestError{UserMessage: textUnsupportedSource, Err: ErrUnsupportedSource}
}

func resolveJobType(raw string, settings *models.ChatSettings) models.JobType {
	if raw != "" {
		return models.JobTypeOrVideo(raw)
	}
	if settings.DefaultJobType != "" {
		return models.JobTypeOrVideo(settings.DefaultJobType)
	}
	return models.TypeVideo
}

func resolveQuality(raw string, settings *models.ChatSettings) string {
	if raw != "" {
		return raw
	}
	if settings.DefaultQuality != "" {
		return settings.DefaultQuality
	}
	return "best"
}

// CreateDraft records a URL awaiting the user's type and quality choice
func (s *JobService) CreateDraft(ctx context.Context, chatID, userID, text string) (*models.JobDraft, error) {
	if err := s.checkAdmission(ctx, chatID); err != nil {
		return nil, err
	}

	rawURL := urlutil.ExtractFirstURL(text)
	normalized, err := urlutil.ValidateURL(rawURL)
	if err != nil {
		return nil, &RequestError{UserMessage: textInvalidURL, Err: err}
	}

	source, err := detectSource(normalized)
	if err != nil {
		return nil, err
	}
	domain := urlutil.Domain(normalized)

	draft := &models.JobDraft{
		ID:         uuid.New().String(),
		ChatID:     chatID,
		UserID:     userID,
		URL:        normalized,
		SourceType: source,
		URLDomain:  domain,
	}
	draft.SuggestedTitle = s.probeTitle(ctx, normalized)

	if err := s.repo.CreateDraft(ctx, draft); err != nil {
		return nil, fmt.Errorf("failed to create draft: %w", err)
	}

	log.Printf("draft_id=%s: draft created, chat_id=%s, domain=%s", draft.ID, chatID, domain)
	return draft, nil
}

// probeTitle asks the engine for a title to show on the confirmation prompt
func (s *JobService) probeTitle(ctx context.Context, url string) string {
	if s.titleProber == nil {
		return ""
	}
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	meta, err := s.titleProber.Fetch(probeCtx, download.Request{URL: url})
	if err != nil {
		log.Printf("WARN title probe failed for %s: %v", url, err)
		return ""
	}
	return meta.Title
}

// ConfirmDraft promotes a draft into a job with the chosen type and quality.
// The draft is deleted whether or not a new row was inserted.
func (s *JobService) ConfirmDraft(ctx context.Context, draftID, jobType, quality string) (*CreateResult, error) {
	draft, err := s.repo.GetDraftByID(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}
	if draft == nil {
		return nil, &RequestError{UserMessage: textMissingDraft, Err: ErrDraftNotFound}
	}

	result, err := s.registerJob(ctx, draft.ChatID, draft.UserID, draft.URL, jobType, quality)
	if err != nil {
		return nil, err
	}

	if err := s.repo.DeleteDraft(ctx, draftID); err != nil {
		log.Printf("WARN draft_id=%s: failed to delete confirmed draft: %v", draftID, err)
	}
	return result, nil
}

// DiscardDraft drops a draft without creating a job
func (s *JobService) DiscardDraft(ctx context.Context, draftID string) error {
	draft, err := s.repo.GetDraftByID(ctx, draftID)
	if err != nil {
		return fmt.Errorf("failed to load draft: %w", err)
	}
	if draft == nil {
		return &RequestError{UserMessage: textMissingDraft, Err: ErrDraftNotFound}
	}
	if err := s.repo.DeleteDraft(ctx, draftID); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	log.Printf("draft_id=%s: draft discarded", draftID)
	return nil
}

// GetJob retrieves a job by ID
func (s *JobService) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	job, err := s.repo.GetJobByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// ListJobsByStatus retrieves jobs in a given lifecycle state
func (s *JobService) ListJobsByStatus(ctx context.Context, status models.JobStatus, limit int) ([]*models.Job, error) {
	jobs, err := s.repo.ListJobsByStatus(ctx, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// ListJobEvents retrieves a job's timeline in insertion order
func (s *JobService) ListJobEvents(ctx context.Context, jobID int64, limit int) ([]*models.JobEvent, error) {
	job, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	events, err := s.repo.ListJobEvents(ctx, jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list job events: %w", err)
	}
	return events, nil
}

// ReportProgress persists transfer progress for a running job, throttled to
// about one write per second. Writes at the start and end of the transfer
// always go through.
func (s *JobService) ReportProgress(ctx context.Context, job *models.Job, percent float64, downloaded, total int64, speedBPS float64) error {
	now := time.Now()
	forced := percent <= 0 || percent >= 100
	if !forced && job.LastProgressAt != nil && now.Sub(*job.LastProgressAt) < time.Second {
		return nil
	}

	if err := s.repo.UpdateJobProgress(ctx, job.ID, percent, downloaded, total, speedBPS); err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	job.LastProgressAt = &now
	job.ProgressPercent = percent
	return nil
}
