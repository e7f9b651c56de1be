package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/config"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/download"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/metrics"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/models"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/repository"
)

// Runner executes one RUNNING job end to end: resolve credentials, fetch
// metadata, download, record the artifact, and settle the terminal state.
type Runner struct {
	repo     repository.Repository
	states   *StateMachine
	jobs     *JobService
	engine   download.Engine
	archiver *Archiver
	metrics  *metrics.Metrics
	cfg      *config.Settings
}

// NewRunner creates a new runner
func NewRunner(repo repository.Repository, states *StateMachine, jobs *JobService, engine download.Engine, archiver *Archiver, metrics *metrics.Metrics, cfg *config.Settings) *Runner {
	return &Runner{
		repo:     repo,
		states:   states,
		jobs:     jobs,
		engine:   engine,
		archiver: archiver,
		metrics:  metrics,
		cfg:      cfg,
	}
}

// Process executes a dispatched job. It never returns an error; every
// failure lands on the job row as a classified terminal state.
func (r *Runner) Process(ctx context.Context, jobID int64) {
	job, err := r.repo.GetJobByID(ctx, jobID)
	if err != nil {
		log.Printf("ERROR runner: job_id=%d: failed to load job: %v", jobID, err)
		return
	}
	if job == nil {
		log.Printf("ERROR runner: job_id=%d: job vanished before execution", jobID)
		return
	}
	if job.Status != models.StatusRunning {
		log.Printf("WARN runner: job_id=%d: expected RUNNING, found %s, skipping", jobID, job.Status)
		return
	}

	// Rows written before these fields existed carry empty values.
	job.JobType = models.JobTypeOrVideo(string(job.JobType))
	job.SourceType = models.SourceTypeOrGeneric(string(job.SourceType))

	profile := r.resolveProfile(ctx, job)

	if err := r.execute(ctx, job, profile); err != nil {
		r.settleFailure(ctx, job, profile, err)
		return
	}

	if profile != nil {
		if err := r.repo.MarkProfileSuccess(ctx, profile.ID); err != nil {
			log.Printf("WARN runner: job_id=%d: failed to record profile success: %v", job.ID, err)
		}
	}
	r.metrics.IncrementJobsCompleted()
}

// resolveProfile picks credentials for the job: the explicitly requested
// profile when set, otherwise the healthiest profile for the source. Running
// without credentials is always an option.
func (r *Runner) resolveProfile(ctx context.Context, job *models.Job) *models.AuthProfile {
	if job.AuthProfileID != "" {
		profile, err := r.repo.GetProfileByID(ctx, job.AuthProfileID)
		if err != nil {
			log.Printf("WARN runner: job_id=%d: failed to load profile %s: %v", job.ID, job.AuthProfileID, err)
			return nil
		}
		return profile
	}

	profile, err := r.repo.PreferredProfileForSource(ctx, job.SourceType)
	if err != nil {
		log.Printf("WARN runner: job_id=%d: failed to pick profile for %s: %v", job.ID, job.SourceType, err)
		return nil
	}
	return profile
}

func (r *Runner) execute(ctx context.Context, job *models.Job, profile *models.AuthProfile) error {
	targetDir := filepath.Join(r.cfg.TmpRoot, strconv.FormatInt(job.ID, 10))
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("failed to create work dir: %w", err)
	}

	req := download.Request{
		URL:              job.URL,
		JobType:          job.JobType,
		RequestedQuality: job.RequestedQuality,
		TargetDir:        targetDir,
		MaxFileSizeBytes: r.cfg.MaxFileSizeBytes(),
	}
	if profile != nil {
		req.CookieFile = profile.CookieFilePath
	}

	meta, err := r.engine.Fetch(ctx, req)
	if err != nil {
		return download.Classify(err)
	}

	maxBytes := r.cfg.MaxFileSizeBytes()
	if maxBytes > 0 && meta.FileSize > maxBytes {
		return download.NewError(models.ErrSizeLimit,
			fmt.Sprintf("estimated size %d exceeds limit %d", meta.FileSize, maxBytes))
	}

	req.Progress = func(percent float64, downloaded, total int64, speedBPS float64) {
		if err := r.jobs.ReportProgress(ctx, job, percent, downloaded, total, speedBPS); err != nil {
			log.Printf("WARN runner: job_id=%d: progress write failed: %v", job.ID, err)
		}
	}

	result, err := r.engine.Download(ctx, req)
	if err != nil {
		return download.Classify(err)
	}

	// Sources lie about sizes; the limit is checked again on the real file.
	if maxBytes > 0 && result.FileSize > maxBytes {
		if rmErr := os.Remove(result.FilePath); rmErr != nil {
			log.Printf("WARN runner: job_id=%d: failed to remove oversize file: %v", job.ID, rmErr)
		}
		return download.NewError(models.ErrSizeLimit,
			fmt.Sprintf("actual size %d exceeds limit %d", result.FileSize, maxBytes))
	}

	title := result.Title
	if title == "" {
		title = meta.Title
	}
	if err := r.repo.SetJobArtifact(ctx, job.ID, result.FilePath, result.ThumbnailPath, title, result.FileSize); err != nil {
		return fmt.Errorf("failed to record artifact: %w", err)
	}
	job.FilePath = result.FilePath
	job.ThumbnailPath = result.ThumbnailPath
	job.FinalTitle = title
	job.FileSize = result.FileSize

	if err := r.archiver.MaybeArchive(ctx, job); err != nil {
		// Archiving is best effort; the tmp copy still serves delivery.
		log.Printf("WARN runner: job_id=%d: archive failed: %v", job.ID, err)
	}

	if err := r.states.MarkCompleted(ctx, job, map[string]any{
		"title":      title,
		"file_size":  result.FileSize,
		"downloader": string(job.SourceType),
	}); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	log.Printf("job_id=%d: download finished, title=%q, size=%d", job.ID, title, result.FileSize)
	return nil
}

func (r *Runner) settleFailure(ctx context.Context, job *models.Job, profile *models.AuthProfile, cause error) {
	errType := models.ErrInternal
	message := cause.Error()

	var dlErr *download.Error
	if errors.As(cause, &dlErr) {
		errType = dlErr.Type
		message = dlErr.Message
	}

	if profile != nil && (errType == models.ErrAuth || errType == models.ErrRateLimit) {
		if err := r.repo.MarkProfileFailure(ctx, profile.ID); err != nil {
			log.Printf("WARN runner: job_id=%d: failed to record profile failure: %v", job.ID, err)
		}
	}

	if err := r.states.MarkFailed(ctx, job, errType, message, nil); err != nil {
		log.Printf("ERROR runner: job_id=%d: failed to settle failure: %v", job.ID, err)
		return
	}

	r.metrics.IncrementJobsFailed()
	log.Printf("job_id=%d: job failed, error_type=%s: %s", job.ID, errType, message)
}
