package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/config"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/metrics"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/models"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/repository"
)

func newTestRepo(t *testing.T) *repository.SQLiteRepository {
	t.Helper()
	repo, err := repository.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestSettings(t *testing.T) *config.Settings {
	t.Helper()
	base := t.TempDir()
	return &config.Settings{
		TmpRoot:              filepath.Join(base, "tmp"),
		ArchiveRoot:          filepath.Join(base, "archive"),
		MaxParallelJobs:      2,
		MaxQueueLength:       5,
		SchedulerInterval:    time.Second,
		DeliveryInterval:     time.Second,
		CleanupInterval:      time.Second,
		MaxDeliveryAttempts:  3,
		TmpRetentionDays:     1,
		MaxSubmissionsPerMin: 100,
	}
}

func newTestJobService(t *testing.T, repo *repository.SQLiteRepository, cfg *config.Settings) *JobService {
	t.Helper()
	return NewJobService(repo, NewRateLimiter(cfg.MaxSubmissionsPerMin), metrics.NewMetrics(), cfg)
}

// insertJob puts a job directly into the store in the given state
func insertJob(t *testing.T, repo *repository.SQLiteRepository, status models.JobStatus, key string) *models.Job {
	t.Helper()
	job := &models.Job{
		JobKey:           key,
		URL:              "https://example.com/" + key,
		SourceType:       models.SourceGeneric,
		JobType:          models.TypeVideo,
		RequestedQuality: "best",
		Status:           models.StatusPending,
		ChatID:           "chat-1",
	}
	require.NoError(t, repo.CreateJob(context.Background(), job))

	ctx := context.Background()
	switch status {
	case models.StatusPending:
	case models.StatusQueued:
		require.NoError(t, repo.TransitionStatus(ctx, job.ID, models.StatusPending, models.StatusQueued, nil))
	case models.StatusRunning:
		require.NoError(t, repo.TransitionStatus(ctx, job.ID, models.StatusPending, models.StatusQueued, nil))
		require.NoError(t, repo.TransitionStatus(ctx, job.ID, models.StatusQueued, models.StatusRunning, nil))
	case models.StatusCompleted:
		require.NoError(t, repo.TransitionStatus(ctx, job.ID, models.StatusPending, models.StatusQueued, nil))
		require.NoError(t, repo.TransitionStatus(ctx, job.ID, models.StatusQueued, models.StatusRunning, nil))
		require.NoError(t, repo.TransitionStatus(ctx, job.ID, models.StatusRunning, models.StatusCompleted, nil))
	case models.StatusFailed:
		require.NoError(t, repo.TransitionStatus(ctx, job.ID, models.StatusPending, models.StatusQueued, nil))
		require.NoError(t, repo.TransitionStatus(ctx, job.ID, models.StatusQueued, models.StatusRunning, nil))
		require.NoError(t, repo.TransitionStatus(ctx, job.ID, models.StatusRunning, models.StatusFailed, map[string]any{
			"error_type":    string(models.ErrUnknown),
			"error_message": "test failure",
		}))
	}

	loaded, err := repo.GetJobByID(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	return loaded
}
