package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/download"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/metrics"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/models"
)

func TestJobService_CreateJob(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestJobService(t, repo, newTestSettings(t))

	result, err := svc.CreateJob(context.Background(), &models.CreateJobRequest{
		ChatID: "chat-1",
		Text:   "please fetch https://WWW.YouTube.com/watch?v=abc123",
	})
	require.NoError(t, err)
	require.False(t, result.Reused)

	job := result.Job
	assert.Equal(t, models.StatusPending, job.Status)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123", job.URL)
	assert.Equal(t, models.SourceYouTube, job.SourceType)
	assert.Equal(t, models.TypeVideo, job.JobType)
	assert.Equal(t, "best", job.RequestedQuality)
	assert.Equal(t, "YOUTUBE:https://www.youtube.com/watch?v=abc123:VIDEO:best", job.JobKey)

	events, err := repo.ListJobEvents(context.Background(), job.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventJobCreated, events[0].Kind)
}

func TestJobService_CreateJob_InvalidURL(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestJobService(t, repo, newTestSettings(t))

	_, err := svc.CreateJob(context.Background(), &models.CreateJobRequest{
		ChatID: "chat-1",
		Text:   "no link here",
	})

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.NotEmpty(t, reqErr.UserMessage)
}

func TestJobService_CreateJob_UnsupportedSource(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestJobService(t, repo, newTestSettings(t))

	// Unknown host without a direct media extension
	_, err := svc.CreateJob(context.Background(), &models.CreateJobRequest{
		ChatID: "chat-1",
		Text:   "https://example.com/watch?v=abc",
	})
	assert.True(t, errors.Is(err, ErrUnsupportedSource))

	// The same host is accepted when the path is a media file
	result, err := svc.CreateJob(context.Background(), &models.CreateJobRequest{
		ChatID: "chat-1",
		Text:   "https://example.com/lectures/intro.mp3",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SourceGeneric, result.Job.SourceType)
}

func TestJobService_CreateJob_Deduplicates(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestJobService(t, repo, newTestSettings(t))
	ctx := context.Background()

	first, err := svc.CreateJob(ctx, &models.CreateJobRequest{
		ChatID: "chat-1",
		Text:   "https://youtu.be/abc123",
	})
	require.NoError(t, err)
	require.False(t, first.Reused)

	// Same content requested from another chat, host case differs
	second, err := svc.CreateJob(ctx, &models.CreateJobRequest{
		ChatID: "chat-2",
		Text:   "https://YOUTU.BE/abc123",
	})
	require.NoError(t, err)
	assert.True(t, second.Reused)
	assert.Equal(t, first.Job.ID, second.Job.ID)

	events, err := repo.ListJobEvents(ctx, first.Job.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.EventJobReused, events[1].Kind)
}

func TestJobService_CreateJob_ReusedFromArchive(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestJobService(t, repo, newTestSettings(t))
	ctx := context.Background()

	first, err := svc.CreateJob(ctx, &models.CreateJobRequest{
		ChatID: "chat-1",
		Text:   "https://youtu.be/abc123",
	})
	require.NoError(t, err)

	// Still pending, nothing to hand out yet
	pending, err := svc.CreateJob(ctx, &models.CreateJobRequest{
		ChatID: "chat-2",
		Text:   "https://youtu.be/abc123",
	})
	require.NoError(t, err)
	assert.True(t, pending.Reused)
	assert.False(t, pending.FromArchive)

	// Complete it with an artifact in the working area, no archival
	id := first.Job.ID
	require.NoError(t, repo.TransitionStatus(ctx, id, models.StatusPending, models.StatusQueued, nil))
	require.NoError(t, repo.TransitionStatus(ctx, id, models.StatusQueued, models.StatusRunning, nil))
	require.NoError(t, repo.SetJobArtifact(ctx, id, "/tmp/work/abc.mp4", "", "abc", 64))
	require.NoError(t, repo.TransitionStatus(ctx, id, models.StatusRunning, models.StatusCompleted, nil))

	done, err := svc.CreateJob(ctx, &models.CreateJobRequest{
		ChatID: "chat-3",
		Text:   "https://youtu.be/abc123",
	})
	require.NoError(t, err)
	assert.True(t, done.Reused)
	assert.True(t, done.FromArchive)
}

func TestJobService_CreateJob_DifferentTypeIsNewJob(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestJobService(t, repo, newTestSettings(t))
	ctx := context.Background()

	video, err := svc.CreateJob(ctx, &models.CreateJobRequest{
		ChatID: "chat-1",
		Text:   "https://youtu.be/abc123",
	})
	require.NoError(t, err)

	audio, err := svc.CreateJob(ctx, &models.CreateJobRequest{
		ChatID:  "chat-1",
		Text:    "https://youtu.be/abc123",
		JobType: "AUDIO",
		Quality: "128k",
	})
	require.NoError(t, err)

	assert.False(t, audio.Reused)
	assert.NotEqual(t, video.Job.ID, audio.Job.ID)
	assert.Equal(t, models.TypeAudio, audio.Job.JobType)
	assert.Equal(t, "128k", audio.Job.RequestedQuality)

	// The same audio/128k request lands on the existing audio job
	again, err := svc.CreateJob(ctx, &models.CreateJobRequest{
		ChatID:  "chat-2",
		Text:    "https://youtu.be/abc123",
		JobType: "AUDIO",
		Quality: "128k",
	})
	require.NoError(t, err)
	assert.True(t, again.Reused)
	assert.Equal(t, audio.Job.ID, again.Job.ID)
}

func TestJobService_CreateJob_ChatDefaults(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestJobService(t, repo, newTestSettings(t))
	ctx := context.Background()

	_, err := repo.GetOrCreateChatSettings(ctx, "chat-1")
	require.NoError(t, err)
	require.NoError(t, repo.UpdateChatDefaults(ctx, "chat-1", "AUDIO", "192k"))

	result, err := svc.CreateJob(ctx, &models.CreateJobRequest{
		ChatID: "chat-1",
		Text:   "https://example.com/lecture.mp3",
	})
	require.NoError(t, err)

	assert.Equal(t, models.TypeAudio, result.Job.JobType)
	assert.Equal(t, "192k", result.Job.RequestedQuality)
}

func TestJobService_CreateJob_RateLimited(t *testing.T) {
	repo := newTestRepo(t)
	cfg := newTestSettings(t)
	svc := NewJobService(repo, NewRateLimiter(1), metrics.NewMetrics(), cfg)
	ctx := context.Background()

	_, err := svc.CreateJob(ctx, &models.CreateJobRequest{
		ChatID: "chat-1",
		Text:   "https://example.com/a.mp3",
	})
	require.NoError(t, err)

	_, err = svc.CreateJob(ctx, &models.CreateJobRequest{
		ChatID: "chat-1",
		Text:   "https://example.com/b.mp3",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimitExceeded))
}

func TestJobService_CreateJob_MaintenanceMode(t *testing.T) {
	repo := newTestRepo(t)
	cfg := newTestSettings(t)
	cfg.MaintenanceMode = true
	svc := newTestJobService(t, repo, cfg)

	_, err := svc.CreateJob(context.Background(), &models.CreateJobRequest{
		ChatID: "chat-1",
		Text:   "https://example.com/a",
	})
	assert.True(t, errors.Is(err, ErrMaintenanceMode))
}

func TestJobService_DraftFlow(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestJobService(t, repo, newTestSettings(t))
	ctx := context.Background()

	draft, err := svc.CreateDraft(ctx, "chat-1", "user-1", "https://youtu.be/abc123")
	require.NoError(t, err)
	assert.Equal(t, models.SourceYouTube, draft.SourceType)
	assert.Equal(t, "youtu.be", draft.URLDomain)

	result, err := svc.ConfirmDraft(ctx, draft.ID, "AUDIO", "128k")
	require.NoError(t, err)
	assert.Equal(t, models.TypeAudio, result.Job.JobType)

	// Confirmation consumes the draft
	_, err = svc.ConfirmDraft(ctx, draft.ID, "AUDIO", "128k")
	assert.True(t, errors.Is(err, ErrDraftNotFound))
}

func TestJobService_CreateDraft_SuggestedTitle(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestJobService(t, repo, newTestSettings(t))
	svc.AttachTitleProber(download.NewMockEngine())
	ctx := context.Background()

	draft, err := svc.CreateDraft(ctx, "chat-1", "", "https://example.com/lecture.mp3")
	require.NoError(t, err)
	assert.Equal(t, "lecture.mp3", draft.SuggestedTitle)

	// A failing probe must not block draft creation
	svc.AttachTitleProber(download.UnconfiguredEngine{})
	draft, err = svc.CreateDraft(ctx, "chat-2", "", "https://example.com/other.mp3")
	require.NoError(t, err)
	assert.Empty(t, draft.SuggestedTitle)
}

func TestJobService_DiscardDraft(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestJobService(t, repo, newTestSettings(t))
	ctx := context.Background()

	draft, err := svc.CreateDraft(ctx, "chat-1", "", "https://example.com/x.mp4")
	require.NoError(t, err)

	require.NoError(t, svc.DiscardDraft(ctx, draft.ID))
	err = svc.DiscardDraft(ctx, draft.ID)
	assert.True(t, errors.Is(err, ErrDraftNotFound))
}

func TestJobService_ReportProgress_Throttles(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestJobService(t, repo, newTestSettings(t))
	ctx := context.Background()

	job := insertJob(t, repo, models.StatusRunning, "key-progress")

	require.NoError(t, svc.ReportProgress(ctx, job, 10, 100, 1000, 50))
	firstWrite := job.LastProgressAt
	require.NotNil(t, firstWrite)

	// Within a second of the last write this must be a no-op
	require.NoError(t, svc.ReportProgress(ctx, job, 20, 200, 1000, 50))
	assert.Equal(t, firstWrite, job.LastProgressAt)

	loaded, err := repo.GetJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(10), loaded.ProgressPercent)

	// The terminal write always goes through
	require.NoError(t, svc.ReportProgress(ctx, job, 100, 1000, 1000, 50))
	loaded, err = repo.GetJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(100), loaded.ProgressPercent)
}

func TestJobService_ReportProgress_StartForced(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestJobService(t, repo, newTestSettings(t))
	ctx := context.Background()

	job := insertJob(t, repo, models.StatusRunning, "key-progress-zero")
	now := time.Now()
	job.LastProgressAt = &now

	// Zero percent bypasses the throttle
	require.NoError(t, svc.ReportProgress(ctx, job, 0, 0, 1000, 0))
	loaded, err := repo.GetJobByID(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.LastProgressAt)
	assert.Equal(t, float64(0), loaded.ProgressPercent)
}

func TestJobService_GetJob_NotFound(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestJobService(t, repo, newTestSettings(t))

	_, err := svc.GetJob(context.Background(), 9999)
	assert.True(t, errors.Is(err, ErrJobNotFound))
}

func TestBuildJobKey_DefaultQuality(t *testing.T) {
	key := BuildJobKey(models.SourceGeneric, "https://example.com/a", models.TypeVideo, "")
	assert.Equal(t, "GENERIC:https://example.com/a:VIDEO:best", key)
}
