package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/config"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/messenger"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/metrics"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/models"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/repository"
)

// recordingMessenger captures sends and can be told to fail media sends
type recordingMessenger struct {
	mu       sync.Mutex
	media    []messenger.Media
	texts    []string
	mediaErr error
}

func (m *recordingMessenger) SendMedia(ctx context.Context, media messenger.Media) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mediaErr != nil {
		return "", m.mediaErr
	}
	m.media = append(m.media, media)
	return "ref-1", nil
}

func (m *recordingMessenger) SendText(ctx context.Context, chatID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	return nil
}

func newTestDeliverer(t *testing.T, repo *repository.SQLiteRepository, cfg *config.Settings) (*Deliverer, *recordingMessenger) {
	t.Helper()
	msgr := &recordingMessenger{}
	return NewDeliverer(repo, msgr, metrics.NewMetrics(), cfg), msgr
}

// completedJobWithFile inserts a COMPLETED job whose artifact exists on disk
func completedJobWithFile(t *testing.T, repo *repository.SQLiteRepository, key string) *models.Job {
	t.Helper()
	job := insertJob(t, repo, models.StatusCompleted, key)

	path := filepath.Join(t.TempDir(), "media.mp4")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))
	require.NoError(t, repo.SetJobArtifact(context.Background(), job.ID, path, "", "محاضرة عن الصبر", 4))

	loaded, err := repo.GetJobByID(context.Background(), job.ID)
	require.NoError(t, err)
	return loaded
}

func TestDeliverer_DeliversCompletedJob(t *testing.T) {
	repo := newTestRepo(t)
	deliverer, msgr := newTestDeliverer(t, repo, newTestSettings(t))
	ctx := context.Background()

	job := completedJobWithFile(t, repo, "key-deliver")
	deliverer.Tick(ctx)

	require.Len(t, msgr.media, 1)
	assert.Equal(t, "chat-1", msgr.media[0].ChatID)

	loaded, err := repo.GetJobByID(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.DeliveredAt)
	assert.Equal(t, "ref-1", loaded.MessageRef)

	// Already-delivered jobs are not picked up again
	deliverer.Tick(ctx)
	assert.Len(t, msgr.media, 1)
}

func TestDeliverer_SanitizesFilename(t *testing.T) {
	repo := newTestRepo(t)
	deliverer, msgr := newTestDeliverer(t, repo, newTestSettings(t))

	completedJobWithFile(t, repo, "key-filename")
	deliverer.Tick(context.Background())

	require.Len(t, msgr.media, 1)
	assert.Equal(t, "محاضرة عن الصبر.mp4", msgr.media[0].Filename)
}

func TestDeliverer_MissingFileCountsAsFailure(t *testing.T) {
	repo := newTestRepo(t)
	deliverer, msgr := newTestDeliverer(t, repo, newTestSettings(t))
	ctx := context.Background()

	job := insertJob(t, repo, models.StatusCompleted, "key-missing")
	require.NoError(t, repo.SetJobArtifact(ctx, job.ID, "/nonexistent/file.mp4", "", "title", 4))

	deliverer.Tick(ctx)

	assert.Empty(t, msgr.media)
	loaded, err := repo.GetJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.DeliveryAttempts)
	assert.Contains(t, loaded.DeliveryLastError, "file missing")
}

func TestDeliverer_ExhaustedAttemptsNotifyOnce(t *testing.T) {
	repo := newTestRepo(t)
	cfg := newTestSettings(t)
	deliverer, msgr := newTestDeliverer(t, repo, cfg)
	ctx := context.Background()

	job := completedJobWithFile(t, repo, "key-exhaust")
	msgr.mediaErr = errors.New("chat unreachable")

	// Attempts grow monotonically up to the cap
	for i := 1; i <= cfg.MaxDeliveryAttempts; i++ {
		deliverer.Tick(ctx)
		loaded, err := repo.GetJobByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, i, loaded.DeliveryAttempts)
	}

	// The cap tick also fires the one-time notification
	loaded, err := repo.GetJobByID(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.FailureNotifiedAt)
	require.Len(t, msgr.texts, 1)
	assert.Contains(t, msgr.texts[0], "chat unreachable")

	// Further ticks neither retry nor re-notify
	deliverer.Tick(ctx)
	loaded, err = repo.GetJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, cfg.MaxDeliveryAttempts, loaded.DeliveryAttempts)
	assert.Len(t, msgr.texts, 1)
}

func TestDeliverer_NotifiesFailedJobOnce(t *testing.T) {
	repo := newTestRepo(t)
	deliverer, msgr := newTestDeliverer(t, repo, newTestSettings(t))
	ctx := context.Background()

	job := insertJob(t, repo, models.StatusRunning, "key-geo")
	sm := NewStateMachine(repo)
	require.NoError(t, sm.MarkFailed(ctx, job, models.ErrGeoBlock, "blocked", nil))

	deliverer.Tick(ctx)
	require.Len(t, msgr.texts, 1)
	assert.Equal(t, textFailureGeoBlock, msgr.texts[0])

	deliverer.Tick(ctx)
	assert.Len(t, msgr.texts, 1)
}

func TestFailureMessage_GenericFallback(t *testing.T) {
	job := &models.Job{ErrorType: models.ErrExtractor}
	msg := FailureMessage(job)
	assert.Contains(t, msg, string(models.ErrExtractor))
}
