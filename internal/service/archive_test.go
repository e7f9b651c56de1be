package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/metrics"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/models"
)

func TestArchiver_SkipsWhenArchiveModeOff(t *testing.T) {
	repo := newTestRepo(t)
	cfg := newTestSettings(t)
	archiver := NewArchiver(repo, metrics.NewMetrics(), cfg)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "media.mp4")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	job := insertJob(t, repo, models.StatusCompleted, "key-noarchive")
	job.FilePath = path

	require.NoError(t, archiver.MaybeArchive(ctx, job))

	assert.False(t, job.IsArchived)
	assert.Equal(t, path, job.FilePath)
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestArchiver_MovesIntoDatedTree(t *testing.T) {
	repo := newTestRepo(t)
	cfg := newTestSettings(t)
	archiver := NewArchiver(repo, metrics.NewMetrics(), cfg)
	ctx := context.Background()

	_, err := repo.GetOrCreateChatSettings(ctx, "chat-1")
	require.NoError(t, err)
	require.NoError(t, repo.SetArchiveMode(ctx, "chat-1", true))

	srcDir := filepath.Join(cfg.TmpRoot, "9")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))
	path := filepath.Join(srcDir, "media.mp4")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	job := insertJob(t, repo, models.StatusCompleted, "key-dated")
	job.FilePath = path

	require.NoError(t, archiver.MaybeArchive(ctx, job))

	now := time.Now()
	wantDir := filepath.Join(cfg.ArchiveRoot, "GENERIC", "chat-1",
		fmt.Sprintf("%04d", now.Year()), fmt.Sprintf("%02d", now.Month()))
	assert.Equal(t, filepath.Join(wantDir, "media.mp4"), job.FilePath)
	assert.True(t, job.IsArchived)

	_, err = os.Stat(job.FilePath)
	assert.NoError(t, err)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	loaded, err := repo.GetJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, loaded.IsArchived)
	require.NotNil(t, loaded.ArchivedAt)

	events, err := repo.ListJobEvents(ctx, job.ID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, models.EventArchived, last.Kind)
	assert.Equal(t, path, last.Data["old_path"])
}

func TestArchiver_AlreadyArchivedIsNoop(t *testing.T) {
	repo := newTestRepo(t)
	cfg := newTestSettings(t)
	archiver := NewArchiver(repo, metrics.NewMetrics(), cfg)

	job := insertJob(t, repo, models.StatusCompleted, "key-again")
	job.IsArchived = true
	job.FilePath = "/archive/somewhere.mp4"

	require.NoError(t, archiver.MaybeArchive(context.Background(), job))
	assert.Equal(t, "/archive/somewhere.mp4", job.FilePath)
}

func TestArchiver_MissingFileFailsWithoutStateChange(t *testing.T) {
	repo := newTestRepo(t)
	cfg := newTestSettings(t)
	archiver := NewArchiver(repo, metrics.NewMetrics(), cfg)
	ctx := context.Background()

	_, err := repo.GetOrCreateChatSettings(ctx, "chat-1")
	require.NoError(t, err)
	require.NoError(t, repo.SetArchiveMode(ctx, "chat-1", true))

	job := insertJob(t, repo, models.StatusCompleted, "key-lost")
	job.FilePath = filepath.Join(cfg.TmpRoot, "nope.mp4")

	err = archiver.MaybeArchive(ctx, job)
	require.Error(t, err)
	assert.False(t, job.IsArchived)

	loaded, err := repo.GetJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, loaded.IsArchived)
}
