package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/download"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/metrics"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/models"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/repository"
)

// blockingEngine parks every fetch until the test releases it, keeping
// dispatched jobs in RUNNING.
type blockingEngine struct {
	release chan struct{}
}

func (e *blockingEngine) Fetch(ctx context.Context, req download.Request) (*download.Metadata, error) {
	select {
	case <-e.release:
	case <-ctx.Done():
	}
	return nil, download.NewError(models.ErrExtractor, "released")
}

func (e *blockingEngine) Download(ctx context.Context, req download.Request) (*download.Result, error) {
	return nil, download.NewError(models.ErrExtractor, "released")
}

func newTestScheduler(t *testing.T, repo *repository.SQLiteRepository) (*Scheduler, *blockingEngine) {
	t.Helper()
	cfg := newTestSettings(t)
	m := metrics.NewMetrics()
	states := NewStateMachine(repo)
	jobs := NewJobService(repo, NewRateLimiter(cfg.MaxSubmissionsPerMin), m, cfg)
	engine := &blockingEngine{release: make(chan struct{})}
	archiver := NewArchiver(repo, m, cfg)
	runner := NewRunner(repo, states, jobs, engine, archiver, m, cfg)
	sched := NewScheduler(repo, states, runner, cfg)
	t.Cleanup(func() { close(engine.release) })
	return sched, engine
}

func countByStatus(t *testing.T, repo *repository.SQLiteRepository, status models.JobStatus) int {
	t.Helper()
	n, err := repo.CountJobsByStatus(context.Background(), status)
	require.NoError(t, err)
	return n
}

func TestScheduler_Tick_RespectsCaps(t *testing.T) {
	repo := newTestRepo(t)
	sched, _ := newTestScheduler(t, repo)
	ctx := context.Background()

	// Queue cap is 5, parallel cap is 2
	for i := 0; i < 7; i++ {
		insertJob(t, repo, models.StatusPending, fmt.Sprintf("key-%d", i))
	}

	sched.Tick(ctx)

	assert.Equal(t, 2, countByStatus(t, repo, models.StatusRunning))
	assert.Equal(t, 3, countByStatus(t, repo, models.StatusQueued))
	assert.Equal(t, 2, countByStatus(t, repo, models.StatusPending))

	// Next tick admits the remainder but cannot dispatch past the cap
	sched.Tick(ctx)

	assert.Equal(t, 2, countByStatus(t, repo, models.StatusRunning))
	assert.Equal(t, 5, countByStatus(t, repo, models.StatusQueued))
	assert.Equal(t, 0, countByStatus(t, repo, models.StatusPending))
}

func TestScheduler_Tick_EmptyQueueIsQuiet(t *testing.T) {
	repo := newTestRepo(t)
	sched, _ := newTestScheduler(t, repo)

	sched.Tick(context.Background())

	assert.Equal(t, 0, countByStatus(t, repo, models.StatusRunning))
	assert.Equal(t, 0, countByStatus(t, repo, models.StatusQueued))
}

func TestScheduler_RecoverInterrupted(t *testing.T) {
	repo := newTestRepo(t)
	sched, _ := newTestScheduler(t, repo)
	ctx := context.Background()

	running := insertJob(t, repo, models.StatusRunning, "key-interrupted")
	insertJob(t, repo, models.StatusCompleted, "key-done")

	require.NoError(t, sched.RecoverInterrupted(ctx))

	loaded, err := repo.GetJobByID(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusQueued, loaded.Status)

	events, err := repo.ListJobEvents(ctx, running.ID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, models.EventRequeued, events[len(events)-1].Kind)

	// Terminal jobs are left alone
	assert.Equal(t, 1, countByStatus(t, repo, models.StatusCompleted))
}
