package service

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/config"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/metrics"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/models"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/repository"
)

const (
	cleanupBatchSize = 50
	draftTTL         = 24 * time.Hour
)

// Cleaner reclaims disk space from terminal jobs whose files sit in the
// working area past the retention window, and prunes expired drafts.
// Archived files are never touched.
type Cleaner struct {
	repo    repository.Repository
	metrics *metrics.Metrics
	cfg     *config.Settings
}

// NewCleaner creates a new cleaner
func NewCleaner(repo repository.Repository, metrics *metrics.Metrics, cfg *config.Settings) *Cleaner {
	return &Cleaner{
		repo:    repo,
		metrics: metrics,
		cfg:     cfg,
	}
}

// Run ticks the cleaner until the context is cancelled. With retention
// disabled only draft pruning runs.
func (c *Cleaner) Run(ctx context.Context) error {
	if !c.cfg.CleanupEnabled() {
		log.Printf("cleanup: retention disabled, working files are kept")
	}

	ticker := time.NewTicker(c.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}

// Tick performs one cleanup pass
func (c *Cleaner) Tick(ctx context.Context) {
	if c.cfg.CleanupEnabled() {
		if err := c.cleanFiles(ctx); err != nil {
			log.Printf("ERROR cleanup: file pass failed: %v", err)
		}
	}
	if err := c.pruneDrafts(ctx); err != nil {
		log.Printf("ERROR cleanup: draft pass failed: %v", err)
	}
}

func (c *Cleaner) cleanFiles(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -c.cfg.TmpRetentionDays)
	jobs, err := c.repo.ListCleanupCandidates(ctx, cutoff, cleanupBatchSize)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		c.cleanJobFile(ctx, job)
	}
	return nil
}

func (c *Cleaner) cleanJobFile(ctx context.Context, job *models.Job) {
	if _, err := os.Stat(job.FilePath); os.IsNotExist(err) {
		c.clearFilePath(ctx, job)
		return
	}

	if !pathWithin(c.cfg.TmpRoot, job.FilePath) {
		// A row pointing outside the working area is corrupt or hostile.
		// Deleting there is never acceptable.
		log.Printf("WARN cleanup: job_id=%d: file %s outside working area, skipping", job.ID, job.FilePath)
		return
	}

	if err := os.Remove(job.FilePath); err != nil {
		log.Printf("WARN cleanup: job_id=%d: failed to remove %s: %v", job.ID, job.FilePath, err)
		return
	}
	// The per-job dir goes too once it is empty.
	os.Remove(filepath.Dir(job.FilePath))

	c.clearFilePath(ctx, job)
	c.metrics.IncrementFilesCleaned()
	log.Printf("job_id=%d: working file removed, path=%s", job.ID, job.FilePath)
}

func (c *Cleaner) clearFilePath(ctx context.Context, job *models.Job) {
	if err := c.repo.ClearFilePath(ctx, job.ID); err != nil {
		log.Printf("ERROR cleanup: job_id=%d: failed to clear file path: %v", job.ID, err)
	}
}

func (c *Cleaner) pruneDrafts(ctx context.Context) error {
	n, err := c.repo.DeleteExpiredDrafts(ctx, time.Now().Add(-draftTTL))
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("cleanup: pruned %d expired drafts", n)
	}
	return nil
}

// pathWithin reports whether path sits inside root after normalization
func pathWithin(root, path string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
