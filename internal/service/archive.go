package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/config"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/metrics"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/models"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/repository"
)

// Archiver moves finished files from the working area into the permanent
// archive tree, laid out as <root>/<source>/<chat>/<year>/<month>/.
type Archiver struct {
	repo    repository.Repository
	metrics *metrics.Metrics
	cfg     *config.Settings
}

// NewArchiver creates a new archiver
func NewArchiver(repo repository.Repository, metrics *metrics.Metrics, cfg *config.Settings) *Archiver {
	return &Archiver{
		repo:    repo,
		metrics: metrics,
		cfg:     cfg,
	}
}

// MaybeArchive moves the job's file into the archive when the owning chat
// has archive mode on. A failed move leaves the job and its file untouched.
func (a *Archiver) MaybeArchive(ctx context.Context, job *models.Job) error {
	if job.IsArchived || job.FilePath == "" {
		return nil
	}

	settings, err := a.repo.GetOrCreateChatSettings(ctx, job.ChatID)
	if err != nil {
		return fmt.Errorf("failed to load chat settings: %w", err)
	}
	if !settings.ArchiveMode {
		return nil
	}

	if _, err := os.Stat(job.FilePath); err != nil {
		return fmt.Errorf("source file unavailable: %w", err)
	}

	now := time.Now()
	destDir := filepath.Join(a.cfg.ArchiveRoot,
		string(job.SourceType), job.ChatID,
		fmt.Sprintf("%04d", now.Year()), fmt.Sprintf("%02d", now.Month()))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("failed to create archive dir: %w", err)
	}

	oldPath := job.FilePath
	destPath := filepath.Join(destDir, filepath.Base(oldPath))
	if err := moveFile(oldPath, destPath); err != nil {
		return fmt.Errorf("failed to move file into archive: %w", err)
	}

	if err := a.repo.SetArchived(ctx, job.ID, destPath, now); err != nil {
		return fmt.Errorf("failed to record archive: %w", err)
	}
	if err := a.repo.AddJobEvent(ctx, job.ID, models.EventArchived, map[string]any{
		"old_path": oldPath,
		"new_path": destPath,
	}); err != nil {
		log.Printf("WARN archive: job_id=%d: failed to record archive event: %v", job.ID, err)
	}

	job.FilePath = destPath
	job.IsArchived = true
	job.ArchivedAt = &now

	a.metrics.IncrementFilesArchived()
	log.Printf("job_id=%d: archived to %s", job.ID, destPath)
	return nil
}

// moveFile renames when possible and falls back to copy-and-delete for
// cross-device moves.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Remove(src)
}
