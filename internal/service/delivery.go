package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/config"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/messenger"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/metrics"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/models"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/repository"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/urlutil"
)

const deliveryBatchSize = 20

// Deliverer hands completed files to their chats and notifies users about
// failed jobs. Each pass retries undelivered completions up to the attempts
// cap and sends at most one failure notification per job.
type Deliverer struct {
	repo      repository.JobRepository
	messenger messenger.Messenger
	metrics   *metrics.Metrics
	cfg       *config.Settings
}

// NewDeliverer creates a new deliverer
func NewDeliverer(repo repository.JobRepository, msgr messenger.Messenger, metrics *metrics.Metrics, cfg *config.Settings) *Deliverer {
	return &Deliverer{
		repo:      repo,
		messenger: msgr,
		metrics:   metrics,
		cfg:       cfg,
	}
}

// Run ticks the deliverer until the context is cancelled
func (d *Deliverer) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.DeliveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick performs one delivery pass followed by one notification pass
func (d *Deliverer) Tick(ctx context.Context) {
	if err := d.runDeliveries(ctx); err != nil {
		log.Printf("ERROR delivery: delivery pass failed: %v", err)
	}
	if err := d.runNotifications(ctx); err != nil {
		log.Printf("ERROR delivery: notification pass failed: %v", err)
	}
}

func (d *Deliverer) runDeliveries(ctx context.Context) error {
	jobs, err := d.repo.ListDeliverableJobs(ctx, deliveryBatchSize)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if job.DeliveryAttempts >= d.cfg.MaxDeliveryAttempts {
			continue
		}
		d.deliverJob(ctx, job)
	}
	return nil
}

func (d *Deliverer) deliverJob(ctx context.Context, job *models.Job) {
	if _, err := os.Stat(job.FilePath); err != nil {
		d.recordDeliveryFailure(ctx, job, fmt.Sprintf("file missing: %s", job.FilePath))
		return
	}

	ext := filepath.Ext(job.FilePath)
	filename := urlutil.SanitizeTitle(job.FinalTitle, ext)

	ref, err := d.messenger.SendMedia(ctx, messenger.Media{
		ChatID:        job.ChatID,
		FilePath:      job.FilePath,
		Filename:      filename,
		Caption:       job.FinalTitle,
		ThumbnailPath: job.ThumbnailPath,
	})
	if err != nil {
		d.recordDeliveryFailure(ctx, job, err.Error())
		return
	}

	if err := d.repo.MarkJobDelivered(ctx, job.ID, ref); err != nil {
		log.Printf("ERROR delivery: job_id=%d: failed to record delivery: %v", job.ID, err)
		return
	}
	if err := d.repo.AddJobEvent(ctx, job.ID, models.EventDelivered, map[string]any{
		"message_ref": ref,
		"filename":    filename,
	}); err != nil {
		log.Printf("WARN delivery: job_id=%d: failed to record delivery event: %v", job.ID, err)
	}

	d.metrics.IncrementDeliveriesSucceeded()
	log.Printf("job_id=%d: delivered to chat_id=%s, ref=%s", job.ID, job.ChatID, ref)
}

func (d *Deliverer) recordDeliveryFailure(ctx context.Context, job *models.Job, reason string) {
	if err := d.repo.MarkDeliveryFailure(ctx, job.ID, reason); err != nil {
		log.Printf("ERROR delivery: job_id=%d: failed to record delivery failure: %v", job.ID, err)
		return
	}
	if err := d.repo.AddJobEvent(ctx, job.ID, models.EventDeliveryFailed, map[string]any{
		"attempt": job.DeliveryAttempts + 1,
		"reason":  reason,
	}); err != nil {
		log.Printf("WARN delivery: job_id=%d: failed to record delivery failure event: %v", job.ID, err)
	}

	d.metrics.IncrementDeliveriesFailed()
	log.Printf("job_id=%d: delivery attempt %d failed: %s", job.ID, job.DeliveryAttempts+1, reason)
}

// runNotifications tells users about failed jobs and about completions whose
// delivery attempts are exhausted. The notified marker is set whether or not
// the send succeeds, so a broken transport cannot spam a chat later.
func (d *Deliverer) runNotifications(ctx context.Context) error {
	jobs, err := d.repo.ListUnnotifiedFailures(ctx, d.cfg.MaxDeliveryAttempts, deliveryBatchSize)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		var text string
		if job.Status == models.StatusFailed {
			text = FailureMessage(job)
		} else {
			text = DeliveryFailureMessage(job)
		}

		if err := d.messenger.SendText(ctx, job.ChatID, text); err != nil {
			log.Printf("WARN delivery: job_id=%d: failure notification send failed: %v", job.ID, err)
		}

		if err := d.repo.MarkFailureNotified(ctx, job.ID); err != nil {
			log.Printf("ERROR delivery: job_id=%d: failed to mark failure notified: %v", job.ID, err)
			continue
		}
		d.metrics.IncrementFailureNotifications()
	}
	return nil
}
