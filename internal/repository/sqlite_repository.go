package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/models"
)

// SQLiteRepository implements Repository using SQLite
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens the database and initializes the schema
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := &SQLiteRepository{db: db}
	if err := repo.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return repo, nil
}

// Close closes the database connection
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// initSchema initializes the database schema
func (r *SQLiteRepository) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_key TEXT NOT NULL UNIQUE,
		url TEXT NOT NULL,
		source_type TEXT NOT NULL,
		job_type TEXT NOT NULL,
		requested_quality TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'PENDING',
		error_type TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		auth_profile_id TEXT NOT NULL DEFAULT '',
		chat_id TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL DEFAULT '',
		final_title TEXT NOT NULL DEFAULT '',
		file_path TEXT NOT NULL DEFAULT '',
		thumbnail_path TEXT NOT NULL DEFAULT '',
		file_size INTEGER NOT NULL DEFAULT 0,
		progress_percent REAL NOT NULL DEFAULT 0,
		downloaded_bytes INTEGER NOT NULL DEFAULT 0,
		total_bytes INTEGER NOT NULL DEFAULT 0,
		speed_bps REAL NOT NULL DEFAULT 0,
		last_progress_at INTEGER,
		delivered_at INTEGER,
		message_ref TEXT NOT NULL DEFAULT '',
		delivery_attempts INTEGER NOT NULL DEFAULT 0,
		delivery_last_error TEXT NOT NULL DEFAULT '',
		failure_notified_at INTEGER,
		is_archived INTEGER NOT NULL DEFAULT 0,
		archived_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
	CREATE INDEX IF NOT EXISTS idx_jobs_chat_id ON jobs(chat_id);
	CREATE INDEX IF NOT EXISTS idx_jobs_updated_at ON jobs(updated_at);

	CREATE TABLE IF NOT EXISTS job_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id INTEGER NOT NULL REFERENCES jobs(id),
		kind TEXT NOT NULL,
		data TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_job_events_job_id ON job_events(job_id);

	CREATE TABLE IF NOT EXISTS auth_profiles (
		id TEXT PRIMARY KEY,
		source_type TEXT NOT NULL,
		cookie_file_path TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		failure_count_recent INTEGER NOT NULL DEFAULT 0,
		last_success_at INTEGER,
		last_failure_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_settings (
		chat_id TEXT PRIMARY KEY,
		archive_mode INTEGER NOT NULL DEFAULT 0,
		default_job_type TEXT NOT NULL DEFAULT '',
		default_quality TEXT NOT NULL DEFAULT '',
		is_admin INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS job_drafts (
		id TEXT PRIMARY KEY,
		chat_id TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL,
		source_type TEXT NOT NULL,
		url_domain TEXT NOT NULL DEFAULT '',
		suggested_title TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	`

	_, err := r.db.Exec(schema)
	return err
}

const jobColumns = `id, job_key, url, source_type, job_type, requested_quality, status,
	error_type, error_message, auth_profile_id, chat_id, user_id, final_title,
	file_path, thumbnail_path, file_size, progress_percent, downloaded_bytes,
	total_bytes, speed_bps, last_progress_at, delivered_at, message_ref,
	delivery_attempts, delivery_last_error, failure_notified_at, is_archived,
	archived_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var job models.Job
	var lastProgressAt, deliveredAt, failureNotifiedAt, archivedAt sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(
		&job.ID,
		&job.JobKey,
		&job.URL,
		&job.SourceType,
		&job.JobType,
		&job.RequestedQuality,
		&job.Status,
		&job.ErrorType,
		&job.ErrorMessage,
		&job.AuthProfileID,
		&job.ChatID,
		&job.UserID,
		&job.FinalTitle,
		&job.FilePath,
		&job.ThumbnailPath,
		&job.FileSize,
		&job.ProgressPercent,
		&job.DownloadedBytes,
		&job.TotalBytes,
		&job.SpeedBPS,
		&lastProgressAt,
		&deliveredAt,
		&job.MessageRef,
		&job.DeliveryAttempts,
		&job.DeliveryLastError,
		&failureNotifiedAt,
		&job.IsArchived,
		&archivedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.LastProgressAt = unixPtr(lastProgressAt)
	job.DeliveredAt = unixPtr(deliveredAt)
	job.FailureNotifiedAt = unixPtr(failureNotifiedAt)
	job.ArchivedAt = unixPtr(archivedAt)
	job.CreatedAt = time.Unix(createdAt, 0)
	job.UpdatedAt = time.Unix(updatedAt, 0)

	return &job, nil
}

func unixPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0)
	return &t
}

// CreateJob inserts a new PENDING job. A job_key collision is reported as
// *ErrDuplicateJobKey so the caller can resolve the existing row.
func (r *SQLiteRepository) CreateJob(ctx context.Context, job *models.Job) error {
	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = models.StatusPending
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (job_key, url, source_type, job_type, requested_quality,
			status, auth_profile_id, chat_id, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		job.JobKey,
		job.URL,
		job.SourceType,
		job.JobType,
		job.RequestedQuality,
		job.Status,
		job.AuthProfileID,
		job.ChatID,
		job.UserID,
		job.CreatedAt.Unix(),
		job.UpdatedAt.Unix(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return &ErrDuplicateJobKey{JobKey: job.JobKey}
		}
		return fmt.Errorf("failed to create job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted job id: %w", err)
	}
	job.ID = id
	return nil
}

// GetJobByID retrieves a job by id, returning (nil, nil) when absent
func (r *SQLiteRepository) GetJobByID(ctx context.Context, id int64) (*models.Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// GetJobByKey retrieves a job by its dedup key, returning (nil, nil) when absent
func (r *SQLiteRepository) GetJobByKey(ctx context.Context, jobKey string) (*models.Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE job_key = ?`, jobKey)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job by key: %w", err)
	}
	return job, nil
}

func (r *SQLiteRepository) queryJobs(ctx context.Context, query string, args ...any) ([]*models.Job, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate jobs: %w", err)
	}
	return jobs, nil
}

// ListJobsByStatus retrieves jobs with a given status, oldest first
func (r *SQLiteRepository) ListJobsByStatus(ctx context.Context, status models.JobStatus, limit int) ([]*models.Job, error) {
	return r.queryJobs(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE status = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`, status, limit)
}

// CountJobsByStatus returns the number of jobs with a given status
func (r *SQLiteRepository) CountJobsByStatus(ctx context.Context, status models.JobStatus) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE status = ?`, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return count, nil
}

// TransitionStatus applies a compare-and-swap status change plus the
// STATUS_CHANGED event in one transaction. A stale expected status rolls the
// whole unit back and surfaces *InvalidTransitionError.
func (r *SQLiteRepository) TransitionStatus(ctx context.Context, id int64, from, to models.JobStatus, data map[string]any) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()

	errType := ""
	errMessage := ""
	if to == models.StatusFailed && data != nil {
		if v, ok := data["error_type"].(string); ok {
			errType = v
		}
		if v, ok := data["error_message"].(string); ok {
			errMessage = v
		}
	}

	var res sql.Result
	if to == models.StatusFailed {
		res, err = tx.ExecContext(ctx, `
			UPDATE jobs
			SET status = ?, error_type = ?, error_message = ?, updated_at = ?
			WHERE id = ? AND status = ?
		`, to, errType, errMessage, now.Unix(), id, from)
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE jobs
			SET status = ?, updated_at = ?
			WHERE id = ? AND status = ?
		`, to, now.Unix(), id, from)
	}
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return &InvalidTransitionError{JobID: id, From: from, To: to}
	}

	payload := map[string]any{"from": string(from), "to": string(to)}
	for k, v := range data {
		payload[k] = v
	}
	if err := insertEvent(ctx, tx, id, models.EventStatusChanged, payload, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RequeueInterrupted moves every RUNNING job back to QUEUED. It runs once at
// startup, before any loop holds the store, to recover jobs orphaned by a
// crash or shutdown mid-download.
func (r *SQLiteRepository) RequeueInterrupted(ctx context.Context) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM jobs WHERE status = ?`, models.StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to find interrupted jobs: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan job id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate interrupted jobs: %w", err)
	}

	now := time.Now()
	for _, id := range ids {
		_, err := tx.ExecContext(ctx, `
			UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?
		`, models.StatusQueued, now.Unix(), id)
		if err != nil {
			return 0, fmt.Errorf("failed to requeue job %d: %w", id, err)
		}
		payload := map[string]any{"from": string(models.StatusRunning), "to": string(models.StatusQueued), "reason": "startup_recovery"}
		if err := insertEvent(ctx, tx, id, models.EventRequeued, payload, now); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return len(ids), nil
}

// UpdateJobProgress persists transfer progress for a running job
func (r *SQLiteRepository) UpdateJobProgress(ctx context.Context, id int64, percent float64, downloaded, total int64, speedBPS float64) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET progress_percent = ?, downloaded_bytes = ?, total_bytes = ?,
			speed_bps = ?, last_progress_at = ?, updated_at = ?
		WHERE id = ?
	`, percent, downloaded, total, speedBPS, now.Unix(), now.Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	return nil
}

// SetJobArtifact records the produced file, its thumbnail, size, and title.
// An existing final_title is kept; a user-set override always wins.
func (r *SQLiteRepository) SetJobArtifact(ctx context.Context, id int64, filePath, thumbnailPath, title string, size int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET file_path = ?, thumbnail_path = ?, file_size = ?,
			final_title = CASE WHEN final_title = '' THEN ? ELSE final_title END,
			updated_at = ?
		WHERE id = ?
	`, filePath, thumbnailPath, size, title, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to set job artifact: %w", err)
	}
	return nil
}

// SetJobError stores a classified error on a job without changing status
func (r *SQLiteRepository) SetJobError(ctx context.Context, id int64, errType models.ErrorType, message string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET error_type = ?, error_message = ?, updated_at = ? WHERE id = ?
	`, errType, message, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to set job error: %w", err)
	}
	return nil
}

// SetArchived records the relocation of a job's artifact into the archive root
func (r *SQLiteRepository) SetArchived(ctx context.Context, id int64, newPath string, archivedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET file_path = ?, is_archived = 1, archived_at = ?, updated_at = ?
		WHERE id = ?
	`, newPath, archivedAt.Unix(), time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to mark job archived: %w", err)
	}
	return nil
}

// ClearFilePath removes the artifact reference after cleanup deleted the file
func (r *SQLiteRepository) ClearFilePath(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET file_path = '', updated_at = ? WHERE id = ?
	`, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to clear file path: %w", err)
	}
	return nil
}

// ListDeliverableJobs finds completed jobs with a known chat that were never
// delivered, oldest first
func (r *SQLiteRepository) ListDeliverableJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	return r.queryJobs(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE status = ? AND chat_id != '' AND delivered_at IS NULL
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`, models.StatusCompleted, limit)
}

// ListUnnotifiedFailures finds failed jobs and delivery-exhausted completed
// jobs whose owner was never told, oldest first
func (r *SQLiteRepository) ListUnnotifiedFailures(ctx context.Context, maxAttempts, limit int) ([]*models.Job, error) {
	return r.queryJobs(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE chat_id != '' AND failure_notified_at IS NULL
			AND (status = ? OR (status = ? AND delivered_at IS NULL AND delivery_attempts >= ?))
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`, models.StatusFailed, models.StatusCompleted, maxAttempts, limit)
}

// ListCleanupCandidates finds terminal, non-archived jobs with an artifact
// last touched before the cutoff
func (r *SQLiteRepository) ListCleanupCandidates(ctx context.Context, cutoff time.Time, limit int) ([]*models.Job, error) {
	return r.queryJobs(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE status IN (?, ?) AND is_archived = 0 AND file_path != '' AND updated_at < ?
		ORDER BY updated_at ASC, id ASC
		LIMIT ?
	`, models.StatusCompleted, models.StatusFailed, cutoff.Unix(), limit)
}

// MarkJobDelivered records a successful hand-off to the external channel.
// A second delivery of the same job is refused.
func (r *SQLiteRepository) MarkJobDelivered(ctx context.Context, id int64, messageRef string) error {
	now := time.Now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET delivered_at = ?, message_ref = ?, delivery_last_error = '', updated_at = ?
		WHERE id = ? AND delivered_at IS NULL
	`, now.Unix(), messageRef, now.Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to mark job delivered: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %d already delivered or missing", id)
	}
	return nil
}

// MarkDeliveryFailure bumps the attempt counter and stores the failure message
func (r *SQLiteRepository) MarkDeliveryFailure(ctx context.Context, id int64, message string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET delivery_attempts = delivery_attempts + 1, delivery_last_error = ?, updated_at = ?
		WHERE id = ?
	`, message, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to record delivery failure: %w", err)
	}
	return nil
}

// MarkFailureNotified records that the one-time failure notice went out
func (r *SQLiteRepository) MarkFailureNotified(ctx context.Context, id int64) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET failure_notified_at = ?, updated_at = ? WHERE id = ?
	`, now.Unix(), now.Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to mark failure notified: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEvent(ctx context.Context, e execer, jobID int64, kind string, data map[string]any, at time.Time) error {
	encoded := []byte("{}")
	if data != nil {
		var err error
		encoded, err = json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to encode event data: %w", err)
		}
	}
	_, err := e.ExecContext(ctx, `
		INSERT INTO job_events (job_id, kind, data, created_at)
		VALUES (?, ?, ?, ?)
	`, jobID, kind, string(encoded), at.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert job event: %w", err)
	}
	return nil
}
