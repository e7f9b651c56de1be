package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/models"
)

// CreateDraft stores an ephemeral pre-job record
func (r *SQLiteRepository) CreateDraft(ctx context.Context, draft *models.JobDraft) error {
	draft.CreatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO job_drafts (id, chat_id, user_id, url, source_type, url_domain, suggested_title, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		draft.ID,
		draft.ChatID,
		draft.UserID,
		draft.URL,
		draft.SourceType,
		draft.URLDomain,
		draft.SuggestedTitle,
		draft.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create draft: %w", err)
	}
	return nil
}

// GetDraftByID retrieves a draft, returning (nil, nil) when absent
func (r *SQLiteRepository) GetDraftByID(ctx context.Context, id string) (*models.JobDraft, error) {
	var draft models.JobDraft
	var createdAt int64
	err := r.db.QueryRowContext(ctx, `
		SELECT id, chat_id, user_id, url, source_type, url_domain, suggested_title, created_at
		FROM job_drafts WHERE id = ?
	`, id).Scan(
		&draft.ID,
		&draft.ChatID,
		&draft.UserID,
		&draft.URL,
		&draft.SourceType,
		&draft.URLDomain,
		&draft.SuggestedTitle,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	draft.CreatedAt = time.Unix(createdAt, 0)
	return &draft, nil
}

// DeleteDraft removes a consumed or cancelled draft
func (r *SQLiteRepository) DeleteDraft(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM job_drafts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

// DeleteExpiredDrafts prunes drafts older than the cutoff
func (r *SQLiteRepository) DeleteExpiredDrafts(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM job_drafts WHERE created_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired drafts: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(affected), nil
}
