package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/models"
)

// degradedFailureThreshold is the recent-failure count at which a profile
// stops being preferred for new jobs.
const degradedFailureThreshold = 3

const profileColumns = `id, source_type, cookie_file_path, status,
	failure_count_recent, last_success_at, last_failure_at, created_at, updated_at`

func scanProfile(row rowScanner) (*models.AuthProfile, error) {
	var p models.AuthProfile
	var lastSuccess, lastFailure sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(
		&p.ID,
		&p.SourceType,
		&p.CookieFilePath,
		&p.Status,
		&p.FailureCountRecent,
		&lastSuccess,
		&lastFailure,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.LastSuccessAt = unixPtr(lastSuccess)
	p.LastFailureAt = unixPtr(lastFailure)
	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)
	return &p, nil
}

// GetProfileByID retrieves an auth profile, returning (nil, nil) when absent
func (r *SQLiteRepository) GetProfileByID(ctx context.Context, id string) (*models.AuthProfile, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM auth_profiles WHERE id = ?`, id)
	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get auth profile: %w", err)
	}
	return profile, nil
}

// UpsertProfile creates or replaces an auth profile definition
func (r *SQLiteRepository) UpsertProfile(ctx context.Context, profile *models.AuthProfile) error {
	now := time.Now()
	if profile.Status == "" {
		profile.Status = models.ProfileActive
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auth_profiles (id, source_type, cookie_file_path, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_type = excluded.source_type,
			cookie_file_path = excluded.cookie_file_path,
			status = excluded.status,
			updated_at = excluded.updated_at
	`, profile.ID, profile.SourceType, profile.CookieFilePath, profile.Status, now.Unix(), now.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert auth profile: %w", err)
	}
	return nil
}

// PreferredProfileForSource returns an ACTIVE profile for the source, or
// (nil, nil) when none qualifies
func (r *SQLiteRepository) PreferredProfileForSource(ctx context.Context, source models.SourceType) (*models.AuthProfile, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+profileColumns+` FROM auth_profiles
		WHERE source_type = ? AND status = ?
		ORDER BY failure_count_recent ASC, id ASC
		LIMIT 1
	`, source, models.ProfileActive)
	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find preferred auth profile: %w", err)
	}
	return profile, nil
}

// MarkProfileSuccess resets the failure window and reactivates the profile
func (r *SQLiteRepository) MarkProfileSuccess(ctx context.Context, id string) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		UPDATE auth_profiles
		SET last_success_at = ?, failure_count_recent = 0, status = ?, updated_at = ?
		WHERE id = ?
	`, now.Unix(), models.ProfileActive, now.Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to mark profile success: %w", err)
	}
	return nil
}

// MarkProfileFailure bumps the rolling failure count, degrading the profile
// once it crosses the threshold
func (r *SQLiteRepository) MarkProfileFailure(ctx context.Context, id string) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		UPDATE auth_profiles
		SET last_failure_at = ?,
			failure_count_recent = failure_count_recent + 1,
			status = CASE
				WHEN status = ? THEN status
				WHEN failure_count_recent + 1 >= ? THEN ?
				ELSE status
			END,
			updated_at = ?
		WHERE id = ?
	`, now.Unix(), models.ProfileDisabled, degradedFailureThreshold, models.ProfileDegraded, now.Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to mark profile failure: %w", err)
	}
	return nil
}
