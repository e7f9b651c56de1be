package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/models"
)

func scanChatSettings(row rowScanner) (*models.ChatSettings, error) {
	var cs models.ChatSettings
	var createdAt, updatedAt int64
	err := row.Scan(
		&cs.ChatID,
		&cs.ArchiveMode,
		&cs.DefaultJobType,
		&cs.DefaultQuality,
		&cs.IsAdmin,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	cs.CreatedAt = time.Unix(createdAt, 0)
	cs.UpdatedAt = time.Unix(updatedAt, 0)
	return &cs, nil
}

// GetOrCreateChatSettings fetches a chat's preferences, inserting defaults on
// first contact
func (r *SQLiteRepository) GetOrCreateChatSettings(ctx context.Context, chatID string) (*models.ChatSettings, error) {
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_settings (chat_id, created_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(chat_id) DO NOTHING
	`, chatID, now.Unix(), now.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to init chat settings: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT chat_id, archive_mode, default_job_type, default_quality, is_admin, created_at, updated_at
		FROM chat_settings WHERE chat_id = ?
	`, chatID)
	settings, err := scanChatSettings(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("chat settings vanished for %s", chatID)
		}
		return nil, fmt.Errorf("failed to get chat settings: %w", err)
	}
	return settings, nil
}

// SetArchiveMode toggles long-term retention for a chat
func (r *SQLiteRepository) SetArchiveMode(ctx context.Context, chatID string, enabled bool) error {
	if _, err := r.GetOrCreateChatSettings(ctx, chatID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE chat_settings SET archive_mode = ?, updated_at = ? WHERE chat_id = ?
	`, enabled, time.Now().Unix(), chatID)
	if err != nil {
		return fmt.Errorf("failed to set archive mode: %w", err)
	}
	return nil
}

// UpdateChatDefaults stores the chat's default media type and quality
func (r *SQLiteRepository) UpdateChatDefaults(ctx context.Context, chatID, defaultJobType, defaultQuality string) error {
	if _, err := r.GetOrCreateChatSettings(ctx, chatID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE chat_settings SET default_job_type = ?, default_quality = ?, updated_at = ? WHERE chat_id = ?
	`, defaultJobType, defaultQuality, time.Now().Unix(), chatID)
	if err != nil {
		return fmt.Errorf("failed to update chat defaults: %w", err)
	}
	return nil
}

// SetAdmin flags a chat as administrative
func (r *SQLiteRepository) SetAdmin(ctx context.Context, chatID string, isAdmin bool) error {
	if _, err := r.GetOrCreateChatSettings(ctx, chatID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE chat_settings SET is_admin = ?, updated_at = ? WHERE chat_id = ?
	`, isAdmin, time.Now().Unix(), chatID)
	if err != nil {
		return fmt.Errorf("failed to set admin flag: %w", err)
	}
	return nil
}
