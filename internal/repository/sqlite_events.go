package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/models"
)

// AddJobEvent appends one entry to a job's timeline
func (r *SQLiteRepository) AddJobEvent(ctx context.Context, jobID int64, kind string, data map[string]any) error {
	return insertEvent(ctx, r.db, jobID, kind, data, time.Now())
}

// ListJobEvents returns a job's timeline, oldest first
func (r *SQLiteRepository) ListJobEvents(ctx context.Context, jobID int64, limit int) ([]*models.JobEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, job_id, kind, data, created_at
		FROM job_events
		WHERE job_id = ?
		ORDER BY id ASC
		LIMIT ?
	`, jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query job events: %w", err)
	}
	defer rows.Close()

	var events []*models.JobEvent
	for rows.Next() {
		var ev models.JobEvent
		var raw string
		var createdAt int64
		if err := rows.Scan(&ev.ID, &ev.JobID, &ev.Kind, &raw, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan job event: %w", err)
		}
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &ev.Data); err != nil {
				return nil, fmt.Errorf("failed to decode event data: %w", err)
			}
		}
		ev.CreatedAt = time.Unix(createdAt, 0)
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate job events: %w", err)
	}
	return events, nil
}
