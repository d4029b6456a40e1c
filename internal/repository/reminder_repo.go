package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"campusevents/internal/model"
)

// StaleLockAfter is how long a claimed row may sit with processing_at set
// before it is considered abandoned and becomes claimable again. Chosen well
// above the dispatch hard deadline so a live invocation can never have its
// rows stolen.
const StaleLockAfter = 10 * time.Minute

// ReminderRepository owns the event_reminders table.
type ReminderRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewReminderRepository(db *pgxpool.Pool, logger *zap.Logger) *ReminderRepository {
	return &ReminderRepository{db: db, logger: logger}
}

// ClaimDue atomically claims up to batchSize unsent rows of the given type
// whose event starts inside [windowStart, windowEnd]. The SELECT locks the
// rows (SKIP LOCKED keeps concurrent invocations disjoint) and the UPDATE
// stamps processing_at inside the same transaction, so a second caller can
// never see the same rows as fresh.
func (r *ReminderRepository) ClaimDue(
	ctx context.Context,
	reminderType model.ReminderType,
	windowStart, windowEnd time.Time,
	batchSize int,
) ([]model.ClaimedReminder, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT r.id, r.user_id, r.event_id, r.reminder_type,
		       p.email, e.title, e.start_time, e.location
		FROM event_reminders r
		JOIN events e ON e.id = r.event_id
		JOIN profiles p ON p.id = r.user_id
		WHERE r.reminder_type = $1
		  AND r.sent = false
		  AND (r.processing_at IS NULL OR r.processing_at < $2)
		  AND e.start_time BETWEEN $3 AND $4
		ORDER BY e.start_time
		LIMIT $5
		FOR UPDATE OF r SKIP LOCKED
	`, reminderType, time.Now().Add(-StaleLockAfter), windowStart, windowEnd, batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to select due reminders: %w", err)
	}

	var claimed []model.ClaimedReminder
	for rows.Next() {
		var c model.ClaimedReminder
		if err := rows.Scan(
			&c.ID,
			&c.UserID,
			&c.EventID,
			&c.ReminderType,
			&c.Email,
			&c.EventTitle,
			&c.StartTime,
			&c.Location,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan claimed reminder: %w", err)
		}
		claimed = append(claimed, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read claimed reminders: %w", err)
	}

	if len(claimed) > 0 {
		ids := make([]string, len(claimed))
		for i, c := range claimed {
			ids[i] = c.ID
		}
		if _, err := tx.Exec(ctx, `
			UPDATE event_reminders
			SET processing_at = now()
			WHERE id = ANY($1)
		`, ids); err != nil {
			return nil, fmt.Errorf("failed to stamp processing_at: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit claim tx: %w", err)
	}

	return claimed, nil
}

// MarkSent records a successful delivery. sent_at, processing_at and
// last_error change together so a sent row can never look like a stuck lock.
func (r *ReminderRepository) MarkSent(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE event_reminders
		SET sent = true, sent_at = now(), processing_at = NULL, last_error = NULL
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	return nil
}

// MarkFailed records the failure reason. processing_at is deliberately left
// untouched: the row stays locked until the stale-lock policy reclaims it,
// which avoids a double-send race against a slow but actually-succeeded send.
func (r *ReminderRepository) MarkFailed(ctx context.Context, id, lastError string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE event_reminders
		SET last_error = $2
		WHERE id = $1
	`, id, lastError)
	if err != nil {
		return fmt.Errorf("failed to mark reminder failed: %w", err)
	}
	return nil
}

// CreateForUser inserts the opt-in pair (1_day and 1_hour) for one event.
func (r *ReminderRepository) CreateForUser(ctx context.Context, userID, eventID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_reminders (user_id, event_id, reminder_type)
		VALUES ($1, $2, '1_day'), ($1, $2, '1_hour')
		ON CONFLICT (user_id, event_id, reminder_type) DO NOTHING
	`, userID, eventID)
	if err != nil {
		return fmt.Errorf("failed to create reminders: %w", err)
	}
	return nil
}

// DeleteForUser removes the user's unsent reminders for one event (opt-out).
func (r *ReminderRepository) DeleteForUser(ctx context.Context, userID, eventID string) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM event_reminders
		WHERE user_id = $1 AND event_id = $2 AND sent = false
	`, userID, eventID)
	if err != nil {
		return fmt.Errorf("failed to delete reminders: %w", err)
	}
	return nil
}
