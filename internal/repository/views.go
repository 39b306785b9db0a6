package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/locolive/playback/internal/domain"
)

// CreateItemView records a view once per (item, viewer).
func (r *PostgresRepository) CreateItemView(ctx context.Context, itemID, viewerID uuid.UUID) (bool, error) {
	query := `
		INSERT INTO item_views (item_id, viewer_id)
		VALUES ($1, $2)
		ON CONFLICT (item_id, viewer_id) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query, itemID, viewerID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, domain.ErrItemNotFound
		}
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CreateScreenshotReport records a screenshot once per (item, viewer) and
// returns the item's owner.
func (r *PostgresRepository) CreateScreenshotReport(ctx context.Context, itemID, viewerID uuid.UUID) (uuid.UUID, bool, error) {
	query := `
		WITH item AS (
			SELECT id, user_id FROM ephemeral_items WHERE id = $1
		), inserted AS (
			INSERT INTO screenshot_reports (item_id, viewer_id)
			SELECT id, $2 FROM item
			ON CONFLICT (item_id, viewer_id) DO NOTHING
			RETURNING item_id
		)
		SELECT item.user_id, EXISTS (SELECT 1 FROM inserted) FROM item
	`
	var (
		ownerID uuid.UUID
		created bool
	)
	err := r.db.QueryRow(ctx, query, itemID, viewerID).Scan(&ownerID, &created)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, false, domain.ErrItemNotFound
		}
		if isForeignKeyViolation(err) {
			return uuid.Nil, false, domain.ErrItemNotFound
		}
		return uuid.Nil, false, err
	}
	return ownerID, created, nil
}

// GetViewerName returns the display name of a user, or "" if unknown.
func (r *PostgresRepository) GetViewerName(ctx context.Context, viewerID uuid.UUID) (string, error) {
	var name string
	err := r.db.QueryRow(ctx, `SELECT name FROM users WHERE id = $1`, viewerID).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return name, nil
}

func (r *PostgresRepository) GetFCMTokens(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT token FROM device_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// DeleteFCMToken forgets a device token that FCM no longer accepts.
func (r *PostgresRepository) DeleteFCMToken(ctx context.Context, userID uuid.UUID, token string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM device_tokens WHERE user_id = $1 AND token = $2`, userID, token)
	return err
}

// DeleteExpiredItems removes stories past their expiry and messages whose
// recipient viewed them longer ago than the message's timer plus the grace
// window, so media is never removed while it can still be on screen.
func (r *PostgresRepository) DeleteExpiredItems(ctx context.Context) ([]string, error) {
	query := `
		DELETE FROM ephemeral_items i
		WHERE (i.kind = 'story' AND i.expires_at < NOW())
		   OR (i.kind = 'message' AND EXISTS (
		          SELECT 1 FROM item_views v
		          WHERE v.item_id = i.id AND v.viewer_id = i.recipient_id
		            AND v.viewed_at < NOW() - make_interval(secs =>
		                CASE WHEN i.timer_seconds > 0 THEN i.timer_seconds ELSE $1::int END + $2::int)
		      ))
		RETURNING i.media_url
	`
	rows, err := r.db.Query(ctx, query, seconds(r.retention.DefaultTimer), seconds(r.retention.Grace))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// seconds rounds d up to whole seconds.
func seconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}
