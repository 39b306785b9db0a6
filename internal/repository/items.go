package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/locolive/playback/internal/domain"
)

// storyRow is one active story joined with its owner and the viewer's view state.
type storyRow struct {
	item        domain.EphemeralItem
	ownerName   string
	ownerAvatar *string
}

// GetStoryGroups returns active stories grouped by owner. Items inside a group
// are chronological; groups with unviewed items come first, then by most
// recent story.
func (r *PostgresRepository) GetStoryGroups(ctx context.Context, viewerID uuid.UUID) ([]domain.StoryGroup, error) {
	query := `
		SELECT i.id, i.user_id, i.media_url, i.media_type, i.text, i.created_at,
		       u.name, u.avatar_url,
		       (v.viewer_id IS NOT NULL) AS viewed
		FROM ephemeral_items i
		JOIN users u ON u.id = i.user_id
		LEFT JOIN item_views v ON v.item_id = i.id AND v.viewer_id = $1
		WHERE i.kind = 'story' AND i.expires_at > NOW()
		ORDER BY i.user_id, i.created_at ASC
	`
	rows, err := r.db.Query(ctx, query, viewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stories []storyRow
	for rows.Next() {
		var (
			s         storyRow
			mediaType string
		)
		if err := rows.Scan(
			&s.item.ID,
			&s.item.OwnerID,
			&s.item.Media.URL,
			&mediaType,
			&s.item.Text,
			&s.item.CreatedAt,
			&s.ownerName,
			&s.ownerAvatar,
			&s.item.ViewedByCurrentUser,
		); err != nil {
			return nil, err
		}
		s.item.Media.Kind = domain.MediaKind(mediaType)
		stories = append(stories, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return groupStories(stories), nil
}

// groupStories expects rows ordered by owner then creation time.
func groupStories(rows []storyRow) []domain.StoryGroup {
	var (
		groups []domain.StoryGroup
		latest []time.Time
	)
	for _, row := range rows {
		n := len(groups)
		if n == 0 || groups[n-1].OwnerID != row.item.OwnerID {
			groups = append(groups, domain.StoryGroup{
				OwnerID:          row.item.OwnerID,
				OwnerDisplayName: row.ownerName,
				OwnerAvatarURL:   row.ownerAvatar,
			})
			latest = append(latest, time.Time{})
			n++
		}
		g := &groups[n-1]
		g.Items = append(g.Items, row.item)
		if !row.item.ViewedByCurrentUser {
			g.HasUnviewed = true
		}
		if row.item.CreatedAt.After(latest[n-1]) {
			latest[n-1] = row.item.CreatedAt
		}
	}

	idx := make([]int, len(groups))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ga, gb := groups[idx[a]], groups[idx[b]]
		if ga.HasUnviewed != gb.HasUnviewed {
			return ga.HasUnviewed
		}
		return latest[idx[a]].After(latest[idx[b]])
	})

	sorted := make([]domain.StoryGroup, len(groups))
	for i, j := range idx {
		sorted[i] = groups[j]
	}
	return sorted
}

// GetMessage returns a message addressed to viewerID.
func (r *PostgresRepository) GetMessage(ctx context.Context, messageID, viewerID uuid.UUID) (*domain.EphemeralItem, error) {
	query := `
		SELECT i.id, i.user_id, i.media_url, i.media_type, i.text, i.created_at, i.timer_seconds,
		       EXISTS (SELECT 1 FROM item_views v WHERE v.item_id = i.id AND v.viewer_id = $2) AS viewed
		FROM ephemeral_items i
		WHERE i.id = $1 AND i.kind = 'message' AND i.recipient_id = $2
	`
	var (
		item      domain.EphemeralItem
		mediaType string
	)
	err := r.db.QueryRow(ctx, query, messageID, viewerID).Scan(
		&item.ID,
		&item.OwnerID,
		&item.Media.URL,
		&mediaType,
		&item.Text,
		&item.CreatedAt,
		&item.TimerSeconds,
		&item.ViewedByCurrentUser,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrItemNotFound
		}
		return nil, err
	}
	item.Media.Kind = domain.MediaKind(mediaType)
	return &item, nil
}
