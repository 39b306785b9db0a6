package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type MediaKind string

const (
	MediaKindPhoto MediaKind = "photo"
	MediaKindVideo MediaKind = "video"
)

// MediaRef points at the asset backing an item. URL is opaque to the playback
// engine; the rendering layer fetches it.
type MediaRef struct {
	URL  string    `json:"url"`
	Kind MediaKind `json:"kind"`
}

func (m MediaRef) IsVideo() bool {
	return m.Kind == MediaKindVideo
}

// EphemeralItem is a disappearing message or a story unit. Read-only to the
// playback engine.
type EphemeralItem struct {
	ID                  uuid.UUID `json:"id"`
	OwnerID             uuid.UUID `json:"owner_id"`
	Media               MediaRef  `json:"media"`
	Text                *string   `json:"text,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	TimerSeconds        int       `json:"timer_seconds,omitempty"` // messages only
	ViewedByCurrentUser bool      `json:"viewed_by_current_user"`
}

// StoryGroup is one owner's stories in caller-supplied (chronological) order.
type StoryGroup struct {
	OwnerID          uuid.UUID       `json:"owner_id"`
	OwnerDisplayName string          `json:"owner_display_name"`
	OwnerAvatarURL   *string         `json:"owner_avatar_url,omitempty"`
	Items            []EphemeralItem `json:"items"`
	HasUnviewed      bool            `json:"has_unviewed"`
}

// ItemRepository loads items for a viewer. Expired items are never returned.
type ItemRepository interface {
	GetStoryGroups(ctx context.Context, viewerID uuid.UUID) ([]StoryGroup, error)
	GetMessage(ctx context.Context, messageID, viewerID uuid.UUID) (*EphemeralItem, error)
}

// ViewRepository records viewer interactions. Both inserts are idempotent:
// created reports whether this call wrote a new record.
type ViewRepository interface {
	CreateItemView(ctx context.Context, itemID, viewerID uuid.UUID) (created bool, err error)
	CreateScreenshotReport(ctx context.Context, itemID, viewerID uuid.UUID) (ownerID uuid.UUID, created bool, err error)
	GetViewerName(ctx context.Context, viewerID uuid.UUID) (string, error)
	GetFCMTokens(ctx context.Context, userID uuid.UUID) ([]string, error)
	DeleteFCMToken(ctx context.Context, userID uuid.UUID, token string) error
	// DeleteExpiredItems removes expired stories and fully viewed messages and
	// returns the media references they pointed at.
	DeleteExpiredItems(ctx context.Context) ([]string, error)
}
