package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrItemNotFound   = errors.New("item not found")
	ErrNoStories      = errors.New("no stories to play")
	ErrInvalidCursor  = errors.New("cursor out of range")
	ErrSequenceClosed = errors.New("story sequence closed")
	// ErrStaleToken is returned by a PushSender for a device token that is no
	// longer registered.
	ErrStaleToken = errors.New("device token not registered")
	ErrMediaLoad  = errors.New("media failed to load")
)

// MediaLoadError is raised when an item's asset cannot be fetched or decoded.
type MediaLoadError struct {
	ItemID uuid.UUID
	Reason string
}

func (e *MediaLoadError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("item %s: %v", e.ItemID, ErrMediaLoad)
	}
	return fmt.Sprintf("item %s: %v: %s", e.ItemID, ErrMediaLoad, e.Reason)
}

func (e *MediaLoadError) Unwrap() error {
	return ErrMediaLoad
}
