package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// PushSender delivers a push notification to one device token.
type PushSender interface {
	Send(ctx context.Context, token string, title, body string, data map[string]string) error
}

// LiveNotifier delivers an event to a user's open gateway connections.
type LiveNotifier interface {
	SendToUser(userID uuid.UUID, message interface{})
}

// MediaRemover deletes stored media.
type MediaRemover interface {
	DeleteMedia(ctx context.Context, ref string) error
}

// EventScreenshotTaken is the type of the live event sent to an owner.
const EventScreenshotTaken = "screenshot_taken"

// ScreenshotEvent is pushed to an owner's live connections.
type ScreenshotEvent struct {
	Type     string    `json:"type"`
	ItemID   uuid.UUID `json:"item_id"`
	ViewerID uuid.UUID `json:"viewer_id"`
}

// ViewService is the backend side of the viewed/screenshot reports.
type ViewService struct {
	repo   ViewRepository
	push   PushSender
	live   LiveNotifier
	media  MediaRemover
	logger *zap.Logger
}

func NewViewService(repo ViewRepository, push PushSender, live LiveNotifier, media MediaRemover, logger *zap.Logger) *ViewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewService{
		repo:   repo,
		push:   push,
		live:   live,
		media:  media,
		logger: logger,
	}
}

func (s *ViewService) MarkItemViewed(ctx context.Context, itemID, viewerID uuid.UUID) error {
	created, err := s.repo.CreateItemView(ctx, itemID, viewerID)
	if err != nil {
		return fmt.Errorf("record view: %w", err)
	}
	if !created {
		s.logger.Debug("view already recorded", zap.String("item_id", itemID.String()), zap.String("viewer_id", viewerID.String()))
	}
	return nil
}

// ReportScreenshot records the screenshot and, the first time only, tells the
// owner about it.
func (s *ViewService) ReportScreenshot(ctx context.Context, itemID, viewerID uuid.UUID) error {
	ownerID, created, err := s.repo.CreateScreenshotReport(ctx, itemID, viewerID)
	if err != nil {
		return fmt.Errorf("record screenshot: %w", err)
	}
	if !created {
		return nil
	}

	if s.live != nil {
		s.live.SendToUser(ownerID, ScreenshotEvent{Type: EventScreenshotTaken, ItemID: itemID, ViewerID: viewerID})
	}

	if s.push == nil {
		return nil
	}

	name, err := s.repo.GetViewerName(ctx, viewerID)
	if err != nil || name == "" {
		name = "Someone"
	}
	tokens, err := s.repo.GetFCMTokens(ctx, ownerID)
	if err != nil {
		// the report itself is stored; a missing push is not a failure
		s.logger.Warn("failed to get fcm tokens", zap.String("owner_id", ownerID.String()), zap.Error(err))
		return nil
	}

	data := map[string]string{
		"type":      EventScreenshotTaken,
		"item_id":   itemID.String(),
		"viewer_id": viewerID.String(),
	}
	for _, token := range tokens {
		if token == "" {
			continue
		}
		go s.notify(ownerID, token, name+" took a screenshot!", data)
	}
	return nil
}

// notify pushes to one device and forgets the token once FCM reports it
// unregistered.
func (s *ViewService) notify(ownerID uuid.UUID, token, body string, data map[string]string) {
	ctx := context.Background()
	err := s.push.Send(ctx, token, "Screenshot", body, data)
	if !errors.Is(err, ErrStaleToken) {
		return
	}
	if err := s.repo.DeleteFCMToken(ctx, ownerID, token); err != nil {
		s.logger.Warn("failed to delete stale fcm token", zap.String("owner_id", ownerID.String()), zap.Error(err))
	}
}

// StartCleanupWorker periodically removes expired items until ctx is done.
func (s *ViewService) StartCleanupWorker(ctx context.Context, clock clockwork.Clock, interval time.Duration) {
	go func() {
		ticker := clock.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				s.cleanup(ctx)
			}
		}
	}()
}

func (s *ViewService) cleanup(ctx context.Context) {
	refs, err := s.repo.DeleteExpiredItems(ctx)
	if err != nil {
		s.logger.Error("cleanup failed", zap.Error(err))
		return
	}
	if len(refs) == 0 {
		return
	}
	s.logger.Info("removed expired items", zap.Int("count", len(refs)))

	if s.media == nil {
		return
	}
	for _, ref := range refs {
		if err := s.media.DeleteMedia(ctx, ref); err != nil {
			s.logger.Warn("failed to delete media", zap.String("ref", ref), zap.Error(err))
		}
	}
}
