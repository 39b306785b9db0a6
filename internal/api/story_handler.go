package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/locolive/playback/internal/domain"
	"github.com/locolive/playback/internal/middleware"
	"github.com/locolive/playback/internal/storage"
	"github.com/locolive/playback/pkg/response"
	"github.com/locolive/playback/pkg/validator"
)

// StoryHandler serves the read-only listings a viewer screen starts from.
type StoryHandler struct {
	items  domain.ItemRepository
	media  storage.MediaStore
	logger *zap.Logger
}

func NewStoryHandler(items domain.ItemRepository, media storage.MediaStore, logger *zap.Logger) *StoryHandler {
	return &StoryHandler{
		items:  items,
		media:  media,
		logger: logger,
	}
}

// ListStories returns active story groups for the viewer, media resolved
func (h *StoryHandler) ListStories(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := middleware.GetViewerID(r.Context())
	if !ok {
		response.Unauthorized(w, "missing viewer id")
		return
	}

	groups, err := h.items.GetStoryGroups(r.Context(), viewerID)
	if err != nil {
		h.logger.Error("list stories failed", zap.Error(err))
		response.InternalError(w, "failed to load stories")
		return
	}

	for gi := range groups {
		for ii := range groups[gi].Items {
			item := &groups[gi].Items[ii]
			url, err := h.media.ResolveURL(r.Context(), item.Media.URL)
			if err != nil {
				h.logger.Warn("failed to resolve media", zap.String("item_id", item.ID.String()), zap.Error(err))
				continue
			}
			item.Media.URL = url
		}
	}
	if groups == nil {
		groups = []domain.StoryGroup{}
	}

	response.OK(w, groups)
}

// GetMessage returns one message addressed to the viewer
func (h *StoryHandler) GetMessage(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := middleware.GetViewerID(r.Context())
	if !ok {
		response.Unauthorized(w, "missing viewer id")
		return
	}

	var errs validator.ValidationErrors
	messageID := errs.RequireUUID("id", chi.URLParam(r, "id"))
	if errs.HasErrors() {
		response.Invalid(w, errs)
		return
	}

	item, err := h.items.GetMessage(r.Context(), messageID, viewerID)
	if err != nil {
		if errors.Is(err, domain.ErrItemNotFound) {
			response.NotFound(w, "message not found")
			return
		}
		h.logger.Error("get message failed", zap.Error(err))
		response.InternalError(w, "failed to load message")
		return
	}

	url, err := h.media.ResolveURL(r.Context(), item.Media.URL)
	if err != nil {
		h.logger.Error("resolve media failed", zap.String("item_id", item.ID.String()), zap.Error(err))
		response.Unavailable(w, "media unavailable")
		return
	}
	item.Media.URL = url

	response.OK(w, item)
}
