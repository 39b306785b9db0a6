package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/locolive/playback/pkg/response"
)

type contextKey string

const (
	ViewerIDKey contextKey = "viewer_id"

	// ViewerIDHeader is set by the upstream gateway after authentication.
	ViewerIDHeader = "X-Viewer-ID"
)

// ViewerMiddleware requires a viewer id header and stores it in the context
func ViewerMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(ViewerIDHeader)
			if raw == "" {
				response.Unauthorized(w, "missing viewer id")
				return
			}

			viewerID, err := uuid.Parse(raw)
			if err != nil || viewerID == uuid.Nil {
				response.Unauthorized(w, "invalid viewer id")
				return
			}

			ctx := WithViewerID(r.Context(), viewerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithViewerID(ctx context.Context, viewerID uuid.UUID) context.Context {
	return context.WithValue(ctx, ViewerIDKey, viewerID)
}

// GetViewerID extracts viewer ID from context
func GetViewerID(ctx context.Context) (uuid.UUID, bool) {
	viewerID, ok := ctx.Value(ViewerIDKey).(uuid.UUID)
	return viewerID, ok
}
