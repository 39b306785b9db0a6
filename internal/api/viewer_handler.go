package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/locolive/playback/internal/config"
	"github.com/locolive/playback/internal/domain"
	"github.com/locolive/playback/internal/metrics"
	"github.com/locolive/playback/internal/middleware"
	"github.com/locolive/playback/internal/session"
	"github.com/locolive/playback/internal/storage"
	"github.com/locolive/playback/pkg/response"
)

// ViewerHandler serves the websocket gateway that drives playback for a
// viewer screen.
type ViewerHandler struct {
	items    domain.ItemRepository
	media    storage.MediaStore
	reporter session.Reporter
	hub      *Hub
	metrics  *metrics.Metrics
	cfg      config.PlaybackConfig
	clock    clockwork.Clock
	logger   *zap.Logger
}

func NewViewerHandler(
	items domain.ItemRepository,
	media storage.MediaStore,
	reporter session.Reporter,
	hub *Hub,
	m *metrics.Metrics,
	cfg config.PlaybackConfig,
	clock clockwork.Clock,
	logger *zap.Logger,
) *ViewerHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ViewerHandler{
		items:    items,
		media:    media,
		reporter: reporter,
		hub:      hub,
		metrics:  m,
		cfg:      cfg,
		clock:    clock,
		logger:   logger,
	}
}

// HandleWebSocket upgrades the connection and runs the viewer until the
// client disconnects.
func (h *ViewerHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := middleware.GetViewerID(r.Context())
	if !ok {
		response.Unauthorized(w, "missing viewer id")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(viewerID, conn)
	h.hub.Register(client)
	h.metrics.ViewerConnected()
	go client.WritePump()

	ctx, cancel := context.WithCancel(context.Background())
	vc := newViewerConn(h, viewerID, client)
	go vc.progressLoop(ctx)

	defer func() {
		cancel()
		vc.dispose()
		h.hub.Unregister(client)
		h.metrics.ViewerDisconnected()
	}()

	h.readPump(ctx, vc, conn)
}

func (h *ViewerHandler) readPump(ctx context.Context, vc *viewerConn, conn *websocket.Conn) {
	limiter := rate.NewLimiter(rate.Limit(h.cfg.CommandRate), h.cfg.CommandBurst)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				vc.logger.Debug("viewer connection lost", zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		if !limiter.Allow() {
			h.metrics.IncCommandsThrottled()
			vc.emit(Event{Type: EvError, Code: CodeRateLimited, Message: "too many commands"})
			continue
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			vc.emit(Event{Type: EvError, Code: CodeInvalidCommand, Message: "malformed command"})
			continue
		}
		if errs := cmd.Validate(); errs.HasErrors() {
			vc.emit(Event{Type: EvError, Code: CodeInvalidCommand, Message: errs.Error(), Details: errs})
			continue
		}

		vc.handle(ctx, cmd)
	}
}
