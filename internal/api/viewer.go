package api

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/locolive/playback/internal/domain"
	"github.com/locolive/playback/internal/sequencer"
	"github.com/locolive/playback/internal/session"
	"github.com/locolive/playback/pkg/validator"
)

// viewer is the playback surface behind one connection: a single message or
// a story sequence.
type viewer interface {
	Hold()
	Release()
	Screenshot()
	Retry()
	Close()
	Dispose()
	VideoEnded(itemID uuid.UUID)
	MediaFailed(itemID uuid.UUID, reason string)
	progress() *Event
}

type messageViewer struct {
	ctrl *session.Controller
}

func (m *messageViewer) Hold()       { m.ctrl.Hold() }
func (m *messageViewer) Release()    { m.ctrl.Release() }
func (m *messageViewer) Screenshot() { m.ctrl.Screenshot() }
func (m *messageViewer) Retry()      { m.ctrl.Retry() }
func (m *messageViewer) Close()      { m.ctrl.Close() }
func (m *messageViewer) Dispose()    { m.ctrl.Dispose() }

func (m *messageViewer) VideoEnded(itemID uuid.UUID) {
	if itemID == m.ctrl.Item().ID {
		m.ctrl.VideoEnded()
	}
}

func (m *messageViewer) MediaFailed(itemID uuid.UUID, reason string) {
	if itemID == m.ctrl.Item().ID {
		m.ctrl.MediaFailed(reason)
	}
}

func (m *messageViewer) progress() *Event {
	snap := m.ctrl.Snapshot()
	if !snap.Phase.Active() {
		return nil
	}
	return &Event{Type: EvProgress, ItemID: snap.ItemID.String(), Progress: progressOf(snap)}
}

type storyViewer struct {
	*sequencer.Sequencer
}

func (s storyViewer) progress() *Event {
	snap, ok := s.Snapshot()
	if !ok || !snap.Phase.Active() {
		return nil
	}
	p := progressOf(snap)
	p.Segments = s.Segments()
	return &Event{Type: EvProgress, ItemID: snap.ItemID.String(), Progress: p}
}

func progressOf(snap session.ViewSession) *Progress {
	return &Progress{
		Phase:       snap.Phase.String(),
		Fraction:    snap.Progress,
		RemainingMS: snap.Remaining.Milliseconds(),
		TotalMS:     snap.Total.Milliseconds(),
	}
}

// remotePlayer forwards playback control to the client, which owns the
// actual video element.
type remotePlayer struct {
	vc     *viewerConn
	itemID uuid.UUID
}

func (p remotePlayer) Play()   { p.send("play") }
func (p remotePlayer) Pause()  { p.send("pause") }
func (p remotePlayer) Resume() { p.send("resume") }
func (p remotePlayer) Unload() { p.send("unload") }

func (p remotePlayer) send(action string) {
	p.vc.emit(Event{Type: EvPlayer, ItemID: p.itemID.String(), Action: action})
}

// viewerConn is the per-connection playback state. At most one viewer is
// active; gen identifies it so callbacks from a replaced viewer are dropped.
type viewerConn struct {
	h        *ViewerHandler
	viewerID uuid.UUID
	client   *Client
	logger   *zap.Logger

	mu     sync.Mutex
	gen    uint64
	active viewer
}

func newViewerConn(h *ViewerHandler, viewerID uuid.UUID, client *Client) *viewerConn {
	return &viewerConn{
		h:        h,
		viewerID: viewerID,
		client:   client,
		logger:   h.logger.With(zap.String("viewer_id", viewerID.String())),
	}
}

func (vc *viewerConn) handle(ctx context.Context, cmd Command) {
	switch cmd.Type {
	case CmdOpenMessage:
		vc.openMessage(ctx, uuid.MustParse(cmd.ItemID))
		return
	case CmdOpenStories:
		var owner *uuid.UUID
		if cmd.OwnerID != "" {
			id := uuid.MustParse(cmd.OwnerID)
			owner = &id
		}
		vc.openStories(ctx, owner)
		return
	}

	v, _ := vc.current()
	if v == nil {
		vc.emit(Event{Type: EvError, Code: CodeNoViewer, Message: "nothing is open"})
		return
	}

	switch cmd.Type {
	case CmdHold:
		v.Hold()
	case CmdRelease:
		v.Release()
	case CmdScreenshot:
		v.Screenshot()
	case CmdRetry:
		v.Retry()
	case CmdClose:
		v.Close()
	case CmdVideoEnded:
		v.VideoEnded(uuid.MustParse(cmd.ItemID))
	case CmdMediaError:
		v.MediaFailed(uuid.MustParse(cmd.ItemID), validator.SanitizeString(cmd.Reason, validator.MaxReasonLength))
	case CmdNext, CmdPrev, CmdTap:
		stories, ok := v.(storyViewer)
		if !ok {
			vc.emit(Event{Type: EvError, Code: CodeInvalidCommand, Message: cmd.Type + " needs an open story sequence"})
			return
		}
		switch cmd.Type {
		case CmdNext:
			stories.Next()
		case CmdPrev:
			stories.Prev()
		default:
			stories.Tap(cmd.X, cmd.Width)
		}
	}
}

func (vc *viewerConn) openMessage(ctx context.Context, messageID uuid.UUID) {
	item, err := vc.h.items.GetMessage(ctx, messageID, vc.viewerID)
	if err != nil {
		vc.loadFailed(err, messageID)
		return
	}
	if err := vc.resolve(ctx, item); err != nil {
		vc.logger.Warn("failed to resolve media", zap.String("item_id", item.ID.String()), zap.Error(err))
		vc.emit(Event{Type: EvError, Code: CodeMediaLoad, ItemID: item.ID.String(), Message: "media unavailable"})
		return
	}

	gen := vc.replace()
	m := vc.h.metrics
	opened := *item

	var player session.Player
	if item.Media.IsVideo() {
		player = remotePlayer{vc: vc, itemID: item.ID}
	}

	mv := &messageViewer{}
	mv.ctrl = session.New(*item, session.Options{
		ViewerID:        vc.viewerID,
		DefaultDuration: vc.h.cfg.MessageDefaultTimer,
		CloseOnExpire:   true,
		ExitDelay:       vc.h.cfg.ExitDelay,
		Clock:           vc.h.clock,
		Reporter:        vc.h.reporter,
		Player:          player,
		Logger:          vc.logger.With(zap.String("item_id", item.ID.String())),
		Callbacks: session.Callbacks{
			OnView: func(id uuid.UUID) {
				m.IncSessionsOpened()
				vc.emitFor(gen, Event{Type: EvView, ItemID: id.String(), Item: &opened})
			},
			OnExpire: func(id uuid.UUID) {
				m.IncSessionsExpired(mv.ctrl.Snapshot().ExpiredBy.String())
				vc.emitFor(gen, Event{Type: EvExpire, ItemID: id.String()})
			},
			OnClose: func() {
				m.IncSessionsClosed()
				vc.clear(gen)
				vc.emitFor(gen, Event{Type: EvClose, ItemID: opened.ID.String()})
			},
			OnScreenshot: func(id uuid.UUID) {
				vc.emitFor(gen, Event{Type: EvScreenshot, ItemID: id.String()})
			},
			OnError: func(id uuid.UUID, err error) {
				m.IncSessionsErrored()
				vc.emitFor(gen, Event{Type: EvError, Code: CodeMediaLoad, ItemID: id.String(), Message: err.Error()})
			},
		},
	})

	if vc.install(gen, mv) {
		mv.ctrl.Open()
	}
}

func (vc *viewerConn) openStories(ctx context.Context, owner *uuid.UUID) {
	groups, err := vc.h.items.GetStoryGroups(ctx, vc.viewerID)
	if err != nil {
		vc.loadFailed(err, uuid.Nil)
		return
	}
	for gi := range groups {
		for ii := range groups[gi].Items {
			item := &groups[gi].Items[ii]
			if err := vc.resolve(ctx, item); err != nil {
				// the player reports media_error for it when it fails to load
				vc.logger.Warn("failed to resolve media", zap.String("item_id", item.ID.String()), zap.Error(err))
			}
		}
	}

	// gen is assigned once the sequence is ready; no callback fires before Start.
	var gen uint64
	m := vc.h.metrics

	seq, err := sequencer.New(groups, sequencer.Options{
		ViewerID:     vc.viewerID,
		ItemDuration: vc.h.cfg.StoryItemDuration,
		Clock:        vc.h.clock,
		Reporter:     vc.h.reporter,
		Players: func(item domain.EphemeralItem) session.Player {
			return remotePlayer{vc: vc, itemID: item.ID}
		},
		Logger: vc.logger,
		Callbacks: sequencer.Callbacks{
			OnStoryViewed: func(id uuid.UUID) {
				m.IncSessionsOpened()
				vc.emitFor(gen, Event{Type: EvStoryViewed, ItemID: id.String()})
			},
			OnExpire: func(id uuid.UUID, source session.Source) {
				m.IncSessionsExpired(source.String())
				vc.emitFor(gen, Event{Type: EvExpire, ItemID: id.String()})
			},
			OnMove: func(c sequencer.Cursor, item domain.EphemeralItem) {
				m.IncStoryMoves()
				vc.emitFor(gen, Event{Type: EvMove, ItemID: item.ID.String(), Item: &item, Cursor: &c})
			},
			OnScreenshot: func(id uuid.UUID) {
				vc.emitFor(gen, Event{Type: EvScreenshot, ItemID: id.String()})
			},
			OnError: func(id uuid.UUID, err error) {
				m.IncSessionsErrored()
				vc.emitFor(gen, Event{Type: EvError, Code: CodeMediaLoad, ItemID: id.String(), Message: err.Error()})
			},
			OnClose: func() {
				m.IncSessionsClosed()
				vc.clear(gen)
				vc.emitFor(gen, Event{Type: EvClose})
			},
		},
	})
	if err != nil {
		vc.emit(Event{Type: EvError, Code: CodeNoStories, Message: err.Error()})
		return
	}

	var start sequencer.Cursor
	if owner != nil {
		c, ok := seq.CursorForOwner(*owner)
		if !ok {
			vc.emit(Event{Type: EvError, Code: CodeNotFound, Message: "owner has no active stories"})
			return
		}
		start = c
	} else {
		start, _ = seq.CursorForOwner(seq.Groups()[0].OwnerID)
	}

	gen = vc.replace()
	if !vc.install(gen, storyViewer{seq}) {
		return
	}
	if err := seq.Start(start); err != nil {
		vc.logger.Error("failed to start stories", zap.Error(err))
	}
}

func (vc *viewerConn) loadFailed(err error, itemID uuid.UUID) {
	if errors.Is(err, domain.ErrItemNotFound) {
		vc.emit(Event{Type: EvError, Code: CodeNotFound, ItemID: itemID.String(), Message: err.Error()})
		return
	}
	vc.logger.Error("failed to load items", zap.Error(err))
	vc.emit(Event{Type: EvError, Code: CodeInternal, Message: "failed to load"})
}

func (vc *viewerConn) resolve(ctx context.Context, item *domain.EphemeralItem) error {
	if vc.h.media == nil {
		return nil
	}
	url, err := vc.h.media.ResolveURL(ctx, item.Media.URL)
	if err != nil {
		return err
	}
	item.Media.URL = url
	return nil
}

// replace retires the active viewer, silently, and returns the generation
// for its successor.
func (vc *viewerConn) replace() uint64 {
	vc.mu.Lock()
	vc.gen++
	gen := vc.gen
	prev := vc.active
	vc.active = nil
	vc.mu.Unlock()

	if prev != nil {
		prev.Dispose()
	}
	return gen
}

func (vc *viewerConn) install(gen uint64, v viewer) bool {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	if gen != vc.gen {
		return false
	}
	vc.active = v
	return true
}

// clear drops the viewer of generation gen once it closed by itself. The
// generation is kept so the close event still goes out.
func (vc *viewerConn) clear(gen uint64) {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	if gen == vc.gen {
		vc.active = nil
	}
}

func (vc *viewerConn) current() (viewer, uint64) {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return vc.active, vc.gen
}

// dispose unmounts the connection's viewer without a close event.
func (vc *viewerConn) dispose() {
	vc.replace()
}

func (vc *viewerConn) progressLoop(ctx context.Context) {
	ticker := vc.h.clock.NewTicker(vc.h.cfg.ProgressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			v, gen := vc.current()
			if v == nil {
				continue
			}
			if ev := v.progress(); ev != nil {
				vc.emitFor(gen, *ev)
			}
		}
	}
}

func (vc *viewerConn) emitFor(gen uint64, ev Event) {
	vc.mu.Lock()
	current := gen == vc.gen
	vc.mu.Unlock()
	if current {
		vc.emit(ev)
	}
}

func (vc *viewerConn) emit(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		vc.logger.Error("failed to marshal event", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	if !vc.client.Send(data) {
		vc.logger.Debug("event dropped", zap.String("type", ev.Type))
	}
}
