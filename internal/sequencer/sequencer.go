// Package sequencer plays a sequence of story groups, one ephemeral session
// at a time, with forward/backward navigation and auto-advance.
package sequencer

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/locolive/playback/internal/domain"
	"github.com/locolive/playback/internal/session"
)

// DefaultItemDuration is the fixed on-screen time of every story.
const DefaultItemDuration = 5 * time.Second

// PlayerFactory returns the playback handle for a video item.
type PlayerFactory func(item domain.EphemeralItem) session.Player

// Callbacks run outside the sequencer's locks.
type Callbacks struct {
	OnStoryViewed func(itemID uuid.UUID)
	OnExpire      func(itemID uuid.UUID, source session.Source)
	OnMove        func(cursor Cursor, item domain.EphemeralItem)
	OnScreenshot  func(itemID uuid.UUID)
	OnError       func(itemID uuid.UUID, err error)
	OnClose       func()
}

type Options struct {
	ViewerID     uuid.UUID
	ItemDuration time.Duration
	Clock        clockwork.Clock
	Reporter     session.Reporter
	Players      PlayerFactory
	Logger       *zap.Logger
	Callbacks    Callbacks
}

type Sequencer struct {
	groups []domain.StoryGroup
	opts   Options
	logger *zap.Logger

	// nav serializes cursor moves so that the outgoing controller is torn
	// down before the incoming one is opened.
	nav sync.Mutex

	mu       sync.Mutex
	cursor   Cursor
	started  bool
	closed   bool
	current  *session.Controller
	gen      uint64
	reported map[uuid.UUID]bool
	pending  []func()
}

// New copies groups, dropping those without items.
func New(groups []domain.StoryGroup, opts Options) (*Sequencer, error) {
	kept := make([]domain.StoryGroup, 0, len(groups))
	for _, g := range groups {
		if len(g.Items) == 0 {
			continue
		}
		g.Items = append([]domain.EphemeralItem(nil), g.Items...)
		kept = append(kept, g)
	}
	if len(kept) == 0 {
		return nil, domain.ErrNoStories
	}

	if opts.ItemDuration <= 0 {
		opts.ItemDuration = DefaultItemDuration
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Sequencer{
		groups:   kept,
		opts:     opts,
		logger:   opts.Logger,
		reported: make(map[uuid.UUID]bool),
	}, nil
}

func (s *Sequencer) Groups() []domain.StoryGroup {
	return s.groups
}

// CursorForOwner returns the position to open an owner's stories at: the
// first unviewed item, or the first item when all were seen.
func (s *Sequencer) CursorForOwner(ownerID uuid.UUID) (Cursor, bool) {
	for gi, g := range s.groups {
		if g.OwnerID != ownerID {
			continue
		}
		for ii, item := range g.Items {
			if !item.ViewedByCurrentUser {
				return Cursor{Group: gi, Item: ii}, true
			}
		}
		return Cursor{Group: gi}, true
	}
	return Cursor{}, false
}

// Start opens the sequence at the given position. A sequence that was closed
// or disposed cannot be started.
func (s *Sequencer) Start(at Cursor) error {
	if !valid(s.groups, at) {
		return domain.ErrInvalidCursor
	}

	s.nav.Lock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.nav.Unlock()
		return domain.ErrSequenceClosed
	}
	if s.started {
		s.mu.Unlock()
		s.nav.Unlock()
		return nil
	}
	s.started = true
	ctrl := s.arriveLocked(at)
	s.mu.Unlock()

	ctrl.Open()
	s.nav.Unlock()

	s.flush()
	return nil
}

// Next advances forward. Past the last item of the last group the sequence
// closes.
func (s *Sequencer) Next() {
	s.step(true, 0)
	s.flush()
}

// Prev moves backward. At the very first item it does nothing.
func (s *Sequencer) Prev() {
	s.step(false, 0)
	s.flush()
}

// Tap navigates according to TapZone.
func (s *Sequencer) Tap(x, width float64) {
	if TapZone(x, width) == ZoneBackward {
		s.Prev()
		return
	}
	s.Next()
}

func (s *Sequencer) Hold() {
	if ctrl := s.active(); ctrl != nil {
		ctrl.Hold()
	}
	s.flush()
}

func (s *Sequencer) Release() {
	if ctrl := s.active(); ctrl != nil {
		ctrl.Release()
	}
	s.flush()
}

func (s *Sequencer) Screenshot() {
	if ctrl := s.active(); ctrl != nil {
		ctrl.Screenshot()
	}
	s.flush()
}

// VideoEnded reports natural end of playback of itemID. Reports for items
// that are no longer on screen are dropped.
func (s *Sequencer) VideoEnded(itemID uuid.UUID) {
	if ctrl := s.activeItem(itemID); ctrl != nil {
		ctrl.VideoEnded()
	}
	s.flush()
}

func (s *Sequencer) MediaFailed(itemID uuid.UUID, reason string) {
	if ctrl := s.activeItem(itemID); ctrl != nil {
		ctrl.MediaFailed(reason)
	}
	s.flush()
}

func (s *Sequencer) Retry() {
	if ctrl := s.active(); ctrl != nil {
		ctrl.Retry()
	}
	s.flush()
}

// Close is an explicit user exit: the active item is torn down, then OnClose
// runs once.
func (s *Sequencer) Close() {
	s.terminate(true)
	s.flush()
}

// Dispose performs the same teardown as Close without invoking OnClose.
func (s *Sequencer) Dispose() {
	s.terminate(false)
	s.flush()
}

func (s *Sequencer) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Cursor returns the current position; ok is false before Start and after
// the sequence closed.
func (s *Sequencer) Cursor() (c Cursor, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor, s.started && !s.closed
}

func (s *Sequencer) Current() (domain.EphemeralItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.closed {
		return domain.EphemeralItem{}, false
	}
	return s.groups[s.cursor.Group].Items[s.cursor.Item], true
}

// Snapshot of the active item's session.
func (s *Sequencer) Snapshot() (session.ViewSession, bool) {
	ctrl := s.active()
	if ctrl == nil {
		return session.ViewSession{}, false
	}
	return ctrl.Snapshot(), true
}

// Segments derives the current group's progress bar from the cursor.
func (s *Sequencer) Segments() []Segment {
	s.mu.Lock()
	if !s.started || s.closed {
		s.mu.Unlock()
		return nil
	}
	cur := s.cursor
	ctrl := s.current
	items := s.groups[cur.Group].Items
	s.mu.Unlock()

	segments := make([]Segment, len(items))
	for i, item := range items {
		seg := Segment{ItemID: item.ID.String()}
		switch {
		case i < cur.Item:
			seg.State = SegmentFilled
			seg.Progress = 1
		case i == cur.Item:
			seg.State = SegmentFilling
			if ctrl != nil {
				seg.Progress = ctrl.Snapshot().Progress
			}
		default:
			seg.State = SegmentEmpty
		}
		segments[i] = seg
	}
	return segments
}

// step moves one item. fromGen, when non-zero, restricts an auto-advance to
// the controller that expired.
func (s *Sequencer) step(fwd bool, fromGen uint64) {
	s.nav.Lock()
	defer s.nav.Unlock()

	s.mu.Lock()
	if !s.started || s.closed || (fromGen != 0 && fromGen != s.gen) {
		s.mu.Unlock()
		return
	}

	var (
		next Cursor
		ok   bool
	)
	if fwd {
		next, ok = forward(s.groups, s.cursor)
	} else {
		next, ok = backward(s.groups, s.cursor)
	}
	if !ok {
		s.mu.Unlock()
		if fwd {
			s.terminateLocked(true)
		}
		return
	}

	prev := s.current
	ctrl := s.arriveLocked(next)
	s.mu.Unlock()

	if prev != nil {
		prev.Dispose()
	}
	ctrl.Open()
}

// arriveLocked moves the cursor and seeds a fresh controller for the item.
// The caller opens it once the previous controller is disposed.
func (s *Sequencer) arriveLocked(at Cursor) *session.Controller {
	s.gen++
	gen := s.gen
	s.cursor = at
	group := s.groups[at.Group]
	item := group.Items[at.Item]

	var player session.Player
	if item.Media.IsVideo() && s.opts.Players != nil {
		player = s.opts.Players(item)
	}

	var ctrl *session.Controller
	ctrl = session.New(item, session.Options{
		ViewerID:       s.opts.ViewerID,
		Duration:       s.opts.ItemDuration,
		SkipViewReport: s.reported[item.ID],
		Clock:          s.opts.Clock,
		Reporter:       s.opts.Reporter,
		Player:         player,
		Logger:         s.logger,
		Callbacks: session.Callbacks{
			OnView:       func(id uuid.UUID) { s.onView(gen, id) },
			OnExpire:     func(id uuid.UUID) { s.onExpire(gen, id, ctrl.Snapshot().ExpiredBy) },
			OnScreenshot: func(id uuid.UUID) { s.onScreenshot(gen, id) },
			OnError:      func(id uuid.UUID, err error) { s.onError(gen, id, err) },
		},
	})
	s.current = ctrl

	s.logger.Debug("story cursor moved",
		zap.Int("group", at.Group),
		zap.Int("item", at.Item),
		zap.String("owner_id", group.OwnerID.String()),
	)
	if cb := s.opts.Callbacks.OnMove; cb != nil {
		s.pending = append(s.pending, func() { cb(at, item) })
	}
	return ctrl
}

// terminate closes the sequence from outside a navigation step.
func (s *Sequencer) terminate(notify bool) {
	s.nav.Lock()
	defer s.nav.Unlock()
	s.terminateLocked(notify)
}

// terminateLocked requires s.nav held.
func (s *Sequencer) terminateLocked(notify bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.gen++
	prev := s.current
	s.current = nil
	s.mu.Unlock()

	if prev != nil {
		prev.Dispose()
	}
	s.logger.Debug("story sequence closed", zap.Bool("notify", notify))

	if cb := s.opts.Callbacks.OnClose; notify && cb != nil {
		s.enqueue(cb)
	}
}

func (s *Sequencer) onView(gen uint64, id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.reported[id] = true
	if cb := s.opts.Callbacks.OnStoryViewed; cb != nil {
		s.pending = append(s.pending, func() { cb(id) })
	}
}

func (s *Sequencer) onExpire(gen uint64, id uuid.UUID, source session.Source) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	if cb := s.opts.Callbacks.OnExpire; cb != nil {
		s.pending = append(s.pending, func() { cb(id, source) })
	}
	s.mu.Unlock()

	s.step(true, gen)
	s.flush()
}

func (s *Sequencer) onScreenshot(gen uint64, id uuid.UUID) {
	if cb := s.opts.Callbacks.OnScreenshot; cb != nil {
		s.enqueueFor(gen, func() { cb(id) })
	}
}

func (s *Sequencer) onError(gen uint64, id uuid.UUID, err error) {
	if cb := s.opts.Callbacks.OnError; cb != nil {
		s.enqueueFor(gen, func() { cb(id, err) })
	}
}

func (s *Sequencer) active() *session.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return s.current
}

func (s *Sequencer) activeItem(itemID uuid.UUID) *session.Controller {
	ctrl := s.active()
	if ctrl == nil || ctrl.Item().ID != itemID {
		return nil
	}
	return ctrl
}

func (s *Sequencer) enqueue(fn func()) {
	s.mu.Lock()
	s.pending = append(s.pending, fn)
	s.mu.Unlock()
}

func (s *Sequencer) enqueueFor(gen uint64, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.gen {
		s.pending = append(s.pending, fn)
	}
}

// flush runs queued host callbacks with no lock held.
func (s *Sequencer) flush() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
}
