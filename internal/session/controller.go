// Package session drives the viewing lifecycle of a single ephemeral item:
// idle -> viewing <-> paused -> expired | closed | error.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/locolive/playback/internal/countdown"
	"github.com/locolive/playback/internal/domain"
)

// DefaultMessageDuration applies to messages that carry no timer.
const DefaultMessageDuration = 10 * time.Second

// Reporter notifies the backend. Calls must not block.
type Reporter interface {
	MarkViewed(itemID, viewerID uuid.UUID)
	ReportScreenshot(itemID, viewerID uuid.UUID)
}

// Player is the playback handle of a video item. Play loads the asset if
// needed; Unload releases it. Methods are called with the controller locked
// and must not call back into it.
type Player interface {
	Play()
	Pause()
	Resume()
	Unload()
}

// Callbacks are invoked outside the controller's lock, in transition order.
type Callbacks struct {
	OnView       func(itemID uuid.UUID)
	OnExpire     func(itemID uuid.UUID)
	OnClose      func()
	OnScreenshot func(itemID uuid.UUID)
	OnError      func(itemID uuid.UUID, err error)
}

type Options struct {
	ViewerID uuid.UUID

	// Duration overrides the item's own timer when positive.
	Duration time.Duration
	// DefaultDuration is used when neither Duration nor the item timer is set.
	DefaultDuration time.Duration

	// CloseOnExpire closes the controller ExitDelay after expiry.
	CloseOnExpire bool
	ExitDelay     time.Duration

	// SkipViewReport suppresses markViewed, e.g. when the caller already
	// reported this item during the current viewing session.
	SkipViewReport bool

	Clock     clockwork.Clock
	Reporter  Reporter
	Player    Player
	Logger    *zap.Logger
	Callbacks Callbacks
}

// ViewSession is a point-in-time view of a controller.
type ViewSession struct {
	ItemID    uuid.UUID
	Phase     Phase
	Remaining time.Duration
	Total     time.Duration
	StartedAt time.Time
	Progress  float64
	ExpiredBy Source
}

type eventKind int

const (
	evOpen eventKind = iota
	evHold
	evRelease
	evComplete
	evExitDone
	evClose
	evFail
	evRetry
	evScreenshot
	evDispose
)

type event struct {
	kind   eventKind
	source Source
	gen    uint64 // 0 means "current"
	err    error
}

// activeScope lives from entering Viewing until leaving Viewing/Paused.
type activeScope struct {
	gen  uint64
	race firstWins
}

// Controller is safe for concurrent use.
type Controller struct {
	item     domain.EphemeralItem
	viewerID uuid.UUID
	duration time.Duration
	opts     Options
	clock    clockwork.Clock
	logger   *zap.Logger

	mu         sync.Mutex
	phase      Phase
	cd         *countdown.Countdown
	scope      *activeScope
	gen        uint64
	exitTimer  clockwork.Timer
	viewed     bool
	reported   bool
	screenshot bool
	lastErr    error
	expiredBy  Source
}

func New(item domain.EphemeralItem, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	c := &Controller{
		item:     item,
		viewerID: opts.ViewerID,
		duration: itemDuration(item, opts),
		opts:     opts,
		clock:    opts.Clock,
		logger:   opts.Logger.With(zap.String("item_id", item.ID.String())),
		cd:       countdown.New(opts.Clock),
		reported: opts.SkipViewReport || item.ViewedByCurrentUser,
	}
	return c
}

func itemDuration(item domain.EphemeralItem, opts Options) time.Duration {
	switch {
	case opts.Duration > 0:
		return opts.Duration
	case item.TimerSeconds > 0:
		return time.Duration(item.TimerSeconds) * time.Second
	case opts.DefaultDuration > 0:
		return opts.DefaultDuration
	default:
		return DefaultMessageDuration
	}
}

func (c *Controller) Item() domain.EphemeralItem {
	return c.item
}

func (c *Controller) Duration() time.Duration {
	return c.duration
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Err returns the media error that moved the controller to PhaseError.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Open starts viewing. Repeated opens are ignored.
func (c *Controller) Open() { c.dispatch(event{kind: evOpen}) }

// Hold pauses the countdown and the video together.
func (c *Controller) Hold() { c.dispatch(event{kind: evHold}) }

// Release resumes the countdown and the video together.
func (c *Controller) Release() { c.dispatch(event{kind: evRelease}) }

// VideoEnded reports natural end of playback. Ignored for photos.
func (c *Controller) VideoEnded() {
	if !c.item.Media.IsVideo() {
		return
	}
	c.dispatch(event{kind: evComplete, source: SourcePlayback})
}

// MediaFailed moves the controller to PhaseError. There is no automatic retry.
func (c *Controller) MediaFailed(reason string) {
	c.dispatch(event{kind: evFail, err: &domain.MediaLoadError{ItemID: c.item.ID, Reason: reason}})
}

// Retry restarts viewing after a media error.
func (c *Controller) Retry() { c.dispatch(event{kind: evRetry}) }

// Screenshot reports a platform screenshot. The phase is unchanged.
func (c *Controller) Screenshot() { c.dispatch(event{kind: evScreenshot}) }

// Close is an explicit user exit.
func (c *Controller) Close() { c.dispatch(event{kind: evClose}) }

// Dispose tears the controller down without invoking OnClose. Used when the
// host goes away.
func (c *Controller) Dispose() { c.dispatch(event{kind: evDispose}) }

func (c *Controller) Snapshot() ViewSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := ViewSession{
		ItemID:    c.item.ID,
		Phase:     c.phase,
		Total:     c.duration,
		StartedAt: c.cd.StartedAt(),
		ExpiredBy: c.expiredBy,
	}
	switch {
	case c.phase == PhaseExpired:
		s.Progress = 1
	case c.cd.State() == countdown.StateIdle:
		s.Remaining = c.duration
	default:
		s.Remaining, s.Progress = c.cd.Snapshot()
	}
	return s
}

func (c *Controller) dispatch(ev event) {
	c.mu.Lock()
	effects := c.apply(ev)
	c.mu.Unlock()

	for _, fx := range effects {
		fx()
	}
}

// apply is the single transition function. It runs with c.mu held and
// returns callbacks to run after the lock is released.
func (c *Controller) apply(ev event) []func() {
	switch ev.kind {
	case evOpen:
		if c.phase != PhaseIdle {
			return nil
		}
		return c.enterViewing()

	case evRetry:
		if c.phase != PhaseError {
			return nil
		}
		c.lastErr = nil
		return c.enterViewing()

	case evHold:
		if c.phase != PhaseViewing {
			return nil
		}
		c.cd.Pause()
		if c.opts.Player != nil {
			c.opts.Player.Pause()
		}
		c.setPhase(PhasePaused)
		return nil

	case evRelease:
		if c.phase != PhasePaused {
			return nil
		}
		c.cd.Resume()
		if c.opts.Player != nil {
			c.opts.Player.Resume()
		}
		c.setPhase(PhaseViewing)
		return nil

	case evComplete:
		if c.phase != PhaseViewing || c.scope == nil {
			return nil
		}
		if ev.gen != 0 && ev.gen != c.scope.gen {
			return nil
		}
		if !c.scope.race.resolve(ev.source) {
			return nil
		}
		c.expiredBy = c.scope.race.won()
		c.logger.Debug("playback completed", zap.Stringer("source", c.expiredBy))
		c.exitScope()
		c.setPhase(PhaseExpired)
		effects := []func(){c.notifyExpire()}
		if c.opts.CloseOnExpire {
			effects = append(effects, c.scheduleExit()...)
		}
		return effects

	case evExitDone:
		if c.phase != PhaseExpired || ev.gen != c.gen {
			return nil
		}
		c.exitTimer = nil
		c.setPhase(PhaseClosed)
		return []func(){c.notifyClose()}

	case evClose:
		if c.phase.Terminal() {
			return nil
		}
		c.teardown()
		c.setPhase(PhaseClosed)
		return []func(){c.notifyClose()}

	case evDispose:
		if c.phase.Terminal() {
			return nil
		}
		c.teardown()
		c.setPhase(PhaseClosed)
		return nil

	case evFail:
		if c.phase != PhaseIdle && !c.phase.Active() {
			return nil
		}
		c.exitScope()
		c.lastErr = ev.err
		c.setPhase(PhaseError)
		c.logger.Warn("media failed to load", zap.Error(ev.err))
		if cb := c.opts.Callbacks.OnError; cb != nil {
			id, err := c.item.ID, ev.err
			return []func(){func() { cb(id, err) }}
		}
		return nil

	case evScreenshot:
		if !c.phase.Active() || c.screenshot {
			return nil
		}
		c.screenshot = true
		id := c.item.ID
		var effects []func()
		if r := c.opts.Reporter; r != nil {
			viewer := c.viewerID
			effects = append(effects, func() { r.ReportScreenshot(id, viewer) })
		}
		if cb := c.opts.Callbacks.OnScreenshot; cb != nil {
			effects = append(effects, func() { cb(id) })
		}
		return effects
	}
	return nil
}

func (c *Controller) enterViewing() []func() {
	c.gen++
	scope := &activeScope{gen: c.gen}
	c.scope = scope

	if c.opts.Player != nil {
		c.opts.Player.Play()
	}
	c.cd.Start(c.duration, func() {
		c.dispatch(event{kind: evComplete, source: SourceTimer, gen: scope.gen})
	})
	c.setPhase(PhaseViewing)

	var effects []func()
	id := c.item.ID
	if !c.reported {
		c.reported = true
		if r := c.opts.Reporter; r != nil {
			viewer := c.viewerID
			effects = append(effects, func() { r.MarkViewed(id, viewer) })
		}
	}
	if !c.viewed {
		c.viewed = true
		if cb := c.opts.Callbacks.OnView; cb != nil {
			effects = append(effects, func() { cb(id) })
		}
	}
	return effects
}

// exitScope releases everything owned by the active scope: the race is
// settled so a late signal cannot act, the countdown is cancelled and the
// video is paused and unloaded.
func (c *Controller) exitScope() {
	if c.scope == nil {
		return
	}
	c.scope.race.cancel()
	c.scope = nil
	c.cd.Cancel()
	if c.opts.Player != nil {
		c.opts.Player.Pause()
		c.opts.Player.Unload()
	}
}

func (c *Controller) teardown() {
	c.exitScope()
	if c.exitTimer != nil {
		c.exitTimer.Stop()
		c.exitTimer = nil
	}
	c.gen++
}

func (c *Controller) scheduleExit() []func() {
	if c.opts.ExitDelay <= 0 {
		c.setPhase(PhaseClosed)
		return []func(){c.notifyClose()}
	}
	c.gen++
	gen := c.gen
	c.exitTimer = c.clock.AfterFunc(c.opts.ExitDelay, func() {
		c.dispatch(event{kind: evExitDone, gen: gen})
	})
	return nil
}

func (c *Controller) notifyExpire() func() {
	cb := c.opts.Callbacks.OnExpire
	id := c.item.ID
	return func() {
		if cb != nil {
			cb(id)
		}
	}
}

func (c *Controller) notifyClose() func() {
	cb := c.opts.Callbacks.OnClose
	return func() {
		if cb != nil {
			cb()
		}
	}
}

func (c *Controller) setPhase(to Phase) {
	if c.phase == to {
		return
	}
	c.logger.Debug("phase transition", zap.Stringer("from", c.phase), zap.Stringer("to", to))
	c.phase = to
}
