package session

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/locolive/playback/internal/domain"
)

const waitTimeout = 2 * time.Second

type recorder struct {
	mu     sync.Mutex
	events []string
	ch     chan string
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan string, 64)}
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	r.ch <- e
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnView:       func(uuid.UUID) { r.add("view") },
		OnExpire:     func(uuid.UUID) { r.add("expire") },
		OnClose:      func() { r.add("close") },
		OnScreenshot: func(uuid.UUID) { r.add("screenshot") },
		OnError:      func(uuid.UUID, error) { r.add("error") },
	}
}

func (r *recorder) count(e string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.events {
		if got == e {
			n++
		}
	}
	return n
}

// next fails unless the next recorded event is want.
func (r *recorder) next(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-r.ch:
		if got != want {
			t.Fatalf("expected event %q, got %q", want, got)
		}
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func (r *recorder) quiet(t *testing.T) {
	t.Helper()
	select {
	case got := <-r.ch:
		t.Fatalf("unexpected event %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}

type fakeReporter struct {
	mu          sync.Mutex
	viewed      map[uuid.UUID]int
	screenshots map[uuid.UUID]int
}

func newFakeReporter() *fakeReporter {
	return &fakeReporter{viewed: map[uuid.UUID]int{}, screenshots: map[uuid.UUID]int{}}
}

func (f *fakeReporter) MarkViewed(itemID, _ uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.viewed[itemID]++
}

func (f *fakeReporter) ReportScreenshot(itemID, _ uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.screenshots[itemID]++
}

func (f *fakeReporter) viewCount(id uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.viewed[id]
}

func (f *fakeReporter) screenshotCount(id uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.screenshots[id]
}

type fakePlayer struct {
	mu      sync.Mutex
	actions []string
}

func (p *fakePlayer) record(a string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actions = append(p.actions, a)
}

func (p *fakePlayer) Play()   { p.record("play") }
func (p *fakePlayer) Pause()  { p.record("pause") }
func (p *fakePlayer) Resume() { p.record("resume") }
func (p *fakePlayer) Unload() { p.record("unload") }

func (p *fakePlayer) log() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.actions...)
}

func photo(timerSeconds int) domain.EphemeralItem {
	return domain.EphemeralItem{
		ID:           uuid.New(),
		OwnerID:      uuid.New(),
		Media:        domain.MediaRef{URL: "https://cdn.example.com/p.jpg", Kind: domain.MediaKindPhoto},
		CreatedAt:    time.Now(),
		TimerSeconds: timerSeconds,
	}
}

func video(timerSeconds int) domain.EphemeralItem {
	item := photo(timerSeconds)
	item.Media = domain.MediaRef{URL: "https://cdn.example.com/v.mp4", Kind: domain.MediaKindVideo}
	return item
}
