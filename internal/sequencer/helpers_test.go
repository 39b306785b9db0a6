package sequencer

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/locolive/playback/internal/domain"
	"github.com/locolive/playback/internal/session"
)

const waitTimeout = 2 * time.Second

type recorder struct {
	mu     sync.Mutex
	events []string
	ch     chan string
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan string, 256)}
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	r.ch <- e
}

func (r *recorder) count(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

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

type countingReporter struct {
	mu     sync.Mutex
	viewed map[uuid.UUID]int
}

func (c *countingReporter) MarkViewed(itemID, _ uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.viewed == nil {
		c.viewed = map[uuid.UUID]int{}
	}
	c.viewed[itemID]++
}

func (c *countingReporter) ReportScreenshot(uuid.UUID, uuid.UUID) {}

func (c *countingReporter) views(id uuid.UUID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewed[id]
}

type fakePlayer struct {
	mu      sync.Mutex
	id      uuid.UUID
	actions *[]string
}

func (p *fakePlayer) record(a string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	*p.actions = append(*p.actions, fmt.Sprintf("%s %s", a, p.id))
}

func (p *fakePlayer) Play()   { p.record("play") }
func (p *fakePlayer) Pause()  { p.record("pause") }
func (p *fakePlayer) Resume() { p.record("resume") }
func (p *fakePlayer) Unload() { p.record("unload") }

// makeGroups builds one group per count; item timers are deliberately not the
// sequence duration.
func makeGroups(counts ...int) []domain.StoryGroup {
	groups := make([]domain.StoryGroup, 0, len(counts))
	for gi, n := range counts {
		g := domain.StoryGroup{
			OwnerID:          uuid.New(),
			OwnerDisplayName: fmt.Sprintf("owner-%d", gi),
			HasUnviewed:      true,
		}
		for i := 0; i < n; i++ {
			g.Items = append(g.Items, domain.EphemeralItem{
				ID:           uuid.New(),
				OwnerID:      g.OwnerID,
				Media:        domain.MediaRef{URL: fmt.Sprintf("https://cdn.example.com/%d-%d.jpg", gi, i), Kind: domain.MediaKindPhoto},
				CreatedAt:    time.Unix(int64(1700000000+i), 0),
				TimerSeconds: 10,
			})
		}
		groups = append(groups, g)
	}
	return groups
}

type fixture struct {
	clock    *clockwork.FakeClock
	rec      *recorder
	reporter *countingReporter
	seq      *Sequencer
	groups   []domain.StoryGroup
	sources  []session.Source
}

func newFixture(t *testing.T, groups []domain.StoryGroup, mutate ...func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		clock:    clockwork.NewFakeClock(),
		rec:      newRecorder(),
		reporter: &countingReporter{},
		groups:   groups,
	}
	opts := Options{
		ViewerID: uuid.New(),
		Clock:    f.clock,
		Reporter: f.reporter,
		Callbacks: Callbacks{
			OnStoryViewed: func(id uuid.UUID) { f.rec.add("viewed " + id.String()) },
			OnExpire: func(id uuid.UUID, source session.Source) {
				f.rec.add("expire " + id.String())
				f.sources = append(f.sources, source)
			},
			OnMove: func(c Cursor, _ domain.EphemeralItem) {
				f.rec.add(fmt.Sprintf("move %d/%d", c.Group, c.Item))
			},
			OnScreenshot: func(id uuid.UUID) { f.rec.add("screenshot " + id.String()) },
			OnError:      func(id uuid.UUID, _ error) { f.rec.add("error " + id.String()) },
			OnClose:      func() { f.rec.add("close") },
		},
	}
	for _, m := range mutate {
		m(&opts)
	}
	seq, err := New(groups, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.seq = seq
	return f
}

func (f *fixture) item(c Cursor) domain.EphemeralItem {
	return f.groups[c.Group].Items[c.Item]
}

// arrive consumes the move + viewed pair emitted on arrival at c.
func (f *fixture) arrive(t *testing.T, c Cursor) {
	t.Helper()
	f.rec.next(t, fmt.Sprintf("move %d/%d", c.Group, c.Item))
	f.rec.next(t, "viewed "+f.item(c).ID.String())
}

var _ session.Player = (*fakePlayer)(nil)
