package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/locolive/playback/internal/config"
	"github.com/locolive/playback/internal/domain"
	"github.com/locolive/playback/internal/metrics"
	"github.com/locolive/playback/internal/middleware"
)

type fakeItems struct {
	groups   []domain.StoryGroup
	messages map[uuid.UUID]domain.EphemeralItem
}

func (f *fakeItems) GetStoryGroups(context.Context, uuid.UUID) ([]domain.StoryGroup, error) {
	out := make([]domain.StoryGroup, len(f.groups))
	for i, g := range f.groups {
		g.Items = append([]domain.EphemeralItem(nil), g.Items...)
		out[i] = g
	}
	return out, nil
}

func (f *fakeItems) GetMessage(_ context.Context, id, _ uuid.UUID) (*domain.EphemeralItem, error) {
	item, ok := f.messages[id]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	return &item, nil
}

type fakeMedia struct{}

func (fakeMedia) ResolveURL(_ context.Context, ref string) (string, error) {
	return "https://cdn.test/" + ref, nil
}

func (fakeMedia) DeleteMedia(context.Context, string) error { return nil }

type fakeReporter struct {
	mu          sync.Mutex
	views       []uuid.UUID
	screenshots []uuid.UUID
}

func (r *fakeReporter) MarkViewed(itemID, _ uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, itemID)
}

func (r *fakeReporter) ReportScreenshot(itemID, _ uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.screenshots = append(r.screenshots, itemID)
}

func (r *fakeReporter) viewCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

func (r *fakeReporter) screenshotCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.screenshots)
}

func item(kind domain.MediaKind, ref string, timer int) domain.EphemeralItem {
	return domain.EphemeralItem{
		ID:           uuid.New(),
		OwnerID:      uuid.New(),
		Media:        domain.MediaRef{URL: ref, Kind: kind},
		CreatedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		TimerSeconds: timer,
	}
}

func group(items ...domain.EphemeralItem) domain.StoryGroup {
	owner := uuid.New()
	for i := range items {
		items[i].OwnerID = owner
	}
	return domain.StoryGroup{OwnerID: owner, OwnerDisplayName: "owner", Items: items, HasUnviewed: true}
}

type gateway struct {
	srv      *httptest.Server
	clock    *clockwork.FakeClock
	items    *fakeItems
	reporter *fakeReporter
	hub      *Hub
	viewer   uuid.UUID
}

func defaultPlayback() config.PlaybackConfig {
	return config.PlaybackConfig{
		StoryItemDuration:   5 * time.Second,
		MessageDefaultTimer: 10 * time.Second,
		ReportTimeout:       time.Second,
		ProgressInterval:    100 * time.Millisecond,
		CommandRate:         1000,
		CommandBurst:        1000,
	}
}

func newGateway(t *testing.T, items *fakeItems, mutate ...func(*config.PlaybackConfig)) *gateway {
	t.Helper()
	cfg := defaultPlayback()
	for _, m := range mutate {
		m(&cfg)
	}

	g := &gateway{
		clock:    clockwork.NewFakeClock(),
		items:    items,
		reporter: &fakeReporter{},
		viewer:   uuid.New(),
	}
	logger := zap.NewNop()
	g.hub = NewHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	go g.hub.Run(ctx)

	m := metrics.New()
	router := NewRouter(
		NewStoryHandler(items, fakeMedia{}, logger),
		NewViewerHandler(items, fakeMedia{}, g.reporter, g.hub, m, cfg, g.clock, logger),
		NewHealthHandler(nil),
		m.Handler(),
		nil,
		logger,
	)
	g.srv = httptest.NewServer(router.Setup())

	t.Cleanup(func() {
		cancel()
		g.srv.Close()
	})
	return g
}

func (g *gateway) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set(middleware.ViewerIDHeader, g.viewer.String())
	url := "ws" + strings.TrimPrefix(g.srv.URL, "http") + "/api/v1/viewer/ws"

	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, cmd Command) {
	t.Helper()
	if err := conn.WriteJSON(cmd); err != nil {
		t.Fatalf("send %s: %v", cmd.Type, err)
	}
}

// collect reads events, skipping progress ticks, up to and including the
// first event of type until.
func collect(t *testing.T, conn *websocket.Conn, until string) []Event {
	t.Helper()
	var events []Event
	for {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("waiting for %q (got %v): %v", until, types(events), err)
		}
		if ev.Type == EvProgress {
			continue
		}
		events = append(events, ev)
		if ev.Type == until {
			return events
		}
	}
}

// quiet asserts nothing but progress arrives for a short while. A read
// timeout poisons the connection, so this must be the last read.
func quiet(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	deadline := time.Now().Add(100 * time.Millisecond)
	for {
		conn.SetReadDeadline(deadline)
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			return
		}
		if ev.Type != EvProgress {
			t.Fatalf("unexpected event %+v", ev)
		}
	}
}

func types(events []Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Type
		if ev.Action != "" {
			out[i] += ":" + ev.Action
		}
	}
	return out
}

func find(events []Event, typ string) (Event, bool) {
	for _, ev := range events {
		if ev.Type == typ {
			return ev, true
		}
	}
	return Event{}, false
}
