package domain

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type fakeViewRepo struct {
	mu          sync.Mutex
	views       map[[2]uuid.UUID]bool
	screenshots map[[2]uuid.UUID]bool
	owner       uuid.UUID
	tokens      []string
	tokensErr   error
	viewErr     error
	expired     []string
	cleanups    chan struct{}
	deleted     chan string
}

func newFakeViewRepo(owner uuid.UUID) *fakeViewRepo {
	return &fakeViewRepo{
		views:       map[[2]uuid.UUID]bool{},
		screenshots: map[[2]uuid.UUID]bool{},
		owner:       owner,
		cleanups:    make(chan struct{}, 8),
		deleted:     make(chan string, 8),
	}
}

func (r *fakeViewRepo) CreateItemView(_ context.Context, itemID, viewerID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.viewErr != nil {
		return false, r.viewErr
	}
	k := [2]uuid.UUID{itemID, viewerID}
	if r.views[k] {
		return false, nil
	}
	r.views[k] = true
	return true, nil
}

func (r *fakeViewRepo) CreateScreenshotReport(_ context.Context, itemID, viewerID uuid.UUID) (uuid.UUID, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := [2]uuid.UUID{itemID, viewerID}
	if r.screenshots[k] {
		return r.owner, false, nil
	}
	r.screenshots[k] = true
	return r.owner, true, nil
}

func (r *fakeViewRepo) GetViewerName(context.Context, uuid.UUID) (string, error) {
	return "Ana", nil
}

func (r *fakeViewRepo) GetFCMTokens(context.Context, uuid.UUID) ([]string, error) {
	return r.tokens, r.tokensErr
}

func (r *fakeViewRepo) DeleteFCMToken(_ context.Context, userID uuid.UUID, token string) error {
	if userID != r.owner {
		return errors.New("token of another user")
	}
	r.deleted <- token
	return nil
}

func (r *fakeViewRepo) DeleteExpiredItems(context.Context) ([]string, error) {
	defer func() { r.cleanups <- struct{}{} }()
	r.mu.Lock()
	defer r.mu.Unlock()
	refs := r.expired
	r.expired = nil
	return refs, nil
}

type sentPush struct {
	token, body string
}

type fakePush struct {
	sent  chan sentPush
	stale map[string]bool
}

func (p *fakePush) Send(_ context.Context, token, _, body string, _ map[string]string) error {
	p.sent <- sentPush{token: token, body: body}
	if p.stale[token] {
		return ErrStaleToken
	}
	return nil
}

type fakeLive struct {
	mu     sync.Mutex
	events map[uuid.UUID][]interface{}
}

func (l *fakeLive) SendToUser(userID uuid.UUID, message interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.events == nil {
		l.events = map[uuid.UUID][]interface{}{}
	}
	l.events[userID] = append(l.events[userID], message)
}

type fakeMedia struct {
	deleted chan string
}

func (m *fakeMedia) DeleteMedia(_ context.Context, ref string) error {
	m.deleted <- ref
	return nil
}

func TestMarkItemViewed(t *testing.T) {
	repo := newFakeViewRepo(uuid.New())
	svc := NewViewService(repo, nil, nil, nil, nil)
	item, viewer := uuid.New(), uuid.New()

	for i := 0; i < 2; i++ {
		if err := svc.MarkItemViewed(context.Background(), item, viewer); err != nil {
			t.Fatalf("MarkItemViewed #%d: %v", i, err)
		}
	}
	if len(repo.views) != 1 {
		t.Errorf("expected one view record, got %d", len(repo.views))
	}

	boom := errors.New("db down")
	repo.viewErr = boom
	if err := svc.MarkItemViewed(context.Background(), uuid.New(), viewer); !errors.Is(err, boom) {
		t.Errorf("expected wrapped repository error, got %v", err)
	}
}

func TestReportScreenshot_NotifiesOwnerOnce(t *testing.T) {
	owner := uuid.New()
	repo := newFakeViewRepo(owner)
	repo.tokens = []string{"tok-1", "", "tok-2"}
	push := &fakePush{sent: make(chan sentPush, 4)}
	live := &fakeLive{}
	svc := NewViewService(repo, push, live, nil, nil)
	item, viewer := uuid.New(), uuid.New()

	for i := 0; i < 3; i++ {
		if err := svc.ReportScreenshot(context.Background(), item, viewer); err != nil {
			t.Fatalf("ReportScreenshot: %v", err)
		}
	}

	got := map[string]string{}
	for i := 0; i < 2; i++ {
		select {
		case p := <-push.sent:
			got[p.token] = p.body
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for push")
		}
	}
	if got["tok-1"] != "Ana took a screenshot!" || got["tok-2"] == "" {
		t.Errorf("unexpected pushes: %v", got)
	}
	select {
	case p := <-push.sent:
		t.Errorf("unexpected extra push to %s", p.token)
	case <-time.After(50 * time.Millisecond):
	}

	live.mu.Lock()
	defer live.mu.Unlock()
	if n := len(live.events[owner]); n != 1 {
		t.Fatalf("expected one live event for owner, got %d", n)
	}
	ev, ok := live.events[owner][0].(ScreenshotEvent)
	if !ok || ev.Type != EventScreenshotTaken || ev.ItemID != item || ev.ViewerID != viewer {
		t.Errorf("unexpected live event: %#v", live.events[owner][0])
	}
}

func TestReportScreenshot_ForgetsStaleTokens(t *testing.T) {
	owner := uuid.New()
	repo := newFakeViewRepo(owner)
	repo.tokens = []string{"tok-live", "tok-gone"}
	push := &fakePush{sent: make(chan sentPush, 4), stale: map[string]bool{"tok-gone": true}}
	svc := NewViewService(repo, push, nil, nil, nil)

	if err := svc.ReportScreenshot(context.Background(), uuid.New(), uuid.New()); err != nil {
		t.Fatalf("ReportScreenshot: %v", err)
	}

	select {
	case token := <-repo.deleted:
		if token != "tok-gone" {
			t.Errorf("deleted %q, want tok-gone", token)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stale token was not deleted")
	}
	for i := 0; i < 2; i++ {
		<-push.sent
	}
	select {
	case token := <-repo.deleted:
		t.Errorf("registered token %q was deleted", token)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestReportScreenshot_TokenLookupFailureIsNotAnError(t *testing.T) {
	repo := newFakeViewRepo(uuid.New())
	repo.tokensErr = errors.New("timeout")
	svc := NewViewService(repo, &fakePush{sent: make(chan sentPush, 1)}, nil, nil, nil)

	if err := svc.ReportScreenshot(context.Background(), uuid.New(), uuid.New()); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestCleanupWorker(t *testing.T) {
	repo := newFakeViewRepo(uuid.New())
	repo.expired = []string{"stories/a.jpg", "messages/b.mp4"}
	media := &fakeMedia{deleted: make(chan string, 4)}
	svc := NewViewService(repo, nil, nil, media, nil)
	clock := clockwork.NewFakeClock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.StartCleanupWorker(ctx, clock, time.Hour)

	waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer waitCancel()
	if err := clock.BlockUntilContext(waitCtx, 1); err != nil {
		t.Fatalf("ticker never registered: %v", err)
	}

	clock.Advance(time.Hour)
	for _, want := range []string{"stories/a.jpg", "messages/b.mp4"} {
		select {
		case got := <-media.deleted:
			if got != want {
				t.Errorf("deleted %q, want %q", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}

	clock.Advance(time.Hour)
	select {
	case <-repo.cleanups:
	case <-time.After(2 * time.Second):
		t.Fatal("first cleanup not observed")
	}
	select {
	case <-repo.cleanups:
	case <-time.After(2 * time.Second):
		t.Fatal("second cleanup not observed")
	}
	select {
	case ref := <-media.deleted:
		t.Errorf("nothing left to delete, got %q", ref)
	case <-time.After(50 * time.Millisecond):
	}
}
