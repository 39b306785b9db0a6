// Package reporter forwards view and screenshot reports from the playback
// engine to the backend without blocking it.
package reporter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

//go:generate go run go.uber.org/mock/mockgen -source=reporter.go -destination=mocks/mock.go

// Backend is the collaborator that persists reports.
type Backend interface {
	MarkItemViewed(ctx context.Context, itemID, viewerID uuid.UUID) error
	ReportScreenshot(ctx context.Context, itemID, viewerID uuid.UUID) error
}

// Recorder observes the outcome of each backend call.
type Recorder interface {
	ObserveReport(kind string, err error)
}

const (
	KindView       = "view"
	KindScreenshot = "screenshot"

	DefaultTimeout = 10 * time.Second
)

type key struct {
	kind   string
	item   uuid.UUID
	viewer uuid.UUID
}

type Reporter struct {
	backend  Backend
	logger   *zap.Logger
	timeout  time.Duration
	recorder Recorder

	mu sync.Mutex
	// inflight holds reports whose backend call has not returned yet.
	inflight map[key]struct{}
	closed   bool
	wg       sync.WaitGroup
}

type Option func(*Reporter)

func WithTimeout(d time.Duration) Option {
	return func(r *Reporter) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithRecorder(rec Recorder) Option {
	return func(r *Reporter) { r.recorder = rec }
}

func New(backend Backend, logger *zap.Logger, opts ...Option) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reporter{
		backend:  backend,
		logger:   logger,
		timeout:  DefaultTimeout,
		inflight: make(map[key]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MarkViewed reports itemID as viewed by viewerID in the background.
func (r *Reporter) MarkViewed(itemID, viewerID uuid.UUID) {
	r.dispatch(key{kind: KindView, item: itemID, viewer: viewerID}, r.backend.MarkItemViewed)
}

// ReportScreenshot reports a screenshot of itemID in the background.
func (r *Reporter) ReportScreenshot(itemID, viewerID uuid.UUID) {
	r.dispatch(key{kind: KindScreenshot, item: itemID, viewer: viewerID}, r.backend.ReportScreenshot)
}

// Wait blocks until every in-flight report has finished.
func (r *Reporter) Wait() {
	r.wg.Wait()
}

// Close stops accepting reports and waits for in-flight ones.
func (r *Reporter) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.wg.Wait()
}

// dispatch drops a report that duplicates one still in flight. Once the call
// returns the key is forgotten; sessions report each item once and the
// backend records are idempotent.
func (r *Reporter) dispatch(k key, call func(ctx context.Context, itemID, viewerID uuid.UUID) error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if _, dup := r.inflight[k]; dup {
		r.mu.Unlock()
		return
	}
	r.inflight[k] = struct{}{}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		err := call(ctx, k.item, k.viewer)

		r.mu.Lock()
		delete(r.inflight, k)
		r.mu.Unlock()

		if r.recorder != nil {
			r.recorder.ObserveReport(k.kind, err)
		}
		if err == nil {
			return
		}
		r.logger.Warn("report failed",
			zap.String("kind", k.kind),
			zap.String("item_id", k.item.String()),
			zap.String("viewer_id", k.viewer.String()),
			zap.Error(fmt.Errorf("%s report: %w", k.kind, err)),
		)
	}()
}
