package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/labstack/gommon/log"
)

// Loader reads the current snapshot of a collection.
type Loader func(ctx context.Context, coll string) ([]Record, error)

type abortKey struct{}

// WithAbort returns a context that subscriptions opened with it cancel,
// recording the failure as the cause, once they can no longer deliver
// snapshots. Read the failure with context.Cause. Subscriptions opened
// without it log failed reloads and retry on the next change.
func WithAbort(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	return context.WithValue(ctx, abortKey{}, cancel), func() { cancel(nil) }
}

// Abort cancels ctx with err as the cause. It reports false when ctx was
// not derived from WithAbort.
func Abort(ctx context.Context, err error) bool {
	cancel, ok := ctx.Value(abortKey{}).(context.CancelCauseFunc)
	if ok {
		cancel(err)
	}
	return ok
}

// Hub fans change notifications out to collection subscribers. Each
// subscriber owns a goroutine that reloads the snapshot on notification;
// notifications arriving while a reload is pending are coalesced.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
	load Loader
	log  *log.Logger
}

type subscriber struct {
	kick chan struct{}
}

// NewHub returns a Hub that uses load to build snapshots.
func NewHub(load Loader) *Hub {
	return &Hub{
		subs: map[string]map[*subscriber]struct{}{},
		load: load,
		log:  log.New("store-hub"),
	}
}

// Subscribe registers a subscriber and returns its snapshot channel. The
// first snapshot is loaded before Subscribe returns, so a failing backend
// is reported to the caller directly.
func (h *Hub) Subscribe(ctx context.Context, coll string) (<-chan []Record, error) {
	if err := CheckCollection(coll); err != nil {
		return nil, err
	}
	s := &subscriber{kick: make(chan struct{}, 1)}
	h.mu.Lock()
	if h.subs[coll] == nil {
		h.subs[coll] = map[*subscriber]struct{}{}
	}
	h.subs[coll][s] = struct{}{}
	h.mu.Unlock()

	first, err := h.load(ctx, coll)
	if err != nil {
		h.remove(coll, s)
		return nil, fmt.Errorf("load %s: %w", coll, err)
	}

	out := make(chan []Record)
	go func() {
		defer close(out)
		defer h.remove(coll, s)
		recs := first
		for {
			select {
			case out <- recs:
			case <-ctx.Done():
				return
			}
			var ok bool
			if recs, ok = h.next(ctx, coll, s); !ok {
				return
			}
		}
	}()
	return out, nil
}

// next waits for a notification and reloads. A failed reload is retried on
// the following notification unless ctx was derived from WithAbort.
func (h *Hub) next(ctx context.Context, coll string, s *subscriber) ([]Record, bool) {
	for {
		select {
		case <-ctx.Done():
			return nil, false
		case <-s.kick:
		}
		recs, err := h.load(ctx, coll)
		if err == nil {
			return recs, true
		}
		if ctx.Err() != nil {
			return nil, false
		}
		h.log.Errorf("reload %s: %v", coll, err)
		if Abort(ctx, fmt.Errorf("reload %s: %w", coll, err)) {
			return nil, false
		}
	}
}

// Notify wakes every subscriber of coll. It never blocks.
func (h *Hub) Notify(coll string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[coll] {
		select {
		case s.kick <- struct{}{}:
		default:
		}
	}
}

func (h *Hub) remove(coll string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[coll], s)
}
