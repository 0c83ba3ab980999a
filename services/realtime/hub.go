// Package realtime fans row changes out to the clients of the change feed.
package realtime

import (
	"context"
	"sync"

	"github.com/etudier/etudier/core"
)

const defaultBufferSize = 32

// Filter selects the changes a subscriber receives.
// An empty Tables set means every table.
type Filter struct {
	UserID string
	Tables []string
}

func (f Filter) matches(c core.Change) bool {
	if !c.VisibleTo(f.UserID) {
		return false
	}
	if len(f.Tables) == 0 {
		return true
	}
	for _, t := range f.Tables {
		if t == c.Table {
			return true
		}
	}
	return false
}

// Subscription receives the changes matching its filter until it is closed.
type Subscription struct {
	hub    *Hub
	filter Filter
	ch     chan core.Change
	once   sync.Once
}

// Changes is closed when the subscription or the hub is closed.
func (s *Subscription) Changes() <-chan core.Change { return s.ch }

func (s *Subscription) Close() { s.hub.unsubscribe(s) }

// Hub is an in-process core.ChangePublisher. Publishing never blocks: a subscriber whose buffer is
// full misses the change.
type Hub struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	closed  bool
	bufSize int
	logger  core.Logger
}

var _ core.ChangePublisher = (*Hub)(nil)

func NewHub(logger core.Logger, bufSize ...int) *Hub {
	size := defaultBufferSize
	if len(bufSize) > 0 && bufSize[0] > 0 {
		size = bufSize[0]
	}
	return &Hub{
		subs:    make(map[*Subscription]struct{}),
		bufSize: size,
		logger:  logger,
	}
}

func (h *Hub) Subscribe(filter Filter) *Subscription {
	s := &Subscription{hub: h, filter: filter, ch: make(chan core.Change, h.bufSize)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(s.ch)
		s.once.Do(func() {})
		return s
	}
	h.subs[s] = struct{}{}
	return s
}

func (h *Hub) unsubscribe(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s.once.Do(func() {
		delete(h.subs, s)
		close(s.ch)
	})
}

// Publish delivers change to every matching subscriber.
func (h *Hub) Publish(_ context.Context, change core.Change) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.subs {
		if !s.filter.matches(change) {
			continue
		}
		select {
		case s.ch <- change:
		default:
			if h.logger != nil {
				h.logger.Warn("dropping "+change.Table+" change for a slow subscriber", map[string]interface{}{
					"user_id": s.filter.UserID,
					"id":      change.ID,
				})
			}
		}
	}
	return nil
}

// Len returns the number of open subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close closes every subscription; later subscriptions are born closed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.subs {
		s.once.Do(func() { close(s.ch) })
		delete(h.subs, s)
	}
}
