package ws

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Subscriber is one live status stream.
type Subscriber struct {
	ID     string
	MD5    string
	cancel context.CancelFunc
}

// Hub tracks active status streams so they can be counted and shut down together.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]*Subscriber
	// md5 -> subscriber ids (one intent can have many watchers)
	byMD5 map[string]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subs:  make(map[string]*Subscriber),
		byMD5: make(map[string]map[string]struct{}),
	}
}

// Register adds a stream for md5. cancel stops its watch loop.
func (h *Hub) Register(md5 string, cancel context.CancelFunc) *Subscriber {
	s := &Subscriber{ID: uuid.NewString(), MD5: md5, cancel: cancel}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[s.ID] = s
	if h.byMD5[md5] == nil {
		h.byMD5[md5] = make(map[string]struct{})
	}
	h.byMD5[md5][s.ID] = struct{}{}
	return s
}

func (h *Hub) Unregister(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, s.ID)
	if m := h.byMD5[s.MD5]; m != nil {
		delete(m, s.ID)
		if len(m) == 0 {
			delete(h.byMD5, s.MD5)
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) CountFor(md5 string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byMD5[md5])
}

// CloseAll cancels every registered stream. Streams unregister themselves as
// their handlers return.
func (h *Hub) CloseAll() int {
	h.mu.RLock()
	cancels := make([]context.CancelFunc, 0, len(h.subs))
	for _, s := range h.subs {
		cancels = append(cancels, s.cancel)
	}
	h.mu.RUnlock()
	for _, cancel := range cancels {
		cancel()
	}
	return len(cancels)
}
