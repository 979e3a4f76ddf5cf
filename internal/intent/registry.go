package intent

import (
	"context"
	"log"
	"sync"
	"time"

	"payway/pkg/payment"
)

// Intent is one registered payment request. Immutable once stored.
type Intent struct {
	ID        string // content hash (md5) of the signed QR payload
	Reference string // caller's bill number
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Registry maps content-hash ids to intents for the lifetime of the process.
// It also latches settlement details for ids the provider has confirmed paid,
// so a confirmed payment is never reported as anything else afterwards.
type Registry struct {
	mu      sync.RWMutex
	intents map[string]Intent
	settled map[string]settlement
	nowFn   func() time.Time
}

type settlement struct {
	tx *payment.Transaction
	at time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		intents: make(map[string]Intent),
		settled: make(map[string]settlement),
		nowFn:   time.Now,
	}
}

// Put registers a new intent. Ids are provider content hashes; a repeated id
// replaces the earlier entry.
func (r *Registry) Put(id, reference string, expiresAt time.Time) Intent {
	in := Intent{ID: id, Reference: reference, ExpiresAt: expiresAt, CreatedAt: r.nowFn()}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents[id] = in
	return in
}

func (r *Registry) Get(id string) (Intent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	in, ok := r.intents[id]
	return in, ok
}

// Settle records the first paid confirmation for id. Later calls keep the
// original details.
func (r *Registry) Settle(id string, tx *payment.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.settled[id]; ok {
		return
	}
	r.settled[id] = settlement{tx: tx, at: r.nowFn()}
}

// Settlement returns latched settlement details for id, if any.
func (r *Registry) Settlement(id string) (*payment.Transaction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.settled[id]
	return s.tx, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.intents)
}

// Sweep drops intents whose deadline passed more than grace ago, together with
// their settlement latch. Latches for ids that were never registered are aged
// from the moment they were settled. It returns the number of intents removed.
func (r *Registry) Sweep(now time.Time, grace time.Duration) int {
	cutoff := now.Add(-grace)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, in := range r.intents {
		if in.ExpiresAt.Before(cutoff) {
			delete(r.intents, id)
			delete(r.settled, id)
			removed++
		}
	}
	for id, s := range r.settled {
		if _, registered := r.intents[id]; !registered && s.at.Before(cutoff) {
			delete(r.settled, id)
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval, grace time.Duration) {
	if interval <= 0 {
		return
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if n := r.Sweep(r.nowFn(), grace); n > 0 {
				log.Printf("[REGISTRY] swept %d expired intents, %d remaining", n, r.Len())
			}
		}
	}
}
