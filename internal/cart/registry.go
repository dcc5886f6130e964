// internal/cart/registry.go
package cart

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"cedarbackend/internal/logger"
)

// Registry maps opaque session tokens to carts. A session is one browser
// tab's cart; sessions idle past the TTL are swept periodically.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
}

type session struct {
	cart     *Cart
	lastSeen time.Time
}

func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]*session),
		ttl:      ttl,
	}
}

// NewSession creates a fresh cart and returns its session token.
func (r *Registry) NewSession() (string, *Cart) {
	token := uuid.NewString()
	c := New()

	r.mu.Lock()
	r.sessions[token] = &session{cart: c, lastSeen: time.Now()}
	r.mu.Unlock()

	return token, c
}

// Get returns the cart for a session token, refreshing its idle timer.
func (r *Registry) Get(token string) (*Cart, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[token]
	if !ok {
		return nil, false
	}
	s.lastSeen = time.Now()
	return s.cart, true
}

// Contains reports whether a session token is live, without refreshing its
// idle timer.
func (r *Registry) Contains(token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[token]
	return ok
}

// Drop removes a session outright.
func (r *Registry) Drop(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, token)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// StartSweeper launches the background loop that evicts idle sessions. The
// returned stop function ends the loop.
func (r *Registry) StartSweeper(interval time.Duration) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				removed := r.sweep()
				if removed > 0 {
					logger.LogInfo("Cart session sweep removed %d idle sessions (%d live)", removed, r.Len())
				}
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

func (r *Registry) sweep() int {
	cutoff := time.Now().Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for token, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(r.sessions, token)
			removed++
		}
	}
	return removed
}
