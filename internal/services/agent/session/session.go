// Package session caches the latest confirmed identity and notifies observers.
package session

import (
	"sync"

	"github.com/daybreak-app/daybreak/internal/services/agent/backend"
	"github.com/daybreak-app/daybreak/internal/services/agent/identity"
)

// Watcher is the slice of the backend contract the store consumes.
type Watcher interface {
	Watch() (<-chan backend.Event, func())
}

// Metrics counts applied identity-changed notifications.
type Metrics interface {
	RecordSessionChange()
}

// Store holds at most one current identity.
//
// It is mutated only by the backend's identity-changed notifications, never by
// operation results, so optimistic and confirmed state cannot diverge.
type Store struct {
	mu      sync.RWMutex
	current *identity.Identity
	subs    map[int]chan *identity.Identity
	next    int
	metrics Metrics

	stopOnce sync.Once
	stop     func()
	done     chan struct{}
}

// Option customizes a store.
type Option func(*Store)

// WithMetrics attaches a notification metrics sink.
func WithMetrics(metrics Metrics) Option {
	return func(s *Store) { s.metrics = metrics }
}

// NewStore creates a store bound to the watcher for the life of the process.
func NewStore(watcher Watcher, opts ...Option) *Store {
	s := &Store{
		subs: make(map[int]chan *identity.Identity),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	events, cancel := watcher.Watch()
	s.stop = cancel
	go s.run(events)
	return s
}

func (s *Store) run(events <-chan backend.Event) {
	defer close(s.done)
	for event := range events {
		s.apply(event.Record)
	}
}

// apply replaces the identity wholesale and fans the snapshot out.
func (s *Store) apply(record *identity.UserRecord) {
	var next *identity.Identity
	if record != nil {
		classified := identity.Classify(*record)
		next = &classified
	}

	if s.metrics != nil {
		s.metrics.RecordSessionChange()
	}

	s.mu.Lock()
	s.current = next
	for _, sub := range s.subs {
		select {
		case sub <- next:
		default:
		}
	}
	s.mu.Unlock()
}

// Close detaches the store from the backend stream.
func (s *Store) Close() {
	s.stopOnce.Do(s.stop)
	<-s.done
}

// Current returns the present identity snapshot, if any.
func (s *Store) Current() (identity.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return identity.Identity{}, false
	}
	return *s.current, true
}

// SignedIn reports whether an identity is present.
func (s *Store) SignedIn() bool {
	_, ok := s.Current()
	return ok
}

// Anonymous reports whether the present identity is anonymous.
func (s *Store) Anonymous() bool {
	current, ok := s.Current()
	return ok && current.Anonymous
}

// Subscribe registers an observer of identity snapshots. A nil snapshot means
// signed out. The returned cancel function releases the subscription.
func (s *Store) Subscribe() (<-chan *identity.Identity, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.next
	s.next++
	ch := make(chan *identity.Identity, 8)
	s.subs[key] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[key]; ok {
			delete(s.subs, key)
			close(sub)
		}
	}
	return ch, cancel
}
