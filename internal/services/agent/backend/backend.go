// Package backend provides the narrow contract to the hosted identity service
// of record. It owns credential exchanges, account linking, and the
// identity-changed notification stream that feeds the session store.
package backend

import (
	"context"
	"sync"

	"github.com/daybreak-app/daybreak/internal/services/agent/identity"
	"github.com/daybreak-app/daybreak/internal/services/agent/provider"
)

// Event is an identity-changed notification. A nil Record means the session
// ended (sign-out or account deletion).
type Event struct {
	Record *identity.UserRecord
}

// Client is the identity backend contract consumed by the orchestrator.
//
// Every successful exchange also publishes an Event on the watch stream; the
// session store updates only from that stream, never from operation results.
type Client interface {
	SignInWithPassword(ctx context.Context, email, password string) (identity.UserRecord, error)
	SignUp(ctx context.Context, email, password string) (identity.UserRecord, error)
	SignInAnonymously(ctx context.Context) (identity.UserRecord, error)
	SignInWithProvider(ctx context.Context, credential provider.Credential) (identity.UserRecord, error)
	LinkPassword(ctx context.Context, email, password string) (identity.UserRecord, error)
	LinkProvider(ctx context.Context, credential provider.Credential) (identity.UserRecord, error)
	SignOut(ctx context.Context) error
	DeleteAccount(ctx context.Context) error
	Watch() (<-chan Event, func())
}

// Notifier fans identity-changed events out to subscribers.
//
// Publishing never blocks: a subscriber that stops draining its channel loses
// events rather than stalling backend exchanges.
type Notifier struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]chan Event)}
}

// Watch registers a subscriber and returns its event channel plus a cancel
// function that must be called to release the subscription.
func (n *Notifier) Watch() (<-chan Event, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	key := n.next
	n.next++
	ch := make(chan Event, 8)
	n.subs[key] = ch

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if sub, ok := n.subs[key]; ok {
			delete(n.subs, key)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber.
func (n *Notifier) Publish(event Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, sub := range n.subs {
		select {
		case sub <- event:
		default:
		}
	}
}
