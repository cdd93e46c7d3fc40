package auth

import (
	"sync"

	"github.com/google/uuid"
)

// Method identifies an authentication operation kind.
type Method string

const (
	MethodLogin     Method = "login"
	MethodSignUp    Method = "sign_up"
	MethodAnonymous Method = "anonymous"
	MethodGoogle    Method = "google"
	MethodApple     Method = "apple"
	MethodConvert   Method = "convert"
	MethodSignOut   Method = "sign_out"
	MethodDelete    Method = "delete_account"
)

// Tracker assigns each dispatched operation its own id and tracks which are
// still in flight. Callers observe only their own operation's terminal state,
// so concurrent operations cannot clobber each other; a derived "anything in
// flight" boolean remains available for the UI.
type Tracker struct {
	mu  sync.Mutex
	ops map[string]Method
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{ops: make(map[string]Method)}
}

// Begin registers a new operation and returns its id.
func (t *Tracker) Begin(method Method) string {
	id := uuid.NewString()
	t.mu.Lock()
	t.ops[id] = method
	t.mu.Unlock()
	return id
}

// End marks an operation finished.
func (t *Tracker) End(id string) {
	t.mu.Lock()
	delete(t.ops, id)
	t.mu.Unlock()
}

// InFlight reports whether the given operation is still pending.
func (t *Tracker) InFlight(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.ops[id]
	return ok
}

// AnyInFlight reports whether any operation is pending.
func (t *Tracker) AnyInFlight() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ops) > 0
}
