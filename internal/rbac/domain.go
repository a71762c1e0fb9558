package rbac

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/masig/pricebook/internal/shared"
)

// Role names a coarse grouping of users.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// ParseRole validates a raw role name.
func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleAdmin, RoleEmployee:
		return Role(raw), true
	}
	return "", false
}

// Grants is the resolved authorization of one user.
type Grants struct {
	Roles       []Role   `json:"roles"`
	Permissions []string `json:"permissions"`
}

// HasRole reports whether role was granted.
func (g Grants) HasRole(role Role) bool {
	return slices.Contains(g.Roles, role)
}

// HasPermission reports whether perm was granted. Admins hold every
// permission.
func (g Grants) HasPermission(perm string) bool {
	if g.HasRole(RoleAdmin) {
		return true
	}
	return slices.Contains(g.Permissions, perm)
}

// State is the authentication state of a session.
type State int

const (
	StateUnauthenticated State = iota
	StateLoading
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Principal is the authorization context attached to a request.
type Principal struct {
	State   State
	Session *shared.Session
	Grants  Grants
}

// UserID returns the authenticated user's ID, or uuid.Nil.
func (p Principal) UserID() uuid.UUID {
	if p.Session == nil {
		return uuid.Nil
	}
	return p.Session.UserID
}

// UserAccess is a user row with its grants for the admin screen.
type UserAccess struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Roles       []Role    `json:"roles"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
}

// ChangeFunc observes state transitions.
type ChangeFunc func(state State, grants Grants)

// Tracker holds the authentication state of one session and notifies
// listeners on every transition. It starts in StateLoading.
type Tracker struct {
	mu        sync.Mutex
	state     State
	session   *shared.Session
	grants    Grants
	listeners map[int]ChangeFunc
	nextID    int
}

// NewTracker returns a Tracker in StateLoading.
func NewTracker() *Tracker {
	return &Tracker{state: StateLoading, listeners: map[int]ChangeFunc{}}
}

// OnChange registers fn and returns a function that removes it.
func (t *Tracker) OnChange(fn ChangeFunc) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

// Begin moves the tracker back to StateLoading while a session is resolved.
func (t *Tracker) Begin() {
	t.set(StateLoading, nil, Grants{})
}

// Settle records the outcome of resolving sess. A nil session is
// unauthenticated.
func (t *Tracker) Settle(sess *shared.Session, grants Grants) {
	if sess == nil {
		t.set(StateUnauthenticated, nil, Grants{})
		return
	}
	t.set(StateAuthenticated, sess, grants)
}

// SignOut clears the session and grants.
func (t *Tracker) SignOut() {
	t.set(StateUnauthenticated, nil, Grants{})
}

// Principal returns a snapshot of the tracked state.
func (t *Tracker) Principal() Principal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Principal{State: t.state, Session: t.session, Grants: t.grants}
}

func (t *Tracker) set(state State, sess *shared.Session, grants Grants) {
	t.mu.Lock()
	t.state = state
	t.session = sess
	t.grants = grants
	listeners := make([]ChangeFunc, 0, len(t.listeners))
	for _, fn := range t.listeners {
		listeners = append(listeners, fn)
	}
	t.mu.Unlock()
	for _, fn := range listeners {
		fn(state, grants)
	}
}
