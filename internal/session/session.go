// Package session tracks where a signed-in (or not) user stands in the app
// flow. The three states are strictly ordered by what is known: nothing, a
// user, a user with a house.
package session

import (
	"sync"

	"bilancio/internal/core"
	"bilancio/internal/identity"
)

type State int

const (
	// StateUnauthenticated means no verified user.
	StateUnauthenticated State = iota
	// StateAwaitingHouseSelection means a user is signed in but has not
	// created or joined a house yet.
	StateAwaitingHouseSelection
	// StateActive means a user with an active house; the dashboard and all
	// mutations are available.
	StateActive
)

func (s State) String() string {
	switch s {
	case StateAwaitingHouseSelection:
		return "awaiting-house-selection"
	case StateActive:
		return "active"
	default:
		return "unauthenticated"
	}
}

// Derive computes the state for a stateless caller that carries the user and
// house selection out of band, such as an HTTP request with cookies.
func Derive(user *core.User, houseID string) Snapshot {
	switch {
	case user == nil:
		return Snapshot{State: StateUnauthenticated}
	case houseID == "":
		return Snapshot{State: StateAwaitingHouseSelection, User: *user}
	default:
		return Snapshot{State: StateActive, User: *user, HouseID: houseID}
	}
}

// Snapshot is the externally visible session state at one instant.
type Snapshot struct {
	State   State
	User    core.User
	HouseID string
}

// Listener receives every state transition.
type Listener func(Snapshot)

// Tracker derives the session state from identity events and house
// selection. Sign-out always drops straight to StateUnauthenticated and
// clears the house, whatever state came before.
type Tracker struct {
	mu        sync.Mutex
	user      *core.User
	houseID   string
	listeners map[int]Listener
	nextID    int
	unsub     func()
}

func NewTracker() *Tracker {
	return &Tracker{listeners: make(map[int]Listener)}
}

// Follow wires the tracker to an identity provider; every auth change is
// reflected in the session state. Call Close to detach.
func (t *Tracker) Follow(provider identity.Provider) {
	t.mu.Lock()
	if t.unsub != nil {
		t.unsub()
	}
	t.mu.Unlock()

	unsub := provider.ObserveSession(func(s *identity.Session) {
		if s == nil {
			t.SignedOut()
		} else {
			t.SignedIn(s.User)
		}
	})

	t.mu.Lock()
	t.unsub = unsub
	t.mu.Unlock()
}

// SignedIn moves to StateAwaitingHouseSelection, or keeps StateActive when
// the same user already has a house selected.
func (t *Tracker) SignedIn(user core.User) {
	t.mu.Lock()
	if t.user != nil && t.user.ID != user.ID {
		// A different account took over; its house choice does not carry.
		t.houseID = ""
	}
	u := user
	t.user = &u
	snap := t.snapshotLocked()
	listeners := t.listenerListLocked()
	t.mu.Unlock()

	broadcast(listeners, snap)
}

// SignedOut moves to StateUnauthenticated and forgets the house selection.
func (t *Tracker) SignedOut() {
	t.mu.Lock()
	t.user = nil
	t.houseID = ""
	snap := t.snapshotLocked()
	listeners := t.listenerListLocked()
	t.mu.Unlock()

	broadcast(listeners, snap)
}

// HouseSelected moves to StateActive. It is ignored while unauthenticated:
// a house cannot be held without a user to hold it.
func (t *Tracker) HouseSelected(houseID string) {
	t.mu.Lock()
	if t.user == nil || houseID == "" {
		t.mu.Unlock()
		return
	}
	t.houseID = houseID
	snap := t.snapshotLocked()
	listeners := t.listenerListLocked()
	t.mu.Unlock()

	broadcast(listeners, snap)
}

// Current returns the present snapshot.
func (t *Tracker) Current() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Listen registers a listener. It fires immediately with the current state
// and on every transition after; the returned function detaches it.
func (t *Tracker) Listen(fn Listener) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	snap := t.snapshotLocked()
	t.mu.Unlock()

	fn(snap)
	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

// Close detaches from the identity provider.
func (t *Tracker) Close() {
	t.mu.Lock()
	unsub := t.unsub
	t.unsub = nil
	t.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (t *Tracker) snapshotLocked() Snapshot {
	switch {
	case t.user == nil:
		return Snapshot{State: StateUnauthenticated}
	case t.houseID == "":
		return Snapshot{State: StateAwaitingHouseSelection, User: *t.user}
	default:
		return Snapshot{State: StateActive, User: *t.user, HouseID: t.houseID}
	}
}

func (t *Tracker) listenerListLocked() []Listener {
	out := make([]Listener, 0, len(t.listeners))
	for _, fn := range t.listeners {
		out = append(out, fn)
	}
	return out
}

func broadcast(listeners []Listener, snap Snapshot) {
	for _, fn := range listeners {
		fn(snap)
	}
}
