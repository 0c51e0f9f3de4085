package session

import (
	"context"
	"testing"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/docstore/memory"
	"bilancio/internal/identity"
)

var ana = core.User{ID: "u-ana", Email: "ana@example.com"}
var bob = core.User{ID: "u-bob", Email: "bob@example.com"}

func TestInitialState(t *testing.T) {
	tr := NewTracker()
	if got := tr.Current().State; got != StateUnauthenticated {
		t.Fatalf("state = %v, want unauthenticated", got)
	}
}

func TestSignInThenSelectHouse(t *testing.T) {
	tr := NewTracker()

	tr.SignedIn(ana)
	snap := tr.Current()
	if snap.State != StateAwaitingHouseSelection || snap.User.ID != ana.ID {
		t.Fatalf("after sign-in: %+v", snap)
	}

	tr.HouseSelected("h1")
	snap = tr.Current()
	if snap.State != StateActive || snap.HouseID != "h1" {
		t.Fatalf("after house selection: %+v", snap)
	}
}

func TestHouseSelectionNeedsUser(t *testing.T) {
	tr := NewTracker()
	tr.HouseSelected("h1")
	if got := tr.Current(); got.State != StateUnauthenticated || got.HouseID != "" {
		t.Fatalf("unauthenticated selection must be ignored: %+v", got)
	}
}

func TestSignOutClearsEverything(t *testing.T) {
	tr := NewTracker()
	tr.SignedIn(ana)
	tr.HouseSelected("h1")

	tr.SignedOut()
	snap := tr.Current()
	if snap.State != StateUnauthenticated || snap.HouseID != "" || snap.User.ID != "" {
		t.Fatalf("after sign-out: %+v", snap)
	}
}

func TestAccountSwitchDropsHouse(t *testing.T) {
	tr := NewTracker()
	tr.SignedIn(ana)
	tr.HouseSelected("h1")

	tr.SignedIn(bob)
	snap := tr.Current()
	if snap.State != StateAwaitingHouseSelection || snap.User.ID != bob.ID {
		t.Fatalf("after switch: %+v", snap)
	}
}

func TestListen(t *testing.T) {
	tr := NewTracker()

	var seen []State
	unlisten := tr.Listen(func(s Snapshot) { seen = append(seen, s.State) })

	tr.SignedIn(ana)
	tr.HouseSelected("h1")
	tr.SignedOut()

	want := []State{StateUnauthenticated, StateAwaitingHouseSelection, StateActive, StateUnauthenticated}
	if len(seen) != len(want) {
		t.Fatalf("transitions = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", seen, want)
		}
	}

	unlisten()
	tr.SignedIn(ana)
	if len(seen) != len(want) {
		t.Fatal("detached listener still notified")
	}
}

func TestDerive(t *testing.T) {
	if got := Derive(nil, "h1"); got.State != StateUnauthenticated {
		t.Errorf("nil user: %+v", got)
	}
	if got := Derive(&ana, ""); got.State != StateAwaitingHouseSelection || got.User.ID != ana.ID {
		t.Errorf("no house: %+v", got)
	}
	if got := Derive(&ana, "h1"); got.State != StateActive || got.HouseID != "h1" {
		t.Errorf("active: %+v", got)
	}
}

func TestFollowIdentityProvider(t *testing.T) {
	store := memory.New()
	t.Cleanup(func() { store.Close() })
	provider, err := identity.NewLocalProvider(store, identity.NewTokenManager("test-secret-test-secret", time.Hour))
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	t.Cleanup(func() { provider.Close() })

	tr := NewTracker()
	tr.Follow(provider)
	t.Cleanup(tr.Close)

	ctx := context.Background()
	sess, err := provider.Register(ctx, "ana@example.com", "Ana", "longenough")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if got := tr.Current(); got.State != StateAwaitingHouseSelection || got.User.ID != sess.User.ID {
		t.Fatalf("after register: %+v", got)
	}

	tr.HouseSelected("h1")
	provider.SignOut(ctx)
	if got := tr.Current(); got.State != StateUnauthenticated {
		t.Fatalf("after sign-out: %+v", got)
	}
}
