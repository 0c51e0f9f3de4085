package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"bilancio/internal/docstore/memory"
)

func newTestProvider(t *testing.T) *LocalProvider {
	t.Helper()
	store := memory.New()
	t.Cleanup(func() { store.Close() })

	p, err := NewLocalProvider(store, NewTokenManager("test-secret-test-secret", time.Hour))
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestRegisterAndSignIn(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	sess, err := p.Register(ctx, "Ana@Example.com", "Ana", "correct horse")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if sess.User.Email != "ana@example.com" {
		t.Errorf("email not normalized: %s", sess.User.Email)
	}
	if sess.Token == "" {
		t.Error("session must carry a token")
	}

	again, err := p.SignInWithCredentials(ctx, "ana@example.com", "correct horse")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if again.User.ID != sess.User.ID {
		t.Errorf("sign-in resolved a different user: %s vs %s", again.User.ID, sess.User.ID)
	}
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	p := newTestProvider(t)
	if _, err := p.Register(context.Background(), "a@b.c", "", "short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("got %v, want ErrWeakPassword", err)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	if _, err := p.Register(ctx, "a@b.c", "", "longenough"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := p.Register(ctx, "a@b.c", "", "longenough"); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("got %v, want ErrEmailExists", err)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	p.Register(ctx, "a@b.c", "", "longenough")
	if _, err := p.SignInWithCredentials(ctx, "a@b.c", "wrong password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("got %v, want ErrInvalidCredentials", err)
	}
	if _, err := p.SignInWithCredentials(ctx, "nobody@b.c", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: got %v, want ErrInvalidCredentials", err)
	}
}

func TestExternalSignInHasNoPassword(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	sess, err := p.SignInExternal(ctx, "g@example.com", "G User")
	if err != nil {
		t.Fatalf("external sign in: %v", err)
	}
	if sess.User.DisplayName != "G User" {
		t.Errorf("display name = %q", sess.User.DisplayName)
	}

	// Google-backed accounts cannot be entered with a password.
	if _, err := p.SignInWithCredentials(ctx, "g@example.com", "anything"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("got %v, want ErrInvalidCredentials", err)
	}

	// Second external sign-in resolves the same account.
	again, _ := p.SignInExternal(ctx, "g@example.com", "G User")
	if again.User.ID != sess.User.ID {
		t.Errorf("external sign-in created a duplicate user")
	}
}

func TestObserveSession(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	var states []*Session
	unsub := p.ObserveSession(func(s *Session) {
		states = append(states, s)
	})

	if len(states) != 1 || states[0] != nil {
		t.Fatalf("observer must fire immediately with the current (nil) state, got %v", states)
	}

	p.Register(ctx, "a@b.c", "", "longenough")
	if len(states) != 2 || states[1] == nil {
		t.Fatalf("observer must see the sign-in, got %d states", len(states))
	}

	p.SignOut(ctx)
	if len(states) != 3 || states[2] != nil {
		t.Fatalf("observer must see the sign-out, got %d states", len(states))
	}

	unsub()
	p.Register(ctx, "b@b.c", "", "longenough")
	if len(states) != 3 {
		t.Fatalf("unsubscribed observer still notified")
	}
}

func TestVerifyToken(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	sess, _ := p.Register(ctx, "a@b.c", "Ana", "longenough")

	user, err := p.VerifyToken(sess.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if user.ID != sess.User.ID || user.DisplayName != "Ana" {
		t.Errorf("verify resolved wrong user: %+v", user)
	}

	if _, err := p.VerifyToken("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}
