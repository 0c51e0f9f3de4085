package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"bilancio/internal/core"
	"bilancio/internal/docstore"
)

var _ Provider = (*LocalProvider)(nil)

// LocalProvider is the email/password identity provider. User records live
// in the docstore's users collection; the provider keeps an email-indexed
// mirror fed by a live subscription, the same mechanism every other consumer
// of the store uses.
type LocalProvider struct {
	store  docstore.Store
	tokens *TokenManager

	mu        sync.Mutex
	byEmail   map[string]core.User
	current   *Session
	observers map[int]Observer
	nextObsID int
	sub       docstore.Subscription
}

// NewLocalProvider creates the provider and starts mirroring the users
// collection.
func NewLocalProvider(store docstore.Store, tokens *TokenManager) (*LocalProvider, error) {
	p := &LocalProvider{
		store:     store,
		tokens:    tokens,
		byEmail:   make(map[string]core.User),
		observers: make(map[int]Observer),
	}

	sub, err := store.Subscribe(docstore.UsersCollection, docstore.OrderSpec{Field: "email"}, p.applySnapshot)
	if err != nil {
		return nil, fmt.Errorf("subscribe users: %w", err)
	}
	p.sub = sub

	return p, nil
}

// Close tears down the users subscription.
func (p *LocalProvider) Close() error {
	if p.sub != nil {
		p.sub.Unsubscribe()
	}
	return nil
}

func (p *LocalProvider) applySnapshot(docs []docstore.Doc) {
	byEmail := make(map[string]core.User, len(docs))
	for _, doc := range docs {
		u := userFromDoc(doc)
		if u.Email == "" {
			continue
		}
		byEmail[strings.ToLower(u.Email)] = u
	}

	p.mu.Lock()
	p.byEmail = byEmail
	p.mu.Unlock()
}

func userFromDoc(doc docstore.Doc) core.User {
	return core.User{
		ID:           doc.ID,
		Email:        stringField(doc.Fields, "email"),
		DisplayName:  stringField(doc.Fields, "displayName"),
		PasswordHash: stringField(doc.Fields, "passwordHash"),
		CreatedAt:    doc.CreatedAt,
	}
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

// Register creates a new account with a hashed password and signs it in.
func (p *LocalProvider) Register(ctx context.Context, email, displayName, password string) (*Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, ErrInvalidCredentials
	}
	if len(password) < 8 {
		return nil, ErrWeakPassword
	}

	p.mu.Lock()
	_, exists := p.byEmail[email]
	p.mu.Unlock()
	if exists {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	id, err := p.store.Create(ctx, docstore.UsersCollection, map[string]any{
		"email":        email,
		"displayName":  displayName,
		"passwordHash": string(hash),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	user := core.User{
		ID:           id,
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}

	// The subscription mirror catches up asynchronously; make the new user
	// visible for sign-in immediately.
	p.mu.Lock()
	p.byEmail[email] = user
	p.mu.Unlock()

	return p.startSession(user)
}

// SignInWithCredentials verifies the email and password.
func (p *LocalProvider) SignInWithCredentials(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	p.mu.Lock()
	user, ok := p.byEmail[email]
	p.mu.Unlock()
	if !ok || user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return p.startSession(user)
}

// SignInExternal signs in a user verified by an external provider (Google),
// creating the account on first sign-in. Such accounts carry no password
// hash and cannot be signed into with credentials.
func (p *LocalProvider) SignInExternal(ctx context.Context, email, displayName string) (*Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, ErrInvalidCredentials
	}

	p.mu.Lock()
	user, ok := p.byEmail[email]
	p.mu.Unlock()

	if !ok {
		id, err := p.store.Create(ctx, docstore.UsersCollection, map[string]any{
			"email":        email,
			"displayName":  displayName,
			"passwordHash": "",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		user = core.User{
			ID:          id,
			Email:       email,
			DisplayName: displayName,
			CreatedAt:   time.Now().UTC(),
		}
		p.mu.Lock()
		p.byEmail[email] = user
		p.mu.Unlock()
	}

	return p.startSession(user)
}

// SignOut clears the session and notifies observers.
func (p *LocalProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.current = nil
	observers := p.observerList()
	p.mu.Unlock()

	for _, fn := range observers {
		fn(nil)
	}
	return nil
}

// ObserveSession registers an observer, invokes it once with the current
// state, and returns its unsubscribe.
func (p *LocalProvider) ObserveSession(fn Observer) func() {
	p.mu.Lock()
	id := p.nextObsID
	p.nextObsID++
	p.observers[id] = fn
	current := p.current
	p.mu.Unlock()

	fn(current)

	return func() {
		p.mu.Lock()
		delete(p.observers, id)
		p.mu.Unlock()
	}
}

// VerifyToken resolves a bearer token back to its user. The HTTP layer uses
// this to re-establish a session on each request.
func (p *LocalProvider) VerifyToken(token string) (core.User, error) {
	claims, err := p.tokens.Validate(token)
	if err != nil {
		return core.User{}, err
	}

	p.mu.Lock()
	user, ok := p.byEmail[strings.ToLower(claims.Email)]
	p.mu.Unlock()
	if !ok {
		// Token predates the mirror or the user was removed out of band.
		return core.User{ID: claims.UserID, Email: claims.Email}, nil
	}
	return user, nil
}

func (p *LocalProvider) startSession(user core.User) (*Session, error) {
	token, err := p.tokens.Generate(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	session := &Session{User: user, Token: token}

	p.mu.Lock()
	p.current = session
	observers := p.observerList()
	p.mu.Unlock()

	for _, fn := range observers {
		fn(session)
	}
	return session, nil
}

// observerList snapshots observers for invocation outside the lock.
// Callers must hold p.mu.
func (p *LocalProvider) observerList() []Observer {
	out := make([]Observer, 0, len(p.observers))
	for _, fn := range p.observers {
		out = append(out, fn)
	}
	return out
}
