// Package auth implements the remote store's authentication primitive:
// sign-up, sign-in, sign-out, current-session lookup and a change-event
// stream consumed by the auth watcher.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"tradedeck/internal/store"
)

// ErrInvalidCredentials is returned when email/password do not match
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrEmailTaken is returned when signing up with a registered email
var ErrEmailTaken = errors.New("email already registered")

// DefaultSessionTTL is how long an issued token stays valid
const DefaultSessionTTL = 24 * time.Hour

// User is the authenticated identity attached to a session
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName,omitempty"`
}

// Session is an issued identity token with its owning user
type Session struct {
	Token     string    `json:"token"`
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// EventType identifies an auth state change
type EventType string

const (
	EventSignedUp       EventType = "SIGNED_UP"
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
)

// Event is emitted on every auth state change. Session is nil for sign-out.
type Event struct {
	Type    EventType
	User    User
	Session *Session
}

// UserStore is the slice of the remote store the service needs
type UserStore interface {
	InsertUser(ctx context.Context, u *store.UserRecord) error
	UserByEmail(ctx context.Context, email string) (*store.UserRecord, error)
}

// SessionCache stores issued tokens with a TTL
type SessionCache interface {
	SetSession(ctx context.Context, token string, session interface{}, ttl time.Duration) error
	GetSession(ctx context.Context, token string, dest interface{}) error
	DeleteSession(ctx context.Context, token string) error
}

// Subscription is a registered auth change listener
type Subscription struct {
	id  int
	svc *Service
}

// Service owns auth/session state. It is created once at startup and passed
// to its consumers explicitly.
type Service struct {
	users    UserStore
	sessions SessionCache
	ttl      time.Duration
	log      zerolog.Logger

	mu        sync.RWMutex
	nextID    int
	listeners map[int]func(Event)
}

// NewService creates an auth service backed by the given user store and
// session cache.
func NewService(users UserStore, sessions SessionCache, log zerolog.Logger) *Service {
	return &Service{
		users:     users,
		sessions:  sessions,
		ttl:       DefaultSessionTTL,
		log:       log.With().Str("component", "auth").Logger(),
		listeners: make(map[int]func(Event)),
	}
}

// SignUp registers a new user and issues a session. Emits SIGNED_UP.
func (s *Service) SignUp(ctx context.Context, email, password, fullName string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, errors.New("email and password are required")
	}

	existing, err := s.users.UserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	rec := &store.UserRecord{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		FullName:     sql.NullString{String: fullName, Valid: fullName != ""},
	}
	if err := s.users.InsertUser(ctx, rec); err != nil {
		return nil, err
	}

	session, err := s.issueSession(ctx, userFromRecord(rec))
	if err != nil {
		return nil, err
	}
	s.emit(Event{Type: EventSignedUp, User: session.User, Session: session})
	return session, nil
}

// SignIn authenticates an existing user and issues a session. Emits
// SIGNED_IN.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	rec, err := s.users.UserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	session, err := s.issueSession(ctx, userFromRecord(rec))
	if err != nil {
		return nil, err
	}
	s.emit(Event{Type: EventSignedIn, User: session.User, Session: session})
	return session, nil
}

// SignOut destroys the session for token. Emits SIGNED_OUT. Unknown tokens
// are a no-op.
func (s *Service) SignOut(ctx context.Context, token string) error {
	session, err := s.SessionFromToken(ctx, token)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}
	if err := s.sessions.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.emit(Event{Type: EventSignedOut, User: session.User, Session: nil})
	return nil
}

// SessionFromToken resolves the current session for a token. Returns
// (nil, nil) when the token is empty, unknown or expired; absence of a
// session is not an error.
func (s *Service) SessionFromToken(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}
	var session Session
	if err := s.sessions.GetSession(ctx, token, &session); err != nil {
		return nil, nil
	}
	if time.Now().After(session.ExpiresAt) {
		return nil, nil
	}
	session.Token = token
	return &session, nil
}

// Refresh re-issues the TTL for an existing session token. Emits
// TOKEN_REFRESHED.
func (s *Service) Refresh(ctx context.Context, token string) (*Session, error) {
	session, err := s.SessionFromToken(ctx, token)
	if err != nil || session == nil {
		return nil, err
	}
	session.ExpiresAt = time.Now().Add(s.ttl)
	if err := s.sessions.SetSession(ctx, token, session, s.ttl); err != nil {
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}
	s.emit(Event{Type: EventTokenRefreshed, User: session.User, Session: session})
	return session, nil
}

// OnChange registers fn for every auth change event
func (s *Service) OnChange(fn func(Event)) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.listeners[s.nextID] = fn
	return &Subscription{id: s.nextID, svc: s}
}

// Unsubscribe removes the listener. Safe to call more than once.
func (sub *Subscription) Unsubscribe() {
	if sub == nil || sub.svc == nil {
		return
	}
	sub.svc.mu.Lock()
	delete(sub.svc.listeners, sub.id)
	sub.svc.mu.Unlock()
	sub.svc = nil
}

func (s *Service) issueSession(ctx context.Context, user User) (*Session, error) {
	session := &Session{
		Token:     uuid.NewString(),
		User:      user,
		ExpiresAt: time.Now().Add(s.ttl),
	}
	if err := s.sessions.SetSession(ctx, session.Token, session, s.ttl); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	return session, nil
}

func (s *Service) emit(ev Event) {
	s.mu.RLock()
	fns := make([]func(Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func userFromRecord(rec *store.UserRecord) User {
	u := User{ID: rec.ID, Email: rec.Email}
	if rec.FullName.Valid {
		u.FullName = rec.FullName.String
	}
	return u
}
