package watch

import (
	"context"
	"database/sql"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tradedeck/internal/auth"
	"tradedeck/internal/store"
)

// Defaults for the portfolio provisioned on sign-up
const (
	defaultPortfolioName = "Main Portfolio"
	defaultStartingCash  = 10000
)

// AuthService is the auth primitive the watcher consumes
type AuthService interface {
	SessionFromToken(ctx context.Context, token string) (*auth.Session, error)
	SignOut(ctx context.Context, token string) error
	OnChange(fn func(auth.Event)) *auth.Subscription
}

// Provisioner creates the records a fresh sign-up needs
type Provisioner interface {
	InsertProfile(ctx context.Context, p *store.ProfileRecord) error
	CreatePortfolio(ctx context.Context, userID, name string, availableCash decimal.Decimal) (*store.PortfolioRecord, error)
}

// AuthSnapshot is the watcher's current state
type AuthSnapshot struct {
	User    *auth.User    `json:"user"`
	Session *auth.Session `json:"session"`
	Loading bool          `json:"loading"`
}

// AuthWatcher tracks the current session and reacts to auth change events.
// On sign-up it provisions the user's profile row and default portfolio,
// best-effort: failures are logged, never surfaced, and do not roll back the
// sign-up itself.
type AuthWatcher struct {
	svc         AuthService
	provisioner Provisioner
	log         zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	sub    *auth.Subscription

	mu      sync.RWMutex
	user    *auth.User
	session *auth.Session
	loading bool
}

// NewAuthWatcher creates an auth watcher
func NewAuthWatcher(svc AuthService, provisioner Provisioner, log zerolog.Logger) *AuthWatcher {
	return &AuthWatcher{
		svc:         svc,
		provisioner: provisioner,
		log:         log.With().Str("watcher", "auth").Logger(),
		loading:     true,
	}
}

// Start resolves the initial session for token (which may be empty) and
// subscribes to the auth change stream. Every event replaces user and
// session atomically.
func (w *AuthWatcher) Start(ctx context.Context, token string) {
	w.ctx, w.cancel = context.WithCancel(ctx)

	session, err := w.svc.SessionFromToken(ctx, token)
	if err != nil {
		w.log.Error().Err(err).Msg("initial session check failed")
	}
	w.mu.Lock()
	w.applyLocked(session)
	w.loading = false
	w.mu.Unlock()

	w.sub = w.svc.OnChange(w.onChange)
}

// Stop unsubscribes from the auth change stream
func (w *AuthWatcher) Stop() {
	if w.sub != nil {
		w.sub.Unsubscribe()
		w.sub = nil
	}
	if w.cancel != nil {
		w.cancel()
	}
}

// SignOut delegates to the auth service. Local state is not cleared here;
// the subsequent change event does that.
func (w *AuthWatcher) SignOut(ctx context.Context) error {
	w.mu.RLock()
	session := w.session
	w.mu.RUnlock()
	if session == nil {
		return nil
	}
	return w.svc.SignOut(ctx, session.Token)
}

// Snapshot returns the watcher's current state
func (w *AuthWatcher) Snapshot() AuthSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return AuthSnapshot{User: w.user, Session: w.session, Loading: w.loading}
}

func (w *AuthWatcher) onChange(ev auth.Event) {
	w.mu.Lock()
	w.applyLocked(ev.Session)
	w.loading = false
	w.mu.Unlock()

	if ev.Type == auth.EventSignedUp {
		go w.provision(w.ctx, ev.User)
	}
}

func (w *AuthWatcher) applyLocked(session *auth.Session) {
	w.session = session
	if session != nil {
		user := session.User
		w.user = &user
	} else {
		w.user = nil
	}
}

// provision creates the profile row and default portfolio for a new user.
// Both calls are best-effort; a failure leaves the user signed in without
// the record and is only logged.
func (w *AuthWatcher) provision(ctx context.Context, user auth.User) {
	if w.provisioner == nil {
		return
	}
	profile := &store.ProfileRecord{
		ID:       user.ID,
		Email:    user.Email,
		FullName: sql.NullString{String: user.FullName, Valid: user.FullName != ""},
	}
	if err := w.provisioner.InsertProfile(ctx, profile); err != nil {
		w.log.Error().Err(err).Str("user_id", user.ID).Msg("failed to create profile on sign-up")
	}
	_, err := w.provisioner.CreatePortfolio(ctx, user.ID, defaultPortfolioName, decimal.NewFromInt(defaultStartingCash))
	if err != nil {
		w.log.Error().Err(err).Str("user_id", user.ID).Msg("failed to create default portfolio on sign-up")
	}
}
