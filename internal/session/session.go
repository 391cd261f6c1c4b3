package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/taskflow/internal/identity"
	"github.com/phrazzld/taskflow/internal/platform/keycloak"
	"github.com/phrazzld/taskflow/internal/platform/logger"
	"github.com/phrazzld/taskflow/internal/redact"
	"golang.org/x/oauth2"
)

// RefreshLeadTime is how long before expiry the token is refreshed.
const RefreshLeadTime = 30 * time.Second

// refreshTimeout bounds a timer-driven refresh.
const refreshTimeout = 30 * time.Second

// Session errors.
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNoPendingLogin   = errors.New("no login in progress")
	ErrInvalidState     = errors.New("login state mismatch")
	ErrMissingCode      = errors.New("missing authorization code")
)

// Provider is the identity provider a Session signs in against.
// *keycloak.Client satisfies it.
type Provider interface {
	AuthCodeURL(state, verifier string) string
	Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	LogoutURL(idTokenHint, redirectURL string) string
}

var _ Provider = (*keycloak.Client)(nil)

// Timer is the handle returned by an AfterFunc.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Session is the identity state of one client. All methods are safe for
// concurrent use; the refresh timer fires on its own goroutine.
type Session struct {
	provider  Provider
	store     TokenStore
	decoder   identity.Decoder
	logger    *slog.Logger
	now       func() time.Time
	afterFunc AfterFunc

	mu          sync.Mutex
	initialized bool
	token       *oauth2.Token
	idToken     string
	user        *identity.User
	timer       Timer
	// generation changes whenever the held token is replaced or cleared so
	// a timer armed for an older token does nothing when it fires.
	generation uint64
}

// Ensure Session implements oauth2.TokenSource interface
var _ oauth2.TokenSource = (*Session)(nil)

// Option configures a Session.
type Option func(*Session)

// WithClock sets the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithAfterFunc sets the scheduler used for the refresh timer.
func WithAfterFunc(f AfterFunc) Option {
	return func(s *Session) {
		s.afterFunc = f
	}
}

// WithDecoder sets the decoder used to derive the user from a token.
func WithDecoder(d identity.Decoder) Option {
	return func(s *Session) {
		s.decoder = d
	}
}

// New creates an unauthenticated session. A nil store keeps state in
// memory only.
func New(provider Provider, store TokenStore, log *slog.Logger, opts ...Option) *Session {
	// ALLOW-PANIC: Constructor enforcing required dependency
	if provider == nil {
		panic("provider cannot be nil")
	}
	if store == nil {
		store = NewMemoryTokenStore()
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Session{
		provider:  provider,
		store:     store,
		decoder:   identity.NewUnverifiedDecoder(),
		logger:    log.With(slog.String("component", "session")),
		now:       time.Now,
		afterFunc: realAfterFunc,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init restores a persisted session once. A valid stored token is used
// as-is, an expired one is refreshed, and an empty store leaves the session
// unauthenticated without error. Later calls return the current state.
// If Init fails it may be called again.
func (s *Session) Init(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.initialized {
		authenticated := s.user != nil
		s.mu.Unlock()
		return authenticated, nil
	}
	s.initialized = true
	s.mu.Unlock()

	authenticated, err := s.restore(ctx)
	if err != nil {
		s.mu.Lock()
		s.initialized = false
		s.mu.Unlock()
		return false, err
	}
	return authenticated, nil
}

func (s *Session) restore(ctx context.Context) (bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	stored, err := s.store.Load()
	if err != nil {
		return false, fmt.Errorf("failed to load session: %w", err)
	}
	if stored.Token == nil || stored.Token.AccessToken == "" {
		log.Debug("no stored session")
		return false, nil
	}

	tok, idToken := stored.Token, stored.IDToken
	if !s.unexpired(tok) {
		if tok.RefreshToken == "" {
			log.Info("stored token expired")
			s.forget(log)
			return false, nil
		}

		refreshed, err := s.provider.Refresh(ctx, tok.RefreshToken)
		if err != nil {
			log.Warn("stored token could not be refreshed", redact.ErrorAttr(err))
			s.forget(log)
			return false, nil
		}
		tok, idToken = refreshed, idTokenOr(refreshed, idToken)
	}

	if err := s.establish(ctx, tok, idToken); err != nil {
		s.forget(log)
		return false, err
	}
	return true, nil
}

// Login starts an authorization-code flow with PKCE and returns the URL the
// user must visit. The state and verifier are persisted so the flow
// survives a restart.
func (s *Session) Login(ctx context.Context) (string, error) {
	pending := &PendingLogin{
		State:    oauth2.GenerateVerifier(),
		Verifier: oauth2.GenerateVerifier(),
	}

	stored, err := s.store.Load()
	if err != nil {
		return "", fmt.Errorf("failed to load session: %w", err)
	}
	stored.PendingLogin = pending
	if err := s.store.Save(stored); err != nil {
		return "", fmt.Errorf("failed to save pending login: %w", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Debug("login started")
	return s.provider.AuthCodeURL(pending.State, pending.Verifier), nil
}

// HandleCallback completes a login started by Login. The pending login is
// consumed whether or not the exchange succeeds.
func (s *Session) HandleCallback(ctx context.Context, state, code string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	stored, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	pending := stored.PendingLogin
	if pending == nil {
		return ErrNoPendingLogin
	}

	stored.PendingLogin = nil
	if err := s.store.Save(stored); err != nil {
		return fmt.Errorf("failed to clear pending login: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(state), []byte(pending.State)) != 1 {
		log.Warn("login callback state mismatch")
		return ErrInvalidState
	}
	if code == "" {
		return ErrMissingCode
	}

	tok, err := s.provider.Exchange(ctx, code, pending.Verifier)
	if err != nil {
		log.Error("code exchange failed", redact.ErrorAttr(err))
		return err
	}

	if err := s.establish(ctx, tok, keycloak.IDToken(tok)); err != nil {
		return err
	}

	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()

	log.Info("login completed")
	return nil
}

// Logout clears the session locally and in the store and returns the
// provider's logout URL. redirectURL may be empty.
func (s *Session) Logout(redirectURL string) string {
	s.mu.Lock()
	idToken := s.idToken
	s.clearLocked()
	s.mu.Unlock()

	if err := s.store.Clear(); err != nil {
		s.logger.Error("failed to clear stored session", redact.ErrorAttr(err))
	}
	return s.provider.LogoutURL(idToken, redirectURL)
}

// Token implements oauth2.TokenSource. It returns ErrNotAuthenticated when
// no token is held.
func (s *Session) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == nil {
		return nil, ErrNotAuthenticated
	}
	tok := *s.token
	return &tok, nil
}

// User returns the signed-in user.
func (s *Session) User() (identity.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return identity.User{}, false
	}
	return *s.user, true
}

// IsAuthenticated reports whether a user derived from a held token exists.
func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user != nil && s.token != nil
}

// establish derives the user from tok, installs both, persists the token
// and arms the refresh timer.
func (s *Session) establish(ctx context.Context, tok *oauth2.Token, idToken string) error {
	user, err := identity.DecodeUser(s.decoder, tok.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to read identity from token: %w", err)
	}

	s.mu.Lock()
	s.installLocked(tok, idToken, user)
	s.mu.Unlock()

	s.persist(ctx, tok, idToken)
	return nil
}

// installLocked replaces the held token. Callers must hold s.mu.
func (s *Session) installLocked(tok *oauth2.Token, idToken string, user identity.User) {
	s.stopTimerLocked()
	s.generation++
	s.token = tok
	s.idToken = idToken
	s.user = &user

	if tok.Expiry.IsZero() {
		return
	}
	delay := tok.Expiry.Sub(s.now()) - RefreshLeadTime
	if delay < 0 {
		delay = 0
	}
	gen := s.generation
	s.timer = s.afterFunc(delay, func() { s.refreshExpiring(gen) })
}

// refreshExpiring runs when the token armed at generation gen is about to
// expire. A failed refresh ends the session.
func (s *Session) refreshExpiring(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || s.token == nil {
		s.mu.Unlock()
		return
	}
	refreshToken, idToken := s.token.RefreshToken, s.idToken
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	tok, err := s.provider.Refresh(ctx, refreshToken)
	var user identity.User
	if err == nil {
		user, err = identity.DecodeUser(s.decoder, tok.AccessToken)
	}

	s.mu.Lock()
	if gen != s.generation {
		// Logged out or replaced while the refresh was in flight.
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.clearLocked()
		s.mu.Unlock()
		s.logger.Warn("token refresh failed; session ended", redact.ErrorAttr(err))
		if clearErr := s.store.Clear(); clearErr != nil {
			s.logger.Error("failed to clear stored session", redact.ErrorAttr(clearErr))
		}
		return
	}
	idToken = idTokenOr(tok, idToken)
	s.installLocked(tok, idToken, user)
	s.mu.Unlock()

	s.logger.Debug("token refreshed", slog.Time("expiry", tok.Expiry))
	s.persist(ctx, tok, idToken)
}

// clearLocked drops the held identity. Callers must hold s.mu.
func (s *Session) clearLocked() {
	s.stopTimerLocked()
	s.generation++
	s.token = nil
	s.idToken = ""
	s.user = nil
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) persist(ctx context.Context, tok *oauth2.Token, idToken string) {
	if err := s.store.Save(Persisted{Token: tok, IDToken: idToken}); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to persist session",
			redact.ErrorAttr(err))
	}
}

func (s *Session) forget(log *slog.Logger) {
	if err := s.store.Clear(); err != nil {
		log.Error("failed to clear stored session", redact.ErrorAttr(err))
	}
}

func (s *Session) unexpired(tok *oauth2.Token) bool {
	return tok.Expiry.IsZero() || s.now().Before(tok.Expiry)
}

// idTokenOr returns the id_token issued with tok, or fallback when the
// provider did not send one.
func idTokenOr(tok *oauth2.Token, fallback string) string {
	if id := keycloak.IDToken(tok); id != "" {
		return id
	}
	return fallback
}
