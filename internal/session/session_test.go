package session

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/phrazzld/taskflow/internal/identity"
	"github.com/phrazzld/taskflow/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

var testNow = time.Date(2025, time.June, 2, 12, 0, 0, 0, time.UTC)

type fakeProvider struct {
	mu           sync.Mutex
	exchangeTok  *oauth2.Token
	exchangeErr  error
	refreshTok   *oauth2.Token
	refreshErr   error
	refreshCalls []string
	verifier     string
	code         string
}

func (p *fakeProvider) AuthCodeURL(state, verifier string) string {
	return "https://idp.example/auth?" + url.Values{"state": {state}}.Encode()
}

func (p *fakeProvider) Exchange(_ context.Context, code, verifier string) (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.code, p.verifier = code, verifier
	return p.exchangeTok, p.exchangeErr
}

func (p *fakeProvider) Refresh(_ context.Context, refreshToken string) (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshCalls = append(p.refreshCalls, refreshToken)
	return p.refreshTok, p.refreshErr
}

func (p *fakeProvider) LogoutURL(idTokenHint, redirectURL string) string {
	q := url.Values{}
	q.Set("id_token_hint", idTokenHint)
	q.Set("post_logout_redirect_uri", redirectURL)
	return "https://idp.example/logout?" + q.Encode()
}

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}

type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (f *fakeScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	timer := &fakeTimer{delay: d, fn: fn}
	f.timers = append(f.timers, timer)
	return timer
}

func (f *fakeScheduler) last(t *testing.T) *fakeTimer {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.timers, "no timer armed")
	return f.timers[len(f.timers)-1]
}

func (f *fakeScheduler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

type failingStore struct {
	*MemoryTokenStore
	loadErr error
}

func (s *failingStore) Load() (Persisted, error) {
	if s.loadErr != nil {
		return Persisted{}, s.loadErr
	}
	return s.MemoryTokenStore.Load()
}

func accessToken(t *testing.T, subject string) string {
	t.Helper()
	claims := identity.Claims{
		RegisteredClaims:  jwt.RegisteredClaims{Subject: subject},
		Email:             subject + "@example.com",
		PreferredUsername: subject,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test"))
	require.NoError(t, err)
	return signed
}

func newToken(t *testing.T, subject string, expiry time.Time, refresh string) *oauth2.Token {
	t.Helper()
	return &oauth2.Token{
		AccessToken:  accessToken(t, subject),
		TokenType:    "Bearer",
		RefreshToken: refresh,
		Expiry:       expiry,
	}
}

type fixture struct {
	session   *Session
	provider  *fakeProvider
	store     *MemoryTokenStore
	scheduler *fakeScheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log, _ := logger.NewTestLogger()
	f := &fixture{
		provider:  &fakeProvider{},
		store:     NewMemoryTokenStore(),
		scheduler: &fakeScheduler{},
	}
	f.session = New(f.provider, f.store, log,
		WithClock(func() time.Time { return testNow }),
		WithAfterFunc(f.scheduler.AfterFunc))
	return f
}

func TestInit_EmptyStore(t *testing.T) {
	f := newFixture(t)

	ok, err := f.session.Init(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, f.session.IsAuthenticated())

	_, err = f.session.Token()
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, found := f.session.User()
	assert.False(t, found)
	assert.Zero(t, f.scheduler.count())
}

func TestInit_ValidStoredToken(t *testing.T) {
	f := newFixture(t)
	stored := newToken(t, "alice", testNow.Add(5*time.Minute), "refresh-1")
	require.NoError(t, f.store.Save(Persisted{Token: stored, IDToken: "id-alice"}))

	ok, err := f.session.Init(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, f.session.IsAuthenticated())
	assert.Empty(t, f.provider.refreshCalls)

	user, found := f.session.User()
	require.True(t, found)
	assert.Equal(t, identity.User{
		ID:       "alice",
		Email:    "alice@example.com",
		Name:     "alice",
		Username: "alice",
	}, user)

	tok, err := f.session.Token()
	require.NoError(t, err)
	assert.Equal(t, stored.AccessToken, tok.AccessToken)

	assert.Equal(t, 5*time.Minute-RefreshLeadTime, f.scheduler.last(t).delay)

	t.Run("second init does not reload", func(t *testing.T) {
		require.NoError(t, f.store.Clear())
		ok, err := f.session.Init(context.Background())
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestInit_ExpiredTokenIsRefreshed(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Save(Persisted{
		Token:   newToken(t, "alice", testNow.Add(-time.Minute), "refresh-1"),
		IDToken: "id-old",
	}))
	f.provider.refreshTok = newToken(t, "alice", testNow.Add(10*time.Minute), "refresh-2")

	ok, err := f.session.Init(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"refresh-1"}, f.provider.refreshCalls)

	persisted, err := f.store.Load()
	require.NoError(t, err)
	require.NotNil(t, persisted.Token)
	assert.Equal(t, "refresh-2", persisted.Token.RefreshToken)
	assert.Equal(t, "id-old", persisted.IDToken, "id token kept when the provider omits it")
}

func TestInit_ExpiredTokenRefreshFails(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Save(Persisted{
		Token: newToken(t, "alice", testNow.Add(-time.Minute), "refresh-1"),
	}))
	f.provider.refreshErr = errors.New("invalid_grant")

	ok, err := f.session.Init(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, f.session.IsAuthenticated())

	persisted, err := f.store.Load()
	require.NoError(t, err)
	assert.Nil(t, persisted.Token)
}

func TestInit_FailureAllowsRetry(t *testing.T) {
	log, _ := logger.NewTestLogger()
	store := &failingStore{MemoryTokenStore: NewMemoryTokenStore(), loadErr: errors.New("disk on fire")}
	require.NoError(t, store.Save(Persisted{Token: newToken(t, "alice", testNow.Add(time.Hour), "")}))

	s := New(&fakeProvider{}, store, log,
		WithClock(func() time.Time { return testNow }),
		WithAfterFunc((&fakeScheduler{}).AfterFunc))

	_, err := s.Init(context.Background())
	require.Error(t, err)

	store.loadErr = nil
	ok, err := s.Init(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLoginAndCallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	loginURL, err := f.session.Login(ctx)
	require.NoError(t, err)

	parsed, err := url.Parse(loginURL)
	require.NoError(t, err)
	state := parsed.Query().Get("state")
	require.NotEmpty(t, state)

	persisted, err := f.store.Load()
	require.NoError(t, err)
	require.NotNil(t, persisted.PendingLogin)
	assert.Equal(t, state, persisted.PendingLogin.State)
	verifier := persisted.PendingLogin.Verifier

	f.provider.exchangeTok = newToken(t, "alice", testNow.Add(time.Hour), "refresh-1").
		WithExtra(map[string]any{"id_token": "id-alice"})

	require.NoError(t, f.session.HandleCallback(ctx, state, "auth-code"))
	assert.Equal(t, "auth-code", f.provider.code)
	assert.Equal(t, verifier, f.provider.verifier)
	assert.True(t, f.session.IsAuthenticated())
	assert.Equal(t, time.Hour-RefreshLeadTime, f.scheduler.last(t).delay)

	persisted, err = f.store.Load()
	require.NoError(t, err)
	assert.Nil(t, persisted.PendingLogin)
	assert.Equal(t, "id-alice", persisted.IDToken)

	ok, err := f.session.Init(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "init after a callback reports the live session")
}

func TestHandleCallback_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("no pending login", func(t *testing.T) {
		f := newFixture(t)
		assert.ErrorIs(t, f.session.HandleCallback(ctx, "state", "code"), ErrNoPendingLogin)
	})

	t.Run("state mismatch consumes the pending login", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.session.Login(ctx)
		require.NoError(t, err)

		assert.ErrorIs(t, f.session.HandleCallback(ctx, "forged", "code"), ErrInvalidState)
		assert.ErrorIs(t, f.session.HandleCallback(ctx, "forged", "code"), ErrNoPendingLogin)
		assert.False(t, f.session.IsAuthenticated())
	})

	t.Run("missing code", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.session.Login(ctx)
		require.NoError(t, err)
		persisted, _ := f.store.Load()

		assert.ErrorIs(t, f.session.HandleCallback(ctx, persisted.PendingLogin.State, ""), ErrMissingCode)
	})

	t.Run("exchange failure", func(t *testing.T) {
		f := newFixture(t)
		f.provider.exchangeErr = errors.New("bad code")
		_, err := f.session.Login(ctx)
		require.NoError(t, err)
		persisted, _ := f.store.Load()

		err = f.session.HandleCallback(ctx, persisted.PendingLogin.State, "code")
		assert.EqualError(t, err, "bad code")
		assert.False(t, f.session.IsAuthenticated())
	})
}

func TestRefreshTimer(t *testing.T) {
	t.Run("success swaps token and re-arms", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.Save(Persisted{
			Token: newToken(t, "alice", testNow.Add(time.Minute), "refresh-1"),
		}))
		_, err := f.session.Init(context.Background())
		require.NoError(t, err)

		first := f.scheduler.last(t)
		assert.Equal(t, 30*time.Second, first.delay)

		renewed := newToken(t, "alice", testNow.Add(20*time.Minute), "refresh-2")
		f.provider.refreshTok = renewed
		first.fn()

		tok, err := f.session.Token()
		require.NoError(t, err)
		assert.Equal(t, "refresh-2", tok.RefreshToken)
		assert.Equal(t, []string{"refresh-1"}, f.provider.refreshCalls)
		assert.Equal(t, 2, f.scheduler.count())
		assert.Equal(t, 20*time.Minute-RefreshLeadTime, f.scheduler.last(t).delay)
	})

	t.Run("token inside lead time refreshes immediately", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.Save(Persisted{
			Token: newToken(t, "alice", testNow.Add(10*time.Second), "refresh-1"),
		}))
		_, err := f.session.Init(context.Background())
		require.NoError(t, err)
		assert.Zero(t, f.scheduler.last(t).delay)
	})

	t.Run("failure ends the session", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.Save(Persisted{
			Token: newToken(t, "alice", testNow.Add(time.Minute), "refresh-1"),
		}))
		_, err := f.session.Init(context.Background())
		require.NoError(t, err)

		f.provider.refreshErr = errors.New("session expired at provider")
		f.scheduler.last(t).fn()

		assert.False(t, f.session.IsAuthenticated())
		_, err = f.session.Token()
		assert.ErrorIs(t, err, ErrNotAuthenticated)

		persisted, err := f.store.Load()
		require.NoError(t, err)
		assert.Nil(t, persisted.Token)
		assert.Len(t, f.provider.refreshCalls, 1, "no retry")
	})

	t.Run("stale timer after logout is ignored", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.Save(Persisted{
			Token: newToken(t, "alice", testNow.Add(time.Minute), "refresh-1"),
		}))
		_, err := f.session.Init(context.Background())
		require.NoError(t, err)

		timer := f.scheduler.last(t)
		f.session.Logout("")
		assert.True(t, timer.stopped)

		timer.fn()
		assert.Empty(t, f.provider.refreshCalls)
		assert.False(t, f.session.IsAuthenticated())
	})
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Save(Persisted{
		Token:   newToken(t, "alice", testNow.Add(time.Hour), "refresh-1"),
		IDToken: "id-alice",
	}))
	_, err := f.session.Init(context.Background())
	require.NoError(t, err)

	logoutURL := f.session.Logout("http://localhost:5173/")

	parsed, err := url.Parse(logoutURL)
	require.NoError(t, err)
	assert.Equal(t, "id-alice", parsed.Query().Get("id_token_hint"))
	assert.Equal(t, "http://localhost:5173/", parsed.Query().Get("post_logout_redirect_uri"))

	assert.False(t, f.session.IsAuthenticated())
	persisted, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, Persisted{}, persisted)
}

func TestNew_NilProviderPanics(t *testing.T) {
	assert.Panics(t, func() { New(nil, nil, nil) })
}
