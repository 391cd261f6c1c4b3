package api

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/sessions"
	"golang.org/x/crypto/hkdf"
)

// loginSessionName is the cookie holding the pending login's state and PKCE verifier.
const loginSessionName = "taskflow_login"

// loginSessionMaxAge bounds how long a user may take at the provider's login page.
const loginSessionMaxAge = 10 * 60

// Keys stored in the login session.
const (
	sessionKeyState    = "state"
	sessionKeyVerifier = "verifier"
)

// NewCookieStore creates the signed and encrypted cookie store for pending
// logins. The hash and block keys are derived from secret with HKDF-SHA256.
func NewCookieStore(secret string, secure bool) (*sessions.CookieStore, error) {
	if secret == "" {
		return nil, errors.New("session secret cannot be empty")
	}

	hashKey, blockKey, err := deriveCookieKeys(secret)
	if err != nil {
		return nil, err
	}

	store := sessions.NewCookieStore(hashKey, blockKey)
	store.Options = &sessions.Options{
		Path:     "/api/auth",
		MaxAge:   loginSessionMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store, nil
}

func deriveCookieKeys(secret string) ([]byte, []byte, error) {
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("taskflow login session v1"))

	hashKey := make([]byte, 64)
	blockKey := make([]byte, 32)
	if _, err := io.ReadFull(kdf, hashKey); err != nil {
		return nil, nil, fmt.Errorf("failed to derive cookie hash key: %w", err)
	}
	if _, err := io.ReadFull(kdf, blockKey); err != nil {
		return nil, nil, fmt.Errorf("failed to derive cookie block key: %w", err)
	}
	return hashKey, blockKey, nil
}
