// Package keycloak is an OAuth2/OIDC client for a Keycloak realm. It covers
// the authorization-code flow with PKCE, refresh, and RP-initiated logout.
package keycloak

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/phrazzld/taskflow/internal/config"
	"golang.org/x/oauth2"
)

// Errors returned by Client.
var (
	ErrExchangeFailed = errors.New("authorization code exchange failed")
	ErrRefreshFailed  = errors.New("token refresh failed")
)

// DefaultScopes are requested on every login.
var DefaultScopes = []string{"openid", "profile", "email"}

// Client talks to the realm's OpenID Connect endpoints.
type Client struct {
	oauth      oauth2.Config
	logoutURL  string
	clientID   string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for token requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRedirectURL overrides the configured redirect URL.
func WithRedirectURL(redirectURL string) Option {
	return func(c *Client) {
		c.oauth.RedirectURL = redirectURL
	}
}

// New creates a client for the realm described by cfg.
func New(cfg config.KeycloakConfig, opts ...Option) *Client {
	c := &Client{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       DefaultScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  EndpointURL(cfg.URL, cfg.Realm, "auth"),
				TokenURL: EndpointURL(cfg.URL, cfg.Realm, "token"),
				// Public clients must send client_id in the form body.
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		logoutURL: EndpointURL(cfg.URL, cfg.Realm, "logout"),
		clientID:  cfg.ClientID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EndpointURL returns {baseURL}/realms/{realm}/protocol/openid-connect/{endpoint}.
func EndpointURL(baseURL, realm, endpoint string) string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/%s",
		strings.TrimRight(baseURL, "/"), url.PathEscape(realm), endpoint)
}

// AuthCodeURL returns the URL that starts a login with the S256 challenge
// derived from verifier.
func (c *Client) AuthCodeURL(state, verifier string) string {
	return c.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// Exchange trades an authorization code for tokens.
func (c *Client) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	tok, err := c.oauth.Exchange(c.context(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExchangeFailed, err)
	}
	return tok, nil
}

// Refresh obtains a new token using refreshToken. The provider may rotate
// the refresh token; when it does not, the old one is carried over.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token", ErrRefreshFailed)
	}

	src := c.oauth.TokenSource(c.context(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	return tok, nil
}

// LogoutURL returns the end-session URL. Empty arguments are omitted.
func (c *Client) LogoutURL(idTokenHint, redirectURL string) string {
	q := url.Values{}
	q.Set("client_id", c.clientID)
	if idTokenHint != "" {
		q.Set("id_token_hint", idTokenHint)
	}
	if redirectURL != "" {
		q.Set("post_logout_redirect_uri", redirectURL)
	}
	return c.logoutURL + "?" + q.Encode()
}

func (c *Client) context(ctx context.Context) context.Context {
	if c.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// IDToken returns the id_token returned alongside tok, if any.
func IDToken(tok *oauth2.Token) string {
	if tok == nil {
		return ""
	}
	idToken, _ := tok.Extra("id_token").(string)
	return idToken
}
