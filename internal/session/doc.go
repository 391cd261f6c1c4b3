// Package session holds the signed-in identity of a TaskFlow client: the
// current OAuth2 token, the user derived from it, and the timer that
// refreshes the token before it expires.
//
// A Session is an oauth2.TokenSource, so it can be handed directly to the
// task API client. Tokens and in-flight logins are persisted through a
// TokenStore so a restarted process can resume without a new login.
package session
