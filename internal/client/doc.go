// Package client is a Go client for the TaskFlow task API. A TaskClient
// authenticates every call with a token from an oauth2.TokenSource, keeps
// a local copy of the last listing, and refreshes that copy after every
// successful mutation.
package client
