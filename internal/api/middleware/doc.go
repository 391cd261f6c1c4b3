// Package middleware contains the HTTP middleware shared by every API route:
// trace IDs with request-scoped loggers, request logging, and bearer token
// identity extraction.
package middleware
