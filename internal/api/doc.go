// Package api handles incoming HTTP requests, request validation and response
// formatting. It acts as an adapter between HTTP clients and the task service,
// and also serves the login, identity and system endpoints the client needs.
package api
