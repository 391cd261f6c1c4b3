// Package postgres provides the PostgreSQL implementation of
// store.TaskStore together with the embedded goose migrations that create
// its schema. Driver errors are translated to the store package's
// sentinel errors by MapError.
package postgres
