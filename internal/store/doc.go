// Package store defines the persistence contract for tasks. Implementations
// live under internal/platform (an in-memory map and a PostgreSQL table), so
// services can swap the backend without touching call sites.
package store
