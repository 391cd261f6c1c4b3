// Package service implements the task use cases on top of store.TaskStore.
// Every operation is scoped to the calling user, and all validation runs
// before the store is touched.
package service
