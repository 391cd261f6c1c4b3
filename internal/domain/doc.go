// Package domain contains the core business entities of TaskFlow: tasks,
// their priorities and the validation rules shared by every layer that
// creates or mutates them. It has no knowledge of HTTP or storage.
package domain
