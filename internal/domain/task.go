package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priority ranks a task. The zero value is not a valid priority.
type Priority string

// Supported priorities.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// DefaultPriority is assigned when a task is created without one.
const DefaultPriority = PriorityMedium

// TimestampPrecision is the resolution task timestamps are stored at.
// Postgres keeps microseconds, so the in-memory representation matches it.
const TimestampPrecision = time.Microsecond

// Client-facing validation messages.
const (
	MsgTitleRequired   = "Title is required and must be a non-empty string"
	MsgTitleBlank      = "Title must be a non-empty string"
	MsgInvalidPriority = "Priority must be one of: low, medium, high"
)

// Valid reports whether p is one of the supported priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// Task is a single to-do item owned by exactly one identity.
type Task struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Completed   bool      `json:"completed"`
	Priority    Priority  `json:"priority"`
	UserID      string    `json:"userId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TaskUpdate carries the fields of a partial update. Nil fields keep
// their current value.
type TaskUpdate struct {
	Title       *string
	Description *string
	Completed   *bool
	Priority    *Priority
}

// NewTask creates a task owned by userID. The title and description are
// trimmed; an empty priority becomes DefaultPriority.
func NewTask(userID, title, description string, priority Priority, now time.Time) (*Task, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, NewValidationError("title", MsgTitleRequired, ErrEmptyTitle)
	}

	if priority == "" {
		priority = DefaultPriority
	}
	if err := ValidatePriority(priority); err != nil {
		return nil, err
	}

	ts := normalizeTime(now)
	return &Task{
		ID:          uuid.New(),
		Title:       title,
		Description: strings.TrimSpace(description),
		Completed:   false,
		Priority:    priority,
		UserID:      userID,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}, nil
}

// ValidatePriority returns a ValidationError unless p is a supported priority.
func ValidatePriority(p Priority) error {
	if !p.Valid() {
		return NewValidationError("priority", MsgInvalidPriority, ErrInvalidPriority)
	}
	return nil
}

// Validate checks the update without applying it.
func (u TaskUpdate) Validate() error {
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return NewValidationError("title", MsgTitleBlank, ErrEmptyTitle)
	}
	if u.Priority != nil {
		return ValidatePriority(*u.Priority)
	}
	return nil
}

// Validate checks that the task is internally consistent.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return NewValidationError("id", "ID is required", ErrValidation)
	}
	if t.UserID == "" {
		return ErrEmptyUserID
	}
	if strings.TrimSpace(t.Title) == "" {
		return NewValidationError("title", MsgTitleRequired, ErrEmptyTitle)
	}
	return ValidatePriority(t.Priority)
}

// Apply merges u into the task and bumps UpdatedAt. The task is left
// untouched when the update is invalid.
func (t *Task) Apply(u TaskUpdate, now time.Time) error {
	if err := u.Validate(); err != nil {
		return err
	}

	if u.Title != nil {
		t.Title = strings.TrimSpace(*u.Title)
	}
	if u.Description != nil {
		t.Description = strings.TrimSpace(*u.Description)
	}
	if u.Completed != nil {
		t.Completed = *u.Completed
	}
	if u.Priority != nil {
		t.Priority = *u.Priority
	}
	t.Touch(now)
	return nil
}

// Toggle flips the completion flag and bumps UpdatedAt.
func (t *Task) Toggle(now time.Time) {
	t.Completed = !t.Completed
	t.Touch(now)
}

// Touch sets UpdatedAt to now, or one tick past the previous value when the
// clock has not advanced, so UpdatedAt strictly increases on every mutation.
func (t *Task) Touch(now time.Time) {
	t.UpdatedAt = NextUpdatedAt(t.UpdatedAt, now)
}

// NextUpdatedAt returns the timestamp a mutation at now should record,
// given the previous UpdatedAt.
func NextUpdatedAt(prev, now time.Time) time.Time {
	ts := normalizeTime(now)
	if !ts.After(prev) {
		ts = prev.Add(TimestampPrecision)
	}
	return ts
}

// Clone returns a copy that shares no state with t.
func (t *Task) Clone() *Task {
	c := *t
	return &c
}

func normalizeTime(now time.Time) time.Time {
	return now.UTC().Truncate(TimestampPrecision)
}
