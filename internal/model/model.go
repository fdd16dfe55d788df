// Package model defines domain entities used by services, repositories, and the client.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Task is a single to-do item owned by exactly one user. The json tags are the
// wire contract: the HTTP layer and the client marshal this struct directly.
type Task struct {
	ID          uuid.UUID `json:"id"`          // assigned by the store on insert (UUIDv7, time-ordered)
	OwnerID     string    `json:"ownerId"`     // verified caller subject at creation; immutable
	Title       string    `json:"title"`       // 1..200 runes after trimming
	Description *string   `json:"description"` // nil marshals as null; <=1000 runes after trimming
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"` // refreshed on every successful mutation
}

// Identity is the verified caller extracted from a bearer credential for the
// lifetime of one request. Never persisted.
type Identity struct {
	Subject   string
	ExpiresAt time.Time
}

// StatusFilter narrows task listings by completion state.
type StatusFilter string

const (
	StatusAll       StatusFilter = "all"
	StatusPending   StatusFilter = "pending"
	StatusCompleted StatusFilter = "completed"
)

// ParseStatusFilter maps a query value to a filter. Empty and unrecognized
// values mean no filtering; the list endpoint has no rejection path for them.
func ParseStatusFilter(s string) StatusFilter {
	switch StatusFilter(s) {
	case StatusPending:
		return StatusPending
	case StatusCompleted:
		return StatusCompleted
	default:
		return StatusAll
	}
}

// TaskDraft is the input for creating a task. Description nil means none.
type TaskDraft struct {
	Title       string
	Description *string
}

// TaskPatch is a partial update. A nil pointer leaves the field untouched;
// a pointer to an empty (post-trim) description clears it to null.
type TaskPatch struct {
	Title       *string
	Description *string
}

// Empty reports whether the patch would change nothing.
func (p TaskPatch) Empty() bool { return p.Title == nil && p.Description == nil }
