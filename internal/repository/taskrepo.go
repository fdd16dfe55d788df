package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/taskhive/taskhive/internal/model"
)

// TaskRepository provides owner-scoped access to persisted tasks. Every
// operation takes the owner alongside the task id; an id belonging to a
// different owner behaves exactly like a missing row.
type TaskRepository interface {
	// Create inserts a new task for the owner and returns it with
	// store-assigned id and timestamps.
	Create(ctx context.Context, ownerID string, draft model.TaskDraft) (*model.Task, error)

	// List returns the owner's tasks matching the filter, newest first.
	List(ctx context.Context, ownerID string, filter model.StatusFilter) ([]model.Task, error)

	// Get returns a single task by id.
	Get(ctx context.Context, ownerID string, id uuid.UUID) (*model.Task, error)

	// Update applies a partial patch atomically and returns the new state.
	Update(ctx context.Context, ownerID string, id uuid.UUID, patch model.TaskPatch) (*model.Task, error)

	// Delete removes the task permanently.
	Delete(ctx context.Context, ownerID string, id uuid.UUID) error

	// ToggleComplete flips the persisted completion flag and returns the
	// new state.
	ToggleComplete(ctx context.Context, ownerID string, id uuid.UUID) (*model.Task, error)
}
