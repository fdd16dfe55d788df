// Package service contains business logic between transport and storage.
package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gofrs/uuid/v5"

	"github.com/taskhive/taskhive/internal/errs"
	"github.com/taskhive/taskhive/internal/model"
	"github.com/taskhive/taskhive/internal/repository"
)

const (
	maxTitleChars       = 200
	maxDescriptionChars = 1000
)

// TaskService defines operations over a single owner's tasks. The ownerID on
// every call is the already-authorized path owner; storage scopes all queries
// by it again.
type TaskService interface {
	// List returns the owner's tasks matching the filter, newest first.
	List(ctx context.Context, ownerID string, filter model.StatusFilter) ([]model.Task, error)
	// Create validates the draft and stores a new incomplete task.
	Create(ctx context.Context, ownerID string, draft model.TaskDraft) (*model.Task, error)
	// Get returns a single task by id.
	Get(ctx context.Context, ownerID string, id uuid.UUID) (*model.Task, error)
	// Update applies the provided fields; absent fields stay untouched.
	Update(ctx context.Context, ownerID string, id uuid.UUID, patch model.TaskPatch) (*model.Task, error)
	// Delete removes the task permanently.
	Delete(ctx context.Context, ownerID string, id uuid.UUID) error
	// ToggleComplete flips the persisted completion flag.
	ToggleComplete(ctx context.Context, ownerID string, id uuid.UUID) (*model.Task, error)
}

type TaskServiceImpl struct {
	repo repository.TaskRepository
}

// NewTaskService constructs TaskService over the given repository.
func NewTaskService(repo repository.TaskRepository) *TaskServiceImpl {
	return &TaskServiceImpl{repo: repo}
}

// List returns tasks for the owner. Unknown filter values were already
// normalized to "all" during parsing.
func (s *TaskServiceImpl) List(ctx context.Context, ownerID string, filter model.StatusFilter) ([]model.Task, error) {
	if ownerID == "" {
		return nil, errs.NewValidation("ownerId", "ownerId cannot be empty")
	}
	return s.repo.List(ctx, ownerID, filter)
}

// Create validates and normalizes the draft, then stores it.
// Validation rules:
// - title required, 1..200 characters after trimming
// - description optional, at most 1000 characters after trimming; empty
//   becomes null
func (s *TaskServiceImpl) Create(ctx context.Context, ownerID string, draft model.TaskDraft) (*model.Task, error) {
	if ownerID == "" {
		return nil, errs.NewValidation("ownerId", "ownerId cannot be empty")
	}
	if err := normalizeDraft(&draft); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, ownerID, draft)
}

// Get fetches a single task by id.
func (s *TaskServiceImpl) Get(ctx context.Context, ownerID string, id uuid.UUID) (*model.Task, error) {
	if ownerID == "" || id.IsNil() {
		return nil, errs.NewValidation("id", "empty ownerId or task id")
	}
	return s.repo.Get(ctx, ownerID, id)
}

// Update validates present fields and applies them atomically. An empty patch
// still refreshes updated_at, matching the storage write path.
func (s *TaskServiceImpl) Update(ctx context.Context, ownerID string, id uuid.UUID, patch model.TaskPatch) (*model.Task, error) {
	if ownerID == "" || id.IsNil() {
		return nil, errs.NewValidation("id", "empty ownerId or task id")
	}
	if err := normalizePatch(&patch); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, ownerID, id, patch)
}

// Delete removes the task permanently.
func (s *TaskServiceImpl) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	if ownerID == "" || id.IsNil() {
		return errs.NewValidation("id", "empty ownerId or task id")
	}
	return s.repo.Delete(ctx, ownerID, id)
}

// ToggleComplete flips the persisted flag; the new value depends only on the
// committed state, never on what the caller believes it is.
func (s *TaskServiceImpl) ToggleComplete(ctx context.Context, ownerID string, id uuid.UUID) (*model.Task, error) {
	if ownerID == "" || id.IsNil() {
		return nil, errs.NewValidation("id", "empty ownerId or task id")
	}
	return s.repo.ToggleComplete(ctx, ownerID, id)
}

// normalizeDraft trims fields in place and collects violations.
func normalizeDraft(d *model.TaskDraft) error {
	v := &errs.ValidationError{}

	d.Title = strings.TrimSpace(d.Title)
	switch {
	case d.Title == "":
		v.Add("title", "title cannot be empty or whitespace only")
	case utf8.RuneCountInString(d.Title) > maxTitleChars:
		v.Add("title", fmt.Sprintf("title must be at most %d characters", maxTitleChars))
	}

	if d.Description != nil {
		desc := strings.TrimSpace(*d.Description)
		switch {
		case desc == "":
			d.Description = nil
		case utf8.RuneCountInString(desc) > maxDescriptionChars:
			v.Add("description", fmt.Sprintf("description must be at most %d characters", maxDescriptionChars))
		default:
			d.Description = &desc
		}
	}

	if !v.Empty() {
		return v
	}
	return nil
}

// normalizePatch trims present fields in place. A present description that
// trims to empty stays as an empty string; storage writes it as null.
func normalizePatch(p *model.TaskPatch) error {
	v := &errs.ValidationError{}

	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		switch {
		case title == "":
			v.Add("title", "title cannot be empty or whitespace only")
		case utf8.RuneCountInString(title) > maxTitleChars:
			v.Add("title", fmt.Sprintf("title must be at most %d characters", maxTitleChars))
		default:
			p.Title = &title
		}
	}

	if p.Description != nil {
		desc := strings.TrimSpace(*p.Description)
		if utf8.RuneCountInString(desc) > maxDescriptionChars {
			v.Add("description", fmt.Sprintf("description must be at most %d characters", maxDescriptionChars))
		} else {
			p.Description = &desc
		}
	}

	if !v.Empty() {
		return v
	}
	return nil
}
