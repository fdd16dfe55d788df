package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/taskhive/taskhive/internal/errs"
	"github.com/taskhive/taskhive/internal/model"
)

// TaskRepo implements TaskRepository using PostgreSQL.
type TaskRepo struct{ db *DB }

// NewTaskRepo constructs a task repository.
func NewTaskRepo(db *DB) *TaskRepo { return &TaskRepo{db: db} }

// Create inserts a task with a fresh UUIDv7 id. V7 ids are time-ordered, so
// the (created_at, id) sort used by List keeps same-timestamp rows in
// insertion order.
func (r *TaskRepo) Create(ctx context.Context, ownerID string, draft model.TaskDraft) (*model.Task, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("new task id: %w", err)
	}
	const q = `
INSERT INTO tasks (id, owner_id, title, description, completed)
VALUES ($1, $2, $3, $4, false)
RETURNING created_at, updated_at`
	t := model.Task{ID: id, OwnerID: ownerID, Title: draft.Title, Description: draft.Description}
	if err := r.db.Pool.QueryRow(ctx, q, id, ownerID, draft.Title, draft.Description).
		Scan(&t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns the owner's tasks, newest created first with id as tie-break.
func (r *TaskRepo) List(ctx context.Context, ownerID string, filter model.StatusFilter) ([]model.Task, error) {
	const (
		listAll = `
SELECT id, owner_id, title, description, completed, created_at, updated_at
FROM tasks WHERE owner_id=$1
ORDER BY created_at DESC, id DESC`
		listPending = `
SELECT id, owner_id, title, description, completed, created_at, updated_at
FROM tasks WHERE owner_id=$1 AND completed=false
ORDER BY created_at DESC, id DESC`
		listCompleted = `
SELECT id, owner_id, title, description, completed, created_at, updated_at
FROM tasks WHERE owner_id=$1 AND completed=true
ORDER BY created_at DESC, id DESC`
	)

	q := listAll
	switch filter {
	case model.StatusPending:
		q = listPending
	case model.StatusCompleted:
		q = listCompleted
	}

	rows, err := r.db.Pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Task, 0)
	for rows.Next() {
		var t model.Task
		if err = rows.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Description, &t.Completed, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Get returns a single task by id.
func (r *TaskRepo) Get(ctx context.Context, ownerID string, id uuid.UUID) (*model.Task, error) {
	const q = `
SELECT id, owner_id, title, description, completed, created_at, updated_at
FROM tasks WHERE id=$1 AND owner_id=$2`
	var t model.Task
	err := r.db.Pool.QueryRow(ctx, q, id, ownerID).
		Scan(&t.ID, &t.OwnerID, &t.Title, &t.Description, &t.Completed, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Update applies the patch under a row lock so concurrent writers serialize.
func (r *TaskRepo) Update(
	ctx context.Context, ownerID string, id uuid.UUID, patch model.TaskPatch,
) (task *model.Task, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const sel = `
SELECT id, owner_id, title, description, completed, created_at, updated_at
FROM tasks WHERE id=$1 AND owner_id=$2 FOR UPDATE`
	const upd = `
UPDATE tasks SET title=$3, description=$4, updated_at=now()
WHERE id=$1 AND owner_id=$2
RETURNING updated_at`

	var t model.Task
	if err = tx.QueryRow(ctx, sel, id, ownerID).
		Scan(&t.ID, &t.OwnerID, &t.Title, &t.Description, &t.Completed, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		if *patch.Description == "" {
			t.Description = nil
		} else {
			d := *patch.Description
			t.Description = &d
		}
	}

	if err = tx.QueryRow(ctx, upd, id, ownerID, t.Title, t.Description).Scan(&t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// Delete removes the task row. A missing row (or another owner's row) is
// reported as not found.
func (r *TaskRepo) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	const q = `DELETE FROM tasks WHERE id=$1 AND owner_id=$2`
	ct, err := r.db.Pool.Exec(ctx, q, id, ownerID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ToggleComplete flips completed in a single statement. The implicit row lock
// serializes concurrent toggles, so each accepted write is one net flip of
// the committed value.
func (r *TaskRepo) ToggleComplete(ctx context.Context, ownerID string, id uuid.UUID) (*model.Task, error) {
	const q = `
UPDATE tasks SET completed = NOT completed, updated_at = now()
WHERE id=$1 AND owner_id=$2
RETURNING id, owner_id, title, description, completed, created_at, updated_at`
	var t model.Task
	err := r.db.Pool.QueryRow(ctx, q, id, ownerID).
		Scan(&t.ID, &t.OwnerID, &t.Title, &t.Description, &t.Completed, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}
