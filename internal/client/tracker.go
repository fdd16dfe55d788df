package client

import (
	"context"
	"errors"
	"sync"

	"github.com/gofrs/uuid/v5"

	"github.com/taskhive/taskhive/internal/errs"
	"github.com/taskhive/taskhive/internal/model"
)

// ErrMutationInFlight is returned when a task already has an unsettled
// mutation and a second one is requested.
var ErrMutationInFlight = errors.New("mutation already in flight for this task")

// API is the slice of Client the tracker drives. Keeping it an interface
// lets tests substitute a scripted fake.
type API interface {
	List(ctx context.Context, ownerID string, filter model.StatusFilter) ([]model.Task, error)
	Create(ctx context.Context, ownerID string, draft model.TaskDraft) (*model.Task, error)
	Update(ctx context.Context, ownerID string, id uuid.UUID, patch model.TaskPatch) (*model.Task, error)
	Delete(ctx context.Context, ownerID string, id uuid.UUID) error
	ToggleComplete(ctx context.Context, ownerID string, id uuid.UUID) (*model.Task, error)
}

// Tracker mirrors one owner's task list and runs mutations against the API
// with at most one in flight per task.
//
// Toggle is optimistic: the local copy flips before the request is sent, a
// success replaces it with the server's task verbatim, and a failure
// restores the remembered pre-flip value. Create, Update and Delete apply
// to the mirror only after the server confirms.
type Tracker struct {
	api     API
	ownerID string

	mu      sync.Mutex
	tasks   map[uuid.UUID]model.Task
	order   []uuid.UUID
	pending map[uuid.UUID]bool
}

// NewTracker builds an empty tracker for one owner. Call Refresh to load
// the mirror before rendering.
func NewTracker(api API, ownerID string) *Tracker {
	return &Tracker{
		api:     api,
		ownerID: ownerID,
		tasks:   make(map[uuid.UUID]model.Task),
		pending: make(map[uuid.UUID]bool),
	}
}

// Refresh replaces the mirror with the server's full list. Mutations still
// in flight reconcile on top of the refreshed view when they settle.
func (t *Tracker) Refresh(ctx context.Context) error {
	got, err := t.api.List(ctx, t.ownerID, model.StatusAll)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.tasks = make(map[uuid.UUID]model.Task, len(got))
	t.order = make([]uuid.UUID, 0, len(got))
	for _, task := range got {
		t.tasks[task.ID] = task
		t.order = append(t.order, task.ID)
	}
	return nil
}

// Toggle flips the task's completion flag optimistically. The mirror
// changes immediately; the lock is not held across the network call.
func (t *Tracker) Toggle(ctx context.Context, id uuid.UUID) (model.Task, error) {
	t.mu.Lock()
	prev, ok := t.tasks[id]
	if !ok {
		t.mu.Unlock()
		return model.Task{}, errs.ErrNotFound
	}
	if t.pending[id] {
		t.mu.Unlock()
		return model.Task{}, ErrMutationInFlight
	}
	t.pending[id] = true
	flipped := prev
	flipped.Completed = !prev.Completed
	t.tasks[id] = flipped
	t.mu.Unlock()

	got, err := t.api.ToggleComplete(ctx, t.ownerID, id)

	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, id)
	if err != nil {
		if _, still := t.tasks[id]; still {
			t.tasks[id] = prev
		}
		return model.Task{}, err
	}
	t.tasks[id] = *got
	return *got, nil
}

// Create stores a new task and, on success, prepends it to the mirror.
func (t *Tracker) Create(ctx context.Context, draft model.TaskDraft) (model.Task, error) {
	got, err := t.api.Create(ctx, t.ownerID, draft)
	if err != nil {
		return model.Task{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.tasks[got.ID] = *got
	t.order = append([]uuid.UUID{got.ID}, t.order...)
	return *got, nil
}

// Update applies a partial change. The mirror keeps the old value until the
// server confirms.
func (t *Tracker) Update(ctx context.Context, id uuid.UUID, patch model.TaskPatch) (model.Task, error) {
	if err := t.begin(id); err != nil {
		return model.Task{}, err
	}

	got, err := t.api.Update(ctx, t.ownerID, id, patch)

	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, id)
	if err != nil {
		return model.Task{}, err
	}
	if _, ok := t.tasks[id]; ok {
		t.tasks[id] = *got
	}
	return *got, nil
}

// Delete removes the task server-side first, then drops it from the mirror.
func (t *Tracker) Delete(ctx context.Context, id uuid.UUID) error {
	if err := t.begin(id); err != nil {
		return err
	}

	err := t.api.Delete(ctx, t.ownerID, id)

	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, id)
	if err != nil {
		return err
	}
	delete(t.tasks, id)
	for i, oid := range t.order {
		if oid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}

// Task returns the mirrored copy of one task.
func (t *Tracker) Task(id uuid.UUID) (model.Task, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.tasks[id]
	return task, ok
}

// Tasks returns the mirror in server list order.
func (t *Tracker) Tasks() []model.Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.Task, 0, len(t.order))
	for _, id := range t.order {
		if task, ok := t.tasks[id]; ok {
			out = append(out, task)
		}
	}
	return out
}

// Busy reports whether the task has a mutation in flight.
func (t *Tracker) Busy(id uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending[id]
}

// begin marks the task pending, rejecting a second concurrent mutation.
func (t *Tracker) begin(id uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.tasks[id]; !ok {
		return errs.ErrNotFound
	}
	if t.pending[id] {
		return ErrMutationInFlight
	}
	t.pending[id] = true
	return nil
}
