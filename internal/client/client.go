// Package client is a typed consumer of the TaskHive REST API, plus a
// tracker that applies the optimistic mutation protocol interactive
// frontends use.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/taskhive/taskhive/internal/errs"
	"github.com/taskhive/taskhive/internal/model"
)

// APIError is a decoded non-2xx response.
type APIError struct {
	Status int
	Detail string
	Fields []errs.FieldError
}

func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			parts = append(parts, f.Field+": "+f.Message)
		}
		return fmt.Sprintf("api error %d: %s (%s)", e.Status, e.Detail, strings.Join(parts, "; "))
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Detail)
}

// Unwrap maps the HTTP status onto the shared sentinels so callers can use
// errors.Is/As exactly as they would against the service layer.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return errs.ErrUnauthenticated
	case http.StatusForbidden:
		return errs.ErrForbidden
	case http.StatusNotFound:
		return errs.ErrNotFound
	case http.StatusUnprocessableEntity:
		return &errs.ValidationError{Fields: e.Fields}
	}
	return nil
}

// Client calls the task API on behalf of one bearer token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option tweaks a Client under construction.
type Option func(*Client)

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New builds a Client for the given server base URL and bearer token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type createPayload struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
}

// updatePayload omits absent fields entirely; the server treats a missing
// key as "leave untouched" and an empty description as "clear".
type updatePayload struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// List fetches the owner's tasks, optionally narrowed by filter.
func (c *Client) List(ctx context.Context, ownerID string, filter model.StatusFilter) ([]model.Task, error) {
	p := c.tasksPath(ownerID)
	if filter == model.StatusPending || filter == model.StatusCompleted {
		p += "?status=" + url.QueryEscape(string(filter))
	}
	var out []model.Task
	if err := c.do(ctx, http.MethodGet, p, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create stores a new task and returns the server's copy.
func (c *Client) Create(ctx context.Context, ownerID string, draft model.TaskDraft) (*model.Task, error) {
	var out model.Task
	body := createPayload{Title: draft.Title, Description: draft.Description}
	if err := c.do(ctx, http.MethodPost, c.tasksPath(ownerID), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get fetches a single task by id.
func (c *Client) Get(ctx context.Context, ownerID string, id uuid.UUID) (*model.Task, error) {
	var out model.Task
	if err := c.do(ctx, http.MethodGet, c.taskPath(ownerID, id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update applies a partial change and returns the new server state.
func (c *Client) Update(ctx context.Context, ownerID string, id uuid.UUID, patch model.TaskPatch) (*model.Task, error) {
	var out model.Task
	body := updatePayload{Title: patch.Title, Description: patch.Description}
	if err := c.do(ctx, http.MethodPut, c.taskPath(ownerID, id), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a task permanently.
func (c *Client) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, c.taskPath(ownerID, id), nil, nil)
}

// ToggleComplete flips the task's completion flag server-side.
func (c *Client) ToggleComplete(ctx context.Context, ownerID string, id uuid.UUID) (*model.Task, error) {
	var out model.Task
	if err := c.do(ctx, http.MethodPatch, c.taskPath(ownerID, id)+"/complete", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) tasksPath(ownerID string) string {
	return "/api/" + url.PathEscape(ownerID) + "/tasks"
}

func (c *Client) taskPath(ownerID string, id uuid.UUID) string {
	return c.tasksPath(ownerID) + "/" + id.String()
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Detail: http.StatusText(resp.StatusCode)}
	var payload struct {
		Detail string            `json:"detail"`
		Errors []errs.FieldError `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Detail != "" {
		apiErr.Detail = payload.Detail
		apiErr.Fields = payload.Errors
	}
	return apiErr
}
