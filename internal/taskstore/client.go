package taskstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// API is the surface the rest of the system depends on. Tests substitute a
// recording fake.
type API interface {
	ListProjects(ctx context.Context) ([]Project, error)
	ListTasks(ctx context.Context, projectID string) ([]Task, error)
	GetTask(ctx context.Context, projectID, taskID string) (Task, error)
	CreateTask(ctx context.Context, payload map[string]any) (Task, error)
	UpdateTaskRaw(ctx context.Context, taskID string, payload map[string]any) (Task, error)
	CompleteTask(ctx context.Context, projectID, taskID string) error
	DeleteTask(ctx context.Context, projectID, taskID string) error
	CreateProject(ctx context.Context, name string) (Project, error)
	DeleteProject(ctx context.Context, projectID string) error
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote api: status %d: %s", e.Status, e.Body)
}

// Retryable reports whether the request may be retried.
func (e *APIError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

type Client struct {
	baseURL    string
	token      string
	hc         *http.Client
	lg         *slog.Logger
	maxRetries int
	backoff    time.Duration
}

type ClientOptions struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewClient(opts ClientOptions) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	lg := opts.Logger
	if lg == nil {
		lg = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.Token,
		hc:         &http.Client{Timeout: timeout},
		lg:         lg,
		maxRetries: 3,
		backoff:    500 * time.Millisecond,
	}
}

func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var out []Project
	if err := c.doJSON(ctx, http.MethodGet, "/project", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTasks returns the incomplete tasks of one project, newest first. The
// remote endpoint never returns completed tasks and caps the listing at
// MaxTasksPerProject entries.
func (c *Client) ListTasks(ctx context.Context, projectID string) ([]Task, error) {
	var data projectData
	if err := c.doJSON(ctx, http.MethodGet, "/project/"+projectID+"/data", nil, &data); err != nil {
		return nil, err
	}
	tasks := make([]Task, 0, len(data.Tasks))
	for _, t := range data.Tasks {
		if t.Status != StatusIncomplete {
			continue
		}
		tasks = append(tasks, t)
	}
	SortNewestFirst(tasks)
	if len(tasks) > MaxTasksPerProject {
		tasks = tasks[:MaxTasksPerProject]
	}
	return tasks, nil
}

func (c *Client) GetTask(ctx context.Context, projectID, taskID string) (Task, error) {
	var out Task
	err := c.doJSON(ctx, http.MethodGet, "/project/"+projectID+"/task/"+taskID, nil, &out)
	return out, err
}

func (c *Client) CreateTask(ctx context.Context, payload map[string]any) (Task, error) {
	var out Task
	err := c.doJSON(ctx, http.MethodPost, "/task", payload, &out)
	return out, err
}

// UpdateTaskRaw sends one merged payload for the task. Keys with nil values
// are serialized as explicit JSON nulls, which is how date fields are
// cleared remotely.
func (c *Client) UpdateTaskRaw(ctx context.Context, taskID string, payload map[string]any) (Task, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["id"] = taskID
	var out Task
	err := c.doJSON(ctx, http.MethodPost, "/task/"+taskID, payload, &out)
	return out, err
}

func (c *Client) CompleteTask(ctx context.Context, projectID, taskID string) error {
	return c.doJSON(ctx, http.MethodPost, "/project/"+projectID+"/task/"+taskID+"/complete", nil, nil)
}

func (c *Client) DeleteTask(ctx context.Context, projectID, taskID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/project/"+projectID+"/task/"+taskID, nil, nil)
}

func (c *Client) CreateProject(ctx context.Context, name string) (Project, error) {
	var out Project
	err := c.doJSON(ctx, http.MethodPost, "/project", map[string]any{"name": name}, &out)
	return out, err
}

func (c *Client) DeleteProject(ctx context.Context, projectID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/project/"+projectID, nil, nil)
}

// doJSON performs one API call with retry on throttling and server errors.
// An empty 2xx body counts as success even when out is non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, payload map[string]any, out any) error {
	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = b
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			c.lg.Warn("retrying remote call", "method", method, "path", path, "attempt", attempt)
		}

		err := c.doOnce(ctx, method, path, body, out)
		if err == nil {
			return nil
		}
		lastErr = err

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.Retryable() {
			return err
		}
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	return json.Unmarshal(respBody, out)
}
