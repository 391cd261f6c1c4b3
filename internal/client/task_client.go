package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow/internal/domain"
	"github.com/phrazzld/taskflow/internal/platform/logger"
	"github.com/phrazzld/taskflow/internal/redact"
	"golang.org/x/oauth2"
)

// DefaultTimeout bounds each HTTP request made by a TaskClient.
const DefaultTimeout = 15 * time.Second

// MsgAuthenticationRequired is recorded when no token is available.
const MsgAuthenticationRequired = "Authentication required"

// Generic messages recorded when the backend sends no error message.
const (
	MsgListFailed            = "Failed to fetch tasks"
	MsgCreateFailed          = "Failed to create task"
	MsgUpdateFailed          = "Failed to update task"
	MsgToggleFailed          = "Failed to toggle task"
	MsgDeleteFailed          = "Failed to delete task"
	MsgDeleteCompletedFailed = "Failed to delete completed tasks"
)

// ErrAuthenticationRequired is returned, before any request is sent, when
// the token source has no token.
var ErrAuthenticationRequired = errors.New("authentication required")

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// Filter narrows List. Nil or empty fields do not filter.
type Filter struct {
	Completed *bool
	Priority  domain.Priority
}

// query encodes f as URL query parameters.
func (f Filter) query() url.Values {
	q := url.Values{}
	if f.Completed != nil {
		q.Set("completed", strconv.FormatBool(*f.Completed))
	}
	if f.Priority != "" {
		q.Set("priority", string(f.Priority))
	}
	return q
}

// TaskInput is the body of a create request.
type TaskInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Priority    domain.Priority `json:"priority,omitempty"`
}

// TaskChanges is the body of an update request. Nil fields are left as
// they are on the server.
type TaskChanges struct {
	Title       *string          `json:"title,omitempty"`
	Description *string          `json:"description,omitempty"`
	Completed   *bool            `json:"completed,omitempty"`
	Priority    *domain.Priority `json:"priority,omitempty"`
}

type deleteTaskResponse struct {
	Message string       `json:"message"`
	Task    *domain.Task `json:"task"`
}

type deleteCompletedResponse struct {
	Message      string `json:"message"`
	DeletedCount int    `json:"deletedCount"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// TaskClient calls the task API on behalf of the identity behind its
// token source. It is safe for concurrent use.
type TaskClient struct {
	baseURL    string
	httpClient *http.Client
	tokens     oauth2.TokenSource
	logger     *slog.Logger

	mu      sync.Mutex
	tasks   []*domain.Task
	loading bool
	errMsg  string
	filter  Filter
}

// Option configures a TaskClient.
type Option func(*TaskClient)

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *TaskClient) {
		c.httpClient = hc
	}
}

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *TaskClient) {
		c.logger = l
	}
}

// New creates a client for the API rooted at baseURL, for example
// "http://localhost:3001/api".
func New(baseURL string, tokens oauth2.TokenSource, opts ...Option) *TaskClient {
	c := &TaskClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		tokens:     tokens,
		logger:     slog.Default(),
		tasks:      []*domain.Task{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "task_client"))
	return c
}

// Tasks returns the tasks from the most recent successful listing.
func (c *TaskClient) Tasks() []*domain.Task {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*domain.Task, len(c.tasks))
	for i, task := range c.tasks {
		out[i] = task.Clone()
	}
	return out
}

// Loading reports whether a call is in progress.
func (c *TaskClient) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Err returns the message recorded by the last failed call, or "" if the
// last call succeeded.
func (c *TaskClient) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// Filter returns the filter used for listings.
func (c *TaskClient) Filter() Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// SetFilter changes the filter used by later listings, including the
// listings that follow mutations.
func (c *TaskClient) SetFilter(f Filter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = f
}

// List fetches the caller's tasks matching filter and makes filter the
// current filter.
func (c *TaskClient) List(ctx context.Context, filter Filter) ([]*domain.Task, error) {
	c.SetFilter(filter)
	c.begin()
	defer c.end()

	tasks, err := c.list(ctx, filter)
	if err != nil {
		return nil, c.fail(ctx, err, MsgListFailed)
	}
	return tasks, nil
}

// Create adds a task and refreshes the listing.
func (c *TaskClient) Create(ctx context.Context, input TaskInput) (*domain.Task, error) {
	c.begin()
	defer c.end()

	var created domain.Task
	if err := c.do(ctx, http.MethodPost, "/tasks", input, &created); err != nil {
		return nil, c.fail(ctx, err, MsgCreateFailed)
	}
	if err := c.resync(ctx); err != nil {
		return &created, err
	}
	return &created, nil
}

// Update changes the given fields of a task and refreshes the listing.
func (c *TaskClient) Update(ctx context.Context, id uuid.UUID, changes TaskChanges) (*domain.Task, error) {
	c.begin()
	defer c.end()

	var updated domain.Task
	if err := c.do(ctx, http.MethodPut, taskPath(id), changes, &updated); err != nil {
		return nil, c.fail(ctx, err, MsgUpdateFailed)
	}
	if err := c.resync(ctx); err != nil {
		return &updated, err
	}
	return &updated, nil
}

// Toggle flips a task's completion and refreshes the listing.
func (c *TaskClient) Toggle(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	c.begin()
	defer c.end()

	var toggled domain.Task
	if err := c.do(ctx, http.MethodPatch, taskPath(id)+"/toggle", nil, &toggled); err != nil {
		return nil, c.fail(ctx, err, MsgToggleFailed)
	}
	if err := c.resync(ctx); err != nil {
		return &toggled, err
	}
	return &toggled, nil
}

// Delete removes a task and refreshes the listing. It returns the removed
// task.
func (c *TaskClient) Delete(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	c.begin()
	defer c.end()

	var resp deleteTaskResponse
	if err := c.do(ctx, http.MethodDelete, taskPath(id), nil, &resp); err != nil {
		return nil, c.fail(ctx, err, MsgDeleteFailed)
	}
	if err := c.resync(ctx); err != nil {
		return resp.Task, err
	}
	return resp.Task, nil
}

// DeleteCompleted removes all of the caller's completed tasks and refreshes
// the listing. It returns how many were removed.
func (c *TaskClient) DeleteCompleted(ctx context.Context) (int, error) {
	c.begin()
	defer c.end()

	var resp deleteCompletedResponse
	if err := c.do(ctx, http.MethodDelete, "/tasks", nil, &resp); err != nil {
		return 0, c.fail(ctx, err, MsgDeleteCompletedFailed)
	}
	if err := c.resync(ctx); err != nil {
		return resp.DeletedCount, err
	}
	return resp.DeletedCount, nil
}

// resync re-lists with the current filter after a successful mutation.
func (c *TaskClient) resync(ctx context.Context) error {
	if _, err := c.list(ctx, c.Filter()); err != nil {
		return c.fail(ctx, err, MsgListFailed)
	}
	return nil
}

func (c *TaskClient) list(ctx context.Context, filter Filter) ([]*domain.Task, error) {
	path := "/tasks"
	if q := filter.query(); len(q) > 0 {
		path += "?" + q.Encode()
	}

	var tasks []*domain.Task
	if err := c.do(ctx, http.MethodGet, path, nil, &tasks); err != nil {
		if errors.Is(err, ErrAuthenticationRequired) {
			c.setTasks(nil)
		}
		return nil, err
	}
	c.setTasks(tasks)
	return tasks, nil
}

// do sends one authenticated request and decodes a 2xx body into out.
func (c *TaskClient) do(ctx context.Context, method, path string, body, out any) error {
	tok, err := c.token()
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	tok.SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errBody errorResponse
		if json.NewDecoder(resp.Body).Decode(&errBody) == nil {
			apiErr.Message = errBody.Error
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *TaskClient) token() (*oauth2.Token, error) {
	if c.tokens == nil {
		return nil, ErrAuthenticationRequired
	}
	tok, err := c.tokens.Token()
	if err != nil || tok == nil || tok.AccessToken == "" {
		return nil, ErrAuthenticationRequired
	}
	return tok, nil
}

// begin marks the start of a call, clearing the previous error.
func (c *TaskClient) begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = true
	c.errMsg = ""
}

func (c *TaskClient) end() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
}

// fail records a human-readable message for err and returns err.
func (c *TaskClient) fail(ctx context.Context, err error, fallback string) error {
	msg := fallback
	var apiErr *APIError
	switch {
	case errors.Is(err, ErrAuthenticationRequired):
		msg = MsgAuthenticationRequired
	case errors.As(err, &apiErr) && apiErr.Message != "":
		msg = apiErr.Message
	case errors.As(err, &apiErr):
		apiErr.Message = fallback
	}

	c.mu.Lock()
	c.errMsg = msg
	c.mu.Unlock()

	logger.FromContextOrDefault(ctx, c.logger).Debug("task api call failed",
		slog.String("message", msg),
		redact.ErrorAttr(err))
	return err
}

func (c *TaskClient) setTasks(tasks []*domain.Task) {
	if tasks == nil {
		tasks = []*domain.Task{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = tasks
}

func taskPath(id uuid.UUID) string {
	return "/tasks/" + id.String()
}
