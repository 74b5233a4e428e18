// Package api is the HTTP/JSON client for the dispatch-board backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dispatch-cli/internal/model"

	"github.com/google/uuid"
)

// ErrMalformed is returned when the backend answers 2xx with a body that does
// not decode into a valid board snapshot.
var ErrMalformed = errors.New("malformed response")

// StatusError is a non-success answer from the backend, either an HTTP error
// status or a 2xx body with success=false.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e StatusError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if msg == "" {
		msg = "request failed"
	}
	return fmt.Sprintf("%s: backend returned status %d: %s", e.Op, e.StatusCode, msg)
}

// Config for the backend HTTP client.
type Config struct {
	// BaseURL is the API root, e.g. "https://ops.example.com/api".
	BaseURL string
	// Token is the Bearer auth token (optional).
	Token string
	// Timeout bounds every request. Zero means no client-side timeout.
	Timeout time.Duration
	// HTTPClient overrides the transport (tests).
	HTTPClient *http.Client
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/"),
		token:      cfg.Token,
		httpClient: hc,
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// AssignRequest is the body of POST /dispatch-board/assign-crew.
type AssignRequest struct {
	WorkOrderID            string    `json:"work_order_id"`
	CrewID                 string    `json:"crew_id"`
	ScheduledStart         time.Time `json:"scheduled_start"`
	EstimatedDurationHours float64   `json:"estimated_duration_hours"`
}

type AssignResult struct {
	Conflicts int `json:"conflicts"`
}

type OptimizeResult struct {
	Message string `json:"message"`
}

type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

type boardResponse struct {
	envelope
	WorkOrders *model.Buckets `json:"work_orders"`
	Crews      []model.Crew   `json:"crews"`
	Summary    model.Summary  `json:"summary"`
}

type assignResponse struct {
	envelope
	Conflicts int `json:"conflicts"`
}

// FetchBoard loads the board snapshot for a date/view.
func (c *Client) FetchBoard(ctx context.Context, date string, view model.View) (model.BoardSnapshot, error) {
	q := url.Values{}
	q.Set("date", date)
	q.Set("view", string(view))

	var resp boardResponse
	if err := c.do(ctx, "fetch board", http.MethodGet, "/dispatch-board/board?"+q.Encode(), nil, &resp); err != nil {
		return model.BoardSnapshot{}, err
	}
	if resp.WorkOrders == nil {
		return model.BoardSnapshot{}, fmt.Errorf("fetch board: %w: missing work_orders", ErrMalformed)
	}
	snap := model.BoardSnapshot{
		Date:       date,
		View:       view,
		WorkOrders: *resp.WorkOrders,
		Crews:      resp.Crews,
		Summary:    resp.Summary,
	}
	if err := model.Validate(snap); err != nil {
		return model.BoardSnapshot{}, fmt.Errorf("fetch board: %w: %w", ErrMalformed, err)
	}
	return snap, nil
}

// AssignCrew assigns a work order to a crew. Scheduling conflicts are
// reported in the result, not as an error.
func (c *Client) AssignCrew(ctx context.Context, req AssignRequest) (AssignResult, error) {
	var resp assignResponse
	if err := c.do(ctx, "assign crew", http.MethodPost, "/dispatch-board/assign-crew", req, &resp); err != nil {
		return AssignResult{}, err
	}
	return AssignResult{Conflicts: resp.Conflicts}, nil
}

func (c *Client) UnassignCrew(ctx context.Context, workOrderID string) error {
	var resp envelope
	p := "/dispatch-board/unassign-crew/" + url.PathEscape(strings.TrimSpace(workOrderID))
	return c.do(ctx, "unassign crew", http.MethodPost, p, nil, &resp)
}

// Optimize asks the backend to auto-assign the date's unassigned work.
func (c *Client) Optimize(ctx context.Context, date string) (OptimizeResult, error) {
	q := url.Values{}
	q.Set("date", date)
	var resp envelope
	if err := c.do(ctx, "optimize", http.MethodPost, "/dispatch-board/optimize?"+q.Encode(), nil, &resp); err != nil {
		return OptimizeResult{}, err
	}
	return OptimizeResult{Message: resp.Message}, nil
}

// successReporter lets do() check the success flag on any response type.
type successReporter interface {
	result() envelope
}

func (e *envelope) result() envelope { return *e }

func (c *Client) do(ctx context.Context, op, method, path string, body any, out successReporter) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", op, err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("%s: creating request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("%s: reading response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env envelope
		_ = json.Unmarshal(raw, &env)
		return StatusError{Op: op, StatusCode: resp.StatusCode, Message: firstNonEmpty(env.Error, env.Message)}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrMalformed, err)
	}
	env := out.result()
	if env.Success != nil && !*env.Success {
		return StatusError{Op: op, StatusCode: resp.StatusCode, Message: firstNonEmpty(env.Error, env.Message)}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
