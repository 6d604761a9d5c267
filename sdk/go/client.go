package novasdk

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
)

// Client is a minimal Nova Dream HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Project represents the API project model (partial).
type Project struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Segment  string `json:"segment"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}

// Mission represents a roadmap step.
type Mission struct {
	ID                string  `json:"id"`
	ProjectID         string  `json:"project_id"`
	Title             string  `json:"title"`
	Status            string  `json:"status"`
	OrderIndex        int     `json:"order_index"`
	EstimatedDuration *string `json:"estimated_duration,omitempty"`
}

// Task represents the API task model (partial).
type Task struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

// ActionCard is a confirmable action proposed by the assistant.
type ActionCard struct {
	MessageID string            `json:"message_id"`
	Index     int               `json:"index"`
	Type      string            `json:"type"`
	Label     string            `json:"label"`
	Params    map[string]string `json:"params,omitempty"`
	State     string            `json:"state"`
	Unknown   bool              `json:"unknown,omitempty"`
}

// ChatReply is the assistant response with its cards.
type ChatReply struct {
	DisplayText string       `json:"display_text"`
	Cards       []ActionCard `json:"cards,omitempty"`
}

// RoadmapDiff is one entry of a roadmap import preview.
type RoadmapDiff struct {
	Title          string  `json:"title"`
	Classification string  `json:"classification"`
	MissionID      string  `json:"mission_id,omitempty"`
	Score          float64 `json:"score,omitempty"`
}

// RoadmapPreview is the classified view of a proposed roadmap.
type RoadmapPreview struct {
	Diffs     []RoadmapDiff `json:"diffs"`
	Create    int           `json:"create"`
	Update    int           `json:"update"`
	Identical int           `json:"identical"`
}

// RoadmapApply reports what a roadmap import committed.
type RoadmapApply struct {
	Created       int    `json:"created"`
	Updated       int    `json:"updated"`
	Report        string `json:"report"`
	ReportWarning string `json:"report_warning,omitempty"`
}

// StatusSummary groups task and mission counts by status.
type StatusSummary struct {
	Tasks    map[string]int `json:"tasks"`
	Missions map[string]int `json:"missions,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateProject creates a project.
func (c *Client) CreateProject(ctx context.Context, title, segment string) (Project, error) {
	body := map[string]any{"title": title, "segment": segment}
	var resp Project
	err := c.do(ctx, http.MethodPost, "v0/projects", body, &resp)
	return resp, err
}

// ListMissions returns a project's missions in roadmap order.
func (c *Client) ListMissions(ctx context.Context, projectID string) ([]Mission, error) {
	var resp []Mission
	endpoint := fmt.Sprintf("v0/projects/%s/missions", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Chat sends a message and returns the reply with any action cards.
func (c *Client) Chat(ctx context.Context, message string) (ChatReply, error) {
	var resp ChatReply
	err := c.do(ctx, http.MethodPost, "v0/chat", map[string]any{"message": message}, &resp)
	return resp, err
}

// ConfirmAction confirms an action card by its reference.
func (c *Client) ConfirmAction(ctx context.Context, messageID string, index int) (ActionCard, error) {
	body := map[string]any{"message_id": messageID, "index": index}
	var resp ActionCard
	err := c.do(ctx, http.MethodPost, "v0/directives/confirm", body, &resp)
	return resp, err
}

// DismissAction dismisses a pending action card.
func (c *Client) DismissAction(ctx context.Context, messageID string, index int) (ActionCard, error) {
	body := map[string]any{"message_id": messageID, "index": index}
	var resp ActionCard
	err := c.do(ctx, http.MethodPost, "v0/directives/dismiss", body, &resp)
	return resp, err
}

// PreviewRoadmap classifies roadmap text against a project without writing.
func (c *Client) PreviewRoadmap(ctx context.Context, projectID, text string) (RoadmapPreview, error) {
	var resp RoadmapPreview
	endpoint := fmt.Sprintf("v0/projects/%s/roadmap/preview", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"text": text}, &resp)
	return resp, err
}

// ApplyRoadmap imports roadmap text into a project.
func (c *Client) ApplyRoadmap(ctx context.Context, projectID, text string) (RoadmapApply, error) {
	var resp RoadmapApply
	endpoint := fmt.Sprintf("v0/projects/%s/roadmap/apply", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"text": text}, &resp)
	return resp, err
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, title, priority string) (Task, error) {
	body := map[string]any{"title": title, "priority": priority}
	var resp Task
	err := c.do(ctx, http.MethodPost, "v0/tasks", body, &resp)
	return resp, err
}

// Summary returns task counts by status, plus mission counts when a project
// id is given.
func (c *Client) Summary(ctx context.Context, projectID string) (StatusSummary, error) {
	endpoint := "v0/summary"
	if projectID != "" {
		endpoint += "?project_id=" + url.QueryEscape(projectID)
	}
	var resp StatusSummary
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v0/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
