// Package client provides a Go HTTP client for programmatic access to the
// notabene API.
//
// The client mirrors the server's endpoint structure with strongly-typed
// methods: quick capture, per-kind CRUD, soft-delete with undo, conversion
// between kinds, and the sync status endpoint. Request and response bodies
// are marshaled automatically; errors include the HTTP status code and the
// response body.
//
// Basic usage:
//
//	c := client.NewClient("http://localhost:8080")
//	note, err := c.Capture(ctx, "todo: buy milk by friday")
//	if err != nil {
//		return err
//	}
//	tasks, err := c.List(ctx, models.KindTask)
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/notabene-app/notabene/pkg/models"
)

// Client provides typed access to the notabene REST API. Safe for concurrent
// use by multiple goroutines.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an API client. baseURL includes protocol and host, no
// trailing slash.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.httpClient.Do(req)
}

func decodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	if target != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// Health checks the health status of the server.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}
	var result map[string]any
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Capture sends free text for classification and storage.
func (c *Client) Capture(ctx context.Context, text string) (*models.Note, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/capture", map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	var note models.Note
	if err := decodeResponse(resp, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// List returns the notes of one kind, newest first.
func (c *Client) List(ctx context.Context, kind models.Kind) ([]*models.Note, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/notes/%s", kind), nil)
	if err != nil {
		return nil, err
	}
	var notes []*models.Note
	if err := decodeResponse(resp, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// AddRequest carries the fields for creating a note directly, bypassing
// classification.
type AddRequest struct {
	Content  string          `json:"content"`
	Tags     models.Tags     `json:"tags,omitempty"`
	Priority models.Priority `json:"priority,omitempty"`
	DueDate  *time.Time      `json:"due_date,omitempty"`
}

// Add creates a note of the given kind.
func (c *Client) Add(ctx context.Context, kind models.Kind, req AddRequest) (*models.Note, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/api/notes/%s", kind), req)
	if err != nil {
		return nil, err
	}
	var note models.Note
	if err := decodeResponse(resp, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// Get retrieves one note.
func (c *Client) Get(ctx context.Context, kind models.Kind, id models.NoteID) (*models.Note, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/notes/%s/%s", kind, id), nil)
	if err != nil {
		return nil, err
	}
	var note models.Note
	if err := decodeResponse(resp, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// UpdateRequest is a partial update; nil fields are left unchanged.
type UpdateRequest struct {
	Content      *string          `json:"content,omitempty"`
	Tags         *models.Tags     `json:"tags,omitempty"`
	Completed    *bool            `json:"completed,omitempty"`
	Priority     *models.Priority `json:"priority,omitempty"`
	DueDate      *time.Time       `json:"due_date,omitempty"`
	ClearDueDate bool             `json:"clear_due_date,omitempty"`
}

// Update applies a partial update and returns the updated note.
func (c *Client) Update(ctx context.Context, kind models.Kind, id models.NoteID, req UpdateRequest) (*models.Note, error) {
	resp, err := c.doRequest(ctx, http.MethodPatch, fmt.Sprintf("/api/notes/%s/%s", kind, id), req)
	if err != nil {
		return nil, err
	}
	var note models.Note
	if err := decodeResponse(resp, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// SoftDelete tombstones a note. The note can be restored with Undo until
// the server's retention window passes.
func (c *Client) SoftDelete(ctx context.Context, kind models.Kind, id models.NoteID) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/api/notes/%s/%s", kind, id), nil)
	if err != nil {
		return err
	}
	return decodeResponse(resp, nil)
}

// Delete permanently removes a note, skipping the tombstone.
func (c *Client) Delete(ctx context.Context, kind models.Kind, id models.NoteID) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/api/notes/%s/%s?hard=true", kind, id), nil)
	if err != nil {
		return err
	}
	return decodeResponse(resp, nil)
}

// Undo restores a soft-deleted note by id.
func (c *Client) Undo(ctx context.Context, id models.NoteID) error {
	resp, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/api/undo/%s", id), nil)
	if err != nil {
		return err
	}
	return decodeResponse(resp, nil)
}

// Convert moves a note's content into another kind and returns the new note.
func (c *Client) Convert(ctx context.Context, sourceKind models.Kind, id models.NoteID, targetKind models.Kind) (*models.Note, error) {
	resp, err := c.doRequest(ctx, http.MethodPost,
		fmt.Sprintf("/api/notes/%s/%s/convert", sourceKind, id),
		map[string]string{"target": string(targetKind)})
	if err != nil {
		return nil, err
	}
	var note models.Note
	if err := decodeResponse(resp, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// OutboxStatus reports whether remote sync is enabled and how many writes
// are still waiting to land.
type OutboxStatus struct {
	Enabled bool  `json:"enabled"`
	Pending int64 `json:"pending"`
}

// Outbox fetches the sync status.
func (c *Client) Outbox(ctx context.Context) (*OutboxStatus, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/outbox", nil)
	if err != nil {
		return nil, err
	}
	var status OutboxStatus
	if err := decodeResponse(resp, &status); err != nil {
		return nil, err
	}
	return &status, nil
}
