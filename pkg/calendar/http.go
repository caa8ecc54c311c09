package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPClient talks to a calendar service over its REST API. Events are
// all-day: only the date portion of the day argument is sent.
//
// HTTPClient instances are safe for concurrent use by multiple goroutines.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a calendar client for the given base URL. The token
// is sent as a bearer token on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type eventRequest struct {
	Title  string `json:"title"`
	Date   string `json:"date"` // YYYY-MM-DD
	AllDay bool   `json:"all_day"`
}

type eventResponse struct {
	Ref string `json:"ref"`
}

func (c *HTTPClient) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
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
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.httpClient.Do(req)
}

func decodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("calendar API error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	if target != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func (c *HTTPClient) CreateEvent(ctx context.Context, title string, day time.Time) (string, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/events", eventRequest{
		Title:  title,
		Date:   day.Format("2006-01-02"),
		AllDay: true,
	})
	if err != nil {
		return "", err
	}

	var result eventResponse
	if err := decodeResponse(resp, &result); err != nil {
		return "", err
	}
	return result.Ref, nil
}

func (c *HTTPClient) UpdateEvent(ctx context.Context, ref, title string, day time.Time) error {
	resp, err := c.doRequest(ctx, http.MethodPut, "/api/events/"+url.PathEscape(ref), eventRequest{
		Title:  title,
		Date:   day.Format("2006-01-02"),
		AllDay: true,
	})
	if err != nil {
		return err
	}
	return decodeResponse(resp, nil)
}

func (c *HTTPClient) DeleteEvent(ctx context.Context, ref string) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, "/api/events/"+url.PathEscape(ref), nil)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil
	}
	return decodeResponse(resp, nil)
}
