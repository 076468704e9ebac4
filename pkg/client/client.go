// Package client is a Go SDK for the contest-engine HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/audithq/contest-engine/internal/models"
)

// Client is a Go SDK for the contest-engine API
type Client struct {
	baseURL    string
	apiToken   string
	adminToken string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithAdminToken sets the admin token used by the processing endpoints
func WithAdminToken(token string) Option {
	return func(c *Client) {
		c.adminToken = token
	}
}

// NewClient creates a new contest-engine client
func NewClient(baseURL, apiToken string, opts ...Option) *Client {
	c := &Client{
		baseURL:  baseURL,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// envelope mirrors the API's JSON response wrapper
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *apiError       `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIError is returned for non-2xx responses
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, admin bool, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
	if admin {
		req.Header.Set("X-Admin-Token", c.adminToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: "unknown", Message: "request failed"}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}

	if out != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode data: %w", err)
		}
	}

	return nil
}

// CreateUser registers a new auditor and returns the account with its
// one-time API token
func (c *Client) CreateUser(ctx context.Context, username, password string) (*models.CreateUserResponse, error) {
	var out models.CreateUserResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/users", models.CreateUserRequest{
		Username: username,
		Password: password,
	}, false, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CurrentUser returns the account for the client's API token
func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	var out models.User
	if err := c.do(ctx, http.MethodGet, "/api/v1/users/me", nil, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListContests returns all contests
func (c *Client) ListContests(ctx context.Context) ([]*models.Contest, error) {
	var out struct {
		Contests []*models.Contest `json:"contests"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/contests", nil, false, &out); err != nil {
		return nil, err
	}
	return out.Contests, nil
}

// Signup enrolls a user in a contest
func (c *Client) Signup(ctx context.Context, contestID, userID int64) error {
	path := fmt.Sprintf("/api/v1/contests/%d/signup/%d", contestID, userID)
	return c.do(ctx, http.MethodPost, path, nil, false, nil)
}

// ReportBug files a finding for the client's user against a bug
func (c *Client) ReportBug(ctx context.Context, bugID int64) (*models.Finding, error) {
	var out models.Finding
	path := fmt.Sprintf("/api/v1/bugs/%d/reports", bugID)
	if err := c.do(ctx, http.MethodPost, path, nil, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ProcessRatings triggers the rating and role passes for a contest.
// Requires the admin token.
func (c *Client) ProcessRatings(ctx context.Context, contestID int64) error {
	path := fmt.Sprintf("/api/v1/contests/%d/process_elo", contestID)
	return c.do(ctx, http.MethodPost, path, nil, true, nil)
}

// ProcessParticipationDays triggers the participation-days pass for a
// contest. Requires the admin token.
func (c *Client) ProcessParticipationDays(ctx context.Context, contestID int64) error {
	path := fmt.Sprintf("/api/v1/contests/%d/process_participation_days", contestID)
	return c.do(ctx, http.MethodPost, path, nil, true, nil)
}

// Leaderboard returns the current rating totals
func (c *Client) Leaderboard(ctx context.Context, limit int) ([]models.RatingTotal, error) {
	path := "/api/v1/leaderboard"
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}

	var out struct {
		Leaderboard []models.RatingTotal `json:"leaderboard"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, false, &out); err != nil {
		return nil, err
	}
	return out.Leaderboard, nil
}
