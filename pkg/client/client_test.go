package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/audithq/contest-engine/internal/api"
	"github.com/audithq/contest-engine/internal/config"
	"github.com/audithq/contest-engine/internal/models"
	"github.com/audithq/contest-engine/internal/rating"
	"github.com/audithq/contest-engine/internal/storage"
)

const testAdminToken = "client-test-admin"

func newTestBackend(t *testing.T) (*httptest.Server, *storage.MemoryRepository) {
	t.Helper()

	repo := storage.NewMemoryRepository()
	engine := rating.NewEngine(repo)
	classifier := rating.NewClassifier(repo)
	processor := rating.NewProcessor(repo, engine, classifier, nil)

	srv := api.NewServer(
		config.ServerConfig{Host: "127.0.0.1", Port: 0},
		config.AuthConfig{AdminToken: testAdminToken},
		repo,
		processor,
	)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, repo
}

func TestClientFlow(t *testing.T) {
	ts, repo := newTestBackend(t)
	ctx := context.Background()

	// Register through the anonymous client
	anon := NewClient(ts.URL, "")
	created, err := anon.CreateUser(ctx, "wendy", "long-enough-password")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if created.APIToken == "" {
		t.Fatal("expected a one-time API token")
	}

	// Authenticated client sees its own account
	c := NewClient(ts.URL, created.APIToken, WithAdminToken(testAdminToken), WithTimeout(5*time.Second))
	me, err := c.CurrentUser(ctx)
	if err != nil {
		t.Fatalf("CurrentUser failed: %v", err)
	}
	if me.Username != "wendy" {
		t.Errorf("expected username wendy, got %q", me.Username)
	}

	// Seed a contest and bug behind the API
	now := time.Now().UTC()
	contest := &models.Contest{Name: "sdk-test", StartDate: now.Add(-time.Hour), EndDate: now.Add(24 * time.Hour), CreatedAt: now}
	if err := repo.CreateContest(ctx, contest); err != nil {
		t.Fatalf("CreateContest failed: %v", err)
	}
	bug := &models.Bug{ContestID: contest.ID, Severity: models.SeverityCritical, ReportedByID: me.ID, CreatedAt: now}
	if err := repo.CreateBug(ctx, bug); err != nil {
		t.Fatalf("CreateBug failed: %v", err)
	}

	contests, err := c.ListContests(ctx)
	if err != nil {
		t.Fatalf("ListContests failed: %v", err)
	}
	if len(contests) != 1 || contests[0].Name != "sdk-test" {
		t.Errorf("unexpected contests: %+v", contests)
	}

	if err := c.Signup(ctx, contest.ID, me.ID); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	finding, err := c.ReportBug(ctx, bug.ID)
	if err != nil {
		t.Fatalf("ReportBug failed: %v", err)
	}
	if finding.BugID != bug.ID || finding.UserID != me.ID {
		t.Errorf("unexpected finding: %+v", finding)
	}

	if err := c.ProcessRatings(ctx, contest.ID); err != nil {
		t.Fatalf("ProcessRatings failed: %v", err)
	}

	board, err := c.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("Leaderboard failed: %v", err)
	}
	if len(board) != 1 {
		t.Fatalf("expected 1 leaderboard row, got %d", len(board))
	}
	if board[0].UserID != me.ID || board[0].Total != 40 {
		t.Errorf("unexpected leaderboard row: %+v", board[0])
	}
}

func TestClientAPIError(t *testing.T) {
	ts, _ := newTestBackend(t)
	ctx := context.Background()

	c := NewClient(ts.URL, "ct_unknown-token")

	_, err := c.CurrentUser(ctx)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != 401 {
		t.Errorf("expected status 401, got %d", apiErr.StatusCode)
	}

	if err := c.Signup(ctx, 999, 999); !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != 404 {
		t.Errorf("expected status 404, got %d", apiErr.StatusCode)
	}
}

func TestClientAdminGuard(t *testing.T) {
	ts, repo := newTestBackend(t)
	ctx := context.Background()

	now := time.Now().UTC()
	contest := &models.Contest{Name: "guarded", StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour), CreatedAt: now}
	if err := repo.CreateContest(ctx, contest); err != nil {
		t.Fatalf("CreateContest failed: %v", err)
	}

	// No admin token configured on the client
	c := NewClient(ts.URL, "")
	err := c.ProcessRatings(ctx, contest.ID)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != 401 {
		t.Errorf("expected status 401, got %d", apiErr.StatusCode)
	}
}
