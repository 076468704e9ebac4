package rating

import (
	"context"
	"testing"
	"time"

	"github.com/audithq/contest-engine/internal/models"
	"github.com/audithq/contest-engine/internal/storage"
)

func seedUser(t *testing.T, repo *storage.MemoryRepository, username string, role models.Role) *models.User {
	t.Helper()

	u := &models.User{
		Username:  username,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s) failed: %v", username, err)
	}
	return u
}

func seedContest(t *testing.T, repo *storage.MemoryRepository, name string, start, end time.Time) *models.Contest {
	t.Helper()

	c := &models.Contest{
		Name:      name,
		StartDate: start,
		EndDate:   end,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.CreateContest(context.Background(), c); err != nil {
		t.Fatalf("CreateContest(%s) failed: %v", name, err)
	}
	return c
}

func seedBug(t *testing.T, repo *storage.MemoryRepository, contest *models.Contest, severity models.Severity, reporterID int64) *models.Bug {
	t.Helper()

	b := &models.Bug{
		ContestID:    contest.ID,
		Severity:     severity,
		ReportedByID: reporterID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := repo.CreateBug(context.Background(), b); err != nil {
		t.Fatalf("CreateBug failed: %v", err)
	}
	return b
}

func seedFinding(t *testing.T, repo *storage.MemoryRepository, user *models.User, bug *models.Bug) *models.Finding {
	t.Helper()

	f := &models.Finding{
		UserID:    user.ID,
		BugID:     bug.ID,
		ContestID: bug.ContestID,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.CreateFinding(context.Background(), f); err != nil {
		t.Fatalf("CreateFinding(user %d, bug %d) failed: %v", user.ID, bug.ID, err)
	}
	f.Severity = bug.Severity
	return f
}

func seedEntry(t *testing.T, repo *storage.MemoryRepository, userID, contestID int64, before, after int) {
	t.Helper()

	entry := &models.RatingEntry{
		UserID:       userID,
		ContestID:    contestID,
		RatingBefore: before,
		RatingAfter:  after,
		Reason:       "seed",
		CreatedAt:    time.Now().UTC(),
	}
	if err := repo.AppendRatingEntry(context.Background(), entry); err != nil {
		t.Fatalf("AppendRatingEntry failed: %v", err)
	}
}

func seedSignup(t *testing.T, repo *storage.MemoryRepository, user *models.User, contest *models.Contest, at time.Time) {
	t.Helper()

	s := &models.Signup{
		UserID:     user.ID,
		ContestID:  contest.ID,
		SignupDate: at,
	}
	if err := repo.CreateSignup(context.Background(), s); err != nil {
		t.Fatalf("CreateSignup(user %d, contest %d) failed: %v", user.ID, contest.ID, err)
	}
}

func currentRating(t *testing.T, repo *storage.MemoryRepository, userID int64) int {
	t.Helper()

	r, err := repo.CurrentRating(context.Background(), userID)
	if err != nil {
		t.Fatalf("CurrentRating(%d) failed: %v", userID, err)
	}
	return r
}
