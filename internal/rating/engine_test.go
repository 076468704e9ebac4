package rating

import (
	"context"
	"testing"
	"time"

	"github.com/audithq/contest-engine/internal/models"
	"github.com/audithq/contest-engine/internal/storage"
)

func testContestWindow() (time.Time, time.Time) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return start, start.Add(14 * 24 * time.Hour)
}

func TestWinProbability(t *testing.T) {
	if got := WinProbability(0, 0); got != 0.5 {
		t.Errorf("equal ratings: expected 0.5, got %v", got)
	}
	if got := WinProbability(400, 0); got <= 0.5 {
		t.Errorf("stronger user should have win probability above 0.5, got %v", got)
	}
	if got := WinProbability(0, 400); got >= 0.5 {
		t.Errorf("weaker user should have win probability below 0.5, got %v", got)
	}

	// Symmetry: p(a,b) + p(b,a) = 1
	sum := WinProbability(120, 740) + WinProbability(740, 120)
	if sum < 0.9999 || sum > 1.0001 {
		t.Errorf("win probabilities should sum to 1, got %v", sum)
	}
}

// Fresh user, no opponent history: opponent pool defaults to 100, so
// winProb = 1/(1+10^0.25) and the per-severity deltas are fixed numbers.
func TestComputeDeltaKnownValues(t *testing.T) {
	cases := []struct {
		severity models.Severity
		want     int
	}{
		{models.SeverityMedium, 20},
		{models.SeverityHigh, 30},
		{models.SeverityCritical, 40},
	}

	for _, tc := range cases {
		t.Run(string(tc.severity), func(t *testing.T) {
			repo := storage.NewMemoryRepository()
			engine := NewEngine(repo)

			start, end := testContestWindow()
			contest := seedContest(t, repo, "delta-"+string(tc.severity), start, end)
			user := seedUser(t, repo, "hunter", models.RoleBase)
			bug := seedBug(t, repo, contest, tc.severity, user.ID)
			finding := seedFinding(t, repo, user, bug)

			delta, err := engine.ComputeDelta(context.Background(), user, contest, []*models.Finding{finding})
			if err != nil {
				t.Fatalf("ComputeDelta failed: %v", err)
			}
			if delta != tc.want {
				t.Errorf("expected delta %d for %s, got %d", tc.want, tc.severity, delta)
			}
		})
	}
}

func TestComputeDeltaSeverityOrdering(t *testing.T) {
	repo := storage.NewMemoryRepository()
	engine := NewEngine(repo)

	start, end := testContestWindow()
	contest := seedContest(t, repo, "ordering", start, end)

	severities := []models.Severity{models.SeverityMedium, models.SeverityHigh, models.SeverityCritical}
	deltas := make([]int, 0, len(severities))
	for i, sev := range severities {
		user := seedUser(t, repo, "user-"+string(sev), models.RoleBase)
		bug := seedBug(t, repo, contest, sev, user.ID)
		finding := seedFinding(t, repo, user, bug)

		// Each user reports a distinct bug, so no duplicate penalty applies
		delta, err := engine.ComputeDelta(context.Background(), user, contest, []*models.Finding{finding})
		if err != nil {
			t.Fatalf("ComputeDelta failed: %v", err)
		}
		if delta <= 0 {
			t.Errorf("delta for %s should be positive, got %d", sev, delta)
		}
		if i > 0 && delta <= deltas[i-1] {
			t.Errorf("delta for %s (%d) should exceed %s (%d)", sev, delta, severities[i-1], deltas[i-1])
		}
		deltas = append(deltas, delta)
	}
}

// Higher tiers earn less for the same finding because of the K scaling.
func TestComputeDeltaTierScaling(t *testing.T) {
	repo := storage.NewMemoryRepository()
	engine := NewEngine(repo)

	start, end := testContestWindow()
	contest := seedContest(t, repo, "tiers", start, end)

	roles := []models.Role{models.RoleBase, models.RoleMid, models.RoleTop}
	want := map[models.Role]int{
		models.RoleBase: 40,
		models.RoleMid:  36,
		models.RoleTop:  30,
	}

	for _, role := range roles {
		user := seedUser(t, repo, "tier-"+string(role), role)
		bug := seedBug(t, repo, contest, models.SeverityCritical, user.ID)
		finding := seedFinding(t, repo, user, bug)

		delta, err := engine.ComputeDelta(context.Background(), user, contest, []*models.Finding{finding})
		if err != nil {
			t.Fatalf("ComputeDelta failed: %v", err)
		}
		if delta != want[role] {
			t.Errorf("tier %s: expected delta %d, got %d", role, want[role], delta)
		}
	}
}

// Every additional reporter of the same bug lowers the reward.
func TestComputeDeltaDuplicatePenalty(t *testing.T) {
	repo := storage.NewMemoryRepository()
	engine := NewEngine(repo)

	start, end := testContestWindow()
	contest := seedContest(t, repo, "duplicates", start, end)

	user := seedUser(t, repo, "first-reporter", models.RoleBase)
	bug := seedBug(t, repo, contest, models.SeverityCritical, user.ID)
	finding := seedFinding(t, repo, user, bug)

	findings := []*models.Finding{finding}

	delta0, err := engine.ComputeDelta(context.Background(), user, contest, findings)
	if err != nil {
		t.Fatalf("ComputeDelta failed: %v", err)
	}
	if delta0 != 40 {
		t.Errorf("no duplicates: expected 40, got %d", delta0)
	}

	prev := delta0
	for i := 0; i < 3; i++ {
		dup := seedUser(t, repo, "dup-reporter-"+string(rune('a'+i)), models.RoleBase)
		seedFinding(t, repo, dup, bug)

		delta, err := engine.ComputeDelta(context.Background(), user, contest, findings)
		if err != nil {
			t.Fatalf("ComputeDelta with %d duplicates failed: %v", i+1, err)
		}
		if delta >= prev {
			t.Errorf("delta with %d duplicates (%d) should be below %d", i+1, delta, prev)
		}
		prev = delta
	}
}

// A heavily duplicated medium finding can go negative; the contribution
// truncates toward zero, not toward negative infinity.
func TestComputeDeltaNegativeTruncation(t *testing.T) {
	repo := storage.NewMemoryRepository()
	engine := NewEngine(repo)

	start, end := testContestWindow()
	contest := seedContest(t, repo, "negative", start, end)

	user := seedUser(t, repo, "late-reporter", models.RoleBase)
	bug := seedBug(t, repo, contest, models.SeverityMedium, user.ID)
	finding := seedFinding(t, repo, user, bug)

	for i := 0; i < 8; i++ {
		dup := seedUser(t, repo, "crowd-"+string(rune('a'+i)), models.RoleBase)
		seedFinding(t, repo, dup, bug)
	}

	// 32 * (1.0*(1-0.35994) - 0.8) = -5.118, truncated to -5
	delta, err := engine.ComputeDelta(context.Background(), user, contest, []*models.Finding{finding})
	if err != nil {
		t.Fatalf("ComputeDelta failed: %v", err)
	}
	if delta != -5 {
		t.Errorf("expected truncation toward zero to give -5, got %d", delta)
	}
}

// Opponents with ledger history shift the expectation. User and opponent
// both at 400 means winProb is exactly 0.5 and the critical delta exactly 32.
func TestComputeDeltaWithOpponentHistory(t *testing.T) {
	repo := storage.NewMemoryRepository()
	engine := NewEngine(repo)

	start, end := testContestWindow()
	contest := seedContest(t, repo, "opponents", start, end)

	user := seedUser(t, repo, "veteran", models.RoleBase)
	opponent := seedUser(t, repo, "rival", models.RoleBase)

	seedEntry(t, repo, user.ID, contest.ID, 0, 400)
	seedEntry(t, repo, opponent.ID, contest.ID, 0, 400)

	bugA := seedBug(t, repo, contest, models.SeverityCritical, user.ID)
	bugB := seedBug(t, repo, contest, models.SeverityHigh, opponent.ID)
	finding := seedFinding(t, repo, user, bugA)
	seedFinding(t, repo, opponent, bugB)

	delta, err := engine.ComputeDelta(context.Background(), user, contest, []*models.Finding{finding})
	if err != nil {
		t.Fatalf("ComputeDelta failed: %v", err)
	}
	if delta != 32 {
		t.Errorf("evenly matched critical finding: expected 32, got %d", delta)
	}
}

// Only the latest ledger entry of each opponent counts toward the pool.
func TestOpponentPoolUsesLatestRating(t *testing.T) {
	repo := storage.NewMemoryRepository()

	start, end := testContestWindow()
	contest := seedContest(t, repo, "pool", start, end)

	user := seedUser(t, repo, "subject", models.RoleBase)
	opponent := seedUser(t, repo, "opponent", models.RoleBase)

	bug := seedBug(t, repo, contest, models.SeverityMedium, opponent.ID)
	seedFinding(t, repo, opponent, bug)

	seedEntry(t, repo, opponent.ID, contest.ID, 0, 50)
	seedEntry(t, repo, opponent.ID, contest.ID, 50, 300)

	ratings, err := repo.OpponentRatings(context.Background(), contest.ID, user.ID)
	if err != nil {
		t.Fatalf("OpponentRatings failed: %v", err)
	}
	if len(ratings) != 1 {
		t.Fatalf("expected 1 opponent rating, got %d", len(ratings))
	}
	if ratings[0] != 300 {
		t.Errorf("expected latest rating 300, got %d", ratings[0])
	}
}

func TestOpponentAverageDefault(t *testing.T) {
	if got := opponentAverage(nil); got != DefaultOpponentRating {
		t.Errorf("empty pool should default to %d, got %v", DefaultOpponentRating, got)
	}
	if got := opponentAverage([]int{100, 200, 300}); got != 200 {
		t.Errorf("expected mean 200, got %v", got)
	}
}
