package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/audithq/contest-engine/internal/models"
)

// MemoryRepository implements Repository with in-memory maps. It backs the
// test suites so the domain packages can be exercised without Postgres.
type MemoryRepository struct {
	mu sync.RWMutex

	users    map[int64]*models.User
	contests map[int64]*models.Contest
	signups  map[int64]*models.Signup
	bugs     map[int64]*models.Bug
	findings map[int64]*models.Finding
	entries  []*models.RatingEntry

	nextID map[string]int64
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:    make(map[int64]*models.User),
		contests: make(map[int64]*models.Contest),
		signups:  make(map[int64]*models.Signup),
		bugs:     make(map[int64]*models.Bug),
		findings: make(map[int64]*models.Finding),
		nextID:   make(map[string]int64),
	}
}

func (r *MemoryRepository) next(kind string) int64 {
	r.nextID[kind]++
	return r.nextID[kind]
}

// --- Users ---

func (r *MemoryRepository) CreateUser(ctx context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Username == u.Username {
			return fmt.Errorf("failed to create user: duplicate username %q", u.Username)
		}
	}

	u.ID = r.next("user")
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) GetUserByToken(ctx context.Context, token string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.APIToken == token {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) ListUsers(ctx context.Context, filters models.ListFilters) ([]*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int64, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var users []*models.User
	for i, id := range ids {
		if filters.Offset > 0 && i < filters.Offset {
			continue
		}
		if filters.Limit > 0 && len(users) >= filters.Limit {
			break
		}
		cp := *r.users[id]
		users = append(users, &cp)
	}
	return users, nil
}

func (r *MemoryRepository) SaveUserRoles(ctx context.Context, users []*models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range users {
		stored, ok := r.users[u.ID]
		if !ok {
			return fmt.Errorf("user not found: %d", u.ID)
		}
		stored.Role = u.Role
	}
	return nil
}

func (r *MemoryRepository) AddParticipationDays(ctx context.Context, userID int64, days int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("user not found: %d", userID)
	}
	u.ParticipationDays += days
	return nil
}

// --- Contests ---

func (r *MemoryRepository) CreateContest(ctx context.Context, c *models.Contest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.contests {
		if existing.Name == c.Name {
			return fmt.Errorf("failed to create contest: duplicate name %q", c.Name)
		}
	}

	c.ID = r.next("contest")
	cp := *c
	r.contests[c.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetContest(ctx context.Context, id int64) (*models.Contest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.contests[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *MemoryRepository) GetContestByName(ctx context.Context, name string) (*models.Contest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.contests {
		if c.Name == name {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) ListContests(ctx context.Context) ([]*models.Contest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var contests []*models.Contest
	for _, c := range r.contests {
		cp := *c
		contests = append(contests, &cp)
	}
	sort.Slice(contests, func(i, j int) bool {
		return contests[i].StartDate.After(contests[j].StartDate)
	})
	return contests, nil
}

func (r *MemoryRepository) MarkRatingsProcessed(ctx context.Context, contestID int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.contests[contestID]
	if !ok {
		return fmt.Errorf("contest not found: %d", contestID)
	}
	t := at
	c.RatingsProcessedAt = &t
	return nil
}

func (r *MemoryRepository) MarkDaysProcessed(ctx context.Context, contestID int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.contests[contestID]
	if !ok {
		return fmt.Errorf("contest not found: %d", contestID)
	}
	t := at
	c.DaysProcessedAt = &t
	return nil
}

func (r *MemoryRepository) ListEndedUnprocessed(ctx context.Context, now time.Time) ([]*models.Contest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var contests []*models.Contest
	for _, c := range r.contests {
		if c.EndDate.Before(now) && c.RatingsProcessedAt == nil {
			cp := *c
			contests = append(contests, &cp)
		}
	}
	sort.Slice(contests, func(i, j int) bool {
		return contests[i].EndDate.Before(contests[j].EndDate)
	})
	return contests, nil
}

// --- Signups ---

func (r *MemoryRepository) CreateSignup(ctx context.Context, s *models.Signup) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.signups {
		if existing.UserID == s.UserID && existing.ContestID == s.ContestID {
			return fmt.Errorf("failed to create signup: duplicate (user %d, contest %d)", s.UserID, s.ContestID)
		}
	}

	s.ID = r.next("signup")
	cp := *s
	r.signups[s.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetSignup(ctx context.Context, userID, contestID int64) (*models.Signup, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.signups {
		if s.UserID == userID && s.ContestID == contestID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) ListParticipants(ctx context.Context, contestID int64) ([]*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []int64
	for _, s := range r.signups {
		if s.ContestID == contestID {
			ids = append(ids, s.UserID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var users []*models.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			cp := *u
			users = append(users, &cp)
		}
	}
	return users, nil
}

// --- Bugs and findings ---

func (r *MemoryRepository) CreateBug(ctx context.Context, b *models.Bug) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b.ID = r.next("bug")
	cp := *b
	r.bugs[b.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetBug(ctx context.Context, id int64) (*models.Bug, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bugs[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (r *MemoryRepository) CreateFinding(ctx context.Context, f *models.Finding) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.findings {
		if existing.UserID == f.UserID && existing.BugID == f.BugID {
			return fmt.Errorf("failed to create finding: duplicate (user %d, bug %d)", f.UserID, f.BugID)
		}
	}

	f.ID = r.next("finding")
	cp := *f
	r.findings[f.ID] = &cp
	return nil
}

func (r *MemoryRepository) ListUserFindings(ctx context.Context, userID, contestID int64) ([]*models.Finding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var findings []*models.Finding
	for _, f := range r.findings {
		if f.UserID == userID && f.ContestID == contestID {
			cp := *f
			if b, ok := r.bugs[f.BugID]; ok {
				cp.Severity = b.Severity
			}
			findings = append(findings, &cp)
		}
	}
	sort.Slice(findings, func(i, j int) bool { return findings[i].ID < findings[j].ID })
	return findings, nil
}

func (r *MemoryRepository) CountDuplicateReports(ctx context.Context, bugID, excludeUserID int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, f := range r.findings {
		if f.BugID == bugID && f.UserID != excludeUserID {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepository) CountContestFindings(ctx context.Context, contestID, excludeUserID int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, f := range r.findings {
		if f.ContestID == contestID && f.UserID != excludeUserID {
			count++
		}
	}
	return count, nil
}

// --- Rating ledger ---

func (r *MemoryRepository) AppendRatingEntry(ctx context.Context, e *models.RatingEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e.ID = r.next("entry")
	cp := *e
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *MemoryRepository) CurrentRating(ctx context.Context, userID int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rating := 0
	for _, e := range r.entries {
		if e.UserID == userID {
			rating += e.RatingAfter - e.RatingBefore
		}
	}
	return rating, nil
}

func (r *MemoryRepository) OpponentRatings(ctx context.Context, contestID, excludeUserID int64) ([]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	opponents := make(map[int64]bool)
	for _, f := range r.findings {
		if f.ContestID == contestID && f.UserID != excludeUserID {
			opponents[f.UserID] = true
		}
	}

	var ids []int64
	for id := range opponents {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var ratings []int
	for _, id := range ids {
		// Latest entry per opponent; entries are in append order
		var latest *models.RatingEntry
		for _, e := range r.entries {
			if e.UserID == id {
				latest = e
			}
		}
		if latest != nil {
			ratings = append(ratings, latest.RatingAfter)
		}
	}
	return ratings, nil
}

func (r *MemoryRepository) RatingTotals(ctx context.Context, limit int) ([]models.RatingTotal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sums := make(map[int64]int)
	for _, e := range r.entries {
		sums[e.UserID] += e.RatingAfter - e.RatingBefore
	}

	totals := make([]models.RatingTotal, 0, len(sums))
	for id, total := range sums {
		totals = append(totals, models.RatingTotal{UserID: id, Total: total})
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Total != totals[j].Total {
			return totals[i].Total > totals[j].Total
		}
		return totals[i].UserID < totals[j].UserID
	})

	if limit > 0 && len(totals) > limit {
		totals = totals[:limit]
	}
	return totals, nil
}

func (r *MemoryRepository) ListRatingEntries(ctx context.Context, userID int64) ([]*models.RatingEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var entries []*models.RatingEntry
	for _, e := range r.entries {
		if e.UserID == userID {
			cp := *e
			entries = append(entries, &cp)
		}
	}
	return entries, nil
}

// WithTx runs fn against the repository itself. The in-memory store has no
// transactional rollback; tests that exercise failure paths assert on the
// returned error, not on state isolation.
func (r *MemoryRepository) WithTx(ctx context.Context, fn func(Repository) error) error {
	return fn(r)
}

// Ping always succeeds for the in-memory store
func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store
func (r *MemoryRepository) Close() error {
	return nil
}
