package storage

import (
	"context"
	"time"

	"github.com/audithq/contest-engine/internal/models"
)

// Repository defines the interface for contest persistence
type Repository interface {
	// Users
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByToken(ctx context.Context, token string) (*models.User, error)
	ListUsers(ctx context.Context, filters models.ListFilters) ([]*models.User, error)
	SaveUserRoles(ctx context.Context, users []*models.User) error
	AddParticipationDays(ctx context.Context, userID int64, days int) error

	// Contests
	CreateContest(ctx context.Context, c *models.Contest) error
	GetContest(ctx context.Context, id int64) (*models.Contest, error)
	GetContestByName(ctx context.Context, name string) (*models.Contest, error)
	ListContests(ctx context.Context) ([]*models.Contest, error)
	MarkRatingsProcessed(ctx context.Context, contestID int64, at time.Time) error
	MarkDaysProcessed(ctx context.Context, contestID int64, at time.Time) error
	ListEndedUnprocessed(ctx context.Context, now time.Time) ([]*models.Contest, error)

	// Signups
	CreateSignup(ctx context.Context, s *models.Signup) error
	GetSignup(ctx context.Context, userID, contestID int64) (*models.Signup, error)
	ListParticipants(ctx context.Context, contestID int64) ([]*models.User, error)

	// Bugs and findings
	CreateBug(ctx context.Context, b *models.Bug) error
	GetBug(ctx context.Context, id int64) (*models.Bug, error)
	CreateFinding(ctx context.Context, f *models.Finding) error
	ListUserFindings(ctx context.Context, userID, contestID int64) ([]*models.Finding, error)
	CountDuplicateReports(ctx context.Context, bugID, excludeUserID int64) (int, error)
	CountContestFindings(ctx context.Context, contestID, excludeUserID int64) (int, error)

	// Rating ledger (append-only)
	AppendRatingEntry(ctx context.Context, e *models.RatingEntry) error
	CurrentRating(ctx context.Context, userID int64) (int, error)
	OpponentRatings(ctx context.Context, contestID, excludeUserID int64) ([]int, error)
	RatingTotals(ctx context.Context, limit int) ([]models.RatingTotal, error)
	ListRatingEntries(ctx context.Context, userID int64) ([]*models.RatingEntry, error)

	// WithTx runs fn against a transaction-scoped repository, committing on
	// nil and rolling back on error. Each batch pass runs inside one call.
	WithTx(ctx context.Context, fn func(Repository) error) error

	// Health
	Ping(ctx context.Context) error
	Close() error
}
