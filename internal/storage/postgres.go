package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/audithq/contest-engine/internal/models"
)

// querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx,
// so the same query methods can run pooled or inside a transaction
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
	db   querier
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	// Set pool configuration
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 25 // default
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 5 // default
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool, db: pool}, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// WithTx runs fn against a transaction-scoped copy of the repository
func (r *PostgresRepository) WithTx(ctx context.Context, fn func(Repository) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txRepo := &PostgresRepository{pool: r.pool, db: tx}
	if err := fn(txRepo); err != nil {
		tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// --- Users ---

// CreateUser inserts a new user and fills in the generated ID
func (r *PostgresRepository) CreateUser(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (username, hashed_password, api_token, role, participation_days, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		u.Username,
		u.HashedPassword,
		u.APIToken,
		string(u.Role),
		u.ParticipationDays,
		u.CreatedAt,
	).Scan(&u.ID)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

const userColumns = `id, username, hashed_password, api_token, role, participation_days, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var roleStr string

	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.HashedPassword,
		&u.APIToken,
		&roleStr,
		&u.ParticipationDays,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	u.Role = models.Role(roleStr)
	return &u, nil
}

// GetUser retrieves a user by ID
func (r *PostgresRepository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

// GetUserByUsername retrieves a user by username
func (r *PostgresRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(r.db.QueryRow(ctx, query, username))
}

// GetUserByToken retrieves a user by their API token
func (r *PostgresRepository) GetUserByToken(ctx context.Context, token string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE api_token = $1`
	return scanUser(r.db.QueryRow(ctx, query, token))
}

// ListUsers returns users ordered by ID with pagination
func (r *PostgresRepository) ListUsers(ctx context.Context, filters models.ListFilters) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id`
	args := make([]any, 0)
	argNum := 1

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filters.Limit)
		argNum++
	}

	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filters.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

// SaveUserRoles bulk-updates the role of each given user
func (r *PostgresRepository) SaveUserRoles(ctx context.Context, users []*models.User) error {
	for _, u := range users {
		result, err := r.db.Exec(ctx, `UPDATE users SET role = $2 WHERE id = $1`, u.ID, string(u.Role))
		if err != nil {
			return fmt.Errorf("failed to update role for user %d: %w", u.ID, err)
		}
		if result.RowsAffected() == 0 {
			return fmt.Errorf("user not found: %d", u.ID)
		}
	}
	return nil
}

// AddParticipationDays increments a user's cumulative participation counter
func (r *PostgresRepository) AddParticipationDays(ctx context.Context, userID int64, days int) error {
	query := `UPDATE users SET participation_days = participation_days + $2 WHERE id = $1`

	result, err := r.db.Exec(ctx, query, userID, days)
	if err != nil {
		return fmt.Errorf("failed to add participation days: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %d", userID)
	}

	return nil
}

// --- Contests ---

const contestColumns = `id, name, start_date, end_date, ratings_processed_at, days_processed_at, created_at`

func scanContest(row pgx.Row) (*models.Contest, error) {
	var c models.Contest
	var ratingsAt, daysAt *time.Time

	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.StartDate,
		&c.EndDate,
		&ratingsAt,
		&daysAt,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to scan contest: %w", err)
	}

	c.RatingsProcessedAt = ratingsAt
	c.DaysProcessedAt = daysAt
	return &c, nil
}

// CreateContest inserts a new contest and fills in the generated ID
func (r *PostgresRepository) CreateContest(ctx context.Context, c *models.Contest) error {
	query := `
		INSERT INTO contests (name, start_date, end_date, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query, c.Name, c.StartDate, c.EndDate, c.CreatedAt).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to create contest: %w", err)
	}

	return nil
}

// GetContest retrieves a contest by ID
func (r *PostgresRepository) GetContest(ctx context.Context, id int64) (*models.Contest, error) {
	query := `SELECT ` + contestColumns + ` FROM contests WHERE id = $1`
	return scanContest(r.db.QueryRow(ctx, query, id))
}

// GetContestByName retrieves a contest by its unique name
func (r *PostgresRepository) GetContestByName(ctx context.Context, name string) (*models.Contest, error) {
	query := `SELECT ` + contestColumns + ` FROM contests WHERE name = $1`
	return scanContest(r.db.QueryRow(ctx, query, name))
}

// ListContests returns all contests ordered by start date descending
func (r *PostgresRepository) ListContests(ctx context.Context) ([]*models.Contest, error) {
	query := `SELECT ` + contestColumns + ` FROM contests ORDER BY start_date DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list contests: %w", err)
	}
	defer rows.Close()

	var contests []*models.Contest
	for rows.Next() {
		c, err := scanContest(rows)
		if err != nil {
			return nil, err
		}
		contests = append(contests, c)
	}

	return contests, rows.Err()
}

// MarkRatingsProcessed records that the rating pass completed for a contest
func (r *PostgresRepository) MarkRatingsProcessed(ctx context.Context, contestID int64, at time.Time) error {
	return r.markProcessed(ctx, contestID, "ratings_processed_at", at)
}

// MarkDaysProcessed records that the participation-days pass completed
func (r *PostgresRepository) MarkDaysProcessed(ctx context.Context, contestID int64, at time.Time) error {
	return r.markProcessed(ctx, contestID, "days_processed_at", at)
}

func (r *PostgresRepository) markProcessed(ctx context.Context, contestID int64, column string, at time.Time) error {
	query := fmt.Sprintf(`UPDATE contests SET %s = $2 WHERE id = $1`, column)

	result, err := r.db.Exec(ctx, query, contestID, at)
	if err != nil {
		return fmt.Errorf("failed to mark contest processed: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("contest not found: %d", contestID)
	}

	return nil
}

// ListEndedUnprocessed returns ended contests whose rating pass has not run
func (r *PostgresRepository) ListEndedUnprocessed(ctx context.Context, now time.Time) ([]*models.Contest, error) {
	query := `
		SELECT ` + contestColumns + `
		FROM contests
		WHERE end_date < $1 AND ratings_processed_at IS NULL
		ORDER BY end_date ASC
	`

	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed contests: %w", err)
	}
	defer rows.Close()

	var contests []*models.Contest
	for rows.Next() {
		c, err := scanContest(rows)
		if err != nil {
			return nil, err
		}
		contests = append(contests, c)
	}

	return contests, rows.Err()
}

// --- Signups ---

// CreateSignup inserts a signup row; the unique constraint on
// (user_id, contest_id) rejects duplicates
func (r *PostgresRepository) CreateSignup(ctx context.Context, s *models.Signup) error {
	query := `
		INSERT INTO signups (user_id, contest_id, signup_date)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query, s.UserID, s.ContestID, s.SignupDate).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("failed to create signup: %w", err)
	}

	return nil
}

// GetSignup retrieves the signup for a (user, contest) pair
func (r *PostgresRepository) GetSignup(ctx context.Context, userID, contestID int64) (*models.Signup, error) {
	query := `
		SELECT id, user_id, contest_id, signup_date
		FROM signups
		WHERE user_id = $1 AND contest_id = $2
	`

	var s models.Signup
	err := r.db.QueryRow(ctx, query, userID, contestID).Scan(&s.ID, &s.UserID, &s.ContestID, &s.SignupDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get signup: %w", err)
	}

	return &s, nil
}

// ListParticipants returns all users signed up for a contest
func (r *PostgresRepository) ListParticipants(ctx context.Context, contestID int64) ([]*models.User, error) {
	query := `
		SELECT u.id, u.username, u.hashed_password, u.api_token, u.role, u.participation_days, u.created_at
		FROM users u
		JOIN signups s ON s.user_id = u.id
		WHERE s.contest_id = $1
		ORDER BY u.id
	`

	rows, err := r.db.Query(ctx, query, contestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

// --- Bugs and findings ---

// CreateBug inserts a bug and fills in the generated ID
func (r *PostgresRepository) CreateBug(ctx context.Context, b *models.Bug) error {
	query := `
		INSERT INTO bugs (contest_id, severity, description, reported_by_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		b.ContestID,
		string(b.Severity),
		b.Description,
		b.ReportedByID,
		b.CreatedAt,
	).Scan(&b.ID)

	if err != nil {
		return fmt.Errorf("failed to create bug: %w", err)
	}

	return nil
}

// GetBug retrieves a bug by ID
func (r *PostgresRepository) GetBug(ctx context.Context, id int64) (*models.Bug, error) {
	query := `
		SELECT id, contest_id, severity, description, reported_by_id, created_at
		FROM bugs
		WHERE id = $1
	`

	var b models.Bug
	var severityStr string

	err := r.db.QueryRow(ctx, query, id).Scan(
		&b.ID,
		&b.ContestID,
		&severityStr,
		&b.Description,
		&b.ReportedByID,
		&b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get bug: %w", err)
	}

	b.Severity = models.Severity(severityStr)
	return &b, nil
}

// CreateFinding inserts a finding and fills in the generated ID
func (r *PostgresRepository) CreateFinding(ctx context.Context, f *models.Finding) error {
	query := `
		INSERT INTO findings (user_id, bug_id, contest_id, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query, f.UserID, f.BugID, f.ContestID, f.CreatedAt).Scan(&f.ID)
	if err != nil {
		return fmt.Errorf("failed to create finding: %w", err)
	}

	return nil
}

// ListUserFindings returns a user's findings in a contest with the bug
// severity joined in
func (r *PostgresRepository) ListUserFindings(ctx context.Context, userID, contestID int64) ([]*models.Finding, error) {
	query := `
		SELECT f.id, f.user_id, f.bug_id, f.contest_id, f.created_at, b.severity
		FROM findings f
		JOIN bugs b ON b.id = f.bug_id
		WHERE f.user_id = $1 AND f.contest_id = $2
		ORDER BY f.id
	`

	rows, err := r.db.Query(ctx, query, userID, contestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list findings: %w", err)
	}
	defer rows.Close()

	var findings []*models.Finding
	for rows.Next() {
		var f models.Finding
		var severityStr string

		if err := rows.Scan(&f.ID, &f.UserID, &f.BugID, &f.ContestID, &f.CreatedAt, &severityStr); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}

		f.Severity = models.Severity(severityStr)
		findings = append(findings, &f)
	}

	return findings, rows.Err()
}

// CountDuplicateReports counts how many other users reported the same bug
func (r *PostgresRepository) CountDuplicateReports(ctx context.Context, bugID, excludeUserID int64) (int, error) {
	query := `SELECT COUNT(*) FROM findings WHERE bug_id = $1 AND user_id <> $2`

	var count int
	if err := r.db.QueryRow(ctx, query, bugID, excludeUserID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count duplicate reports: %w", err)
	}

	return count, nil
}

// CountContestFindings counts findings in a contest by users other than the
// excluded one
func (r *PostgresRepository) CountContestFindings(ctx context.Context, contestID, excludeUserID int64) (int, error) {
	query := `SELECT COUNT(*) FROM findings WHERE contest_id = $1 AND user_id <> $2`

	var count int
	if err := r.db.QueryRow(ctx, query, contestID, excludeUserID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count contest findings: %w", err)
	}

	return count, nil
}

// --- Rating ledger ---

// AppendRatingEntry appends one immutable ledger row. There is no update or
// delete counterpart; the ledger is the audit trail.
func (r *PostgresRepository) AppendRatingEntry(ctx context.Context, e *models.RatingEntry) error {
	query := `
		INSERT INTO rating_entries (user_id, contest_id, rating_before, rating_after, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		e.UserID,
		e.ContestID,
		e.RatingBefore,
		e.RatingAfter,
		e.Reason,
		e.CreatedAt,
	).Scan(&e.ID)

	if err != nil {
		return fmt.Errorf("failed to append rating entry: %w", err)
	}

	return nil
}

// CurrentRating returns the sum of a user's ledger deltas (0 if none)
func (r *PostgresRepository) CurrentRating(ctx context.Context, userID int64) (int, error) {
	query := `
		SELECT COALESCE(SUM(rating_after - rating_before), 0)
		FROM rating_entries
		WHERE user_id = $1
	`

	var rating int
	if err := r.db.QueryRow(ctx, query, userID).Scan(&rating); err != nil {
		return 0, fmt.Errorf("failed to compute current rating: %w", err)
	}

	return rating, nil
}

// OpponentRatings returns the latest ledger rating of every other user with
// a finding in the contest. Users with findings but no ledger history are
// not represented; an empty result means no known opponents.
func (r *PostgresRepository) OpponentRatings(ctx context.Context, contestID, excludeUserID int64) ([]int, error) {
	query := `
		SELECT DISTINCT ON (e.user_id) e.rating_after
		FROM rating_entries e
		WHERE e.user_id IN (
			SELECT DISTINCT f.user_id
			FROM findings f
			WHERE f.contest_id = $1 AND f.user_id <> $2
		)
		ORDER BY e.user_id, e.id DESC
	`

	rows, err := r.db.Query(ctx, query, contestID, excludeUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get opponent ratings: %w", err)
	}
	defer rows.Close()

	var ratings []int
	for rows.Next() {
		var rating int
		if err := rows.Scan(&rating); err != nil {
			return nil, fmt.Errorf("failed to scan opponent rating: %w", err)
		}
		ratings = append(ratings, rating)
	}

	return ratings, rows.Err()
}

// RatingTotals returns the leaderboard: summed ledger deltas per user,
// descending, ties broken by user ID ascending for determinism
func (r *PostgresRepository) RatingTotals(ctx context.Context, limit int) ([]models.RatingTotal, error) {
	query := `
		SELECT user_id, SUM(rating_after - rating_before) AS total
		FROM rating_entries
		GROUP BY user_id
		ORDER BY total DESC, user_id ASC
	`
	args := make([]any, 0)

	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rating totals: %w", err)
	}
	defer rows.Close()

	var totals []models.RatingTotal
	for rows.Next() {
		var t models.RatingTotal
		if err := rows.Scan(&t.UserID, &t.Total); err != nil {
			return nil, fmt.Errorf("failed to scan rating total: %w", err)
		}
		totals = append(totals, t)
	}

	return totals, rows.Err()
}

// ListRatingEntries returns a user's full ledger history in creation order
func (r *PostgresRepository) ListRatingEntries(ctx context.Context, userID int64) ([]*models.RatingEntry, error) {
	query := `
		SELECT id, user_id, contest_id, rating_before, rating_after, reason, created_at
		FROM rating_entries
		WHERE user_id = $1
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rating entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.RatingEntry
	for rows.Next() {
		var e models.RatingEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.ContestID, &e.RatingBefore, &e.RatingAfter, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rating entry: %w", err)
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint error
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
