package rating

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/audithq/contest-engine/internal/models"
	"github.com/audithq/contest-engine/internal/storage"
)

// LeaderboardCache caches rating totals and must be invalidated whenever a
// ledger entry is appended. A nil cache disables caching.
type LeaderboardCache interface {
	Get(ctx context.Context) ([]models.RatingTotal, bool)
	Set(ctx context.Context, totals []models.RatingTotal)
	Invalidate(ctx context.Context)
}

// Processor orchestrates the per-contest batch jobs and the signup
// registry. Each pass runs inside one repository transaction; the role
// pass observes the fully written ledger of the rating pass.
type Processor struct {
	repo       storage.Repository
	engine     *Engine
	classifier *Classifier
	cache      LeaderboardCache
}

// NewProcessor creates a contest processor. cache may be nil.
func NewProcessor(repo storage.Repository, engine *Engine, classifier *Classifier, cache LeaderboardCache) *Processor {
	return &Processor{
		repo:       repo,
		engine:     engine,
		classifier: classifier,
		cache:      cache,
	}
}

// Signup enrolls a user in a contest with the current timestamp.
// Signups are allowed any time before the contest ends, including before
// it starts; the recorded timestamp is the sole input to the
// participation-days computation.
func (p *Processor) Signup(ctx context.Context, contestID, userID int64) error {
	now := time.Now().UTC()

	contest, err := p.repo.GetContest(ctx, contestID)
	if err != nil {
		return err
	}
	if contest == nil {
		return ErrContestNotFound
	}

	if contest.HasEnded(now) {
		return ErrContestEnded
	}

	user, err := p.repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	existing, err := p.repo.GetSignup(ctx, userID, contestID)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrAlreadySignedUp
	}

	signup := &models.Signup{
		UserID:     userID,
		ContestID:  contestID,
		SignupDate: now,
	}
	if err := p.repo.CreateSignup(ctx, signup); err != nil {
		return err
	}

	slog.Info("user signed up for contest", "user_id", userID, "contest_id", contestID)
	return nil
}

// participantResult holds a participant's outcome computed during the
// snapshot phase of a rating pass
type participantResult struct {
	user         *models.User
	hasFindings  bool
	ratingBefore int
	delta        int
}

// ProcessContest runs the rating pass followed by the role pass, atomically.
// Every participant's delta is computed against the ledger as it stood at
// pass start, then all entries are appended, then roles are reclassified
// against the fully updated ledger. Returns the number of participants
// processed. Reprocessing a contest fails with ErrRatingsProcessed.
func (p *Processor) ProcessContest(ctx context.Context, contestID int64) (int, error) {
	var processed int

	err := p.repo.WithTx(ctx, func(tx storage.Repository) error {
		contest, err := tx.GetContest(ctx, contestID)
		if err != nil {
			return err
		}
		if contest == nil {
			return ErrContestNotFound
		}
		if contest.RatingsProcessedAt != nil {
			return ErrRatingsProcessed
		}

		participants, err := tx.ListParticipants(ctx, contestID)
		if err != nil {
			return err
		}
		if len(participants) == 0 {
			return ErrNoParticipants
		}

		engine := p.engine.withRepo(tx)

		// Snapshot phase: compute every delta before appending anything
		results := make([]participantResult, 0, len(participants))
		for _, user := range participants {
			findings, err := tx.ListUserFindings(ctx, user.ID, contestID)
			if err != nil {
				return err
			}

			res := participantResult{user: user, hasFindings: len(findings) > 0}
			if res.hasFindings {
				res.ratingBefore, err = tx.CurrentRating(ctx, user.ID)
				if err != nil {
					return err
				}
				res.delta, err = engine.ComputeDelta(ctx, user, contest, findings)
				if err != nil {
					return err
				}
			}
			results = append(results, res)
		}

		// Write phase
		now := time.Now().UTC()
		for _, res := range results {
			if res.hasFindings {
				entry := &models.RatingEntry{
					UserID:       res.user.ID,
					ContestID:    contestID,
					RatingBefore: res.ratingBefore,
					RatingAfter:  res.ratingBefore + res.delta,
					Reason:       fmt.Sprintf("contest %s result", contest.Name),
					CreatedAt:    now,
				}
				if err := tx.AppendRatingEntry(ctx, entry); err != nil {
					return err
				}
			} else {
				penalized, err := engine.ApplyParticipationPenalty(ctx, res.user, contest)
				if err != nil {
					return err
				}
				if penalized {
					slog.Info("participation penalty applied",
						"user_id", res.user.ID,
						"contest_id", contestID,
						"tier", res.user.Role,
					)
				}
			}
		}

		// Role pass: runs after every ledger write of the rating pass
		changed, err := p.classifier.withRepo(tx).Reclassify(ctx, participants)
		if err != nil {
			return err
		}

		if err := tx.MarkRatingsProcessed(ctx, contestID, now); err != nil {
			return err
		}

		processed = len(participants)
		slog.Info("contest ratings processed",
			"contest_id", contestID,
			"participants", processed,
			"roles_changed", len(changed),
		)
		return nil
	})
	if err != nil {
		return 0, err
	}

	p.invalidateCache(ctx)
	return processed, nil
}

// ProcessParticipationDays credits each participant with the inclusive
// number of days between their signup and the contest end. Only valid once
// the contest has ended; a participant without a signup record fails the
// whole pass.
func (p *Processor) ProcessParticipationDays(ctx context.Context, contestID int64) error {
	return p.repo.WithTx(ctx, func(tx storage.Repository) error {
		contest, err := tx.GetContest(ctx, contestID)
		if err != nil {
			return err
		}
		if contest == nil {
			return ErrContestNotFound
		}

		now := time.Now().UTC()
		if !contest.HasEnded(now) {
			return ErrContestRunning
		}
		if contest.DaysProcessedAt != nil {
			return ErrDaysProcessed
		}

		participants, err := tx.ListParticipants(ctx, contestID)
		if err != nil {
			return err
		}

		for _, user := range participants {
			signup, err := tx.GetSignup(ctx, user.ID, contestID)
			if err != nil {
				return err
			}
			if signup == nil || signup.SignupDate.IsZero() {
				return fmt.Errorf("%w for user %d", ErrSignupNotFound, user.ID)
			}

			days := ParticipationDays(signup.SignupDate, contest.EndDate)
			if err := tx.AddParticipationDays(ctx, user.ID, days); err != nil {
				return err
			}
		}

		if err := tx.MarkDaysProcessed(ctx, contestID, now); err != nil {
			return err
		}

		slog.Info("participation days processed",
			"contest_id", contestID,
			"participants", len(participants),
		)
		return nil
	})
}

// ParticipationDays counts days between signup and contest end, inclusive
// of both, clamped to never go negative. Whole days are floored, so a
// signup 10 days before the end accrues 11 days.
func ParticipationDays(signup, contestEnd time.Time) int {
	days := int(math.Floor(contestEnd.Sub(signup).Hours()/24)) + 1
	if days < 0 {
		return 0
	}
	return days
}

// ApplyInvalidSubmissions applies the invalid-submission penalty for a user
// in a contest and returns the user's new rating
func (p *Processor) ApplyInvalidSubmissions(ctx context.Context, contestID, userID int64, count int) (int, error) {
	contest, err := p.repo.GetContest(ctx, contestID)
	if err != nil {
		return 0, err
	}
	if contest == nil {
		return 0, ErrContestNotFound
	}

	user, err := p.repo.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if user == nil {
		return 0, ErrUserNotFound
	}

	newRating, err := p.engine.ApplyInvalidSubmissionPenalty(ctx, user, contest, count)
	if err != nil {
		return 0, err
	}

	p.invalidateCache(ctx)
	return newRating, nil
}

// Leaderboard returns the rating totals, served from the cache when warm
func (p *Processor) Leaderboard(ctx context.Context, limit int) ([]models.RatingTotal, error) {
	if p.cache != nil {
		if totals, ok := p.cache.Get(ctx); ok {
			if limit > 0 && len(totals) > limit {
				totals = totals[:limit]
			}
			return totals, nil
		}
	}

	totals, err := p.repo.RatingTotals(ctx, leaderboardSize)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		p.cache.Set(ctx, totals)
	}

	if limit > 0 && len(totals) > limit {
		totals = totals[:limit]
	}
	return totals, nil
}

func (p *Processor) invalidateCache(ctx context.Context) {
	if p.cache != nil {
		p.cache.Invalidate(ctx)
	}
}
