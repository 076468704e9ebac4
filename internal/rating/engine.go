// Package rating implements the contest scoring core: the ELO-style rating
// engine, the penalty policy, the leaderboard role classifier, and the
// batch processor that orchestrates them per contest.
package rating

import (
	"context"
	"fmt"
	"math"

	"github.com/audithq/contest-engine/internal/models"
	"github.com/audithq/contest-engine/internal/storage"
)

// Scoring constants
const (
	// DefaultKFactor controls the magnitude of rating changes per finding
	DefaultKFactor = 32

	// DefaultOpponentRating is used when no opponent has any rating history
	DefaultOpponentRating = 100

	// duplicatePenaltyRate is subtracted per other reporter of the same bug
	duplicatePenaltyRate = 0.1
)

// Engine computes rating deltas from a user's findings in a contest.
// It reads the ledger and opponent pool through the repository but never
// writes; persisting the resulting entry is the caller's responsibility.
type Engine struct {
	repo storage.Repository
	k    float64
}

// NewEngine creates a rating engine with the default K-factor
func NewEngine(repo storage.Repository) *Engine {
	return &Engine{repo: repo, k: DefaultKFactor}
}

// WinProbability is the standard logistic ELO expectation
func WinProbability(userRating, opponentRating float64) float64 {
	return 1 / (1 + math.Pow(10, (opponentRating-userRating)/400))
}

// opponentAverage returns the arithmetic mean of the opponent ratings, or
// the default baseline when no opponent rating is known
func opponentAverage(ratings []int) float64 {
	if len(ratings) == 0 {
		return DefaultOpponentRating
	}

	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return float64(sum) / float64(len(ratings))
}

// ComputeDelta returns the total rating change for the user's findings in
// the contest. Each finding contributes
//
//	K_scaled * (severityWeight * (1 - winProbability) - duplicatePenalty)
//
// truncated toward zero, and the contributions are summed. The user's
// rating and the opponent pool are read from the ledger as it stands when
// this is called; the processor computes all participants' deltas before
// appending any entries so a pass sees one consistent snapshot.
func (e *Engine) ComputeDelta(ctx context.Context, user *models.User, contest *models.Contest, findings []*models.Finding) (int, error) {
	userRating, err := e.repo.CurrentRating(ctx, user.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to get current rating: %w", err)
	}

	opponents, err := e.repo.OpponentRatings(ctx, contest.ID, user.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to get opponent ratings: %w", err)
	}

	opponentRating := opponentAverage(opponents)
	winProb := WinProbability(float64(userRating), opponentRating)
	kScaled := e.k * user.Role.KScale()

	total := 0
	for _, f := range findings {
		duplicates, err := e.repo.CountDuplicateReports(ctx, f.BugID, user.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to count duplicates for bug %d: %w", f.BugID, err)
		}

		value := f.Severity.Weight()*(1-winProb) - duplicatePenaltyRate*float64(duplicates)

		// int conversion truncates toward zero, for negative values too
		total += int(kScaled * value)
	}

	return total, nil
}
