package rating

import (
	"context"
	"fmt"
	"time"

	"github.com/audithq/contest-engine/internal/models"
	"github.com/audithq/contest-engine/internal/storage"
)

// Penalty constants
const (
	// invalidReportPenalty is the flat deduction per invalid submission
	invalidReportPenalty = 10

	// noFindingsPenalty is the flat deduction for privileged tiers that
	// report nothing while others find bugs
	noFindingsPenalty = 20
)

// InvalidSubmissionsReason is the ledger reason for Contract A penalties
const InvalidSubmissionsReason = "penalty for invalid submissions"

// ApplyInvalidSubmissionPenalty deducts a flat penalty per invalid report,
// clamping the resulting rating at 0, and appends the ledger entry.
// Returns the new rating.
func (e *Engine) ApplyInvalidSubmissionPenalty(ctx context.Context, user *models.User, contest *models.Contest, invalidCount int) (int, error) {
	current, err := e.repo.CurrentRating(ctx, user.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to get current rating: %w", err)
	}

	newRating := current - invalidReportPenalty*invalidCount
	if newRating < 0 {
		newRating = 0
	}

	entry := &models.RatingEntry{
		UserID:       user.ID,
		ContestID:    contest.ID,
		RatingBefore: current,
		RatingAfter:  newRating,
		Reason:       InvalidSubmissionsReason,
		CreatedAt:    time.Now().UTC(),
	}
	if err := e.repo.AppendRatingEntry(ctx, entry); err != nil {
		return 0, fmt.Errorf("failed to append penalty entry: %w", err)
	}

	return newRating, nil
}

// ApplyParticipationPenalty deducts a flat penalty from top- and mid-tier
// users who reported no bugs in a contest where other participants did.
// Base-tier users are never penalized this way; only privileged tiers are
// expected to actively hunt. Returns true if a penalty was applied.
func (e *Engine) ApplyParticipationPenalty(ctx context.Context, user *models.User, contest *models.Contest) (bool, error) {
	if !user.Role.IsPrivileged() {
		return false, nil
	}

	othersFound, err := e.repo.CountContestFindings(ctx, contest.ID, user.ID)
	if err != nil {
		return false, fmt.Errorf("failed to count contest findings: %w", err)
	}

	userFindings, err := e.repo.ListUserFindings(ctx, user.ID, contest.ID)
	if err != nil {
		return false, fmt.Errorf("failed to list user findings: %w", err)
	}

	if othersFound == 0 || len(userFindings) > 0 {
		return false, nil
	}

	current, err := e.repo.CurrentRating(ctx, user.ID)
	if err != nil {
		return false, fmt.Errorf("failed to get current rating: %w", err)
	}

	newRating := current - noFindingsPenalty
	if newRating < 0 {
		newRating = 0
	}

	entry := &models.RatingEntry{
		UserID:       user.ID,
		ContestID:    contest.ID,
		RatingBefore: current,
		RatingAfter:  newRating,
		Reason:       fmt.Sprintf("penalty for %s tier not finding bugs", user.Role),
		CreatedAt:    time.Now().UTC(),
	}
	if err := e.repo.AppendRatingEntry(ctx, entry); err != nil {
		return false, fmt.Errorf("failed to append penalty entry: %w", err)
	}

	return true, nil
}

// withRepo returns a copy of the engine bound to a different repository,
// used by the processor to run an engine inside a transaction
func (e *Engine) withRepo(repo storage.Repository) *Engine {
	return &Engine{repo: repo, k: e.k}
}
