package rating

import (
	"context"
	"fmt"

	"github.com/audithq/contest-engine/internal/models"
	"github.com/audithq/contest-engine/internal/storage"
)

// Tier boundaries: leaderboard ranks 1-30 are top tier, 31-100 mid tier,
// everyone else base tier
const (
	topTierSize     = 30
	leaderboardSize = 100
)

// Classifier reassigns user tiers from the global leaderboard.
//
// Known consistency gap: the leaderboard query and the role writes are not
// serialized against concurrent ledger appends, so a write that lands
// between them can shift who is in the top 30 relative to final standings.
// The processor avoids this by running classification in the same
// transaction as the rating pass; callers outside that path inherit the gap.
type Classifier struct {
	repo storage.Repository
}

// NewClassifier creates a role classifier
func NewClassifier(repo storage.Repository) *Classifier {
	return &Classifier{repo: repo}
}

// TierForRank returns the tier for a zero-based leaderboard rank.
// Ranks beyond the leaderboard (or absent from it) are base tier.
func TierForRank(rank int) models.Role {
	switch {
	case rank < topTierSize:
		return models.RoleTop
	case rank < leaderboardSize:
		return models.RoleMid
	default:
		return models.RoleBase
	}
}

// Reclassify recomputes the tier of each candidate from the leaderboard and
// persists only the users whose role changed, in one bulk write. The
// leaderboard orders by summed ledger deltas descending with ties broken by
// user ID ascending, so identical ledger state always yields identical
// tier boundaries.
func (c *Classifier) Reclassify(ctx context.Context, candidates []*models.User) ([]*models.User, error) {
	totals, err := c.repo.RatingTotals(ctx, leaderboardSize)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}

	tierByUser := make(map[int64]models.Role, len(totals))
	for rank, t := range totals {
		tierByUser[t.UserID] = TierForRank(rank)
	}

	var changed []*models.User
	for _, user := range candidates {
		newRole, ok := tierByUser[user.ID]
		if !ok {
			newRole = models.RoleBase
		}

		if user.Role != newRole {
			user.Role = newRole
			changed = append(changed, user)
		}
	}

	if len(changed) > 0 {
		if err := c.repo.SaveUserRoles(ctx, changed); err != nil {
			return nil, fmt.Errorf("failed to save roles: %w", err)
		}
	}

	return changed, nil
}

// withRepo returns a copy of the classifier bound to a different repository
func (c *Classifier) withRepo(repo storage.Repository) *Classifier {
	return &Classifier{repo: repo}
}
