package models

import (
	"time"
)

// Role is the leaderboard tier assigned to an auditor.
// It is derived from global rank by the classifier, never set directly.
type Role string

const (
	RoleBase Role = "base"
	RoleMid  Role = "mid"
	RoleTop  Role = "top"
)

// IsValid reports whether the role is one of the known tiers.
func (r Role) IsValid() bool {
	return r == RoleBase || r == RoleMid || r == RoleTop
}

// IsPrivileged returns true for tiers that are expected to actively hunt
// and therefore face the non-participation penalty.
func (r Role) IsPrivileged() bool {
	return r == RoleTop || r == RoleMid
}

// KScale returns the K-factor multiplier for the tier. Higher tiers gain
// less per finding, which compresses rating inflation at the top.
func (r Role) KScale() float64 {
	switch r {
	case RoleTop:
		return 0.75
	case RoleMid:
		return 0.90
	default:
		return 1.0
	}
}

// User represents an auditor account
type User struct {
	ID                int64     `json:"id"`
	Username          string    `json:"username"`
	HashedPassword    string    `json:"-"` // Never serialize
	APIToken          string    `json:"-"` // Never serialize
	Role              Role      `json:"role"`
	ParticipationDays int       `json:"participation_days"`
	CreatedAt         time.Time `json:"created_at"`
}

// MaskedToken returns the first 8 characters of the API token for logging
func (u *User) MaskedToken() string {
	if len(u.APIToken) < 8 {
		return "***"
	}
	return u.APIToken[:8] + "..."
}
