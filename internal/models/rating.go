package models

import (
	"strings"
	"time"
)

// Severity classifies a bug's impact
type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Weight returns the scoring weight for the severity.
// Unrecognized severities fall back to the medium weight.
func (s Severity) Weight() float64 {
	switch Severity(strings.ToLower(string(s))) {
	case SeverityCritical:
		return 2.0
	case SeverityHigh:
		return 1.5
	default:
		return 1.0
	}
}

// Bug represents a defect discovered during a contest
type Bug struct {
	ID           int64     `json:"id"`
	ContestID    int64     `json:"contest_id"`
	Severity     Severity  `json:"severity"`
	Description  string    `json:"description,omitempty"`
	ReportedByID int64     `json:"reported_by_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// Finding is one user's report of one bug in one contest. Multiple users
// may report the same bug; those are duplicates and reduce the reward.
type Finding struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	BugID     int64     `json:"bug_id"`
	ContestID int64     `json:"contest_id"`
	CreatedAt time.Time `json:"created_at"`

	// Severity of the referenced bug, joined in by the storage layer
	Severity Severity `json:"severity,omitempty"`
}

// RatingEntry is one immutable row of the rating ledger. A user's current
// rating is the sum of (after - before) over all their entries; rows are
// never mutated or deleted.
type RatingEntry struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	ContestID    int64     `json:"contest_id"`
	RatingBefore int       `json:"rating_before"`
	RatingAfter  int       `json:"rating_after"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
}

// Delta returns the rating change this entry records
func (e *RatingEntry) Delta() int {
	return e.RatingAfter - e.RatingBefore
}

// RatingTotal is one leaderboard row: a user and their summed ledger deltas
type RatingTotal struct {
	UserID int64 `json:"user_id"`
	Total  int   `json:"total"`
}
