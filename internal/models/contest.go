package models

import (
	"time"
)

// Contest represents a time-boxed bug hunting contest
type Contest struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	// Idempotency markers set by the batch passes
	RatingsProcessedAt *time.Time `json:"ratings_processed_at,omitempty"`
	DaysProcessedAt    *time.Time `json:"days_processed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// HasEnded reports whether the contest end has passed at the given instant
func (c *Contest) HasEnded(now time.Time) bool {
	return c.EndDate.Before(now)
}

// Signup records one user's enrollment in one contest.
// It is a join entity with its own identity; the signup timestamp is the
// sole input to the participation-days computation.
type Signup struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	ContestID  int64     `json:"contest_id"`
	SignupDate time.Time `json:"signup_date"`
}
