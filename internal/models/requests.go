package models

import (
	"time"
)

// CreateUserRequest represents a request to register an auditor
type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreateUserResponse is returned after registration. The API token is
// shown exactly once, at creation.
type CreateUserResponse struct {
	User     *User  `json:"user"`
	APIToken string `json:"api_token"`
}

// CreateContestRequest represents a request to create a contest
type CreateContestRequest struct {
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// CreateBugRequest represents a request to record a bug in a contest
type CreateBugRequest struct {
	Severity     Severity `json:"severity"`
	Description  string   `json:"description,omitempty"`
	ReportedByID int64    `json:"reported_by_id"`
}

// InvalidSubmissionsRequest carries the count of invalid reports to penalize
type InvalidSubmissionsRequest struct {
	Count int `json:"count"`
}

// ListFilters defines pagination for listing users
type ListFilters struct {
	Limit  int
	Offset int
}
