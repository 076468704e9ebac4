package rating

import "errors"

// Common errors. Handlers map these onto HTTP statuses: not-found errors to
// 404, invalid-state errors to 400, conflicts to 409.
var (
	ErrContestNotFound  = errors.New("contest not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrBugNotFound      = errors.New("bug not found")
	ErrNoParticipants   = errors.New("contest has no participants")
	ErrContestEnded     = errors.New("contest has ended")
	ErrContestRunning   = errors.New("contest is still running")
	ErrAlreadySignedUp  = errors.New("user is already signed up for this contest")
	ErrSignupNotFound   = errors.New("signup record not found")
	ErrRatingsProcessed = errors.New("contest ratings have already been processed")
	ErrDaysProcessed    = errors.New("participation days have already been processed")
)
