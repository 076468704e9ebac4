package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/audithq/contest-engine/internal/models"
	"github.com/audithq/contest-engine/internal/rating"
	"github.com/audithq/contest-engine/internal/storage"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// respondDomainError maps the rating package's error taxonomy onto HTTP
// statuses: not-found 404, invalid-state 400, conflict 409
func respondDomainError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, rating.ErrContestNotFound):
		respondError(w, http.StatusNotFound, "not_found", "contest not found")
	case errors.Is(err, rating.ErrUserNotFound):
		respondError(w, http.StatusNotFound, "not_found", "user not found")
	case errors.Is(err, rating.ErrBugNotFound):
		respondError(w, http.StatusNotFound, "not_found", "bug not found")
	case errors.Is(err, rating.ErrNoParticipants):
		respondError(w, http.StatusBadRequest, "invalid_state", "no participants found for this contest")
	case errors.Is(err, rating.ErrContestEnded):
		respondError(w, http.StatusBadRequest, "invalid_state", "contest has ended already")
	case errors.Is(err, rating.ErrContestRunning):
		respondError(w, http.StatusBadRequest, "invalid_state", "contest is still running")
	case errors.Is(err, rating.ErrSignupNotFound):
		respondError(w, http.StatusBadRequest, "invalid_state", err.Error())
	case errors.Is(err, rating.ErrAlreadySignedUp):
		respondError(w, http.StatusConflict, "conflict", "user is already signed up for this contest")
	case errors.Is(err, rating.ErrRatingsProcessed):
		respondError(w, http.StatusConflict, "conflict", "contest ratings have already been processed")
	case errors.Is(err, rating.ErrDaysProcessed):
		respondError(w, http.StatusConflict, "conflict", "participation days have already been processed")
	default:
		return false
	}
	return true
}

func parseIDParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "service not ready")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// User handlers

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.Username == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "username is required")
		return
	}

	if len(req.Password) < 8 {
		respondError(w, http.StatusBadRequest, "validation_error", "password must be at least 8 characters")
		return
	}

	existing, err := s.repo.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		slog.Error("failed to check username", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to create user")
		return
	}
	if existing != nil {
		respondError(w, http.StatusConflict, "conflict", "username already registered")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to create user")
		return
	}

	user := &models.User{
		Username:       req.Username,
		HashedPassword: string(hashed),
		APIToken:       "ct_" + uuid.NewString(),
		Role:           models.RoleBase,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.repo.CreateUser(r.Context(), user); err != nil {
		if storage.IsUniqueViolation(err) {
			respondError(w, http.StatusConflict, "conflict", "username already registered")
			return
		}
		slog.Error("failed to create user", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to create user")
		return
	}

	// The token is returned once, at creation
	respondJSON(w, http.StatusCreated, models.CreateUserResponse{
		User:     user,
		APIToken: user.APIToken,
	})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	filters := models.ListFilters{Limit: 10}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filters.Limit = limit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filters.Offset = offset
		}
	}

	users, err := s.repo.ListUsers(r.Context(), filters)
	if err != nil {
		slog.Error("failed to list users", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list users")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"total": len(users),
	})
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// Contest handlers

func (s *Server) handleCreateContest(w http.ResponseWriter, r *http.Request) {
	var req models.CreateContestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "name is required")
		return
	}

	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		respondError(w, http.StatusBadRequest, "validation_error", "start_date and end_date are required")
		return
	}

	if req.EndDate.Before(req.StartDate) {
		respondError(w, http.StatusBadRequest, "validation_error", "end_date must not be before start_date")
		return
	}

	contest := &models.Contest{
		Name:      req.Name,
		StartDate: req.StartDate.UTC(),
		EndDate:   req.EndDate.UTC(),
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.CreateContest(r.Context(), contest); err != nil {
		if storage.IsUniqueViolation(err) {
			respondError(w, http.StatusConflict, "conflict", "contest name already exists")
			return
		}
		slog.Error("failed to create contest", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to create contest")
		return
	}

	respondJSON(w, http.StatusCreated, contest)
}

func (s *Server) handleListContests(w http.ResponseWriter, r *http.Request) {
	contests, err := s.repo.ListContests(r.Context())
	if err != nil {
		slog.Error("failed to list contests", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list contests")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"contests": contests,
		"total":    len(contests),
	})
}

func (s *Server) handleGetContest(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "validation_error", "contest id is required")
		return
	}

	contest, err := s.repo.GetContest(r.Context(), id)
	if err != nil {
		slog.Error("failed to get contest", "error", err, "id", id)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get contest")
		return
	}
	if contest == nil {
		respondError(w, http.StatusNotFound, "not_found", "contest not found")
		return
	}

	respondJSON(w, http.StatusOK, contest)
}

// Signup handler

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	contestID, ok := parseIDParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "validation_error", "contest id is required")
		return
	}

	userID, ok := parseIDParam(r, "userID")
	if !ok {
		respondError(w, http.StatusBadRequest, "validation_error", "user id is required")
		return
	}

	if err := s.processor.Signup(r.Context(), contestID, userID); err != nil {
		if respondDomainError(w, err) {
			return
		}
		slog.Error("failed to sign up", "error", err, "contest_id", contestID, "user_id", userID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to sign up")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "user signed up for contest",
	})
}

// Processing handlers

func (s *Server) handleProcessRatings(w http.ResponseWriter, r *http.Request) {
	contestID, ok := parseIDParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "validation_error", "contest id is required")
		return
	}

	processed, err := s.processor.ProcessContest(r.Context(), contestID)
	if err != nil {
		if respondDomainError(w, err) {
			return
		}
		slog.Error("failed to process contest ratings", "error", err, "contest_id", contestID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to process contest ratings")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "contest ratings processed",
		"participants": processed,
	})
}

func (s *Server) handleProcessParticipationDays(w http.ResponseWriter, r *http.Request) {
	contestID, ok := parseIDParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "validation_error", "contest id is required")
		return
	}

	if err := s.processor.ProcessParticipationDays(r.Context(), contestID); err != nil {
		if respondDomainError(w, err) {
			return
		}
		slog.Error("failed to process participation days", "error", err, "contest_id", contestID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to process participation days")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "participation days processed",
	})
}

func (s *Server) handleInvalidSubmissions(w http.ResponseWriter, r *http.Request) {
	contestID, ok := parseIDParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "validation_error", "contest id is required")
		return
	}

	userID, ok := parseIDParam(r, "userID")
	if !ok {
		respondError(w, http.StatusBadRequest, "validation_error", "user id is required")
		return
	}

	var req models.InvalidSubmissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.Count <= 0 {
		respondError(w, http.StatusBadRequest, "validation_error", "count must be positive")
		return
	}

	newRating, err := s.processor.ApplyInvalidSubmissions(r.Context(), contestID, userID, req.Count)
	if err != nil {
		if respondDomainError(w, err) {
			return
		}
		slog.Error("failed to apply penalty", "error", err, "contest_id", contestID, "user_id", userID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to apply penalty")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "penalty applied",
		"new_rating": newRating,
	})
}

// Bug and finding handlers

func (s *Server) handleCreateBug(w http.ResponseWriter, r *http.Request) {
	contestID, ok := parseIDParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "validation_error", "contest id is required")
		return
	}

	var req models.CreateBugRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.Severity == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "severity is required")
		return
	}

	if req.ReportedByID <= 0 {
		respondError(w, http.StatusBadRequest, "validation_error", "reported_by_id is required")
		return
	}

	contest, err := s.repo.GetContest(r.Context(), contestID)
	if err != nil {
		slog.Error("failed to get contest", "error", err, "id", contestID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to create bug")
		return
	}
	if contest == nil {
		respondError(w, http.StatusNotFound, "not_found", "contest not found")
		return
	}

	reporter, err := s.repo.GetUser(r.Context(), req.ReportedByID)
	if err != nil {
		slog.Error("failed to get reporter", "error", err, "id", req.ReportedByID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to create bug")
		return
	}
	if reporter == nil {
		respondError(w, http.StatusNotFound, "not_found", "user not found")
		return
	}

	bug := &models.Bug{
		ContestID:    contestID,
		Severity:     req.Severity,
		Description:  req.Description,
		ReportedByID: req.ReportedByID,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.CreateBug(r.Context(), bug); err != nil {
		slog.Error("failed to create bug", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to create bug")
		return
	}

	respondJSON(w, http.StatusCreated, bug)
}

func (s *Server) handleReportBug(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	bugID, ok := parseIDParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "validation_error", "bug id is required")
		return
	}

	bug, err := s.repo.GetBug(r.Context(), bugID)
	if err != nil {
		slog.Error("failed to get bug", "error", err, "id", bugID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to report bug")
		return
	}
	if bug == nil {
		respondError(w, http.StatusNotFound, "not_found", "bug not found")
		return
	}

	finding := &models.Finding{
		UserID:    user.ID,
		BugID:     bug.ID,
		ContestID: bug.ContestID,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.CreateFinding(r.Context(), finding); err != nil {
		if storage.IsUniqueViolation(err) {
			respondError(w, http.StatusConflict, "conflict", "user already reported this bug")
			return
		}
		slog.Error("failed to create finding", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to report bug")
		return
	}

	respondJSON(w, http.StatusCreated, finding)
}

// Leaderboard handler

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 100 // default
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	totals, err := s.processor.Leaderboard(r.Context(), limit)
	if err != nil {
		slog.Error("failed to get leaderboard", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get leaderboard")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"leaderboard": totals,
		"total":       len(totals),
	})
}
