package api

import (
	"context"

	"github.com/audithq/contest-engine/internal/models"
)

type contextKey string

const userContextKey contextKey = "auth_user"

// UserFromContext extracts the authenticated User from context
func UserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(userContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// ContextWithUser adds the authenticated User to context
func ContextWithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
