package shared

import "context"

type userIDContextKey struct{}

// ContextWithUserID stores the authenticated user's id in context.
func ContextWithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDContextKey{}, userID)
}

// UserIDFromContext extracts the authenticated user's id, zero when absent.
func UserIDFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(userIDContextKey{}).(int64)
	return id
}
