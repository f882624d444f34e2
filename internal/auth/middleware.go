package auth

import (
	"net/http"
	"strings"

	"github.com/jamii-coop/jamii-coop/internal/platform/httpx"
	"github.com/jamii-coop/jamii-coop/internal/shared"
)

// RequireBearer guards a route group with bearer-token authentication. The
// authenticated user's id lands in the request context as the recorder of
// any payment the request creates.
func RequireBearer(tokens *TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				httpx.Fail(w, http.StatusUnauthorized, "authorization header required")
				return
			}
			tokenString := strings.TrimPrefix(header, "Bearer ")
			if tokenString == header {
				httpx.Fail(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}
			userID, err := tokens.Parse(tokenString)
			if err != nil {
				httpx.Fail(w, http.StatusUnauthorized, shared.UserSafeMessage(shared.ErrUnauthorized))
				return
			}
			ctx := shared.ContextWithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
