package middleware

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"plaxrec/internal/models"
)

type ProfileLookup interface {
	GetByID(ctx context.Context, profileID string) (models.Profile, error)
}

// RequireRole admits the request when the caller's current role is one of
// roles. The role is read from the store, not the token, so a role change
// takes effect without waiting for the token to expire.
func RequireRole(profiles ProfileLookup, roles ...models.Role) func(http.Handler) http.Handler {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			profile, err := profiles.GetByID(r.Context(), userID)
			if errors.Is(err, sql.ErrNoRows) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if err != nil {
				http.Error(w, "unable to verify role", http.StatusInternalServerError)
				return
			}
			if _, ok := allowed[profile.Role]; !ok {
				http.Error(w, "role not permitted", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
