package presentation

import (
	"context"
	"net/http"

	"github.com/greenbasket/checkout-service/internal/domain"
	"github.com/greenbasket/checkout-service/internal/presentation/helpers"
)

type ctxKey int

const (
	ctxKeyUserID ctxKey = iota
	ctxKeyRole
)

// Identity trusts the X-User-ID / X-User-Role headers set by the upstream
// auth gateway. Authentication itself lives outside this service.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		role := r.Header.Get("X-User-Role")
		if userID == "" || role == "" {
			helpers.HttpError(w, http.StatusUnauthorized, "missing identity")
			return
		}
		switch role {
		case domain.RoleBuyer, domain.RoleSeller, domain.RoleAdmin:
		default:
			helpers.HttpError(w, http.StatusUnauthorized, "unknown role")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUserID, userID)
		ctx = context.WithValue(ctx, ctxKeyRole, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole guards a route group to one role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if roleFrom(r) != role {
				helpers.HttpError(w, http.StatusForbidden, "access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func userFrom(r *http.Request) string {
	v, _ := r.Context().Value(ctxKeyUserID).(string)
	return v
}

func roleFrom(r *http.Request) string {
	v, _ := r.Context().Value(ctxKeyRole).(string)
	return v
}
