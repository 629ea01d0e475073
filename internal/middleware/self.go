package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"leakdesk/internal/identity"
	"leakdesk/internal/models"
	"leakdesk/internal/utils"
)

// RequireSelfOrRoles allows if {id} names the caller's own account OR the
// caller has any of the given roles.
func RequireSelfOrRoles(roles ...models.Role) func(http.Handler) http.Handler {
	roleSet := map[string]struct{}{}
	for _, r := range roles {
		roleSet[string(r)] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := utils.SessionFrom(r.Context())
			if !ok {
				utils.Error(w, http.StatusForbidden, "forbidden")
				return
			}
			if _, ok := roleSet[s.Role]; ok {
				next.ServeHTTP(w, r)
				return
			}
			if identity.Equal(chi.URLParam(r, "id"), s.AccountID) {
				next.ServeHTTP(w, r)
				return
			}
			utils.Error(w, http.StatusForbidden, "forbidden")
		})
	}
}
