package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"leakdesk/internal/identity"
	"leakdesk/internal/utils"
)

const SessionCookie = "session"

// WithAuth reads the session token from the cookie or a bearer header and
// puts the account id and role into the request context. Requests without
// a valid token pass through unauthenticated.
func WithAuth(log zerolog.Logger, secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var tok string
			if c, err := r.Cookie(SessionCookie); err == nil {
				tok = c.Value
			} else if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				tok = strings.TrimPrefix(h, "Bearer ")
			}

			if tok == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := utils.ParseJWT(secret, tok)
			if err != nil {
				log.Debug().Err(err).Msg("dropping invalid session")
				// clear it so the browser stops sending it
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    "",
					Path:     "/",
					HttpOnly: true,
					MaxAge:   -1,
				})
				next.ServeHTTP(w, r)
				return
			}

			ctx := utils.WithSession(r.Context(), utils.Session{
				AccountID: identity.Normalize(claims.AccountID()),
				Role:      claims.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
