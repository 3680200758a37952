package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sixstreet/storefront/internal/commerce"
	"github.com/sixstreet/storefront/internal/session"
)

const (
	CookieSession = "sid"
	CookieToken   = "token"
)

type UserResolver interface {
	CurrentUser(ctx context.Context, sid string) *session.User
}

type Auth struct {
	Sessions UserResolver
	Log      *zap.Logger
}

type userKey struct{}

// RequireUser rejects guests and forwards the browser's bearer token to the
// Commerce Backend client through the request context.
func (a *Auth) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(CookieSession)
		if err != nil || c.Value == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "login required"})
			return
		}
		u := a.Sessions.CurrentUser(r.Context(), c.Value)
		if u == nil {
			if a.Log != nil {
				a.Log.Debug("session rejected", zap.String("request_id", middleware.GetReqID(r.Context())))
			}
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "session expired"})
			return
		}
		ctx := context.WithValue(r.Context(), userKey{}, *u)
		if tc, err := r.Cookie(CookieToken); err == nil && tc.Value != "" {
			ctx = commerce.WithToken(ctx, tc.Value)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFrom returns the user placed by RequireUser.
func UserFrom(ctx context.Context) (session.User, bool) {
	u, ok := ctx.Value(userKey{}).(session.User)
	return u, ok
}
