package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Registrar mounts a handler's user-scoped routes.
type Registrar interface {
	Register(r chi.Router)
}

// NewRouter serves /healthz publicly; everything registered goes behind auth.
func NewRouter(auth *Auth, public []Registrar, private ...Registrar) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	for _, h := range public {
		h.Register(r)
	}
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)
		for _, h := range private {
			h.Register(r)
		}
	})
	return r
}
