package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/keldara/vaultcraft/internal/auth"
)

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimitByIP(s.rlRegisterIP))
		r.Post("/register", s.handleRegister)
	})
	r.Group(func(r chi.Router) {
		r.Use(s.rateLimitByIP(s.rlLoginInitIP))
		r.Post("/login/init", s.handleLoginInit)
	})
	r.Group(func(r chi.Router) {
		r.Use(s.rateLimitByIP(s.rlLoginVerify))
		r.Post("/login/verify", s.handleLoginVerify)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.AuthRequired(s.signer))
		r.Get("/vault", s.handleGetVault)
		r.Post("/vault", s.handlePostVault)
		r.Post("/totp/enroll", s.handlePostTOTPEnroll)
		r.Group(func(r chi.Router) {
			r.Use(s.rateLimitByClaims(s.rlPasswordUser))
			r.Post("/password", s.handlePostPassword)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// rateLimitByIP is a chi middleware limiting requests per client IP.
func (s *Server) rateLimitByIP(lim *multiLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !lim.allow(getClientIP(r)) {
				tooMany(w, 60)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitByClaims limits requests per authenticated username; it must
// run after auth.AuthRequired so claims are already on the context.
func (s *Server) rateLimitByClaims(lim *multiLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.FromContext(r.Context())
			if !ok {
				writeJSONStatus(w, http.StatusUnauthorized, errorResponse{Error: "missing claims"})
				return
			}
			if !lim.allow(claims.Sub) {
				tooMany(w, 60)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
