package api

import (
	"context"
	"net/http"
	"time"

	"github.com/farmgate/agromarket-api/internal/models"
)

type contextKey string

const actorContextKey contextKey = "actor"

// loggingMiddleware logs every request after it is processed
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		s.logger.Info("Request processed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
			"remoteAddr", r.RemoteAddr,
		)
	})
}

// authMiddleware reads the identity headers set by the upstream auth proxy.
// Authentication itself happens outside this service; the headers are
// trusted and only ownership and role checks are enforced here.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")

		if userID == "" {
			s.respondWithError(w, http.StatusUnauthorized, "missing identity headers")
			return
		}

		role := r.Header.Get("X-User-Role")

		if role == "" {
			role = models.RoleUser
		}

		actor := models.Actor{UserID: userID, Role: role}
		ctx := context.WithValue(r.Context(), actorContextKey, actor)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// paymentRateLimitMiddleware throttles payment initiation per user
func (s *Server) paymentRateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := actorFromContext(r.Context())

		if !s.paymentLimiter.Allow(actor.UserID) {
			s.logger.Warn("Payment rate limit exceeded", "userID", actor.UserID)
			s.respondWithError(w, http.StatusTooManyRequests, "too many payment attempts, slow down")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// actorFromContext returns the actor placed in the context by authMiddleware
func actorFromContext(ctx context.Context) models.Actor {
	actor, _ := ctx.Value(actorContextKey).(models.Actor)
	return actor
}
