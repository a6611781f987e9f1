package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_checkout/internal/auth"
	"github.com/fjod/go_checkout/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	UserIDHeader         = "X-User-ID"
	SessionExpiresHeader = "X-Session-Expires-At"
)

// AuthMiddleware turns the storefront credential forwarded by the UI into an
// auth.Session. The token is passed through to the storefront and checked there.
// X-User-ID is trusted as is: the service must only be reachable through the
// gateway that derives it from the verified token and drops any client-sent value.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if !ok || strings.TrimSpace(token) == "" || userID == "" {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
			return
		}

		session := auth.Session{Token: strings.TrimSpace(token), UserID: userID}
		if v := r.Header.Get(SessionExpiresHeader); v != "" {
			exp, err := time.Parse(time.RFC3339, v)
			if err != nil {
				respondError(w, http.StatusBadRequest, "invalid_request", SessionExpiresHeader+" must be RFC3339")
				return
			}
			session.ExpiresAt = exp
		}
		if session.Expired(time.Now()) {
			respondError(w, http.StatusUnauthorized, "session_expired", "your session has expired, please sign in again")
			return
		}

		ctx := auth.WithSession(r.Context(), session)
		ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(slog.String("user_id", userID)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLogger attaches a request-scoped logger and logs one line per request.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			log := base.With(slog.String("request_id", middleware.GetReqID(r.Context())))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context(), log)))

			log.InfoContext(r.Context(), "request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)))
		})
	}
}

func userID(r *http.Request) string {
	s, _ := auth.FromContext(r.Context())
	return s.UserID
}
