package auth

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNoSession      = errors.New("no auth session in context")
	ErrSessionExpired = errors.New("auth session expired")
)

// Session is the caller's storefront credential. Expiry is checked by whoever uses
// the token; there is no shared token cache.
type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

type ctxKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}

// Require returns the session in ctx or an error when it is missing or expired.
func Require(ctx context.Context, now time.Time) (Session, error) {
	s, ok := FromContext(ctx)
	if !ok || s.Token == "" {
		return Session{}, ErrNoSession
	}
	if s.Expired(now) {
		return Session{}, ErrSessionExpired
	}
	return s, nil
}
