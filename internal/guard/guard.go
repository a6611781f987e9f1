package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/go_checkout/pkg/logger"
	"github.com/google/uuid"
)

// ErrCheckoutInProgress is returned when another confirm for the same cart holds the section.
var ErrCheckoutInProgress = errors.New("a payment for this cart is already being confirmed")

// LockStore holds short-lived exclusive locks identified by key and owned by token.
type LockStore interface {
	TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key, token string) error
	Locked(ctx context.Context, key string) (bool, error)
}

// Guard marks the span during which a charge is in flight for a cart. While a
// section is held, navigation away from checkout must be blocked and no second
// confirm may start.
type Guard struct {
	store          LockStore
	ttl            time.Duration
	releaseTimeout time.Duration
}

func New(store LockStore, ttl time.Duration) *Guard {
	return &Guard{store: store, ttl: ttl, releaseTimeout: 5 * time.Second}
}

// Section is a held critical section. Release is safe to call more than once.
type Section struct {
	key     string
	token   string
	guard   *Guard
	log     *slog.Logger
	once    sync.Once
	release error
}

// Enter acquires the section for cartKey. Callers must defer Release.
func (g *Guard) Enter(ctx context.Context, cartKey string) (*Section, error) {
	token := uuid.NewString()
	ok, err := g.store.TryLock(ctx, lockKey(cartKey), token, g.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire checkout guard: %w", err)
	}
	if !ok {
		return nil, ErrCheckoutInProgress
	}
	return &Section{key: lockKey(cartKey), token: token, guard: g, log: logger.FromContext(ctx)}, nil
}

// Active reports whether a section is currently held for cartKey.
func (g *Guard) Active(ctx context.Context, cartKey string) (bool, error) {
	return g.store.Locked(ctx, lockKey(cartKey))
}

func (s *Section) Release() error {
	s.once.Do(func() {
		// the caller's context may already be cancelled
		ctx, cancel := context.WithTimeout(context.Background(), s.guard.releaseTimeout)
		defer cancel()
		s.release = s.guard.store.Unlock(ctx, s.key, s.token)
		if s.release != nil {
			s.log.Error("failed to release checkout guard", slog.String("key", s.key), slog.Any("err", s.release))
		}
	})
	return s.release
}

func lockKey(cartKey string) string {
	return fmt.Sprintf("checkout:guard:%s", cartKey)
}
