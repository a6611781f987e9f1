package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/pkg/logger"
	"golang.org/x/sync/singleflight"
)

// Service serves carts cache-aside. Writes go to the repository and drop the cached copy.
type Service struct {
	repo  Repository
	cache Cache
	sfg   singleflight.Group
	now   func() time.Time
}

func NewService(repo Repository, cache Cache) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

// GetCart returns the user's cart, or an empty one when none is stored.
func (s *Service) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	log := logger.FromContext(ctx)

	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			log.Warn("cart cache get failed", slog.String("user_id", userID), slog.Any("err", err))
		}

		version, verErr := s.cache.Version(ctx, userID)
		if verErr != nil {
			log.Warn("cart cache version failed", slog.String("user_id", userID), slog.Any("err", verErr))
		}

		cart, err = s.repo.GetCart(ctx, userID)
		if errors.Is(err, ErrCartNotFound) {
			now := s.now()
			return &domain.Cart{UserID: userID, CreatedAt: now, UpdatedAt: now}, nil
		}
		if err != nil {
			return nil, err
		}

		if verErr == nil {
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
			defer cancel()
			if err := s.cache.Set(sctx, userID, cart, version); err != nil {
				log.Warn("cart cache set failed", slog.String("user_id", userID), slog.Any("err", err))
			}
		}
		return cart, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Cart), nil
}

func (s *Service) AddItem(ctx context.Context, userID string, item domain.CartItem) error {
	item.ProductID = strings.TrimSpace(item.ProductID)
	if item.ProductID == "" {
		return domain.NewValidationError("productId", "product is required")
	}
	if item.Quantity < 1 {
		return domain.NewValidationError("quantity", domain.ErrInvalidQuantity.Error())
	}
	if item.UnitPrice.IsNegative() {
		return domain.NewValidationError("unitPrice", "price must not be negative")
	}

	if err := s.repo.AddItem(ctx, userID, item); err != nil {
		return fmt.Errorf("add item %s: %w", item.ProductID, err)
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *Service) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) error {
	if quantity < 1 {
		return domain.NewValidationError("quantity", domain.ErrInvalidQuantity.Error())
	}
	if err := s.repo.UpdateItemQuantity(ctx, userID, productID, quantity); err != nil {
		return fmt.Errorf("update item %s: %w", productID, err)
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *Service) RemoveItem(ctx context.Context, userID, productID string) error {
	if err := s.repo.RemoveItem(ctx, userID, productID); err != nil {
		return fmt.Errorf("remove item %s: %w", productID, err)
	}
	s.invalidate(ctx, userID)
	return nil
}

// ClearCart empties the user's cart. Clearing a cart that does not exist succeeds.
func (s *Service) ClearCart(ctx context.Context, userID string) error {
	if err := s.repo.DeleteCart(ctx, userID); err != nil && !errors.Is(err, ErrCartNotFound) {
		return fmt.Errorf("clear cart: %w", err)
	}
	s.invalidate(ctx, userID)
	return nil
}

// ClearCartUpdatedBefore empties the cart only when nothing touched it after at.
// A cart refilled since then is kept.
func (s *Service) ClearCartUpdatedBefore(ctx context.Context, userID string, at time.Time) error {
	err := s.repo.DeleteCartUpdatedBefore(ctx, userID, at)
	if errors.Is(err, ErrCartNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Delete(dctx, userID); err != nil {
		logger.FromContext(ctx).Warn("cart cache invalidate failed", slog.String("user_id", userID), slog.Any("err", err))
	}
}
