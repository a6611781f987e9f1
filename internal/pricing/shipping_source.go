package pricing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/go_checkout/pkg/logger"
	"golang.org/x/sync/singleflight"
)

type ShippingSettingsFetcher interface {
	GetShippingSettings(ctx context.Context) (*ShippingConfig, error)
}

// ShippingSource loads the shipping config and never fails: on error it serves
// the last good config, or the default when nothing was ever loaded.
type ShippingSource struct {
	fetcher  ShippingSettingsFetcher
	ttl      time.Duration
	fallback ShippingConfig
	sfg      singleflight.Group

	mu       sync.RWMutex
	cached   *ShippingConfig
	loadedAt time.Time
	now      func() time.Time
}

// NewShippingSource serves fallback until the storefront settings load. An invalid
// fallback is replaced by DefaultShippingConfig.
func NewShippingSource(fetcher ShippingSettingsFetcher, ttl time.Duration, fallback ShippingConfig) *ShippingSource {
	if !fallback.valid() {
		fallback = DefaultShippingConfig()
	}
	return &ShippingSource{fetcher: fetcher, ttl: ttl, fallback: fallback, now: time.Now}
}

func (s *ShippingSource) Config(ctx context.Context) *ShippingConfig {
	if cfg, fresh := s.current(); fresh {
		return cfg
	}

	v, _, _ := s.sfg.Do("shipping", func() (interface{}, error) {
		cfg, err := s.fetcher.GetShippingSettings(ctx)
		if err != nil || !cfg.valid() {
			logger.FromContext(ctx).Warn("shipping settings unavailable, using fallback", slog.Any("err", err))
			stale, _ := s.current()
			if stale != nil {
				return stale, nil
			}
			def := s.fallback
			return &def, nil
		}

		s.mu.Lock()
		s.cached = cfg
		s.loadedAt = s.now()
		s.mu.Unlock()
		return cfg, nil
	})
	return v.(*ShippingConfig)
}

func (s *ShippingSource) current() (*ShippingConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cached == nil {
		return nil, false
	}
	return s.cached, s.now().Sub(s.loadedAt) < s.ttl
}
