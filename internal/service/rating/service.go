// Package rating resolves the rating a player queues with.
package rating

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/iamasit07/stones/backend/internal/repository/redis"
)

const cacheTTL = 10 * time.Minute

// Store is the durable source of ratings.
type Store interface {
	GetRating(ctx context.Context, userID int64) (rating int, ok bool, err error)
}

// Cache is an optional read-through cache in front of the store.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type Service struct {
	store         Store
	cache         Cache
	defaultRating int
	logger        zerolog.Logger
}

// NewService builds a lookup. store and cache may both be nil, in which case
// every player gets the default rating.
func NewService(store Store, cache Cache, defaultRating int, logger zerolog.Logger) *Service {
	return &Service{
		store:         store,
		cache:         cache,
		defaultRating: defaultRating,
		logger:        logger.With().Str("component", "rating").Logger(),
	}
}

// Lookup never fails: store and cache errors are logged and the default
// rating is used.
func (s *Service) Lookup(ctx context.Context, userID int64) int {
	key := cacheKey(userID)
	if s.cache != nil {
		v, err := s.cache.Get(ctx, key)
		if err == nil {
			if r, perr := strconv.Atoi(v); perr == nil {
				return r
			}
		} else if !errors.Is(err, redis.ErrMiss) {
			s.logger.Warn().Err(err).Int64("user", userID).Msg("cache read failed")
		}
	}

	if s.store == nil {
		return s.defaultRating
	}
	r, ok, err := s.store.GetRating(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Int64("user", userID).Msg("rating lookup failed")
		return s.defaultRating
	}
	if !ok {
		r = s.defaultRating
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, r, cacheTTL); err != nil {
			s.logger.Warn().Err(err).Int64("user", userID).Msg("cache write failed")
		}
	}
	return r
}

// Invalidate drops cached ratings, e.g. after a game changed them.
func (s *Service) Invalidate(ctx context.Context, userIDs ...int64) {
	if s.cache == nil || len(userIDs) == 0 {
		return
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = cacheKey(id)
	}
	if err := s.cache.Del(ctx, keys...); err != nil {
		s.logger.Warn().Err(err).Msg("cache invalidation failed")
	}
}

func cacheKey(userID int64) string {
	return "rating:" + strconv.FormatInt(userID, 10)
}
