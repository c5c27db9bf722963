package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/arjunvm/puffmeter/internal/errs"
	"github.com/arjunvm/puffmeter/internal/model"
	"github.com/arjunvm/puffmeter/internal/repository"
)

const (
	leaderboardCacheKey = "puffmeter:leaderboard"
	leaderboardCacheTTL = 10 * time.Second
)

// BoardService serves inventory reads, the admin override, and the derived
// leaderboard/achievement projections.
type BoardService interface {
	// Stats is a point-in-time read of the inventory row.
	Stats(ctx context.Context) (model.Stats, error)
	// SetStats overwrites the named counts (admin override, no stock check,
	// no purchase-log append).
	SetStats(ctx context.Context, counts map[model.Category]int) (model.Stats, error)
	// Leaderboard returns ranked per-user totals, top N.
	Leaderboard(ctx context.Context) ([]model.LeaderboardRow, error)
	// Achievements returns a user's unlocked badges, newest first.
	Achievements(ctx context.Context, userID uuid.UUID) ([]model.Achievement, error)
}

type BoardServiceImpl struct {
	stats        repository.StatsRepository
	purchases    repository.PurchaseRepository
	achievements repository.AchievementRepository
	rdb          *redis.Client // nil disables caching
	limit        int
	log          *zap.Logger
}

// NewBoardService constructs BoardService. rdb may be nil.
func NewBoardService(
	stats repository.StatsRepository,
	purchases repository.PurchaseRepository,
	achievements repository.AchievementRepository,
	rdb *redis.Client,
	limit int,
	log *zap.Logger,
) *BoardServiceImpl {
	if limit <= 0 {
		limit = 50
	}
	return &BoardServiceImpl{
		stats:        stats,
		purchases:    purchases,
		achievements: achievements,
		rdb:          rdb,
		limit:        limit,
		log:          log,
	}
}

// Stats reads the singleton inventory row.
func (s *BoardServiceImpl) Stats(ctx context.Context) (model.Stats, error) {
	return s.stats.Get(ctx)
}

// SetStats validates and applies the admin override.
func (s *BoardServiceImpl) SetStats(ctx context.Context, counts map[model.Category]int) (model.Stats, error) {
	if len(counts) == 0 {
		return model.Stats{}, fmt.Errorf("validation: provide at least one of: chicken, motta, meat")
	}
	for c, v := range counts {
		if !c.Valid() {
			return model.Stats{}, fmt.Errorf("unknown puff type %q: %w", string(c), errs.ErrInvalidCategory)
		}
		if v < 0 {
			return model.Stats{}, fmt.Errorf("validation: %s must be a non-negative integer, got %d", c, v)
		}
	}
	return s.stats.Set(ctx, counts)
}

// Leaderboard reads the top rows, through the cache when one is configured.
// Cache trouble falls back to the store and is only logged.
func (s *BoardServiceImpl) Leaderboard(ctx context.Context) ([]model.LeaderboardRow, error) {
	if s.rdb != nil {
		raw, err := s.rdb.Get(ctx, leaderboardCacheKey).Result()
		if err == nil {
			var rows []model.LeaderboardRow
			if json.Unmarshal([]byte(raw), &rows) == nil {
				return rows, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.log.Warn("leaderboard cache read failed", zap.Error(err))
		}
	}

	rows, err := s.purchases.Leaderboard(ctx, s.limit)
	if err != nil {
		return nil, err
	}

	if s.rdb != nil {
		if raw, err := json.Marshal(rows); err == nil {
			if err := s.rdb.Set(ctx, leaderboardCacheKey, raw, leaderboardCacheTTL).Err(); err != nil {
				s.log.Warn("leaderboard cache write failed", zap.Error(err))
			}
		}
	}
	return rows, nil
}

// InvalidateLeaderboard drops the cached ranking after a purchase.
func (s *BoardServiceImpl) InvalidateLeaderboard(ctx context.Context) error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Del(ctx, leaderboardCacheKey).Err()
}

// Achievements lists a user's badges ordered by unlock time descending.
func (s *BoardServiceImpl) Achievements(ctx context.Context, userID uuid.UUID) ([]model.Achievement, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("validation: empty user id")
	}
	return s.achievements.ListByUser(ctx, userID)
}
