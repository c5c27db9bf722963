package service

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/arjunvm/puffmeter/internal/errs"
	"github.com/arjunvm/puffmeter/internal/model"
	"github.com/arjunvm/puffmeter/internal/repository"
)

// PurchaseService converts "user wants N puffs of category C" into a log
// entry plus an inventory decrement.
type PurchaseService interface {
	// Purchase validates the request and performs the conditional
	// check-and-decrement transaction.
	Purchase(ctx context.Context, userID uuid.UUID, category model.Category, quantity int) (*model.Purchase, error)
}

// leaderboardCache is the optional secondary updated after a purchase.
// Failures are logged and never propagated.
type leaderboardCache interface {
	InvalidateLeaderboard(ctx context.Context) error
}

type PurchaseServiceImpl struct {
	users     repository.UserRepository
	purchases repository.PurchaseRepository
	cache     leaderboardCache
	log       *zap.Logger
}

// NewPurchaseService constructs PurchaseService. cache may be nil.
func NewPurchaseService(
	users repository.UserRepository,
	purchases repository.PurchaseRepository,
	cache leaderboardCache,
	log *zap.Logger,
) *PurchaseServiceImpl {
	return &PurchaseServiceImpl{users: users, purchases: purchases, cache: cache, log: log}
}

// Purchase runs the workflow. Validation happens before any store access;
// the stock check, log append and decrement run as one transaction in the
// repository, so a losing racer fails without writing anything.
func (s *PurchaseServiceImpl) Purchase(
	ctx context.Context, userID uuid.UUID, category model.Category, quantity int,
) (*model.Purchase, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("validation: empty user id")
	}
	if !category.Valid() {
		return nil, fmt.Errorf("unknown puff type %q: %w", string(category), errs.ErrInvalidCategory)
	}
	if quantity < 1 {
		return nil, fmt.Errorf("validation: quantity must be a positive integer, got %d", quantity)
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	p, err := s.purchases.CreateWithDecrement(ctx, userID, category, quantity)
	if err != nil {
		return nil, err
	}

	// Secondary update: the purchase already succeeded, a stale cache just
	// delays the leaderboard by one TTL.
	if s.cache != nil {
		if err := s.cache.InvalidateLeaderboard(ctx); err != nil {
			s.log.Warn("leaderboard cache invalidation failed", zap.Error(err))
		}
	}
	return p, nil
}
