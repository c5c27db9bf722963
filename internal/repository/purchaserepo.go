package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/arjunvm/puffmeter/internal/model"
)

// PurchaseRepository appends purchase-log entries and serves derived reads.
type PurchaseRepository interface {
	// CreateWithDecrement appends a purchase-log entry and decrements the
	// inventory count for its category in one transaction. The decrement is
	// conditional: if the remaining stock is below quantity, nothing is
	// written and errs.ErrInsufficientStock is returned with the available
	// count in the message.
	CreateWithDecrement(ctx context.Context, userID uuid.UUID, category model.Category, quantity int) (*model.Purchase, error)

	// Leaderboard returns per-user aggregates ordered by total puffs
	// descending, user ID ascending as the tiebreak, at most limit rows.
	Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardRow, error)
}

// AchievementRepository reads unlocked badges. Rows are written by the store
// itself (trigger on the purchase log), never by application code.
type AchievementRepository interface {
	// ListByUser returns a user's badges ordered by unlock time descending.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Achievement, error)
}
