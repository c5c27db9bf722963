package postgres

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/arjunvm/puffmeter/internal/errs"
	"github.com/arjunvm/puffmeter/internal/model"
)

// PurchaseRepo implements PurchaseRepository using PostgreSQL.
type PurchaseRepo struct{ db *DB }

// NewPurchaseRepo constructs a purchase repository.
func NewPurchaseRepo(db *DB) *PurchaseRepo { return &PurchaseRepo{db: db} }

// CreateWithDecrement performs check-and-decrement plus the log append as a
// single transaction. The WHERE clause makes the decrement conditional, so
// two racing purchases can never jointly overdraw a category: the second
// one sees zero rows affected and fails without writing anything.
func (r *PurchaseRepo) CreateWithDecrement(
	ctx context.Context, userID uuid.UUID, category model.Category, quantity int,
) (p *model.Purchase, err error) {
	if !category.Valid() {
		return nil, errs.ErrInvalidCategory
	}

	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	dec := fmt.Sprintf(
		`UPDATE stats SET %[1]s = %[1]s - $1, updated_at = now() WHERE id = 1 AND %[1]s >= $1`,
		category,
	)
	tag, err := tx.Exec(ctx, dec, quantity)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		sel := fmt.Sprintf(`SELECT %s FROM stats WHERE id = 1`, category)
		var available int
		if scanErr := tx.QueryRow(ctx, sel).Scan(&available); scanErr != nil {
			return nil, scanErr
		}
		return nil, fmt.Errorf(
			"not enough %s puffs in stock (available %d, requested %d): %w",
			category, available, quantity, errs.ErrInsufficientStock,
		)
	}

	const ins = `
INSERT INTO puffs_log (user_id, puff_type, quantity)
VALUES ($1, $2, $3)
RETURNING id, created_at`
	entry := &model.Purchase{UserID: userID, Category: category, Quantity: quantity}
	if err = tx.QueryRow(ctx, ins, userID, category, quantity).Scan(&entry.ID, &entry.CreatedAt); err != nil {
		if isForeignKeyViolation(err) {
			err = errs.ErrNotFound
		}
		return nil, err
	}
	return entry, nil
}

// Leaderboard reads the aggregated view. Ties on total_puffs break by
// user_id ascending so the ordering is deterministic.
func (r *PurchaseRepo) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardRow, error) {
	const q = `
SELECT user_id, full_name, chicken, motta, meat, total_puffs, last_update
FROM leaderboard
ORDER BY total_puffs DESC, user_id ASC
LIMIT $1`
	rows, err := r.db.Pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LeaderboardRow
	for rows.Next() {
		var lr model.LeaderboardRow
		if err = rows.Scan(&lr.UserID, &lr.FullName, &lr.Chicken, &lr.Motta, &lr.Meat, &lr.TotalPuffs, &lr.LastUpdate); err != nil {
			return nil, err
		}
		out = append(out, lr)
	}
	return out, rows.Err()
}
