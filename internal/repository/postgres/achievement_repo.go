package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/arjunvm/puffmeter/internal/model"
)

// AchievementRepo implements AchievementRepository using PostgreSQL.
type AchievementRepo struct{ db *DB }

// NewAchievementRepo constructs an achievement repository.
func NewAchievementRepo(db *DB) *AchievementRepo { return &AchievementRepo{db: db} }

// ListByUser returns badges ordered by unlock time descending.
func (r *AchievementRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Achievement, error) {
	const q = `
SELECT id, user_id, name, unlocked_at
FROM achievements
WHERE user_id=$1
ORDER BY unlocked_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Achievement
	for rows.Next() {
		var a model.Achievement
		if err = rows.Scan(&a.ID, &a.UserID, &a.Name, &a.UnlockedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
