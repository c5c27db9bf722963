package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/arjunvm/puffmeter/internal/model"
)

// StatsRepo implements StatsRepository using PostgreSQL.
type StatsRepo struct{ db *DB }

// NewStatsRepo constructs a stats repository.
func NewStatsRepo(db *DB) *StatsRepo { return &StatsRepo{db: db} }

// Get reads the singleton inventory row.
func (r *StatsRepo) Get(ctx context.Context) (model.Stats, error) {
	const q = `SELECT chicken, motta, meat, updated_at FROM stats WHERE id=1`
	var s model.Stats
	err := r.db.Pool.QueryRow(ctx, q).Scan(&s.Chicken, &s.Motta, &s.Meat, &s.UpdatedAt)
	return s, err
}

// Set overwrites the named counts unconditionally and returns the new row.
// Column names come from model.Category values validated by the caller; the
// enum is fixed so the generated SQL shape is bounded.
func (r *StatsRepo) Set(ctx context.Context, counts map[model.Category]int) (model.Stats, error) {
	if len(counts) == 0 {
		return model.Stats{}, fmt.Errorf("validation: no categories to set")
	}

	set := make([]string, 0, len(counts)+1)
	args := make([]any, 0, len(counts))
	for _, c := range model.Categories {
		v, ok := counts[c]
		if !ok {
			continue
		}
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s=$%d", c, len(args)))
	}
	if len(args) != len(counts) {
		return model.Stats{}, fmt.Errorf("validation: unknown category in set request")
	}
	set = append(set, "updated_at=now()")

	q := fmt.Sprintf(
		`UPDATE stats SET %s WHERE id=1 RETURNING chicken, motta, meat, updated_at`,
		strings.Join(set, ", "),
	)
	var s model.Stats
	err := r.db.Pool.QueryRow(ctx, q, args...).Scan(&s.Chicken, &s.Motta, &s.Meat, &s.UpdatedAt)
	return s, err
}
