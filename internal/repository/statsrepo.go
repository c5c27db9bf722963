package repository

import (
	"context"

	"github.com/arjunvm/puffmeter/internal/model"
)

// StatsRepository provides access to the singleton inventory row.
type StatsRepository interface {
	// Get returns a point-in-time read of the inventory row.
	Get(ctx context.Context) (model.Stats, error)
	// Set overwrites the named categories' counts unconditionally and
	// returns the resulting row. Administrative override, no stock check.
	Set(ctx context.Context, counts map[model.Category]int) (model.Stats, error)
}
