// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Category is one of the fixed puff types tracked in inventory.
type Category string

const (
	CategoryChicken Category = "chicken"
	CategoryMotta   Category = "motta"
	CategoryMeat    Category = "meat"
)

// Categories lists every tracked puff type in a stable order.
var Categories = []Category{CategoryChicken, CategoryMotta, CategoryMeat}

// Valid reports whether c is one of the tracked puff types.
func (c Category) Valid() bool {
	switch c {
	case CategoryChicken, CategoryMotta, CategoryMeat:
		return true
	}
	return false
}

// User represents a registered customer of the snack stand.
type User struct {
	ID           uuid.UUID  `json:"id"`
	FullName     string     `json:"full_name"`
	Email        string     `json:"email"` // unique
	PasswordHash []byte     `json:"-"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Tokens collects an issued access token and its expiry.
type Tokens struct {
	AccessToken string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Stats is the singleton inventory row: current stock per puff type.
type Stats struct {
	Chicken   int       `json:"chicken"`
	Motta     int       `json:"motta"`
	Meat      int       `json:"meat"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Count returns the stock for the given category.
func (s Stats) Count(c Category) int {
	switch c {
	case CategoryChicken:
		return s.Chicken
	case CategoryMotta:
		return s.Motta
	case CategoryMeat:
		return s.Meat
	}
	return 0
}

// Purchase is an immutable purchase-log entry.
type Purchase struct {
	ID        int64     `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Category  Category  `json:"puff_type"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

// LeaderboardRow is a derived per-user aggregate of the purchase log.
type LeaderboardRow struct {
	UserID     uuid.UUID `json:"user_id"`
	FullName   string    `json:"full_name"`
	Chicken    int       `json:"chicken"`
	Motta      int       `json:"motta"`
	Meat       int       `json:"meat"`
	TotalPuffs int       `json:"total_puffs"`
	LastUpdate time.Time `json:"last_update"`
}

// Achievement is an unlocked badge. The unlock policy lives in the
// database, outside this package.
type Achievement struct {
	ID         int64     `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Name       string    `json:"name"`
	UnlockedAt time.Time `json:"unlocked_at"`
}
