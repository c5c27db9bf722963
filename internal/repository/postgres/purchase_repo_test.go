package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/arjunvm/puffmeter/internal/errs"
	"github.com/arjunvm/puffmeter/internal/model"
)

var pgconnPgErrorFK = pgconn.PgError{Code: "23503"}

func TestPurchaseRepo_CreateWithDecrement_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewPurchaseRepo(db)
	ctx := context.Background()
	userID := uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE stats SET chicken = chicken - \$1, updated_at = now\(\) WHERE id = 1 AND chicken >= \$1`).
		WithArgs(3).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`INSERT INTO puffs_log \(user_id, puff_type, quantity\) VALUES \(\$1, \$2, \$3\) RETURNING id, created_at`).
		WithArgs(userID, model.CategoryChicken, 3).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), time.Now()))
	mock.ExpectCommit()

	p, err := r.CreateWithDecrement(ctx, userID, model.CategoryChicken, 3)
	require.NoError(t, err)
	require.Equal(t, int64(7), p.ID)
	require.Equal(t, model.CategoryChicken, p.Category)
	require.Equal(t, 3, p.Quantity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseRepo_CreateWithDecrement_InsufficientStock(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewPurchaseRepo(db)
	ctx := context.Background()
	userID := uuid.Must(uuid.NewV4())

	// Conditional decrement touches no rows, current count is read back for
	// the error message, and the transaction rolls back without a log write.
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE stats SET motta = motta - \$1, updated_at = now\(\) WHERE id = 1 AND motta >= \$1`).
		WithArgs(5).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT motta FROM stats WHERE id = 1`).
		WillReturnRows(pgxmock.NewRows([]string{"motta"}).AddRow(2))
	mock.ExpectRollback()

	_, err := r.CreateWithDecrement(ctx, userID, model.CategoryMotta, 5)
	require.ErrorIs(t, err, errs.ErrInsufficientStock)
	require.Contains(t, err.Error(), "available 2")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseRepo_CreateWithDecrement_UnknownUser(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewPurchaseRepo(db)
	ctx := context.Background()
	userID := uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE stats SET meat = meat - \$1, updated_at = now\(\) WHERE id = 1 AND meat >= \$1`).
		WithArgs(1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`INSERT INTO puffs_log \(user_id, puff_type, quantity\) VALUES \(\$1, \$2, \$3\) RETURNING id, created_at`).
		WithArgs(userID, model.CategoryMeat, 1).
		WillReturnError(&pgconnPgErrorFK)
	mock.ExpectRollback()

	_, err := r.CreateWithDecrement(ctx, userID, model.CategoryMeat, 1)
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseRepo_CreateWithDecrement_BadCategory(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewPurchaseRepo(db)

	_, err := r.CreateWithDecrement(context.Background(), uuid.Must(uuid.NewV4()), model.Category("paneer"), 1)
	require.ErrorIs(t, err, errs.ErrInvalidCategory)
	// No store access on validation failure.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseRepo_Leaderboard(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewPurchaseRepo(db)
	ctx := context.Background()

	a := uuid.Must(uuid.NewV4())
	b := uuid.Must(uuid.NewV4())
	now := time.Now()

	mock.ExpectQuery(`SELECT user_id, full_name, chicken, motta, meat, total_puffs, last_update FROM leaderboard ORDER BY total_puffs DESC, user_id ASC LIMIT \$1`).
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "full_name", "chicken", "motta", "meat", "total_puffs", "last_update"}).
			AddRow(a, "A", 6, 2, 2, 10, now).
			AddRow(b, "B", 7, 0, 0, 7, now))

	rows, err := r.Leaderboard(ctx, 50)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, 10, rows[0].TotalPuffs)
	require.Equal(t, a, rows[0].UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}
