package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/parking-rental/internal/clock"
	"github.com/iliyamo/parking-rental/internal/model"
)

var userCols = []string{"id", "email", "password_hash", "name", "phone", "role", "is_active", "created_at", "updated_at"}

func TestCreateUserNormalizesEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO users \(email, password_hash, name, phone, role\)`).
		WithArgs("ana@example.com", sqlmock.AnyArg(), "Ana", "", model.RoleClient).
		WillReturnResult(sqlmock.NewResult(12, 1))

	id, err := NewUserRepo(db).Create(context.Background(), NewUser{
		Email: "  Ana@Example.com ", Password: "secret1", Name: " Ana ", Role: model.RoleClient,
	}, bcrypt.MinCost)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO users`).WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	_, err = NewUserRepo(db).Create(context.Background(), NewUser{Email: "a@b.co", Password: "secret1", Role: model.RoleHost}, bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewUserRepo(db)

	mock.ExpectQuery(`FROM users WHERE email=\? LIMIT 1`).
		WithArgs("ana@example.com").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(int64(12), "ana@example.com", "hash", "Ana", "", "HOST", true, createdAt, createdAt))
	u, err := repo.GetByEmail(context.Background(), "ANA@example.com")
	require.NoError(t, err)
	assert.Equal(t, uint64(12), u.ID)
	assert.Equal(t, model.RoleHost, u.Role)
	assert.True(t, u.IsActive)

	mock.ExpectQuery(`FROM users WHERE email=\?`).WillReturnRows(sqlmock.NewRows(userCols))
	_, err = repo.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	mock.ExpectQuery(`FROM users WHERE id=\?`).WithArgs(uint64(99)).WillReturnRows(sqlmock.NewRows(userCols))
	_, err = repo.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrUserNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateRefresh(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	now := createdAt
	repo := NewTokenRepo(db, clock.NewFixed(now))
	cols := []string{"user_id", "expires_at", "revoked_at"}

	mock.ExpectQuery(`SELECT user_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash=\?`).
		WithArgs("live").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(5), now.Add(time.Hour), nil))
	uid, err := repo.ValidateRefresh(context.Background(), "live")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), uid)

	mock.ExpectQuery(`FROM refresh_tokens`).WithArgs("expired").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(5), now.Add(-time.Second), nil))
	_, err = repo.ValidateRefresh(context.Background(), "expired")
	assert.ErrorIs(t, err, ErrInvalidRefresh)

	mock.ExpectQuery(`FROM refresh_tokens`).WithArgs("revoked").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(5), now.Add(time.Hour), now.Add(-time.Minute)))
	_, err = repo.ValidateRefresh(context.Background(), "revoked")
	assert.ErrorIs(t, err, ErrInvalidRefresh)

	mock.ExpectQuery(`FROM refresh_tokens`).WithArgs("unknown").WillReturnRows(sqlmock.NewRows(cols))
	_, err = repo.ValidateRefresh(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrInvalidRefresh)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRotateRefresh(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	now := createdAt
	exp := now.Add(7 * 24 * time.Hour)
	repo := NewTokenRepo(db, clock.NewFixed(now))

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM refresh_tokens WHERE token_hash=\? LIMIT 1 FOR UPDATE`).
		WithArgs("old").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at", "revoked_at"}).AddRow(int64(5), now.Add(time.Hour), nil))
	mock.ExpectExec(`UPDATE refresh_tokens SET revoked_at=\? WHERE token_hash=\?`).
		WithArgs(now, "old").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(uint64(5), "new", exp).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	uid, err := repo.Rotate(context.Background(), "old", "new", exp)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), uid)

	// a token that was already rotated cannot be rotated again
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs("old").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at", "revoked_at"}).AddRow(int64(5), now.Add(time.Hour), now))
	mock.ExpectRollback()

	_, err = repo.Rotate(context.Background(), "old", "newer", exp)
	assert.ErrorIs(t, err, ErrInvalidRefresh)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeTokens(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewTokenRepo(db, clock.NewFixed(createdAt))

	mock.ExpectExec(`UPDATE refresh_tokens SET revoked_at=\? WHERE token_hash=\? AND revoked_at IS NULL`).
		WithArgs(createdAt, "h").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE refresh_tokens SET revoked_at=\? WHERE user_id=\? AND revoked_at IS NULL`).
		WithArgs(createdAt, uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, repo.RevokeByHash(context.Background(), "h"))
	require.NoError(t, repo.RevokeAllForUser(context.Background(), 5))
	assert.NoError(t, mock.ExpectationsWereMet())
}

var reviewCols = []string{"id", "booking_id", "space_id", "author_id", "target_id", "rating", "comment", "type", "created_at", "name"}

func TestCreateReview(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewReviewRepo(db)

	mock.ExpectExec(`INSERT INTO reviews`).
		WithArgs(uint64(11), uint64(3), uint64(5), uint64(9), 5, "great", model.SpaceReview).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`FROM reviews r JOIN users u ON u.id = r.author_id WHERE r.id = \?`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(reviewCols).
			AddRow(int64(1), int64(11), int64(3), int64(5), int64(9), int64(5), "great", "SPACE_REVIEW", createdAt, "Ana"))

	rv := &model.Review{BookingID: 11, SpaceID: 3, AuthorID: 5, TargetID: 9, Rating: 5, Comment: "great", Type: model.SpaceReview}
	require.NoError(t, repo.Create(context.Background(), rv))
	assert.Equal(t, uint64(1), rv.ID)
	assert.Equal(t, "Ana", rv.AuthorName)

	mock.ExpectExec(`INSERT INTO reviews`).WillReturnError(&mysql.MySQLError{Number: 1062})
	assert.ErrorIs(t, repo.Create(context.Background(), &model.Review{BookingID: 11, Type: model.SpaceReview}), ErrReviewExists)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListReviewsFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	spaceID := uint64(3)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM reviews r WHERE r.space_id = \? AND r.type = \?`).
		WithArgs(uint64(3), model.SpaceReview).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(12)))
	mock.ExpectQuery(`WHERE r.space_id = \? AND r.type = \? ORDER BY r.created_at DESC, r.id DESC LIMIT \? OFFSET \?`).
		WithArgs(uint64(3), model.SpaceReview, 5, 5).
		WillReturnRows(sqlmock.NewRows(reviewCols).
			AddRow(int64(6), int64(11), int64(3), int64(5), int64(9), int64(4), "", "SPACE_REVIEW", createdAt, "Ana"))

	out, total, err := NewReviewRepo(db).List(context.Background(),
		ReviewFilter{SpaceID: &spaceID, Type: model.SpaceReview}, Page{Page: 2, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	require.Len(t, out, 1)
	assert.Equal(t, 4, out[0].Rating)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHostStats(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM spaces WHERE owner_id = \?`).
		WithArgs(uint64(9), uint64(9), uint64(9), uint64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"spaces", "bookings", "earnings", "rating"}).
			AddRow(int64(2), int64(7), "212.50", "4.3"))

	st, err := NewStatsRepo(db).ForHost(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalSpaces)
	assert.Equal(t, 7, st.TotalBookings)
	assert.True(t, st.TotalEarnings.Equal(decimal.RequireFromString("212.5")))
	assert.Equal(t, "4.3", st.AverageRating.StringFixed(1))
	assert.NoError(t, mock.ExpectationsWereMet())
}
