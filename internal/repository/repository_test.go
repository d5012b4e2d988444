package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/college-housing/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

var dupErr = &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}

var userCols = []string{"id", "full_name", "email", "phone", "password_hash", "photo", "role", "status",
	"verified", "verification_token_hash", "verification_expires_at", "password_reset_token_hash",
	"password_reset_expires_at", "password_changed_at", "google_id", "created_at", "updated_at"}

func userRow(id uint64, email string) []driver.Value {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []driver.Value{id, "Jane Doe", email, nil, "hash", "default.jpg", "user", "active", int64(1),
		nil, nil, nil, nil, nil, "g-1", now, now}
}

func TestIsDuplicate(t *testing.T) {
	assert.True(t, isDuplicate(dupErr))
	assert.True(t, isDuplicate(errors.Join(errors.New("ctx"), dupErr)))
	assert.False(t, isDuplicate(&mysql.MySQLError{Number: 1452}))
	assert.False(t, isDuplicate(errors.New("1062")))
}

func TestUserRepo_CreateNormalizesAndDefaults(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO users`).
		WithArgs("Jane Doe", "jane@example.com", nil, "hash", "default.jpg", "user", "inactive", false,
			nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(9, 1))

	u := &model.User{FullName: "Jane Doe", Email: "  Jane@Example.COM ", PasswordHash: "hash"}
	require.NoError(t, NewUserRepo(db).Create(context.Background(), u))
	assert.Equal(t, uint64(9), u.ID)
	assert.Equal(t, "jane@example.com", u.Email)
	assert.Equal(t, model.UserInactive, u.Status)
}

func TestUserRepo_CreateDuplicate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO users`).WillReturnError(dupErr)

	err := NewUserRepo(db).Create(context.Background(), &model.User{Email: "a@b.c"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestUserRepo_GetByEmail(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`SELECT .+ FROM users WHERE email=\? LIMIT 1`).
		WithArgs("jane@example.com").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(userRow(3, "jane@example.com")...))

	u, err := NewUserRepo(db).GetByEmail(context.Background(), "JANE@example.com")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), u.ID)
	assert.Equal(t, model.UserActive, u.Status)
	assert.True(t, u.Verified)
	assert.Nil(t, u.Phone)
	require.NotNil(t, u.GoogleID)
	assert.Equal(t, "g-1", *u.GoogleID)
}

func TestUserRepo_GetByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`FROM users WHERE id=\?`).WithArgs(77).WillReturnRows(sqlmock.NewRows(userCols))

	_, err := NewUserRepo(db).GetByID(context.Background(), 77)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepo_MarkVerified(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`UPDATE users SET verified=1, status='active'`).WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, NewUserRepo(db).MarkVerified(context.Background(), 5))
}

func TestUserRepo_SetStatusMissing(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`UPDATE users SET status=\? WHERE id=\?`).WithArgs("suspended", 5).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := NewUserRepo(db).SetStatus(context.Background(), 5, model.UserSuspended)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepo_UpdateProfileDuplicate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`UPDATE users SET full_name=\?, email=\?, phone=\?`).WillReturnError(dupErr)
	err := NewUserRepo(db).UpdateProfile(context.Background(), 1, "Jane", "x@y.z", nil)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestUserRepo_ListByStatus(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`FROM users WHERE role='user' AND status=\? ORDER BY id`).
		WithArgs("suspended").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(userRow(1, "a@x.io")...).
			AddRow(userRow(2, "b@x.io")...))

	st := model.UserSuspended
	users, err := NewUserRepo(db).ListByStatus(context.Background(), &st)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestTokenRepo_ValidateRefresh(t *testing.T) {
	db, mock := newMock(t)
	cols := []string{"user_id", "expires_at", "revoked_at"}
	future := time.Now().UTC().Add(time.Hour)

	mock.ExpectQuery(`SELECT user_id, expires_at, revoked_at FROM refresh_tokens`).WithArgs("ok").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(11, future, nil))
	mock.ExpectQuery(`FROM refresh_tokens`).WithArgs("revoked").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(11, future, time.Now()))
	mock.ExpectQuery(`FROM refresh_tokens`).WithArgs("expired").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(11, time.Now().Add(-time.Hour), nil))
	mock.ExpectQuery(`FROM refresh_tokens`).WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(cols))

	repo := NewTokenRepo(db)
	ctx := context.Background()
	uid, err := repo.ValidateRefresh(ctx, "ok")
	require.NoError(t, err)
	assert.Equal(t, uint64(11), uid)

	for _, h := range []string{"revoked", "expired", "missing"} {
		_, err := repo.ValidateRefresh(ctx, h)
		assert.ErrorIs(t, err, ErrNotFound, h)
	}
}

func TestFavoriteRepo(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`INSERT IGNORE INTO user_favorites`).WithArgs(1, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM user_favorites WHERE user_id=\? AND unit_id=\?`).WithArgs(1, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`(?s)SELECT u\.id, u\.owner_id.+FROM user_favorites f JOIN units u.+u\.status='active'`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(unitCols).AddRow(unitRow(2, "active")...))

	repo := NewFavoriteRepo(db)
	ctx := context.Background()
	require.NoError(t, repo.Add(ctx, 1, 2))
	require.NoError(t, repo.Remove(ctx, 1, 2))
	units, err := repo.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, uint64(2), units[0].ID)
}

func TestPrefixed(t *testing.T) {
	assert.Equal(t, "u.id, u.name", prefixed("u.", "id,\n\tname"))
}
