package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/banking-auth/internal/model"
)

var userCols = []string{"id", "email", "full_name", "password_hash", "role", "account_locked",
	"email_verified", "failed_login_attempts", "created_at", "updated_at", "last_login"}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestFindByEmailNormalizes(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=?")).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(1, "a@x.com", "Alice", "hash", "ADMIN", false, true, 0, now, now, nil))

	u, err := repo.FindByEmail(context.Background(), "  A@X.com ")
	require.NoError(t, err)
	require.Equal(t, uint64(1), u.ID)
	require.Equal(t, model.RoleAdmin, u.Role)
	require.Equal(t, "Alice", u.FullName)
	require.True(t, u.EmailVerified)
	require.Nil(t, u.LastLogin)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=?")).
		WithArgs(uint64(9)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), 9)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFindByRole(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE role=?")).
		WithArgs("USER").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(2, "b@x.com", "Bob", "h", "USER", false, true, 0, now, now, now).
			AddRow(3, "c@x.com", "Carol", "h", "USER", true, true, 3, now, now, nil))

	users, err := repo.FindByRole(context.Background(), model.RoleUser)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.NotNil(t, users[0].LastLogin)
	require.True(t, users[1].AccountLocked)
	require.Equal(t, 3, users[1].FailedLoginAttempts)
}

func TestSaveInsert(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("new@x.com", "New", "hash", "USER", false, true, 0, now, now, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(42, 1))

	u := &model.User{Email: "New@x.com", FullName: "New", PasswordHash: "hash", Role: model.RoleUser,
		EmailVerified: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.Save(context.Background(), u))
	require.Equal(t, uint64(42), u.ID)
	require.Equal(t, "new@x.com", u.Email)
}

func TestSaveInsertDuplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err := repo.Save(context.Background(), &model.User{Email: "dup@x.com", Role: model.RoleUser})
	require.ErrorIs(t, err, ErrEmailExists)
}

func TestSaveUpdate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET")).
		WithArgs("a@x.com", "Alice", "newhash", "ADMIN", false, true, 0, now, sqlmock.AnyArg(), uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	u := &model.User{ID: 1, Email: "a@x.com", FullName: "Alice", PasswordHash: "newhash",
		Role: model.RoleAdmin, EmailVerified: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.Save(context.Background(), u))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginBookkeepingLeavesPasswordAlone(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)
	now := time.Now().UTC()
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET last_login=?,failed_login_attempts=0,updated_at=? WHERE id=?")).
		WithArgs(now, now, uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("failed_login_attempts=failed_login_attempts+1,updated_at=? WHERE id=?")).
		WithArgs(5, 5, now, uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RecordLogin(ctx, 1, now))
	require.NoError(t, repo.RecordFailedLogin(ctx, 1, 5, now))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePassword(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)
	now := time.Now().UTC()
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash=?,updated_at=? WHERE id=?")).
		WithArgs("newhash", now, uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash=?,updated_at=? WHERE id=?")).
		WithArgs("newhash", now, uint64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpdatePassword(ctx, 1, "newhash", now))
	require.ErrorIs(t, repo.UpdatePassword(ctx, 9, "newhash", now), ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id=?")).
		WithArgs(uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id=?")).
		WithArgs(uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), 5))
	require.ErrorIs(t, repo.Delete(context.Background(), 5), ErrNotFound)
}

func TestTransportErrorPassesThrough(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)
	boom := errors.New("connection refused")

	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).WillReturnError(boom)

	_, err := repo.FindAll(context.Background())
	require.ErrorIs(t, err, boom)
}
