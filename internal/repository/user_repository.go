package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/banking-auth/internal/model"
)

// mysqlDuplicateEntry is the server error code for a unique key violation.
const mysqlDuplicateEntry = 1062

const userColumns = "id,email,full_name,password_hash,role,account_locked,email_verified,failed_login_attempts,created_at,updated_at,last_login"

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var (
		u         model.User
		role      string
		lastLogin sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &role, &u.AccountLocked,
		&u.EmailVerified, &u.FailedLoginAttempts, &u.CreatedAt, &u.UpdatedAt, &lastLogin)
	if err != nil {
		return model.User{}, err
	}
	u.Role = model.Role(role)
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return u, nil
}

func (r *UserRepo) queryOne(ctx context.Context, query string, args ...any) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	return u, err
}

func (r *UserRepo) queryMany(ctx context.Context, query string, args ...any) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// FindByEmail fetches a user by normalized email.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.queryOne(ctx, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
}

// FindByID fetches a user by id.
func (r *UserRepo) FindByID(ctx context.Context, id uint64) (model.User, error) {
	return r.queryOne(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
}

// FindByRole lists users holding role, oldest first.
func (r *UserRepo) FindByRole(ctx context.Context, role model.Role) ([]model.User, error) {
	return r.queryMany(ctx, "SELECT "+userColumns+" FROM users WHERE role=? ORDER BY id", string(role))
}

// FindAll lists every user, oldest first.
func (r *UserRepo) FindAll(ctx context.Context) ([]model.User, error) {
	return r.queryMany(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
}

// Save inserts u when u.ID is zero and updates the existing row otherwise.
// On insert the generated id is written back into u.
func (r *UserRepo) Save(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	var lastLogin sql.NullTime
	if u.LastLogin != nil {
		lastLogin = sql.NullTime{Time: *u.LastLogin, Valid: true}
	}
	if u.ID == 0 {
		res, err := r.DB.ExecContext(ctx,
			"INSERT INTO users (email,full_name,password_hash,role,account_locked,email_verified,failed_login_attempts,created_at,updated_at,last_login) VALUES (?,?,?,?,?,?,?,?,?,?)",
			u.Email, u.FullName, u.PasswordHash, string(u.Role), u.AccountLocked, u.EmailVerified,
			u.FailedLoginAttempts, u.CreatedAt, u.UpdatedAt, lastLogin)
		if err != nil {
			var me *mysql.MySQLError
			if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
				return ErrEmailExists
			}
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		u.ID = uint64(id)
		return nil
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = time.Now().UTC()
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET email=?,full_name=?,password_hash=?,role=?,account_locked=?,email_verified=?,failed_login_attempts=?,updated_at=?,last_login=? WHERE id=?",
		u.Email, u.FullName, u.PasswordHash, string(u.Role), u.AccountLocked, u.EmailVerified,
		u.FailedLoginAttempts, u.UpdatedAt, lastLogin, u.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	// MySQL reports 0 affected rows when nothing changed; only a missing id is an error.
	if n == 0 {
		if _, err := r.FindByID(ctx, u.ID); err != nil {
			return err
		}
	}
	return nil
}

// RecordLogin stamps a successful login and clears the failure counter.
// Only the bookkeeping columns are written, so a concurrent password
// change is never overwritten.
func (r *UserRepo) RecordLogin(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET last_login=?,failed_login_attempts=0,updated_at=? WHERE id=?",
		at, at, id)
	return err
}

// RecordFailedLogin increments the failure counter in place and locks the
// account once it reaches max.  A max of zero or less never locks.
// account_locked is assigned first because MySQL evaluates SET left to
// right against already updated columns.
func (r *UserRepo) RecordFailedLogin(ctx context.Context, id uint64, max int, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET account_locked=(account_locked OR (? > 0 AND failed_login_attempts+1 >= ?)),failed_login_attempts=failed_login_attempts+1,updated_at=? WHERE id=?",
		max, max, at, id)
	return err
}

// UpdatePassword replaces the password hash of the user with id.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, hash string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?,updated_at=? WHERE id=?", hash, at, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the user with id.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
