package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/banking-auth/internal/model"
)

// ResetTokenRepo persists password reset tokens.
type ResetTokenRepo struct{ DB *sql.DB }

func NewResetTokenRepo(db *sql.DB) *ResetTokenRepo { return &ResetTokenRepo{DB: db} }

// Save inserts a reset token row.
func (r *ResetTokenRepo) Save(ctx context.Context, t model.PasswordResetToken) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO password_reset_tokens (token, user_id, expires_at, created_at) VALUES (?,?,?,?)",
		t.Token, t.UserID, t.ExpiresAt, t.CreatedAt)
	return err
}

// FindByToken returns the row for token, expired or not.
func (r *ResetTokenRepo) FindByToken(ctx context.Context, token string) (model.PasswordResetToken, error) {
	var t model.PasswordResetToken
	err := r.DB.QueryRowContext(ctx,
		"SELECT token, user_id, expires_at, created_at FROM password_reset_tokens WHERE token=? LIMIT 1",
		token).Scan(&t.Token, &t.UserID, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PasswordResetToken{}, ErrNotFound
	}
	return t, err
}

// Delete removes token and reports whether this call removed it.  Two
// concurrent deletes of the same token see exactly one true.
func (r *ResetTokenRepo) Delete(ctx context.Context, token string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM password_reset_tokens WHERE token=?", token)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteByUser removes every reset token owned by userID.
func (r *ResetTokenRepo) DeleteByUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM password_reset_tokens WHERE user_id=?", userID)
	return err
}
