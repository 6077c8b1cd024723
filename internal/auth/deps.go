package auth

import (
	"context"
	"time"

	"github.com/iliyamo/banking-auth/internal/model"
	"github.com/iliyamo/banking-auth/internal/token"
)

// UserRepository is the durable user store.  Lookups that match nothing
// return repository.ErrNotFound.
//
// RecordLogin, RecordFailedLogin and UpdatePassword each write only their
// own columns in a single statement; Save rewrites the whole row and is
// used for inserts.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (model.User, error)
	FindByID(ctx context.Context, id uint64) (model.User, error)
	FindByRole(ctx context.Context, role model.Role) ([]model.User, error)
	FindAll(ctx context.Context) ([]model.User, error)
	Save(ctx context.Context, u *model.User) error
	RecordLogin(ctx context.Context, id uint64, at time.Time) error
	RecordFailedLogin(ctx context.Context, id uint64, max int, at time.Time) error
	UpdatePassword(ctx context.Context, id uint64, hash string, at time.Time) error
	Delete(ctx context.Context, id uint64) error
}

// ResetTokenRepository stores password reset tokens.  Delete reports
// whether the call actually removed the row.
type ResetTokenRepository interface {
	Save(ctx context.Context, t model.PasswordResetToken) error
	FindByToken(ctx context.Context, token string) (model.PasswordResetToken, error)
	Delete(ctx context.Context, token string) (bool, error)
	DeleteByUser(ctx context.Context, userID uint64) error
}

// SessionStore holds the live access and refresh token of each user.
type SessionStore interface {
	Put(ctx context.Context, class token.Class, userID uint64, tok string) error
	Get(ctx context.Context, class token.Class, userID uint64) (string, bool, error)
	Invalidate(ctx context.Context, class token.Class, userID uint64) error
}

// PasswordHasher is a one-way password hash.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Matches(plain, hash string) bool
}

// Notifier delivers a message to a user.  Failures are logged by the
// caller and never reach the API response.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}
