package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/iliyamo/banking-auth/internal/model"
	"github.com/iliyamo/banking-auth/internal/repository"
)

// Verifier checks an email/password pair against the user repository.
// It never writes.
type Verifier struct {
	users  UserRepository
	hasher PasswordHasher

	dummyOnce sync.Once
	dummyHash string
}

func NewVerifier(users UserRepository, hasher PasswordHasher) *Verifier {
	return &Verifier{users: users, hasher: hasher}
}

// Verify returns the user owning email when password matches.  An unknown
// email, a wrong password and a locked account all fail with
// ErrInvalidCredentials.  On a wrong password the loaded user is returned
// alongside the error so the caller can count the failure.
func (v *Verifier) Verify(ctx context.Context, email, password string) (model.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return model.User{}, ErrInvalidCredentials
	}
	u, err := v.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		// Spend the same hashing work as a real check so response time
		// does not reveal whether the email exists.
		v.hasher.Matches(password, v.dummy())
		return model.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return model.User{}, unavailable("find user", err)
	}
	if !v.hasher.Matches(password, u.PasswordHash) {
		return u, fmt.Errorf("%w: %w", ErrInvalidCredentials, errPasswordMismatch)
	}
	if u.AccountLocked {
		return model.User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (v *Verifier) dummy() string {
	v.dummyOnce.Do(func() {
		v.dummyHash, _ = v.hasher.Hash("not-a-real-password")
	})
	return v.dummyHash
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
