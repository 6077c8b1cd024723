package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/banking-auth/internal/model"
	"github.com/iliyamo/banking-auth/internal/repository"
)

const (
	// DefaultResetTTL is how long a password reset token stays usable.
	DefaultResetTTL = time.Hour

	resetSubject  = "Password Reset Request"
	notifyTimeout = 10 * time.Second
)

// ResetTokens runs the password reset token lifecycle:
// created -> valid until expiry -> consumed or expired.  Both terminal
// states delete the row.  Expiry is detected lazily on read.
//
// Creating a token deletes every earlier token of the same user, so at
// most one token per user is ever usable.
type ResetTokens struct {
	users    UserRepository
	tokens   ResetTokenRepository
	hasher   PasswordHasher
	notifier Notifier
	log      *slog.Logger

	ttl      time.Duration
	linkBase string
	now      func() time.Time
	newToken func() string

	pending sync.WaitGroup
}

func newResetTokens(d Deps, cfg Config) *ResetTokens {
	ttl := cfg.ResetTTL
	if ttl <= 0 {
		ttl = DefaultResetTTL
	}
	return &ResetTokens{
		users:    d.Users,
		tokens:   d.ResetTokens,
		hasher:   d.Hasher,
		notifier: d.Notifier,
		log:      d.Logger.With("component", "reset-tokens"),
		ttl:      ttl,
		linkBase: cfg.ResetLinkBase,
		now:      d.Now,
		newToken: uuid.NewString,
	}
}

// Create issues a reset token for email and sends it to the user.  The
// token value is only ever delivered through the notifier.  Delivery runs
// in the background; its failures are logged.
func (r *ResetTokens) Create(ctx context.Context, email string) error {
	user, err := r.users.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: no user with the provided email", ErrUserNotFound)
	}
	if err != nil {
		return unavailable("find user", err)
	}

	if err := r.tokens.DeleteByUser(ctx, user.ID); err != nil {
		return unavailable("delete previous reset tokens", err)
	}
	now := r.now().UTC()
	rec := model.PasswordResetToken{
		Token:     r.newToken(),
		UserID:    user.ID,
		ExpiresAt: now.Add(r.ttl),
		CreatedAt: now,
	}
	if err := r.tokens.Save(ctx, rec); err != nil {
		return unavailable("save reset token", err)
	}

	body := "To reset your password, click the link below:\n" + r.link(rec.Token)
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := r.notifier.Send(nctx, user.Email, resetSubject, body); err != nil {
			r.log.Warn("reset notification failed", "user_id", user.ID, "error", err)
		}
	}()
	return nil
}

func (r *ResetTokens) link(tok string) string {
	if r.linkBase == "" {
		return tok
	}
	return r.linkBase + "?token=" + url.QueryEscape(tok)
}

// Validate returns the live record for tok.  An expired record is deleted
// and reported as ErrTokenExpired; later lookups then see ErrTokenNotFound.
func (r *ResetTokens) Validate(ctx context.Context, tok string) (model.PasswordResetToken, error) {
	rec, err := r.tokens.FindByToken(ctx, tok)
	if errors.Is(err, repository.ErrNotFound) {
		return model.PasswordResetToken{}, fmt.Errorf("%w: password reset token is invalid", ErrTokenNotFound)
	}
	if err != nil {
		return model.PasswordResetToken{}, unavailable("find reset token", err)
	}
	if rec.Expired(r.now()) {
		if _, err := r.tokens.Delete(ctx, rec.Token); err != nil {
			return model.PasswordResetToken{}, unavailable("delete expired reset token", err)
		}
		return model.PasswordResetToken{}, fmt.Errorf("%w: the password reset token has expired", ErrTokenExpired)
	}
	return rec, nil
}

// Consume validates tok and sets the owner's password to newPassword.
func (r *ResetTokens) Consume(ctx context.Context, tok, newPassword string) error {
	rec, err := r.Validate(ctx, tok)
	if err != nil {
		return err
	}
	user, err := r.users.FindByID(ctx, rec.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: reset token owner no longer exists", ErrUserNotFound)
	}
	if err != nil {
		return unavailable("find user", err)
	}
	return r.consume(ctx, rec, user, newPassword)
}

// consume finishes a reset for a record already validated for user.
func (r *ResetTokens) consume(ctx context.Context, rec model.PasswordResetToken, user model.User, newPassword string) error {
	// Claiming the row by deletion makes the token single use even when
	// two requests race on it.
	claimed, err := r.tokens.Delete(ctx, rec.Token)
	if err != nil {
		return unavailable("delete reset token", err)
	}
	if !claimed {
		return fmt.Errorf("%w: password reset token was already used", ErrTokenNotFound)
	}
	// A rejected no-op reset still burns the token.
	if r.hasher.Matches(newPassword, user.PasswordHash) {
		return ErrSamePassword
	}

	hash, err := r.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	err = r.users.UpdatePassword(ctx, user.ID, hash, r.now().UTC())
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: reset token owner no longer exists", ErrUserNotFound)
	}
	if err != nil {
		return unavailable("update password", err)
	}
	return nil
}

// Wait blocks until every background notification has finished.
func (r *ResetTokens) Wait() { r.pending.Wait() }
