// Package auth implements login, token refresh, password recovery and the
// role-gated user management operations.  The Service holds no state of
// its own: users live in the repository, live tokens in the session store.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/banking-auth/internal/model"
	"github.com/iliyamo/banking-auth/internal/repository"
	"github.com/iliyamo/banking-auth/internal/token"
)

// Deps are the collaborators of a Service.
type Deps struct {
	Users       UserRepository
	ResetTokens ResetTokenRepository
	Sessions    SessionStore
	Codec       *token.Codec
	Hasher      PasswordHasher
	Notifier    Notifier
	Logger      *slog.Logger
	Now         func() time.Time // defaults to time.Now
}

// Config tunes a Service.
type Config struct {
	ResetTTL        time.Duration // lifetime of password reset tokens, default one hour
	ResetLinkBase   string        // URL the reset token is appended to in the email
	MaxFailedLogins int           // lock the account after this many wrong passwords; 0 disables
}

// Service is the auth orchestrator.
type Service struct {
	users    UserRepository
	sessions SessionStore
	codec    *token.Codec
	hasher   PasswordHasher
	verifier *Verifier
	resets   *ResetTokens
	log      *slog.Logger
	now      func() time.Time

	maxFailedLogins int
}

// NewService validates d and returns a Service.
func NewService(d Deps, cfg Config) (*Service, error) {
	if d.Users == nil || d.ResetTokens == nil || d.Sessions == nil || d.Codec == nil || d.Hasher == nil || d.Notifier == nil {
		return nil, errors.New("auth: missing dependency")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Service{
		users:           d.Users,
		sessions:        d.Sessions,
		codec:           d.Codec,
		hasher:          d.Hasher,
		verifier:        NewVerifier(d.Users, d.Hasher),
		resets:          newResetTokens(d, cfg),
		log:             d.Logger.With("component", "auth"),
		now:             d.Now,
		maxFailedLogins: cfg.MaxFailedLogins,
	}, nil
}

// Resets exposes the reset token lifecycle.
func (s *Service) Resets() *ResetTokens { return s.resets }

// LoginResult is returned by a successful Login.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
	UserID       uint64
	FullName     string
	Role         model.Role
	Message      string
}

// Login verifies the credentials, issues an access and a refresh token and
// stores both as the user's live tokens before returning them.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	user, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		if errors.Is(err, errPasswordMismatch) {
			s.recordFailedLogin(ctx, user)
		}
		if errors.Is(err, ErrInvalidCredentials) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	access, err := s.codec.Issue(user, token.Access)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.codec.Issue(user, token.Refresh)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue refresh token: %w", err)
	}
	if err := s.sessions.Put(ctx, token.Access, user.ID, access.Token); err != nil {
		return LoginResult{}, unavailable("store access token", err)
	}
	if err := s.sessions.Put(ctx, token.Refresh, user.ID, refresh.Token); err != nil {
		return LoginResult{}, unavailable("store refresh token", err)
	}

	s.recordLogin(ctx, user.ID)
	s.log.Info("login succeeded", "user_id", user.ID, "role", user.Role)

	return LoginResult{
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		AccessExp:    access.Exp,
		RefreshExp:   refresh.Exp,
		UserID:       user.ID,
		FullName:     user.FullName,
		Role:         user.Role,
		Message:      "Login successful",
	}, nil
}

// recordLogin stamps the last login and clears the failure counter.  It is
// bookkeeping only: a failure is logged and does not fail the login.
func (s *Service) recordLogin(ctx context.Context, id uint64) {
	if err := s.users.RecordLogin(ctx, id, s.now().UTC()); err != nil {
		s.log.Warn("record login failed", "user_id", id, "error", err)
	}
}

func (s *Service) recordFailedLogin(ctx context.Context, user model.User) {
	if user.ID == 0 {
		return
	}
	if err := s.users.RecordFailedLogin(ctx, user.ID, s.maxFailedLogins, s.now().UTC()); err != nil {
		s.log.Warn("record failed login failed", "user_id", user.ID, "error", err)
		return
	}
	// Attempts as read before this one; concurrent failures may push the
	// stored counter further.
	if s.maxFailedLogins > 0 && user.FailedLoginAttempts+1 >= s.maxFailedLogins {
		s.log.Warn("account locked after failed logins", "user_id", user.ID, "attempts", user.FailedLoginAttempts+1)
	}
}

// RefreshResult is returned by a successful Refresh.
type RefreshResult struct {
	AccessToken string
	AccessExp   time.Time
}

// Refresh exchanges a refresh token for a new access token.  The refresh
// token must equal the user's live refresh token byte for byte; any other
// token, including one superseded by a later login, invalidates the live
// entry and fails with ErrInvalidToken.  The refresh token is not rotated.
// Concurrent refreshes are not serialized: each compares against whatever
// is stored when it runs.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (RefreshResult, error) {
	raw := strings.TrimSpace(refreshToken)
	if _, err := s.codec.ValidateClass(raw, token.Refresh); err != nil {
		return RefreshResult{}, fmt.Errorf("%w: invalid refresh token", ErrInvalidToken)
	}
	subject, err := token.SubjectOf(raw)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("%w: invalid refresh token", ErrInvalidToken)
	}

	user, err := s.users.FindByEmail(ctx, subject)
	if errors.Is(err, repository.ErrNotFound) {
		return RefreshResult{}, ErrUserNotFound
	}
	if err != nil {
		return RefreshResult{}, unavailable("find user", err)
	}

	stored, ok, err := s.sessions.Get(ctx, token.Refresh, user.ID)
	if err != nil {
		return RefreshResult{}, unavailable("load refresh token", err)
	}
	if !ok || subtle.ConstantTimeCompare([]byte(stored), []byte(raw)) != 1 {
		if err := s.sessions.Invalidate(ctx, token.Refresh, user.ID); err != nil {
			return RefreshResult{}, unavailable("invalidate refresh token", err)
		}
		s.log.Warn("refresh token mismatch, session invalidated", "user_id", user.ID)
		return RefreshResult{}, fmt.Errorf("%w: refresh token not found or expired", ErrInvalidToken)
	}

	access, err := s.codec.Issue(user, token.Access)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("issue access token: %w", err)
	}
	if err := s.sessions.Put(ctx, token.Access, user.ID, access.Token); err != nil {
		return RefreshResult{}, unavailable("store access token", err)
	}
	return RefreshResult{AccessToken: access.Token, AccessExp: access.Exp}, nil
}

// Principal is the caller identified by a live access token.
type Principal struct {
	UserID uint64
	Email  string
	Role   model.Role
}

// Authenticate resolves an access token to its principal.  The token must
// be valid and equal to the user's live access token.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (Principal, error) {
	claims, err := s.codec.ValidateClass(accessToken, token.Access)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	stored, ok, err := s.sessions.Get(ctx, token.Access, claims.UserID)
	if err != nil {
		return Principal{}, unavailable("load access token", err)
	}
	if !ok || subtle.ConstantTimeCompare([]byte(stored), []byte(accessToken)) != 1 {
		return Principal{}, fmt.Errorf("%w: session is no longer active", ErrInvalidToken)
	}
	return Principal{UserID: claims.UserID, Email: claims.Subject, Role: claims.Role}, nil
}

// Logout drops both live tokens of userID.
func (s *Service) Logout(ctx context.Context, userID uint64) error {
	if err := s.sessions.Invalidate(ctx, token.Access, userID); err != nil {
		return unavailable("invalidate access token", err)
	}
	if err := s.sessions.Invalidate(ctx, token.Refresh, userID); err != nil {
		return unavailable("invalidate refresh token", err)
	}
	return nil
}

// dropSessions is Logout for paths where the main change already
// happened; failures are logged.
func (s *Service) dropSessions(ctx context.Context, userID uint64) {
	if err := s.Logout(ctx, userID); err != nil {
		s.log.Warn("drop sessions failed", "user_id", userID, "error", err)
	}
}

// ForgotPassword starts a self-service password reset.  The acting
// principal may only reset their own password.
func (s *Service) ForgotPassword(ctx context.Context, email, authenticatedEmail string) (string, error) {
	authenticatedEmail = normalizeEmail(authenticatedEmail)
	if authenticatedEmail == "" {
		return "", fmt.Errorf("%w: authenticated email is missing", ErrAccessDenied)
	}
	if normalizeEmail(email) != authenticatedEmail {
		return "", fmt.Errorf("%w: you can only reset your own password", ErrAccessDenied)
	}
	if err := s.resets.Create(ctx, authenticatedEmail); err != nil {
		return "", err
	}
	return "Password reset token sent.", nil
}

// ResetPassword completes a reset started by ForgotPassword.  A token that
// belongs to another user is treated as unknown.  On success every live
// session of the user is dropped.
func (s *Service) ResetPassword(ctx context.Context, email, resetToken, newPassword string) (string, error) {
	resetToken = strings.TrimSpace(resetToken)
	if resetToken == "" {
		return "", fmt.Errorf("%w: token is missing", ErrInvalidRequest)
	}
	if newPassword == "" {
		return "", fmt.Errorf("%w: new password is missing", ErrInvalidRequest)
	}

	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", unavailable("find user", err)
	}

	rec, err := s.resets.Validate(ctx, resetToken)
	if err != nil {
		return "", err
	}
	if rec.UserID != user.ID {
		return "", fmt.Errorf("%w: password reset token is invalid", ErrTokenNotFound)
	}
	if err := s.resets.consume(ctx, rec, user, newPassword); err != nil {
		return "", err
	}

	s.dropSessions(ctx, user.ID)
	s.log.Info("password reset", "user_id", user.ID)
	return "Password successfully reset!", nil
}

// Wait blocks until background notifications have been handed off.
func (s *Service) Wait() { s.resets.Wait() }
