package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/banking-auth/internal/model"
	"github.com/iliyamo/banking-auth/internal/rbac"
	"github.com/iliyamo/banking-auth/internal/repository"
)

// RegisterInput describes the user to create.
type RegisterInput struct {
	Email    string
	Password string
	FullName string
	Role     string
}

// UserView is the public projection of a user.
type UserView struct {
	ID        uint64
	Email     string
	FullName  string
	Role      model.Role
	CreatedAt time.Time
	Message   string
}

func viewOf(u model.User, msg string) UserView {
	return UserView{ID: u.ID, Email: u.Email, FullName: u.FullName, Role: u.Role, CreatedAt: u.CreatedAt, Message: msg}
}

// RegisterUser creates a user on behalf of actorEmail.  The actor's role
// must be allowed to create the target role.
func (s *Service) RegisterUser(ctx context.Context, actorEmail string, in RegisterInput) (UserView, error) {
	email := normalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return UserView{}, fmt.Errorf("%w: valid email is required", ErrInvalidRequest)
	}
	if in.Password == "" {
		return UserView{}, fmt.Errorf("%w: password is required", ErrInvalidRequest)
	}
	role, err := model.ParseRole(in.Role)
	if err != nil {
		return UserView{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	_, err = s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return UserView{}, fmt.Errorf("%w: user with email %s already exists", ErrUserAlreadyExists, email)
	case !errors.Is(err, repository.ErrNotFound):
		return UserView{}, unavailable("find user", err)
	}

	actor, err := s.users.FindByEmail(ctx, normalizeEmail(actorEmail))
	if errors.Is(err, repository.ErrNotFound) {
		return UserView{}, fmt.Errorf("%w: creator user not found", ErrUserNotFound)
	}
	if err != nil {
		return UserView{}, unavailable("find creator", err)
	}

	if !rbac.CanCreate(actor.Role, role) {
		s.log.Warn("register denied", "actor_role", actor.Role, "target_role", role)
		return UserView{}, fmt.Errorf("%w: role '%s' does not have permission to create role '%s'", ErrAccessDenied, actor.Role, role)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return UserView{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	user := model.User{
		Email:               email,
		FullName:            strings.TrimSpace(in.FullName),
		PasswordHash:        hash,
		Role:                role,
		EmailVerified:       true,
		AccountLocked:       false,
		FailedLoginAttempts: 0,
		LastLogin:           nil,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.users.Save(ctx, &user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return UserView{}, fmt.Errorf("%w: user with email %s already exists", ErrUserAlreadyExists, email)
		}
		return UserView{}, unavailable("save user", err)
	}

	s.log.Info("user registered", "user_id", user.ID, "role", role, "actor_id", actor.ID)
	return viewOf(user, fmt.Sprintf("%s registered successfully", role)), nil
}

// DeleteUser removes targetID on behalf of actorEmail.  The actor's role
// must be allowed to delete the target's role.  The target's live
// sessions are dropped with it.
func (s *Service) DeleteUser(ctx context.Context, actorEmail string, targetID uint64) (string, error) {
	actor, err := s.users.FindByEmail(ctx, normalizeEmail(actorEmail))
	if errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("%w: requesting user not found", ErrUserNotFound)
	}
	if err != nil {
		return "", unavailable("find requesting user", err)
	}
	target, err := s.users.FindByID(ctx, targetID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("%w: user to delete not found", ErrUserNotFound)
	}
	if err != nil {
		return "", unavailable("find target user", err)
	}

	if !rbac.CanDelete(actor.Role, target.Role) {
		s.log.Warn("delete denied", "actor_role", actor.Role, "target_role", target.Role)
		return "", fmt.Errorf("%w: you do not have permission to delete this user", ErrAccessDenied)
	}

	if err := s.users.Delete(ctx, target.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("%w: user to delete not found", ErrUserNotFound)
		}
		return "", unavailable("delete user", err)
	}
	s.dropSessions(ctx, target.ID)

	s.log.Info("user deleted", "user_id", target.ID, "actor_id", actor.ID)
	return fmt.Sprintf("%s deleted %s successfully", actor.Role, target.Role), nil
}

// UsersByRole lists the users holding role.
func (s *Service) UsersByRole(ctx context.Context, role string) ([]UserView, error) {
	r, err := model.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	users, err := s.users.FindByRole(ctx, r)
	if err != nil {
		return nil, unavailable("list users by role", err)
	}
	out := make([]UserView, 0, len(users))
	for _, u := range users {
		out = append(out, viewOf(u, "User registered successfully"))
	}
	return out, nil
}

// AllUsers lists every user.
func (s *Service) AllUsers(ctx context.Context) ([]UserView, error) {
	users, err := s.users.FindAll(ctx)
	if err != nil {
		return nil, unavailable("list users", err)
	}
	out := make([]UserView, 0, len(users))
	for _, u := range users {
		out = append(out, viewOf(u, fmt.Sprintf("%s registered successfully", u.Role)))
	}
	return out, nil
}

// Bootstrap creates the first SUPER_ADMIN.  No role may create another
// SUPER_ADMIN, so the initial one has to come from configuration.  An
// existing account with that email is left untouched.
func (s *Service) Bootstrap(ctx context.Context, email, password, fullName string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return false, fmt.Errorf("%w: bootstrap email and password are required", ErrInvalidRequest)
	}
	_, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, unavailable("find user", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	user := model.User{
		Email:         email,
		FullName:      strings.TrimSpace(fullName),
		PasswordHash:  hash,
		Role:          model.RoleSuperAdmin,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.users.Save(ctx, &user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return false, nil
		}
		return false, unavailable("save user", err)
	}
	s.log.Info("bootstrap super admin created", "user_id", user.ID)
	return true, nil
}
