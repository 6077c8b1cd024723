package model

import (
	"fmt"
	"strings"
	"time"
)

// Role is the enumerated authority level of a user.  The string value is
// what gets stored in users.role and carried in the "role" JWT claim.
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleAuditor    Role = "AUDITOR"
	RoleUser       Role = "USER"
)

// Roles lists every defined role, highest authority first.
var Roles = []Role{RoleSuperAdmin, RoleAdmin, RoleAuditor, RoleUser}

// ParseRole normalizes s and returns the matching Role.  Unknown names
// return an error rather than a fallback role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Roles {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func (r Role) String() string { return string(r) }

// User represents an application user record as stored in the
// `users` table.  Each field corresponds to a column in the database.
//
// Fields:
//
//	ID                  – primary key identifier of the user.
//	Email               – unique, lower-cased email address.
//	FullName            – display name.
//	PasswordHash        – bcrypt hashed password.
//	Role                – authority level (SUPER_ADMIN, ADMIN, AUDITOR, USER).
//	AccountLocked       – locked accounts cannot log in.
//	EmailVerified       – whether the email address was confirmed.
//	FailedLoginAttempts – consecutive failed password checks.
//	CreatedAt           – timestamp of creation.
//	UpdatedAt           – timestamp of last update.
//	LastLogin           – timestamp of the last successful login (nil if never).
type User struct {
	ID                  uint64     // users.id
	Email               string     // users.email
	FullName            string     // users.full_name
	PasswordHash        string     // users.password_hash
	Role                Role       // users.role
	AccountLocked       bool       // users.account_locked
	EmailVerified       bool       // users.email_verified
	FailedLoginAttempts int        // users.failed_login_attempts
	CreatedAt           time.Time  // users.created_at
	UpdatedAt           time.Time  // users.updated_at
	LastLogin           *time.Time // users.last_login (nullable)
}

// PasswordResetToken models a row in the `password_reset_tokens` table.
// A token is single use: it is deleted when consumed or when a read
// finds it expired.
//
// Fields:
//
//	Token     – random opaque value sent to the user by email.
//	UserID    – owner of the token.
//	ExpiresAt – instant from which the token is no longer usable.
//	CreatedAt – timestamp of creation.
type PasswordResetToken struct {
	Token     string    // password_reset_tokens.token
	UserID    uint64    // password_reset_tokens.user_id
	ExpiresAt time.Time // password_reset_tokens.expires_at
	CreatedAt time.Time // password_reset_tokens.created_at
}

// Expired reports whether the token is no longer usable at now.
func (t PasswordResetToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
