// Package token issues and validates the signed session tokens handed out
// at login and refresh.  Tokens are HS256 JWTs carrying the subject email,
// the numeric user id, the role and the token class.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
	"github.com/google/uuid"       // random token ids (jti)

	"github.com/iliyamo/banking-auth/internal/model"
)

// Class distinguishes short-lived access tokens from long-lived refresh tokens.
type Class string

const (
	Access  Class = "access"
	Refresh Class = "refresh"
)

// CacheKey returns the session cache key of this class for userID,
// e.g. "access_token:42".
func (c Class) CacheKey(userID uint64) string {
	return fmt.Sprintf("%s_token:%d", c, userID)
}

// Default lifetimes of the two classes.
const (
	DefaultAccessTTL  = 30 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// ErrInvalid is returned for every token that fails validation.  Expired,
// tampered and malformed tokens are deliberately not distinguished.
var ErrInvalid = errors.New("invalid token")

// Claims is the payload of a session token.
type Claims struct {
	UserID uint64     `json:"uid"`
	Role   model.Role `json:"role"`
	Class  Class      `json:"cls"`
	jwt.RegisteredClaims
}

// Issued is a freshly signed token together with its expiry.
type Issued struct {
	Token string
	Class Class
	Exp   time.Time
}

// Codec signs and verifies tokens with a process-wide secret.
type Codec struct {
	secret []byte
	ttl    map[Class]time.Duration
	now    func() time.Time
}

// Option customizes a Codec.
type Option func(*Codec)

// WithTTL overrides the lifetime of one token class.
func WithTTL(class Class, ttl time.Duration) Option {
	return func(c *Codec) {
		if ttl > 0 {
			c.ttl[class] = ttl
		}
	}
}

// WithClock replaces the time source used for iat/exp and validation.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec builds a Codec.  An empty secret is a configuration error.
func NewCodec(secret string, opts ...Option) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("token: signing secret is required")
	}
	c := &Codec{
		secret: []byte(secret),
		ttl: map[Class]time.Duration{
			Access:  DefaultAccessTTL,
			Refresh: DefaultRefreshTTL,
		},
		now: time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// TTL returns the lifetime configured for class.
func (c *Codec) TTL(class Class) time.Duration { return c.ttl[class] }

// Issue builds and signs a token of the given class for user.
func (c *Codec) Issue(user model.User, class Class) (Issued, error) {
	ttl, ok := c.ttl[class]
	if !ok {
		return Issued{}, fmt.Errorf("token: unknown class %q", class)
	}
	// Truncate to whole seconds; NumericDate drops sub-second precision anyway.
	now := c.now().UTC().Truncate(time.Second)
	exp := now.Add(ttl)
	claims := Claims{
		UserID: user.ID,
		Role:   user.Role,
		Class:  class,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return Issued{}, err
	}
	return Issued{Token: signed, Class: class, Exp: exp}, nil
}

// Validate verifies signature and expiry and returns the claims.  Every
// failure is reported as ErrInvalid.
func (c *Codec) Validate(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !tok.Valid {
		return nil, ErrInvalid
	}
	if claims.Subject == "" || (claims.Class != Access && claims.Class != Refresh) {
		return nil, ErrInvalid
	}
	return claims, nil
}

// ValidateClass is Validate plus a check that the token is of class want.
func (c *Codec) ValidateClass(raw string, want Class) (*Claims, error) {
	claims, err := c.Validate(raw)
	if err != nil {
		return nil, err
	}
	if claims.Class != want {
		return nil, ErrInvalid
	}
	return claims, nil
}

// SubjectOf extracts the subject claim without checking the signature.
// Only call it on a token that Validate has already accepted.
func SubjectOf(raw string) (string, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return "", ErrInvalid
	}
	if claims.Subject == "" {
		return "", ErrInvalid
	}
	return claims.Subject, nil
}
