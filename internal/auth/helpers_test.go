package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/banking-auth/internal/logging"
	"github.com/iliyamo/banking-auth/internal/model"
	"github.com/iliyamo/banking-auth/internal/repository"
	"github.com/iliyamo/banking-auth/internal/session"
	"github.com/iliyamo/banking-auth/internal/token"
	"github.com/iliyamo/banking-auth/internal/utils"
)

type memUsers struct {
	mu     sync.Mutex
	rows   map[uint64]model.User
	nextID uint64
	err    error

	// afterFindByEmail runs once, outside the lock, after the next
	// successful FindByEmail has read its row.
	afterFindByEmail func()
}

func newMemUsers() *memUsers { return &memUsers{rows: map[uint64]model.User{}} }

func (m *memUsers) FindByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	if m.err != nil {
		m.mu.Unlock()
		return model.User{}, m.err
	}
	for _, u := range m.rows {
		if u.Email == email {
			hook := m.afterFindByEmail
			m.afterFindByEmail = nil
			m.mu.Unlock()
			if hook != nil {
				hook()
			}
			return u, nil
		}
	}
	m.mu.Unlock()
	return model.User{}, repository.ErrNotFound
}

func (m *memUsers) FindByID(_ context.Context, id uint64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return model.User{}, m.err
	}
	u, ok := m.rows[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) FindByRole(_ context.Context, role model.Role) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []model.User
	for id := uint64(1); id <= m.nextID; id++ {
		if u, ok := m.rows[id]; ok && u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memUsers) FindAll(_ context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []model.User
	for id := uint64(1); id <= m.nextID; id++ {
		if u, ok := m.rows[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memUsers) Save(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if u.ID == 0 {
		for _, existing := range m.rows {
			if existing.Email == u.Email {
				return repository.ErrEmailExists
			}
		}
		m.nextID++
		u.ID = m.nextID
	} else if _, ok := m.rows[u.ID]; !ok {
		return repository.ErrNotFound
	}
	m.rows[u.ID] = *u
	return nil
}

// update applies fn to the stored row for id under the lock.
func (m *memUsers) update(id uint64, fn func(u *model.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	u, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&u)
	m.rows[id] = u
	return nil
}

func (m *memUsers) RecordLogin(_ context.Context, id uint64, at time.Time) error {
	err := m.update(id, func(u *model.User) {
		u.LastLogin = &at
		u.FailedLoginAttempts = 0
		u.UpdatedAt = at
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}

func (m *memUsers) RecordFailedLogin(_ context.Context, id uint64, max int, at time.Time) error {
	err := m.update(id, func(u *model.User) {
		u.FailedLoginAttempts++
		if max > 0 && u.FailedLoginAttempts >= max {
			u.AccountLocked = true
		}
		u.UpdatedAt = at
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}

func (m *memUsers) UpdatePassword(_ context.Context, id uint64, hash string, at time.Time) error {
	return m.update(id, func(u *model.User) {
		u.PasswordHash = hash
		u.UpdatedAt = at
	})
}

func (m *memUsers) Delete(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memUsers) get(t *testing.T, id uint64) model.User {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	require.True(t, ok, "user %d missing", id)
	return u
}

type memResets struct {
	mu   sync.Mutex
	rows map[string]model.PasswordResetToken
	err  error
}

func newMemResets() *memResets { return &memResets{rows: map[string]model.PasswordResetToken{}} }

func (m *memResets) Save(_ context.Context, t model.PasswordResetToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.rows[t.Token] = t
	return nil
}

func (m *memResets) FindByToken(_ context.Context, tok string) (model.PasswordResetToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return model.PasswordResetToken{}, m.err
	}
	t, ok := m.rows[tok]
	if !ok {
		return model.PasswordResetToken{}, repository.ErrNotFound
	}
	return t, nil
}

func (m *memResets) Delete(_ context.Context, tok string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.rows[tok]
	delete(m.rows, tok)
	return ok, nil
}

func (m *memResets) DeleteByUser(_ context.Context, userID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for k, t := range m.rows {
		if t.UserID == userID {
			delete(m.rows, k)
		}
	}
	return nil
}

func (m *memResets) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type sentMail struct {
	To, Subject, Body string
}

type recordingNotifier struct {
	sent chan sentMail
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, to, subject, body string) error {
	n.sent <- sentMail{To: to, Subject: subject, Body: body}
	return n.err
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc      *Service
	users    *memUsers
	resets   *memResets
	notifier *recordingNotifier
	mr       *miniredis.Miniredis
	sessions *session.Store
	clock    *testClock
	hasher   utils.BcryptHasher
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	clock := &testClock{now: time.Now().UTC()}
	codec, err := token.NewCodec("test-secret", token.WithClock(clock.Now))
	require.NoError(t, err)

	fx := &fixture{
		users:    newMemUsers(),
		resets:   newMemResets(),
		notifier: &recordingNotifier{sent: make(chan sentMail, 32)},
		mr:       mr,
		sessions: session.NewStore(rdb, codec.TTL),
		clock:    clock,
		hasher:   utils.NewBcryptHasher(bcrypt.MinCost),
	}
	if cfg.ResetLinkBase == "" {
		cfg.ResetLinkBase = "http://localhost:8080/v1/auth/reset-password"
	}
	fx.svc, err = NewService(Deps{
		Users:       fx.users,
		ResetTokens: fx.resets,
		Sessions:    fx.sessions,
		Codec:       codec,
		Hasher:      fx.hasher,
		Notifier:    fx.notifier,
		Logger:      logging.Discard(),
		Now:         clock.Now,
	}, cfg)
	require.NoError(t, err)
	return fx
}

func (fx *fixture) addUser(t *testing.T, email, password string, role model.Role) model.User {
	t.Helper()
	hash, err := fx.hasher.Hash(password)
	require.NoError(t, err)
	u := model.User{Email: email, FullName: strings.Split(email, "@")[0], PasswordHash: hash, Role: role,
		EmailVerified: true, CreatedAt: fx.clock.Now(), UpdatedAt: fx.clock.Now()}
	require.NoError(t, fx.users.Save(context.Background(), &u))
	return u
}

// nextMail waits for the background reset notification.
func (fx *fixture) nextMail(t *testing.T) sentMail {
	t.Helper()
	select {
	case m := <-fx.notifier.sent:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no notification sent")
		return sentMail{}
	}
}

// resetTokenFrom pulls the token out of the reset link in a mail body.
func resetTokenFrom(t *testing.T, m sentMail) string {
	t.Helper()
	i := strings.Index(m.Body, "token=")
	require.GreaterOrEqual(t, i, 0, "no token in %q", m.Body)
	return strings.TrimSpace(m.Body[i+len("token="):])
}

var errBoom = errors.New("connection refused")
