package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"kharcha/internal/core"
	applog "kharcha/internal/log"
	"kharcha/internal/storage"
)

// AuthConfig controls session lifetime and hashing cost.
type AuthConfig struct {
	SessionTTL  time.Duration
	RememberTTL time.Duration
	BcryptCost  int
}

func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		SessionTTL:  24 * time.Hour,
		RememberTTL: 30 * 24 * time.Hour,
		BcryptCost:  bcrypt.DefaultCost,
	}
}

// AuthService registers users and manages their sessions.
type AuthService struct {
	users    storage.UserStore
	sessions storage.SessionStore
	cfg      AuthConfig
	logger   *applog.Logger
	now      func() time.Time
}

func NewAuthService(users storage.UserStore, sessions storage.SessionStore, cfg AuthConfig, logger *applog.Logger) *AuthService {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger.WithComponent(applog.ComponentAuth),
		now:      time.Now,
	}
}

// WithClock replaces the time source.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// Register validates r, hashes the password and stores the user. The
// Aadhar number is stored in its normalized XXXX XXXX XXXX form.
func (s *AuthService) Register(ctx context.Context, r core.Registration) (core.User, error) {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Aadhar = core.NormalizeAadhar(r.Aadhar)
	r.Phone = strings.TrimSpace(r.Phone)
	if err := r.Validate(); err != nil {
		return core.User{}, invalid(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), s.cfg.BcryptCost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.users.CreateUser(ctx, core.User{
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: string(hash),
		Aadhar:       r.Aadhar,
		Phone:        r.Phone,
		DateOfBirth:  r.DateOfBirth,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	s.logger.InfoContext(ctx, "User registered",
		applog.FieldUserID, u.ID,
		applog.FieldOperation, applog.OpRegister)
	return u, nil
}

// Login checks the credentials and opens a session. remember selects the
// longer TTL.
func (s *AuthService) Login(ctx context.Context, username, password string, remember bool) (core.Session, core.User, error) {
	u, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, core.ErrNotFound) {
		return core.Session{}, core.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return core.Session{}, core.User{}, fmt.Errorf("get user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.WarnContext(ctx, "Failed login attempt",
			applog.FieldUserID, u.ID,
			applog.FieldOperation, applog.OpLogin)
		return core.Session{}, core.User{}, ErrInvalidCredentials
	}

	ttl := s.cfg.SessionTTL
	if remember {
		ttl = s.cfg.RememberTTL
	}
	now := s.now().UTC().Truncate(time.Second)
	sess := core.Session{
		Token:     uuid.NewString(),
		UserID:    u.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.sessions.CreateSession(ctx, sess); err != nil {
		return core.Session{}, core.User{}, fmt.Errorf("create session: %w", err)
	}
	s.logger.InfoContext(ctx, "User logged in",
		applog.FieldUserID, u.ID,
		applog.FieldOperation, applog.OpLogin,
		"remember", remember)
	return sess, u, nil
}

// Logout drops the session. Unknown tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.DeleteSession(ctx, token); err != nil && !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Authenticate resolves a session token to its user. Missing and expired
// sessions yield ErrUnauthorized.
func (s *AuthService) Authenticate(ctx context.Context, token string) (core.User, error) {
	if token == "" {
		return core.User{}, ErrUnauthorized
	}
	sess, err := s.sessions.GetSession(ctx, token)
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, ErrUnauthorized
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get session: %w", err)
	}
	if sess.Expired(s.now()) {
		_ = s.sessions.DeleteSession(ctx, token)
		return core.User{}, ErrUnauthorized
	}
	u, err := s.users.GetUser(ctx, sess.UserID)
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, ErrUnauthorized
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// CleanupSessions removes expired sessions and returns how many went.
func (s *AuthService) CleanupSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "Expired sessions removed", "count", n)
	}
	return n, nil
}
