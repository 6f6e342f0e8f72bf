package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/costtrack/costtrack/internal/auth"
	"github.com/costtrack/costtrack/internal/cache"
	"github.com/costtrack/costtrack/internal/metrics"
	"github.com/costtrack/costtrack/internal/model"
	"github.com/costtrack/costtrack/internal/repository"
)

// Credentials is the body of signup and login requests.
type Credentials struct {
	UserName string `json:"user_name"`
	Password string `json:"password"`
}

// Validate checks field lengths.
func (c Credentials) Validate() error {
	v := &ValidationError{}
	checkLength(v, "user_name", c.UserName, model.MaxUserNameLength)
	checkLength(v, "password", c.Password, model.MaxPasswordLength)
	return v.err()
}

func checkLength(v *ValidationError, field, value string, maxLen int) {
	n := utf8.RuneCountInString(value)
	switch {
	case n == 0:
		v.add(field, "field required")
	case n > maxLen:
		v.add(field, fmt.Sprintf("must be at most %d characters", maxLen))
	}
}

// AuthService handles accounts and token lifecycles.
type AuthService struct {
	users    repository.UserStore
	hasher   *auth.PasswordHasher
	tokens   *auth.TokenIssuer
	denylist cache.Denylist
	logger   *slog.Logger
	metrics  metrics.Recorder
	now      func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(users repository.UserStore, hasher *auth.PasswordHasher, tokens *auth.TokenIssuer, denylist cache.Denylist, logger *slog.Logger, recorder metrics.Recorder) *AuthService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &AuthService{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		denylist: denylist,
		logger:   logger.With("component", "auth"),
		metrics:  recorder,
		now:      time.Now,
	}
}

// Signup creates a user and issues its first token pair.
func (s *AuthService) Signup(ctx context.Context, in Credentials) (*model.User, auth.TokenPair, error) {
	if err := in.Validate(); err != nil {
		return nil, auth.TokenPair{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, auth.TokenPair{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := &model.User{
		UserName:     in.UserName,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserNameExists) {
			s.metrics.IncAuthEvent("signup", "conflict")
			return nil, auth.TokenPair{}, ErrUserExists
		}
		return nil, auth.TokenPair{}, fmt.Errorf("create user: %w", err)
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, auth.TokenPair{}, fmt.Errorf("issue tokens: %w", err)
	}

	s.logger.Info("user signed up", "user_id", user.ID)
	s.metrics.IncAuthEvent("signup", "success")
	return user, pair, nil
}

// Login verifies credentials. Unknown users and wrong passwords both yield
// ErrInvalidCredentials after comparable work.
func (s *AuthService) Login(ctx context.Context, in Credentials) (*model.User, auth.TokenPair, error) {
	if err := in.Validate(); err != nil {
		return nil, auth.TokenPair{}, err
	}

	user, err := s.users.GetUserByUserName(ctx, in.UserName)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.hasher.VerifyDummy(in.Password)
			s.metrics.IncAuthEvent("login", "failure")
			return nil, auth.TokenPair{}, ErrInvalidCredentials
		}
		return nil, auth.TokenPair{}, fmt.Errorf("get user: %w", err)
	}

	ok, err := s.hasher.Verify(in.Password, user.PasswordHash)
	if err != nil {
		s.logger.Warn("stored password hash unreadable", "user_id", user.ID, "error", err)
	}
	if !ok {
		s.metrics.IncAuthEvent("login", "failure")
		return nil, auth.TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, auth.TokenPair{}, fmt.Errorf("issue tokens: %w", err)
	}

	s.metrics.IncAuthEvent("login", "success")
	return user, pair, nil
}

// Authenticate validates an access token and resolves its user.
func (s *AuthService) Authenticate(ctx context.Context, rawAccess string) (*model.AuthContext, error) {
	claims, err := s.tokens.Parse(rawAccess, auth.TokenAccess)
	if err != nil {
		return nil, err
	}
	user, err := s.checkClaims(ctx, claims)
	if err != nil {
		return nil, err
	}
	return &model.AuthContext{
		UserID:    user.ID,
		UserName:  user.UserName,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// checkClaims rejects revoked tokens and tokens whose user no longer exists.
func (s *AuthService) checkClaims(ctx context.Context, claims auth.Claims) (*model.User, error) {
	revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// Logout revokes the caller's access token and, if it parses, the refresh
// token presented alongside it.
func (s *AuthService) Logout(ctx context.Context, ac *model.AuthContext, rawRefresh string) error {
	if err := s.denylist.Revoke(ctx, ac.TokenID, ac.ExpiresAt); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}

	if rawRefresh != "" {
		claims, err := s.tokens.Parse(rawRefresh, auth.TokenRefresh)
		if err == nil && claims.UserID == ac.UserID {
			if err := s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt); err != nil {
				return fmt.Errorf("revoke refresh token: %w", err)
			}
		}
	}

	s.metrics.IncAuthEvent("logout", "success")
	return nil
}

// Refresh exchanges a refresh token for a new pair. The presented refresh
// token is revoked so it cannot be replayed.
func (s *AuthService) Refresh(ctx context.Context, rawRefresh string) (auth.TokenPair, error) {
	claims, err := s.tokens.Parse(rawRefresh, auth.TokenRefresh)
	if err != nil {
		s.metrics.IncAuthEvent("refresh", "failure")
		return auth.TokenPair{}, err
	}
	user, err := s.checkClaims(ctx, claims)
	if err != nil {
		s.metrics.IncAuthEvent("refresh", "failure")
		return auth.TokenPair{}, err
	}

	// Only one caller may consume a refresh token.
	first, err := s.denylist.RevokeIfAbsent(ctx, claims.ID, claims.ExpiresAt)
	if err != nil {
		return auth.TokenPair{}, fmt.Errorf("revoke refresh token: %w", err)
	}
	if !first {
		s.metrics.IncAuthEvent("refresh", "failure")
		return auth.TokenPair{}, ErrTokenRevoked
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return auth.TokenPair{}, fmt.Errorf("issue tokens: %w", err)
	}

	s.metrics.IncAuthEvent("refresh", "success")
	return pair, nil
}

// Me returns the user behind an authenticated request.
func (s *AuthService) Me(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}
