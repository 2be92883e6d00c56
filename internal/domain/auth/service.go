package auth

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	maxFailedLoginAttempts = 5
	lockoutDuration        = 15 * time.Minute
)

type tokenIssuer interface {
	GenerateToken(userID int64, role string) (string, error)
}

// Service contains all business logic for authentication
type Service struct {
	users UserRepository
	jwt   tokenIssuer
	now   func() time.Time
}

type LoginResult struct {
	User        *User
	AccessToken string
}

func NewService(users UserRepository, jwt tokenIssuer) *Service {
	return &Service{
		users: users,
		jwt:   jwt,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &User{
		Email:        normalizeEmail(req.Email),
		PasswordHash: hash,
		Name:         req.Name,
		Phone:        req.Phone,
		IDCard:       req.IDCard,
		Role:         RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"user_id": user.ID}).Info("user registered")
	return user, nil
}

// Login checks the password and issues an access token. Five wrong passwords
// in a row lock the account for fifteen minutes.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	now := s.now()
	if user.LockedUntil != nil && user.LockedUntil.After(now) {
		return nil, ErrAccountLocked
	}

	if err := CheckPassword(req.Password, user.PasswordHash); err != nil {
		attempts := user.FailedLoginAttempts + 1
		var lockedUntil *time.Time
		if attempts >= maxFailedLoginAttempts {
			until := now.Add(lockoutDuration)
			lockedUntil = &until
		}
		if err := s.users.RecordFailedLogin(ctx, user.ID, attempts, lockedUntil); err != nil {
			return nil, err
		}
		if lockedUntil != nil {
			log.WithField("user_id", user.ID).Warn("account locked after failed logins")
			return nil, ErrAccountLocked
		}
		return nil, ErrInvalidCredentials
	}

	if user.FailedLoginAttempts > 0 || user.LockedUntil != nil {
		if err := s.users.ResetFailedLogins(ctx, user.ID); err != nil {
			return nil, err
		}
		user.FailedLoginAttempts = 0
		user.LockedUntil = nil
	}

	token, err := s.jwt.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, AccessToken: token}, nil
}

func (s *Service) Me(ctx context.Context, userID int64) (*User, error) {
	if userID <= 0 {
		return nil, ErrUnauthorized
	}
	return s.users.GetByID(ctx, userID)
}

// EnsureAdmin creates the account when the email is unknown and grants it the
// admin role either way. The password of an existing account is left alone.
func (s *Service) EnsureAdmin(ctx context.Context, req RegisterRequest) (*User, bool, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	switch {
	case errors.Is(err, ErrUserNotFound):
		if len(req.Password) < 6 {
			return nil, false, ErrWeakPassword
		}
		user, err = s.Register(ctx, req)
		if err != nil {
			return nil, false, err
		}
		if err := s.users.SetRole(ctx, user.ID, RoleAdmin); err != nil {
			return nil, false, err
		}
		user.Role = RoleAdmin
		return user, true, nil
	case err != nil:
		return nil, false, err
	}

	if user.Role != RoleAdmin {
		if err := s.users.SetRole(ctx, user.ID, RoleAdmin); err != nil {
			return nil, false, err
		}
		user.Role = RoleAdmin
	}
	return user, false, nil
}
