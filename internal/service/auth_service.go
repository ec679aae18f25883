package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"securechat/internal/domain"
	"securechat/internal/security"
)

// AuthService handles registration, authentication and token issue.
type AuthService struct {
	users  domain.UserRepository
	tokens *security.TokenService
	hash   *security.PasswordHasher
	addrs  *security.AddressHasher
}

func NewAuthService(
	users domain.UserRepository,
	tokens *security.TokenService,
	hash *security.PasswordHasher,
	addrs *security.AddressHasher,
) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		hash:   hash,
		addrs:  addrs,
	}
}

// Column limits shared by both stores. PostgreSQL rejects longer values,
// so they are checked here for every backend.
const (
	MaxUsernameLength  = 50
	MaxEmailLength     = 100
	MaxGroupNameLength = 100
)

type RegisterInput struct {
	Username string
	Email    string
	Password string
	Client   domain.ClientMeta
}

type LoginInput struct {
	Username string
	Password string
	Client   domain.ClientMeta
}

type TokenResponse struct {
	AccessToken string
	TokenType   string
	User        *domain.User
}

// Register creates a user. Emails are stored lower-cased. Uniqueness of username and email is enforced by
// the store, so concurrent registrations of the same name yield exactly one
// success and ErrDuplicateIdentity for the rest.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	switch {
	case username == "" || email == "" || in.Password == "":
		return nil, fmt.Errorf("%w: username, email and password are required", domain.ErrInvalidInput)
	case utf8.RuneCountInString(username) > MaxUsernameLength:
		return nil, fmt.Errorf("%w: username exceeds %d characters", domain.ErrInvalidInput, MaxUsernameLength)
	case utf8.RuneCountInString(email) > MaxEmailLength:
		return nil, fmt.Errorf("%w: email exceeds %d characters", domain.ErrInvalidInput, MaxEmailLength)
	case len(in.Password) > security.MaxPasswordBytes:
		return nil, fmt.Errorf("%w: password exceeds %d bytes", domain.ErrInvalidInput, security.MaxPasswordBytes)
	}

	hashed, err := s.hash.Hash(in.Password)
	if errors.Is(err, security.ErrPasswordTooLong) {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:             uuid.NewString(),
		Username:       username,
		Email:          email,
		HashedPassword: hashed,
		AddressHash:    s.addrs.Hash(in.Client.Address),
		UserAgent:      optional(in.Client.UserAgent),
		Platform:       optional(in.Client.Platform),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks the credentials and records the login time and the
// hashed client address.
func (s *AuthService) Authenticate(ctx context.Context, in LoginInput) (*domain.User, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(in.Username))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := s.hash.Verify(in.Password, user.HashedPassword); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("verify password: %w", err)
	}

	now := time.Now().UTC()
	addrHash := s.addrs.Hash(in.Client.Address)
	if err := s.users.RecordLogin(ctx, user.ID, now, addrHash); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	user.LastLogin = &now
	if addrHash != nil {
		user.AddressHash = addrHash
	}
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*TokenResponse, error) {
	user, err := s.Authenticate(ctx, in)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.CreateForUser(user.ID)
	if err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}

	return &TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        user,
	}, nil
}

func (s *AuthService) Exists(ctx context.Context, username string) (bool, error) {
	_, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get user: %w", err)
	}
	return true, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
