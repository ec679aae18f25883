package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"securechat/internal/domain"
	"securechat/internal/security"
	"securechat/internal/service"
)

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) RecordLogin(ctx context.Context, id string, at time.Time, addressHash *string) error {
	args := m.Called(ctx, id, at, addressHash)
	return args.Error(0)
}

func newAuthService(t *testing.T, repo domain.UserRepository) *service.AuthService {
	t.Helper()
	addrs, err := security.NewAddressHasher([]byte("addr-key"))
	require.NoError(t, err)
	return service.NewAuthService(
		repo,
		security.NewTokenService("secret", time.Hour),
		security.NewPasswordHasher(4), // low cost for tests
		addrs,
	)
}

func TestRegister(t *testing.T) {
	mockRepo := new(MockUserRepo)
	svc := newAuthService(t, mockRepo)

	t.Run("Success", func(t *testing.T) {
		input := service.RegisterInput{
			Username: "newuser",
			Email:    "new@x.com",
			Password: "Password1!",
			Client:   domain.ClientMeta{Address: "10.0.0.1", UserAgent: "curl/8", Platform: "Linux"},
		}

		mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
			return u.Username == "newuser"
		})).Return(nil).Once()

		user, err := svc.Register(context.Background(), input)
		require.NoError(t, err)
		assert.Equal(t, "newuser", user.Username)
		assert.NotEmpty(t, user.ID)
		assert.NotEqual(t, "Password1!", user.HashedPassword)
		require.NotNil(t, user.AddressHash)
		assert.NotContains(t, *user.AddressHash, "10.0.0.1")
		assert.Equal(t, "curl/8", *user.UserAgent)
		assert.Equal(t, "Linux", *user.Platform)
	})

	t.Run("UsernameTaken", func(t *testing.T) {
		input := service.RegisterInput{
			Username: "existing",
			Email:    "existing@x.com",
			Password: "Password1!",
		}

		mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
			return u.Username == "existing"
		})).Return(domain.ErrDuplicateIdentity).Once()

		user, err := svc.Register(context.Background(), input)
		assert.Nil(t, user)
		assert.ErrorIs(t, err, domain.ErrDuplicateIdentity)
	})

	t.Run("MissingFields", func(t *testing.T) {
		for _, in := range []service.RegisterInput{
			{Username: "", Email: "a@x.com", Password: "p"},
			{Username: "a", Email: " ", Password: "p"},
			{Username: "a", Email: "a@x.com", Password: ""},
		} {
			_, err := svc.Register(context.Background(), in)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		}
	})

	mockRepo.AssertExpectations(t)
}

func TestAuthenticate(t *testing.T) {
	hasher := security.NewPasswordHasher(4)
	hashed, err := hasher.Hash("secret1")
	require.NoError(t, err)

	t.Run("Success", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		svc := newAuthService(t, mockRepo)
		alice := &domain.User{ID: "u1", Username: "alice", HashedPassword: hashed}

		mockRepo.On("GetByUsername", mock.Anything, "alice").Return(alice, nil)
		mockRepo.On("RecordLogin", mock.Anything, "u1", mock.AnythingOfType("time.Time"),
			mock.MatchedBy(func(h *string) bool { return h != nil && *h != "" })).Return(nil)

		user, err := svc.Authenticate(context.Background(), service.LoginInput{
			Username: "alice",
			Password: "secret1",
			Client:   domain.ClientMeta{Address: "192.168.1.5"},
		})
		require.NoError(t, err)
		require.NotNil(t, user.LastLogin)
		require.NotNil(t, user.AddressHash)
		mockRepo.AssertExpectations(t)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		svc := newAuthService(t, mockRepo)
		mockRepo.On("GetByUsername", mock.Anything, "ghost").Return(nil, domain.ErrNotFound)

		_, err := svc.Authenticate(context.Background(), service.LoginInput{Username: "ghost", Password: "x"})
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
		mockRepo.AssertNotCalled(t, "RecordLogin", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		svc := newAuthService(t, mockRepo)
		mockRepo.On("GetByUsername", mock.Anything, "alice").
			Return(&domain.User{ID: "u1", Username: "alice", HashedPassword: hashed}, nil)

		_, err := svc.Authenticate(context.Background(), service.LoginInput{Username: "alice", Password: "nope"})
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
		mockRepo.AssertNotCalled(t, "RecordLogin", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("StoreFailure", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		svc := newAuthService(t, mockRepo)
		boom := errors.New("disk on fire")
		mockRepo.On("GetByUsername", mock.Anything, "alice").Return(nil, boom)

		_, err := svc.Authenticate(context.Background(), service.LoginInput{Username: "alice", Password: "x"})
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, domain.ErrInvalidCredentials)
	})
}

func TestLogin(t *testing.T) {
	hasher := security.NewPasswordHasher(4)
	hashed, err := hasher.Hash("secret1")
	require.NoError(t, err)

	mockRepo := new(MockUserRepo)
	svc := newAuthService(t, mockRepo)
	mockRepo.On("GetByUsername", mock.Anything, "alice").
		Return(&domain.User{ID: "u1", Username: "alice", HashedPassword: hashed}, nil)
	mockRepo.On("RecordLogin", mock.Anything, "u1", mock.Anything, (*string)(nil)).Return(nil)

	resp, err := svc.Login(context.Background(), service.LoginInput{Username: "alice", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "bearer", resp.TokenType)

	sub, err := security.NewTokenService("secret", time.Hour).Subject(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", sub)
}

func TestExists(t *testing.T) {
	mockRepo := new(MockUserRepo)
	svc := newAuthService(t, mockRepo)
	mockRepo.On("GetByUsername", mock.Anything, "alice").Return(&domain.User{ID: "u1"}, nil)
	mockRepo.On("GetByUsername", mock.Anything, "ghost").Return(nil, domain.ErrNotFound)

	ok, err := svc.Exists(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Exists(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}
