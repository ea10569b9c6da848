package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/yes-simulation/accounts/internal/auth"
	"github.com/yes-simulation/accounts/internal/domain"
	apperrors "github.com/yes-simulation/accounts/pkg/errors"
)

// --- Mocks ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

// --- Helpers ---

const testSecretKey = "test_key"

type fixture struct {
	svc     *AuthService
	users   *mockUserRepository
	events  *mockPublisher
	metrics *Metrics
	jwt     *auth.JWTManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:   new(mockUserRepository),
		events:  new(mockPublisher),
		metrics: NewMetrics(prometheus.NewRegistry()),
		jwt:     auth.NewJWTManager("test-secret-key-for-testing-purposes", 20*time.Minute, 168*time.Hour),
	}
	cfg := Config{SecretKeys: []string{"123", testSecretKey}, BcryptCost: bcrypt.MinCost, PasswordMinLength: 6}
	f.svc = NewAuthService(cfg, f.users, f.jwt, f.events, f.metrics, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() {
		f.users.AssertExpectations(t)
		f.events.AssertExpectations(t)
	})
	return f
}

func hashForTest(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func requireAppError(t *testing.T, err error, sentinel error, message string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel), "want %v, got %v", sentinel, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, message, appErr.Message)
}

func notFound(username string) error {
	return apperrors.NotFound("user", username)
}

// --- Register ---

func TestRegister_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.users.On("GetByUsername", mock.Anything, "bar").Return(nil, notFound("bar"))
	f.users.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.Username == "bar" && bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("dghjasdja^&*678")) == nil
	})).Return(nil)
	f.events.On("PublishUserRegistered", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)

	user, tokens, err := f.svc.Register(ctx, RegisterInput{Username: "bar", Password: "dghjasdja^&*678", SecretKey: testSecretKey})
	require.NoError(t, err)

	assert.Equal(t, "bar", user.Username)
	assert.Greater(t, len(tokens.Access), 20)
	assert.Greater(t, len(tokens.Refresh), 20)

	claims, err := f.jwt.ValidateAccess(tokens.Access)
	require.NoError(t, err)
	assert.Equal(t, "bar", claims.Username)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.registrations.WithLabelValues(outcomeSuccess)))
}

func TestRegister_InvalidSecretKeyChecksNothingElse(t *testing.T) {
	f := newFixture(t)

	for _, key := range []string{"", "test_keyfoo", "TEST_KEY"} {
		_, _, err := f.svc.Register(context.Background(), RegisterInput{Username: "", Password: "", SecretKey: key})
		requireAppError(t, err, apperrors.ErrAuthorization, SecretKeyInvalidMessage)
		assert.Equal(t, 401, apperrors.HTTPStatus(err))
	}
	f.users.AssertNotCalled(t, "GetByUsername", mock.Anything, mock.Anything)
	f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)

	assert.Equal(t, "Secret key is not valid, please verify it your teacher or YES representative", SecretKeyInvalidMessage)
}

func TestRegister_PasswordPolicyMessages(t *testing.T) {
	tests := []struct {
		username string
		password string
		message  string
	}{
		{"user1", "user1", "The password is too similar to the username, and this password is too short. it must contain at least 6 characters"},
		{"user1", "foo", "This password is too short. It must contain at least 6 characters"},
		{"user12345", "user12345", "The password is too similar to the username"},
		{"admin", "admin", "The password is too similar to the username, and this password is too short. it must contain at least 6 characters, and this password is too common"},
		{"admin", "password", "This password is too common"},
	}

	for _, tt := range tests {
		t.Run(tt.username+"/"+tt.password, func(t *testing.T) {
			f := newFixture(t)
			f.users.On("GetByUsername", mock.Anything, tt.username).Return(nil, notFound(tt.username))

			_, _, err := f.svc.Register(context.Background(), RegisterInput{Username: tt.username, Password: tt.password, SecretKey: testSecretKey})
			requireAppError(t, err, apperrors.ErrValidation, tt.message)
			assert.Equal(t, 400, apperrors.HTTPStatus(err))
			f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	f := newFixture(t)
	f.users.On("GetByUsername", mock.Anything, "foo").Return(&domain.User{Username: "foo"}, nil)

	_, _, err := f.svc.Register(context.Background(), RegisterInput{Username: "foo", Password: "dghjasdja^&*678", SecretKey: testSecretKey})
	requireAppError(t, err, apperrors.ErrValidation, "User with username already exists")
	f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegister_DuplicateUsernameAndCommonPassword(t *testing.T) {
	f := newFixture(t)
	f.users.On("GetByUsername", mock.Anything, "foo").Return(&domain.User{Username: "foo"}, nil)

	_, _, err := f.svc.Register(context.Background(), RegisterInput{Username: "foo", Password: "password", SecretKey: testSecretKey})
	requireAppError(t, err, apperrors.ErrValidation, "User with username already exists, and this password is too common")
}

func TestRegister_MissingFields(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.Register(context.Background(), RegisterInput{SecretKey: "123"})
	requireAppError(t, err, apperrors.ErrValidation, "Username is required, and password is required")
}

func TestRegister_UsernameTooLong(t *testing.T) {
	f := newFixture(t)
	long := strings.Repeat("a", 129)
	f.users.On("GetByUsername", mock.Anything, long).Return(nil, notFound(long))

	_, _, err := f.svc.Register(context.Background(), RegisterInput{Username: long, Password: "dghjasdja^&*678", SecretKey: testSecretKey})
	requireAppError(t, err, apperrors.ErrValidation, "Username must be at most 128 characters")
}

func TestRegister_PasswordTooLongForBcrypt(t *testing.T) {
	f := newFixture(t)
	f.users.On("GetByUsername", mock.Anything, "bar").Return(nil, notFound("bar"))

	_, _, err := f.svc.Register(context.Background(), RegisterInput{Username: "bar", Password: strings.Repeat("xK9#", 20), SecretKey: testSecretKey})
	requireAppError(t, err, apperrors.ErrValidation, "This password is too long. It must contain at most 72 bytes")
	f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegister_PasswordTooLongCombinedWithDuplicate(t *testing.T) {
	f := newFixture(t)
	f.users.On("GetByUsername", mock.Anything, "bar").Return(&domain.User{Username: "bar"}, nil)

	_, _, err := f.svc.Register(context.Background(), RegisterInput{Username: "bar", Password: strings.Repeat("xK9#", 20), SecretKey: testSecretKey})
	requireAppError(t, err, apperrors.ErrValidation,
		"User with username already exists, and this password is too long. it must contain at most 72 bytes")
}

func TestRegister_ConcurrentInsertMapsToDuplicate(t *testing.T) {
	f := newFixture(t)
	f.users.On("GetByUsername", mock.Anything, "bar").Return(nil, notFound("bar"))
	f.users.On("Create", mock.Anything, mock.Anything).Return(apperrors.AlreadyExists("user", "username", "bar"))

	_, _, err := f.svc.Register(context.Background(), RegisterInput{Username: "bar", Password: "dghjasdja^&*678", SecretKey: testSecretKey})
	requireAppError(t, err, apperrors.ErrValidation, "User with username already exists")
}

func TestRegister_StorageFailureIsUnexpected(t *testing.T) {
	f := newFixture(t)
	f.users.On("GetByUsername", mock.Anything, "bar").Return(nil, errors.New("connection refused"))

	_, _, err := f.svc.Register(context.Background(), RegisterInput{Username: "bar", Password: "dghjasdja^&*678", SecretKey: testSecretKey})
	requireAppError(t, err, apperrors.ErrUnexpected, apperrors.UnexpectedMessage)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.registrations.WithLabelValues(outcomeError)))
}

func TestRegister_InsertFailureIsUnexpected(t *testing.T) {
	f := newFixture(t)
	f.users.On("GetByUsername", mock.Anything, "bar").Return(nil, notFound("bar"))
	f.users.On("Create", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	_, _, err := f.svc.Register(context.Background(), RegisterInput{Username: "bar", Password: "dghjasdja^&*678", SecretKey: testSecretKey})
	requireAppError(t, err, apperrors.ErrUnexpected, apperrors.UnexpectedMessage)
}

func TestRegister_PublishFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t)
	f.users.On("GetByUsername", mock.Anything, "bar").Return(nil, notFound("bar"))
	f.users.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.events.On("PublishUserRegistered", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	_, tokens, err := f.svc.Register(context.Background(), RegisterInput{Username: "bar", Password: "dghjasdja^&*678", SecretKey: testSecretKey})
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.Access)
}

func TestRegister_NilPublisher(t *testing.T) {
	users := new(mockUserRepository)
	users.On("GetByUsername", mock.Anything, "bar").Return(nil, notFound("bar"))
	users.On("Create", mock.Anything, mock.Anything).Return(nil)

	jwt := auth.NewJWTManager("test-secret-key-for-testing-purposes", time.Minute, time.Hour)
	svc := NewAuthService(Config{SecretKeys: []string{"k"}, BcryptCost: bcrypt.MinCost}, users, jwt, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, _, err := svc.Register(context.Background(), RegisterInput{Username: "bar", Password: "dghjasdja^&*678", SecretKey: "k"})
	require.NoError(t, err)
}

func TestNewAuthService_EmptyKeysRejectEverything(t *testing.T) {
	svc := NewAuthService(Config{SecretKeys: []string{""}}, new(mockUserRepository), nil, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.False(t, svc.validSecret(""))
	assert.Equal(t, DefaultBcryptCost, svc.bcryptCost)
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	f.users.On("GetByUsername", mock.Anything, "foo").
		Return(&domain.User{Username: "foo", PasswordHash: hashForTest(t, "gdsakdsja678687&^*")}, nil)

	user, tokens, err := f.svc.Login(context.Background(), LoginInput{Username: "foo", Password: "gdsakdsja678687&^*"})
	require.NoError(t, err)
	assert.Equal(t, "foo", user.Username)
	assert.Greater(t, len(tokens.Access), 20)
	assert.Greater(t, len(tokens.Refresh), 20)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.logins.WithLabelValues(outcomeSuccess)))
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newFixture(t)
	f.users.On("GetByUsername", mock.Anything, "foo").
		Return(&domain.User{Username: "foo", PasswordHash: hashForTest(t, "gdsakdsja678687&^*")}, nil)

	_, _, err := f.svc.Login(context.Background(), LoginInput{Username: "foo", Password: "gdsakdsja678687&^*1"})
	requireAppError(t, err, apperrors.ErrAuthentication, IncorrectPasswordMessage)
	assert.Equal(t, 401, apperrors.HTTPStatus(err))
}

func TestLogin_UnknownUsernameRegardlessOfPassword(t *testing.T) {
	f := newFixture(t)
	f.users.On("GetByUsername", mock.Anything, "foo1").Return(nil, notFound("foo1"))

	for _, pw := range []string{"gdsakdsja678687&^*", "anything"} {
		_, _, err := f.svc.Login(context.Background(), LoginInput{Username: "foo1", Password: pw})
		requireAppError(t, err, apperrors.ErrValidation, UserNotFoundMessage)
		assert.Equal(t, 400, apperrors.HTTPStatus(err))
	}
	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.logins.WithLabelValues(outcomeInvalid)))
}

func TestLogin_MissingFields(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.Login(context.Background(), LoginInput{Username: "foo"})
	requireAppError(t, err, apperrors.ErrValidation, "Password is required")
}

func TestLogin_StorageFailure(t *testing.T) {
	f := newFixture(t)
	f.users.On("GetByUsername", mock.Anything, "foo").Return(nil, errors.New("timeout"))

	_, _, err := f.svc.Login(context.Background(), LoginInput{Username: "foo", Password: "pw"})
	requireAppError(t, err, apperrors.ErrUnexpected, apperrors.UnexpectedMessage)
}

func TestLogin_CorruptHashIsUnexpected(t *testing.T) {
	f := newFixture(t)
	f.users.On("GetByUsername", mock.Anything, "foo").Return(&domain.User{Username: "foo", PasswordHash: "not-bcrypt"}, nil)

	_, _, err := f.svc.Login(context.Background(), LoginInput{Username: "foo", Password: "pw"})
	requireAppError(t, err, apperrors.ErrUnexpected, apperrors.UnexpectedMessage)
}

// --- RefreshTokens ---

func TestRefreshTokens_Success(t *testing.T) {
	f := newFixture(t)
	pair, err := f.jwt.Issue("foo")
	require.NoError(t, err)

	access, err := f.svc.RefreshTokens(context.Background(), pair.Refresh)
	require.NoError(t, err)

	claims, err := f.jwt.ValidateAccess(access)
	require.NoError(t, err)
	assert.Equal(t, "foo", claims.Username)
}

func TestRefreshTokens_Empty(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RefreshTokens(context.Background(), "")
	requireAppError(t, err, apperrors.ErrValidation, "Refresh is required")
}

func TestRefreshTokens_Invalid(t *testing.T) {
	f := newFixture(t)
	pair, err := f.jwt.Issue("foo")
	require.NoError(t, err)

	for _, tok := range []string{"garbage", pair.Access} {
		_, err := f.svc.RefreshTokens(context.Background(), tok)
		requireAppError(t, err, apperrors.ErrAuthentication, InvalidTokenMessage)
	}
}

// --- Me ---

func TestMe(t *testing.T) {
	f := newFixture(t)
	f.users.On("GetByUsername", mock.Anything, "foo").Return(&domain.User{Username: "foo"}, nil)
	f.users.On("GetByUsername", mock.Anything, "gone").Return(nil, notFound("gone"))

	user, err := f.svc.Me(context.Background(), "foo")
	require.NoError(t, err)
	assert.Equal(t, "foo", user.Username)

	_, err = f.svc.Me(context.Background(), "gone")
	requireAppError(t, err, apperrors.ErrValidation, UserNotFoundMessage)
}
