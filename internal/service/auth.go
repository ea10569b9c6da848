package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/yes-simulation/accounts/internal/domain"
	"github.com/yes-simulation/accounts/internal/repository"
	"github.com/yes-simulation/accounts/internal/validation"
	apperrors "github.com/yes-simulation/accounts/pkg/errors"
	"github.com/yes-simulation/accounts/pkg/tracing"
	"github.com/yes-simulation/accounts/pkg/validator"
)

// Client-facing messages.
const (
	SecretKeyInvalidMessage  = "Secret key is not valid, please verify it your teacher or YES representative"
	UserNotFoundMessage      = "User with supplied username does not exist, please register before logging in"
	IncorrectPasswordMessage = "Incorrect authentication details supplied, please ensure that the correct password was entered"
	InvalidTokenMessage      = "Token is invalid or expired"
)

// DefaultBcryptCost is used when Config.BcryptCost is zero.
const DefaultBcryptCost = 12

// Config is the read-only policy the service is built with.
type Config struct {
	// SecretKeys are the shared secrets that allow a registration.
	SecretKeys        []string
	BcryptCost        int
	PasswordMinLength int
	// CommonPasswords overrides the embedded common password list when set.
	CommonPasswords *validation.CommonList
}

// TokenIssuer signs and refreshes token pairs.
type TokenIssuer interface {
	Issue(username string) (*domain.TokenPair, error)
	Refresh(refreshToken string) (string, error)
}

// EventPublisher announces account events. Publishing is best-effort.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, user *domain.User) error
}

// RegisterInput holds the parameters for registering a new user.
type RegisterInput struct {
	Username  string `json:"username" validate:"required,max=128"`
	Password  string `json:"password" validate:"required"`
	SecretKey string `json:"secret_key"`
}

// LoginInput holds the parameters for user login.
type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshInput struct {
	Refresh string `json:"refresh" validate:"required"`
}

// AuthService implements registration, login and token refresh.
type AuthService struct {
	users      repository.UserRepository
	tokens     TokenIssuer
	events     EventPublisher
	passwords  *validation.PasswordValidator
	secretKeys [][]byte
	bcryptCost int
	metrics    *Metrics
	tracer     trace.Tracer
	logger     *slog.Logger
}

// NewAuthService creates the service. events and metrics may be nil.
func NewAuthService(
	cfg Config,
	users repository.UserRepository,
	tokens TokenIssuer,
	events EventPublisher,
	metrics *Metrics,
	logger *slog.Logger,
) *AuthService {
	keys := make([][]byte, 0, len(cfg.SecretKeys))
	for _, k := range cfg.SecretKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = DefaultBcryptCost
	}

	return &AuthService{
		users:      users,
		tokens:     tokens,
		events:     events,
		passwords:  validation.NewPasswordValidator(cfg.PasswordMinLength, validation.WithCommonList(cfg.CommonPasswords)),
		secretKeys: keys,
		bcryptCost: cost,
		metrics:    metrics,
		tracer:     tracing.Tracer("github.com/yes-simulation/accounts/internal/service"),
		logger:     logger,
	}
}

// Register creates an account and returns its first token pair.
//
// The secret key is checked before anything else. After that every input
// problem is collected and reported in one validation error, in this order:
// field errors, taken username, password policy failures.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (_ *domain.User, _ *domain.TokenPair, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Register")
	defer func() { endSpan(span, err) }()

	if !s.validSecret(in.SecretKey) {
		s.metrics.registration(outcomeUnauthorized)
		s.logger.WarnContext(ctx, "registration rejected: invalid secret key")
		return nil, nil, apperrors.Authorization(SecretKeyInvalidMessage)
	}

	failures, err := fieldFailures(in)
	if err != nil {
		s.metrics.registration(outcomeError)
		return nil, nil, apperrors.Unexpected(err)
	}

	if in.Username != "" {
		_, err := s.users.GetByUsername(ctx, in.Username)
		switch {
		case err == nil:
			failures = append(failures, duplicateUsername())
		case !errors.Is(err, apperrors.ErrNotFound):
			s.metrics.registration(outcomeError)
			return nil, nil, apperrors.Unexpected(fmt.Errorf("look up username: %w", err))
		}
	}

	if in.Password != "" {
		failures = append(failures, s.passwords.Validate(in.Password, &domain.User{Username: in.Username})...)
	}

	if len(failures) > 0 {
		s.metrics.registration(outcomeInvalid)
		return nil, nil, apperrors.Validation(validation.Combine(failures))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			s.metrics.registration(outcomeInvalid)
			return nil, nil, apperrors.Validation(validation.Combine([]validation.Failure{
				{Kind: validation.TooLong, Message: validation.TooLongMessage},
			}))
		}
		s.metrics.registration(outcomeError)
		return nil, nil, apperrors.Unexpected(fmt.Errorf("hash password: %w", err))
	}

	user := &domain.User{Username: in.Username, PasswordHash: string(hash)}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			s.metrics.registration(outcomeInvalid)
			return nil, nil, apperrors.Validation(validation.Combine([]validation.Failure{duplicateUsername()}))
		}
		s.metrics.registration(outcomeError)
		return nil, nil, apperrors.Unexpected(fmt.Errorf("create user: %w", err))
	}

	tokens, err := s.tokens.Issue(user.Username)
	if err != nil {
		s.metrics.registration(outcomeError)
		return nil, nil, apperrors.Unexpected(fmt.Errorf("issue tokens: %w", err))
	}

	if s.events != nil {
		if err := s.events.PublishUserRegistered(ctx, user); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish user.registered event",
				slog.String("username", user.Username),
				slog.String("error", err.Error()),
			)
		}
	}

	s.metrics.registration(outcomeSuccess)
	s.logger.InfoContext(ctx, "user registered", slog.String("username", user.Username))
	return user, tokens, nil
}

// Login checks a username and password and returns a new token pair.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (_ *domain.User, _ *domain.TokenPair, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Login")
	defer func() { endSpan(span, err) }()

	failures, err := fieldFailures(in)
	if err != nil {
		s.metrics.login(outcomeError)
		return nil, nil, apperrors.Unexpected(err)
	}
	if len(failures) > 0 {
		s.metrics.login(outcomeInvalid)
		return nil, nil, apperrors.Validation(validation.Combine(failures))
	}

	user, err := s.lookup(ctx, in.Username)
	if err != nil {
		s.metrics.login(outcomeFor(err))
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			s.metrics.login(outcomeUnauthorized)
			s.logger.WarnContext(ctx, "login rejected: incorrect password", slog.String("username", user.Username))
			return nil, nil, apperrors.Authentication(IncorrectPasswordMessage)
		}
		s.metrics.login(outcomeError)
		return nil, nil, apperrors.Unexpected(fmt.Errorf("compare password hash: %w", err))
	}

	tokens, err := s.tokens.Issue(user.Username)
	if err != nil {
		s.metrics.login(outcomeError)
		return nil, nil, apperrors.Unexpected(fmt.Errorf("issue tokens: %w", err))
	}

	s.metrics.login(outcomeSuccess)
	s.logger.InfoContext(ctx, "user logged in", slog.String("username", user.Username))
	return user, tokens, nil
}

// RefreshTokens exchanges a refresh token for a new access token.
func (s *AuthService) RefreshTokens(ctx context.Context, refreshToken string) (_ string, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.RefreshTokens")
	defer func() { endSpan(span, err) }()

	failures, err := fieldFailures(refreshInput{Refresh: refreshToken})
	if err != nil {
		s.metrics.refresh(outcomeError)
		return "", apperrors.Unexpected(err)
	}
	if len(failures) > 0 {
		s.metrics.refresh(outcomeInvalid)
		return "", apperrors.Validation(validation.Combine(failures))
	}

	access, err := s.tokens.Refresh(refreshToken)
	if err != nil {
		s.metrics.refresh(outcomeUnauthorized)
		s.logger.DebugContext(ctx, "token refresh rejected", slog.String("error", err.Error()))
		return "", apperrors.Authentication(InvalidTokenMessage)
	}

	s.metrics.refresh(outcomeSuccess)
	return access, nil
}

// Me returns the account of an authenticated username.
func (s *AuthService) Me(ctx context.Context, username string) (_ *domain.User, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Me")
	defer func() { endSpan(span, err) }()

	return s.lookup(ctx, username)
}

// lookup maps repository errors to the client-facing kinds.
func (s *AuthService) lookup(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Validation(UserNotFoundMessage)
		}
		return nil, apperrors.Unexpected(fmt.Errorf("get user: %w", err))
	}
	return user, nil
}

// validSecret compares against every key so the time taken does not reveal
// which key, if any, matched.
func (s *AuthService) validSecret(key string) bool {
	matched := 0
	for _, k := range s.secretKeys {
		matched |= subtle.ConstantTimeCompare([]byte(key), k)
	}
	return matched == 1
}

// fieldFailures runs the struct tag validation on in. Only a misconfigured
// validator returns an error.
func fieldFailures(in any) ([]validation.Failure, error) {
	err := validator.Validate(in)
	if err == nil {
		return nil, nil
	}

	var ve *validator.ValidationError
	if !errors.As(err, &ve) {
		return nil, fmt.Errorf("validate input: %w", err)
	}

	msgs := ve.Messages()
	failures := make([]validation.Failure, 0, len(msgs))
	for _, m := range msgs {
		failures = append(failures, validation.Failure{Kind: validation.Field, Message: m})
	}
	return failures, nil
}

func duplicateUsername() validation.Failure {
	return validation.Failure{Kind: validation.DuplicateUsername, Message: validation.DuplicateUsernameMessage}
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return outcomeInvalid
	case errors.Is(err, apperrors.ErrAuthentication), errors.Is(err, apperrors.ErrAuthorization):
		return outcomeUnauthorized
	default:
		return outcomeError
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			span.SetAttributes(attribute.String("error.code", appErr.Code))
		}
		if errors.Is(err, apperrors.ErrUnexpected) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}
