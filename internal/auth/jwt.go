package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yes-simulation/accounts/internal/domain"
)

// Token types carried in the token_type claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// ErrWrongTokenType is returned when a valid token of the other kind is
// presented, e.g. an access token to the refresh endpoint.
var ErrWrongTokenType = errors.New("wrong token type")

// Claims are the JWT claims of both access and refresh tokens.
type Claims struct {
	Username  string `json:"user_username"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// JWTManager issues and verifies HS256 tokens.
type JWTManager struct {
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	now           func() time.Time
}

// NewJWTManager creates a new JWT manager with the given secret and expiry durations.
func NewJWTManager(secret string, accessExpiry, refreshExpiry time.Duration) *JWTManager {
	return &JWTManager{
		secret:        []byte(secret),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		now:           time.Now,
	}
}

// Issue returns a fresh access and refresh token for username.
func (m *JWTManager) Issue(username string) (*domain.TokenPair, error) {
	access, err := m.sign(username, TokenTypeAccess, m.accessExpiry)
	if err != nil {
		return nil, err
	}
	refresh, err := m.sign(username, TokenTypeRefresh, m.refreshExpiry)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{Access: access, Refresh: refresh}, nil
}

// Refresh verifies a refresh token and returns a new access token for the
// same user. The refresh token itself stays valid until it expires.
func (m *JWTManager) Refresh(refreshToken string) (string, error) {
	claims, err := m.parse(refreshToken, TokenTypeRefresh)
	if err != nil {
		return "", err
	}
	return m.sign(claims.Username, TokenTypeAccess, m.accessExpiry)
}

// ValidateAccess verifies an access token and returns its claims.
func (m *JWTManager) ValidateAccess(accessToken string) (*Claims, error) {
	return m.parse(accessToken, TokenTypeAccess)
}

func (m *JWTManager) sign(username, tokenType string, ttl time.Duration) (string, error) {
	now := m.now().UTC()
	claims := &Claims{
		Username:  username,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

func (m *JWTManager) parse(tokenString, wantType string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parse %s token: %w", wantType, err)
	}
	if claims.TokenType != wantType {
		return nil, fmt.Errorf("parse %s token: %w", wantType, ErrWrongTokenType)
	}
	if claims.Username == "" {
		return nil, fmt.Errorf("parse %s token: missing username", wantType)
	}
	return claims, nil
}
