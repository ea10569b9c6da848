package domain

import (
	"time"
)

// MaxUsernameLength is the width of the users.username column.
const MaxUsernameLength = 128

// User is a registered account. The username is the primary key; the
// plaintext password never leaves the registration flow.
type User struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// TokenPair holds an access and refresh token pair.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// AuthResult is the body returned by a successful registration or login.
type AuthResult struct {
	Username string    `json:"username"`
	Tokens   TokenPair `json:"tokens"`
}
