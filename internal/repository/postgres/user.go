package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yes-simulation/accounts/internal/domain"
	"github.com/yes-simulation/accounts/pkg/database"
	apperrors "github.com/yes-simulation/accounts/pkg/errors"
)

const (
	insertUserSQL = `
		INSERT INTO users (username, password_hash)
		VALUES ($1, $2)
		RETURNING created_at`

	selectUserSQL = `
		SELECT username, password_hash, created_at
		FROM users
		WHERE username = $1`
)

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db      database.DBTX
	queries *database.QueryTracer
}

// NewUserRepository creates a new PostgreSQL-backed user repository. queries
// may be nil.
func NewUserRepository(db database.DBTX, queries *database.QueryTracer) *UserRepository {
	return &UserRepository{db: db, queries: queries}
}

// Create inserts a new user. The primary key on username makes concurrent
// registrations of the same name fail with AlreadyExists.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	ctx, end := r.queries.Start(ctx, "CreateUser", insertUserSQL)
	defer func() { end(err) }()

	if err := r.db.QueryRow(ctx, insertUserSQL, u.Username, u.PasswordHash).Scan(&u.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "username", u.Username)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByUsername retrieves a user by username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (_ *domain.User, err error) {
	ctx, end := r.queries.Start(ctx, "GetUserByUsername", selectUserSQL)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	var u domain.User
	err = r.db.QueryRow(ctx, selectUserSQL, username).Scan(&u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("user", username)
		}
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
