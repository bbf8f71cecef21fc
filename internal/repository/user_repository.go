package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_marketplace/internal/domain"
	"github.com/google/uuid"
)

const userColumns = `u.id, u.email, u.username, u.password_hash, u.first_name, u.last_name, u.phone, u.address,
	u.role, COALESCE(s.id, 0), u.email_verified, u.verification_token, u.token_created_at, u.created_at, u.updated_at
	FROM users u
	LEFT JOIN stores s ON s.owner_id = u.id`

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	var roleName string
	var storeID int64
	var token uuid.NullUUID
	var tokenCreatedAt sql.NullTime

	if err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Phone,
		&u.Address,
		&roleName,
		&storeID,
		&u.EmailVerified,
		&token,
		&tokenCreatedAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}

	role, err := domain.ParseRole(roleName, storeID)
	if err != nil {
		return nil, err
	}
	u.Role = role

	if token.Valid {
		u.VerificationToken = &token.UUID
	}
	if tokenCreatedAt.Valid {
		u.TokenCreatedAt = &tokenCreatedAt.Time
	}
	return &u, nil
}

func (r *Repository) CreateUser(ctx context.Context, u *domain.User) error {
	query := `INSERT INTO users (email, username, password_hash, first_name, last_name, phone, address, role,
	                             verification_token, token_created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	          RETURNING id, created_at, updated_at`

	var token uuid.NullUUID
	if u.VerificationToken != nil {
		token = uuid.NullUUID{UUID: *u.VerificationToken, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		u.Email,
		u.Username,
		u.PasswordHash,
		u.FirstName,
		u.LastName,
		u.Phone,
		u.Address,
		u.Role.Name(),
		token,
		u.TokenCreatedAt,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *Repository) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" WHERE u.id = $1", id)
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" WHERE LOWER(u.email) = LOWER($1)", email)
}

func (r *Repository) GetUserByVerificationToken(ctx context.Context, token uuid.UUID) (*domain.User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" WHERE u.verification_token = $1", token)
}

func (r *Repository) getUser(ctx context.Context, query string, arg any) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

func (r *Repository) SetVerificationToken(ctx context.Context, userID int64, token uuid.UUID, createdAt time.Time) error {
	return r.execUser(ctx,
		`UPDATE users SET verification_token = $2, token_created_at = $3, updated_at = NOW() WHERE id = $1`,
		userID, token, createdAt)
}

// MarkEmailVerified also clears the token so a link works only once.
func (r *Repository) MarkEmailVerified(ctx context.Context, userID int64) error {
	return r.execUser(ctx,
		`UPDATE users SET email_verified = TRUE, verification_token = NULL, token_created_at = NULL, updated_at = NOW()
		 WHERE id = $1`,
		userID)
}

func (r *Repository) UpdateProfile(ctx context.Context, u *domain.User) error {
	return r.execUser(ctx,
		`UPDATE users SET first_name = $2, last_name = $3, phone = $4, address = $5, updated_at = NOW() WHERE id = $1`,
		u.ID, u.FirstName, u.LastName, u.Phone, u.Address)
}

func (r *Repository) execUser(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}
