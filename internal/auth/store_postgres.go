// Copyright (c) 2026 Finai. All rights reserved.
// Author: duccodon.dev@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duccodon/finai/internal/platform/dberr"
)

// # PostgreSQL User Repository

// PostgresUserRepository implements [UserRepository] over a pgx pool.
//
// Rows live in users.account; see data/migrations for the schema.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresUserRepository constructs a [PostgresUserRepository].
func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = `id, email, password_hash, username,
	first_name, last_name, phone, location, about,
	created_at, updated_at`

// scanUser maps one row onto a User. Profile columns are NOT NULL with
// empty-string defaults, so plain string scanning is safe.
func scanUser(row pgx.Row) (*User, error) {
	var user User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.Phone,
		&user.Location,
		&user.About,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create persists a new user row.
func (repository *PostgresUserRepository) Create(context context.Context, user *User) error {

	const query = `
		INSERT INTO users.account
			(id, email, password_hash, username,
			 first_name, last_name, phone, location, about,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := repository.pool.Exec(context, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Username,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.Location,
		user.About,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if dberr.IsUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("auth: insert user: %w", dberr.Wrap(err))
	}

	return nil
}

// FindByEmail loads a user by email address.
func (repository *PostgresUserRepository) FindByEmail(context context.Context, email string) (*User, error) {

	query := `
		SELECT ` + userColumns + `
		FROM users.account
		WHERE email = $1`

	user, err := scanUser(repository.pool.QueryRow(context, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dberr.ErrNotFound
		}
		return nil, fmt.Errorf("auth: find user by email: %w", dberr.Wrap(err))
	}

	return user, nil
}

// FindByID loads a user by primary key.
func (repository *PostgresUserRepository) FindByID(context context.Context, userID string) (*User, error) {

	query := `
		SELECT ` + userColumns + `
		FROM users.account
		WHERE id = $1`

	user, err := scanUser(repository.pool.QueryRow(context, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dberr.ErrNotFound
		}
		return nil, fmt.Errorf("auth: find user by id: %w", dberr.Wrap(err))
	}

	return user, nil
}

// UpdatePassword replaces the stored password hash for a user.
func (repository *PostgresUserRepository) UpdatePassword(context context.Context, userID, passwordHash string) error {

	const query = `
		UPDATE users.account
		SET password_hash = $2, updated_at = now()
		WHERE id = $1`

	tag, err := repository.pool.Exec(context, query, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("auth: update password: %w", dberr.Wrap(err))
	}
	if tag.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}

	return nil
}

// UpdateFields applies a partial profile update via COALESCE so that nil
// pointers keep the existing column value.
func (repository *PostgresUserRepository) UpdateFields(context context.Context, userID string, update UserUpdate) error {

	const query = `
		UPDATE users.account
		SET username   = COALESCE($2, username),
		    first_name = COALESCE($3, first_name),
		    last_name  = COALESCE($4, last_name),
		    phone      = COALESCE($5, phone),
		    location   = COALESCE($6, location),
		    about      = COALESCE($7, about),
		    updated_at = now()
		WHERE id = $1`

	tag, err := repository.pool.Exec(context, query, userID,
		update.Username,
		update.FirstName,
		update.LastName,
		update.Phone,
		update.Location,
		update.About,
	)
	if err != nil {
		return fmt.Errorf("auth: update profile: %w", dberr.Wrap(err))
	}
	if tag.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}

	return nil
}
