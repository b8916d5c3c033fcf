package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, first_name, last_name, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query user by email: %w", err)
	}

	return u, nil
}

func (r *Repository) FindByID(ctx context.Context, id int64) (*User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, first_name, last_name, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query user by id: %w", err)
	}

	return u, nil
}

// Create inserts the user. The unique index on email is the final word on
// duplicates: a violation is reported as ErrEmailTaken even if the caller
// checked beforehand. A nil user with a nil error means the insert
// returned no row.
func (r *Repository) Create(ctx context.Context, input NewUser) (*User, error) {
	now := time.Now().UTC()

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, first_name, last_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id, email, password_hash, first_name, last_name, created_at, updated_at
	`, input.Email, input.PasswordHash, input.FirstName, input.LastName, now)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return u, nil
}

func (r *Repository) Update(ctx context.Context, id int64, changes Changes) (*User, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET email = COALESCE($2, email),
			password_hash = COALESCE($3, password_hash),
			first_name = COALESCE($4, first_name),
			last_name = COALESCE($5, last_name),
			updated_at = $6
		WHERE id = $1
		RETURNING id, email, password_hash, first_name, last_name, created_at, updated_at
	`, id, nullable(changes.Email), nullable(changes.PasswordHash), nullable(changes.FirstName), nullable(changes.LastName), time.Now().UTC())

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	return u, nil
}

// Delete removes the user; owned categories, transactions and budgets go
// with it through ON DELETE CASCADE.
func (r *Repository) Delete(ctx context.Context, id int64) (*User, error) {
	row := r.db.QueryRowContext(ctx, `
		DELETE FROM users
		WHERE id = $1
		RETURNING id, email, password_hash, first_name, last_name, created_at, updated_at
	`, id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("delete user: %w", err)
	}

	return u, nil
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullable(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}
