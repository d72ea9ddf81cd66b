package repository

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/annnsvm/contactsd/internal/models"
)

var userColumns = []string{
	"id", "username", "email", "hashed_password", "created_at",
	"avatar", "confirmed", "role", "refresh_token",
}

// UserRepository persists user accounts.
type UserRepository struct {
	db DB
}

// NewUserRepository binds the repository to a database executor.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID fetches a user by primary key. Returns ErrNotFound when absent.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getBy(ctx, squirrel.Eq{"id": id})
}

// GetByUsername fetches a user by their unique username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getBy(ctx, squirrel.Eq{"username": username})
}

// GetByEmail fetches a user by their unique email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getBy(ctx, squirrel.Eq{"email": email})
}

// GetByRefreshToken fetches the user holding the given username and stored
// refresh token. Used to validate the refresh flow: a rotated or revoked
// token no longer matches and yields ErrNotFound.
func (r *UserRepository) GetByRefreshToken(ctx context.Context, username, token string) (*models.User, error) {
	return r.getBy(ctx, squirrel.Eq{"username": username, "refresh_token": token})
}

// Create inserts a new unconfirmed user and returns the stored row.
func (r *UserRepository) Create(ctx context.Context, username, email, hashedPassword, avatar string) (*models.User, error) {
	sql, args, err := psql.Insert("users").
		Columns("username", "email", "hashed_password", "avatar").
		Values(username, email, hashedPassword, avatar).
		Suffix("RETURNING " + joinColumns(userColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building insert user: %w", err)
	}

	return scanUser(r.db.QueryRow(ctx, sql, args...))
}

// ConfirmEmail marks the account with the given email as confirmed.
func (r *UserRepository) ConfirmEmail(ctx context.Context, email string) error {
	return r.update(ctx, squirrel.Eq{"email": email}, map[string]any{"confirmed": true})
}

// UpdateAvatar stores a new avatar URL and returns the updated user.
func (r *UserRepository) UpdateAvatar(ctx context.Context, email, url string) (*models.User, error) {
	return r.updateReturning(ctx, squirrel.Eq{"email": email}, map[string]any{"avatar": url})
}

// UpdateRefreshToken stores the refresh token issued at login.
func (r *UserRepository) UpdateRefreshToken(ctx context.Context, userID int64, token string) error {
	return r.update(ctx, squirrel.Eq{"id": userID}, map[string]any{"refresh_token": token})
}

// ChangePassword replaces the stored password hash and returns the updated user.
func (r *UserRepository) ChangePassword(ctx context.Context, email, hashedPassword string) (*models.User, error) {
	return r.updateReturning(ctx, squirrel.Eq{"email": email}, map[string]any{"hashed_password": hashedPassword})
}

// Delete removes a user by ID and returns the deleted row, or ErrNotFound.
// Contacts owned by the user are removed by the FK cascade.
func (r *UserRepository) Delete(ctx context.Context, id int64) (*models.User, error) {
	sql, args, err := psql.Delete("users").
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING " + joinColumns(userColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building delete user: %w", err)
	}

	user, scanErr := scanUser(r.db.QueryRow(ctx, sql, args...))
	if scanErr != nil {
		return nil, mapNoRows(scanErr)
	}
	return user, nil
}

func (r *UserRepository) getBy(ctx context.Context, where squirrel.Eq) (*models.User, error) {
	sql, args, err := psql.Select(userColumns...).
		From("users").
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select user: %w", err)
	}

	user, scanErr := scanUser(r.db.QueryRow(ctx, sql, args...))
	if scanErr != nil {
		return nil, mapNoRows(scanErr)
	}
	return user, nil
}

func (r *UserRepository) update(ctx context.Context, where squirrel.Eq, set map[string]any) error {
	sql, args, err := psql.Update("users").
		SetMap(set).
		Where(where).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update user: %w", err)
	}

	tag, execErr := r.db.Exec(ctx, sql, args...)
	if execErr != nil {
		return execErr
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) updateReturning(ctx context.Context, where squirrel.Eq, set map[string]any) (*models.User, error) {
	sql, args, err := psql.Update("users").
		SetMap(set).
		Where(where).
		Suffix("RETURNING " + joinColumns(userColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building update user: %w", err)
	}

	user, scanErr := scanUser(r.db.QueryRow(ctx, sql, args...))
	if scanErr != nil {
		return nil, mapNoRows(scanErr)
	}
	return user, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.HashedPassword, &u.CreatedAt,
		&u.Avatar, &u.Confirmed, &u.Role, &u.RefreshToken,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
