package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annnsvm/contactsd/internal/models"
)

// fakeDB records the last query and answers with a canned row.
type fakeDB struct {
	lastSQL  string
	lastArgs []any

	row      pgx.Row
	tag      pgconn.CommandTag
	execErr  error
	queryErr error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.lastSQL, f.lastArgs = sql, args
	return f.tag, f.execErr
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.lastSQL, f.lastArgs = sql, args
	return nil, f.queryErr
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.lastSQL, f.lastArgs = sql, args
	return f.row
}

// userRow answers a Scan with a fixed user record, or an error.
type userRow struct {
	user models.User
	err  error
}

func (r *userRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int64) = r.user.ID
	*dest[1].(*string) = r.user.Username
	*dest[2].(*string) = r.user.Email
	*dest[3].(*string) = r.user.HashedPassword
	*dest[4].(*time.Time) = r.user.CreatedAt
	*dest[5].(*string) = r.user.Avatar
	*dest[6].(*bool) = r.user.Confirmed
	*dest[7].(*models.UserRole) = r.user.Role
	*dest[8].(*string) = r.user.RefreshToken
	return nil
}

func storedUser() models.User {
	return models.User{
		ID:             1,
		Username:       "ann",
		Email:          "ann@example.com",
		HashedPassword: "$2a$10$hash",
		CreatedAt:      time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Avatar:         "https://example.com/a.png",
		Confirmed:      true,
		Role:           models.RoleUser,
		RefreshToken:   "stored-refresh",
	}
}

func TestGetByUsername(t *testing.T) {
	t.Parallel()

	db := &fakeDB{row: &userRow{user: storedUser()}}
	repo := NewUserRepository(db)

	user, err := repo.GetByUsername(context.Background(), "ann")
	require.NoError(t, err)

	assert.Equal(t, "ann", user.Username)
	assert.Contains(t, db.lastSQL, "FROM users")
	assert.Contains(t, db.lastSQL, "username = $1")
	assert.Equal(t, []any{"ann"}, db.lastArgs)
}

func TestGetByUsername_NotFound(t *testing.T) {
	t.Parallel()

	db := &fakeDB{row: &userRow{err: pgx.ErrNoRows}}
	repo := NewUserRepository(db)

	_, err := repo.GetByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetByRefreshToken_MatchesBothColumns(t *testing.T) {
	t.Parallel()

	db := &fakeDB{row: &userRow{user: storedUser()}}
	repo := NewUserRepository(db)

	_, err := repo.GetByRefreshToken(context.Background(), "ann", "stored-refresh")
	require.NoError(t, err)

	assert.Contains(t, db.lastSQL, "refresh_token = $")
	assert.Contains(t, db.lastSQL, "username = $")
	assert.Len(t, db.lastArgs, 2)
}

func TestCreateUser_ReturnsStoredRow(t *testing.T) {
	t.Parallel()

	db := &fakeDB{row: &userRow{user: storedUser()}}
	repo := NewUserRepository(db)

	user, err := repo.Create(context.Background(), "ann", "ann@example.com", "$2a$10$hash", "https://example.com/a.png")
	require.NoError(t, err)

	assert.Equal(t, int64(1), user.ID)
	assert.Contains(t, db.lastSQL, "INSERT INTO users")
	assert.Contains(t, db.lastSQL, "RETURNING")
	assert.Equal(t, []any{"ann", "ann@example.com", "$2a$10$hash", "https://example.com/a.png"}, db.lastArgs)
}

func TestUpdateRefreshToken(t *testing.T) {
	t.Parallel()

	t.Run("updates row", func(t *testing.T) {
		t.Parallel()
		db := &fakeDB{tag: pgconn.NewCommandTag("UPDATE 1")}
		repo := NewUserRepository(db)

		require.NoError(t, repo.UpdateRefreshToken(context.Background(), 1, "new-token"))
		assert.Contains(t, db.lastSQL, "UPDATE users")
		assert.Contains(t, db.lastSQL, "refresh_token = $1")
	})

	t.Run("missing user", func(t *testing.T) {
		t.Parallel()
		db := &fakeDB{tag: pgconn.NewCommandTag("UPDATE 0")}
		repo := NewUserRepository(db)

		err := repo.UpdateRefreshToken(context.Background(), 99, "new-token")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestConfirmEmail_MissingUser(t *testing.T) {
	t.Parallel()

	db := &fakeDB{tag: pgconn.NewCommandTag("UPDATE 0")}
	repo := NewUserRepository(db)

	err := repo.ConfirmEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteUser_SQLShape(t *testing.T) {
	t.Parallel()

	db := &fakeDB{row: &userRow{user: storedUser()}}
	repo := NewUserRepository(db)

	user, err := repo.Delete(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, "ann", user.Username)
	assert.Contains(t, db.lastSQL, "DELETE FROM users")
	assert.Contains(t, db.lastSQL, "RETURNING")
	assert.Equal(t, []any{int64(1)}, db.lastArgs)
}
