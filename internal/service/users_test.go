package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annnsvm/contactsd/internal/auth"
	"github.com/annnsvm/contactsd/internal/mailer"
	"github.com/annnsvm/contactsd/internal/repository"
)

type fakeAvatars struct {
	url string
	err error
}

func (f *fakeAvatars) Upload(_ context.Context, _ string, _ io.Reader, _ int64, _ string) (string, error) {
	return f.url, f.err
}

type fakeInvalidator struct {
	invalidated []string
	err         error
}

func (f *fakeInvalidator) Invalidate(_ context.Context, username string) error {
	f.invalidated = append(f.invalidated, username)
	return f.err
}

func TestUpdateAvatar(t *testing.T) {
	t.Parallel()

	user := confirmedUser()
	users := newFakeUsers(user)
	cache := &fakeInvalidator{}
	svc := NewUserService(users, &fakeAvatars{url: "http://minio:9000/avatars/avatars/ann-abc"},
		cache, testTokens(), &fakeMail{}, "")

	updated, err := svc.UpdateAvatar(context.Background(), user, bytes.NewReader([]byte("png")), 3, "image/png")
	require.NoError(t, err)

	assert.Equal(t, "http://minio:9000/avatars/avatars/ann-abc", updated.Avatar)
	assert.Equal(t, []string{"ann"}, cache.invalidated)
}

func TestUpdateAvatar_UploadFails(t *testing.T) {
	t.Parallel()

	user := confirmedUser()
	cache := &fakeInvalidator{}
	svc := NewUserService(newFakeUsers(user), &fakeAvatars{err: errors.New("minio down")},
		cache, testTokens(), &fakeMail{}, "")

	_, err := svc.UpdateAvatar(context.Background(), user, bytes.NewReader(nil), 0, "image/png")
	require.Error(t, err)
	assert.Empty(t, cache.invalidated)
}

func TestDeleteUser(t *testing.T) {
	t.Parallel()

	user := confirmedUser()
	users := newFakeUsers(user)
	cache := &fakeInvalidator{}
	svc := NewUserService(users, &fakeAvatars{}, cache, testTokens(), &fakeMail{}, "")

	deleted, err := svc.Delete(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Username, deleted.Username)
	assert.Equal(t, []int64{user.ID}, users.deleted)
	assert.Equal(t, []string{"ann"}, cache.invalidated)
}

func TestRequestPasswordReset(t *testing.T) {
	t.Parallel()

	t.Run("known address gets email", func(t *testing.T) {
		t.Parallel()
		mail := &fakeMail{}
		svc := NewUserService(newFakeUsers(confirmedUser()), &fakeAvatars{}, &fakeInvalidator{},
			testTokens(), mail, "http://localhost:5000")

		require.NoError(t, svc.RequestPasswordReset(context.Background(), "ann@example.com"))
		require.Len(t, mail.jobs, 1)
		assert.Equal(t, mailer.TemplateResetPassword, mail.jobs[0].Template)
		assert.Equal(t, "http://localhost:5000", mail.jobs[0].Host)
	})

	t.Run("unknown address rejected", func(t *testing.T) {
		t.Parallel()
		mail := &fakeMail{}
		svc := NewUserService(newFakeUsers(), &fakeAvatars{}, &fakeInvalidator{},
			testTokens(), mail, "")

		err := svc.RequestPasswordReset(context.Background(), "ghost@example.com")
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.Empty(t, mail.jobs)
	})

	t.Run("unconfirmed account rejected", func(t *testing.T) {
		t.Parallel()
		user := confirmedUser()
		user.Confirmed = false
		mail := &fakeMail{}
		svc := NewUserService(newFakeUsers(user), &fakeAvatars{}, &fakeInvalidator{},
			testTokens(), mail, "")

		err := svc.RequestPasswordReset(context.Background(), user.Email)
		assert.ErrorIs(t, err, ErrEmailNotConfirmed)
		assert.Empty(t, mail.jobs)
	})
}

func TestResetPassword(t *testing.T) {
	t.Parallel()

	tokens := testTokens()
	user := confirmedUser()
	oldHash := user.HashedPassword
	users := newFakeUsers(user)
	cache := &fakeInvalidator{}
	svc := NewUserService(users, &fakeAvatars{}, cache, tokens, &fakeMail{}, "")

	token, err := tokens.EmailToken(user.Email)
	require.NoError(t, err)

	updated, err := svc.ResetPassword(context.Background(), token, "new-password")
	require.NoError(t, err)

	assert.NotEqual(t, oldHash, updated.HashedPassword)
	assert.True(t, auth.VerifyPassword("new-password", updated.HashedPassword))
	assert.Equal(t, []string{"ann"}, cache.invalidated)
}

func TestResetPassword_InvalidToken(t *testing.T) {
	t.Parallel()

	tokens := testTokens()
	svc := NewUserService(newFakeUsers(), &fakeAvatars{}, &fakeInvalidator{}, tokens, &fakeMail{}, "")

	t.Run("garbage", func(t *testing.T) {
		t.Parallel()
		_, err := svc.ResetPassword(context.Background(), "garbage", "pw")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("access token rejected", func(t *testing.T) {
		t.Parallel()
		access, err := tokens.AccessToken("ann")
		require.NoError(t, err)
		_, err = svc.ResetPassword(context.Background(), access, "pw")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("unknown user", func(t *testing.T) {
		t.Parallel()
		token, err := tokens.EmailToken("ghost@example.com")
		require.NoError(t, err)
		_, err = svc.ResetPassword(context.Background(), token, "pw")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})
}

func TestValidateResetToken(t *testing.T) {
	t.Parallel()

	tokens := testTokens()

	t.Run("confirmed account", func(t *testing.T) {
		t.Parallel()
		svc := NewUserService(newFakeUsers(confirmedUser()), &fakeAvatars{}, &fakeInvalidator{}, tokens, &fakeMail{}, "")

		token, err := tokens.EmailToken("ann@example.com")
		require.NoError(t, err)

		user, err := svc.ValidateResetToken(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, "ann", user.Username)
	})

	t.Run("unconfirmed account rejected", func(t *testing.T) {
		t.Parallel()
		user := confirmedUser()
		user.Confirmed = false
		svc := NewUserService(newFakeUsers(user), &fakeAvatars{}, &fakeInvalidator{}, tokens, &fakeMail{}, "")

		token, err := tokens.EmailToken(user.Email)
		require.NoError(t, err)

		_, err = svc.ValidateResetToken(context.Background(), token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})
}
