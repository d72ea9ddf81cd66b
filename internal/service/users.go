package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/annnsvm/contactsd/internal/auth"
	"github.com/annnsvm/contactsd/internal/mailer"
	"github.com/annnsvm/contactsd/internal/models"
	"github.com/annnsvm/contactsd/internal/repository"
)

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateAvatar(ctx context.Context, email, url string) (*models.User, error)
	ChangePassword(ctx context.Context, email, hashedPassword string) (*models.User, error)
	Delete(ctx context.Context, id int64) (*models.User, error)
}

type avatarUploader interface {
	Upload(ctx context.Context, username string, r io.Reader, size int64, contentType string) (string, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, username string) error
}

// UserService covers account management: avatars, password reset, deletion.
type UserService struct {
	users   userStore
	avatars avatarUploader
	cache   cacheInvalidator
	tokens  *auth.Manager
	mail    mailEnqueuer
	host    string
}

func NewUserService(users userStore, avatars avatarUploader, cache cacheInvalidator,
	tokens *auth.Manager, mail mailEnqueuer, host string) *UserService {
	return &UserService{users: users, avatars: avatars, cache: cache, tokens: tokens, mail: mail, host: host}
}

// UpdateAvatar uploads a new avatar image and points the user at it.
func (s *UserService) UpdateAvatar(ctx context.Context, user *models.User, r io.Reader, size int64, contentType string) (*models.User, error) {
	url, err := s.avatars.Upload(ctx, user.Username, r, size, contentType)
	if err != nil {
		return nil, fmt.Errorf("uploading avatar: %w", err)
	}

	updated, err := s.users.UpdateAvatar(ctx, user.Email, url)
	if err != nil {
		return nil, fmt.Errorf("updating avatar: %w", err)
	}

	s.invalidate(ctx, updated.Username)
	return updated, nil
}

// Delete removes the account. Contacts go with it via the FK cascade.
func (s *UserService) Delete(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.users.Delete(ctx, id)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, user.Username)
	return user, nil
}

// RequestPasswordReset queues the reset email. Only confirmed accounts can
// start a reset.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("loading user: %w", err)
	}
	if !user.Confirmed {
		return ErrEmailNotConfirmed
	}

	token, err := s.tokens.EmailToken(user.Email)
	if err != nil {
		return fmt.Errorf("minting email token: %w", err)
	}

	return s.mail.Enqueue(ctx, mailer.Job{
		To:       user.Email,
		Subject:  "Reset your password",
		Template: mailer.TemplateResetPassword,
		Username: user.Username,
		Host:     s.host,
		Token:    token,
	})
}

// ValidateResetToken checks a reset link token and returns the confirmed
// account it was issued for. Unknown or unconfirmed accounts are rejected
// the same way as bad tokens.
func (s *UserService) ValidateResetToken(ctx context.Context, token string) (*models.User, error) {
	email, err := s.tokens.ParseEmail(token)
	if err != nil {
		return nil, auth.ErrInvalidToken
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, auth.ErrInvalidToken
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if !user.Confirmed {
		return nil, auth.ErrInvalidToken
	}
	return user, nil
}

// ResetPassword sets a new password for the account named in the token.
func (s *UserService) ResetPassword(ctx context.Context, token, password string) (*models.User, error) {
	user, err := s.ValidateResetToken(ctx, token)
	if err != nil {
		return nil, err
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	updated, err := s.users.ChangePassword(ctx, user.Email, hashed)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, auth.ErrInvalidToken
		}
		return nil, fmt.Errorf("changing password: %w", err)
	}

	s.invalidate(ctx, updated.Username)
	return updated, nil
}

// invalidate drops the cached user so the next request sees fresh data.
// Cache failures are logged, not surfaced: the write already happened.
func (s *UserService) invalidate(ctx context.Context, username string) {
	if err := s.cache.Invalidate(ctx, username); err != nil {
		slog.WarnContext(ctx, "user cache invalidation failed",
			slog.String("username", username), slog.Any("error", err))
	}
}
