package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/annnsvm/contactsd/internal/auth"
	"github.com/annnsvm/contactsd/internal/mailer"
	"github.com/annnsvm/contactsd/internal/models"
	"github.com/annnsvm/contactsd/internal/repository"
	"github.com/annnsvm/contactsd/internal/storage"
)

// authUserStore is the slice of the user repository the auth flows need.
type authUserStore interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByRefreshToken(ctx context.Context, username, token string) (*models.User, error)
	Create(ctx context.Context, username, email, hashedPassword, avatar string) (*models.User, error)
	ConfirmEmail(ctx context.Context, email string) error
	UpdateRefreshToken(ctx context.Context, userID int64, token string) error
}

type mailEnqueuer interface {
	Enqueue(ctx context.Context, job mailer.Job) error
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// AuthService implements registration, login, token refresh and the
// email confirmation flow.
type AuthService struct {
	users  authUserStore
	tokens *auth.Manager
	mail   mailEnqueuer
	// host is the externally reachable base URL embedded in email links.
	host string
}

func NewAuthService(users authUserStore, tokens *auth.Manager, mail mailEnqueuer, host string) *AuthService {
	return &AuthService{users: users, tokens: tokens, mail: mail, host: host}
}

// Register creates an unconfirmed account and queues the verification email.
// The avatar defaults to the gravatar for the registered address.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("checking email: %w", err)
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("checking username: %w", err)
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user, err := s.users.Create(ctx, username, email, hashed, storage.GravatarURL(email, 250))
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	if err := s.sendVerification(ctx, user.Username, user.Email); err != nil {
		// The account exists; the user can re-request the email later.
		slog.ErrorContext(ctx, "queueing verification email failed",
			slog.String("email", user.Email), slog.Any("error", err))
	}

	return user, nil
}

// Login verifies credentials and mints a fresh token pair. The refresh
// token is persisted on the user row so stolen tokens can be revoked by
// rotating it.
func (s *AuthService) Login(ctx context.Context, username, password string) (TokenPair, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, fmt.Errorf("loading user: %w", err)
	}

	if !auth.VerifyPassword(password, user.HashedPassword) {
		return TokenPair{}, ErrInvalidCredentials
	}
	if !user.Confirmed {
		return TokenPair{}, ErrEmailNotConfirmed
	}

	return s.issueTokens(ctx, user)
}

// Refresh exchanges a valid stored refresh token for a new pair. The old
// refresh token stops working once the new one is persisted.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	username, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, auth.ErrInvalidToken
	}

	user, err := s.users.GetByRefreshToken(ctx, username, refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, auth.ErrInvalidToken
		}
		return TokenPair{}, fmt.Errorf("loading user: %w", err)
	}

	return s.issueTokens(ctx, user)
}

// ConfirmEmail marks the address in the token as verified. The returned
// flag reports whether it was already confirmed.
func (s *AuthService) ConfirmEmail(ctx context.Context, token string) (alreadyConfirmed bool, err error) {
	email, err := s.tokens.ParseEmail(token)
	if err != nil {
		return false, auth.ErrInvalidToken
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrVerification
		}
		return false, fmt.Errorf("loading user: %w", err)
	}
	if user.Confirmed {
		return true, nil
	}

	if err := s.users.ConfirmEmail(ctx, email); err != nil {
		return false, fmt.Errorf("confirming email: %w", err)
	}
	return false, nil
}

// RequestEmail re-queues the verification email. Unknown and already
// confirmed addresses are silently ignored so the endpoint does not leak
// which emails have accounts.
func (s *AuthService) RequestEmail(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("loading user: %w", err)
	}
	if user.Confirmed {
		return nil
	}

	return s.sendVerification(ctx, user.Username, user.Email)
}

func (s *AuthService) issueTokens(ctx context.Context, user *models.User) (TokenPair, error) {
	access, err := s.tokens.AccessToken(user.Username)
	if err != nil {
		return TokenPair{}, fmt.Errorf("minting access token: %w", err)
	}
	refresh, err := s.tokens.RefreshToken(user.Username)
	if err != nil {
		return TokenPair{}, fmt.Errorf("minting refresh token: %w", err)
	}

	if err := s.users.UpdateRefreshToken(ctx, user.ID, refresh); err != nil {
		return TokenPair{}, fmt.Errorf("storing refresh token: %w", err)
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}

func (s *AuthService) sendVerification(ctx context.Context, username, email string) error {
	token, err := s.tokens.EmailToken(email)
	if err != nil {
		return fmt.Errorf("minting email token: %w", err)
	}

	return s.mail.Enqueue(ctx, mailer.Job{
		To:       email,
		Subject:  "Confirm your email",
		Template: mailer.TemplateVerifyEmail,
		Username: username,
		Host:     s.host,
		Token:    token,
	})
}
