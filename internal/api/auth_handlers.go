package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/annnsvm/contactsd/internal/auth"
	"github.com/annnsvm/contactsd/internal/models"
	"github.com/annnsvm/contactsd/internal/service"
)

// authService is the subset of *service.AuthService used by the HTTP
// handlers. Declaring it as an interface allows test doubles to be injected.
type authService interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (service.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (service.TokenPair, error)
	ConfirmEmail(ctx context.Context, token string) (bool, error)
	RequestEmail(ctx context.Context, email string) error
}

type registerRequest struct {
	Username string `json:"username" binding:"required,min=2,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=4,max=128"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// Register handles POST /api/v1/auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailTaken), errors.Is(err, service.ErrUsernameTaken):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			internalError(c, err)
		}
		return
	}

	c.JSON(http.StatusCreated, user)
}

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	pair, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrEmailNotConfirmed):
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		default:
			internalError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, pair)
}

// RefreshToken handles POST /api/v1/auth/refresh-token.
func (h *Handler) RefreshToken(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
			return
		}
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, pair)
}

// ConfirmEmail handles GET /api/v1/auth/confirmed_email/:token.
func (h *Handler) ConfirmEmail(c *gin.Context) {
	already, err := h.auth.ConfirmEmail(c.Request.Context(), c.Param("token"))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidToken):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid token"})
		case errors.Is(err, service.ErrVerification):
			c.JSON(http.StatusBadRequest, gin.H{"error": "verification error"})
		default:
			internalError(c, err)
		}
		return
	}

	message := "Email confirmed"
	if already {
		message = "Your email is already confirmed"
	}
	c.JSON(http.StatusOK, gin.H{"message": message})
}

// RequestEmail handles POST /api/v1/auth/request_email. The response never
// reveals whether the address has an account.
func (h *Handler) RequestEmail(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.auth.RequestEmail(c.Request.Context(), req.Email); err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Check your email for confirmation"})
}
