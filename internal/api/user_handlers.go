package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/annnsvm/contactsd/internal/auth"
	"github.com/annnsvm/contactsd/internal/models"
	"github.com/annnsvm/contactsd/internal/repository"
	"github.com/annnsvm/contactsd/internal/service"
)

type usersService interface {
	UpdateAvatar(ctx context.Context, user *models.User, r io.Reader, size int64, contentType string) (*models.User, error)
	Delete(ctx context.Context, id int64) (*models.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ValidateResetToken(ctx context.Context, token string) (*models.User, error)
	ResetPassword(ctx context.Context, token, password string) (*models.User, error)
}

type resetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=4,max=128"`
}

// Me handles GET /api/v1/users/me.
func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

// UpdateAvatar handles PATCH /api/v1/users/avatar (admin only).
func (h *Handler) UpdateAvatar(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		internalError(c, err)
		return
	}
	defer file.Close()

	user, err := h.users.UpdateAvatar(c.Request.Context(), currentUser(c),
		file, fileHeader.Size, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// DeleteUser handles DELETE /api/v1/users/:id (admin only).
func (h *Handler) DeleteUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	user, err := h.users.Delete(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// RequestPasswordReset handles POST /api/v1/users/request_reset_password.
func (h *Handler) RequestPasswordReset(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.users.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound), errors.Is(err, service.ErrEmailNotConfirmed):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found or email not confirmed"})
		default:
			internalError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Check your email for the reset link"})
}

// ValidateResetToken handles GET /api/v1/users/reset_password/:token.
func (h *Handler) ValidateResetToken(c *gin.Context) {
	user, err := h.users.ValidateResetToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Token is valid, you can reset your password",
		"username": user.Username,
	})
}

// ResetPassword handles PATCH /api/v1/users/reset_password.
func (h *Handler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if _, err := h.users.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}
