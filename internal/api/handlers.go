package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler holds the dependencies shared across all HTTP handlers.
type Handler struct {
	auth     authService
	users    usersService
	contacts contactsService
	health   healthService
}

func NewHandler(auth authService, users usersService, contacts contactsService, health healthService) *Handler {
	return &Handler{auth: auth, users: users, contacts: contacts, health: health}
}

// bindJSON binds the request body and writes a 422 on validation failure.
// Returns false when the request was already answered.
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func internalError(c *gin.Context, err error) {
	slog.ErrorContext(c.Request.Context(), "request failed",
		slog.String("path", c.Request.URL.Path), slog.Any("error", err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
