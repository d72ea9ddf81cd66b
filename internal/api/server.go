// Package api exposes the HTTP surface of the contacts service.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/annnsvm/contactsd/internal/config"
)

// Router wraps a configured Gin engine and exposes it as an http.Handler.
type Router struct {
	engine *gin.Engine
}

// NewRouter constructs a Router with the full middleware chain and all routes
// registered. The middleware order is:
//  1. Recovery — panic → 500
//  2. Tracing — trace context per request
//  3. RequestLogger — structured request/response logging
//  4. CORS — configured origins, credentials allowed
func NewRouter(h *Handler, tokens tokenParser, users userResolver,
	rateLimit gin.HandlerFunc, cfg config.ServerConfig) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(Recovery(slog.Default()))
	engine.Use(Tracing("contactsd"))
	engine.Use(RequestLogger(slog.Default()))
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	authed := AuthRequired(tokens, users)

	v1 := engine.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.POST("/register", h.Register)
	authGroup.POST("/login", h.Login)
	authGroup.POST("/refresh-token", h.RefreshToken)
	authGroup.GET("/confirmed_email/:token", h.ConfirmEmail)
	authGroup.POST("/request_email", h.RequestEmail)

	usersGroup := v1.Group("/users")
	usersGroup.GET("/me", rateLimit, authed, h.Me)
	usersGroup.PATCH("/avatar", authed, AdminRequired(), h.UpdateAvatar)
	usersGroup.DELETE("/:id", authed, AdminRequired(), h.DeleteUser)
	usersGroup.POST("/request_reset_password", h.RequestPasswordReset)
	usersGroup.GET("/reset_password/:token", h.ValidateResetToken)
	usersGroup.PATCH("/reset_password", h.ResetPassword)

	contactsGroup := v1.Group("/contacts", authed)
	contactsGroup.GET("", h.ListContacts)
	contactsGroup.POST("", h.CreateContact)
	contactsGroup.GET("/birthdays", h.UpcomingBirthdays)
	contactsGroup.GET("/:id", h.GetContact)
	contactsGroup.PUT("/:id", h.UpdateContact)
	contactsGroup.DELETE("/:id", h.DeleteContact)

	engine.GET("/health", h.Health)
	engine.GET("/health/deep", h.DeepHealth)
	engine.GET("/ready", h.Ready)

	return &Router{engine: engine}
}

// Handler returns the underlying http.Handler for use with net/http servers.
func (r *Router) Handler() http.Handler {
	return r.engine
}
