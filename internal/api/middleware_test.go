package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annnsvm/contactsd/internal/config"
	"github.com/annnsvm/contactsd/internal/models"
)

// noopLogger returns a slog.Logger that discards all output, keeping test
// output clean.
func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTokenParser struct {
	username string
	err      error
}

func (f *fakeTokenParser) ParseAccess(_ string) (string, error) {
	return f.username, f.err
}

type fakeResolver struct {
	user *models.User
	err  error
}

func (f *fakeResolver) Resolve(_ context.Context, _ string) (*models.User, error) {
	return f.user, f.err
}

func protectedEngine(tokens tokenParser, users userResolver, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{AuthRequired(tokens, users)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, currentUser(c))
	})
	r.GET("/protected", handlers...)
	return r
}

func get(engine *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	t.Parallel()

	user := testUser()

	tests := []struct {
		name          string
		tokens        *fakeTokenParser
		users         *fakeResolver
		authorization string
		wantCode      int
	}{
		{
			name:          "valid token",
			tokens:        &fakeTokenParser{username: "ann"},
			users:         &fakeResolver{user: user},
			authorization: "Bearer good-token",
			wantCode:      http.StatusOK,
		},
		{
			name:     "missing header",
			tokens:   &fakeTokenParser{},
			users:    &fakeResolver{},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:          "not a bearer scheme",
			tokens:        &fakeTokenParser{},
			users:         &fakeResolver{},
			authorization: "Basic dXNlcjpwdw==",
			wantCode:      http.StatusUnauthorized,
		},
		{
			name:          "invalid token",
			tokens:        &fakeTokenParser{err: errors.New("bad signature")},
			users:         &fakeResolver{},
			authorization: "Bearer forged",
			wantCode:      http.StatusUnauthorized,
		},
		{
			name:          "user no longer exists",
			tokens:        &fakeTokenParser{username: "ghost"},
			users:         &fakeResolver{err: errors.New("not found")},
			authorization: "Bearer good-token",
			wantCode:      http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			engine := protectedEngine(tt.tokens, tt.users)
			w := get(engine, tt.authorization)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestAdminRequired(t *testing.T) {
	t.Parallel()

	t.Run("admin allowed", func(t *testing.T) {
		t.Parallel()
		admin := testUser()
		admin.Role = models.RoleAdmin
		engine := protectedEngine(&fakeTokenParser{username: "ann"}, &fakeResolver{user: admin}, AdminRequired())

		w := get(engine, "Bearer good-token")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("regular user forbidden", func(t *testing.T) {
		t.Parallel()
		engine := protectedEngine(&fakeTokenParser{username: "ann"}, &fakeResolver{user: testUser()}, AdminRequired())

		w := get(engine, "Bearer good-token")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestRecovery_Returns500(t *testing.T) {
	t.Parallel()

	r := gin.New()
	r.Use(Recovery(noopLogger()))
	r.GET("/boom", func(_ *gin.Context) {
		panic("kaboom")
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	t.Parallel()

	r := gin.New()
	r.Use(RequestLogger(noopLogger()))
	r.GET("/ok", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewRouter_RoutesRegistered(t *testing.T) {
	t.Parallel()

	h := NewHandler(
		&fakeAuthSvc{},
		&fakeUsersSvc{},
		&fakeContactsSvc{},
		&fakeHealthSvc{ready: true},
	)
	router := NewRouter(h, &fakeTokenParser{err: errors.New("no token")}, &fakeResolver{},
		func(c *gin.Context) { c.Next() },
		config.ServerConfig{CORSOrigins: []string{"http://127.0.0.1:5000"}, ReadTimeout: time.Second})

	t.Run("ready wired", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		w := httptest.NewRecorder()
		router.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("contacts require auth", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/contacts", nil)
		w := httptest.NewRecorder()
		router.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown route 404s", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
		w := httptest.NewRecorder()
		router.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("cors preflight", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/auth/login", nil)
		req.Header.Set("Origin", "http://127.0.0.1:5000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()
		router.Handler().ServeHTTP(w, req)

		require.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "http://127.0.0.1:5000", w.Header().Get("Access-Control-Allow-Origin"))
	})
}
