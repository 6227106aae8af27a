package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"wikiquiz/internal/config"
)

func setupRouter(sessions Sessions, optional bool) (*gin.Engine, *config.Config) {
	cfg := &config.Config{}
	cfg.Server.JWTSecret = "secret"
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware(cfg, sessions, optional))
	r.GET("/test", func(c *gin.Context) {
		id, name, ok := CurrentPlayer(c)
		if !ok {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "username": name})
	})
	return r, cfg
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	r, _ := setupRouter(NewMemorySessions(), false)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	r, _ := setupRouter(NewMemorySessions(), false)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer not.a.valid.jwt")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for invalid JWT, got %d", w.Code)
	}
}

func TestAuthMiddleware_SessionInvalid(t *testing.T) {
	r, cfg := setupRouter(NewMemorySessions(), false)
	token, _ := GenerateJWT(cfg.Server.JWTSecret, 123, "user", time.Minute)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without a session, got %d", w.Code)
	}
}

func TestAuthMiddleware_ValidSession(t *testing.T) {
	sessions := NewMemorySessions()
	r, cfg := setupRouter(sessions, false)
	token, _ := GenerateJWT(cfg.Server.JWTSecret, 222, "player", time.Minute)
	_ = sessions.Set(context.Background(), 222, token, time.Minute)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body := w.Body.String(); body != `{"id":222,"username":"player"}` {
		t.Errorf("unexpected body %s", body)
	}
}

func TestAuthMiddleware_CookieToken(t *testing.T) {
	sessions := NewMemorySessions()
	r, cfg := setupRouter(sessions, false)
	token, _ := GenerateJWT(cfg.Server.JWTSecret, 5, "cookie", time.Minute)
	_ = sessions.Set(context.Background(), 5, token, time.Minute)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/test", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: token})
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with cookie token, got %d", w.Code)
	}
}

func TestAuthMiddleware_OptionalAllowsAnonymous(t *testing.T) {
	r, _ := setupRouter(NewMemorySessions(), true)

	for _, header := range []string{"", "Bearer garbage"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/test", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK || w.Body.String() != "anonymous" {
			t.Errorf("header %q: expected anonymous 200, got %d %s", header, w.Code, w.Body.String())
		}
	}
}
