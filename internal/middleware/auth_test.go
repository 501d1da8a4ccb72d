package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"leavemgmt/internal/model"
	"leavemgmt/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type stubResolver struct {
	users map[string]*model.User
	err   error
}

func (r *stubResolver) ResolveSession(_ context.Context, token string) (*model.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	if user, ok := r.users[token]; ok {
		return user, nil
	}
	return nil, service.ErrInvalidSession
}

var testCookies = CookieConfig{Name: "lm_session", TTL: 14 * 24 * time.Hour, Secure: true}

func newRouter(resolver SessionResolver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	admin := r.Group("/admin", Authenticate(resolver, testCookies), RequireRole(model.RoleAdmin))
	admin.GET("", func(c *gin.Context) {
		user, _ := CurrentUser(c)
		c.String(http.StatusOK, user.Name)
	})
	return r
}

func TestAuthenticate(t *testing.T) {
	admin := &model.User{ID: uuid.New(), Role: model.RoleAdmin, Name: "Alice"}
	employee := &model.User{ID: uuid.New(), Role: model.RoleEmployee, Name: "Eve"}
	resolver := &stubResolver{users: map[string]*model.User{"admin-token": admin, "employee-token": employee}}
	router := newRouter(resolver)

	cases := []struct {
		name       string
		setup      func(*http.Request)
		wantStatus int
		wantBody   string
	}{
		{name: "no credentials", setup: func(*http.Request) {}, wantStatus: http.StatusUnauthorized},
		{name: "cookie", setup: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "lm_session", Value: "admin-token"}) }, wantStatus: http.StatusOK, wantBody: "Alice"},
		{name: "bearer header", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer admin-token") }, wantStatus: http.StatusOK, wantBody: "Alice"},
		{name: "unknown session", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, wantStatus: http.StatusUnauthorized},
		{name: "wrong role", setup: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "lm_session", Value: "employee-token"}) }, wantStatus: http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			tc.setup(req)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d (%s)", tc.wantStatus, w.Code, w.Body.String())
			}
			if tc.wantBody != "" && w.Body.String() != tc.wantBody {
				t.Fatalf("expected body %q, got %q", tc.wantBody, w.Body.String())
			}
		})
	}
}

func TestAuthenticateClearsExpiredCookie(t *testing.T) {
	router := newRouter(&stubResolver{err: service.ErrSessionExpired})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: "lm_session", Value: "old"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Session expired") {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
	cookie := w.Header().Get("Set-Cookie")
	if !strings.Contains(cookie, "lm_session=;") || !strings.Contains(cookie, "Max-Age=0") {
		t.Fatalf("expected cookie to be cleared, got %q", cookie)
	}
}

func TestSetSessionCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	SetSessionCookie(c, testCookies, "abc")

	cookie := w.Header().Get("Set-Cookie")
	for _, want := range []string{"lm_session=abc", "Max-Age=1209600", "HttpOnly", "Secure", "SameSite=Lax", "Path=/"} {
		if !strings.Contains(cookie, want) {
			t.Fatalf("cookie %q missing %q", cookie, want)
		}
	}
}
