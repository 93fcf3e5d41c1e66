package server

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

func testLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func newJSONContext(method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

func TestLoginIssuesToken(t *testing.T) {
	a := &AuthHandler{Secret: []byte("test-secret"), PasswordHash: mustHash(t, "hunter2")}
	c, rec := newJSONContext(http.MethodPost, "/api/admin/login", `{"password":"hunter2"}`)

	if err := a.login(c); err != nil {
		t.Fatalf("login: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"token"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
	if auth := rec.Header().Get("Authorization"); !strings.HasPrefix(auth, "Bearer ") {
		t.Fatalf("Authorization header = %q", auth)
	}
	var cookie string
	for _, sc := range rec.Result().Cookies() {
		if sc.Name == "auth" {
			cookie = sc.Value
		}
	}
	if cookie == "" {
		t.Fatal("auth cookie not set")
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	a := &AuthHandler{Secret: []byte("test-secret"), PasswordHash: mustHash(t, "hunter2")}
	c, _ := newJSONContext(http.MethodPost, "/api/admin/login", `{"password":"wrong"}`)

	err := a.login(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("err = %v, want 401", err)
	}
}

func TestLoginUnconfigured(t *testing.T) {
	a := &AuthHandler{Secret: []byte("test-secret")}
	c, _ := newJSONContext(http.MethodPost, "/api/admin/login", `{"password":"anything"}`)

	err := a.login(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusServiceUnavailable {
		t.Fatalf("err = %v, want 503", err)
	}
}

func TestWithAuthAcceptsBearerToken(t *testing.T) {
	secret := []byte("test-secret")
	signed, err := signJWT("admin", secret, time.Hour)
	if err != nil {
		t.Fatalf("signJWT: %v", err)
	}

	called := false
	handler := withAuth(func(c echo.Context) error {
		called = true
		if c.Get("user_id") != "admin" {
			t.Fatalf("user_id = %v", c.Get("user_id"))
		}
		return c.NoContent(http.StatusOK)
	}, secret)

	c, _ := newJSONContext(http.MethodGet, "/api/admin/products", "")
	c.Request().Header.Set("Authorization", "Bearer "+signed)
	if err := handler(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !called {
		t.Fatal("handler not invoked")
	}
}

func TestWithAuthAcceptsCookie(t *testing.T) {
	secret := []byte("test-secret")
	signed, err := signJWT("admin", secret, time.Hour)
	if err != nil {
		t.Fatalf("signJWT: %v", err)
	}

	handler := withAuth(func(c echo.Context) error { return c.NoContent(http.StatusOK) }, secret)
	c, _ := newJSONContext(http.MethodGet, "/api/admin/products", "")
	c.Request().AddCookie(&http.Cookie{Name: "auth", Value: signed})
	if err := handler(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
}

func TestWithAuthRejectsMissingAndInvalidTokens(t *testing.T) {
	secret := []byte("test-secret")
	handler := withAuth(func(c echo.Context) error { return c.NoContent(http.StatusOK) }, secret)

	c, _ := newJSONContext(http.MethodGet, "/api/admin/products", "")
	if he, ok := handler(c).(*echo.HTTPError); !ok || he.Code != http.StatusUnauthorized {
		t.Fatal("missing token must be rejected")
	}

	c, _ = newJSONContext(http.MethodGet, "/api/admin/products", "")
	c.Request().Header.Set("Authorization", "Bearer not-a-jwt")
	if he, ok := handler(c).(*echo.HTTPError); !ok || he.Code != http.StatusUnauthorized {
		t.Fatal("garbage token must be rejected")
	}

	wrong, err := signJWT("admin", []byte("other-secret"), time.Hour)
	if err != nil {
		t.Fatalf("signJWT: %v", err)
	}
	c, _ = newJSONContext(http.MethodGet, "/api/admin/products", "")
	c.Request().Header.Set("Authorization", "Bearer "+wrong)
	if he, ok := handler(c).(*echo.HTTPError); !ok || he.Code != http.StatusUnauthorized {
		t.Fatal("token signed with the wrong secret must be rejected")
	}
}
