package jwt

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/condoaccess/services/jwt"
	"github.com/tech-arch1tect/condoaccess/testutils"
)

func setupTestJWTService() *jwt.Service {
	return jwt.NewService(testutils.GetTestConfig(), nil)
}

func issue(t *testing.T, svc *jwt.Service, subject jwt.Subject) string {
	t.Helper()
	token, _, err := svc.IssueAccessToken(subject, "15m")
	require.NoError(t, err)
	return token
}

func requireHTTPError(t *testing.T, err error, code int, message string) {
	t.Helper()
	require.Error(t, err)
	httpError, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, code, httpError.Code)
	assert.Contains(t, httpError.Message, message)
}

func TestRequireJWT(t *testing.T) {
	e := echo.New()
	jwtService := setupTestJWTService()
	middleware := RequireJWT(jwtService)

	successHandler := func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "success"})
	}

	run := func(header string) (echo.Context, *httptest.ResponseRecorder, error) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		return c, rec, middleware(successHandler)(c)
	}

	t.Run("missing authorization header", func(t *testing.T) {
		_, _, err := run("")
		requireHTTPError(t, err, http.StatusUnauthorized, "Authorization header required")
	})

	t.Run("invalid authorization header format", func(t *testing.T) {
		_, _, err := run("Basic dXNlcjpwYXNz")
		requireHTTPError(t, err, http.StatusUnauthorized, "Invalid authorization header format")
	})

	t.Run("empty bearer token", func(t *testing.T) {
		_, _, err := run("Bearer ")
		requireHTTPError(t, err, http.StatusUnauthorized, "JWT token required")
	})

	t.Run("malformed token", func(t *testing.T) {
		_, _, err := run("Bearer invalid.jwt.token")
		requireHTTPError(t, err, http.StatusUnauthorized, "JWT token")
	})

	t.Run("valid token", func(t *testing.T) {
		token := issue(t, jwtService, jwt.Subject{UserID: 123, Email: "ana@condo.test", Role: "resident", SessionID: "sess-1"})

		c, rec, err := run("Bearer " + token)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, uint(123), GetUserID(c))
		assert.Equal(t, "sess-1", GetSessionID(c))
		require.NotNil(t, GetClaims(c))
		assert.Equal(t, "resident", GetClaims(c).Role)
	})

	t.Run("scheme is case insensitive", func(t *testing.T) {
		token := issue(t, jwtService, jwt.Subject{UserID: 7})

		_, rec, err := run("bearer " + token)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		past := setupTestJWTService()
		past.SetClock(func() time.Time { return time.Now().Add(-time.Hour) })
		token := issue(t, past, jwt.Subject{UserID: 123})

		_, _, err := run("Bearer " + token)
		requireHTTPError(t, err, http.StatusUnauthorized, "JWT token has expired")
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		cfg := testutils.GetTestConfig()
		cfg.JWT.SecretKey = "another-secret-key-32-chars-long"
		token := issue(t, jwt.NewService(cfg, nil), jwt.Subject{UserID: 123})

		_, _, err := run("Bearer " + token)
		requireHTTPError(t, err, http.StatusUnauthorized, "Invalid JWT token signature")
	})
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	jwtService := setupTestJWTService()

	e.GET("/admin", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}, RequireJWT(jwtService), RequireRole("admin"))

	call := func(role string) int {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+issue(t, jwtService, jwt.Subject{UserID: 1, Role: role}))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("admin"))
	assert.Equal(t, http.StatusForbidden, call("resident"))
	assert.Equal(t, http.StatusForbidden, call(""))

	t.Run("without claims", func(t *testing.T) {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		err := RequireRole("admin")(func(echo.Context) error { return nil })(c)
		requireHTTPError(t, err, http.StatusUnauthorized, "Authentication required")
	})
}

func TestContextAccessors(t *testing.T) {
	e := echo.New()
	newContext := func() echo.Context {
		return e.NewContext(httptest.NewRequest(http.MethodGet, "/test", nil), httptest.NewRecorder())
	}

	t.Run("empty context", func(t *testing.T) {
		c := newContext()
		assert.Equal(t, uint(0), GetUserID(c))
		assert.Nil(t, GetClaims(c))
		assert.Equal(t, "", GetSessionID(c))
	})

	t.Run("wrong types", func(t *testing.T) {
		c := newContext()
		c.Set(UserIDKey, "not-a-uint")
		c.Set(ClaimsKey, "not-claims")
		assert.Equal(t, uint(0), GetUserID(c))
		assert.Nil(t, GetClaims(c))
	})

	t.Run("claims present", func(t *testing.T) {
		c := newContext()
		claims := &jwt.Claims{UserID: 42, SessionID: "abc"}
		c.Set(UserIDKey, uint(42))
		c.Set(ClaimsKey, claims)
		assert.Equal(t, uint(42), GetUserID(c))
		assert.Same(t, claims, GetClaims(c))
		assert.Equal(t, "abc", GetSessionID(c))
	})
}
