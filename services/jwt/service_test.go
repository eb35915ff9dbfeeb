package jwt

import (
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/condoaccess/testutils"
)

func newTestService(t *testing.T) (*Service, *testutils.Clock) {
	t.Helper()
	clock := testutils.NewClock(testutils.BaseTime)
	svc := NewService(testutils.GetTestConfig(), nil)
	svc.SetClock(clock.Now)
	return svc, clock
}

func TestService_IssueAccessToken(t *testing.T) {
	svc, _ := newTestService(t)
	subject := Subject{UserID: 42, Email: "ana@condo.test", Role: "admin", SessionID: "sess-1"}

	t.Run("explicit expiry", func(t *testing.T) {
		token, expiresAt, err := svc.IssueAccessToken(subject, "5m")
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.Equal(t, testutils.BaseTime.Add(5*time.Minute), expiresAt)

		claims, err := svc.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, uint(42), claims.UserID)
		assert.Equal(t, "ana@condo.test", claims.Email)
		assert.Equal(t, "admin", claims.Role)
		assert.Equal(t, "sess-1", claims.SessionID)
		assert.Equal(t, TokenTypeAccess, claims.TokenType)
		assert.Equal(t, "42", claims.Subject)
	})

	t.Run("malformed expiry uses configured access ttl", func(t *testing.T) {
		_, expiresAt, err := svc.IssueAccessToken(subject, "soon")
		require.NoError(t, err)
		assert.Equal(t, testutils.BaseTime.Add(15*time.Minute), expiresAt)
	})

	t.Run("missing secret", func(t *testing.T) {
		cfg := testutils.GetTestConfig()
		cfg.JWT.SecretKey = ""
		_, _, err := NewService(cfg, nil).IssueAccessToken(subject, "5m")
		assert.ErrorIs(t, err, ErrMissingSecret)
	})
}

func TestService_ValidateToken(t *testing.T) {
	svc, clock := newTestService(t)
	subject := Subject{UserID: 1, Email: "a@b.test", Role: "resident"}

	t.Run("expired", func(t *testing.T) {
		token, _, err := svc.IssueAccessToken(subject, "1m")
		require.NoError(t, err)

		clock.Advance(2 * time.Minute)
		defer clock.Set(testutils.BaseTime)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := svc.ValidateToken("not-a-jwt")
		assert.ErrorIs(t, err, ErrMalformedToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := testutils.GetTestConfig()
		other.JWT.SecretKey = "another-secret-key-32-chars-long"
		foreign := NewService(other, nil)
		foreign.SetClock(clock.Now)

		token, _, err := foreign.IssueAccessToken(subject, "5m")
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("none algorithm rejected", func(t *testing.T) {
		claims := Claims{UserID: 1, TokenType: TokenTypeAccess, RegisteredClaims: gojwt.RegisteredClaims{
			Issuer:    "test-issuer",
			ExpiresAt: gojwt.NewNumericDate(clock.Now().Add(time.Hour)),
		}}
		token, err := gojwt.NewWithClaims(gojwt.SigningMethodNone, claims).SignedString(gojwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("non access token rejected", func(t *testing.T) {
		claims := Claims{UserID: 1, TokenType: "refresh", RegisteredClaims: gojwt.RegisteredClaims{
			Issuer:    "test-issuer",
			Audience:  gojwt.ClaimStrings{"test-issuer"},
			ExpiresAt: gojwt.NewNumericDate(clock.Now().Add(time.Hour)),
		}}
		token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte("test-secret-key-32-chars-long!!"))
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrWrongTokenType)
	})

	t.Run("foreign audience rejected", func(t *testing.T) {
		for name, audience := range map[string]gojwt.ClaimStrings{
			"other service": {"billing-service"},
			"missing":       nil,
		} {
			claims := Claims{UserID: 1, TokenType: TokenTypeAccess, RegisteredClaims: gojwt.RegisteredClaims{
				Issuer:    "test-issuer",
				Audience:  audience,
				ExpiresAt: gojwt.NewNumericDate(clock.Now().Add(time.Hour)),
			}}
			token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte("test-secret-key-32-chars-long!!"))
			require.NoError(t, err)

			_, err = svc.ValidateToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken, name)
		}
	})
}
