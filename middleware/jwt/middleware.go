package jwt

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/condoaccess/services/jwt"
)

const (
	UserIDKey = "_jwt_user_id"
	ClaimsKey = "_jwt_claims"
)

func RequireJWT(jwtService *jwt.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header required")
			}

			scheme, tokenString, found := strings.Cut(authHeader, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			tokenString = strings.TrimSpace(tokenString)
			if tokenString == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "JWT token required")
			}

			claims, err := jwtService.ValidateToken(tokenString)
			if err != nil {
				switch {
				case errors.Is(err, jwt.ErrExpiredToken):
					return echo.NewHTTPError(http.StatusUnauthorized, "JWT token has expired")
				case errors.Is(err, jwt.ErrMalformedToken):
					return echo.NewHTTPError(http.StatusUnauthorized, "Malformed JWT token")
				case errors.Is(err, jwt.ErrInvalidSignature):
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid JWT token signature")
				case errors.Is(err, jwt.ErrWrongTokenType):
					return echo.NewHTTPError(http.StatusUnauthorized, "JWT token is not an access token")
				default:
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid JWT token")
				}
			}

			c.Set(UserIDKey, claims.UserID)
			c.Set(ClaimsKey, claims)

			return next(c)
		}
	}
}

// RequireRole must run after RequireJWT.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := GetClaims(c)
			if claims == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
			}
			if !slices.Contains(roles, claims.Role) {
				return echo.NewHTTPError(http.StatusForbidden, "Insufficient role")
			}
			return next(c)
		}
	}
}

func GetUserID(c echo.Context) uint {
	if userID, ok := c.Get(UserIDKey).(uint); ok {
		return userID
	}
	return 0
}

func GetClaims(c echo.Context) *jwt.Claims {
	if claims, ok := c.Get(ClaimsKey).(*jwt.Claims); ok {
		return claims
	}
	return nil
}

// GetSessionID returns the refresh session the access token was minted
// with, or "".
func GetSessionID(c echo.Context) string {
	if claims := GetClaims(c); claims != nil {
		return claims.SessionID
	}
	return ""
}
