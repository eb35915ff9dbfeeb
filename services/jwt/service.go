package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tech-arch1tect/condoaccess/config"
	"github.com/tech-arch1tect/condoaccess/services/logging"
	"go.uber.org/zap"
)

var (
	ErrInvalidToken     = errors.New("invalid JWT token")
	ErrExpiredToken     = errors.New("JWT token has expired")
	ErrMalformedToken   = errors.New("malformed JWT token")
	ErrInvalidSignature = errors.New("invalid JWT token signature")
	ErrWrongTokenType   = errors.New("JWT token is not an access token")
	ErrMissingSecret    = errors.New("JWT secret key is not configured")
)

const TokenTypeAccess = "access"

// Subject is who an access token is minted for. SessionID binds the token to
// the refresh session it was issued alongside.
type Subject struct {
	UserID    uint
	Email     string
	Role      string
	SessionID string
}

type Claims struct {
	UserID    uint   `json:"user_id"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	SessionID string `json:"sid,omitempty"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

type Service struct {
	config *config.Config
	logger *logging.Service
	now    func() time.Time
}

func NewService(cfg *config.Config, logger *logging.Service) *Service {
	return &Service{
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// IssueAccessToken signs a short-lived HS256 token. expiry uses the
// <integer>[smhd] form; malformed values fall back to the configured access TTL.
func (s *Service) IssueAccessToken(subject Subject, expiry string) (string, time.Time, error) {
	if s.config.JWT.SecretKey == "" {
		return "", time.Time{}, ErrMissingSecret
	}

	ttl := config.ParseTTL(expiry, s.config.Session.AccessTTLDuration())
	now := s.now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		UserID:    subject.UserID,
		Email:     subject.Email,
		Role:      subject.Role,
		SessionID: subject.SessionID,
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.JWT.Issuer,
			Subject:   strconv.FormatUint(uint64(subject.UserID), 10),
			Audience:  []string{s.config.JWT.Issuer},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.JWT.SecretKey))
	if err != nil {
		s.logger.Error("failed to sign access token", zap.Error(err), zap.Uint("user_id", subject.UserID))
		return "", time.Time{}, fmt.Errorf("failed to generate access token: %w", err)
	}

	return signed, expiresAt, nil
}

func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected algorithm: expected HS256, got %s", token.Method.Alg())
		}
		return []byte(s.config.JWT.SecretKey), nil
	}, jwt.WithTimeFunc(s.now), jwt.WithIssuer(s.config.JWT.Issuer), jwt.WithAudience(s.config.JWT.Issuer))

	if err != nil {
		s.logger.Debug("access token validation failed", zap.Error(err))

		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformedToken
		case errors.Is(err, jwt.ErrSignatureInvalid):
			return nil, ErrInvalidSignature
		default:
			return nil, ErrInvalidToken
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != TokenTypeAccess {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
