package ratelimit

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/condoaccess/config"
	"github.com/tech-arch1tect/condoaccess/services/audit"
)

type Config struct {
	Store          Store
	Rate           int
	Period         time.Duration
	KeyGenerator   func(c echo.Context) string
	OnLimitReached func(c echo.Context) error
	Now            func() time.Time
}

func Middleware(cfg *Config) echo.MiddlewareFunc {
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 10
	}
	if cfg.Period <= 0 {
		cfg.Period = time.Minute
	}
	if cfg.KeyGenerator == nil {
		cfg.KeyGenerator = DefaultKeyGenerator
	}
	if cfg.OnLimitReached == nil {
		cfg.OnLimitReached = DefaultOnLimitReached
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			now := cfg.Now()
			count, resetTime := cfg.Store.Hit(cfg.KeyGenerator(c), cfg.Period, now)

			header := c.Response().Header()
			header.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Rate))
			header.Set("X-RateLimit-Remaining", strconv.Itoa(max(cfg.Rate-count, 0)))
			header.Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

			if count > cfg.Rate {
				retry := int(math.Ceil(resetTime.Sub(now).Seconds()))
				header.Set("Retry-After", strconv.Itoa(max(retry, 1)))
				return cfg.OnLimitReached(c)
			}

			return next(c)
		}
	}
}

func DefaultKeyGenerator(c echo.Context) string {
	realIP := c.RealIP()
	if realIP == "" || realIP == "unknown" {
		realIP = "fallback"
	}
	return "rate_limit:" + realIP
}

func DefaultOnLimitReached(c echo.Context) error {
	return echo.NewHTTPError(http.StatusTooManyRequests, "Too Many Requests")
}

// AuditRecorder receives the failed login written for each rejected attempt.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Login limits login attempts per client address using the configured rate
// and window. Rejected attempts are recorded as failed logins when recorder
// is non-nil.
func Login(cfg *config.Config, store Store, recorder AuditRecorder) echo.MiddlewareFunc {
	return Middleware(&Config{
		Store:  store,
		Rate:   cfg.RateLimit.LoginLimit,
		Period: cfg.RateLimit.LoginWindow,
		KeyGenerator: func(c echo.Context) string {
			return "login:" + DefaultKeyGenerator(c)
		},
		OnLimitReached: func(c echo.Context) error {
			if recorder != nil {
				recorder.Record(c.Request().Context(), audit.Entry{
					EventType: audit.EventLogin,
					IPAddress: c.RealIP(),
					UserAgent: c.Request().UserAgent(),
					Details:   "rate limited",
				})
			}
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many login attempts, try again later")
		},
	})
}
