package testutils

import (
	"time"

	"github.com/tech-arch1tect/condoaccess/config"
	"golang.org/x/crypto/bcrypt"
)

// BaseTime is the reference instant used by fixtures.
var BaseTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name: "Test App",
			URL:  "http://localhost:8080",
		},
		Auth: config.AuthConfig{
			MinLength:     8,
			RequireUpper:  true,
			RequireLower:  true,
			RequireNumber: true,
			BcryptCost:    bcrypt.MinCost,
		},
		JWT: config.JWTConfig{
			SecretKey: "test-secret-key-32-chars-long!!",
			Algorithm: "HS256",
			Issuer:    "test-issuer",
		},
		Session: config.SessionConfig{
			RefreshTTL: "7d",
			AccessTTL:  "15m",
			MaxActive:  "5",
			TokenBytes: "48",
		},
		Audit: config.AuditConfig{
			RetentionDays:   "90",
			ExportMaxRows:   "20000",
			WriteTimeout:    time.Second,
			DetailsMaxLen:   1000,
			UserAgentMaxLen: 512,
		},
		Metrics: config.MetricsConfig{
			WindowHours: "24",
			TopN:        "10",
		},
		Snapshot: config.SnapshotConfig{
			Interval:      "1h",
			RetentionDays: "30",
			PruneInterval: "24h",
		},
		RateLimit: config.RateLimitConfig{
			LoginLimit:  10,
			LoginWindow: time.Minute,
		},
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			DSN:    ":memory:",
		},
	}
}
