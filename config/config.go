package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig       `envPrefix:"APP_"`
	Server    ServerConfig    `envPrefix:"SERVER_"`
	Log       LogConfig       `envPrefix:"LOG_"`
	Database  DatabaseConfig  `envPrefix:"DATABASE_"`
	JWT       JWTConfig       `envPrefix:"JWT_"`
	Auth      AuthConfig      `envPrefix:"AUTH_"`
	Session   SessionConfig   `envPrefix:"SESSION_"`
	Audit     AuditConfig     `envPrefix:"AUDIT_"`
	Metrics   MetricsConfig   `envPrefix:"METRICS_"`
	Snapshot  SnapshotConfig  `envPrefix:"SNAPSHOT_"`
	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`
	Mail      MailConfig      `envPrefix:"MAIL_"`
	Alert     AlertConfig     `envPrefix:"ALERT_"`
}

type AppConfig struct {
	Name string `env:"NAME" envDefault:"Condo Access"`
	URL  string `env:"URL" envDefault:"http://localhost:8080"`
}

type ServerConfig struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	Host            string        `env:"HOST" envDefault:"localhost"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	TrustProxy      bool          `env:"TRUST_PROXY" envDefault:"false"`
}

type LogConfig struct {
	Level         string        `env:"LEVEL" envDefault:"info"`
	Format        string        `env:"FORMAT" envDefault:"json"`
	Output        string        `env:"OUTPUT" envDefault:"stdout"`
	SlowThreshold time.Duration `env:"SLOW_QUERY_THRESHOLD" envDefault:"200ms"`
}

type DatabaseConfig struct {
	Driver       string `env:"DRIVER" envDefault:"sqlite"`
	DSN          string `env:"DSN" envDefault:"condoaccess.db"`
	AutoMigrate  bool   `env:"AUTO_MIGRATE" envDefault:"true"`
	MaxOpenConns int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns int    `env:"MAX_IDLE_CONNS" envDefault:"5"`
}

type JWTConfig struct {
	SecretKey string `env:"SECRET_KEY"`
	Issuer    string `env:"ISSUER" envDefault:"condoaccess"`
	Algorithm string `env:"ALGORITHM" envDefault:"HS256"`
}

type AuthConfig struct {
	MinLength      int  `env:"MIN_LENGTH" envDefault:"8"`
	RequireUpper   bool `env:"REQUIRE_UPPER" envDefault:"true"`
	RequireLower   bool `env:"REQUIRE_LOWER" envDefault:"true"`
	RequireNumber  bool `env:"REQUIRE_NUMBER" envDefault:"true"`
	RequireSpecial bool `env:"REQUIRE_SPECIAL" envDefault:"false"`
	BcryptCost     int  `env:"BCRYPT_COST" envDefault:"10"`
}

// Values below are kept as raw strings and read through accessors so that a
// malformed environment falls back to defaults instead of failing startup.

type SessionConfig struct {
	RefreshTTL string `env:"REFRESH_TTL" envDefault:"7d"`
	AccessTTL  string `env:"ACCESS_TTL" envDefault:"15m"`
	MaxActive  string `env:"MAX_ACTIVE" envDefault:"5"`
	TokenBytes string `env:"TOKEN_BYTES" envDefault:"48"`
}

type AuditConfig struct {
	RetentionDays   string        `env:"RETENTION_DAYS" envDefault:"90"`
	ExportMaxRows   string        `env:"EXPORT_MAX_ROWS" envDefault:"20000"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"2s"`
	DetailsMaxLen   int           `env:"DETAILS_MAX" envDefault:"1000"`
	UserAgentMaxLen int           `env:"USER_AGENT_MAX" envDefault:"512"`
}

type MetricsConfig struct {
	WindowHours string `env:"WINDOW_HOURS" envDefault:"24"`
	TopN        string `env:"TOP_N" envDefault:"10"`
}

type SnapshotConfig struct {
	Interval      string `env:"INTERVAL" envDefault:"1h"`
	RetentionDays string `env:"RETENTION_DAYS" envDefault:"30"`
	PruneInterval string `env:"PRUNE_INTERVAL" envDefault:"24h"`
}

type RateLimitConfig struct {
	LoginLimit  int           `env:"LOGIN_LIMIT" envDefault:"10"`
	LoginWindow time.Duration `env:"LOGIN_WINDOW" envDefault:"1m"`
}

type MailConfig struct {
	Enabled     bool   `env:"ENABLED" envDefault:"false"`
	Host        string `env:"HOST" envDefault:"localhost"`
	Port        int    `env:"PORT" envDefault:"587"`
	Username    string `env:"USERNAME"`
	Password    string `env:"PASSWORD"`
	FromAddress string `env:"FROM_ADDRESS"`
	FromName    string `env:"FROM_NAME" envDefault:"Condo Access"`
	Encryption  string `env:"ENCRYPTION" envDefault:"starttls"`
}

type AlertConfig struct {
	Recipients  []string `env:"RECIPIENTS" envSeparator:","`
	FailureRate float64  `env:"FAILURE_RATE" envDefault:"50"`
	MinAttempts int64    `env:"MIN_ATTEMPTS" envDefault:"20"`
}

func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	return env.Parse(cfg)
}
