package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	ServerPort string
	RedisURL   string
	LogLevel   string

	// ChallengeTokenSecret keys the HMAC on stateless activation challenge tokens.
	ChallengeTokenSecret string
	// AdminJWTSecret verifies staff tokens on /admin routes.
	AdminJWTSecret string

	ScheduleTimezone string

	ClockSkew          time.Duration
	NonceTTL           time.Duration
	PairingCodeTTL     time.Duration
	PairingSessionTTL  time.Duration
	ChallengeTTL       time.Duration
	ContentURLTTL      time.Duration
	StreamHeartbeat    time.Duration
	SweepInterval      time.Duration
	PresignWorkers     int
	RateLimitPerMinute int

	HeartbeatPushManifest bool

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables")
	}

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	sslMode := os.Getenv("DB_SSLMODE")
	if sslMode == "" {
		sslMode = "require"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	timezone := os.Getenv("SCHEDULE_TIMEZONE")
	if timezone == "" {
		timezone = "UTC"
	}

	cfg := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBSSLMode:  sslMode,

		ServerPort: serverPort,
		RedisURL:   os.Getenv("REDIS_URL"),
		LogLevel:   logLevel,

		ChallengeTokenSecret: os.Getenv("CHALLENGE_TOKEN_SECRET"),
		AdminJWTSecret:       os.Getenv("ADMIN_JWT_SECRET"),

		ScheduleTimezone: timezone,

		ClockSkew:          secondsOr("CLOCK_SKEW_SECONDS", 60),
		NonceTTL:           secondsOr("NONCE_TTL_SECONDS", 300),
		PairingCodeTTL:     secondsOr("PAIRING_CODE_TTL_SECONDS", 900),
		PairingSessionTTL:  secondsOr("PAIRING_SESSION_TTL_SECONDS", 300),
		ChallengeTTL:       secondsOr("CHALLENGE_TTL_SECONDS", 120),
		ContentURLTTL:      secondsOr("CONTENT_URL_TTL_SECONDS", 3600),
		StreamHeartbeat:    secondsOr("STREAM_HEARTBEAT_SECONDS", 20),
		SweepInterval:      secondsOr("SWEEP_INTERVAL_SECONDS", 300),
		PresignWorkers:     intOr("PRESIGN_WORKERS", 8),
		RateLimitPerMinute: intOr("RATE_LIMIT_PER_MINUTE", 20),

		HeartbeatPushManifest: boolOr("HEARTBEAT_PUSH_MANIFEST", true),

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every missing required setting at once.
func (c *Config) Validate() error {
	var missing []string
	if c.ChallengeTokenSecret == "" {
		missing = append(missing, "CHALLENGE_TOKEN_SECRET")
	}
	if c.AdminJWTSecret == "" {
		missing = append(missing, "ADMIN_JWT_SECRET")
	}
	if c.DBHost == "" {
		missing = append(missing, "DB_HOST")
	}
	if c.DBName == "" {
		missing = append(missing, "DB_NAME")
	}
	if len(missing) > 0 {
		return errors.New("missing required configuration: " + strings.Join(missing, ", "))
	}
	if _, err := time.LoadLocation(c.ScheduleTimezone); err != nil {
		return errors.New("invalid SCHEDULE_TIMEZONE: " + c.ScheduleTimezone)
	}
	// a nonce must outlive every timestamp the skew window still accepts
	if c.NonceTTL < 2*c.ClockSkew {
		return fmt.Errorf("NONCE_TTL_SECONDS (%d) must be at least twice CLOCK_SKEW_SECONDS (%d)",
			int(c.NonceTTL.Seconds()), int(c.ClockSkew.Seconds()))
	}
	return nil
}

// Location returns the time zone schedules are evaluated in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ScheduleTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func intOr(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func secondsOr(key string, fallback int) time.Duration {
	return time.Duration(intOr(key, fallback)) * time.Second
}

func boolOr(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
