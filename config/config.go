package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MemoryURI selects the in-memory stores instead of MongoDB.
const MemoryURI = "memory://"

type Config struct {
	Port             string
	Env              string
	MongoURI         string
	MongoDB          string
	RedisURL         string
	JWTSecret        string
	AIServiceURL     string
	AITimeout        time.Duration
	IssueListTTL     time.Duration
	IssueDailyLimit  int
	IssueLimitPrefix string
	CORSOrigins      []string
	NotifyTimeout    time.Duration
	ShutdownTimeout  time.Duration
}

func (c *Config) Production() bool { return c.Env == "production" }

// UseMemoryStores reports whether the process runs without MongoDB.
func (c *Config) UseMemoryStores() bool { return c.MongoURI == MemoryURI }

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using process environment")
	}

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("GO_ENV", "development"),
		MongoURI:         os.Getenv("MONGODB_URI"),
		MongoDB:          getEnv("MONGODB_DB", "civicsync"),
		RedisURL:         os.Getenv("REDIS_URL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		AIServiceURL:     os.Getenv("AI_SERVICE_URL"),
		IssueLimitPrefix: getEnv("REDIS_QUEUE_FOR_ISSUE_LIMIT", "issue-limit"),
	}

	var errs []error
	if cfg.MongoURI == "" {
		errs = append(errs, errors.New("MONGODB_URI is required"))
	}
	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}

	var err error
	if cfg.AITimeout, err = getDuration("AI_TIMEOUT", 5*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.IssueListTTL, err = getDuration("ISSUE_LIST_TTL", 10*time.Minute); err != nil {
		errs = append(errs, err)
	}
	if cfg.NotifyTimeout, err = getDuration("NOTIFY_TIMEOUT", 5*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 15*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.IssueDailyLimit, err = getInt("ISSUE_DAILY_LIMIT", 20); err != nil {
		errs = append(errs, err)
	}

	for _, o := range strings.Split(os.Getenv("CORS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"http://localhost:3000"}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.New(key + " must be a duration like 5s or 10m")
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return n, nil
}
