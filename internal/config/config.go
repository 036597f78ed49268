package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the faceindex server and worker.
type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	S3       S3Config
	Database DatabaseConfig
	Search   SearchConfig
	Detect   DetectConfig
	Worker   WorkerConfig
	Auth     AuthConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type RedisConfig struct {
	URL string
	// StatusTTL bounds how long job status parameters live. Zero means no
	// expiry; a crashed worker then leaves its job at "processing" forever,
	// matching the upstream behavior.
	StatusTTL time.Duration
}

type S3Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	UseSSL        bool
	PublicBaseURL string
}

// DatabaseConfig is optional: when URL is empty the durable face-id registry
// is disabled and workers generate fresh face ids on every attempt.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type SearchConfig struct {
	Hosts    []string
	Username string
	Password string
	Timeout  time.Duration
}

type DetectConfig struct {
	Provider    string
	Concurrency int
	Insight     InsightConfig
	Mock        MockConfig
}

type InsightConfig struct {
	BaseURL string
	Timeout time.Duration
}

type MockConfig struct {
	FacesPerImage int
}

type WorkerConfig struct {
	// Mode selects how jobs are dispatched: "exec" launches the worker binary
	// as a detached process, "inline" runs the job in a goroutine of the
	// server process.
	Mode string
	Bin  string
}

type AuthConfig struct {
	// APIKeyHash is the bcrypt hash of the API key clients must present.
	// Empty disables authentication.
	APIKeyHash     string
	RequestsPerMin int
}

var validProviders = map[string]bool{
	"insight": true,
	"mock":    true,
}

var validWorkerModes = map[string]bool{
	"exec":   true,
	"inline": true,
}

// Load reads configuration from environment variables and returns a validated
// Config. Returns an error with a descriptive message if any required value is
// missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("FACEINDEX_PORT", 8080),
			Env:  envString("FACEINDEX_ENV", "development"),
		},
		Redis: RedisConfig{
			URL:       os.Getenv("REDIS_URL"),
			StatusTTL: envDuration("JOB_STATUS_TTL", 0),
		},
		S3: S3Config{
			Endpoint:      os.Getenv("S3_ENDPOINT"),
			AccessKey:     os.Getenv("S3_ACCESS_KEY"),
			SecretKey:     os.Getenv("S3_SECRET_KEY"),
			Bucket:        os.Getenv("S3_BUCKET"),
			Region:        envString("S3_REGION", "ap-south-1"),
			UseSSL:        envBool("S3_USE_SSL", true),
			PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Search: SearchConfig{
			Hosts:    envList("ES_HOSTS"),
			Username: os.Getenv("ES_USERNAME"),
			Password: os.Getenv("ES_PASSWORD"),
			Timeout:  envDuration("ES_TIMEOUT", 30*time.Second),
		},
		Detect: DetectConfig{
			Provider:    envString("DETECT_PROVIDER", "insight"),
			Concurrency: envInt("DETECT_CONCURRENCY", 2),
			Insight: InsightConfig{
				BaseURL: envString("INSIGHT_BASE_URL", "http://localhost:18081"),
				Timeout: envDuration("INSIGHT_TIMEOUT", 120*time.Second),
			},
			Mock: MockConfig{
				FacesPerImage: envInt("MOCK_FACES_PER_IMAGE", 1),
			},
		},
		Worker: WorkerConfig{
			Mode: envString("WORKER_MODE", "exec"),
			Bin:  envString("WORKER_BIN", "faceindex-worker"),
		},
		Auth: AuthConfig{
			APIKeyHash:     os.Getenv("API_KEY_HASH"),
			RequestsPerMin: envInt("RATE_LIMIT_PER_MIN", 60),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.S3.Endpoint == "" {
		return fmt.Errorf("S3_ENDPOINT is required")
	}
	if c.S3.Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required")
	}

	if len(c.Search.Hosts) == 0 {
		return fmt.Errorf("ES_HOSTS is required")
	}
	for _, h := range c.Search.Hosts {
		if !strings.HasPrefix(h, "http://") && !strings.HasPrefix(h, "https://") {
			return fmt.Errorf("ES_HOSTS entries must start with http:// or https://, got %q", h)
		}
	}

	if !validProviders[c.Detect.Provider] {
		return fmt.Errorf("DETECT_PROVIDER must be one of insight, mock; got %q", c.Detect.Provider)
	}
	if c.Detect.Concurrency < 1 {
		return fmt.Errorf("DETECT_CONCURRENCY must be at least 1")
	}

	if !validWorkerModes[c.Worker.Mode] {
		return fmt.Errorf("WORKER_MODE must be one of exec, inline; got %q", c.Worker.Mode)
	}
	if c.Worker.Mode == "exec" && c.Worker.Bin == "" {
		return fmt.Errorf("WORKER_BIN is required when WORKER_MODE is exec")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
