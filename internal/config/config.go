// Package config defines the functional-options configuration surface of
// the apiserver and worker processes, grounded on the teacher's
// config.GofireConfig/ContainerOption pattern.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the fully resolved configuration for either long-lived process.
// Only Instance is required; everything else carries the defaults spec §7
// enumerates.
type Config struct {
	Instance string

	ServerPort      int
	ServerAPIPrefix string

	Store StoreConfig
	Queue QueueConfig

	RabbitMQ RabbitMQConfig

	JobMaxRetryAttempts int
	JobRetryDelayMs     int
	JobTimeoutMs        int

	WorkerConcurrency int
	LimiterMax        int
	LimiterWindowMs   int

	LogLevel    string
	LogFilePath string
}

// StoreConfig is the durable store connection (spec §7 "store connection").
type StoreConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string

	PoolMax     int
	PoolMin     int
	PoolAcquire int
	PoolIdle    int
}

func (s StoreConfig) ConnString() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		s.Host, s.Port, s.Name, s.User, s.Password)
}

// QueueConfig is the Ready Queue's backing Redis connection (spec §7
// "queue connection").
type QueueConfig struct {
	Host                 string
	Port                 int
	Password             string
	MaxRetriesPerRequest int
}

func (q QueueConfig) Addr() string {
	return fmt.Sprintf("%s:%d", q.Host, q.Port)
}

// RabbitMQConfig is the Notifier's transport, adapted from the teacher's
// RabbitMQConfig.
type RabbitMQConfig struct {
	URL      string
	Exchange string
}

const (
	DefaultServerPort      = 8080
	DefaultServerAPIPrefix = "/api/v1"

	DefaultJobMaxRetryAttempts = 3
	DefaultJobRetryDelayMs     = 5000
	DefaultJobTimeoutMs        = 300_000

	DefaultWorkerConcurrency = 5
	DefaultLimiterMax        = 100
	DefaultLimiterWindowMs   = 60_000

	DefaultLogLevel = "info"
)

// Option configures Config creation, following the teacher's
// ContainerOption functional-options pattern.
type Option func(*Config) error

// New builds a Config with spec §7's defaults applied, then runs opts in
// order. Only Instance is required.
func New(instance string, opts ...Option) (*Config, error) {
	if instance == "" {
		return nil, errors.New("instance name is required")
	}

	cfg := &Config{
		Instance: instance,

		ServerPort:      DefaultServerPort,
		ServerAPIPrefix: DefaultServerAPIPrefix,

		JobMaxRetryAttempts: DefaultJobMaxRetryAttempts,
		JobRetryDelayMs:     DefaultJobRetryDelayMs,
		JobTimeoutMs:        DefaultJobTimeoutMs,

		WorkerConcurrency: DefaultWorkerConcurrency,
		LimiterMax:        DefaultLimiterMax,
		LimiterWindowMs:   DefaultLimiterWindowMs,

		LogLevel: DefaultLogLevel,
	}

	var verrs []error
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			verrs = append(verrs, err)
		}
	}
	if len(verrs) > 0 {
		return nil, errors.Join(verrs...)
	}
	return cfg, nil
}

func WithServer(port int, apiPrefix string) Option {
	return func(c *Config) error {
		if port <= 0 {
			return errors.New("server port must be positive")
		}
		c.ServerPort = port
		if apiPrefix != "" {
			c.ServerAPIPrefix = apiPrefix
		}
		return nil
	}
}

func WithStore(store StoreConfig) Option {
	return func(c *Config) error {
		if store.Host == "" || store.Name == "" {
			return errors.New("store config: host and name are required")
		}
		c.Store = store
		return nil
	}
}

func WithQueue(queue QueueConfig) Option {
	return func(c *Config) error {
		if queue.Host == "" {
			return errors.New("queue config: host is required")
		}
		c.Queue = queue
		return nil
	}
}

func WithRabbitMQ(rmq RabbitMQConfig) Option {
	return func(c *Config) error {
		if rmq.URL == "" {
			return errors.New("rabbitmq config: url is required")
		}
		c.RabbitMQ = rmq
		return nil
	}
}

func WithJobDefaults(maxRetryAttempts, retryDelayMs, timeoutMs int) Option {
	return func(c *Config) error {
		if maxRetryAttempts < 0 || retryDelayMs < 0 || timeoutMs < 0 {
			return errors.New("job defaults must be non-negative")
		}
		c.JobMaxRetryAttempts = maxRetryAttempts
		c.JobRetryDelayMs = retryDelayMs
		c.JobTimeoutMs = timeoutMs
		return nil
	}
}

func WithWorkerConcurrency(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return errors.New("worker concurrency must be positive")
		}
		c.WorkerConcurrency = n
		return nil
	}
}

func WithLimiter(max, windowMs int) Option {
	return func(c *Config) error {
		if max < 1 || windowMs < 1 {
			return errors.New("limiter max and window_ms must be positive")
		}
		c.LimiterMax = max
		c.LimiterWindowMs = windowMs
		return nil
	}
}

func WithLogging(level, filePath string) Option {
	return func(c *Config) error {
		if level != "" {
			c.LogLevel = level
		}
		c.LogFilePath = filePath
		return nil
	}
}

// FromEnv loads a .env file if present (ignored if missing), then builds a
// Config from environment variables, falling back to spec §7's defaults.
// Grounded on the tell example's getenv/mustGetenv Load().
func FromEnv(instance string) (*Config, error) {
	_ = godotenv.Load()

	return New(instance,
		WithServer(getenvInt("SERVER_PORT", DefaultServerPort), getenv("SERVER_API_PREFIX", DefaultServerAPIPrefix)),
		WithStore(StoreConfig{
			Host:        getenv("STORE_HOST", "localhost"),
			Port:        getenvInt("STORE_PORT", 5432),
			Name:        getenv("STORE_NAME", "jobcore"),
			User:        getenv("STORE_USER", "postgres"),
			Password:    os.Getenv("STORE_PASSWORD"),
			PoolMax:     getenvInt("STORE_POOL_MAX", 10),
			PoolMin:     getenvInt("STORE_POOL_MIN", 1),
			PoolAcquire: getenvInt("STORE_POOL_ACQUIRE_MS", 30_000),
			PoolIdle:    getenvInt("STORE_POOL_IDLE_MS", 10_000),
		}),
		WithQueue(QueueConfig{
			Host:                 getenv("QUEUE_HOST", "localhost"),
			Port:                 getenvInt("QUEUE_PORT", 6379),
			Password:             os.Getenv("QUEUE_PASSWORD"),
			MaxRetriesPerRequest: getenvInt("QUEUE_MAX_RETRIES_PER_REQUEST", 3),
		}),
		maybeWithRabbitMQ(),
		WithJobDefaults(
			getenvInt("JOB_MAX_RETRY_ATTEMPTS", DefaultJobMaxRetryAttempts),
			getenvInt("JOB_RETRY_DELAY_MS", DefaultJobRetryDelayMs),
			getenvInt("JOB_TIMEOUT_MS", DefaultJobTimeoutMs),
		),
		WithWorkerConcurrency(getenvInt("WORKER_CONCURRENCY", DefaultWorkerConcurrency)),
		WithLimiter(getenvInt("LIMITER_MAX", DefaultLimiterMax), getenvInt("LIMITER_WINDOW_MS", DefaultLimiterWindowMs)),
		WithLogging(getenv("LOG_LEVEL", DefaultLogLevel), os.Getenv("LOG_FILE_PATH")),
	)
}

// maybeWithRabbitMQ only applies WithRabbitMQ when RABBITMQ_URL is set, so
// an unconfigured notifier transport falls back to the in-memory one instead
// of failing Config construction.
func maybeWithRabbitMQ() Option {
	url := os.Getenv("RABBITMQ_URL")
	if url == "" {
		return func(*Config) error { return nil }
	}
	return WithRabbitMQ(RabbitMQConfig{URL: url, Exchange: getenv("RABBITMQ_EXCHANGE", "jobcore.events")})
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
