// Package app is the construction root: it wires store, queue, lock
// manager, notifier, planner, and executor registry into a single Container,
// grounded on the teacher's app.Container/NewContainer.
package app

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	_ "github.com/lib/pq"

	"github.com/RezaEskandarii/jobcore/adapters/custom"
	"github.com/RezaEskandarii/jobcore/adapters/email"
	"github.com/RezaEskandarii/jobcore/adapters/httpexec"
	"github.com/RezaEskandarii/jobcore/adapters/script"
	"github.com/RezaEskandarii/jobcore/adapters/webhook"
	"github.com/RezaEskandarii/jobcore/executor"
	"github.com/RezaEskandarii/jobcore/internal/calendar"
	"github.com/RezaEskandarii/jobcore/internal/clock"
	"github.com/RezaEskandarii/jobcore/internal/config"
	"github.com/RezaEskandarii/jobcore/internal/lock"
	"github.com/RezaEskandarii/jobcore/internal/model"
	"github.com/RezaEskandarii/jobcore/internal/notifier"
	"github.com/RezaEskandarii/jobcore/internal/planner"
	"github.com/RezaEskandarii/jobcore/internal/queue"
	"github.com/RezaEskandarii/jobcore/internal/store"
	"github.com/RezaEskandarii/jobcore/internal/store/postgres"
)

// defaultStallTimeout is how long a popped-but-unacked envelope may stay in
// the processing set before the queue re-surfaces it for redelivery.
const defaultStallTimeout = 5 * time.Minute

// Container holds every wired dependency, the single source of truth for
// construction. It is built once per process.
type Container struct {
	Config *config.Config
	Log    zerolog.Logger

	DB    *sql.DB
	Redis *redis.Client

	Store     store.Store
	Queue     queue.ReadyQueue
	Lock      lock.DistributedLockManager
	Notifier  notifier.Notifier
	Executors executor.Registry

	Planner *planner.Planner
}

// New wires a Container from cfg. Pass opts to inject fakes for testing
// (WithDB, WithRedis), mirroring the teacher's WithDB/WithRedis container
// options.
func New(cfg *config.Config, opts ...ContainerOption) (*Container, error) {
	built := &containerOptions{}
	for _, o := range opts {
		o(built)
	}

	log := newLogger(cfg.LogLevel, cfg.LogFilePath).With().Str("instance", cfg.Instance).Logger()

	db := built.db
	if db == nil {
		var err error
		db, err = sql.Open("postgres", cfg.Store.ConnString())
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
	}

	redisClient := built.redis
	if redisClient == nil {
		redisClient = redis.NewClient(&redis.Options{
			Addr:       cfg.Queue.Addr(),
			Password:   cfg.Queue.Password,
			MaxRetries: cfg.Queue.MaxRetriesPerRequest,
		})
	}

	st := postgres.New(db)
	q := queue.NewRedisQueue(redisClient, "jobcore", defaultStallTimeout)
	lockMgr := lock.NewPostgresLockManager(db)

	var notif notifier.Notifier
	if cfg.RabbitMQ.URL != "" {
		rmq, err := notifier.NewRabbitMQNotifier(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, log)
		if err != nil {
			return nil, fmt.Errorf("init rabbitmq notifier: %w", err)
		}
		notif = rmq
	} else {
		notif = notifier.NewMemory()
	}

	registry := defaultExecutorRegistry()

	cal := calendar.New()
	pl := planner.New(st, q, cal, clock.Real(), log)

	return &Container{
		Config:    cfg,
		Log:       log,
		DB:        db,
		Redis:     redisClient,
		Store:     st,
		Queue:     q,
		Lock:      lockMgr,
		Notifier:  notif,
		Executors: registry,
		Planner:   pl,
	}, nil
}

func defaultExecutorRegistry() executor.Registry {
	return executor.Registry{
		string(model.JobTypeHTTP):    httpexec.New(),
		string(model.JobTypeWebhook): webhook.New(),
		string(model.JobTypeScript):  script.New(),
		string(model.JobTypeEmail):   email.New("", nil, ""),
		string(model.JobTypeCustom):  custom.New(),
	}
}

// Close releases the Container's owned connections.
func (c *Container) Close() error {
	if closer, ok := c.Notifier.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
