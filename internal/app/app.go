// Package app wires configuration into the repositories and services shared
// by the server, worker and tracking binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/engagement-agent/internal/config"
	"github.com/ignite/engagement-agent/internal/content"
	"github.com/ignite/engagement-agent/internal/dispatch"
	"github.com/ignite/engagement-agent/internal/domain"
	"github.com/ignite/engagement-agent/internal/pkg/distlock"
	"github.com/ignite/engagement-agent/internal/pkg/logger"
	"github.com/ignite/engagement-agent/internal/repository/postgres"
	"github.com/ignite/engagement-agent/internal/segmentation"
	"github.com/ignite/engagement-agent/internal/service/analytics"
	"github.com/ignite/engagement-agent/internal/service/engagement"
	"github.com/ignite/engagement-agent/internal/service/user"
	"github.com/ignite/engagement-agent/internal/service/utility"
	"github.com/ignite/engagement-agent/internal/storage"
	"github.com/ignite/engagement-agent/internal/tracking"
)

// App holds every long-lived dependency. Redis, Queue and Storage are nil
// when not configured.
type App struct {
	Config *config.Config
	DB     *sql.DB
	Redis  *redis.Client

	Users    *postgres.UserRepo
	Messages *postgres.MessageRepo
	Queue    *dispatch.Queue
	Storage  *storage.Storage

	Engine      *engagement.Engine
	Cycle       *engagement.Cycle
	Activity    *engagement.ActivityService
	UserService *user.Service
	Utility     *utility.Service
	Sender      *utility.Sender
	Analytics   *analytics.Service
	Tracker     *analytics.Tracker
}

// OpenDB connects to Postgres and applies the pool settings.
func OpenDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database url is required")
	}
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime())

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// OpenRedis connects to Redis. It returns nil, nil when no URL is set.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// Profile builds a segmentation profile from its config section.
func Profile(name string, p config.ProfileConfig) (segmentation.Profile, error) {
	profile, err := segmentation.NewProfile(name, p.Unit, p.DormantThreshold, p.SecondaryThreshold, p.Rule)
	if err != nil || len(p.Tones) == 0 {
		return profile, err
	}
	return profile.WithTones(p.Tones)
}

// New connects to every configured backend and builds the services.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	db, err := OpenDB(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	rdb, err := OpenRedis(ctx, cfg.Redis)
	if err != nil {
		db.Close()
		return nil, err
	}

	a, err := Build(ctx, cfg, db, rdb)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Build wires the services on top of already open connections. rdb may be
// nil.
func Build(ctx context.Context, cfg *config.Config, db *sql.DB, rdb *redis.Client) (*App, error) {
	a := &App{
		Config:   cfg,
		DB:       db,
		Redis:    rdb,
		Users:    postgres.NewUserRepo(db),
		Messages: postgres.NewMessageRepo(db),
	}

	engProfile, err := Profile("engagement", cfg.Segmentation.Engagement)
	if err != nil {
		return a, err
	}
	lifeProfile, err := Profile("utility", cfg.Segmentation.Utility)
	if err != nil {
		return a, err
	}
	seg := segmentation.New(engProfile)

	tpl := content.NewEngine()
	catalog, err := content.NewCatalog(tpl, nil)
	if err != nil {
		return a, fmt.Errorf("message catalog: %w", err)
	}
	reminders, err := content.NewReminderCatalog(tpl)
	if err != nil {
		return a, fmt.Errorf("reminder catalog: %w", err)
	}
	broadcasts, err := content.NewBroadcastCatalog(tpl)
	if err != nil {
		return a, fmt.Errorf("broadcast catalog: %w", err)
	}

	var dispatcher tracking.Dispatcher
	if rdb != nil {
		a.Queue = dispatch.NewQueue(rdb, cfg.Redis.DispatchKey)
		dispatcher = a.Queue
		if cfg.Tracking.BaseURL != "" && cfg.Tracking.Secret != "" {
			links := tracking.NewLinks(cfg.Tracking.BaseURL, tracking.NewSigner(cfg.Tracking.Secret))
			dispatcher = tracking.NewAnnotatingDispatcher(a.Queue, links)
		}
	} else {
		logger.Warn("redis not configured, payloads are logged but not queued")
	}

	a.Engine = engagement.NewEngine(engagement.Config{
		InactivityThreshold: cfg.Engagement.InactivityThreshold(),
		FrequencyWindow:     cfg.Engagement.FrequencyWindow(),
	}, seg, a.Messages, nil)
	a.Cycle = engagement.NewCycle(a.Engine, a.Users, a.Messages, catalog, dispatcher)
	a.Activity = engagement.NewActivityService(a.Engine, a.Users, a.Messages, catalog)
	a.UserService = user.NewService(a.Users, a.Messages, seg, nil).
		WithLifecycleSegmenter(segmentation.New(lifeProfile))

	a.Utility = utility.NewService(reminders, broadcasts, nil)
	a.Sender = utility.NewSender(a.Utility, a.Users, a.Messages, dispatcher)

	a.Analytics = analytics.NewService(a.Messages, analytics.Feedback{
		Primary:   domain.CategoryFlirty,
		Baseline:  domain.CategoryUtility,
		Tolerance: cfg.Analytics.Tolerance,
	}, nil)
	a.Tracker = analytics.NewTracker(a.Messages, nil)

	if cfg.Analytics.Archive {
		store, err := storage.New(ctx, cfg.Storage)
		if err != nil {
			return a, fmt.Errorf("report storage: %w", err)
		}
		a.Storage = store
		a.Analytics.WithArchiver(store)
	}
	return a, nil
}

// CycleLock returns a new lock guarding the engagement cycle. The cycle
// worker and manual runs through the API share its key.
func (a *App) CycleLock() distlock.Lock {
	return distlock.New(a.Redis, a.DB, a.Config.Worker.LockKey, a.Config.Worker.LockTTL())
}

// Close releases the connections.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
