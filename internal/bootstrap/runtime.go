// Package bootstrap opens the long-lived resources shared by the cmd binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"snapgram/internal/cache"
	"snapgram/internal/config"
	"snapgram/internal/database"
	"snapgram/internal/events"
	"snapgram/internal/media"
	"snapgram/internal/middleware"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SkipSchema opens the database without applying migrations.
	SkipSchema bool
}

// Runtime is everything the HTTP server needs beyond its configuration.
// Redis is nil when it could not be reached.
type Runtime struct {
	DB      *gorm.DB
	Redis   *redis.Client
	Storage media.Storage
	Events  events.Publisher
}

// InitRuntime connects to the database and Redis, then opens media storage
// and the event publisher selected by cfg.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: !opts.SkipSchema})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Redis is optional: the cache and rate limits degrade without it.
	rdb, err := cache.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		middleware.Logger.Warn("redis unavailable, continuing without it", slog.String("error", err.Error()))
		rdb = nil
	}

	rt := &Runtime{DB: db, Redis: rdb}

	if rt.Storage, err = openStorage(ctx, cfg); err != nil {
		rt.Close()
		return nil, fmt.Errorf("media storage: %w", err)
	}
	if rt.Events, err = openPublisher(cfg, rdb); err != nil {
		rt.Close()
		return nil, fmt.Errorf("event publisher: %w", err)
	}

	return rt, nil
}

func openStorage(ctx context.Context, cfg *config.Config) (media.Storage, error) {
	switch cfg.MediaStorage {
	case "s3":
		s3, err := media.NewS3Storage(media.S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
			Bucket:    cfg.S3Bucket,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			return nil, err
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s3, nil
	default:
		return media.NewLocalStorage(cfg.UploadDir, cfg.PublicBaseURL)
	}
}

func openPublisher(cfg *config.Config, rdb *redis.Client) (events.Publisher, error) {
	switch cfg.EventsBackend {
	case "redis":
		if rdb == nil {
			return nil, errors.New("EVENTS_BACKEND is redis but redis is unavailable")
		}
		return events.NewRedisPublisher(rdb), nil
	case "kafka":
		return events.NewKafkaPublisher(cfg.KafkaBrokerList(), cfg.KafkaTopic), nil
	default:
		return events.Noop{}, nil
	}
}

// Close releases whatever InitRuntime opened. The server's own Shutdown
// covers the same resources once it owns them.
func (rt *Runtime) Close() {
	if rt.Events != nil {
		_ = rt.Events.Close()
	}
	if rt.Redis != nil {
		_ = rt.Redis.Close()
	}
	if sqlDB, err := rt.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
