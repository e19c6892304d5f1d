package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"ph-monitor/internal/models"
)

const defaultReportTTL = 24 * time.Hour

// Config configures the Redis report cache.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
	TTL      time.Duration // lifetime of the latest-report key
}

// ReportCache keeps the latest report of every source in Redis and
// announces each new one on a PubSub channel.
type ReportCache struct {
	client *goredis.Client
	ttl    time.Duration
}

// New connects to Redis and pings the server.
func New(cfg Config) (*ReportCache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultReportTTL
	}

	slog.Info("connected to Redis", "component", "cache", "addr", cfg.Addr)
	return &ReportCache{client: client, ttl: ttl}, nil
}

// Client returns the underlying Redis client for health checks.
func (c *ReportCache) Client() *goredis.Client { return c.client }

func (c *ReportCache) Name() string { return "redis" }

// Deliver stores the report under ph:report:{source} and publishes it on pub:ph:{source}
func (c *ReportCache) Deliver(ctx context.Context, report models.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, ReportKey(report.Source), data, c.ttl)
	pipe.Publish(ctx, ReportChannel(report.Source), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write report to Redis: %w", err)
	}
	return nil
}

func (c *ReportCache) Close() error {
	return c.client.Close()
}

func ReportKey(source string) string {
	return "ph:report:" + source
}

func ReportChannel(source string) string {
	return "pub:ph:" + source
}
