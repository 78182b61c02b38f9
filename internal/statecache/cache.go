// Package statecache mirrors the daemon's runtime state into Redis for
// sibling automation agents and caches solar sync results across restarts.
package statecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ksaarinen/duskd/internal/engine"
	"github.com/ksaarinen/duskd/internal/geo"
	"github.com/ksaarinen/duskd/internal/solar"
	"github.com/ksaarinen/duskd/pkg/config"
	"github.com/ksaarinen/duskd/pkg/redis"
)

const writeTimeout = 5 * time.Second

// SolarRecord is the cached result of a successful solar sync
type SolarRecord struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Sunrise   string    `json:"sunrise"`
	Sunset    string    `json:"sunset"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Cache writes state snapshots and solar records to Redis. Snapshot writes
// are funneled through a single worker so they never block the control loop
// and never land out of order.
type Cache struct {
	redis  redis.Client
	prefix string
	logger *slog.Logger

	snaps chan engine.Snapshot
	stop  chan struct{}
}

// New creates a cache under the given key prefix
func New(redisClient redis.Client, prefix string, logger *slog.Logger) *Cache {
	return &Cache{
		redis:  redisClient,
		prefix: prefix,
		logger: logger,
		snaps:  make(chan engine.Snapshot, 16),
		stop:   make(chan struct{}),
	}
}

// Start launches the snapshot write worker
func (c *Cache) Start() {
	go c.worker()
}

// Stop terminates the write worker
func (c *Cache) Stop() {
	close(c.stop)
}

// Enqueue schedules a snapshot for mirroring. Safe to call from the control
// loop; when the queue is full the oldest pending snapshot is dropped.
func (c *Cache) Enqueue(snap engine.Snapshot) {
	for {
		select {
		case c.snaps <- snap:
			return
		default:
		}
		select {
		case <-c.snaps:
		default:
		}
	}
}

func (c *Cache) worker() {
	for {
		select {
		case snap := <-c.snaps:
			if err := c.writeSnapshot(snap); err != nil {
				c.logger.Warn("Failed to mirror state to Redis", "error", err)
			}
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) writeSnapshot(snap engine.Snapshot) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	key := redis.StateKey(c.prefix)
	fields := map[string]string{
		"enabled":               strconv.FormatBool(snap.Enabled),
		"blocked":               strconv.FormatBool(snap.Blocked),
		"preview_mode":          strconv.FormatBool(snap.PreviewMode),
		"cycle_preview_running": strconv.FormatBool(snap.CyclePreviewRunning),
		"temperature":           strconv.Itoa(int(snap.Temperature)),
		"preview_temperature":   strconv.Itoa(int(snap.PreviewTemperature)),
		"cycle_state":           string(snap.CycleState),
		"status_text":           snap.StatusText,
		"time":                  snap.Time.Format(time.RFC3339),
		"updated_at":            time.Now().UTC().Format(time.RFC3339Nano),
	}

	for field, value := range fields {
		if err := c.redis.HSet(ctx, key, field, value); err != nil {
			return err
		}
	}
	return nil
}

// CacheSolar stores a committed solar sync result with the given TTL so a
// restart inside the sync interval reuses it instead of refetching.
// Runs off the caller's goroutine; invoked from the engine's sync observer.
func (c *Cache) CacheSolar(loc geo.Location, times solar.Times, ttl time.Duration) {
	record := SolarRecord{
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Sunrise:   times.Sunrise.Format("15:04"),
		Sunset:    times.Sunset.Format("15:04"),
		FetchedAt: time.Now().UTC(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		payload, err := json.Marshal(record)
		if err != nil {
			c.logger.Error("Failed to marshal solar record", "error", err)
			return
		}
		if err := c.redis.Set(ctx, redis.SolarCacheKey(c.prefix), payload, ttl); err != nil {
			c.logger.Warn("Failed to cache solar record", "error", err)
			return
		}
		c.logger.Debug("Cached solar record", "sunrise", record.Sunrise, "sunset", record.Sunset)
	}()
}

// LoadSolar reads the cached solar record, if any
func (c *Cache) LoadSolar(ctx context.Context) (*SolarRecord, error) {
	value, err := c.redis.Get(ctx, redis.SolarCacheKey(c.prefix))
	if errors.Is(err, redis.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var record SolarRecord
	if err := json.Unmarshal([]byte(value), &record); err != nil {
		return nil, fmt.Errorf("failed to parse cached solar record: %w", err)
	}
	return &record, nil
}

// SeedSolar applies a cached solar record to the settings store before the
// engine starts, so the first curve evaluations already use synced times
func (c *Cache) SeedSolar(ctx context.Context, store *config.Store) {
	record, err := c.LoadSolar(ctx)
	if err != nil {
		c.logger.Warn("Failed to load cached solar record", "error", err)
		return
	}
	if record == nil {
		return
	}

	if err := store.SetSolarTimes(record.Sunrise, record.Sunset); err != nil {
		c.logger.Warn("Failed to seed solar times", "error", err)
		return
	}
	c.logger.Info("Seeded solar times from cache",
		"sunrise", record.Sunrise,
		"sunset", record.Sunset,
		"fetched_at", record.FetchedAt)
}
