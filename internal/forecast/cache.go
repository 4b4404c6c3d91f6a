package forecast

import (
	"database/sql"
	"log/slog"
	"sync"
	"time"
)

// MemoryCache is a TTL-based in-memory sample cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[Key]memoryEntry
}

type memoryEntry struct {
	sample    Sample
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[Key]memoryEntry)}
}

func (c *MemoryCache) Get(key Key) (Sample, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return Sample{}, false
	}
	return entry.sample, true
}

func (c *MemoryCache) Put(key Key, s Sample, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry{
		sample:    s,
		expiresAt: time.Now().Add(ttl),
	}
}

// SQLCache persists samples in sqlite so forecasts survive restarts
// and settlement lookups stay reproducible across runs.
type SQLCache struct {
	db *sql.DB
}

func NewSQLCache(db *sql.DB) *SQLCache {
	return &SQLCache{db: db}
}

func (c *SQLCache) Get(key Key) (Sample, bool) {
	row := c.db.QueryRow(`
		SELECT source, value, precip, unit, fetched_at
		FROM forecast_cache
		WHERE provider = ? AND lat = ? AND lon = ? AND date = ? AND expires_at > ?`,
		key.Provider, key.Lat, key.Lon, key.Date, time.Now().Unix())

	var s Sample
	var unit string
	var fetchedAt int64
	if err := row.Scan(&s.Source, &s.Value, &s.Precip, &unit, &fetchedAt); err != nil {
		if err != sql.ErrNoRows {
			slog.Warn("forecast cache read failed", "provider", key.Provider, "error", err)
		}
		return Sample{}, false
	}
	s.Unit = sampleUnit(unit)
	s.FetchedAt = time.Unix(fetchedAt, 0)
	return s, true
}

func (c *SQLCache) Put(key Key, s Sample, ttl time.Duration) {
	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO forecast_cache
			(provider, lat, lon, date, source, value, precip, unit, fetched_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key.Provider, key.Lat, key.Lon, key.Date,
		s.Source, s.Value, s.Precip, string(s.Unit),
		s.FetchedAt.Unix(), time.Now().Add(ttl).Unix())
	if err != nil {
		slog.Warn("forecast cache write failed", "provider", key.Provider, "error", err)
	}
}

// Prune deletes expired entries. Called opportunistically by the
// scheduler; failure is harmless.
func (c *SQLCache) Prune() {
	if _, err := c.db.Exec(`DELETE FROM forecast_cache WHERE expires_at <= ?`, time.Now().Unix()); err != nil {
		slog.Warn("forecast cache prune failed", "error", err)
	}
}
