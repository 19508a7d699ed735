package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lapdesk/lapdesk-backend/internal/config"
)

// ErrSnapshotNotFound is returned when neither Redis nor PostgreSQL holds a
// snapshot for the owner.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotRepository stores serialized session snapshots. Redis is the hot
// store the tick loop writes to; PostgreSQL is the durable copy maintained
// by the snapshot worker.
type SnapshotRepository struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
	ttl  time.Duration
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(pool *pgxpool.Pool, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "snapshot_repository").Logger(),
		ttl:  ttl,
	}
}

// SaveHot writes the snapshot to Redis with the configured TTL. Durable
// persistence goes through the worker queue, not this call.
func (r *SnapshotRepository) SaveHot(ctx context.Context, ownerID string, raw []byte) error {
	return r.rdb.Set(ctx, config.CacheKey.SessionSnapshotKey(ownerID), raw, r.ttl).Err()
}

// Load retrieves the owner's snapshot, preferring Redis. On a Redis miss it
// falls back to PostgreSQL and re-warms the hot key.
func (r *SnapshotRepository) Load(ctx context.Context, ownerID string) ([]byte, error) {
	key := config.CacheKey.SessionSnapshotKey(ownerID)

	raw, err := r.rdb.Get(ctx, key).Bytes()
	if err == nil {
		return raw, nil
	}
	if !errors.Is(err, redis.Nil) {
		r.log.Warn().Err(err).Str("owner_id", ownerID).Msg("Redis read failed, falling back to PostgreSQL")
	}

	raw, err = r.loadDurable(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	// Self-heal the hot copy so the next resume is a cache hit.
	if err := r.rdb.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		r.log.Warn().Err(err).Str("owner_id", ownerID).Msg("Failed to re-warm snapshot cache")
	}

	return raw, nil
}

// ClearHot removes the Redis copy. The durable copy is removed by the worker
// via a queued tombstone.
func (r *SnapshotRepository) ClearHot(ctx context.Context, ownerID string) error {
	return r.rdb.Del(ctx, config.CacheKey.SessionSnapshotKey(ownerID)).Err()
}

// UpsertDurable writes the snapshot to PostgreSQL. Called by the snapshot
// worker, never by the request path.
func (r *SnapshotRepository) UpsertDurable(ctx context.Context, ownerID string, raw []byte, savedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO session_snapshots (owner_id, payload, saved_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (owner_id) DO UPDATE
		 SET payload = EXCLUDED.payload, saved_at = EXCLUDED.saved_at, updated_at = NOW()`,
		ownerID, raw, savedAt,
	)
	return err
}

// DeleteDurable removes the PostgreSQL copy. Called by the snapshot worker
// when it consumes a tombstone.
func (r *SnapshotRepository) DeleteDurable(ctx context.Context, ownerID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM session_snapshots WHERE owner_id = $1`, ownerID)
	return err
}

func (r *SnapshotRepository) loadDurable(ctx context.Context, ownerID string) ([]byte, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT payload FROM session_snapshots WHERE owner_id = $1`, ownerID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}
