package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrShareNotFound is returned when no shared result exists for an id.
var ErrShareNotFound = errors.New("shared result not found")

// ShareRecord is the stored form of a published result. Payload holds the
// rendered model.SharedResult JSON; the passcode is stored as a bcrypt hash.
type ShareRecord struct {
	ID           uuid.UUID
	OwnerID      string
	PasscodeHash *string
	Payload      []byte
	CreatedAt    time.Time
}

// ShareRepository handles shared result data access.
type ShareRepository struct {
	pool *pgxpool.Pool
}

// NewShareRepository creates a new ShareRepository.
func NewShareRepository(pool *pgxpool.Pool) *ShareRepository {
	return &ShareRepository{pool: pool}
}

// Create inserts a new shared result.
func (r *ShareRepository) Create(ctx context.Context, rec *ShareRecord) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO shared_results (id, owner_id, passcode_hash, payload)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		rec.ID, rec.OwnerID, rec.PasscodeHash, rec.Payload,
	).Scan(&rec.CreatedAt)
}

// GetByID retrieves a shared result by its id.
func (r *ShareRepository) GetByID(ctx context.Context, id uuid.UUID) (*ShareRecord, error) {
	rec := &ShareRecord{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, owner_id, passcode_hash, payload, created_at
		 FROM shared_results
		 WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.OwnerID, &rec.PasscodeHash, &rec.Payload, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrShareNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes a shared result. Returns ErrShareNotFound when nothing
// was deleted.
func (r *ShareRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM shared_results WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrShareNotFound
	}
	return nil
}
