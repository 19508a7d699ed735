package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lapdesk/lapdesk-backend/internal/config"
	"github.com/lapdesk/lapdesk-backend/internal/model"
	"github.com/lapdesk/lapdesk-backend/internal/repository"
	"github.com/lapdesk/lapdesk-backend/internal/timer"
)

// Common share errors.
var (
	ErrShareNotFound    = errors.New("shared result not found")
	ErrPasscodeRequired = errors.New("passcode required to delete this share")
)

const shareCacheTTL = 24 * time.Hour

// ShareService publishes finished exam results under opaque ids. Reads go
// through a Redis cache in front of PostgreSQL; published payloads are
// immutable.
type ShareService struct {
	repo *repository.ShareRepository
	auth *AuthService
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewShareService creates a new ShareService.
func NewShareService(repo *repository.ShareRepository, auth *AuthService, rdb *redis.Client, log zerolog.Logger) *ShareService {
	return &ShareService{
		repo: repo,
		auth: auth,
		rdb:  rdb,
		log:  log.With().Str("component", "share_service").Logger(),
	}
}

// Create publishes the session state as a shared result. Grading marks are
// stripped unless the owner opts in.
func (s *ShareService) Create(ctx context.Context, ownerID string, st timer.State, req model.CreateShareRequest) (*model.SharedResult, error) {
	title := req.Title
	if title == "" {
		title = st.Config.Name
	}

	result := &model.SharedResult{
		ID:             uuid.New(),
		Title:          title,
		TotalMinutes:   st.Config.TotalMinutes,
		Unlimited:      st.Config.Unlimited,
		IncludeGrading: req.IncludeGrading,
		Questions:      model.NewQuestionViews(st.Questions),
	}
	if !req.IncludeGrading {
		for i := range result.Questions {
			result.Questions[i].Correct = nil
		}
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}

	rec := &repository.ShareRecord{
		ID:      result.ID,
		OwnerID: ownerID,
		Payload: payload,
	}
	if req.Passcode != "" {
		hash, err := s.auth.HashPasscode(req.Passcode)
		if err != nil {
			return nil, err
		}
		rec.PasscodeHash = &hash
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	result.CreatedAt = rec.CreatedAt

	s.cachePayload(ctx, result.ID, payload)

	s.log.Info().Str("share_id", result.ID.String()).Str("owner_id", ownerID).Msg("Shared result published")
	return result, nil
}

// Get retrieves a shared result, preferring the Redis cache.
func (s *ShareService) Get(ctx context.Context, id uuid.UUID) (*model.SharedResult, error) {
	key := config.CacheKey.SharedResultKey(id.String())

	if raw, err := s.rdb.Get(ctx, key).Bytes(); err == nil {
		var result model.SharedResult
		if err := json.Unmarshal(raw, &result); err == nil {
			return &result, nil
		}
		// Corrupt cache entry, fall through to PostgreSQL.
		s.rdb.Del(ctx, key)
	}

	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrShareNotFound) {
			return nil, ErrShareNotFound
		}
		return nil, err
	}

	var result model.SharedResult
	if err := json.Unmarshal(rec.Payload, &result); err != nil {
		return nil, err
	}
	result.CreatedAt = rec.CreatedAt

	s.cachePayload(ctx, id, rec.Payload)
	return &result, nil
}

// Delete removes a shared result. The owner can always delete their own
// share; anyone else needs the passcode.
func (s *ShareService) Delete(ctx context.Context, id uuid.UUID, ownerID, passcode string) error {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrShareNotFound) {
			return ErrShareNotFound
		}
		return err
	}

	if rec.OwnerID != ownerID {
		if rec.PasscodeHash == nil {
			return ErrPasscodeRequired
		}
		if passcode == "" {
			return ErrPasscodeRequired
		}
		if err := s.auth.CheckPasscode(*rec.PasscodeHash, passcode); err != nil {
			return err
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrShareNotFound) {
			return ErrShareNotFound
		}
		return err
	}

	if err := s.rdb.Del(ctx, config.CacheKey.SharedResultKey(id.String())).Err(); err != nil {
		s.log.Warn().Err(err).Str("share_id", id.String()).Msg("Share cache invalidation failed")
	}

	s.log.Info().Str("share_id", id.String()).Msg("Shared result deleted")
	return nil
}

func (s *ShareService) cachePayload(ctx context.Context, id uuid.UUID, payload []byte) {
	if err := s.rdb.Set(ctx, config.CacheKey.SharedResultKey(id.String()), payload, shareCacheTTL).Err(); err != nil {
		s.log.Warn().Err(err).Str("share_id", id.String()).Msg("Share cache write failed")
	}
}
