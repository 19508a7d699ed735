package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lapdesk/lapdesk-backend/internal/config"
	"github.com/lapdesk/lapdesk-backend/internal/model"
	"github.com/lapdesk/lapdesk-backend/internal/repository"
	"github.com/lapdesk/lapdesk-backend/internal/timer"
)

// Common session errors.
var (
	ErrNoActiveSession = errors.New("no active session for owner")
	ErrNoSnapshot      = errors.New("no saved session for owner")
)

// sessionEntry pairs a live session with its persistence bookkeeping.
type sessionEntry struct {
	session  *timer.Session
	dirty    bool
	lastSave time.Time
}

// ownerEvent carries a core event out of the clock callback. The callback
// fires while the session lock is held, so handling is deferred to the
// event loop.
type ownerEvent struct {
	ownerID string
	event   timer.Event
}

// SessionService owns all live exam sessions, keyed by owner id. A single
// tick loop advances every session with measured wall-clock deltas and
// debounce-saves snapshots to Redis plus the durable queue.
type SessionService struct {
	mu      sync.Mutex
	entries map[string]*sessionEntry

	snapRepo *repository.SnapshotRepository
	rdb      *redis.Client
	cfg      *config.Config
	log      zerolog.Logger

	events chan ownerEvent
}

// NewSessionService creates a new SessionService. Call Run in a goroutine
// to start the tick loop.
func NewSessionService(snapRepo *repository.SnapshotRepository, rdb *redis.Client, cfg *config.Config, log zerolog.Logger) *SessionService {
	return &SessionService{
		entries:  make(map[string]*sessionEntry),
		snapRepo: snapRepo,
		rdb:      rdb,
		cfg:      cfg,
		log:      log.With().Str("component", "session_service").Logger(),
		events:   make(chan ownerEvent, 64),
	}
}

// ─── Tick Loop ──────────────────────────────────────────────────────

// Run drives every live session forward until ctx is cancelled. Deltas are
// measured, not assumed, so a stalled scheduler never loses exam time.
func (s *SessionService) Run(ctx context.Context) {
	s.log.Info().
		Dur("tick_interval", s.cfg.TickInterval).
		Dur("save_interval", s.cfg.SaveInterval).
		Msg("Tick loop started")

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Tick loop stopping, flushing snapshots")
			s.flushAll(context.Background())
			return

		case ev := <-s.events:
			s.handleEvent(ctx, ev)

		case now := <-ticker.C:
			delta := now.Sub(last)
			last = now
			s.tick(ctx, delta, now)
		}
	}
}

func (s *SessionService) tick(ctx context.Context, delta time.Duration, now time.Time) {
	type pending struct {
		ownerID string
		entry   *sessionEntry
	}

	s.mu.Lock()
	advancing := make([]pending, 0, len(s.entries))
	saving := make([]pending, 0)
	for ownerID, e := range s.entries {
		advancing = append(advancing, pending{ownerID, e})
		if e.dirty && now.Sub(e.lastSave) >= s.cfg.SaveInterval {
			e.dirty = false
			e.lastSave = now
			saving = append(saving, pending{ownerID, e})
		}
	}
	s.mu.Unlock()

	for _, p := range advancing {
		p.entry.session.Advance(delta)
		st := p.entry.session.State()
		if st.Phase == timer.PhaseActive && !st.Paused {
			s.markDirty(p.ownerID)
		}
	}

	for _, p := range saving {
		s.saveSnapshot(ctx, p.ownerID, p.entry.session)
	}
}

// handleEvent runs outside the session lock. Time-up is published so every
// WebSocket subscriber for the owner sees it, then persisted immediately.
func (s *SessionService) handleEvent(ctx context.Context, ev ownerEvent) {
	if ev.event != timer.EventTimeUp {
		return
	}

	sess, ok := s.lookup(ev.ownerID)
	if !ok {
		return
	}

	s.log.Info().Str("owner_id", ev.ownerID).Msg("Time budget exhausted")

	payload, err := json.Marshal(map[string]string{"event": string(timer.EventTimeUp)})
	if err == nil {
		if err := s.rdb.Publish(ctx, config.CacheKey.SessionEventChannel(ev.ownerID), payload).Err(); err != nil {
			s.log.Warn().Err(err).Str("owner_id", ev.ownerID).Msg("Time-up publish failed")
		}
	}

	s.saveSnapshot(ctx, ev.ownerID, sess)
	s.enqueueArchive(ctx, ev.ownerID, sess.State())
}

// flushAll saves every non-idle session. Called once on shutdown.
func (s *SessionService) flushAll(ctx context.Context) {
	s.mu.Lock()
	pending := make(map[string]*timer.Session, len(s.entries))
	for ownerID, e := range s.entries {
		pending[ownerID] = e.session
	}
	s.mu.Unlock()

	for ownerID, sess := range pending {
		s.saveSnapshot(ctx, ownerID, sess)
	}
}

// ─── Session Operations ─────────────────────────────────────────────

// Start creates (or replaces) the owner's session with a fresh exam run.
func (s *SessionService) Start(ctx context.Context, ownerID string, cfg timer.Config) (timer.State, error) {
	sess := s.obtain(ownerID)
	if err := sess.Start(cfg); err != nil {
		return timer.State{}, err
	}
	s.markDirty(ownerID)
	return sess.State(), nil
}

// State returns the owner's current session view.
func (s *SessionService) State(ownerID string) (timer.State, error) {
	sess, ok := s.lookup(ownerID)
	if !ok {
		return timer.State{}, ErrNoActiveSession
	}
	return sess.State(), nil
}

// RecordLap records a lap (or toggles the batch selection while batch mode
// is on) and returns the updated state.
func (s *SessionService) RecordLap(ownerID string, question int, answer *string) (timer.State, error) {
	sess, ok := s.lookup(ownerID)
	if !ok {
		return timer.State{}, ErrNoActiveSession
	}
	sess.RecordLap(question, answer)
	s.markDirty(ownerID)
	return sess.State(), nil
}

// SetBatchMode enables or disables batch selection mode.
func (s *SessionService) SetBatchMode(ownerID string, enabled bool) (timer.State, error) {
	sess, ok := s.lookup(ownerID)
	if !ok {
		return timer.State{}, ErrNoActiveSession
	}
	sess.SetBatchMode(enabled)
	s.markDirty(ownerID)
	return sess.State(), nil
}

// RecordBatch splits the accumulated interval across the selection.
func (s *SessionService) RecordBatch(ownerID string) (timer.State, error) {
	sess, ok := s.lookup(ownerID)
	if !ok {
		return timer.State{}, ErrNoActiveSession
	}
	sess.RecordBatch()
	s.markDirty(ownerID)
	return sess.State(), nil
}

// TogglePause pauses or resumes the running clock.
func (s *SessionService) TogglePause(ownerID string) (timer.State, error) {
	sess, ok := s.lookup(ownerID)
	if !ok {
		return timer.State{}, ErrNoActiveSession
	}
	sess.TogglePause()
	s.markDirty(ownerID)
	return sess.State(), nil
}

// Finish ends the exam early and moves the session to review. The finished
// run is queued for archival.
func (s *SessionService) Finish(ctx context.Context, ownerID string) (timer.State, error) {
	sess, ok := s.lookup(ownerID)
	if !ok {
		return timer.State{}, ErrNoActiveSession
	}
	sess.Finish()
	s.saveSnapshot(ctx, ownerID, sess)
	s.enqueueArchive(ctx, ownerID, sess.State())
	return sess.State(), nil
}

// Continue returns a reviewing session to active solving.
func (s *SessionService) Continue(ownerID string) (timer.State, error) {
	sess, ok := s.lookup(ownerID)
	if !ok {
		return timer.State{}, ErrNoActiveSession
	}
	sess.Continue()
	s.markDirty(ownerID)
	return sess.State(), nil
}

// Restart discards the owner's run entirely. Both the hot and durable
// snapshots are removed, and the registry entry is dropped so abandoned
// owners do not pile up in memory; the next Start recreates it.
func (s *SessionService) Restart(ctx context.Context, ownerID string) (timer.State, error) {
	sess, ok := s.lookup(ownerID)
	if !ok {
		return timer.State{}, ErrNoActiveSession
	}
	sess.Restart()
	st := sess.State()

	s.mu.Lock()
	delete(s.entries, ownerID)
	s.mu.Unlock()

	if err := s.snapRepo.ClearHot(ctx, ownerID); err != nil {
		s.log.Warn().Err(err).Str("owner_id", ownerID).Msg("Snapshot clear failed")
	}
	s.enqueueSnapshotTask(ctx, model.SnapshotTask{
		OwnerID:   ownerID,
		SavedAt:   time.Now(),
		Tombstone: true,
	})

	return st, nil
}

// Grade applies an answer key to a reviewing session.
func (s *SessionService) Grade(ownerID string, key map[int]string) (timer.State, error) {
	sess, ok := s.lookup(ownerID)
	if !ok {
		return timer.State{}, ErrNoActiveSession
	}
	sess.Grade(key)
	s.markDirty(ownerID)
	return sess.State(), nil
}

// Resume restores the owner's session from its snapshot. A live non-idle
// session wins over the stored copy; corrupt snapshots are treated as
// absent.
func (s *SessionService) Resume(ctx context.Context, ownerID string) (timer.State, error) {
	if sess, ok := s.lookup(ownerID); ok && sess.Phase() != timer.PhaseIdle {
		return sess.State(), nil
	}

	raw, err := s.snapRepo.Load(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrSnapshotNotFound) {
			return timer.State{}, ErrNoSnapshot
		}
		return timer.State{}, err
	}

	var snap timer.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		s.log.Warn().Err(err).Str("owner_id", ownerID).Msg("Stored snapshot is not valid JSON")
		return timer.State{}, ErrNoSnapshot
	}

	sess := s.obtain(ownerID)
	if err := sess.RestoreSnapshot(&snap); err != nil {
		s.log.Warn().Err(err).Str("owner_id", ownerID).Msg("Stored snapshot failed validation")
		return timer.State{}, ErrNoSnapshot
	}

	return sess.State(), nil
}

// ─── Internals ──────────────────────────────────────────────────────

// obtain returns the owner's session, creating an idle one on first use.
func (s *SessionService) obtain(ownerID string) *timer.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[ownerID]
	if !ok {
		id := ownerID
		e = &sessionEntry{
			session: timer.NewSession(func(ev timer.Event) {
				// Runs under the session lock. Hand off and return.
				select {
				case s.events <- ownerEvent{ownerID: id, event: ev}:
				default:
				}
			}),
		}
		s.entries[ownerID] = e
	}
	return e.session
}

func (s *SessionService) lookup(ownerID string) (*timer.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[ownerID]
	if !ok {
		return nil, false
	}
	return e.session, true
}

func (s *SessionService) markDirty(ownerID string) {
	s.mu.Lock()
	if e, ok := s.entries[ownerID]; ok {
		e.dirty = true
	}
	s.mu.Unlock()
}

// saveSnapshot writes the hot copy and queues the durable upsert. An idle
// session has no snapshot and clears the hot key instead.
func (s *SessionService) saveSnapshot(ctx context.Context, ownerID string, sess *timer.Session) {
	snap := sess.Snapshot()
	if snap == nil {
		if err := s.snapRepo.ClearHot(ctx, ownerID); err != nil {
			s.log.Warn().Err(err).Str("owner_id", ownerID).Msg("Snapshot clear failed")
		}
		return
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		s.log.Error().Err(err).Str("owner_id", ownerID).Msg("Snapshot marshal failed")
		return
	}

	if err := s.snapRepo.SaveHot(ctx, ownerID, raw); err != nil {
		s.log.Warn().Err(err).Str("owner_id", ownerID).Msg("Hot snapshot save failed")
	}

	s.enqueueSnapshotTask(ctx, model.SnapshotTask{
		OwnerID: ownerID,
		Payload: raw,
		SavedAt: snap.SavedAt,
	})
}

func (s *SessionService) enqueueSnapshotTask(ctx context.Context, task model.SnapshotTask) {
	raw, err := json.Marshal(task)
	if err != nil {
		s.log.Error().Err(err).Msg("Snapshot task marshal failed")
		return
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistSnapshotsQueue, raw).Err(); err != nil {
		s.log.Warn().Err(err).Str("owner_id", task.OwnerID).Msg("Snapshot task enqueue failed")
	}
}

func (s *SessionService) enqueueArchive(ctx context.Context, ownerID string, st timer.State) {
	attempted := 0
	for _, q := range st.Questions {
		if q.Attempts > 0 {
			attempted++
		}
	}

	task := model.ArchiveTask{
		OwnerID:        ownerID,
		ExamName:       st.Config.Name,
		TotalMinutes:   st.Config.TotalMinutes,
		Unlimited:      st.Config.Unlimited,
		ElapsedSeconds: st.Elapsed.Seconds(),
		TimeUp:         st.TimeUp,
		QuestionCount:  len(st.Questions),
		AttemptedCount: attempted,
		FinishedAt:     time.Now(),
	}

	raw, err := json.Marshal(task)
	if err != nil {
		s.log.Error().Err(err).Msg("Archive task marshal failed")
		return
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.ArchiveResultsQueue, raw).Err(); err != nil {
		s.log.Warn().Err(err).Str("owner_id", ownerID).Msg("Archive task enqueue failed")
	}
}
