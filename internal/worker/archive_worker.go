package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lapdesk/lapdesk-backend/internal/config"
	"github.com/lapdesk/lapdesk-backend/internal/model"
)

const (
	ArchiveBatchSize    = 50
	ArchiveBatchTimeout = 2 * time.Second
	ArchivePollTimeout  = 1 * time.Second
)

// ArchiveWorker consumes archive_results_queue and bulk-inserts finished
// exam runs into session_archives. One owner can accumulate many rows, one
// per finished run.
type ArchiveWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewArchiveWorker creates a new ArchiveWorker.
func NewArchiveWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ArchiveWorker {
	return &ArchiveWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "archive_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *ArchiveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ArchiveWorker started")

	batch := make([]*model.ArchiveTask, 0, ArchiveBatchSize)
	lastFlush := time.Now()

	for {
		// Should flush?
		if len(batch) > 0 &&
			(len(batch) >= ArchiveBatchSize || time.Since(lastFlush) >= ArchiveBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ArchivePollTimeout, config.WorkerKey.ArchiveResultsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var task model.ArchiveTask
			if err := json.Unmarshal([]byte(item[1]), &task); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &task)
		}
	}
}

// ----------------------------------------------------------------
// Batch Insert Wrapper
// ----------------------------------------------------------------

func (w *ArchiveWorker) flushSafe(ctx context.Context, batch []*model.ArchiveTask) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk archive insert failed, using fallback")

		for _, task := range batch {
			if err := w.insertSingle(ctx, task); err != nil {
				w.log.Error().Err(err).Msg("insertSingle failed, requeueing")
				raw, _ := json.Marshal(task)
				w.rdb.RPush(ctx, config.WorkerKey.ArchiveResultsQueue, raw)
			}
		}
	}
}

// ----------------------------------------------------------------
// BULK PostgreSQL INSERT using UNNEST
// ----------------------------------------------------------------

func (w *ArchiveWorker) bulkInsert(ctx context.Context, batch []*model.ArchiveTask) error {
	n := len(batch)

	owners := make([]string, 0, n)
	names := make([]string, 0, n)
	minutes := make([]float64, 0, n)
	unlimiteds := make([]bool, 0, n)
	elapsed := make([]float64, 0, n)
	timeUps := make([]bool, 0, n)
	questionCounts := make([]int, 0, n)
	attemptedCounts := make([]int, 0, n)
	finishedAts := make([]time.Time, 0, n)

	for _, t := range batch {
		owners = append(owners, t.OwnerID)
		names = append(names, t.ExamName)
		minutes = append(minutes, t.TotalMinutes)
		unlimiteds = append(unlimiteds, t.Unlimited)
		elapsed = append(elapsed, t.ElapsedSeconds)
		timeUps = append(timeUps, t.TimeUp)
		questionCounts = append(questionCounts, t.QuestionCount)
		attemptedCounts = append(attemptedCounts, t.AttemptedCount)
		finishedAts = append(finishedAts, t.FinishedAt)
	}

	query := `
		INSERT INTO session_archives
			(owner_id, exam_name, total_minutes, unlimited, elapsed_seconds,
			 time_up, question_count, attempted_count, finished_at)
		SELECT * FROM UNNEST(
			$1::text[],
			$2::text[],
			$3::float8[],
			$4::bool[],
			$5::float8[],
			$6::bool[],
			$7::int[],
			$8::int[],
			$9::timestamptz[]
		)
	`

	_, err := w.pool.Exec(ctx, query,
		owners, names, minutes, unlimiteds, elapsed,
		timeUps, questionCounts, attemptedCounts, finishedAts)
	return err
}

// ----------------------------------------------------------------
// FALLBACK single insert
// ----------------------------------------------------------------

func (w *ArchiveWorker) insertSingle(ctx context.Context, t *model.ArchiveTask) error {
	_, err := w.pool.Exec(ctx,
		`INSERT INTO session_archives
			(owner_id, exam_name, total_minutes, unlimited, elapsed_seconds,
			 time_up, question_count, attempted_count, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.OwnerID, t.ExamName, t.TotalMinutes, t.Unlimited, t.ElapsedSeconds,
		t.TimeUp, t.QuestionCount, t.AttemptedCount, t.FinishedAt,
	)
	return err
}
