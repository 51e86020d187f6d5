package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/icuscore/internal/model"
	"github.com/gyeh/icuscore/internal/severity"
	embedsql "github.com/gyeh/icuscore/internal/sql"
)

const copyBufferSize = 1024

// ErrNoCoefficients is returned when no tuning run exists for a system.
var ErrNoCoefficients = errors.New("no stored coefficients")

// Store persists scoring runs and coefficient sets.
type Store struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func NewStore(pool *pgxpool.Pool, log zerolog.Logger) *Store {
	return &Store{pool: pool, log: log}
}

// CreateRun registers a scoring run before any of its scores are copied.
func (s *Store) CreateRun(ctx context.Context, runID uuid.UUID, system, dataRoot, coefSource string) error {
	var src *string
	if coefSource != "" {
		src = &coefSource
	}
	if _, err := s.pool.Exec(ctx, embedsql.CreateRun, runID, system, dataRoot, src); err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun records the run's final status and counts.
func (s *Store) FinishRun(ctx context.Context, runID uuid.UUID, status string, scored, failed int) error {
	if _, err := s.pool.Exec(ctx, embedsql.FinishRun, runID, status, int32(scored), int32(failed)); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// SaveScores COPY-loads stay scores into icu.stay_scores.
func (s *Store) SaveScores(ctx context.Context, rows []model.ScoreRow) (int64, error) {
	ptrs := make([]*model.ScoreRow, len(rows))
	for i := range rows {
		ptrs[i] = &rows[i]
	}
	return copyFrom(ctx, s.pool, s.log, pgx.Identifier{"icu", "stay_scores"}, model.ScoreColumns(), ptrs)
}

// SaveCoefficients COPY-loads fitted trials into icu.coefficient_sets.
func (s *Store) SaveCoefficients(ctx context.Context, rows []model.CoefficientRow) (int64, error) {
	ptrs := make([]*model.CoefficientRow, len(rows))
	for i := range rows {
		ptrs[i] = &rows[i]
	}
	return copyFrom(ctx, s.pool, s.log, pgx.Identifier{"icu", "coefficient_sets"}, model.CoefficientColumns(), ptrs)
}

// copyFrom streams rows through a channel-backed CopyFromSource.
func copyFrom[T Row](ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, table pgx.Identifier, columns []string, rows []T) (int64, error) {
	start := time.Now()
	ch := make(chan T, copyBufferSize)
	errCh := make(chan error, 1)

	go func() {
		defer close(ch)
		for _, r := range rows {
			select {
			case ch <- r:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
		errCh <- nil
	}()

	n, err := pool.CopyFrom(ctx, table, columns, NewChannelSource(ch))
	if err != nil {
		// Drain so the producer can exit.
		for range ch {
		}
	}
	if prodErr := <-errCh; prodErr != nil {
		return n, fmt.Errorf("copy producer: %w", prodErr)
	}
	if err != nil {
		return n, fmt.Errorf("copy %s: %w", table.Sanitize(), err)
	}

	log.Info().
		Str("table", table.Sanitize()).
		Int64("rows", n).
		Dur("duration", time.Since(start)).
		Msg("copy complete")
	return n, nil
}

// LatestCoefficients returns the trials of the most recent tuning run for system.
func (s *Store) LatestCoefficients(ctx context.Context, system string) ([]severity.Coefficients, error) {
	rows, err := s.pool.Query(ctx, embedsql.LatestCoefficients, system)
	if err != nil {
		return nil, fmt.Errorf("query coefficients: %w", err)
	}
	defer rows.Close()

	var out []severity.Coefficients
	for rows.Next() {
		var b0, b1 float64
		var b2 *float64
		if err := rows.Scan(&b0, &b1, &b2); err != nil {
			return nil, fmt.Errorf("scan coefficients: %w", err)
		}
		c := severity.Coefficients{b0, b1}
		if b2 != nil {
			c = append(c, *b2)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoCoefficients, system)
	}
	return out, nil
}

// RunScores reads back the scores of one run ordered by partition and stay.
func (s *Store) RunScores(ctx context.Context, runID uuid.UUID) ([]model.ScoreRow, error) {
	rows, err := s.pool.Query(ctx, embedsql.RunScores, runID)
	if err != nil {
		return nil, fmt.Errorf("query scores: %w", err)
	}
	defer rows.Close()

	var out []model.ScoreRow
	for rows.Next() {
		r := model.ScoreRow{RunID: runID}
		var total int32
		if err := rows.Scan(&r.Partition, &r.Stay, &r.System, &total, &r.Risk, &r.WindowMissing); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		r.Total = int(total)
		out = append(out, r)
	}
	return out, rows.Err()
}
