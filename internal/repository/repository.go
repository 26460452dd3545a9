// Package repository stores the ingestion run audit log.
package repository

import (
	"context"

	"github.com/ad-tracker/channel-ingestion-go/internal/db"
	"github.com/ad-tracker/channel-ingestion-go/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// DefaultListLimit is used when a caller asks for a non-positive number of runs.
	DefaultListLimit = 20
	// MaxListLimit caps ListRuns.
	MaxListLimit = 100
)

const schemaDDL = `
CREATE SCHEMA IF NOT EXISTS channel_ingestion;

CREATE TABLE IF NOT EXISTS channel_ingestion.ingestion_runs (
	id UUID PRIMARY KEY,
	channel_url TEXT NOT NULL,
	dispatch_url TEXT NOT NULL,
	max_videos INTEGER NOT NULL,
	status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
	channel_title TEXT,
	video_count INTEGER NOT NULL DEFAULT 0,
	transcript_count INTEGER NOT NULL DEFAULT 0,
	error_message TEXT,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_ingestion_runs_started_at
	ON channel_ingestion.ingestion_runs (started_at DESC);
`

const runColumns = `id, channel_url, dispatch_url, max_videos, status, channel_title,
	video_count, transcript_count, error_message, started_at, finished_at`

// Repository handles all database operations for the run audit log.
type Repository struct {
	db *pgxpool.Pool
}

// New creates a new Repository instance with the provided database connection pool.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// EnsureSchema creates the schema and table if they do not exist yet.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, schemaDDL)
	return db.WrapError(err, "ensure schema")
}

// CreateRun inserts a run in its starting state.
func (r *Repository) CreateRun(ctx context.Context, run *models.IngestionRun) error {
	query := `
		INSERT INTO channel_ingestion.ingestion_runs
		(id, channel_url, dispatch_url, max_videos, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		run.ID, run.ChannelURL, run.DispatchURL, run.MaxVideos, run.Status, run.StartedAt,
	)
	return db.WrapError(err, "create run")
}

// FinishRun records the terminal state of a run. Runs whose start was never
// recorded are inserted whole.
func (r *Repository) FinishRun(ctx context.Context, run *models.IngestionRun) error {
	query := `
		INSERT INTO channel_ingestion.ingestion_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			channel_title = EXCLUDED.channel_title,
			video_count = EXCLUDED.video_count,
			transcript_count = EXCLUDED.transcript_count,
			error_message = EXCLUDED.error_message,
			finished_at = EXCLUDED.finished_at
	`
	_, err := r.db.Exec(ctx, query,
		run.ID, run.ChannelURL, run.DispatchURL, run.MaxVideos, run.Status, run.ChannelTitle,
		run.VideoCount, run.TranscriptCount, run.ErrorMessage, run.StartedAt, run.FinishedAt,
	)
	return db.WrapError(err, "finish run")
}

// GetRun retrieves a run by id. A missing run yields an error matching db.ErrNotFound.
func (r *Repository) GetRun(ctx context.Context, id uuid.UUID) (*models.IngestionRun, error) {
	query := `SELECT ` + runColumns + ` FROM channel_ingestion.ingestion_runs WHERE id = $1`

	run, err := scanRun(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, db.WrapError(err, "get run")
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]models.IngestionRun, error) {
	query := `SELECT ` + runColumns + `
		FROM channel_ingestion.ingestion_runs
		ORDER BY started_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, ClampLimit(limit))
	if err != nil {
		return nil, db.WrapError(err, "list runs")
	}
	defer rows.Close()

	runs := []models.IngestionRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, db.WrapError(err, "scan run")
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, db.WrapError(err, "list runs")
	}
	return runs, nil
}

// Ping checks the database connection health.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// ClampLimit keeps a list limit within [1, MaxListLimit].
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}

func scanRun(row pgx.Row) (*models.IngestionRun, error) {
	var run models.IngestionRun
	err := row.Scan(
		&run.ID, &run.ChannelURL, &run.DispatchURL, &run.MaxVideos, &run.Status, &run.ChannelTitle,
		&run.VideoCount, &run.TranscriptCount, &run.ErrorMessage, &run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}
