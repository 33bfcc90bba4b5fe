package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/db"
	"github.com/sells-group/outreach-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 5
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}

	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	phase       TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	report      JSONB,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS sends (
	id        TEXT PRIMARY KEY,
	run_id    TEXT NOT NULL REFERENCES runs(id),
	identity  TEXT NOT NULL,
	recipient TEXT NOT NULL,
	kind      TEXT NOT NULL,
	thread_id TEXT,
	sent_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_phase ON runs(phase);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_sends_run_id ON sends(run_id);
CREATE INDEX IF NOT EXISTS idx_sends_sent_at ON sends(sent_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, phase string) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.New().String(),
		Phase:     phase,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, phase, status, started_at) VALUES ($1, $2, $3, $4)`,
		run.ID, run.Phase, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return run, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, report *model.RunReport) error {
	var reportJSON any
	if report != nil {
		data, err := json.Marshal(report)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal report")
		}
		reportJSON = string(data)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, report = $2, finished_at = $3 WHERE id = $4`,
		string(status), reportJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, phase, status, report, started_at, finished_at FROM runs WHERE id = $1`,
		runID,
	)
	run, err := scanPostgresRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: run %s not found", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, phase, status, report, started_at, finished_at FROM runs WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Phase != "" {
		query += ` AND phase = ` + arg(filter.Phase)
	}
	if filter.Status != "" {
		query += ` AND status = ` + arg(string(filter.Status))
	}
	if !filter.StartedAfter.IsZero() {
		query += ` AND started_at > ` + arg(filter.StartedAfter)
	}
	query += ` ORDER BY started_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanPostgresRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func (s *PostgresStore) RecordSend(ctx context.Context, rec model.SendRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.SentAt.IsZero() {
		rec.SentAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sends (id, run_id, identity, recipient, kind, thread_id, sent_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.RunID, rec.Identity, rec.Recipient, rec.Kind, rec.ThreadID, rec.SentAt,
	)
	return eris.Wrap(err, "postgres: insert send")
}

func (s *PostgresStore) ListSends(ctx context.Context, runID string) ([]model.SendRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, identity, recipient, kind, COALESCE(thread_id, ''), sent_at FROM sends WHERE run_id = $1 ORDER BY sent_at`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sends")
	}
	defer rows.Close()

	var sends []model.SendRecord
	for rows.Next() {
		var rec model.SendRecord
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Identity, &rec.Recipient, &rec.Kind, &rec.ThreadID, &rec.SentAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan send")
		}
		sends = append(sends, rec)
	}
	return sends, eris.Wrap(rows.Err(), "postgres: iterate sends")
}

func (s *PostgresStore) CountSendsSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM sends WHERE sent_at > $1`, since,
	).Scan(&count)
	return count, eris.Wrap(err, "postgres: count sends")
}

func scanPostgresRun(r pgx.Row) (*model.Run, error) {
	var run model.Run
	var status string
	var report *string
	var finished *time.Time

	if err := r.Scan(&run.ID, &run.Phase, &status, &report, &run.StartedAt, &finished); err != nil {
		return nil, err
	}
	run.Status = model.RunStatus(status)
	if report != nil && *report != "" {
		var rep model.RunReport
		if err := json.Unmarshal([]byte(*report), &rep); err != nil {
			return nil, eris.Wrap(err, "unmarshal report")
		}
		run.Report = &rep
	}
	run.FinishedAt = finished
	return &run, nil
}
