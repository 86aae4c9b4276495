package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/campus-locator/internal/db"
	"github.com/sells-group/campus-locator/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS train_runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	status     TEXT NOT NULL DEFAULT 'running',
	params     JSONB NOT NULL,
	stats      JSONB,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_records (
	run_id      TEXT NOT NULL REFERENCES train_runs(id),
	entity_id   TEXT NOT NULL,
	time_window TIMESTAMPTZ NOT NULL,
	location_id TEXT NOT NULL,
	sources     TEXT NOT NULL,
	event_count INTEGER NOT NULL,
	PRIMARY KEY (run_id, entity_id, time_window)
);

CREATE TABLE IF NOT EXISTS run_clusters (
	run_id    TEXT NOT NULL REFERENCES train_runs(id),
	entity_id TEXT NOT NULL,
	cluster   INTEGER NOT NULL,
	PRIMARY KEY (run_id, entity_id)
);

CREATE TABLE IF NOT EXISTS run_predictions (
	run_id      TEXT NOT NULL REFERENCES train_runs(id),
	entity_id   TEXT NOT NULL,
	time_window TIMESTAMPTZ NOT NULL,
	location_id TEXT,
	confidence  DOUBLE PRECISION NOT NULL,
	cluster     INTEGER NOT NULL,
	method      TEXT NOT NULL,
	PRIMARY KEY (run_id, entity_id, time_window)
);

CREATE TABLE IF NOT EXISTS entity_clusters (
	entity_id  TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES train_runs(id),
	cluster    INTEGER NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_train_runs_status ON train_runs(status);
CREATE INDEX IF NOT EXISTS idx_train_runs_created_at ON train_runs(created_at DESC);
`

var (
	recordColumns     = []string{"run_id", "entity_id", "time_window", "location_id", "sources", "event_count"}
	clusterColumns    = []string{"run_id", "entity_id", "cluster"}
	predictionColumns = []string{"run_id", "entity_id", "time_window", "location_id", "confidence", "cluster", "method"}
	latestColumns     = []string{"entity_id", "run_id", "cluster", "updated_at"}
)

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

func (s *PostgresStore) CreateRun(ctx context.Context, params model.TrainParams) (*model.TrainRun, error) {
	id := uuid.New().String()
	ts := now()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal params")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO train_runs (id, status, params, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, string(model.TrainStatusRunning), paramsJSON, ts, ts,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.TrainRun{
		ID:        id,
		Status:    model.TrainStatusRunning,
		Params:    params,
		CreatedAt: ts,
		UpdatedAt: ts,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, stats *model.TrainStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stats")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE train_runs SET status = $1, stats = $2, updated_at = $3 WHERE id = $4`,
		string(model.TrainStatusComplete), statsJSON, now(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrRunNotFound, "%s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE train_runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(model.TrainStatusFailed), reason, now(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrRunNotFound, "%s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.TrainRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, status, params, stats, error, created_at, updated_at FROM train_runs WHERE id = $1`,
		runID,
	)
	r, err := scanPgRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.TrainRun, error) {
	query := `SELECT id, status, params, stats, error, created_at, updated_at FROM train_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.TrainRun
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// SaveArtifacts COPYs the run's artifact rows and refreshes the latest
// cluster per entity in one transaction. A failure leaves nothing behind.
func (s *PostgresStore) SaveArtifacts(ctx context.Context, runID string, a *Artifacts) error {
	if a == nil {
		return nil
	}

	recRows := make([][]any, len(a.Records))
	for i, r := range a.Records {
		recRows[i] = []any{runID, r.EntityID, r.TimeWindow, r.LocationID, r.SourcesString(), r.EventCount}
	}

	entities := sortedEntities(a.Clusters)
	ts := now()
	clRows := make([][]any, len(entities))
	latest := make([][]any, len(entities))
	for i, e := range entities {
		clRows[i] = []any{runID, e, a.Clusters[e]}
		latest[i] = []any{e, runID, a.Clusters[e], ts}
	}

	predRows := make([][]any, len(a.Predictions))
	for i, p := range a.Predictions {
		predRows[i] = []any{runID, p.EntityID, p.TimeWindow, nullableLocation(p), p.Confidence, p.Cluster, string(p.Method)}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: save artifacts: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := db.CopyFrom(ctx, tx, "run_records", recordColumns, recRows); err != nil {
		return eris.Wrap(err, "postgres: save records")
	}
	if _, err := db.CopyFrom(ctx, tx, "run_clusters", clusterColumns, clRows); err != nil {
		return eris.Wrap(err, "postgres: save clusters")
	}
	if _, err := db.CopyFrom(ctx, tx, "run_predictions", predictionColumns, predRows); err != nil {
		return eris.Wrap(err, "postgres: save predictions")
	}
	if _, err := db.BulkUpsertTx(ctx, tx, db.UpsertConfig{
		Table:        "entity_clusters",
		Columns:      latestColumns,
		ConflictKeys: []string{"entity_id"},
	}, latest); err != nil {
		return eris.Wrap(err, "postgres: upsert entity clusters")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: save artifacts: commit tx")
}

func (s *PostgresStore) CountArtifacts(ctx context.Context, runID string) (ArtifactCounts, error) {
	var c ArtifactCounts
	err := s.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM run_records WHERE run_id = $1),
			(SELECT COUNT(*) FROM run_clusters WHERE run_id = $1),
			(SELECT COUNT(*) FROM run_predictions WHERE run_id = $1)`,
		runID,
	).Scan(&c.Records, &c.Clusters, &c.Predictions)
	return c, eris.Wrapf(err, "postgres: count artifacts %s", runID)
}

func scanPgRun(row scannable) (*model.TrainRun, error) {
	var r model.TrainRun
	var status string
	var paramsJSON []byte
	var statsJSON *[]byte
	var errMsg *string

	if err := row.Scan(&r.ID, &status, &paramsJSON, &statsJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = model.TrainStatus(status)

	if err := json.Unmarshal(paramsJSON, &r.Params); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal params")
	}
	if statsJSON != nil {
		r.Stats = &model.TrainStats{}
		if err := json.Unmarshal(*statsJSON, r.Stats); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal stats")
		}
	}
	if errMsg != nil {
		r.Error = *errMsg
	}
	return &r, nil
}
