package store

import (
	"context"
	"database/sql"
	"errors"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/campus-locator/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode
// and foreign keys.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Per-connection pragmas only hold if every query shares one connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS train_runs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'running',
	params     TEXT NOT NULL,
	stats      TEXT,
	error      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_records (
	run_id      TEXT NOT NULL REFERENCES train_runs(id),
	entity_id   TEXT NOT NULL,
	time_window DATETIME NOT NULL,
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
	time_window DATETIME NOT NULL,
	location_id TEXT,
	confidence  REAL NOT NULL,
	cluster     INTEGER NOT NULL,
	method      TEXT NOT NULL,
	PRIMARY KEY (run_id, entity_id, time_window)
);

CREATE INDEX IF NOT EXISTS idx_train_runs_status ON train_runs(status);
CREATE INDEX IF NOT EXISTS idx_train_runs_created_at ON train_runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, params model.TrainParams) (*model.TrainRun, error) {
	id := uuid.New().String()
	ts := now()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal params")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO train_runs (id, status, params, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(model.TrainStatusRunning), string(paramsJSON), ts, ts,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.TrainRun{
		ID:        id,
		Status:    model.TrainStatusRunning,
		Params:    params,
		CreatedAt: ts,
		UpdatedAt: ts,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, stats *model.TrainStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stats")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE train_runs SET status = ?, stats = ?, updated_at = ? WHERE id = ?`,
		string(model.TrainStatusComplete), string(statsJSON), now(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE train_runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.TrainStatusFailed), reason, now(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.TrainRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, params, stats, error, created_at, updated_at FROM train_runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.TrainRun, error) {
	query := `SELECT id, status, params, stats, error, created_at, updated_at FROM train_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, listLimit(filter))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.TrainRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// SaveArtifacts writes every artifact row for runID in one transaction.
func (s *SQLiteStore) SaveArtifacts(ctx context.Context, runID string, a *Artifacts) error {
	if a == nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin artifacts tx")
	}
	defer tx.Rollback() //nolint:errcheck

	recStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_records (run_id, entity_id, time_window, location_id, sources, event_count) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare records")
	}
	defer recStmt.Close() //nolint:errcheck
	for _, r := range a.Records {
		if _, err := recStmt.ExecContext(ctx, runID, r.EntityID, r.TimeWindow, r.LocationID, r.SourcesString(), r.EventCount); err != nil {
			return eris.Wrapf(err, "sqlite: insert record %s", r.EntityID)
		}
	}

	clStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_clusters (run_id, entity_id, cluster) VALUES (?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare clusters")
	}
	defer clStmt.Close() //nolint:errcheck
	for _, e := range sortedEntities(a.Clusters) {
		if _, err := clStmt.ExecContext(ctx, runID, e, a.Clusters[e]); err != nil {
			return eris.Wrapf(err, "sqlite: insert cluster %s", e)
		}
	}

	predStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_predictions (run_id, entity_id, time_window, location_id, confidence, cluster, method) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare predictions")
	}
	defer predStmt.Close() //nolint:errcheck
	for _, p := range a.Predictions {
		if _, err := predStmt.ExecContext(ctx, runID, p.EntityID, p.TimeWindow, nullableLocation(p), p.Confidence, p.Cluster, string(p.Method)); err != nil {
			return eris.Wrapf(err, "sqlite: insert prediction %s", p.EntityID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit artifacts")
}

func (s *SQLiteStore) CountArtifacts(ctx context.Context, runID string) (ArtifactCounts, error) {
	var c ArtifactCounts
	err := s.db.QueryRowContext(ctx,
		`SELECT
			(SELECT COUNT(*) FROM run_records WHERE run_id = ?),
			(SELECT COUNT(*) FROM run_clusters WHERE run_id = ?),
			(SELECT COUNT(*) FROM run_predictions WHERE run_id = ?)`,
		runID, runID, runID,
	).Scan(&c.Records, &c.Clusters, &c.Predictions)
	return c, eris.Wrapf(err, "sqlite: count artifacts %s", runID)
}

// helpers

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrRunNotFound, "%s", id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.TrainRun, error) {
	var r model.TrainRun
	var paramsJSON string
	var statsJSON, errMsg sql.NullString

	err := row.Scan(&r.ID, &r.Status, &paramsJSON, &statsJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if err := json.Unmarshal([]byte(paramsJSON), &r.Params); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal params")
	}
	if statsJSON.Valid {
		r.Stats = &model.TrainStats{}
		if err := json.Unmarshal([]byte(statsJSON.String), r.Stats); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal stats")
		}
	}
	r.Error = errMsg.String
	return &r, nil
}
