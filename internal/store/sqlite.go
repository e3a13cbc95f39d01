package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/waste-risk/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite through sqlx.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
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
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	preset      TEXT NOT NULL,
	binning     TEXT NOT NULL,
	seed        INTEGER NOT NULL,
	point_count INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS risk_points (
	run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq           INTEGER NOT NULL,
	point_id      TEXT NOT NULL DEFAULT '',
	lon           REAL NOT NULL,
	lat           REAL NOT NULL,
	zone_type     TEXT NOT NULL,
	pop_density   REAL NOT NULL,
	waste_volume  REAL NOT NULL,
	dist_tps      REAL NOT NULL,
	dist_measured INTEGER NOT NULL,
	road_access   TEXT NOT NULL,
	risk_score    REAL NOT NULL,
	risk_level    TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_risk_points_level ON risk_points(run_id, risk_level);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteInsertRun = `INSERT INTO runs (id, source, preset, binning, seed, point_count, created_at)
	VALUES (:id, :source, :preset, :binning, :seed, :point_count, :created_at)`

func (s *SQLiteStore) CreateRun(ctx context.Context, run model.Run) (*model.Run, error) {
	run = prepareRun(run)
	if _, err := s.db.NamedExecContext(ctx, sqliteInsertRun, toRunRow(run)); err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &run, nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run model.Run, points []model.ScoredPoint) (*model.Run, error) {
	run = prepareRun(run)
	run.PointCount = len(points)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.NamedExecContext(ctx, sqliteInsertRun, toRunRow(run)); err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	if err := insertSQLitePoints(ctx, tx, run.ID, points); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit run")
	}
	return &run, nil
}

const sqliteRunColumns = `id, source, preset, binning, seed, point_count, created_at`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var row runRow
	err := s.db.GetContext(ctx, &row, `SELECT `+sqliteRunColumns+` FROM runs WHERE id = ?`, runID)
	return scanResult(row, err, runID)
}

func (s *SQLiteStore) LatestRun(ctx context.Context) (*model.Run, error) {
	var row runRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+sqliteRunColumns+` FROM runs ORDER BY created_at DESC, rowid DESC LIMIT 1`)
	return scanResult(row, err, Latest)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT `+sqliteRunColumns+` FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	runs := make([]model.Run, len(rows))
	for i, r := range rows {
		runs[i] = r.model()
	}
	return runs, nil
}

// SavePoints replaces the points of a run in one transaction.
func (s *SQLiteStore) SavePoints(ctx context.Context, runID string, points []model.ScoredPoint) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM risk_points WHERE run_id = ?`, runID); err != nil {
		return eris.Wrapf(err, "sqlite: clear points for run %s", runID)
	}

	if err := insertSQLitePoints(ctx, tx, runID, points); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE runs SET point_count = ? WHERE id = ?`, len(points), runID,
	); err != nil {
		return eris.Wrapf(err, "sqlite: update point count for run %s", runID)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit points")
}

func insertSQLitePoints(ctx context.Context, tx *sqlx.Tx, runID string, points []model.ScoredPoint) error {
	stmt, err := tx.PrepareNamedContext(ctx,
		`INSERT INTO risk_points (run_id, seq, point_id, lon, lat, zone_type, pop_density, waste_volume,
			dist_tps, dist_measured, road_access, risk_score, risk_level)
		 VALUES (:run_id, :seq, :point_id, :lon, :lat, :zone_type, :pop_density, :waste_volume,
			:dist_tps, :dist_measured, :road_access, :risk_score, :risk_level)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare point insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i, p := range points {
		if _, err := stmt.ExecContext(ctx, toPointRow(runID, i, p)); err != nil {
			return eris.Wrapf(err, "sqlite: insert point %d for run %s", i, runID)
		}
	}
	return nil
}

func (s *SQLiteStore) ListPoints(ctx context.Context, runID string) ([]model.ScoredPoint, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	var rows []pointRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT run_id, seq, point_id, lon, lat, zone_type, pop_density, waste_volume, dist_tps,
			dist_measured, road_access, risk_score, risk_level
		 FROM risk_points WHERE run_id = ? ORDER BY seq`, runID,
	); err != nil {
		return nil, eris.Wrapf(err, "sqlite: list points for run %s", runID)
	}

	out := make([]model.ScoredPoint, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

func scanResult(row runRow, err error, ref string) (*model.Run, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: run %s", ref)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", ref)
	}
	r := row.model()
	return &r, nil
}
