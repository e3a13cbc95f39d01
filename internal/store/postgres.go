package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/waste-risk/internal/db"
	"github.com/sells-group/waste-risk/internal/model"
)

// SRID of stored point geometry.
const SRID = 4326

// PostgresStore implements Store on PostGIS. Point geometry is written as
// EWKB and exposed through a generated geometry column for spatial queries.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres connects a pool and wraps it in a store.
func NewPostgres(ctx context.Context, connString string, cfg *db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return NewPostgresWithPool(pool), nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	preset      TEXT NOT NULL,
	binning     TEXT NOT NULL,
	seed        BIGINT NOT NULL,
	point_count INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS risk_points (
	run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq           INTEGER NOT NULL,
	point_id      TEXT NOT NULL DEFAULT '',
	zone_type     TEXT NOT NULL,
	pop_density   DOUBLE PRECISION NOT NULL,
	waste_volume  DOUBLE PRECISION NOT NULL,
	dist_tps      DOUBLE PRECISION NOT NULL,
	dist_measured BOOLEAN NOT NULL,
	road_access   TEXT NOT NULL,
	risk_score    DOUBLE PRECISION NOT NULL,
	risk_level    TEXT NOT NULL,
	geom_ewkb     BYTEA NOT NULL,
	geom          geometry(Point, 4326) GENERATED ALWAYS AS (ST_GeomFromEWKB(geom_ewkb)) STORED,
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_risk_points_geom ON risk_points USING GIST (geom);
`

var pointColumns = []string{
	"run_id", "seq", "point_id", "zone_type", "pop_density", "waste_volume", "dist_tps",
	"dist_measured", "road_access", "risk_score", "risk_level", "geom_ewkb",
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const postgresInsertRun = `INSERT INTO runs (id, source, preset, binning, seed, point_count, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`

// execer is satisfied by the pool and by a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertPostgresRun(ctx context.Context, q execer, run model.Run) error {
	r := toRunRow(run)
	_, err := q.Exec(ctx, postgresInsertRun, r.ID, r.Source, r.Preset, r.Binning, r.Seed, r.PointCount, r.CreatedAt)
	return eris.Wrap(err, "postgres: insert run")
}

func (s *PostgresStore) CreateRun(ctx context.Context, run model.Run) (*model.Run, error) {
	run = prepareRun(run)
	if err := insertPostgresRun(ctx, s.pool, run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run model.Run, points []model.ScoredPoint) (*model.Run, error) {
	run = prepareRun(run)
	run.PointCount = len(points)
	rows, err := postgresPointRows(run.ID, points)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := insertPostgresRun(ctx, tx, run); err != nil {
		return nil, err
	}
	if _, err := db.CopyFrom(ctx, tx, "risk_points", pointColumns, rows); err != nil {
		return nil, eris.Wrapf(err, "postgres: copy points for run %s", run.ID)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit run")
	}
	return &run, nil
}

const postgresRunColumns = `id, source, preset, binning, seed, point_count, created_at`

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+postgresRunColumns+` FROM runs WHERE id = $1`, runID)
	return scanPostgresRun(row, runID)
}

func (s *PostgresStore) LatestRun(ctx context.Context) (*model.Run, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+postgresRunColumns+` FROM runs ORDER BY created_at DESC LIMIT 1`)
	return scanPostgresRun(row, Latest)
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+postgresRunColumns+` FROM runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r runRow
		if err := rows.Scan(&r.ID, &r.Source, &r.Preset, &r.Binning, &r.Seed, &r.PointCount, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, r.model())
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// SavePoints replaces the points of a run with a COPY inside one transaction.
func (s *PostgresStore) SavePoints(ctx context.Context, runID string, points []model.ScoredPoint) error {
	rows, err := postgresPointRows(runID, points)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM risk_points WHERE run_id = $1`, runID); err != nil {
		return eris.Wrapf(err, "postgres: clear points for run %s", runID)
	}
	if _, err := db.CopyFrom(ctx, tx, "risk_points", pointColumns, rows); err != nil {
		return eris.Wrapf(err, "postgres: copy points for run %s", runID)
	}
	tag, err := tx.Exec(ctx, `UPDATE runs SET point_count = $1 WHERE id = $2`, len(points), runID)
	if err != nil {
		return eris.Wrapf(err, "postgres: update point count for run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit points")
}

func postgresPointRows(runID string, points []model.ScoredPoint) ([][]any, error) {
	rows := make([][]any, 0, len(points))
	for i, p := range points {
		g, err := EncodePoint(p.Point.Lon, p.Point.Lat)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: point %d", i)
		}
		r := toPointRow(runID, i, p)
		rows = append(rows, []any{
			r.RunID, r.Seq, r.PointID, r.ZoneType, r.PopDensity, r.WasteVolume, r.DistTPS,
			r.DistMeasured, r.RoadAccess, r.RiskScore, r.RiskLevel, g,
		})
	}
	return rows, nil
}

func (s *PostgresStore) ListPoints(ctx context.Context, runID string) ([]model.ScoredPoint, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT seq, point_id, zone_type, pop_density, waste_volume, dist_tps, dist_measured,
			road_access, risk_score, risk_level, geom_ewkb
		 FROM risk_points WHERE run_id = $1 ORDER BY seq`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list points for run %s", runID)
	}
	defer rows.Close()

	var out []model.ScoredPoint
	for rows.Next() {
		r := pointRow{RunID: runID}
		var g []byte
		if err := rows.Scan(&r.Seq, &r.PointID, &r.ZoneType, &r.PopDensity, &r.WasteVolume, &r.DistTPS,
			&r.DistMeasured, &r.RoadAccess, &r.RiskScore, &r.RiskLevel, &g); err != nil {
			return nil, eris.Wrap(err, "postgres: scan point")
		}
		if r.Lon, r.Lat, err = DecodePoint(g); err != nil {
			return nil, eris.Wrapf(err, "postgres: point %d", r.Seq)
		}
		out = append(out, r.model())
	}
	return out, eris.Wrap(rows.Err(), "postgres: list points iterate")
}

// EncodePoint returns the EWKB encoding of a lon/lat point with SRID 4326.
func EncodePoint(lon, lat float64) ([]byte, error) {
	g := geom.NewPointFlat(geom.XY, []float64{lon, lat}).SetSRID(SRID)
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode EWKB")
	}
	return data, nil
}

// DecodePoint parses an EWKB point.
func DecodePoint(data []byte) (lon, lat float64, err error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return 0, 0, eris.Wrap(err, "store: decode EWKB")
	}
	p, ok := g.(*geom.Point)
	if !ok {
		return 0, 0, eris.Errorf("store: expected point geometry, got %T", g)
	}
	return p.X(), p.Y(), nil
}

func scanPostgresRun(row pgx.Row, ref string) (*model.Run, error) {
	var r runRow
	err := row.Scan(&r.ID, &r.Source, &r.Preset, &r.Binning, &r.Seed, &r.PointCount, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: run %s", ref)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", ref)
	}
	m := r.model()
	return &m, nil
}
