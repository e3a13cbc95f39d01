package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/waste-risk/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

var runColumnNames = []string{"id", "source", "preset", "binning", "seed", "point_count", "created_at"}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE EXTENSION IF NOT EXISTS postgis`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO runs (id, source, preset, binning, seed, point_count, created_at)`)).
		WithArgs("run-1", "osm", "A", "fixed", int64(42), 3, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), model.Run{
		ID: "run-1", Source: model.RunSourceOSM, Preset: "A", Binning: "fixed", Seed: 42, PointCount: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.False(t, run.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, source, preset, binning, seed, point_count, created_at FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(runColumnNames).AddRow("run-1", "synthetic", "B", "equal_width", int64(7), 500, created))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.Run{
		ID: "run-1", Source: model.RunSourceSynthetic, Preset: "B", Binning: "equal_width",
		Seed: 7, PointCount: 500, CreatedAt: created,
	}, *run)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .* FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM runs ORDER BY created_at DESC LIMIT 1`).
		WillReturnRows(pgxmock.NewRows(runColumnNames).AddRow("run-9", "osm", "A", "fixed", int64(42), 12, created))

	run, err := Resolve(context.Background(), s, "latest")
	require.NoError(t, err)
	assert.Equal(t, "run-9", run.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SavePoints(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM risk_points WHERE run_id = \$1`).
		WithArgs("run-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"risk_points"}, pointColumns).WillReturnResult(2)
	mock.ExpectExec(`UPDATE runs SET point_count = \$1 WHERE id = \$2`).
		WithArgs(2, "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	require.NoError(t, s.SavePoints(context.Background(), "run-1", testPoints()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SavePoints_UnknownRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM risk_points`).
		WithArgs("ghost").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"risk_points"}, pointColumns).WillReturnResult(2)
	mock.ExpectExec(`UPDATE runs SET point_count`).
		WithArgs(2, "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := s.SavePoints(context.Background(), "ghost", testPoints())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO runs`)).
		WithArgs("run-1", "osm", "A", "fixed", int64(42), 2, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"risk_points"}, pointColumns).WillReturnResult(2)
	mock.ExpectCommit()

	run, err := s.SaveRun(context.Background(), model.Run{
		ID: "run-1", Source: model.RunSourceOSM, Preset: "A", Binning: "fixed", Seed: 42,
	}, testPoints())
	require.NoError(t, err)
	assert.Equal(t, 2, run.PointCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun_CopyFailureRollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO runs`)).
		WithArgs("run-1", "osm", "A", "fixed", int64(42), 2, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"risk_points"}, pointColumns).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	run, err := s.SaveRun(context.Background(), model.Run{
		ID: "run-1", Source: model.RunSourceOSM, Preset: "A", Binning: "fixed", Seed: 42,
	}, testPoints())
	require.Error(t, err)
	assert.Nil(t, run)
	assert.Contains(t, err.Error(), "copy points")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListPoints(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	want := testPoints()

	g0, err := EncodePoint(want[0].Point.Lon, want[0].Point.Lat)
	require.NoError(t, err)
	g1, err := EncodePoint(want[1].Point.Lon, want[1].Point.Lat)
	require.NoError(t, err)

	mock.ExpectQuery(`FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(runColumnNames).AddRow("run-1", "osm", "A", "fixed", int64(42), 2, time.Now().UTC()))
	mock.ExpectQuery(`FROM risk_points WHERE run_id = \$1 ORDER BY seq`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"seq", "point_id", "zone_type", "pop_density", "waste_volume", "dist_tps", "dist_measured",
			"road_access", "risk_score", "risk_level", "geom_ewkb",
		}).
			AddRow(0, "node/1", "Market", 300.0, 512.5, 150.0, true, "Poor", 0.82, "High", g0).
			AddRow(1, "syn-2", "Office", 120.0, 79.0, 2000.0, false, "Good", 0.12, "Low", g1))

	got, err := s.ListPoints(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEncodeDecodePoint(t *testing.T) {
	data, err := EncodePoint(124.8512, 1.4921)
	require.NoError(t, err)

	lon, lat, err := DecodePoint(data)
	require.NoError(t, err)
	assert.Equal(t, 124.8512, lon)
	assert.Equal(t, 1.4921, lat)

	_, _, err = DecodePoint([]byte{0x01, 0x02})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode EWKB")
}
