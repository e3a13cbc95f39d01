package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/waste-risk/internal/classifier"
	"github.com/sells-group/waste-risk/internal/config"
	"github.com/sells-group/waste-risk/internal/export"
	"github.com/sells-group/waste-risk/internal/geoscraper"
	"github.com/sells-group/waste-risk/internal/inference"
	"github.com/sells-group/waste-risk/internal/model"
	"github.com/sells-group/waste-risk/internal/resilience"
	"github.com/sells-group/waste-risk/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Log:    config.LogConfig{Level: "error", Format: "console"},
		Server: config.ServerConfig{Port: 8000, CORSOrigins: []string{"*"}, ReadTimeoutSecs: 15, WriteTimeoutSecs: 30},
		Data: config.DataConfig{
			RiskDataPath:  filepath.Join(dir, "waste_risk.geojson"),
			SyntheticPath: filepath.Join(dir, "synthetic.geojson"),
			ModelPath:     filepath.Join(dir, "model.json"),
		},
		Store: config.StoreConfig{Driver: "none"},
		OSM: config.OSMConfig{
			Place:   "Manado",
			MinTPS:  5,
			Retries: 3,
			Zones:   []string{"Market", "TPS", "Education", "Residential"},
		},
		Scoring:    config.ScoringConfig{Preset: "A", Binning: "fixed", Seed: 42, Workers: 2},
		Synthetic:  config.SyntheticConfig{Samples: 120, Preset: "B", Binning: "equal_width"},
		Classifier: config.ClassifierConfig{Backend: config.BackendFile, TimeoutSecs: 5},
	}
}

func withSQLite(t *testing.T, c *config.Config) {
	t.Helper()
	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = filepath.Join(t.TempDir(), "runs.db")
}

type fakeSource struct {
	elems []geoscraper.Element
	err   error
}

func (f fakeSource) Fetch(context.Context, geoscraper.Area) ([]geoscraper.Element, error) {
	return f.elems, f.err
}

func manadoElements() []geoscraper.Element {
	return []geoscraper.Element{
		{ID: 1, Type: "node", Lon: 124.84, Lat: 1.49, Tags: map[string]string{"amenity": "marketplace"}},
		{ID: 2, Type: "node", Lon: 124.85, Lat: 1.50, Tags: map[string]string{"amenity": "waste_disposal"}},
		{ID: 3, Type: "way", Lon: 124.83, Lat: 1.48, Tags: map[string]string{"amenity": "school"}},
		{ID: 4, Type: "way", Lon: 124.86, Lat: 1.51, Tags: map[string]string{"building": "house"}},
		{ID: 5, Type: "way", Lon: 124.87, Lat: 1.47, Tags: map[string]string{"building": "apartments"}},
		{ID: 6, Type: "node", Lon: 124.82, Lat: 1.52, Tags: map[string]string{"amenity": "hospital"}},
	}
}

func decode[T any](t *testing.T, buf *bytes.Buffer) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(buf.Bytes(), &v))
	return v
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"fetch", "generate", "score", "train", "predict", "serve", "export", "model-info", "runs"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "waste-risk", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
}

func TestPredictCommand_Flags(t *testing.T) {
	flag := predictCmd.Flags().Lookup("dist-tps")
	require.NotNil(t, flag)
	assert.Contains(t, flag.Usage, "(m)")

	for _, name := range []string{"pop-density", "waste-volume", "road-access", "zone-type"} {
		require.NotNil(t, predictCmd.Flags().Lookup(name), name)
	}
}

func TestExportCommand_Flags(t *testing.T) {
	flag := exportCmd.Flags().Lookup("format")
	require.NotNil(t, flag)
	assert.Equal(t, "xlsx", flag.DefValue)
	require.NotNil(t, exportCmd.Flags().Lookup("run"))
	require.NotNil(t, exportCmd.Flags().Lookup("in"))
}

func TestFetchArea(t *testing.T) {
	c := testConfig(t)

	area, err := fetchArea(c, "", "")
	require.NoError(t, err)
	assert.Equal(t, "Manado", area.Place)
	assert.True(t, area.BBox.IsZero())

	area, err = fetchArea(c, "Bitung", "")
	require.NoError(t, err)
	assert.Equal(t, "Bitung", area.Place)

	area, err = fetchArea(c, "Bitung", "124.80,1.45,124.90,1.55")
	require.NoError(t, err)
	assert.Empty(t, area.Place)
	assert.Equal(t, model.BBox{MinLon: 124.80, MinLat: 1.45, MaxLon: 124.90, MaxLat: 1.55}, area.BBox)

	_, err = fetchArea(c, "", "not,a,bbox")
	assert.Error(t, err)
}

func TestOverpassPolicy(t *testing.T) {
	c := testConfig(t)
	c.OSM.Retries = 7
	assert.Equal(t, 7, overpassPolicy(c).Attempts)

	c.OSM.Retries = 0
	assert.Equal(t, resilience.DefaultPolicy().Attempts, overpassPolicy(c).Attempts)
}

func TestRunFetch(t *testing.T) {
	c := testConfig(t)
	withSQLite(t, c)
	var buf bytes.Buffer

	err := runFetch(context.Background(), c, fakeSource{elems: manadoElements()}, geoscraper.Area{Place: "Manado"}, c.Data.RiskDataPath, &buf)
	require.NoError(t, err)

	out := decode[summary](t, &buf)
	assert.Equal(t, 5, out.Points, "hospital is categorised as Other and dropped")
	assert.Equal(t, "A", out.Preset)
	assert.Equal(t, "fixed", out.Binning)
	assert.NotEmpty(t, out.RunID)
	total := 0
	for _, n := range out.Levels {
		total += n
	}
	assert.Equal(t, 5, total)
	assert.FileExists(t, c.Data.RiskDataPath)

	var runs bytes.Buffer
	st, err := store.Open(context.Background(), c.Store.Driver, c.Store.DatabaseURL)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, runRuns(context.Background(), st, 10, &runs))
	listed := decode[[]model.Run](t, &runs)
	require.Len(t, listed, 1)
	assert.Equal(t, out.RunID, listed[0].ID)
	assert.Equal(t, model.RunSourceOSM, listed[0].Source)
	assert.Equal(t, 5, listed[0].PointCount)
}

func TestRunFetch_SourceError(t *testing.T) {
	c := testConfig(t)
	var buf bytes.Buffer

	err := runFetch(context.Background(), c, fakeSource{err: os.ErrDeadlineExceeded}, geoscraper.Area{Place: "Manado"}, c.Data.RiskDataPath, &buf)
	require.Error(t, err)
	assert.NoFileExists(t, c.Data.RiskDataPath)
	assert.Zero(t, buf.Len())
}

func TestRunFetch_UnknownPreset(t *testing.T) {
	c := testConfig(t)
	c.Scoring.Preset = "Z"

	err := runFetch(context.Background(), c, fakeSource{elems: manadoElements()}, geoscraper.Area{Place: "Manado"}, c.Data.RiskDataPath, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown preset")
}

func TestGenerateTrainPredict(t *testing.T) {
	c := testConfig(t)
	ctx := context.Background()

	var gen bytes.Buffer
	require.NoError(t, runGenerate(ctx, c, generateOptions{Samples: 120, Seed: 42, Out: c.Data.SyntheticPath}, &gen))
	g := decode[summary](t, &gen)
	assert.Equal(t, 120, g.Points)
	assert.Equal(t, "B", g.Preset)
	assert.Equal(t, "equal_width", g.Binning)
	assert.Empty(t, g.RunID)

	var tr bytes.Buffer
	require.NoError(t, runTrain(ctx, c.Data.SyntheticPath, c.Data.ModelPath, 0.2, 42, &tr))
	res := decode[trainOutput](t, &tr)
	assert.Equal(t, classifier.CentroidName, res.Model)
	assert.Equal(t, 96, res.TrainSize)
	assert.Equal(t, 24, res.TestSize)
	assert.FileExists(t, c.Data.ModelPath)

	pop, dist, waste := 12000.0, 2.5, 450.0
	road, zone := "poor", "market"
	req := inference.Request{PopDensity: &pop, DistTPS: &dist, WasteVolume: &waste, RoadAccess: &road, ZoneType: &zone}

	var pred bytes.Buffer
	require.NoError(t, runPredict(ctx, classifier.NewFileProvider(c.Data.ModelPath), req, &pred))
	p := decode[inference.Prediction](t, &pred)
	assert.Contains(t, model.RiskLevels(), p.RiskLevel)
	assert.Len(t, p.Details, 3)
	assert.InDelta(t, p.Details[p.RiskLevel], p.RiskScore, 1e-9)
}

func TestGenerate_Reproducible(t *testing.T) {
	c := testConfig(t)
	ctx := context.Background()
	a := filepath.Join(t.TempDir(), "a.geojson")
	b := filepath.Join(t.TempDir(), "b.geojson")

	require.NoError(t, runGenerate(ctx, c, generateOptions{Samples: 40, Seed: 7, Out: a}, &bytes.Buffer{}))
	require.NoError(t, runGenerate(ctx, c, generateOptions{Samples: 40, Seed: 7, Out: b}, &bytes.Buffer{}))

	da, err := os.ReadFile(a)
	require.NoError(t, err)
	db, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
}

func TestGenerate_InvalidSamples(t *testing.T) {
	c := testConfig(t)
	err := runGenerate(context.Background(), c, generateOptions{Samples: 0, Out: c.Data.SyntheticPath}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRunScore(t *testing.T) {
	c := testConfig(t)
	ctx := context.Background()
	require.NoError(t, runGenerate(ctx, c, generateOptions{Samples: 30, Seed: 1, Out: c.Data.SyntheticPath}, &bytes.Buffer{}))

	out := filepath.Join(t.TempDir(), "rescored.geojson")
	var buf bytes.Buffer
	require.NoError(t, runScore(ctx, c, c.Data.SyntheticPath, out, "A", "fixed", &buf))

	s := decode[summary](t, &buf)
	assert.Equal(t, 30, s.Points)
	assert.Equal(t, "A", s.Preset)
	assert.Equal(t, "fixed", s.Binning)
	assert.FileExists(t, out)
}

func TestRunScore_BadBinning(t *testing.T) {
	c := testConfig(t)
	ctx := context.Background()
	require.NoError(t, runGenerate(ctx, c, generateOptions{Samples: 10, Seed: 1, Out: c.Data.SyntheticPath}, &bytes.Buffer{}))

	err := runScore(ctx, c, c.Data.SyntheticPath, filepath.Join(t.TempDir(), "x.geojson"), "A", "quantile", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRunPredict_MissingField(t *testing.T) {
	err := runPredict(context.Background(), classifier.NewFileProvider("unused"), inference.Request{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.ErrorIs(t, err, inference.ErrInvalidInput)
}

func TestRunPredict_NotTrained(t *testing.T) {
	pop, dist, waste := 1.0, 1.0, 1.0
	road, zone := "Good", "TPS"
	req := inference.Request{PopDensity: &pop, DistTPS: &dist, WasteVolume: &waste, RoadAccess: &road, ZoneType: &zone}

	err := runPredict(context.Background(), classifier.NewFileProvider(filepath.Join(t.TempDir(), "missing.json")), req, &bytes.Buffer{})
	require.Error(t, err)
	assert.ErrorIs(t, err, inference.ErrUnavailable)
}

func TestRunExport_FromFile(t *testing.T) {
	c := testConfig(t)
	ctx := context.Background()
	require.NoError(t, runGenerate(ctx, c, generateOptions{Samples: 20, Seed: 3, Out: c.Data.SyntheticPath}, &bytes.Buffer{}))

	var buf bytes.Buffer
	require.NoError(t, runExport(ctx, nil, "", c.Data.SyntheticPath, export.FormatXLSX, "", &buf))

	res := decode[exportOutput](t, &buf)
	want := filepath.Join(filepath.Dir(c.Data.SyntheticPath), "synthetic.xlsx")
	assert.Equal(t, want, res.Output)
	assert.Equal(t, 20, res.Points)
	assert.Empty(t, res.RunID)
	assert.FileExists(t, want)
}

func TestRunExport_LatestRun(t *testing.T) {
	c := testConfig(t)
	withSQLite(t, c)
	ctx := context.Background()

	var gen bytes.Buffer
	require.NoError(t, runGenerate(ctx, c, generateOptions{Samples: 25, Seed: 9, Out: c.Data.SyntheticPath}, &gen))
	runID := decode[summary](t, &gen).RunID
	require.NotEmpty(t, runID)

	st, err := store.Open(ctx, c.Store.Driver, c.Store.DatabaseURL)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	out := filepath.Join(t.TempDir(), "latest.shp")
	var buf bytes.Buffer
	require.NoError(t, runExport(ctx, st, store.Latest, "", export.FormatShapefile, out, &buf))

	res := decode[exportOutput](t, &buf)
	assert.Equal(t, runID, res.RunID)
	assert.Equal(t, 25, res.Points)
	assert.FileExists(t, out)
	assert.FileExists(t, filepath.Join(filepath.Dir(out), "latest.prj"))
}

func TestRunExport_UnknownRun(t *testing.T) {
	c := testConfig(t)
	withSQLite(t, c)
	ctx := context.Background()

	st, err := store.Open(ctx, c.Store.Driver, c.Store.DatabaseURL)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	err = runExport(ctx, st, "does-not-exist", "", export.FormatXLSX, "", &bytes.Buffer{})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunExport_NoSource(t *testing.T) {
	err := runExport(context.Background(), nil, "", "", export.FormatXLSX, "", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestNewProvider(t *testing.T) {
	c := testConfig(t)

	p, name, err := newProvider(c, c.Data.ModelPath)
	require.NoError(t, err)
	assert.Equal(t, classifier.CentroidName, name)
	assert.IsType(t, &classifier.FileProvider{}, p)

	c.Classifier.Backend = config.BackendRemote
	c.Classifier.RemoteURL = "http://localhost:9000"
	_, name, err = newProvider(c, c.Data.ModelPath)
	require.NoError(t, err)
	assert.Equal(t, classifier.RemoteName, name)

	c.Classifier.Backend = "grpc"
	_, _, err = newProvider(c, c.Data.ModelPath)
	assert.Error(t, err)
}

func TestNewHTTPServer(t *testing.T) {
	c := testConfig(t)
	srv, err := newHTTPServer(c, 9001)
	require.NoError(t, err)
	assert.Equal(t, ":9001", srv.Addr)
	assert.NotNil(t, srv.Handler)
	assert.Equal(t, "15s", srv.ReadTimeout.String())
	assert.Equal(t, "30s", srv.WriteTimeout.String())
}

func TestRunServer_StopsOnCancel(t *testing.T) {
	c := testConfig(t)
	srv, err := newHTTPServer(c, 0)
	require.NoError(t, err)
	srv.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, runServer(ctx, srv))
}
