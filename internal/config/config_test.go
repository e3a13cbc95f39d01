package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/waste-risk/internal/model"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "data/waste_risk.geojson", cfg.Data.RiskDataPath)
	assert.Equal(t, "data/model.json", cfg.Data.ModelPath)
	assert.Equal(t, "none", cfg.Store.Driver)
	assert.Equal(t, "Manado", cfg.OSM.Place)
	assert.Equal(t, 5, cfg.OSM.MinTPS)
	assert.Equal(t, []string{"Market", "TPS", "Education", "Residential"}, cfg.OSM.Zones)
	assert.Equal(t, "A", cfg.Scoring.Preset)
	assert.Equal(t, "fixed", cfg.Scoring.Binning)
	assert.Equal(t, uint64(42), cfg.Scoring.Seed)
	assert.Equal(t, 500, cfg.Synthetic.Samples)
	assert.Equal(t, "B", cfg.Synthetic.Preset)
	assert.Equal(t, "equal_width", cfg.Synthetic.Binning)
	assert.Equal(t, BackendFile, cfg.Classifier.Backend)
	assert.InDelta(t, 20.0, cfg.Classifier.RequestsPerSec, 0.001)

	require.NoError(t, cfg.Validate())

	bbox, err := cfg.SyntheticBBox()
	require.NoError(t, err)
	assert.Equal(t, model.BBox{MinLon: 124.80, MinLat: 1.45, MaxLon: 124.90, MaxLat: 1.55}, bbox)

	osmBox, err := cfg.OSMBBox()
	require.NoError(t, err)
	assert.True(t, osmBox.IsZero())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
  format: console
server:
  port: 9090
osm:
  bbox: "124.8,1.4,124.9,1.5"
  zones: [market, tps]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, "Manado", cfg.OSM.Place)

	zones, err := cfg.Zones()
	require.NoError(t, err)
	assert.Equal(t, []model.ZoneType{model.ZoneMarket, model.ZoneTPS}, zones)
	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("WASTERISK_STORE_DRIVER", "postgres")
	t.Setenv("WASTERISK_LOG_LEVEL", "warn")
	t.Setenv("WASTERISK_SCORING_PRESET", "B")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "B", cfg.Scoring.Preset)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("WASTERISK_SERVER_PORT", "3000")
	t.Setenv("WASTERISK_SCORING_SEED", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, uint64(7), cfg.Scoring.Seed)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with the defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Log = LogConfig{Level: "info", Format: "json"}
	cfg.Server.Port = 8000
	cfg.Store.Driver = "none"
	cfg.OSM.Place = "Manado"
	cfg.OSM.Zones = []string{"Market", "TPS"}
	cfg.Scoring.Binning = "fixed"
	cfg.Synthetic.Binning = "equal_width"
	cfg.Synthetic.BBox = "124.80,1.45,124.90,1.55"
	cfg.Classifier.Backend = BackendFile
	return cfg
}

func TestValidate(t *testing.T) {
	require.NoError(t, validDefaults().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"bad driver", func(c *Config) { c.Store.Driver = "mongo" }, "store.driver"},
		{"bad binning", func(c *Config) { c.Scoring.Binning = "quantile" }, "quantile"},
		{"no area", func(c *Config) { c.OSM.Place = "" }, "one of place or bbox"},
		{"bad bbox", func(c *Config) { c.OSM.BBox = "1,2,3" }, "4 comma-separated values"},
		{"inverted bbox", func(c *Config) { c.Synthetic.BBox = "124.9,1.55,124.8,1.45" }, "min >= max"},
		{"bad zone", func(c *Config) { c.OSM.Zones = []string{"Harbour"} }, "unknown zone_type"},
		{"bad backend", func(c *Config) { c.Classifier.Backend = "gpu" }, "classifier.backend"},
		{"remote without url", func(c *Config) { c.Classifier.Backend = BackendRemote }, "remote_url is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validDefaults()
	cfg.Log.Format = "xml"
	cfg.Server.Port = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.format")
	assert.Contains(t, err.Error(), "server.port")
}
