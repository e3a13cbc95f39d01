package config

import (
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/waste-risk/internal/level"
	"github.com/sells-group/waste-risk/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Data       DataConfig       `yaml:"data" mapstructure:"data"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	OSM        OSMConfig        `yaml:"osm" mapstructure:"osm"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Synthetic  SyntheticConfig  `yaml:"synthetic" mapstructure:"synthetic"`
	Classifier ClassifierConfig `yaml:"classifier" mapstructure:"classifier"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Port             int      `yaml:"port" mapstructure:"port"`
	CORSOrigins      []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	ReadTimeoutSecs  int      `yaml:"read_timeout_secs" mapstructure:"read_timeout_secs"`
	WriteTimeoutSecs int      `yaml:"write_timeout_secs" mapstructure:"write_timeout_secs"`
}

// DataConfig locates datasets and the trained model on disk.
type DataConfig struct {
	RiskDataPath      string `yaml:"risk_data_path" mapstructure:"risk_data_path"`
	SyntheticPath     string `yaml:"synthetic_path" mapstructure:"synthetic_path"`
	ModelPath         string `yaml:"model_path" mapstructure:"model_path"`
	RiskDataCacheSecs int    `yaml:"risk_data_cache_secs" mapstructure:"risk_data_cache_secs"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// OSMConfig configures OpenStreetMap acquisition.
type OSMConfig struct {
	Endpoint    string   `yaml:"endpoint" mapstructure:"endpoint"`
	Place       string   `yaml:"place" mapstructure:"place"`
	BBox        string   `yaml:"bbox" mapstructure:"bbox"`
	TimeoutSecs int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxParallel int      `yaml:"max_parallel" mapstructure:"max_parallel"`
	MinTPS      int      `yaml:"min_tps" mapstructure:"min_tps"`
	Retries     int      `yaml:"retries" mapstructure:"retries"`
	Zones       []string `yaml:"zones" mapstructure:"zones"`
}

// ScoringConfig configures the batch path for OSM data.
type ScoringConfig struct {
	Preset      string `yaml:"preset" mapstructure:"preset"`
	PresetsFile string `yaml:"presets_file" mapstructure:"presets_file"`
	Binning     string `yaml:"binning" mapstructure:"binning"`
	Seed        uint64 `yaml:"seed" mapstructure:"seed"`
	Workers     int    `yaml:"workers" mapstructure:"workers"`
}

// SyntheticConfig configures the synthetic dataset generator.
type SyntheticConfig struct {
	Samples int    `yaml:"samples" mapstructure:"samples"`
	BBox    string `yaml:"bbox" mapstructure:"bbox"`
	Preset  string `yaml:"preset" mapstructure:"preset"`
	Binning string `yaml:"binning" mapstructure:"binning"`
}

// ClassifierConfig selects the live classifier backend.
type ClassifierConfig struct {
	Backend        string  `yaml:"backend" mapstructure:"backend"`
	RemoteURL      string  `yaml:"remote_url" mapstructure:"remote_url"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// Classifier backends.
const (
	BackendFile   = "file"
	BackendRemote = "remote"
)

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("WASTERISK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.read_timeout_secs", 15)
	v.SetDefault("server.write_timeout_secs", 30)
	v.SetDefault("data.risk_data_path", "data/waste_risk.geojson")
	v.SetDefault("data.synthetic_path", "data/synthetic_waste_risk.geojson")
	v.SetDefault("data.model_path", "data/model.json")
	v.SetDefault("data.risk_data_cache_secs", 30)
	v.SetDefault("store.driver", "none")
	v.SetDefault("store.database_url", "data/waste_risk.db")
	v.SetDefault("osm.endpoint", "https://overpass-api.de/api/interpreter")
	v.SetDefault("osm.place", "Manado")
	v.SetDefault("osm.bbox", "")
	v.SetDefault("osm.timeout_secs", 180)
	v.SetDefault("osm.max_parallel", 1)
	v.SetDefault("osm.min_tps", 5)
	v.SetDefault("osm.retries", 3)
	v.SetDefault("osm.zones", []string{"Market", "TPS", "Education", "Residential"})
	v.SetDefault("scoring.preset", "A")
	v.SetDefault("scoring.presets_file", "")
	v.SetDefault("scoring.binning", "fixed")
	v.SetDefault("scoring.seed", 42)
	v.SetDefault("scoring.workers", 4)
	v.SetDefault("synthetic.samples", 500)
	v.SetDefault("synthetic.bbox", "124.80,1.45,124.90,1.55")
	v.SetDefault("synthetic.preset", "B")
	v.SetDefault("synthetic.binning", "equal_width")
	v.SetDefault("classifier.backend", BackendFile)
	v.SetDefault("classifier.remote_url", "")
	v.SetDefault("classifier.timeout_secs", 5)
	v.SetDefault("classifier.requests_per_sec", 20)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks enumerated values and parseable fields. Weight presets are
// validated when the scoring registry is built.
func (c *Config) Validate() error {
	var errs []string
	add := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		add(eris.Errorf("log.level %q invalid", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		add(eris.Errorf("log.format %q invalid (valid: json, console)", c.Log.Format))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add(eris.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch strings.ToLower(c.Store.Driver) {
	case "", "none", "sqlite", "postgres":
	default:
		add(eris.Errorf("store.driver %q invalid (valid: none, sqlite, postgres)", c.Store.Driver))
	}
	if _, err := level.ParseBinning(c.Scoring.Binning); err != nil {
		add(err)
	}
	if _, err := level.ParseBinning(c.Synthetic.Binning); err != nil {
		add(err)
	}
	if c.OSM.BBox == "" && strings.TrimSpace(c.OSM.Place) == "" {
		add(eris.New("osm: one of place or bbox is required"))
	}
	if _, err := c.OSMBBox(); err != nil {
		add(err)
	}
	if _, err := c.SyntheticBBox(); err != nil {
		add(err)
	}
	if _, err := c.Zones(); err != nil {
		add(err)
	}
	switch c.Classifier.Backend {
	case BackendFile:
	case BackendRemote:
		if c.Classifier.RemoteURL == "" {
			add(eris.New("classifier.remote_url is required for the remote backend"))
		}
	default:
		add(eris.Errorf("classifier.backend %q invalid (valid: file, remote)", c.Classifier.Backend))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// OSMBBox returns the configured fetch box, or a zero box when unset.
func (c *Config) OSMBBox() (model.BBox, error) {
	if strings.TrimSpace(c.OSM.BBox) == "" {
		return model.BBox{}, nil
	}
	return model.ParseBBox(c.OSM.BBox)
}

// SyntheticBBox returns the generator box, or a zero box when unset.
func (c *Config) SyntheticBBox() (model.BBox, error) {
	if strings.TrimSpace(c.Synthetic.BBox) == "" {
		return model.BBox{}, nil
	}
	return model.ParseBBox(c.Synthetic.BBox)
}

// Zones parses the relevant OSM zone list.
func (c *Config) Zones() ([]model.ZoneType, error) {
	out := make([]model.ZoneType, 0, len(c.OSM.Zones))
	for _, s := range c.OSM.Zones {
		z, err := model.ParseZoneType(s)
		if err != nil {
			return nil, err
		}
		out = append(out, z)
	}
	return out, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	lvl, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(lvl)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
