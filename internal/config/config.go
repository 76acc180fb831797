package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Overpass OverpassConfig `yaml:"overpass" mapstructure:"overpass"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Sample   SampleConfig   `yaml:"sample" mapstructure:"sample"`
	Interp   InterpConfig   `yaml:"interp" mapstructure:"interp"`
	Weights  WeightsConfig  `yaml:"weights" mapstructure:"weights"`
	Report   ReportConfig   `yaml:"report" mapstructure:"report"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run-artifact database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// OverpassConfig holds Overpass API settings for boundary downloads.
type OverpassConfig struct {
	Endpoint    string `yaml:"endpoint" mapstructure:"endpoint"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// FetchConfig configures raster tile downloads.
type FetchConfig struct {
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	CacheDir    string  `yaml:"cache_dir" mapstructure:"cache_dir"`
	TileURL     string  `yaml:"tile_url" mapstructure:"tile_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// SampleConfig configures point sampling defaults.
type SampleConfig struct {
	Points int    `yaml:"points" mapstructure:"points"`
	Seed   int64  `yaml:"seed" mapstructure:"seed"`
	Scheme string `yaml:"scheme" mapstructure:"scheme"`
}

// InterpConfig configures interpolation defaults.
type InterpConfig struct {
	VariogramModel string  `yaml:"variogram_model" mapstructure:"variogram_model"`
	VariogramBins  int     `yaml:"variogram_bins" mapstructure:"variogram_bins"`
	IDWPower       float64 `yaml:"idw_power" mapstructure:"idw_power"`
	Neighbors      int     `yaml:"neighbors" mapstructure:"neighbors"`
	Workers        int     `yaml:"workers" mapstructure:"workers"`
}

// WeightsConfig configures spatial-weights construction defaults.
type WeightsConfig struct {
	Scheme       string  `yaml:"scheme" mapstructure:"scheme"`
	KNearest     int     `yaml:"k_nearest" mapstructure:"k_nearest"`
	DistanceBand float64 `yaml:"distance_band" mapstructure:"distance_band"`
	Permutations int     `yaml:"permutations" mapstructure:"permutations"`
}

// ReportConfig configures output artifacts.
type ReportConfig struct {
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
}

// ServerConfig configures the HTTP results server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GEOSTAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "geostat.db")
	v.SetDefault("overpass.endpoint", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.timeout_secs", 60)
	v.SetDefault("fetch.user_agent", "geostat/1.0")
	v.SetDefault("fetch.cache_dir", ".geostat-cache")
	v.SetDefault("fetch.tile_url", "https://srtm.csi.cgiar.org/wp-content/uploads/files/srtm_5x5/ASCII")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.rate_per_sec", 2.0)
	v.SetDefault("sample.points", 200)
	v.SetDefault("sample.seed", 42)
	v.SetDefault("sample.scheme", "random")
	v.SetDefault("interp.variogram_model", "spherical")
	v.SetDefault("interp.variogram_bins", 15)
	v.SetDefault("interp.idw_power", 2.0)
	v.SetDefault("interp.neighbors", 16)
	v.SetDefault("interp.workers", 0)
	v.SetDefault("weights.scheme", "queen")
	v.SetDefault("weights.k_nearest", 6)
	v.SetDefault("weights.distance_band", 3000.0)
	v.SetDefault("weights.permutations", 999)
	v.SetDefault("report.output_dir", "out")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
