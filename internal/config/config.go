package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/aston-transit/backend/internal/geo"
)

// DefaultTFWMGTFSURL is the Transport for West Midlands static feed
const DefaultTFWMGTFSURL = "http://api.tfwm.org.uk/gtfs/tfwm_gtfs.zip"

// DefaultCORSOrigins are the dev frontends
var DefaultCORSOrigins = []string{
	"http://localhost:5173",
	"http://localhost:8080",
	"http://127.0.0.1:5173",
	"http://127.0.0.1:8080",
}

// Config holds all configuration for the backend
type Config struct {
	// Server
	Port        string        `yaml:"port" validate:"required"`
	Environment string        `yaml:"env"`
	LogLevel    string        `yaml:"logLevel"`
	HTTPTimeout time.Duration `yaml:"httpTimeout" validate:"gt=0"`
	CORSOrigins []string      `yaml:"corsOrigins"`
	StaticDir   string        `yaml:"staticDir"`

	// TfWM static feed
	TFWMAppID   string `yaml:"tfwmAppId"`
	TFWMAppKey  string `yaml:"tfwmAppKey"`
	TFWMGTFSURL string `yaml:"tfwmGtfsUrl" validate:"required,url"`

	// Local feed storage
	GTFSDir          string `yaml:"gtfsDir" validate:"required"`
	CacheDir         string `yaml:"cacheDir" validate:"required"`
	GTFSRefreshDays  int    `yaml:"gtfsRefreshDays" validate:"gt=0"`
	NetworkCacheSize int    `yaml:"networkCacheSize" validate:"gte=0"`

	// Area of interest
	CenterLat             float64 `yaml:"centerLat" validate:"gte=-90,lte=90"`
	CenterLng             float64 `yaml:"centerLng" validate:"gte=-180,lte=180"`
	DefaultBufferMeters   float64 `yaml:"defaultBufferMeters" validate:"gt=0,lte=50000"`
	DefaultMinStopsInArea int     `yaml:"defaultMinStopsInArea" validate:"gte=0"`

	// Refresh log
	DatabasePath string `yaml:"sqliteDatabase"`
	DatabaseURL  string `yaml:"databaseUrl"`

	// Realtime (optional)
	GTFSRTVehiclesURL string `yaml:"gtfsrtVehiclesUrl" validate:"omitempty,url"`
}

// Option tweaks a Config
type Option func(*Config)

// WithEnvironment sets the environment name
func WithEnvironment(env string) Option {
	return func(c *Config) {
		c.Environment = env
	}
}

// WithLogLevel sets the log level name
func WithLogLevel(level string) Option {
	return func(c *Config) {
		c.LogLevel = level
	}
}

// WithCredentials sets the TfWM app id and key
func WithCredentials(appID, appKey string) Option {
	return func(c *Config) {
		c.TFWMAppID = appID
		c.TFWMAppKey = appKey
	}
}

// WithFeedURL sets the static feed URL
func WithFeedURL(url string) Option {
	return func(c *Config) {
		c.TFWMGTFSURL = url
	}
}

// WithDataDirs sets where the feed is extracted and where the zip is cached
func WithDataDirs(gtfsDir, cacheDir string) Option {
	return func(c *Config) {
		c.GTFSDir = gtfsDir
		c.CacheDir = cacheDir
	}
}

// WithHTTPTimeout sets the timeout for outbound feed requests
func WithHTTPTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.HTTPTimeout = timeout
	}
}

// New creates a configuration with default values
func New(opts ...Option) *Config {
	cfg := &Config{
		Port:        "8000",
		Environment: "production",
		LogLevel:    "info",
		HTTPTimeout: 120 * time.Second,
		CORSOrigins: append([]string(nil), DefaultCORSOrigins...),

		TFWMGTFSURL: DefaultTFWMGTFSURL,

		GTFSDir:          "gtfs_data",
		CacheDir:         "cache",
		GTFSRefreshDays:  7,
		NetworkCacheSize: 16,

		// Aston, Birmingham
		CenterLat:             52.4975,
		CenterLng:             -1.8890,
		DefaultBufferMeters:   900,
		DefaultMinStopsInArea: 3,

		DatabasePath: "data/refresh.db",
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE if any, then environment variables, and validates the result
func Load() (*Config, error) {
	cfg := New()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.Environment = getEnv("ENV", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.HTTPTimeout = getEnvDuration("HTTP_TIMEOUT", c.HTTPTimeout)
	c.CORSOrigins = getEnvList("CORS_ORIGINS", c.CORSOrigins)
	c.StaticDir = getEnv("STATIC_DIR", c.StaticDir)

	c.TFWMAppID = getEnv("TFWM_APP_ID", c.TFWMAppID)
	c.TFWMAppKey = getEnv("TFWM_APP_KEY", c.TFWMAppKey)
	c.TFWMGTFSURL = getEnv("TFWM_GTFS_URL", c.TFWMGTFSURL)

	c.GTFSDir = getEnv("GTFS_DIR", c.GTFSDir)
	c.CacheDir = getEnv("CACHE_DIR", c.CacheDir)
	c.GTFSRefreshDays = getEnvInt("GTFS_REFRESH_DAYS", c.GTFSRefreshDays)
	c.NetworkCacheSize = getEnvInt("NETWORK_CACHE_SIZE", c.NetworkCacheSize)

	c.CenterLat = getEnvFloat("CENTER_LAT", c.CenterLat)
	c.CenterLng = getEnvFloat("CENTER_LNG", c.CenterLng)
	c.DefaultBufferMeters = getEnvFloat("DEFAULT_BUFFER_METERS", c.DefaultBufferMeters)
	c.DefaultMinStopsInArea = getEnvInt("DEFAULT_MIN_STOPS_IN_AREA", c.DefaultMinStopsInArea)

	c.DatabasePath = getEnv("SQLITE_DATABASE", c.DatabasePath)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)

	c.GTFSRTVehiclesURL = getEnv("GTFSRT_VEHICLES_URL", c.GTFSRTVehiclesURL)
}

// Validate checks field constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// InitializeLogging sets up zerolog based on the configuration
func (c *Config) InitializeLogging() {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		level = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(level)

	// Console output for development environments
	if c.Environment == "local" || c.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
}

// Center is the point every network is filtered around
func (c *Config) Center() geo.Point {
	return geo.Point{Lat: c.CenterLat, Lng: c.CenterLng}
}

// HasKeys reports whether TfWM credentials are configured
func (c *Config) HasKeys() bool {
	return c.TFWMAppID != "" && c.TFWMAppKey != ""
}

// ZipPath is where the downloaded feed archive is cached
func (c *Config) ZipPath() string {
	return filepath.Join(c.CacheDir, "tfwm_gtfs.zip")
}

// ManifestPath is where the refresh manifest is written
func (c *Config) ManifestPath() string {
	return filepath.Join(c.CacheDir, "manifest.json")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
