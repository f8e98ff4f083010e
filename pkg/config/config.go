package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Gate modes.
const (
	GateRemote = "remote"
	GateLocal  = "local"
	GateOff    = "off"
)

// Gate failure policies.
const (
	FailClosed = "fail_closed"
	FailOpen   = "fail_open"
)

// Position modes and sensors.
const (
	PositionLive      = "live"
	PositionSimulated = "simulated"

	SensorStream = "stream"
	SensorWalker = "walker"
	SensorNone   = "none"
)

// POI sources.
const (
	POIRemote    = "remote"
	POILocal     = "local"
	POIShapefile = "shapefile"
)

// Environment overrides applied after the file is read.
const (
	EnvBackendURL = "NARRATOR_BACKEND_URL"
	EnvDeviceID   = "NARRATOR_DEVICE_ID"
	EnvGateMode   = "NARRATOR_GATE_MODE"
	EnvDBPath     = "NARRATOR_DB_PATH"
)

// Config holds the application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Service  ServiceConfig  `yaml:"service"`
	DB       DBConfig       `yaml:"db"`
	Log      LogConfig      `yaml:"log"`
	Request  RequestConfig  `yaml:"request"`
	Backend  BackendConfig  `yaml:"backend"`
	Device   DeviceConfig   `yaml:"device"`
	POI      POIConfig      `yaml:"poi"`
	Gate     GateConfig     `yaml:"gate"`
	Position PositionConfig `yaml:"position"`
	Geofence GeofenceConfig `yaml:"geofence"`
	Audio    AudioConfig    `yaml:"audio"`
	Narrator NarratorConfig `yaml:"narrator"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds the local control API settings of the narrator client.
type ServerConfig struct {
	Address  string `yaml:"address"`
	MaxConns int    `yaml:"max_conns"`
}

// ServiceConfig holds settings of the narration backend (narrationd).
type ServiceConfig struct {
	Address       string   `yaml:"address"`
	AudioDir      string   `yaml:"audio_dir"`
	CataloguePath string   `yaml:"catalogue_path"`
	LogRetention  Duration `yaml:"log_retention"`
	CacheMaxAge   Duration `yaml:"cache_max_age"`

	// CatalogueWatch is the poll interval for re-importing an edited catalogue; zero disables it.
	CatalogueWatch Duration `yaml:"catalogue_watch"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
	Events   LogSettings `yaml:"events"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// RequestConfig holds HTTP request settings.
type RequestConfig struct {
	Retries    int           `yaml:"retries"`
	Timeout    Duration      `yaml:"timeout"`
	RatePerSec float64       `yaml:"rate_per_sec"`
	Backoff    BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// BackendConfig locates the narration backend endpoints.
type BackendConfig struct {
	BaseURL   string `yaml:"base_url"`
	POIPath   string `yaml:"poi_path"`
	CheckPath string `yaml:"check_path"`
	LogPath   string `yaml:"log_path"`
	AudioPath string `yaml:"audio_path"` // {id} is replaced with the audio id
}

// DeviceConfig pins the device identifier; empty means generate and persist one.
type DeviceConfig struct {
	ID string `yaml:"id"`
}

// POIConfig selects where the catalogue comes from.
type POIConfig struct {
	Source    string `yaml:"source"`
	Shapefile string `yaml:"shapefile"`
}

// GateConfig holds the narration gate settings.
type GateConfig struct {
	Mode          string   `yaml:"mode"`
	FailurePolicy string   `yaml:"failure_policy"`
	Cooldown      Duration `yaml:"cooldown"`
}

// PositionConfig holds the position source settings.
type PositionConfig struct {
	Mode     string       `yaml:"mode"`
	Sensor   string       `yaml:"sensor"`
	StartLat *float64     `yaml:"start_lat,omitempty"`
	StartLon *float64     `yaml:"start_lon,omitempty"`
	Walker   WalkerConfig `yaml:"walker"`
}

// WalkerConfig drives the mock sensor along the POIs or an explicit route.
type WalkerConfig struct {
	Speed    float64     `yaml:"speed"` // meters per second
	Interval Duration    `yaml:"interval"`
	Dwell    Duration    `yaml:"dwell"`
	Route    []RoutePair `yaml:"route,omitempty"`
}

// RoutePair is one waypoint of a walker route.
type RoutePair struct {
	Lat float64 `yaml:"lat"`
	Lon float64 `yaml:"lon"`
}

// GeofenceConfig holds POI conversion defaults.
type GeofenceConfig struct {
	DefaultRadius Distance `yaml:"default_radius"`
	PriorityBase  int      `yaml:"priority_base"`
}

// AudioConfig holds audio output settings.
type AudioConfig struct {
	Volume     float64 `yaml:"volume"`
	SampleRate int     `yaml:"sample_rate"`
	CacheClips bool    `yaml:"cache_clips"`
}

// NarratorConfig holds orchestration settings.
type NarratorConfig struct {
	AutoGuide   bool `yaml:"auto_guide"`
	NearbyLimit int  `yaml:"nearby_limit"`
}

// MetricsConfig toggles the otel counters.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:  "localhost:1921",
			MaxConns: 64,
		},
		Service: ServiceConfig{
			Address:        "localhost:8080",
			AudioDir:       "./data/audio",
			CataloguePath:  "./data/catalogue.csv",
			LogRetention:   Duration(90 * Day),
			CacheMaxAge:    Duration(30 * Day),
			CatalogueWatch: Duration(30 * time.Second),
		},
		DB: DBConfig{
			Path: "./data/narrator.db",
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
			Events: LogSettings{
				Path: "./logs/narration.log",
			},
		},
		Request: RequestConfig{
			Retries:    3,
			Timeout:    Duration(10 * time.Second),
			RatePerSec: 5,
			Backoff: BackoffConfig{
				BaseDelay: Duration(500 * time.Millisecond),
				MaxDelay:  Duration(10 * time.Second),
			},
		},
		Backend: BackendConfig{
			BaseURL:   "http://localhost:8080",
			POIPath:   "/api/v1/app/pois",
			CheckPath: "/api/v1/app/narration/check",
			LogPath:   "/api/v1/app/narration/log",
			AudioPath: "/api/v1/tts/audios/{id}",
		},
		POI: POIConfig{
			Source: POIRemote,
		},
		Gate: GateConfig{
			Mode:          GateRemote,
			FailurePolicy: FailClosed,
			Cooldown:      Duration(5 * time.Minute),
		},
		Position: PositionConfig{
			Mode:   PositionLive,
			Sensor: SensorStream,
			Walker: WalkerConfig{
				Speed:    1.4,
				Interval: Duration(time.Second),
				Dwell:    Duration(20 * time.Second),
			},
		},
		Geofence: GeofenceConfig{
			DefaultRadius: Distance(50),
			PriorityBase:  1000,
		},
		Audio: AudioConfig{
			Volume:     1.0,
			SampleRate: 44100,
			CacheClips: true,
		},
		Narrator: NarratorConfig{
			AutoGuide:   true,
			NearbyLimit: 10,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// URL joins the backend base URL with an endpoint path.
func (b BackendConfig) URL(path string) string {
	return strings.TrimRight(b.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// AudioURL returns the clip endpoint for one audio id.
func (b BackendConfig) AudioURL(id int64) string {
	return b.URL(strings.ReplaceAll(b.AudioPath, "{id}", fmt.Sprint(id)))
}

// LoadEnv reads .env style files into the process environment. Missing files are ignored
// and variables already set win over file values.
func LoadEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_ = godotenv.Load(p)
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// If the file exists, it merges defaults with existing values but does NOT save back to disk (to preserve user formatting and comments).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables. Values are never written back to disk.
func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvBackendURL); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv(EnvDeviceID); v != "" {
		cfg.Device.ID = v
	}
	if v := os.Getenv(EnvGateMode); v != "" {
		cfg.Gate.Mode = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.DB.Path = v
	}
}

// Validate rejects enum values the runtime cannot act on.
func (c *Config) Validate() error {
	var errs []error
	check := func(field, val string, allowed ...string) {
		for _, a := range allowed {
			if val == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("invalid %s '%s': must be one of %s", field, val, strings.Join(allowed, ", ")))
	}

	check("gate.mode", c.Gate.Mode, GateRemote, GateLocal, GateOff)
	check("gate.failure_policy", c.Gate.FailurePolicy, FailClosed, FailOpen)
	check("position.mode", c.Position.Mode, PositionLive, PositionSimulated)
	check("position.sensor", c.Position.Sensor, SensorStream, SensorWalker, SensorNone)
	check("poi.source", c.POI.Source, POIRemote, POILocal, POIShapefile)

	if c.POI.Source == POIShapefile && c.POI.Shapefile == "" {
		errs = append(errs, errors.New("poi.shapefile is required when poi.source is shapefile"))
	}
	if c.Audio.Volume < 0 {
		errs = append(errs, fmt.Errorf("invalid audio.volume %v: must not be negative", c.Audio.Volume))
	}
	return errors.Join(errs...)
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Street Food Narrator Configuration
# ---------------------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
#   Distance: m (meters), km (kilometers), nm (nautical miles), ft (feet)
# Environment overrides: NARRATOR_BACKEND_URL, NARRATOR_DEVICE_ID, NARRATOR_GATE_MODE, NARRATOR_DB_PATH

`)
	data = append(header, data...)

	// Inject comments for enum fields
	reMode := regexp.MustCompile(`(?m)^(\s+)mode: (remote|local|off)`)
	data = reMode.ReplaceAll(data, []byte("${1}# Options: remote, local, off\n${1}mode: ${2}"))

	rePolicy := regexp.MustCompile(`(?m)^(\s+)failure_policy:`)
	data = rePolicy.ReplaceAll(data, []byte("${1}# Options: fail_closed, fail_open\n${1}failure_policy:"))

	reSensor := regexp.MustCompile(`(?m)^(\s+)sensor:`)
	data = reSensor.ReplaceAll(data, []byte("${1}# Options: stream, walker, none\n${1}sensor:"))

	reSource := regexp.MustCompile(`(?m)^(\s+)source:`)
	data = reSource.ReplaceAll(data, []byte("${1}# Options: remote, local, shapefile\n${1}source:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
