package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for FBot Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Turret    TurretConfig    `yaml:"turret"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	Command   CommandConfig   `yaml:"command"`
}

// DeviceConfig identifies the physical bot this process drives.
type DeviceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// TurretConfig contains the magazine, motor and axis settings of the turret.
type TurretConfig struct {
	// Threshold is the scaled sensor value above which the magazine is empty.
	Threshold float64 `yaml:"threshold"`

	// ScaleMin and ScaleMax are the range the raw 0..1023 reading is mapped to.
	ScaleMin float64 `yaml:"scale_min"`
	ScaleMax float64 `yaml:"scale_max"`

	// LoadedReading is the raw value forced on reload.
	LoadedReading int `yaml:"loaded_reading"`

	// EmptyReading is the raw value forced when the last ball leaves.
	EmptyReading int `yaml:"empty_reading"`

	// Capacity is the number of balls after a reload.
	Capacity int `yaml:"capacity"`

	// ReloadTimeout bounds how long a sequence waits for an empty magazine to be refilled.
	ReloadTimeout time.Duration `yaml:"reload_timeout"`

	SpinUp   time.Duration `yaml:"spin_up"`
	SpinDown time.Duration `yaml:"spin_down"`

	// ShotFlightMin and ShotFlightMax bound the random delay either side of a release.
	ShotFlightMin time.Duration `yaml:"shot_flight_min"`
	ShotFlightMax time.Duration `yaml:"shot_flight_max"`

	Turn  AxisConfig `yaml:"turn"`
	Pitch AxisConfig `yaml:"pitch"`
}

// AxisConfig describes one rotational axis.
type AxisConfig struct {
	// MinAngle and MaxAngle bound the random aim targets (degrees).
	MinAngle float64 `yaml:"min_angle"`
	MaxAngle float64 `yaml:"max_angle"`

	// Speed is the angular speed in degrees per second.
	Speed float64 `yaml:"speed"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
// Used when Output is "file".
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// CommandConfig contains settings for the chat-style command transport.
type CommandConfig struct {
	// AllowedUsers lists the operators whose messages are processed.
	AllowedUsers []string `yaml:"allowed_users"`

	// Prefix marks a message as a command (e.g. "!").
	Prefix string `yaml:"prefix"`

	// SelfUser is the transport's own identity; its messages are ignored.
	SelfUser string `yaml:"self_user"`

	// MaxBurst caps the number of balls a single fire command may request.
	MaxBurst int `yaml:"max_burst"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: FBOT_SECTION_KEY
// For example: FBOT_DATABASE_PATH, FBOT_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
// Turret values match the demo rig: a 0..1023 sensor with a 600 threshold,
// a six ball magazine and a ten second reload window.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			ID:   "fbot-01",
			Name: "Follow Bot",
		},
		Turret: TurretConfig{
			Threshold:     600,
			ScaleMin:      0,
			ScaleMax:      1023,
			LoadedReading: 50,
			EmptyReading:  650,
			Capacity:      6,
			ReloadTimeout: 10 * time.Second,
			SpinUp:        600 * time.Millisecond,
			SpinDown:      1000 * time.Millisecond,
			ShotFlightMin: 20 * time.Millisecond,
			ShotFlightMax: 30 * time.Millisecond,
			Turn:          AxisConfig{MinAngle: -90, MaxAngle: 90, Speed: 1000},
			Pitch:         AxisConfig{MinAngle: -60, MaxAngle: 60, Speed: 1000},
		},
		Database: DatabaseConfig{
			Path:        "./data/fbot.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "fbot-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
			TopicPrefix: "fbot",
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				Path:       "./logs/fbot.log",
				MaxSize:    50,
				MaxBackups: 5,
				MaxAge:     28,
			},
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
		},
		Command: CommandConfig{
			Prefix:   "!",
			MaxBurst: 20,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: FBOT_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FBOT_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}

	// Database
	if v := os.Getenv("FBOT_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("FBOT_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("FBOT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("FBOT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("FBOT_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("FBOT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Command transport allowlist, comma separated
	if v := os.Getenv("FBOT_COMMAND_ALLOWED_USERS"); v != "" {
		cfg.Command.AllowedUsers = splitList(v)
	}

	// Security - JWT secret (always override in production)
	if v := os.Getenv("FBOT_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// splitList splits a comma separated list, dropping empty entries.
func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	}

	errs = append(errs, c.Turret.validate()...)

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Command.MaxBurst < 1 {
		errs = append(errs, "command.max_burst must be at least 1")
	}

	// The API issues and verifies operator tokens with this secret; a
	// forged token would let anyone fire the turret.
	const minJWTSecretLength = 32
	if c.API.Enabled {
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required (set FBOT_JWT_SECRET environment variable)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validate checks the turret section and returns one message per problem.
func (t TurretConfig) validate() []string {
	var errs []string

	if t.ScaleMax <= t.ScaleMin {
		errs = append(errs, "turret.scale_max must be greater than turret.scale_min")
	}
	if t.Capacity < 1 {
		errs = append(errs, "turret.capacity must be at least 1")
	}
	if t.ReloadTimeout <= 0 {
		errs = append(errs, "turret.reload_timeout must be positive")
	}
	if t.SpinUp < 0 || t.SpinDown < 0 {
		errs = append(errs, "turret.spin_up and turret.spin_down must not be negative")
	}
	if t.ShotFlightMin < 0 || t.ShotFlightMax < t.ShotFlightMin {
		errs = append(errs, "turret.shot_flight_min must be >= 0 and <= turret.shot_flight_max")
	}
	for name, axis := range map[string]AxisConfig{"turn": t.Turn, "pitch": t.Pitch} {
		if axis.Speed <= 0 {
			errs = append(errs, fmt.Sprintf("turret.%s.speed must be positive", name))
		}
		if axis.MaxAngle < axis.MinAngle {
			errs = append(errs, fmt.Sprintf("turret.%s.max_angle must be >= min_angle", name))
		}
	}

	return errs
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
