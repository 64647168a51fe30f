package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the wallbox bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge  BridgeConfig   `yaml:"bridge"`
	Local   EndpointConfig `yaml:"local"`
	Remote  EndpointConfig `yaml:"remote"`
	Devices []DeviceConfig `yaml:"devices"`
	Journal JournalConfig  `yaml:"journal"`
	Metrics MetricsConfig  `yaml:"metrics"`
	Logging LoggingConfig  `yaml:"logging"`
}

// BridgeConfig contains settings that apply to the bridge declaration itself.
type BridgeConfig struct {
	// SpecFile is the path to the line-oriented bridge declaration
	// (connection / address / local_clientid / topic directives).
	SpecFile string `yaml:"spec_file"`

	// Strict controls how unknown directives in the spec file are handled.
	// When true (default) an unknown directive is a fatal config error;
	// when false it is logged and skipped.
	Strict bool `yaml:"strict"`

	// QoS is the default quality of service for relayed messages when a
	// topic rule does not declare its own. Default: 0 (at most once).
	QoS int `yaml:"qos"`
}

// EndpointConfig contains connection settings for one side of the bridge.
// The remote endpoint's host and port come from the spec file's address
// directive; values here fill in what the declaration never carried
// (credentials, TLS, backoff).
type EndpointConfig struct {
	Broker    BrokerConfig    `yaml:"broker"`
	Auth      AuthConfig      `yaml:"auth"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// BrokerConfig contains broker connection details for one side.
type BrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// AuthConfig contains MQTT authentication credentials.
type AuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ReconnectConfig contains reconnection backoff settings (seconds).
type ReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// DeviceConfig declares a wallbox device whose topic rules are generated
// from a template rather than maintained as literal per-device lines.
type DeviceConfig struct {
	// Type is the openWB device type: controller, counter, chargepoint,
	// pv, or bat.
	Type string `yaml:"type"`

	// ID is the numeric device identifier assigned by the controller.
	ID int `yaml:"id"`
}

// JournalConfig contains settings for the SQLite relay journal.
type JournalConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MetricsConfig contains InfluxDB connection settings for relay telemetry.
type MetricsConfig struct {
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
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: WALLBOX_BRIDGE_SECTION_KEY
// For example: WALLBOX_BRIDGE_SPEC_FILE, WALLBOX_BRIDGE_REMOTE_PASSWORD
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			SpecFile: "configs/bridge.conf",
			Strict:   true,
			QoS:      0,
		},
		Local: EndpointConfig{
			Broker: BrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			Reconnect: ReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Remote: EndpointConfig{
			// Auth rejections share this path, so the remote ceiling is
			// higher to avoid hammering a wallbox controller that is
			// refusing us.
			Reconnect: ReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     120,
			},
		},
		Journal: JournalConfig{
			Enabled:     false,
			Path:        "./data/relay-journal.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: WALLBOX_BRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Bridge
	if v := os.Getenv("WALLBOX_BRIDGE_SPEC_FILE"); v != "" {
		cfg.Bridge.SpecFile = v
	}

	// Local broker
	if v := os.Getenv("WALLBOX_BRIDGE_LOCAL_HOST"); v != "" {
		cfg.Local.Broker.Host = v
	}
	if v := os.Getenv("WALLBOX_BRIDGE_LOCAL_USERNAME"); v != "" {
		cfg.Local.Auth.Username = v
	}
	if v := os.Getenv("WALLBOX_BRIDGE_LOCAL_PASSWORD"); v != "" {
		cfg.Local.Auth.Password = v
	}

	// Remote broker credentials (the address comes from the spec file)
	if v := os.Getenv("WALLBOX_BRIDGE_REMOTE_USERNAME"); v != "" {
		cfg.Remote.Auth.Username = v
	}
	if v := os.Getenv("WALLBOX_BRIDGE_REMOTE_PASSWORD"); v != "" {
		cfg.Remote.Auth.Password = v
	}

	// Journal
	if v := os.Getenv("WALLBOX_BRIDGE_JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}

	// Metrics
	if v := os.Getenv("WALLBOX_BRIDGE_METRICS_TOKEN"); v != "" {
		cfg.Metrics.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	errs = append(errs, c.validateBridge()...)
	errs = append(errs, c.validateEndpoint("local", c.Local)...)
	errs = append(errs, c.validateEndpoint("remote", c.Remote)...)
	errs = append(errs, c.validateDevices()...)
	errs = append(errs, c.validateJournal()...)
	errs = append(errs, c.validateMetrics()...)
	errs = append(errs, c.validateLogging()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateBridge validates bridge settings.
func (c *Config) validateBridge() []string {
	var errs []string
	if c.Bridge.SpecFile == "" {
		errs = append(errs, "bridge.spec_file is required")
	}
	if c.Bridge.QoS < 0 || c.Bridge.QoS > 2 {
		errs = append(errs, "bridge.qos must be 0, 1, or 2")
	}
	return errs
}

// validateEndpoint validates one side's connection settings.
// The remote endpoint may omit host/port since the spec file's address
// directive supplies them.
func (c *Config) validateEndpoint(side string, ep EndpointConfig) []string {
	var errs []string
	if side == "local" && ep.Broker.Host == "" {
		errs = append(errs, "local.broker.host is required")
	}
	if ep.Broker.Port < 0 || ep.Broker.Port > 65535 {
		errs = append(errs, fmt.Sprintf("%s.broker.port must be between 0 and 65535", side))
	}
	if ep.Reconnect.InitialDelay < 1 {
		errs = append(errs, fmt.Sprintf("%s.reconnect.initial_delay must be at least 1 second", side))
	}
	if ep.Reconnect.MaxDelay < ep.Reconnect.InitialDelay {
		errs = append(errs, fmt.Sprintf("%s.reconnect.max_delay must be >= initial_delay", side))
	}
	return errs
}

// validateDevices validates templated device declarations.
func (c *Config) validateDevices() []string {
	var errs []string
	seen := make(map[string]bool)

	validTypes := map[string]bool{
		"controller":  true,
		"counter":     true,
		"chargepoint": true,
		"pv":          true,
		"bat":         true,
	}

	for i, dev := range c.Devices {
		if !validTypes[dev.Type] {
			errs = append(errs, fmt.Sprintf("devices[%d].type %q is invalid (use controller, counter, chargepoint, pv, or bat)", i, dev.Type))
			continue
		}
		if dev.ID < 0 {
			errs = append(errs, fmt.Sprintf("devices[%d].id must not be negative", i))
		}
		key := fmt.Sprintf("%s/%d", dev.Type, dev.ID)
		if seen[key] {
			errs = append(errs, fmt.Sprintf("devices[%d] %s is duplicate", i, key))
		}
		seen[key] = true
	}

	return errs
}

// validateJournal validates relay journal settings.
func (c *Config) validateJournal() []string {
	var errs []string
	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, "journal.path is required when journal is enabled")
	}
	if c.Journal.BusyTimeout < 0 {
		errs = append(errs, "journal.busy_timeout must not be negative")
	}
	return errs
}

// validateMetrics validates metrics settings.
func (c *Config) validateMetrics() []string {
	var errs []string
	if !c.Metrics.Enabled {
		return errs
	}
	if c.Metrics.URL == "" {
		errs = append(errs, "metrics.url is required when metrics are enabled")
	}
	if c.Metrics.Org == "" {
		errs = append(errs, "metrics.org is required when metrics are enabled")
	}
	if c.Metrics.Bucket == "" {
		errs = append(errs, "metrics.bucket is required when metrics are enabled")
	}
	return errs
}

// validateLogging validates logging settings.
func (c *Config) validateLogging() []string {
	var errs []string

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		errs = append(errs, fmt.Sprintf("logging.level %q is invalid (use debug, info, warn, or error)", c.Logging.Level))
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		errs = append(errs, fmt.Sprintf("logging.format %q is invalid (use json or text)", c.Logging.Format))
	}

	return errs
}

// GetInitialDelay returns the endpoint's initial reconnect delay as a Duration.
func (e EndpointConfig) GetInitialDelay() time.Duration {
	return time.Duration(e.Reconnect.InitialDelay) * time.Second
}

// GetMaxDelay returns the endpoint's maximum reconnect delay as a Duration.
func (e EndpointConfig) GetMaxDelay() time.Duration {
	return time.Duration(e.Reconnect.MaxDelay) * time.Second
}

// String returns a string representation with the password masked.
// Use this for logging to prevent credential exposure.
func (a AuthConfig) String() string {
	password := ""
	if a.Password != "" {
		password = "[REDACTED]"
	}
	return fmt.Sprintf("AuthConfig{Username:%q, Password:%s}", a.Username, password)
}
