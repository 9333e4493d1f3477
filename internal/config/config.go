package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// defaultConfigPath is used when neither the flag nor CONFIG_PATH
// points anywhere else.
const defaultConfigPath = "configs/config.yaml"

// AppConfig holds process-level inputs resolved before the file config
// is loaded.
type AppConfig struct {
	ConfigPath string
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	host := strings.TrimSpace(s.Host)
	port := s.Port
	if port <= 0 {
		port = 8318
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// DatabaseConfig configures persistence.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig configures the optional pricing cache. An empty Addr
// disables Redis entirely.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Duration wraps time.Duration so YAML values like "24h" parse.
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if errDecode := value.Decode(&raw); errDecode != nil {
		return errDecode
	}
	parsed, errParse := time.ParseDuration(strings.TrimSpace(raw))
	if errParse != nil {
		return fmt.Errorf("config: invalid duration %q: %w", raw, errParse)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// JWTConfig configures bearer-token auth.
type JWTConfig struct {
	Secret      string   `yaml:"secret"`
	AdminSecret string   `yaml:"admin-secret"`
	Expiry      Duration `yaml:"expiry"`
	AdminExpiry Duration `yaml:"admin-expiry"`
}

// SessionConfig configures anonymous-session handling. AnonSecret keys
// the HMAC that anonymizes session identifiers before they are stored.
type SessionConfig struct {
	AnonSecret string `yaml:"anon-secret"`
}

// LoggingConfig configures logrus output and lumberjack rotation. An
// empty File logs to stderr only.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
	Compress   bool   `yaml:"compress"`
}

// Config is the full file configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	JWT      JWTConfig      `yaml:"jwt"`
	Session  SessionConfig  `yaml:"session"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ResolveConfigPath picks the config file path: explicit value first,
// then the CONFIG_PATH environment variable, then the default.
func ResolveConfigPath(path string) string {
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		return trimmed
	}
	if env := strings.TrimSpace(os.Getenv("CONFIG_PATH")); env != "" {
		return env
	}
	return defaultConfigPath
}

// LoadConfig reads and validates the YAML config file.
func LoadConfig(path string) (*Config, error) {
	payload, errRead := os.ReadFile(path)
	if errRead != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, errRead)
	}

	cfg := &Config{}
	if errUnmarshal := yaml.Unmarshal(payload, cfg); errUnmarshal != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
	}
	applyDefaults(cfg)

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, fmt.Errorf("config: %s: database.dsn is required", path)
	}
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return nil, fmt.Errorf("config: %s: jwt.secret is required", path)
	}
	return cfg, nil
}

// LoadDatabaseDSN loads only the database DSN, for migrate-only runs.
func LoadDatabaseDSN(path string) (string, error) {
	cfg, errLoad := LoadConfig(path)
	if errLoad != nil {
		return "", errLoad
	}
	return cfg.Database.DSN, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8318
	}
	if cfg.JWT.Expiry <= 0 {
		cfg.JWT.Expiry = Duration(24 * time.Hour)
	}
	if cfg.JWT.AdminExpiry <= 0 {
		cfg.JWT.AdminExpiry = Duration(2 * time.Hour)
	}
	if strings.TrimSpace(cfg.JWT.AdminSecret) == "" {
		cfg.JWT.AdminSecret = cfg.JWT.Secret
	}
	if strings.TrimSpace(cfg.Session.AnonSecret) == "" {
		// Anonymized keys only need to be stable within one deployment,
		// so deriving from the JWT secret is an acceptable default.
		cfg.Session.AnonSecret = cfg.JWT.Secret
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.MaxSizeMB <= 0 {
		cfg.Logging.MaxSizeMB = 100
	}
	if cfg.Logging.MaxBackups <= 0 {
		cfg.Logging.MaxBackups = 3
	}
	if cfg.Logging.MaxAgeDays <= 0 {
		cfg.Logging.MaxAgeDays = 28
	}
}
