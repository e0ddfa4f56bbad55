package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/fazecat/triggerdesk/Internal/strategy/triggers"
)

const fileName = "config.yaml"

type Config struct {
	Broker     BrokerConfig     `yaml:"broker"`
	MarketData MarketDataConfig `yaml:"market_data"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Triggers   TriggerConfig    `yaml:"triggers"`
	Scan       ScanConfig       `yaml:"scan"`
	Export     ExportConfig     `yaml:"export"`
	API        APIConfig        `yaml:"api"`
	Log        LogConfig        `yaml:"log"`

	path string
}

type BrokerConfig struct {
	BaseURL   string `yaml:"base_url" default:"https://paper-api.alpaca.markets" validate:"required,url"`
	APIKey    string `yaml:"-"`
	APISecret string `yaml:"-"`
}

type MarketDataConfig struct {
	Feed         string `yaml:"feed" default:"iex" validate:"oneof=iex sip"`
	Timeframe    string `yaml:"timeframe" default:"1Day" validate:"oneof=1Min 5Min 15Min 1Hour 1Day"`
	LookbackDays int    `yaml:"lookback_days" default:"120" validate:"min=5"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host" default:"localhost" validate:"required"`
	Port     int    `yaml:"port" default:"5432" validate:"min=1,max=65535"`
	User     string `yaml:"user" default:"postgres" validate:"required"`
	Password string `yaml:"-"`
	Name     string `yaml:"name" default:"triggerdesk" validate:"required"`
	SSLMode  string `yaml:"sslmode" default:"disable" validate:"oneof=disable require verify-ca verify-full"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr" default:"localhost:6379" validate:"required_if=Enabled true"`
	Password string        `yaml:"-"`
	DB       int           `yaml:"db" validate:"min=0"`
	TTL      time.Duration `yaml:"ttl" default:"6h"`
	Prefix   string        `yaml:"prefix" default:"triggerdesk"`
}

type TriggerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval" default:"30s" validate:"min=1s"`
	SettleDelay  time.Duration `yaml:"settle_delay" default:"2s"`
	SellOffStart string        `yaml:"selloff_start" default:"15:45" validate:"required"`
	SellOffEnd   string        `yaml:"selloff_end" default:"16:00" validate:"required"`
	Timezone     string        `yaml:"timezone" default:"America/New_York"`
	AutoStart    bool          `yaml:"auto_start"`
}

type ScanConfig struct {
	UniverseFile string `yaml:"universe_file" default:"universe.csv"`
	HistoryDays  int    `yaml:"history_days" default:"120" validate:"min=5"`
}

type ExportConfig struct {
	Dir          string  `yaml:"dir" default:"."`
	MinBearScore float64 `yaml:"min_bear_score" validate:"min=0"`
}

type APIConfig struct {
	Port      int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
	TokenTTL  time.Duration `yaml:"token_ttl" default:"24h"`
	JWTSecret string        `yaml:"-"`
	AdminKey  string        `yaml:"-"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"console" validate:"oneof=console json"`
	Output string `yaml:"output" default:"stdout" validate:"required"`
}

var validate = validator.New()

// LoadConfig looks for config.yaml next to this package, under the working
// directory, then in the working directory itself. A missing file is not an
// error: defaults and environment variables are enough to run.
func LoadConfig() (*Config, error) {
	for _, path := range candidatePaths() {
		if _, err := os.Stat(path); err == nil {
			return LoadFrom(path)
		}
	}
	return LoadFrom("")
}

func candidatePaths() []string {
	var paths []string
	if _, filePath, _, ok := runtime.Caller(0); ok {
		paths = append(paths, filepath.Join(filepath.Dir(filePath), fileName))
	}
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, "Internal", "utils", "config", fileName))
	}
	return append(paths, fileName)
}

// LoadFrom reads path (skipped when empty), fills defaults, applies secrets
// from the environment and validates the result.
func LoadFrom(path string) (*Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg.path = path
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.Broker.APIKey = os.Getenv("ALPACA_API_KEY")
	c.Broker.APISecret = os.Getenv("ALPACA_API_SECRET")
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		c.Broker.BaseURL = v
	}

	if v := os.Getenv("DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			c.Database.Port = port
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.Database.Name = v
	}
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		c.Database.SSLMode = v
	}
	c.Database.Password = os.Getenv("DB_PASSWORD")

	c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	c.API.JWTSecret = os.Getenv("JWT_SECRET_KEY")
	c.API.AdminKey = os.Getenv("API_ADMIN_KEY")
}

// Validate checks struct tags and that the sell-off window parses.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("validate config: %s failed on %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("validate config: %w", err)
	}
	if _, err := c.SellOffWindow(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

func (c *Config) SellOffWindow() (triggers.Window, error) {
	return triggers.ParseWindow(c.Triggers.SellOffStart, c.Triggers.SellOffEnd, c.Triggers.Timezone)
}

// DSN is the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// Path is the file the config was read from, empty when running on defaults.
func (c *Config) Path() string {
	return c.path
}
