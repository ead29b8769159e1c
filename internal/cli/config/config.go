package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conduit-lang/objectmodel/runtime/loop"
	"github.com/conduit-lang/objectmodel/runtime/model"
	"github.com/conduit-lang/objectmodel/runtime/settings"
)

// Config represents the omctl configuration
type Config struct {
	Model    ModelConfig     `mapstructure:"model"`
	Settings settings.Config `mapstructure:"settings"`
	Server   ServerConfig    `mapstructure:"server"`
}

// ModelConfig configures the list models built by omctl
type ModelConfig struct {
	// ItemDataChangedDelay is next_tick, immediate, interval or a duration.
	ItemDataChangedDelay    string        `mapstructure:"item_data_changed_delay"`
	ItemDataChangedInterval time.Duration `mapstructure:"item_data_changed_interval"`
	DataRoles               []string      `mapstructure:"data_roles"`
	ItemDataChangedRoles    []string      `mapstructure:"item_data_changed_roles"`
}

// ServerConfig represents feed server configuration
type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	Host      string `mapstructure:"host"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Schedule returns the configured ItemDataChanged schedule.
func (m ModelConfig) Schedule() (loop.Schedule, error) {
	policy, delay, err := loop.ParseDelay(m.ItemDataChangedDelay)
	if err != nil {
		return loop.Schedule{}, fmt.Errorf("model.item_data_changed_delay: %w", err)
	}
	return loop.Schedule{Policy: policy, Delay: delay, Interval: m.ItemDataChangedInterval}, nil
}

// ListOptions converts the model section into list options.
func (m ModelConfig) ListOptions() ([]model.Option, error) {
	schedule, err := m.Schedule()
	if err != nil {
		return nil, err
	}
	opts := []model.Option{model.WithItemDataChangedSchedule(schedule)}
	if len(m.DataRoles) > 0 {
		opts = append(opts, model.WithDataRoles(m.DataRoles))
	}
	if len(m.ItemDataChangedRoles) > 0 {
		opts = append(opts, model.WithItemDataChangedRoles(m.ItemDataChangedRoles))
	}
	return opts, nil
}

// Load loads the configuration from objectmodel.yml in the current directory
func Load() (*Config, error) {
	return LoadFrom(".")
}

// LoadFrom loads objectmodel.yml from dir. Environment variables prefixed
// with OBJECTMODEL_ override file values.
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()

	defaults := settings.DefaultConfig()

	// Set defaults
	v.SetDefault("model.item_data_changed_delay", "next_tick")
	v.SetDefault("model.item_data_changed_interval", "0s")
	v.SetDefault("settings.backend", string(defaults.Backend))
	v.SetDefault("settings.path", defaults.Path)
	v.SetDefault("settings.url", "")
	v.SetDefault("settings.table", defaults.Table)
	v.SetDefault("settings.prefix", defaults.Prefix)
	v.SetDefault("settings.redis.addr", defaults.Redis.Addr)
	v.SetDefault("settings.redis.password", "")
	v.SetDefault("settings.redis.db", 0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.jwt_secret", "")

	// Set config name and paths
	v.SetConfigName("objectmodel")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	// Enable environment variable support
	v.SetEnvPrefix("OBJECTMODEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if _, err := cfg.Model.Schedule(); err != nil {
		return err
	}
	if cfg.Model.ItemDataChangedInterval < 0 {
		return fmt.Errorf("model.item_data_changed_interval must not be negative, got: %s", cfg.Model.ItemDataChangedInterval)
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got: %d", cfg.Server.Port)
	}
	if err := cfg.Settings.Validate(); err != nil {
		return err
	}
	return nil
}
