package settings

import (
	"context"
	"fmt"
)

// Backend names a Store implementation.
type Backend string

const (
	MemoryBackend   Backend = "memory"
	FileBackend     Backend = "file"
	RedisBackend    Backend = "redis"
	SQLiteBackend   Backend = "sqlite"
	PostgresBackend Backend = "postgres"
)

// Config selects and configures a Store. It decodes from the "settings"
// section of the CLI config.
type Config struct {
	Backend Backend `mapstructure:"backend"`
	// Path is the settings file of the file backend and the database file
	// of the sqlite backend.
	Path string `mapstructure:"path"`
	// URL is the postgres connection string.
	URL    string      `mapstructure:"url"`
	Table  string      `mapstructure:"table"`
	Redis  RedisConfig `mapstructure:"redis"`
	Prefix string      `mapstructure:"prefix"`
}

// DefaultConfig returns a file backend writing settings.yml.
func DefaultConfig() Config {
	return Config{
		Backend: FileBackend,
		Path:    "settings.yml",
		Table:   "settings",
		Redis:   RedisConfig{Addr: "localhost:6379"},
		Prefix:  "objectmodel:",
	}
}

// Validate checks that the selected backend has what it needs.
func (c Config) Validate() error {
	switch c.Backend {
	case "", MemoryBackend:
	case FileBackend, SQLiteBackend:
		if c.Path == "" {
			return fmt.Errorf("settings.path is required for the %s backend", c.Backend)
		}
	case RedisBackend:
		if c.Redis.Addr == "" {
			return fmt.Errorf("settings.redis.addr is required for the redis backend")
		}
	case PostgresBackend:
		if c.URL == "" {
			return fmt.Errorf("settings.url is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown settings backend %q", c.Backend)
	}
	return nil
}

// Open creates the Store described by c.
func Open(ctx context.Context, c Config) (Store, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	switch c.Backend {
	case FileBackend:
		return NewFileStore(c.Path)
	case RedisBackend:
		return NewRedisStore(c.Redis, c.Prefix)
	case SQLiteBackend:
		return OpenSQLStore(ctx, "sqlite3", c.Path, c.Table)
	case PostgresBackend:
		return OpenSQLStore(ctx, "pgx", c.URL, c.Table)
	}
	return NewMemoryStore(), nil
}
