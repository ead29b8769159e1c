package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect selects the SQL flavour of a SQLStore.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// DialectFor returns the dialect of a database/sql driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite3":
		return SQLite, nil
	case "pgx", "postgres":
		return Postgres, nil
	}
	return 0, fmt.Errorf("unsupported settings driver %q", driver)
}

func (d Dialect) bind(n int) string {
	if d == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// SQLStore keeps settings in a two column table of JSON values.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	table   string
	owned   bool
}

// OpenSQLStore opens a database with driver ("sqlite3", "pgx" or
// "postgres") and prepares the settings table.
func OpenSQLStore(ctx context.Context, driver, dsn, table string) (*SQLStore, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open settings database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to settings database: %w", err)
	}
	s, err := NewSQLStore(ctx, db, dialect, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewSQLStore uses db and creates table when it does not exist. Close does
// not close db.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect Dialect, table string) (*SQLStore, error) {
	if table == "" {
		table = "settings"
	}
	s := &SQLStore{db: db, dialect: dialect, table: pq.QuoteIdentifier(table)}
	if err := s.createTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to create settings table: %w", err)
	}
	return s, nil
}

func (s *SQLStore) createTable(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		setting_key VARCHAR(512) PRIMARY KEY,
		setting_value TEXT NOT NULL
	)`, s.table)
	_, err := s.db.ExecContext(ctx, query)
	return err
}

func (s *SQLStore) Get(ctx context.Context, key string) (any, error) {
	query := fmt.Sprintf("SELECT setting_value FROM %s WHERE setting_key = %s", s.table, s.dialect.bind(1))
	var data string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database query error: %w", err)
	}
	return decodeValue([]byte(data))
}

func (s *SQLStore) Set(ctx context.Context, key string, value any) error {
	data, err := encodeValue(value)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s (setting_key, setting_value) VALUES (%s, %s)
		ON CONFLICT (setting_key) DO UPDATE SET setting_value = excluded.setting_value`,
		s.table, s.dialect.bind(1), s.dialect.bind(2))
	if _, err := s.db.ExecContext(ctx, query, key, string(data)); err != nil {
		return fmt.Errorf("failed to save setting: %w", err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE setting_key = %s", s.table, s.dialect.bind(1))
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete setting: %w", err)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *SQLStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	query := fmt.Sprintf(`SELECT setting_key FROM %s WHERE setting_key LIKE %s ESCAPE '\' ORDER BY setting_key`,
		s.table, s.dialect.bind(1))
	rows, err := s.db.QueryContext(ctx, query, likeEscaper.Replace(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("database query error: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Sync is a no-op, every write is its own statement.
func (s *SQLStore) Sync(context.Context) error {
	return nil
}

func (s *SQLStore) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}
