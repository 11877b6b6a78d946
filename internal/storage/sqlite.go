package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	sqldblogger "github.com/simukti/sqldb-logger"
	"github.com/simukti/sqldb-logger/logadapter/zerologadapter"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"go.opentelemetry.io/otel"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// SQLiteStore persists key-value entries in a local sqlite file, the
// durable-store analog of browser local storage.
type SQLiteStore struct {
	db *sql.DB
	qb squirrel.StatementBuilderType
}

type SQLiteStoreConfig struct {
	Path           string
	MigrationsPath string
}

func NewSQLiteStore(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	path := cfg.Path
	if path == "" {
		path = os.Getenv("DATABASE_PATH")
	}
	if path == "" {
		path = "taskvault.db"
	}

	migrationsPath := cfg.MigrationsPath
	if migrationsPath == "" {
		migrationsPath = os.Getenv("MIGRATIONS_PATH")
	}
	if migrationsPath == "" {
		migrationsPath = "db/migrations"
	}

	migrationDB, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}

	if err := runMigrations(migrationDB, migrationsPath); err != nil {
		migrationDB.Close()
		return nil, err
	}
	migrationDB.Close()

	sqlDB, err := otelsql.Open("sqlite3", path,
		otelsql.WithDBSystem("sqlite"),
		otelsql.WithDBName("taskvault"),
		otelsql.WithTracerProvider(otel.GetTracerProvider()),
	)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	logger := zerolog.New(os.Stdout)
	db := sqldblogger.OpenDriver(path, sqlDB.Driver(), zerologadapter.New(logger))

	return &SQLiteStore{
		db: db,
		qb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

func runMigrations(db *sql.DB, migrationsPath string) error {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://"+migrationsPath,
		"sqlite3",
		driver,
	)
	if err != nil {
		return fmt.Errorf("create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Get(key string) (string, error) {
	query, args, err := s.qb.
		Select("value").
		From("kv_entries").
		Where(squirrel.Eq{"key": key}).
		Limit(1).
		ToSql()
	if err != nil {
		return "", err
	}

	var value string
	err = s.db.QueryRow(query, args...).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", translateSQLiteError(err)
	}

	return value, nil
}

func (s *SQLiteStore) Set(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO kv_entries (key, value, updated_at) VALUES (?, ?, ?) "+
			"ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at",
		key, value, time.Now().UTC(),
	)

	return translateSQLiteError(err)
}

func (s *SQLiteStore) Remove(key string) error {
	query, args, err := s.qb.
		Delete("kv_entries").
		Where(squirrel.Eq{"key": key}).
		ToSql()
	if err != nil {
		return err
	}

	_, err = s.db.Exec(query, args...)
	return translateSQLiteError(err)
}

func (s *SQLiteStore) Keys(prefix string) ([]string, error) {
	query, args, err := s.qb.
		Select("key").
		From("kv_entries").
		Where(squirrel.Like{"key": prefix + "%"}).
		OrderBy("key").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, translateSQLiteError(err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func translateSQLiteError(err error) error {
	if err == nil {
		return nil
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrFull {
		return ErrQuotaExceeded
	}

	return err
}
