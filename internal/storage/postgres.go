package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/golang-migrate/migrate/v4"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// pgErrDiskFull is the Postgres class 53 code for exhausted disk space.
const pgErrDiskFull = "53100"

// PostgresStore is the server-backed KeyValueStore variant, for setups
// that keep the vault on a shared database instead of a local file.
type PostgresStore struct {
	pool *pgxpool.Pool
	qb   squirrel.StatementBuilderType
	ctx  context.Context
}

type PostgresStoreConfig struct {
	URL            string
	MigrationsPath string
}

func NewPostgresStore(cfg PostgresStoreConfig) (*PostgresStore, error) {
	url := cfg.URL
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open postgres store: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres store: %w", err)
	}

	if err := runPostgresMigrations(url, cfg.MigrationsPath); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool: pool,
		qb:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		ctx:  ctx,
	}, nil
}

func runPostgresMigrations(url, migrationsPath string) error {
	if migrationsPath == "" {
		migrationsPath = os.Getenv("MIGRATIONS_PATH")
	}
	if migrationsPath == "" {
		migrationsPath = "db/migrations"
	}

	sqlDB, err := sql.Open("pgx", url)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	driver, err := migratepostgres.WithInstance(sqlDB, &migratepostgres.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://"+migrationsPath,
		"postgres",
		driver,
	)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}

	return nil
}

func (s *PostgresStore) Get(key string) (string, error) {
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
	err = s.pool.QueryRow(s.ctx, query, args...).Scan(&value)

	if err != nil {
		return "", translatePostgresGetError(err)
	}

	return value, nil
}

func (s *PostgresStore) Set(key, value string) error {
	_, err := s.pool.Exec(s.ctx,
		"INSERT INTO kv_entries (key, value, updated_at) VALUES ($1, $2, $3) "+
			"ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at",
		key, value, time.Now().UTC(),
	)

	return translatePostgresError(err)
}

func (s *PostgresStore) Remove(key string) error {
	query, args, err := s.qb.
		Delete("kv_entries").
		Where(squirrel.Eq{"key": key}).
		ToSql()
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(s.ctx, query, args...)
	return translatePostgresError(err)
}

func (s *PostgresStore) Keys(prefix string) ([]string, error) {
	query, args, err := s.qb.
		Select("key").
		From("kv_entries").
		Where(squirrel.Like{"key": prefix + "%"}).
		OrderBy("key").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(s.ctx, query, args...)
	if err != nil {
		return nil, translatePostgresError(err)
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

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func translatePostgresGetError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrKeyNotFound
	}

	return translatePostgresError(err)
}

func translatePostgresError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgErrDiskFull {
		return ErrQuotaExceeded
	}

	return err
}
