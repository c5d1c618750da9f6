package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // sqlite embedded
	"github.com/pkg/errors"
)

// RDBConfig holds connection pool settings for the SQL backends.
type RDBConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultRDBConfig returns the default pool configuration.
func DefaultRDBConfig() RDBConfig {
	return RDBConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

type dialect struct {
	driver string
	schema string
	get    string
	put    string
}

var dialects = map[string]dialect{
	TypeSQLite3: {
		driver: "sqlite3",
		schema: `CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value BLOB NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`,
		get: "SELECT value FROM kv WHERE key = ?",
		put: `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
    ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
	},
	TypePostgres: {
		driver: "postgres",
		schema: `CREATE TABLE IF NOT EXISTS "kv" (
    "key" TEXT PRIMARY KEY,
    "value" BYTEA NOT NULL,
    "updated_at" TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`,
		get: `SELECT "value" FROM "kv" WHERE "key" = $1`,
		put: `INSERT INTO "kv" ("key", "value", "updated_at") VALUES ($1, $2, NOW())
    ON CONFLICT ("key") DO UPDATE SET "value" = EXCLUDED."value", "updated_at" = NOW()`,
	},
}

// RDB keeps entries in a single "kv" table of a SQLite or PostgreSQL database.
type RDB struct {
	db      *sql.DB
	dialect dialect
}

// OpenRDB opens the database, applies the pool config and creates the table.
// For sqlite3, path is a file name; for postgres, a connection string.
func OpenRDB(dbType, path string, cfg RDBConfig) (*RDB, error) {
	d, ok := dialects[dbType]
	if !ok {
		return nil, errors.Errorf("%s is not a supported database type", dbType)
	}
	if path == "" {
		return nil, errors.Errorf("%s cache requires a path", dbType)
	}

	dsn := path
	if dbType == TypeSQLite3 {
		dsn = fmt.Sprintf("%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL", path)
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", dbType)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "connect %s", dbType)
	}
	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create kv table")
	}

	return &RDB{db: db, dialect: d}, nil
}

func (r *RDB) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, r.dialect.get, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "select %s", key)
	}
	return value, nil
}

func (r *RDB) Put(ctx context.Context, key string, value []byte) error {
	if _, err := r.db.ExecContext(ctx, r.dialect.put, key, value); err != nil {
		return errors.Wrapf(err, "upsert %s", key)
	}
	return nil
}

func (r *RDB) Close() error {
	return r.db.Close()
}
