// Package cache provides the key-value capability the feed service keeps its
// upstream snapshot in.
package cache

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("cache: key not found")

// Store is a byte-oriented key-value store. Put overwrites; last writer wins.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

const (
	TypeMemory   = "memory"
	TypeSQLite3  = "sqlite3"
	TypePostgres = "postgres"
	TypeBoltDB   = "boltdb"
	TypeRedis    = "redis"
	TypeFile     = "file"
)

// Types lists the accepted values of Config.Type.
var Types = []string{TypeMemory, TypeSQLite3, TypePostgres, TypeBoltDB, TypeRedis, TypeFile}

// Config selects and locates a backend. Path is a file path for sqlite3,
// boltdb and file, a DSN for postgres and an address or redis:// URL for redis.
type Config struct {
	Type    string
	Path    string
	Options Options
}

type Options struct {
	RDB RDBConfig
	// Fs overrides the filesystem of the file backend.
	Fs afero.Fs
}

func (c Config) New() (Store, error) {
	switch strings.ToLower(c.Type) {
	case "", TypeMemory:
		return NewMemory(), nil
	case TypeSQLite3, TypePostgres:
		rc := c.Options.RDB
		if rc == (RDBConfig{}) {
			rc = DefaultRDBConfig()
		}
		return OpenRDB(strings.ToLower(c.Type), c.Path, rc)
	case TypeBoltDB:
		return OpenBoltDB(c.Path)
	case TypeRedis:
		return OpenRedis(c.Path)
	case TypeFile:
		fs := c.Options.Fs
		if fs == nil {
			if c.Path == "" {
				return nil, errors.New("file cache requires a directory path")
			}
			if err := afero.NewOsFs().MkdirAll(c.Path, 0o755); err != nil {
				return nil, errors.Wrapf(err, "create cache dir %s", c.Path)
			}
			fs = afero.NewBasePathFs(afero.NewOsFs(), c.Path)
		}
		return NewFile(fs), nil
	default:
		return nil, errors.Errorf("%s is not a supported cache type", c.Type)
	}
}
