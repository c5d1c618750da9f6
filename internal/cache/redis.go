package cache

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/redis/rueidis"
)

// redis: STRING KEY: <key> VALUE: raw snapshot bytes

// Redis keeps entries as plain strings in a Redis server.
type Redis struct {
	conn rueidis.Client
}

// OpenRedis connects to addr, which is either host:port or a redis:// URL.
func OpenRedis(addr string) (*Redis, error) {
	if addr == "" {
		return nil, errors.New("redis cache requires an address")
	}

	opt := rueidis.ClientOption{InitAddress: []string{addr}}
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := rueidis.ParseURL(addr)
		if err != nil {
			return nil, errors.Wrapf(err, "parse redis url")
		}
		opt = parsed
	}

	client, err := rueidis.NewClient(opt)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Redis{conn: client}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	bs, err := r.conn.Do(ctx, r.conn.B().Get().Key(key).Build()).AsBytes()
	if rueidis.IsRedisNil(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", key)
	}
	return bs, nil
}

func (r *Redis) Put(ctx context.Context, key string, value []byte) error {
	if err := r.conn.Do(ctx, r.conn.B().Set().Key(key).Value(rueidis.BinaryString(value)).Build()).Error(); err != nil {
		return errors.Wrapf(err, "SET %s", key)
	}
	return nil
}

func (r *Redis) Close() error {
	if r.conn == nil {
		return nil
	}
	r.conn.Close()
	return nil
}
