package cache

import (
	"bytes"
	"context"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

const boltBucket = "kevfeed"

// BoltDB keeps entries in one bucket of a bbolt file.
type BoltDB struct {
	conn *bolt.DB
}

func OpenBoltDB(path string) (*BoltDB, error) {
	if path == "" {
		return nil, errors.New("boltdb cache requires a path")
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "create bucket:%q if not exists", boltBucket)
	}
	return &BoltDB{conn: db}, nil
}

func (b *BoltDB) Get(_ context.Context, key string) ([]byte, error) {
	var v []byte
	if err := b.conn.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(boltBucket))
		if bkt == nil {
			return errors.Errorf("bucket:%q is not exists", boltBucket)
		}
		// Values are only valid for the life of the transaction.
		if bs := bkt.Get([]byte(key)); bs != nil {
			v = bytes.Clone(bs)
		}
		return nil
	}); err != nil {
		return nil, errors.WithStack(err)
	}
	if v == nil {
		return nil, ErrNotFound
	}
	return v, nil
}

func (b *BoltDB) Put(_ context.Context, key string, value []byte) error {
	return b.conn.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists([]byte(boltBucket))
		if err != nil {
			return errors.Wrapf(err, "create bucket:%q if not exists", boltBucket)
		}
		if err := bkt.Put([]byte(key), value); err != nil {
			return errors.Wrapf(err, "put %s:%s", boltBucket, key)
		}
		return nil
	})
}

func (b *BoltDB) Close() error {
	if b.conn == nil {
		return nil
	}
	return b.conn.Close()
}
