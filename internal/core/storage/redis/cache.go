// Package redis keeps bucket rows in Redis: a lexicographic sorted-set index
// per table plus a hash holding the payloads.
package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/aevon-lab/aevon-rollup/internal/bucket"
)

const keyPrefix = "bucket:"

// Cache implements bucket.TableCache and bucket.Sink.
type Cache struct {
	client goredis.UniversalClient
}

// NewCache wraps an existing client.
func NewCache(client goredis.UniversalClient) *Cache {
	return &Cache{client: client}
}

// NewCacheFromAddrs creates a client for the given addresses.
func NewCacheFromAddrs(addrs []string, username, password string, db int) *Cache {
	return NewCache(goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:    addrs,
		Username: username,
		Password: password,
		DB:       db,
	}))
}

func indexKey(table string) string { return keyPrefix + table + ":idx" }
func rowsKey(table string) string  { return keyPrefix + table + ":rows" }

// lexRange returns the ZRANGEBYLEX bounds covering every member that starts
// with prefix.
func lexRange(prefix string) *goredis.ZRangeBy {
	if prefix == "" {
		return &goredis.ZRangeBy{Min: "-", Max: "+"}
	}
	return &goredis.ZRangeBy{Min: "[" + prefix, Max: "[" + prefix + "\xff"}
}

// Scan returns table rows whose key starts with prefix, in key order.
func (c *Cache) Scan(ctx context.Context, name, prefix string) ([]bucket.Entry, error) {
	keys, err := c.client.ZRangeByLex(ctx, indexKey(name), lexRange(prefix)).Result()
	if err != nil {
		return nil, fmt.Errorf("scan %s index: %w", name, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := c.client.HMGet(ctx, rowsKey(name), keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("scan %s rows: %w", name, err)
	}

	entries := make([]bucket.Entry, 0, len(keys))
	for i, k := range keys {
		v, ok := values[i].(string)
		if !ok {
			// indexed but evicted or not yet written
			continue
		}
		entries = append(entries, bucket.Entry{Key: k, Value: []byte(v)})
	}
	return entries, nil
}

// Send stores one row, replacing any previous payload for its key.
func (c *Cache) Send(ctx context.Context, topic string, key, value []byte) error {
	_, err := c.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, rowsKey(topic), string(key), value)
		pipe.ZAdd(ctx, indexKey(topic), goredis.Z{Score: 0, Member: string(key)})
		return nil
	})
	if err != nil {
		return fmt.Errorf("store %s/%s: %w", topic, key, err)
	}
	return nil
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}
