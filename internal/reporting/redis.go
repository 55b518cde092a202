package reporting

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// DefaultJournalKey is the Redis list the outcomes are pushed to.
const DefaultJournalKey = "wallet-checkout:outcomes"

// RedisJournal stores entries as JSON in a capped Redis list.
type RedisJournal struct {
	client redis.Cmdable
	key    string
	max    int64
}

// NewRedisClient opens a client; the connection is checked with Ping.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, "redis ping %s", addr)
	}
	return rdb, nil
}

// NewRedisJournal keeps at most max entries under key; max <= 0 means
// unbounded.
func NewRedisJournal(client redis.Cmdable, key string, max int64) *RedisJournal {
	if key == "" {
		key = DefaultJournalKey
	}
	return &RedisJournal{client: client, key: key, max: max}
}

func (j *RedisJournal) Append(ctx context.Context, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "marshal journal entry")
	}
	pipe := j.client.TxPipeline()
	pipe.RPush(ctx, j.key, raw)
	if j.max > 0 {
		pipe.LTrim(ctx, j.key, -j.max, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrapf(err, "redis append to %s", j.key)
	}
	return nil
}

func (j *RedisJournal) List(ctx context.Context) ([]Entry, error) {
	raws, err := j.client.LRange(ctx, j.key, 0, -1).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "redis LRANGE %s", j.key)
	}
	entries := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, errors.Wrap(err, "decode journal entry")
		}
		entries = append(entries, e)
	}
	return entries, nil
}
