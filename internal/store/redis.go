package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the snapshot as a JSON string under one key, and recent
// saves in a capped list under key + ":history".
type RedisStore struct {
	rc      *redis.Client
	key     string
	history int
}

// OpenRedis opens a client. It returns nil when addr is empty.
func OpenRedis(addr, pass string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})
}

// NewRedisStore creates a store on rc.
func NewRedisStore(rc *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultKey
	}
	return &RedisStore{rc: rc, key: key, history: DefaultHistory}
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.rc.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("pinging redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context) (*Snapshot, error) {
	data, err := s.rc.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot from redis: %w", err)
	}
	return decode(data)
}

func (s *RedisStore) Save(ctx context.Context, snap *Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	hkey := s.historyKey()
	_, err = s.rc.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key, data, 0)
		pipe.LPush(ctx, hkey, data)
		pipe.LTrim(ctx, hkey, 0, int64(s.history-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving snapshot to redis: %w", err)
	}
	return nil
}

func (s *RedisStore) History(ctx context.Context, limit int) ([]*Snapshot, error) {
	if limit <= 0 || limit > s.history {
		limit = s.history
	}
	values, err := s.rc.LRange(ctx, s.historyKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("loading snapshot history from redis: %w", err)
	}
	out := make([]*Snapshot, 0, len(values))
	for _, v := range values {
		snap, err := decode([]byte(v))
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

func (s *RedisStore) historyKey() string {
	return s.key + ":history"
}

// Close releases the client.
func (s *RedisStore) Close() error {
	return s.rc.Close()
}
