package state

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "clipforge:task:"

// RedisStore keeps one Redis hash per task. Redis stores every field as
// text, so values are stringified on write and restored to their original
// scalar/composite types on read.
type RedisStore struct {
	rdb redis.Cmdable
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore connects and pings the server so a misconfigured address
// fails at startup rather than mid-task.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: redis ping: %v", ErrUnavailable, err)
	}

	return &RedisStore{rdb: client}, nil
}

// NewRedisStoreWithClient wraps an existing client, mainly for tests.
func NewRedisStoreWithClient(rdb redis.Cmdable) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func taskKey(id string) string {
	return redisKeyPrefix + id
}

func (s *RedisStore) Update(id string, state int, progress int, fields map[string]any) error {
	if progress > 100 {
		progress = 100
	}

	merged := map[string]any{
		"state":    state,
		"progress": progress,
	}
	for k, v := range fields {
		merged[k] = v
	}

	ctx := context.Background()
	hk := taskKey(id)
	for field, value := range merged {
		if err := s.rdb.HSet(ctx, hk, field, encodeValue(value)).Err(); err != nil {
			return fmt.Errorf("%w: hset %s.%s: %v", ErrUnavailable, id, field, err)
		}
	}
	return nil
}

func (s *RedisStore) Get(id string) (map[string]any, error) {
	ctx := context.Background()
	data, err := s.rdb.HGetAll(ctx, taskKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: hgetall %s: %v", ErrUnavailable, id, err)
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}

	rec := make(map[string]any, len(data))
	for k, v := range data {
		rec[k] = decodeValue(v)
	}
	return rec, nil
}

func (s *RedisStore) Delete(id string) error {
	if err := s.rdb.Del(context.Background(), taskKey(id)).Err(); err != nil {
		return fmt.Errorf("%w: del %s: %v", ErrUnavailable, id, err)
	}
	return nil
}

// encodeValue renders a field value as text. Composite values become JSON so
// decodeValue can restore them.
func encodeValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case int, int32, int64, uint, uint32, uint64, float32, float64, bool:
		return fmt.Sprint(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// decodeValue restores a stored field to its original type: a structured
// literal first, else an integer when the text is all digits, else raw text.
func decodeValue(s string) any {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return v
		}
	}
	if isInteger(trimmed) {
		if n, err := strconv.Atoi(trimmed); err == nil {
			return n
		}
	}
	return s
}

func isInteger(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '-' {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
