package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/finsearch/pkg/database"
)

const (
	tagKeyPrefix  = "tag:"
	lockKeyPrefix = "lock:"

	fieldValue    = "value"
	fieldModified = "modified"
)

// releaseScript deletes a lock only if it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore is a Store shared by every process using the same Redis.
// Entries are hashes holding the value and the save time; tags are sets of
// keys.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Test(ctx context.Context, key string) (_ time.Time, _ bool, err error) {
	ctx, end := database.TraceCommand(ctx, "CacheTest", key)
	defer func() { end(err) }()

	raw, err := s.client.HGet(ctx, key, fieldModified).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis test %s: %w", key, err)
	}

	nanos, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis test %s: bad timestamp %q: %w", key, raw, err)
	}
	return time.Unix(0, nanos), true, nil
}

func (s *RedisStore) Touch(ctx context.Context, key string, extra time.Duration) (err error) {
	ctx, end := database.TraceCommand(ctx, "CacheTouch", key)
	defer func() { end(err) }()

	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis touch %s: %w", key, err)
	}
	// Negative values mean the key is missing or has no expiry.
	if ttl <= 0 {
		return nil
	}
	if err := s.client.PExpire(ctx, key, ttl+extra).Err(); err != nil {
		return fmt.Errorf("redis touch %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Save(ctx context.Context, key string, value []byte, tags []string, lifetime time.Duration) (err error) {
	ctx, end := database.TraceCommand(ctx, "CacheSave", key)
	defer func() { end(err) }()

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			fieldValue, value,
			fieldModified, strconv.FormatInt(time.Now().UnixNano(), 10),
		)
		pipe.PExpire(ctx, key, lifetime)
		for _, tag := range tags {
			pipe.SAdd(ctx, tagKeyPrefix+tag, key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, key string) (_ []byte, _ bool, err error) {
	ctx, end := database.TraceCommand(ctx, "CacheLoad", key)
	defer func() { end(err) }()

	data, err := s.client.HGet(ctx, key, fieldValue).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis load %s: %w", key, err)
	}
	return data, true, nil
}

// CleanTag deletes every key saved under tag together with the tag set.
func (s *RedisStore) CleanTag(ctx context.Context, tag string) (err error) {
	tagKey := tagKeyPrefix + tag
	ctx, end := database.TraceCommand(ctx, "CacheCleanTag", tagKey)
	defer func() { end(err) }()

	keys, err := s.client.SMembers(ctx, tagKey).Result()
	if err != nil {
		return fmt.Errorf("redis clean tag %s: %w", tag, err)
	}
	if err := s.client.Del(ctx, append(keys, tagKey)...).Err(); err != nil {
		return fmt.Errorf("redis clean tag %s: %w", tag, err)
	}
	return nil
}

// Lock takes a SET NX lease on key that expires after ttl.
func (s *RedisStore) Lock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	lockKey := lockKeyPrefix + key
	token := uuid.NewString()

	ok, err := s.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, s.client, []string{lockKey}, token).Err(); err != nil {
			return fmt.Errorf("redis unlock %s: %w", key, err)
		}
		return nil
	}
	return release, true, nil
}
