package outcome

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/model"
)

const (
	entryKeyPrefix = "runlog:"
	scopeKeyPrefix = "runlog:scope:"
	timeIndexKey   = "runlog:by_time"

	// scopeListCap bounds the per-scope recent list; history windows are far smaller
	scopeListCap = 500
)

// RedisStore keeps each entry as JSON under runlog:<id>, a capped recent list
// per scope and a sorted set indexed by creation time. Needs Redis 6.0.6+ for
// LPOS.
type RedisStore struct {
	redis *redis.Client
}

func NewRedisStore(redisClient *redis.Client) *RedisStore {
	return &RedisStore{redis: redisClient}
}

func entryKey(id string) string { return entryKeyPrefix + id }

func scopeKey(scope model.Scope) string { return scopeKeyPrefix + scope.String() }

// saveScript writes the entry and its indexes in one atomic step. The scope
// list is only pushed when the id is missing from it, so an update also
// repairs an entry whose first write never got indexed.
var saveScript = redis.NewScript(`
redis.call('SET', KEYS[1], ARGV[1])
if not redis.call('LPOS', KEYS[2], ARGV[2]) then
	redis.call('LPUSH', KEYS[2], ARGV[2])
	redis.call('LTRIM', KEYS[2], 0, tonumber(ARGV[4]) - 1)
end
redis.call('ZADD', KEYS[3], ARGV[3], ARGV[2])
return 1
`)

func (s *RedisStore) Save(ctx context.Context, e *model.RunLogEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	keys := []string{entryKey(e.ID), scopeKey(e.Scope()), timeIndexKey}
	err = saveScript.Run(ctx, s.redis, keys, data, e.ID, e.CreatedAt.UnixMilli(), scopeListCap).Err()
	if err != nil {
		return fmt.Errorf("failed to save entry: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*model.RunLogEntry, error) {
	data, err := s.redis.Get(ctx, entryKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	var e model.RunLogEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("corrupt entry %s: %w", id, err)
	}
	return &e, nil
}

func (s *RedisStore) Recent(ctx context.Context, scope model.Scope, limit int) ([]model.RunLogEntry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := s.redis.LRange(ctx, scopeKey(scope), 0, stop).Result()
	if err != nil {
		return nil, err
	}
	return s.load(ctx, ids)
}

func (s *RedisStore) Between(ctx context.Context, from, to time.Time) ([]model.RunLogEntry, error) {
	ids, err := s.redis.ZRangeByScore(ctx, timeIndexKey, &redis.ZRangeBy{
		Min: strconv.FormatInt(from.UnixMilli(), 10),
		Max: "(" + strconv.FormatInt(to.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}
	return s.load(ctx, ids)
}

func (s *RedisStore) load(ctx context.Context, ids []string) ([]model.RunLogEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = entryKey(id)
	}
	vals, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]model.RunLogEntry, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var e model.RunLogEntry
		if err := json.Unmarshal([]byte(str), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Close is a no-op; the Redis client is shared and closed by its owner
func (s *RedisStore) Close() error { return nil }
