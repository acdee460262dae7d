package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces attempt sets in Redis.
const KeyPrefix = "rate_limit_"

// RedisStore keeps attempts in a Redis sorted set per key, scored by
// Unix milliseconds, so limits hold across server instances.
type RedisStore struct {
	client *redis.Client
}

var _ AttemptStore = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// addIfBelowScript prunes the set, then adds ARGV[5] at score ARGV[1] when
// fewer than ARGV[4] members remain. It returns {added, {member, score, ...}}.
var addIfBelowScript = redis.NewScript(`
local key = KEYS[1]
redis.call('ZREMRANGEBYSCORE', key, '-inf', ARGV[2])
local added = 0
if redis.call('ZCARD', key) < tonumber(ARGV[4]) then
	redis.call('ZADD', key, ARGV[1], ARGV[5])
	redis.call('PEXPIRE', key, ARGV[3])
	added = 1
end
return {added, redis.call('ZRANGE', key, 0, -1, 'WITHSCORES')}
`)

// RedisKey returns the sorted-set key for an attempt key.
func RedisKey(key string) string { return KeyPrefix + key }

func (r *RedisStore) Attempts(ctx context.Context, key string, since time.Time) ([]time.Time, error) {
	scores, err := r.client.ZRangeByScoreWithScores(ctx, RedisKey(key), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis zrangebyscore")
	}

	out := make([]time.Time, len(scores))
	for i, z := range scores {
		out[i] = time.UnixMilli(int64(z.Score))
	}
	return out, nil
}

func (r *RedisStore) Add(ctx context.Context, key string, at time.Time, window time.Duration) error {
	k := RedisKey(key)
	cutoff := at.Add(-window).UnixMilli()

	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, k, redis.Z{Score: float64(at.UnixMilli()), Member: ulid.Make().String()})
		p.ZRemRangeByScore(ctx, k, "-inf", strconv.FormatInt(cutoff, 10))
		p.PExpire(ctx, k, window)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "redis add attempt")
	}
	return nil
}

func (r *RedisStore) AddIfBelow(ctx context.Context, key string, at time.Time, window time.Duration, limit int) (bool, []time.Time, error) {
	res, err := addIfBelowScript.Run(ctx, r.client, []string{RedisKey(key)},
		at.UnixMilli(),
		at.Add(-window).UnixMilli(),
		window.Milliseconds(),
		limit,
		ulid.Make().String(),
	).Slice()
	if err != nil {
		return false, nil, errors.Wrap(err, "redis add attempt")
	}
	if len(res) != 2 {
		return false, nil, errors.Newf("redis add attempt: unexpected reply %v", res)
	}

	added, _ := res[0].(int64)
	pairs, _ := res[1].([]interface{})
	out := make([]time.Time, 0, len(pairs)/2)
	for i := 1; i < len(pairs); i += 2 {
		raw, _ := pairs[i].(string)
		score, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return false, nil, errors.Wrapf(err, "redis add attempt: score %q", raw)
		}
		out = append(out, time.UnixMilli(int64(score)))
	}
	return added == 1, out, nil
}

func (r *RedisStore) Clear(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, RedisKey(key)).Err(); err != nil {
		return errors.Wrap(err, "redis del")
	}
	return nil
}
