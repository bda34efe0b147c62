package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix         = "verification:"
	attemptsKeyPrefix = "verification:attempts:"
)

// consumeScript returns 1 on a match, 0 on a counted mismatch, -1 when no
// code exists and -2 when the mismatch used up the last attempt.
var consumeScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
	return -1
end
if cjson.decode(raw).code == ARGV[1] then
	redis.call('DEL', KEYS[1], KEYS[2])
	return 1
end
local attempts = redis.call('INCR', KEYS[2])
if attempts == 1 then
	local ttl = redis.call('PTTL', KEYS[1])
	if ttl > 0 then
		redis.call('PEXPIRE', KEYS[2], ttl)
	end
end
if attempts >= tonumber(ARGV[2]) then
	redis.call('DEL', KEYS[1], KEYS[2])
	return -2
end
return 0
`)

// RedisStore keeps codes in Redis with a native per-key TTL, so every API
// instance sees the same codes.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Save(ctx context.Context, phone string, code Code, ttl time.Duration) error {
	data, err := json.Marshal(code)
	if err != nil {
		return fmt.Errorf("failed to marshal verification code: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, keyPrefix+phone, data, ttl)
		pipe.Del(ctx, attemptsKeyPrefix+phone)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store verification code: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, phone string) (Code, error) {
	data, err := s.rdb.Get(ctx, keyPrefix+phone).Bytes()
	if errors.Is(err, redis.Nil) {
		return Code{}, ErrCodeNotFound
	}
	if err != nil {
		return Code{}, fmt.Errorf("failed to read verification code: %w", err)
	}

	var code Code
	if err := json.Unmarshal(data, &code); err != nil {
		return Code{}, fmt.Errorf("failed to decode verification code: %w", err)
	}
	return code, nil
}

func (s *RedisStore) Consume(ctx context.Context, phone, candidate string, maxAttempts int) error {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	keys := []string{keyPrefix + phone, attemptsKeyPrefix + phone}

	res, err := consumeScript.Run(ctx, s.rdb, keys, candidate, maxAttempts).Int()
	if err != nil {
		return fmt.Errorf("failed to consume verification code: %w", err)
	}
	switch res {
	case 1:
		return nil
	case 0:
		return ErrCodeMismatch
	case -2:
		return ErrTooManyAttempts
	default:
		return ErrCodeNotFound
	}
}

func (s *RedisStore) Delete(ctx context.Context, phone string) (bool, error) {
	var codeDel *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		codeDel = pipe.Del(ctx, keyPrefix+phone)
		pipe.Del(ctx, attemptsKeyPrefix+phone)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete verification code: %w", err)
	}
	return codeDel.Val() > 0, nil
}
