package quota

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

const quotaKeyPrefix = "quota:daily:"

// Two days of retention: yesterday's key stays readable until every clock
// in the fleet has rolled over.
const quotaKeyTTL = 48 * time.Hour

// RedisStore implements Store on redis, keyed by account and UTC day so
// stale windows expire on their own. The recommended implementation when
// more than one instance serves traffic.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps a connected redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func key(account string, now time.Time) string {
	return quotaKeyPrefix + account + ":" + dayKey(now)
}

func (s *RedisStore) Spent(ctx context.Context, account string, now time.Time) (*big.Int, error) {
	raw, err := s.client.Get(ctx, key(account, now)).Result()
	if errors.Is(err, redis.Nil) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read daily quota: %w", err)
	}

	spent, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("malformed daily quota value %q", raw)
	}
	return spent, nil
}

// Add stores the new cumulative total. Read-modify-write is safe under the
// single-writer execution model; amounts exceed int64 so INCRBY is not an
// option.
func (s *RedisStore) Add(ctx context.Context, account string, amount *big.Int, now time.Time) error {
	spent, err := s.Spent(ctx, account, now)
	if err != nil {
		return err
	}
	spent.Add(spent, amount)

	if err := s.client.Set(ctx, key(account, now), spent.String(), quotaKeyTTL).Err(); err != nil {
		return fmt.Errorf("write daily quota: %w", err)
	}
	return nil
}
