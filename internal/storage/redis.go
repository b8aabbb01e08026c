package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/example/txnfold/internal/disputes"
)

// RedisStore keeps reserved ids and retained deposits in Redis so
// several processes can share one duplicate screen. Every key carries
// the store's prefix; independent folds never collide.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ TransactionStore = (*RedisStore)(nil)

// redisKeyTTL bounds how long run scratch state survives in Redis.
const redisKeyTTL = 24 * time.Hour

var setDisputeStateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], 'state', ARGV[1])
return 1
`)

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr, prefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis store: %w", err)
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) seenKey(id uint32) string {
	return fmt.Sprintf("%s:seen:%d", s.prefix, id)
}

func (s *RedisStore) depositKey(id uint32) string {
	return fmt.Sprintf("%s:deposit:%d", s.prefix, id)
}

func (s *RedisStore) ReserveTxID(ctx context.Context, id uint32) (bool, error) {
	fresh, err := s.client.SetNX(ctx, s.seenKey(id), 1, redisKeyTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve transaction id: %w", err)
	}
	return fresh, nil
}

func (s *RedisStore) PutDeposit(ctx context.Context, dep Deposit) error {
	key := s.depositKey(dep.TxID)
	err := s.client.HSet(ctx, key,
		"client", strconv.FormatUint(uint64(dep.Client), 10),
		"amount", dep.Amount.String(),
		"state", string(dep.State),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to retain deposit: %w", err)
	}
	if err := s.client.Expire(ctx, key, redisKeyTTL).Err(); err != nil {
		return fmt.Errorf("failed to set deposit expiry: %w", err)
	}
	return nil
}

func (s *RedisStore) GetDeposit(ctx context.Context, id uint32) (Deposit, bool, error) {
	vals, err := s.client.HGetAll(ctx, s.depositKey(id)).Result()
	if err != nil {
		return Deposit{}, false, fmt.Errorf("failed to load deposit: %w", err)
	}
	if len(vals) == 0 {
		return Deposit{}, false, nil
	}

	client, err := strconv.ParseUint(vals["client"], 10, 16)
	if err != nil {
		return Deposit{}, false, fmt.Errorf("corrupted client for transaction %d: %w", id, err)
	}
	amt, err := decimal.NewFromString(vals["amount"])
	if err != nil {
		return Deposit{}, false, fmt.Errorf("corrupted amount for transaction %d: %w", id, err)
	}
	state := disputes.State(vals["state"])
	if !disputes.Valid(state) {
		return Deposit{}, false, fmt.Errorf("corrupted dispute state %q for transaction %d", vals["state"], id)
	}

	return Deposit{
		TxID:   id,
		Client: uint16(client),
		Amount: amt,
		State:  state,
	}, true, nil
}

func (s *RedisStore) SetDisputeState(ctx context.Context, id uint32, state disputes.State) error {
	n, err := setDisputeStateScript.Run(ctx, s.client, []string{s.depositKey(id)}, string(state)).Int64()
	if err != nil {
		return fmt.Errorf("failed to update dispute state: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("no retained deposit for transaction %d", id)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
