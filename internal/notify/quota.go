package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jonboulle/clockwork"

	"leakdesk/internal/apperr"
)

// Quota tracks the daily outbound mail budget. Consume takes one unit
// before a mutation is applied; Release hands back a unit whose message
// was never sent.
type Quota interface {
	Consume(ctx context.Context) error
	Release(ctx context.Context) error
}

func day(clock clockwork.Clock) string { return clock.Now().UTC().Format("2006-01-02") }

// RedisQuota keeps one counter per UTC day so that several daemons share
// the same budget.
type RedisQuota struct {
	rdb    redis.UniversalClient
	limit  int
	prefix string
	clock  clockwork.Clock
}

func NewRedisQuota(rdb redis.UniversalClient, limit int, clock clockwork.Clock) *RedisQuota {
	return &RedisQuota{rdb: rdb, limit: limit, prefix: "leakdesk:mail:", clock: clock}
}

func (q *RedisQuota) key() string { return q.prefix + day(q.clock) }

func (q *RedisQuota) Remaining(ctx context.Context) (int, error) {
	used, err := q.rdb.Get(ctx, q.key()).Int()
	if err == redis.Nil {
		used = 0
	} else if err != nil {
		return 0, fmt.Errorf("read mail quota: %w", err)
	}
	if left := q.limit - used; left > 0 {
		return left, nil
	}
	return 0, nil
}

func (q *RedisQuota) Consume(ctx context.Context) error {
	key := q.key()
	used, err := q.rdb.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("consume mail quota: %w", err)
	}
	if used == 1 {
		q.rdb.Expire(ctx, key, 48*time.Hour)
	}
	if used > int64(q.limit) {
		q.rdb.Decr(ctx, key)
		return apperr.ErrQuotaExceeded
	}
	return nil
}

func (q *RedisQuota) Release(ctx context.Context) error {
	key := q.key()
	left, err := q.rdb.Decr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("release mail quota: %w", err)
	}
	if left < 0 {
		q.rdb.Set(ctx, key, 0, 48*time.Hour)
	}
	return nil
}

// MemoryQuota is the single-process fallback.
type MemoryQuota struct {
	mu    sync.Mutex
	limit int
	day   string
	used  int
	clock clockwork.Clock
}

func NewMemoryQuota(limit int, clock clockwork.Clock) *MemoryQuota {
	return &MemoryQuota{limit: limit, clock: clock}
}

// roll resets the counter when the day changed. Caller holds mu.
func (q *MemoryQuota) roll() {
	if d := day(q.clock); d != q.day {
		q.day = d
		q.used = 0
	}
}

func (q *MemoryQuota) Remaining(context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.roll()
	if left := q.limit - q.used; left > 0 {
		return left, nil
	}
	return 0, nil
}

func (q *MemoryQuota) Consume(context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.roll()
	if q.used >= q.limit {
		return apperr.ErrQuotaExceeded
	}
	q.used++
	return nil
}

func (q *MemoryQuota) Release(context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.roll()
	if q.used > 0 {
		q.used--
	}
	return nil
}
