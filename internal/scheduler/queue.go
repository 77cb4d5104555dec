// internal/scheduler/queue.go
// Package scheduler holds the durable continuation queue for suspended
// workflow executions and the interval sweeper that drains it.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"lead-automation/internal/common/errors"
)

const DefaultQueueKey = "lead-automation:continuations"

// DefaultClaimLease is how long a claimed entry stays hidden from other
// claimers when the queue is built without an explicit lease.
const DefaultClaimLease = 5 * time.Minute

// Queue stores (executionID, resumeAt) pairs. Scheduling an id twice moves
// it to the later time. Claim leases due ids instead of removing them: an
// entry is only removed by Ack, so a continuation lost to a crash comes
// back once its lease runs out.
type Queue interface {
	Schedule(ctx context.Context, executionID string, at time.Time) error
	// ScheduleIfAbsent queues the id unless it is already queued or leased.
	ScheduleIfAbsent(ctx context.Context, executionID string, at time.Time) (bool, error)
	Cancel(ctx context.Context, executionID string) error
	Claim(ctx context.Context, now time.Time, limit int) ([]string, error)
	// Ack removes an entry claimed at claimedAt. An entry rescheduled since
	// the claim is kept.
	Ack(ctx context.Context, executionID string, claimedAt time.Time) error
}

// RedisQueue keeps continuations in a sorted set scored by resume time in
// unix milliseconds, so pending waits survive restarts. A claimed entry is
// re-scored to the end of its lease.
type RedisQueue struct {
	client *redis.Client
	key    string
	lease  time.Duration
}

// claimScript leases up to ARGV[2] entries due at ARGV[1] by moving them to
// ARGV[3]. Running it as one script keeps two drainers from claiming the
// same entry.
var claimScript = redis.NewScript(`
local ids = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, tonumber(ARGV[2]))
for _, id in ipairs(ids) do
  redis.call("ZADD", KEYS[1], "XX", ARGV[3], id)
end
return ids
`)

// ackScript removes ARGV[1] only while it still carries the lease score.
var ackScript = redis.NewScript(`
local score = redis.call("ZSCORE", KEYS[1], ARGV[1])
if score and tonumber(score) == tonumber(ARGV[2]) then
  return redis.call("ZREM", KEYS[1], ARGV[1])
end
return 0
`)

func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &RedisQueue{client: client, key: key, lease: DefaultClaimLease}
}

// WithLease sets how long claimed entries stay hidden.
func (q *RedisQueue) WithLease(d time.Duration) *RedisQueue {
	if d > 0 {
		q.lease = d
	}
	return q
}

func (q *RedisQueue) Schedule(ctx context.Context, executionID string, at time.Time) error {
	err := q.client.ZAdd(ctx, q.key, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: executionID,
	}).Err()
	if err != nil {
		return errors.NewSchedulerFailedError(err)
	}
	return nil
}

func (q *RedisQueue) ScheduleIfAbsent(ctx context.Context, executionID string, at time.Time) (bool, error) {
	added, err := q.client.ZAddNX(ctx, q.key, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: executionID,
	}).Result()
	if err != nil {
		return false, errors.NewSchedulerFailedError(err)
	}
	return added == 1, nil
}

func (q *RedisQueue) Cancel(ctx context.Context, executionID string) error {
	if err := q.client.ZRem(ctx, q.key, executionID).Err(); err != nil {
		return errors.NewSchedulerFailedError(err)
	}
	return nil
}

// Claim leases and returns up to limit ids due at now, earliest first.
func (q *RedisQueue) Claim(ctx context.Context, now time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = -1
	}
	ids, err := claimScript.Run(ctx, q.client, []string{q.key},
		now.UnixMilli(), limit, now.Add(q.lease).UnixMilli(),
	).StringSlice()
	if err != nil && err != redis.Nil {
		return nil, errors.NewSchedulerFailedError(err)
	}
	return ids, nil
}

func (q *RedisQueue) Ack(ctx context.Context, executionID string, claimedAt time.Time) error {
	err := ackScript.Run(ctx, q.client, []string{q.key},
		executionID, claimedAt.Add(q.lease).UnixMilli(),
	).Err()
	if err != nil && err != redis.Nil {
		return errors.NewSchedulerFailedError(err)
	}
	return nil
}

// Pending reports how many continuations are queued, leased ones included.
func (q *RedisQueue) Pending(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, q.key).Result()
}

// MemoryQueue is a process-local Queue for the in-memory store backend.
// Pending waits are lost on restart.
type MemoryQueue struct {
	mu      sync.Mutex
	entries map[string]time.Time
	lease   time.Duration
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{entries: map[string]time.Time{}, lease: DefaultClaimLease}
}

func (q *MemoryQueue) WithLease(d time.Duration) *MemoryQueue {
	if d > 0 {
		q.lease = d
	}
	return q
}

func (q *MemoryQueue) Schedule(_ context.Context, executionID string, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries[executionID] = at.Truncate(time.Millisecond)
	return nil
}

func (q *MemoryQueue) ScheduleIfAbsent(_ context.Context, executionID string, at time.Time) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.entries[executionID]; ok {
		return false, nil
	}
	q.entries[executionID] = at.Truncate(time.Millisecond)
	return true, nil
}

func (q *MemoryQueue) Cancel(_ context.Context, executionID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, executionID)
	return nil
}

func (q *MemoryQueue) Claim(_ context.Context, now time.Time, limit int) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	due := make([]string, 0)
	for id, at := range q.entries {
		if !at.After(now) {
			due = append(due, id)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		ai, aj := q.entries[due[i]], q.entries[due[j]]
		if ai.Equal(aj) {
			return due[i] < due[j]
		}
		return ai.Before(aj)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	leased := now.Add(q.lease).Truncate(time.Millisecond)
	for _, id := range due {
		q.entries[id] = leased
	}
	return due, nil
}

func (q *MemoryQueue) Ack(_ context.Context, executionID string, claimedAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if at, ok := q.entries[executionID]; ok && at.Equal(claimedAt.Add(q.lease).Truncate(time.Millisecond)) {
		delete(q.entries, executionID)
	}
	return nil
}
