// Package scheduler persists deferred order transitions and drains them when due.
package scheduler

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Queue holds order ids keyed by the time they become due.
type Queue interface {
	Schedule(ctx context.Context, orderID string, at time.Time) error
	// Claim removes and returns up to limit ids due at or before now. An id is returned to
	// exactly one caller even with several sweepers running.
	Claim(ctx context.Context, now time.Time, limit int) ([]string, error)
	Pending(ctx context.Context) (int64, error)
}

// RedisQueue keeps the schedule in a sorted set scored by unix milliseconds, so it survives
// process restarts.
type RedisQueue struct {
	Client *redis.Client
	Key    string
}

func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{Client: client, Key: key}
}

func (q *RedisQueue) Schedule(ctx context.Context, orderID string, at time.Time) error {
	return q.Client.ZAdd(ctx, q.Key, &redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: orderID,
	}).Err()
}

func (q *RedisQueue) Claim(ctx context.Context, now time.Time, limit int) ([]string, error) {
	ids, err := q.Client.ZRangeByScore(ctx, q.Key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}

	claimed := make([]string, 0, len(ids))
	for _, id := range ids {
		// whoever removes the member owns it
		n, err := q.Client.ZRem(ctx, q.Key, id).Result()
		if err != nil {
			return claimed, err
		}
		if n == 1 {
			claimed = append(claimed, id)
		}
	}
	return claimed, nil
}

func (q *RedisQueue) Pending(ctx context.Context) (int64, error) {
	return q.Client.ZCard(ctx, q.Key).Result()
}

// MemoryQueue is a process-local queue for development runs without Redis.
type MemoryQueue struct {
	mu    sync.Mutex
	items map[string]time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{items: make(map[string]time.Time)}
}

func (q *MemoryQueue) Schedule(_ context.Context, orderID string, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items[orderID] = at
	return nil
}

func (q *MemoryQueue) Claim(_ context.Context, now time.Time, limit int) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	type entry struct {
		id string
		at time.Time
	}
	var due []entry
	for id, at := range q.items {
		if !at.After(now) {
			due = append(due, entry{id, at})
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	ids := make([]string, 0, len(due))
	for _, e := range due {
		delete(q.items, e.id)
		ids = append(ids, e.id)
	}
	return ids, nil
}

func (q *MemoryQueue) Pending(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.items)), nil
}
