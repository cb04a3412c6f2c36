package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
)

func setupTestRedis(t *testing.T) *redis.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, client.Ping(context.Background()).Err())

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client
}

type MockAdvancer struct {
	mock.Mock
}

func (m *MockAdvancer) AdvanceToProcessing(ctx context.Context, orderID string) error {
	return m.Called(ctx, orderID).Error(0)
}

type MockFinder struct {
	mock.Mock
}

func (m *MockFinder) FindPaidOrdersBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	args := m.Called(ctx, cutoff, limit)
	return args.Get(0).([]models.Order), args.Error(1)
}

func TestRedisQueueClaimsOnlyDue(t *testing.T) {
	client := setupTestRedis(t)
	q := NewRedisQueue(client, "test:advance")
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, q.Schedule(ctx, "due-1", now.Add(-time.Second)))
	require.NoError(t, q.Schedule(ctx, "later", now.Add(time.Hour)))

	ids, err := q.Claim(ctx, now, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"due-1"}, ids)

	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)
}

func TestRedisQueueSurvivesNewClient(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	ctx := context.Background()

	first := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, NewRedisQueue(first, "k").Schedule(ctx, "o-1", time.Now().Add(-time.Second)))
	first.Close()

	second := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer second.Close()
	ids, err := NewRedisQueue(second, "k").Claim(ctx, time.Now(), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"o-1"}, ids)
}

func TestRedisQueueConcurrentClaimsAreExclusive(t *testing.T) {
	client := setupTestRedis(t)
	q := NewRedisQueue(client, "test:exclusive")
	ctx := context.Background()
	past := time.Now().Add(-time.Minute)

	for i := 0; i < 50; i++ {
		require.NoError(t, q.Schedule(ctx, fmt.Sprintf("order-%d", i), past))
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	seen := map[string]int{}
	for w := 0; w < 5; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids, err := q.Claim(ctx, time.Now(), 100)
			assert.NoError(t, err)
			mu.Lock()
			for _, id := range ids {
				seen[id]++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 50)
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
}

func TestSweeperAdvancesDueAndReschedulesFailures(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, q.Schedule(ctx, "ok", now.Add(-time.Second)))
	require.NoError(t, q.Schedule(ctx, "broken", now.Add(-time.Second)))
	require.NoError(t, q.Schedule(ctx, "future", now.Add(time.Minute)))

	adv := new(MockAdvancer)
	adv.On("AdvanceToProcessing", mock.Anything, "ok").Return(nil)
	adv.On("AdvanceToProcessing", mock.Anything, "broken").Return(errors.New("db down"))

	s := &Sweeper{Queue: q, Advancer: adv, Delay: 30 * time.Second, Logger: logger.NewNop(), Now: func() time.Time { return now }}
	res, err := s.RunOnce(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Claimed)
	assert.Equal(t, 1, res.Advanced)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Rescheduled)

	pending, _ := q.Pending(ctx)
	assert.Equal(t, int64(2), pending)
	adv.AssertNotCalled(t, "AdvanceToProcessing", mock.Anything, "future")
}

func TestSweeperCatchesUpLostEntries(t *testing.T) {
	q := NewMemoryQueue()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	finder := new(MockFinder)
	finder.On("FindPaidOrdersBefore", mock.Anything, now.Add(-time.Minute), 100).
		Return([]models.Order{{ID: "lost"}}, nil)

	adv := new(MockAdvancer)
	adv.On("AdvanceToProcessing", mock.Anything, "lost").Return(nil)

	s := &Sweeper{Queue: q, Advancer: adv, Finder: finder, Delay: time.Minute, Logger: logger.NewNop(), Now: func() time.Time { return now }}
	res, err := s.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, res.CaughtUp)
	adv.AssertExpectations(t)
}

func TestSweeperScheduleUsesDelay(t *testing.T) {
	q := NewMemoryQueue()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := &Sweeper{Queue: q, Delay: 30 * time.Second, Logger: logger.NewNop(), Now: func() time.Time { return now }}

	require.NoError(t, s.Schedule(context.Background(), "o-1"))

	ids, _ := q.Claim(context.Background(), now.Add(29*time.Second), 10)
	assert.Empty(t, ids)
	ids, _ = q.Claim(context.Background(), now.Add(30*time.Second), 10)
	assert.Equal(t, []string{"o-1"}, ids)
}
