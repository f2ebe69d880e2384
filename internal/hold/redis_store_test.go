package hold

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func hold(showtimeID uint64, session string, at time.Time, seats ...string) model.TemporaryHold {
	return model.TemporaryHold{
		ShowtimeID: showtimeID,
		SessionID:  session,
		Seats:      seats,
		CreatedAt:  at,
		ExpiresAt:  at.Add(DefaultTTL),
	}
}

func TestRedisStoreUpsertAndActive(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	s := NewRedisStore(rdb, "test")

	require.NoError(t, s.Upsert(ctx, hold(1, "a", t0, "A1", "A2")))
	require.NoError(t, s.Upsert(ctx, hold(1, "a", t0, "A3")))
	require.NoError(t, s.Upsert(ctx, hold(1, "b", t0, "B1")))

	assert.True(t, mr.Exists("test:hold:1:a"))
	members, err := mr.Members("test:holds:1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, members)

	live, err := s.Active(ctx, 1, t0.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, live, 2)

	live, err = s.Active(ctx, 1, t0.Add(DefaultTTL))
	require.NoError(t, err)
	assert.Empty(t, live)
}

func TestRedisStoreKeyTTL(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	s := NewRedisStore(rdb, "")

	require.NoError(t, s.Upsert(ctx, hold(4, "a", t0, "A1")))
	assert.Equal(t, DefaultTTL, mr.TTL("hold:4:a"))

	mr.FastForward(DefaultTTL)
	live, err := s.Active(ctx, 4, t0)
	require.NoError(t, err)
	assert.Empty(t, live)
}

func TestRedisStoreSweep(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	s := NewRedisStore(rdb, "")

	require.NoError(t, s.Upsert(ctx, hold(1, "old", t0, "A1")))
	require.NoError(t, s.Upsert(ctx, hold(2, "old", t0, "A1")))
	require.NoError(t, s.Upsert(ctx, hold(2, "new", t0.Add(4*time.Minute), "A2")))

	n, err := s.DeleteAllExpired(ctx, t0.Add(DefaultTTL))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.False(t, mr.Exists("hold:1:old"))
	assert.True(t, mr.Exists("hold:2:new"))

	require.NoError(t, s.Delete(ctx, 2, "new"))
	assert.False(t, mr.Exists("hold:2:new"))
}

func TestLedgerOnRedis(t *testing.T) {
	ctx := context.Background()
	_, rdb := newRedis(t)
	l, clk, _ := newTestLedger(nil)
	l.store = NewRedisStore(rdb, "")

	_, err := l.Publish(ctx, 3, "s1", []string{"C3"})
	require.NoError(t, err)
	got, err := l.Occupied(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"C3"}, got)

	clk.Advance(DefaultTTL)
	got, err = l.Occupied(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBroadcasterDeliversNotifications(t *testing.T) {
	_, rdb := newRedis(t)
	b := NewBroadcaster(rdb, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.Subscribe(ctx, 7)
	require.NoError(t, err)
	require.NoError(t, b.Notify(context.Background(), 7))

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("no notification received")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
