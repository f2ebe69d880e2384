package hold

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-booking/internal/clock"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

type stubBookings struct {
	bookings []model.Booking
}

func (s stubBookings) ListByShowtime(_ context.Context, showtimeID uint64) ([]model.Booking, error) {
	var out []model.Booking
	for _, b := range s.bookings {
		if b.ShowtimeID == showtimeID {
			out = append(out, b)
		}
	}
	return out, nil
}

type countingNotifier struct {
	mu    sync.Mutex
	calls []uint64
}

func (n *countingNotifier) Notify(_ context.Context, showtimeID uint64) error {
	n.mu.Lock()
	n.calls = append(n.calls, showtimeID)
	n.mu.Unlock()
	return nil
}

var t0 = time.Date(2025, 4, 2, 20, 0, 0, 0, time.UTC)

func newTestLedger(bookings []model.Booking) (*Ledger, *clock.Manual, *MemoryStore) {
	clk := clock.NewManual(t0)
	store := NewMemoryStore()
	return NewLedger(store, stubBookings{bookings: bookings}, clk, nil), clk, store
}

func TestHoldVisibleUntilExpiry(t *testing.T) {
	ctx := context.Background()
	l, clk, _ := newTestLedger(nil)

	_, err := l.Publish(ctx, 1, "s1", []string{"B3", "b4"})
	require.NoError(t, err)

	clk.Set(t0.Add(DefaultTTL - time.Nanosecond))
	got, err := l.Occupied(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"B3", "B4"}, got)

	clk.Set(t0.Add(DefaultTTL))
	got, err = l.Occupied(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPublishReplacesSessionHold(t *testing.T) {
	ctx := context.Background()
	l, _, store := newTestLedger(nil)

	_, err := l.Publish(ctx, 1, "s1", []string{"A1"})
	require.NoError(t, err)
	_, err = l.Publish(ctx, 1, "s1", []string{"A2"})
	require.NoError(t, err)

	got, err := l.Occupied(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"A2"}, got)
	assert.Equal(t, 1, store.Len())
}

func TestPublishWithoutSessionCreatesOne(t *testing.T) {
	l, _, _ := newTestLedger(nil)
	h, err := l.Publish(context.Background(), 1, "", []string{"A1"})
	require.NoError(t, err)
	assert.NotEmpty(t, h.SessionID)
	assert.Equal(t, t0.Add(DefaultTTL), h.ExpiresAt)
}

func TestPublishEmptySelectionReleases(t *testing.T) {
	ctx := context.Background()
	l, _, store := newTestLedger(nil)

	_, err := l.Publish(ctx, 1, "s1", []string{"A1"})
	require.NoError(t, err)
	_, err = l.Publish(ctx, 1, "s1", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestPublishRejectsBadInput(t *testing.T) {
	l, _, _ := newTestLedger(nil)
	_, err := l.Publish(context.Background(), 0, "s1", []string{"A1"})
	assert.ErrorIs(t, err, ErrInvalidShowtime)
	_, err = l.Publish(context.Background(), 1, "s1", []string{"1A"})
	assert.ErrorIs(t, err, ErrInvalidSeat)
}

func TestOccupiedUnionsBookingsAndHolds(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger([]model.Booking{
		{ShowtimeID: 1, Row: 1, Column: 10},
		{ShowtimeID: 1, Row: 1, Column: 2},
		{ShowtimeID: 2, Row: 5, Column: 5},
	})
	_, err := l.Publish(ctx, 1, "s1", []string{"A2", "C1"})
	require.NoError(t, err)
	_, err = l.Publish(ctx, 1, "s2", []string{"B7"})
	require.NoError(t, err)
	_, err = l.Publish(ctx, 2, "s3", []string{"D4"})
	require.NoError(t, err)

	got, err := l.Occupied(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"A2", "A10", "B7", "C1"}, got)

	others, err := l.OccupiedByOthers(ctx, 1, []string{"a2", "C1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A10", "B7"}, others)

	booked, err := l.Booked(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"A2", "A10"}, booked)
}

func TestBookedWithoutBookingReader(t *testing.T) {
	l := NewLedger(NewMemoryStore(), nil, clock.NewManual(time.Now()), nil)
	_, err := l.Publish(context.Background(), 1, "s1", []string{"A1"})
	require.NoError(t, err)

	booked, err := l.Booked(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, booked)

	_, err = l.Booked(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidShowtime)
}

func TestPublishPurgesStaleHolds(t *testing.T) {
	ctx := context.Background()
	l, clk, store := newTestLedger(nil)

	_, err := l.Publish(ctx, 1, "old", []string{"A1"})
	require.NoError(t, err)
	clk.Advance(DefaultTTL + time.Second)
	_, err = l.Publish(ctx, 1, "new", []string{"A2"})
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}

func TestSweepAndRelease(t *testing.T) {
	ctx := context.Background()
	n := &countingNotifier{}
	clk := clock.NewManual(t0)
	store := NewMemoryStore()
	l := NewLedger(store, nil, clk, nil, WithTTL(time.Minute), WithNotifier(n))

	_, err := l.Publish(ctx, 1, "s1", []string{"A1"})
	require.NoError(t, err)
	_, err = l.Publish(ctx, 2, "s2", []string{"A1"})
	require.NoError(t, err)
	require.NoError(t, l.Release(ctx, 2, "s2"))

	clk.Advance(time.Minute)
	removed, err := l.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Equal(t, []uint64{1, 2, 2}, n.calls)
}

func TestExcludeOwn(t *testing.T) {
	assert.Equal(t, []string{"A3"}, ExcludeOwn([]string{"A1", "A3"}, []string{"a1", "bogus"}))
}
