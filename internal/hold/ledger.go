// Package hold implements the temporary hold ledger: an advisory,
// self-expiring record of which seats concurrent shoppers are looking at.
// It is not a lock; exclusivity is only enforced when bookings are written.
package hold

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-seat-booking/internal/clock"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
	"github.com/iliyamo/cinema-seat-booking/internal/seatmap"
)

// DefaultTTL is how long a published selection stays visible.
const DefaultTTL = 5 * time.Minute

var (
	ErrInvalidShowtime = errors.New("invalid showtime id")
	ErrInvalidSeat     = errors.New("invalid seat identifier")
)

// Store persists holds keyed by (showtime, session).
type Store interface {
	// Upsert replaces the session's hold.
	Upsert(ctx context.Context, h model.TemporaryHold) error
	// Delete removes the session's hold, if any.
	Delete(ctx context.Context, showtimeID uint64, sessionID string) error
	// DeleteExpired removes the showtime's holds expiring at or before now.
	DeleteExpired(ctx context.Context, showtimeID uint64, now time.Time) error
	// DeleteAllExpired removes expired holds of every showtime.
	DeleteAllExpired(ctx context.Context, now time.Time) (int64, error)
	// Active lists the showtime's holds expiring after now.
	Active(ctx context.Context, showtimeID uint64, now time.Time) ([]model.TemporaryHold, error)
}

// BookingReader lists confirmed bookings for a showtime.
type BookingReader interface {
	ListByShowtime(ctx context.Context, showtimeID uint64) ([]model.Booking, error)
}

// Notifier announces that a showtime's occupancy changed.
type Notifier interface {
	Notify(ctx context.Context, showtimeID uint64) error
}

// Ledger publishes and queries holds.
type Ledger struct {
	store    Store
	bookings BookingReader
	clock    clock.Clock
	notifier Notifier
	log      *zap.Logger
	ttl      time.Duration
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(l *Ledger) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithNotifier enables push notifications on every change.
func WithNotifier(n Notifier) Option {
	return func(l *Ledger) { l.notifier = n }
}

// NewLedger wires a ledger.  bookings may be nil when only holds matter.
func NewLedger(store Store, bookings BookingReader, clk clock.Clock, log *zap.Logger, opts ...Option) *Ledger {
	if clk == nil {
		clk = clock.NewSystem()
	}
	if log == nil {
		log = zap.NewNop()
	}
	l := &Ledger{store: store, bookings: bookings, clock: clk, log: log, ttl: DefaultTTL}
	for _, o := range opts {
		o(l)
	}
	return l
}

// TTL returns the hold lifetime.
func (l *Ledger) TTL() time.Duration { return l.ttl }

// Publish records the session's current selection, replacing its previous
// one.  Stale holds of the showtime are purged first.  An empty sessionID
// gets a fresh one; the returned hold carries the id to reuse.  An empty
// selection removes the session's hold.
func (l *Ledger) Publish(ctx context.Context, showtimeID uint64, sessionID string, seats []string) (model.TemporaryHold, error) {
	if showtimeID == 0 {
		return model.TemporaryHold{}, ErrInvalidShowtime
	}
	normalized, err := normalize(seats)
	if err != nil {
		return model.TemporaryHold{}, err
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	now := l.clock.Now()

	if err := l.store.DeleteExpired(ctx, showtimeID, now); err != nil {
		l.log.Warn("purge stale holds failed", zap.Uint64("showtime_id", showtimeID), zap.Error(err))
	}

	h := model.TemporaryHold{
		ShowtimeID: showtimeID,
		SessionID:  sessionID,
		Seats:      normalized,
		CreatedAt:  now,
		ExpiresAt:  now.Add(l.ttl),
	}
	if len(normalized) == 0 {
		if err := l.store.Delete(ctx, showtimeID, sessionID); err != nil {
			return model.TemporaryHold{}, fmt.Errorf("release hold: %w", err)
		}
	} else if err := l.store.Upsert(ctx, h); err != nil {
		return model.TemporaryHold{}, fmt.Errorf("publish hold: %w", err)
	}
	l.notify(ctx, showtimeID)
	return h, nil
}

// Release drops the session's hold, e.g. once its seats are booked.
func (l *Ledger) Release(ctx context.Context, showtimeID uint64, sessionID string) error {
	if showtimeID == 0 || sessionID == "" {
		return nil
	}
	if err := l.store.Delete(ctx, showtimeID, sessionID); err != nil {
		return fmt.Errorf("release hold: %w", err)
	}
	l.notify(ctx, showtimeID)
	return nil
}

// Occupied returns the sorted union of seats held by live holds and seats
// already booked for the showtime.  Expired holds are purged first; they are
// never reported even if the purge fails.
func (l *Ledger) Occupied(ctx context.Context, showtimeID uint64) ([]string, error) {
	if showtimeID == 0 {
		return nil, ErrInvalidShowtime
	}
	now := l.clock.Now()
	if _, err := l.store.DeleteAllExpired(ctx, now); err != nil {
		l.log.Warn("purge expired holds failed", zap.Error(err))
	}

	holds, err := l.store.Active(ctx, showtimeID, now)
	if err != nil {
		return nil, fmt.Errorf("list holds: %w", err)
	}
	set := make(map[string]struct{})
	for _, h := range holds {
		if !h.Active(now) {
			continue
		}
		for _, s := range h.Seats {
			set[s] = struct{}{}
		}
	}

	if err := l.addBooked(ctx, showtimeID, set); err != nil {
		return nil, err
	}
	return sortedKeys(set), nil
}

// Booked lists the seats sold for a showtime, ignoring holds.
func (l *Ledger) Booked(ctx context.Context, showtimeID uint64) ([]string, error) {
	if showtimeID == 0 {
		return nil, ErrInvalidShowtime
	}
	set := make(map[string]struct{})
	if err := l.addBooked(ctx, showtimeID, set); err != nil {
		return nil, err
	}
	return sortedKeys(set), nil
}

func (l *Ledger) addBooked(ctx context.Context, showtimeID uint64, set map[string]struct{}) error {
	if l.bookings == nil {
		return nil
	}
	booked, err := l.bookings.ListByShowtime(ctx, showtimeID)
	if err != nil {
		return fmt.Errorf("list bookings: %w", err)
	}
	for _, b := range booked {
		id, err := seatmap.Identifier(b.Row, b.Column)
		if err != nil {
			continue
		}
		set[id] = struct{}{}
	}
	return nil
}

// OccupiedByOthers is Occupied minus the caller's own selection.
func (l *Ledger) OccupiedByOthers(ctx context.Context, showtimeID uint64, own []string) ([]string, error) {
	all, err := l.Occupied(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	return ExcludeOwn(all, own), nil
}

// Sweep purges expired holds of every showtime.  It is run periodically so
// the store does not grow between reads.
func (l *Ledger) Sweep(ctx context.Context) (int64, error) {
	return l.store.DeleteAllExpired(ctx, l.clock.Now())
}

// ExcludeOwn removes own from occupied.  Labels are compared canonically.
func ExcludeOwn(occupied, own []string) []string {
	mine := make(map[string]struct{}, len(own))
	for _, s := range own {
		if n, err := seatmap.Normalize(s); err == nil {
			mine[n] = struct{}{}
		}
	}
	out := make([]string, 0, len(occupied))
	for _, s := range occupied {
		if _, ok := mine[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}

func (l *Ledger) notify(ctx context.Context, showtimeID uint64) {
	if l.notifier == nil {
		return
	}
	if err := l.notifier.Notify(ctx, showtimeID); err != nil {
		l.log.Debug("hold notify failed", zap.Uint64("showtime_id", showtimeID), zap.Error(err))
	}
}

func normalize(seats []string) ([]string, error) {
	set := make(map[string]struct{}, len(seats))
	for _, s := range seats {
		n, err := seatmap.Normalize(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSeat, s)
		}
		set[n] = struct{}{}
	}
	return sortedKeys(set), nil
}

// sortedKeys orders labels by row then column so "A2" precedes "A10".
func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, ci, _ := seatmap.Parse(out[i])
		rj, cj, _ := seatmap.Parse(out[j])
		if ri != rj {
			return ri < rj
		}
		return ci < cj
	})
	return out
}
