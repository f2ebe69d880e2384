package hold

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

type memKey struct {
	showtimeID uint64
	sessionID  string
}

// MemoryStore keeps holds in process.  It only suits a single instance.
type MemoryStore struct {
	mu    sync.Mutex
	holds map[memKey]model.TemporaryHold
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{holds: make(map[memKey]model.TemporaryHold)}
}

func (m *MemoryStore) Upsert(_ context.Context, h model.TemporaryHold) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h.Seats = append([]string(nil), h.Seats...)
	m.holds[memKey{h.ShowtimeID, h.SessionID}] = h
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, showtimeID uint64, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.holds, memKey{showtimeID, sessionID})
	return nil
}

func (m *MemoryStore) DeleteExpired(_ context.Context, showtimeID uint64, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, h := range m.holds {
		if k.showtimeID == showtimeID && !h.Active(now) {
			delete(m.holds, k)
		}
	}
	return nil
}

func (m *MemoryStore) DeleteAllExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, h := range m.holds {
		if !h.Active(now) {
			delete(m.holds, k)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Active(_ context.Context, showtimeID uint64, now time.Time) ([]model.TemporaryHold, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.TemporaryHold
	for k, h := range m.holds {
		if k.showtimeID == showtimeID && h.Active(now) {
			out = append(out, h)
		}
	}
	return out, nil
}

// Len reports the number of stored holds, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.holds)
}
