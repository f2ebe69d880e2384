package model

import "time"

// TemporaryHold is an advisory, time limited claim on seats for one shopper
// session.  Holds are keyed by (ShowtimeID, SessionID) and replaced on every
// selection change.  A hold whose ExpiresAt is at or before the current
// time must never be reported as occupying a seat.
type TemporaryHold struct {
    ShowtimeID uint64    `json:"showtime_id"`
    SessionID  string    `json:"session_id"`
    Seats      []string  `json:"seats"`
    ExpiresAt  time.Time `json:"expires_at"`
    CreatedAt  time.Time `json:"created_at"`
}

// Active reports whether the hold is still visible at now.
func (h TemporaryHold) Active(now time.Time) bool {
    return h.ExpiresAt.After(now)
}
