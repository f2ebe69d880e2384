package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// HoldRepo stores temporary holds in the temporary_holds table.  The
// primary key is (showtime_id, session_id) so a session's new selection
// replaces its previous one.  All expiry comparisons use the instant the
// caller passes in rather than the database clock.
type HoldRepo struct {
	db *sql.DB
}

// NewHoldRepo returns a new HoldRepo bound to the provided database.
func NewHoldRepo(db *sql.DB) *HoldRepo { return &HoldRepo{db: db} }

// Upsert inserts or replaces the session's hold.
func (r *HoldRepo) Upsert(ctx context.Context, h model.TemporaryHold) error {
	seats, err := json.Marshal(h.Seats)
	if err != nil {
		return err
	}
	const q = `INSERT INTO temporary_holds (showtime_id, session_id, seats, expires_at, created_at)
               VALUES (?, ?, ?, ?, ?)
               ON DUPLICATE KEY UPDATE seats = VALUES(seats), expires_at = VALUES(expires_at), created_at = VALUES(created_at)`
	_, err = conn(ctx, r.db).ExecContext(ctx, q, h.ShowtimeID, h.SessionID, string(seats), h.ExpiresAt.UTC(), h.CreatedAt.UTC())
	return err
}

// Delete removes the session's hold.  Deleting a missing hold is not an error.
func (r *HoldRepo) Delete(ctx context.Context, showtimeID uint64, sessionID string) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM temporary_holds WHERE showtime_id = ? AND session_id = ?`, showtimeID, sessionID)
	return err
}

// DeleteExpired removes the showtime's holds whose expires_at is at or before now.
func (r *HoldRepo) DeleteExpired(ctx context.Context, showtimeID uint64, now time.Time) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM temporary_holds WHERE showtime_id = ? AND expires_at <= ?`, showtimeID, now.UTC())
	return err
}

// DeleteAllExpired removes expired holds for every showtime and returns how
// many rows were deleted.
func (r *HoldRepo) DeleteAllExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM temporary_holds WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Active lists the showtime's holds that expire after now.
func (r *HoldRepo) Active(ctx context.Context, showtimeID uint64, now time.Time) ([]model.TemporaryHold, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT session_id, seats, expires_at, created_at FROM temporary_holds WHERE showtime_id = ? AND expires_at > ?`,
		showtimeID, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TemporaryHold
	for rows.Next() {
		h := model.TemporaryHold{ShowtimeID: showtimeID}
		var raw []byte
		if err := rows.Scan(&h.SessionID, &raw, &h.ExpiresAt, &h.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &h.Seats); err != nil {
			return nil, err
		}
		h.ExpiresAt = h.ExpiresAt.UTC()
		h.CreatedAt = h.CreatedAt.UTC()
		out = append(out, h)
	}
	return out, rows.Err()
}
