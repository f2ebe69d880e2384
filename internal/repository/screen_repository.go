package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// ScreenRepo reads screen configuration.  Screens and seats are written by
// the back office only, so this repository is read-only.
type ScreenRepo struct {
	db *sql.DB
}

// NewScreenRepo returns a new ScreenRepo bound to the provided database.
func NewScreenRepo(db *sql.DB) *ScreenRepo { return &ScreenRepo{db: db} }

// GetByID loads one screen.  It returns ErrScreenNotFound when the id is unknown.
func (r *ScreenRepo) GetByID(ctx context.Context, id uint64) (model.Screen, error) {
	const q = `SELECT id, cinema_id, number, row_count, column_count, base_price, sound_type, projection_type
               FROM screens WHERE id = ?`
	var s model.Screen
	err := conn(ctx, r.db).QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.CinemaID, &s.Number, &s.Rows, &s.Columns, &s.BasePrice, &s.SoundType, &s.ProjectionType,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Screen{}, ErrScreenNotFound
	}
	return s, err
}

// ScreenConfiguration returns the screen together with its configured
// seats ordered by row then column.  A screen without seats yields an
// empty slice and no error.
func (r *ScreenRepo) ScreenConfiguration(ctx context.Context, screenID uint64) (model.Screen, []model.Seat, error) {
	screen, err := r.GetByID(ctx, screenID)
	if err != nil {
		return model.Screen{}, nil, err
	}
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT id, screen_id, seat_row, seat_col, is_accessible FROM seats WHERE screen_id = ? ORDER BY seat_row, seat_col`,
		screenID,
	)
	if err != nil {
		return model.Screen{}, nil, err
	}
	defer rows.Close()

	seats := []model.Seat{}
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.ScreenID, &s.Row, &s.Column, &s.Accessible); err != nil {
			return model.Screen{}, nil, err
		}
		seats = append(seats, s)
	}
	return screen, seats, rows.Err()
}
