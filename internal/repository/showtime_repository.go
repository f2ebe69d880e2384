package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// ShowtimeRepo reads showtimes joined with their movie, screen and cinema.
type ShowtimeRepo struct {
	db *sql.DB
}

// NewShowtimeRepo returns a new ShowtimeRepo bound to the provided database.
func NewShowtimeRepo(db *sql.DB) *ShowtimeRepo { return &ShowtimeRepo{db: db} }

// GetDetail loads the showtime read model used by checkout.  It returns
// ErrShowtimeNotFound when the id is unknown.
func (r *ShowtimeRepo) GetDetail(ctx context.Context, id uint64) (model.Showtime, error) {
	const q = `SELECT st.id, st.screen_id, st.start_time, m.title,
                      sc.id, sc.cinema_id, sc.number, sc.row_count, sc.column_count, sc.base_price, sc.sound_type, sc.projection_type,
                      c.name, c.city
               FROM showtimes st
               JOIN movies m   ON m.id = st.movie_id
               JOIN screens sc ON sc.id = st.screen_id
               JOIN cinemas c  ON c.id = sc.cinema_id
               WHERE st.id = ?`
	var s model.Showtime
	err := conn(ctx, r.db).QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.ScreenID, &s.StartTime, &s.MovieTitle,
		&s.Screen.ID, &s.Screen.CinemaID, &s.Screen.Number, &s.Screen.Rows, &s.Screen.Columns,
		&s.Screen.BasePrice, &s.Screen.SoundType, &s.Screen.ProjectionType,
		&s.CinemaName, &s.CinemaCity,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Showtime{}, ErrShowtimeNotFound
	}
	if err != nil {
		return model.Showtime{}, err
	}
	s.StartTime = s.StartTime.UTC()
	return s, nil
}
