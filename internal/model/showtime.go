package model

import "time"

// Showtime is a scheduled screening of a movie on a screen.  The read model
// joins the screen and cinema rows because finalization needs the base
// price and the QR payload needs the cinema name and city.
type Showtime struct {
    ID         uint64    // showtimes.id
    ScreenID   uint64    // showtimes.screen_id
    MovieTitle string    // movies.title
    StartTime  time.Time // showtimes.start_time (UTC)
    Screen     Screen    // joined screen row
    CinemaName string    // cinemas.name
    CinemaCity string    // cinemas.city
}

// HasStarted reports whether the showtime is at or before now.
func (s Showtime) HasStarted(now time.Time) bool {
    return !s.StartTime.After(now)
}
