package model

import "github.com/shopspring/decimal"

// Screen is a physical auditorium with a fixed seat grid and a base ticket
// price.  It is immutable for the duration of a booking session.
type Screen struct {
    ID             uint64          // screens.id
    CinemaID       uint64          // screens.cinema_id
    Number         int             // screens.number, shown on tickets
    Rows           int             // screens.row_count
    Columns        int             // screens.column_count
    BasePrice      decimal.Decimal // screens.base_price in currency units
    SoundType      string          // screens.sound_type
    ProjectionType string          // screens.projection_type
}
