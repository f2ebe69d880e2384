package model

// Seat describes a physical seat on a screen.  Seats are created once per
// screen and are not mutated afterwards.  The human readable identifier
// ("C7") is derived from Row and Column by the seatmap package and is
// never stored.
//
// Fields:
//  ID         – primary key identifier.
//  ScreenID   – screen to which this seat belongs.
//  Row        – 1-based row index (1 is the row nearest the screen).
//  Column     – 1-based column index within the row.
//  Accessible – whether the seat is reserved for reduced mobility patrons.
type Seat struct {
    ID         uint64 // seats.id
    ScreenID   uint64 // seats.screen_id
    Row        int    // seats.seat_row
    Column     int    // seats.seat_col
    Accessible bool   // seats.is_accessible
}
