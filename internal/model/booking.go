package model

import "time"

// Booking is a single seat's confirmed reservation within a ticket.  At most
// one booking may exist for a given (ShowtimeID, SeatID); the store
// enforces this with a unique key.
type Booking struct {
    ID           uint64    `json:"id"`
    TicketID     uint64    `json:"ticket_id"`
    ShowtimeID   uint64    `json:"showtime_id"`
    SeatID       uint64    `json:"seat_id"`
    Row          int       `json:"row"`
    Column       int       `json:"column"`
    Label        string    `json:"label"`
    PriceInCents int64     `json:"price_in_cents"`
    DiscountID   *uint64   `json:"discount_id,omitempty"`
    UserID       string    `json:"user_id"`
    CreatedAt    time.Time `json:"created_at"`
}
