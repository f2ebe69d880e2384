// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingConfirmedQueue is the durable queue carrying confirmed checkouts.
const BookingConfirmedQueue = "booking.confirmed"

// BookingConfirmedEvent is published when a checkout has been finalized.
// It contains enough information for downstream consumers to log, notify, or
// trigger analytics without querying the primary database.
type BookingConfirmedEvent struct {
    TicketID         uint64   `json:"ticket_id"`
    TicketCode       string   `json:"ticket_code"`
    UserID           string   `json:"user_id"`
    ShowtimeID       uint64   `json:"showtime_id"`
    CinemaName       string   `json:"cinema_name"`
    CinemaCity       string   `json:"cinema_city"`
    ScreenNumber     int      `json:"screen_number"`
    MovieTitle       string   `json:"movie_title"`
    StartsAt         string   `json:"starts_at"`
    Seats            []string `json:"seats"`
    TotalAmountCents int64    `json:"total_amount_cents"`
    PaymentRef       string   `json:"payment_ref"`
    ConfirmedAt      string   `json:"confirmed_at"`
}
