package model

import "time"

// Ticket groups all bookings created by one checkout.  QRCode holds the
// rendered data URL, or a placeholder when encoding failed.
type Ticket struct {
    ID         uint64    `json:"id"`
    Code       string    `json:"code"`        // public reference printed on the ticket
    UserID     string    `json:"user_id"`     // opaque id from the identity provider
    ShowtimeID uint64    `json:"showtime_id"`
    PaymentRef string    `json:"payment_ref"` // external payment intent id
    QRCode     string    `json:"qr_code"`
    CreatedAt  time.Time `json:"created_at"`
}
