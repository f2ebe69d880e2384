package checkout

import (
    "time"

    "github.com/shopspring/decimal"

    "github.com/iliyamo/cinema-seat-booking/internal/adjacency"
    "github.com/iliyamo/cinema-seat-booking/internal/model"
    "github.com/iliyamo/cinema-seat-booking/internal/pricing"
)

// Session is the checkout context carried across requests.
type Session struct {
    ID         string `json:"id"`
    State      State  `json:"state"`
    ShowtimeID uint64 `json:"showtime_id"`
    ScreenID   uint64 `json:"screen_id"`
    UserID     string `json:"user_id,omitempty"`

    Seats       []string             `json:"seats"`
    Choices     pricing.Assignments  `json:"choices,omitempty"`     // as submitted by the shopper
    Assignments pricing.Assignments  `json:"assignments,omitempty"` // effective, after accessibility rules
    Lines       []pricing.Line       `json:"lines,omitempty"`
    Total       decimal.Decimal      `json:"total"`
    Alignment   *adjacency.Alignment `json:"alignment,omitempty"`
    Warnings    []string             `json:"warnings,omitempty"`

    // PendingAuth is set when confirm was attempted anonymously.  The
    // selection above is kept untouched until Resume.
    PendingAuth bool `json:"pending_auth"`

    ClientSecret string          `json:"client_secret,omitempty"`
    PaymentRef   string          `json:"payment_ref,omitempty"`
    Ticket       *model.Ticket   `json:"ticket,omitempty"`
    Bookings     []model.Booking `json:"bookings,omitempty"`
    LastError    string          `json:"last_error,omitempty"`

    CreatedAt time.Time `json:"created_at"`
    UpdatedAt time.Time `json:"updated_at"`
}

// reset clears everything but the showtime binding.
func (s *Session) reset() {
    s.Seats = nil
    s.Choices = nil
    s.Assignments = nil
    s.Lines = nil
    s.Total = decimal.Zero
    s.Alignment = nil
    s.Warnings = nil
    s.PendingAuth = false
    s.ClientSecret = ""
    s.PaymentRef = ""
    s.Ticket = nil
    s.Bookings = nil
    s.LastError = ""
}

func (s *Session) moveTo(to State) error {
    if err := ValidateTransition(s.State, to); err != nil {
        return err
    }
    s.State = to
    return nil
}
