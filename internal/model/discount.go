package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// Discount is a flat-amount promotional rule.  Recurrent discounts are
// always on while Active; the others only apply inside [StartDate, EndDate].
type Discount struct {
    ID        uint64          `json:"id"`
    Name      string          `json:"name"`
    Amount    decimal.Decimal `json:"amount"`
    Active    bool            `json:"active"`
    Recurrent bool            `json:"recurrent"`
    StartDate *time.Time      `json:"start_date,omitempty"`
    EndDate   *time.Time      `json:"end_date,omitempty"`
}
