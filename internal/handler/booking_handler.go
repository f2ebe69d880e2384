package handler

import (
    "context"
    "strconv"
    "strings"

    "github.com/labstack/echo/v4"
    "github.com/shopspring/decimal"
    "go.uber.org/zap"

    "github.com/iliyamo/cinema-seat-booking/internal/booking"
    "github.com/iliyamo/cinema-seat-booking/internal/handler/response"
    "github.com/iliyamo/cinema-seat-booking/internal/middleware"
    "github.com/iliyamo/cinema-seat-booking/internal/payment"
    "github.com/iliyamo/cinema-seat-booking/internal/pricing"
)

// Finalizer creates tickets from paid selections.
type Finalizer interface {
    CreateBooking(ctx context.Context, req booking.Request) (*booking.Result, error)
}

// BookingHandler exposes the payment and finalization contracts directly,
// for clients that drive checkout themselves.
type BookingHandler struct {
    Quoter   *Quoter
    Payments payment.Gateway
    Bookings Finalizer
    Currency string
    Log      *zap.Logger
}

func NewBookingHandler(q *Quoter, payments payment.Gateway, bookings Finalizer, currency string, log *zap.Logger) *BookingHandler {
    if q == nil || payments == nil || bookings == nil {
        panic("nil dependency passed to NewBookingHandler")
    }
    return &BookingHandler{Quoter: q, Payments: payments, Bookings: bookings, Currency: currency, Log: log}
}

type checkoutSessionRequest struct {
    ShowtimeID  uint64              `json:"showtime_id" validate:"required"`
    Seats       []string            `json:"seats" validate:"required,min=1,dive,required"`
    TotalAmount decimal.Decimal     `json:"total_amount"`
    Discounts   pricing.Assignments `json:"discounts"`
}

// CreateCheckoutSession handles POST /v1/checkout-sessions.  The submitted
// total is checked against the server price before a payment intent is
// requested for the server amount.
func (h *BookingHandler) CreateCheckoutSession(c echo.Context) error {
    var req checkoutSessionRequest
    if err := bind(c, &req); err != nil {
        return fail(c, h.Log, err)
    }
    ctx := c.Request().Context()
    sel, err := h.Quoter.price(ctx, req.ShowtimeID, req.Seats, req.Discounts)
    if err != nil {
        return fail(c, h.Log, err)
    }
    if err := h.Quoter.Pricing.Validate(req.TotalAmount, sel.Quote.Total); err != nil {
        return fail(c, h.Log, err)
    }
    intent, err := h.Payments.CreatePaymentIntent(ctx, payment.IntentRequest{
        AmountCents: pricing.Cents(sel.Quote.Total),
        Currency:    h.Currency,
        Description: "showtime " + strconv.FormatUint(req.ShowtimeID, 10) + ": " + strings.Join(sel.Seats, ", "),
        Metadata: map[string]string{
            payment.MetaShowtimeID: strconv.FormatUint(req.ShowtimeID, 10),
            payment.MetaSeats:      strings.Join(sel.Seats, ","),
            payment.MetaDiscounts:  sel.Assignments.Encode(),
            payment.MetaUserID:     middleware.UserID(c),
        },
    })
    if err != nil {
        return gatewayFailure(c, h.Log, err)
    }
    return response.Created(c, echo.Map{
        "client_secret":     intent.ClientSecret,
        "payment_intent_id": intent.ID,
        "amount_cents":      intent.AmountCents,
        "currency":          intent.Currency,
    })
}

// CreateBooking handles POST /v1/bookings.  It is the finalization entry
// point: on success one ticket and one booking per seat exist.
func (h *BookingHandler) CreateBooking(c echo.Context) error {
    var req booking.Request
    if err := bind(c, &req); err != nil {
        return fail(c, h.Log, err)
    }
    req.UserID = middleware.UserID(c)
    res, err := h.Bookings.CreateBooking(c.Request().Context(), req)
    if err != nil {
        return fail(c, h.Log, err)
    }
    return response.Created(c, res)
}
