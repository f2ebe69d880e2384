package handler

import (
    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/cinema-seat-booking/internal/checkout"
    "github.com/iliyamo/cinema-seat-booking/internal/handler/response"
    "github.com/iliyamo/cinema-seat-booking/internal/middleware"
    "github.com/iliyamo/cinema-seat-booking/internal/pricing"
)

// CheckoutHandler maps the checkout state machine onto HTTP.  Every
// successful call returns the whole session so clients render from it.
type CheckoutHandler struct {
    Machine *checkout.Machine
    Log     *zap.Logger
}

func NewCheckoutHandler(m *checkout.Machine, log *zap.Logger) *CheckoutHandler {
    if m == nil {
        panic("nil machine passed to NewCheckoutHandler")
    }
    return &CheckoutHandler{Machine: m, Log: log}
}

type startRequest struct {
    ShowtimeID uint64 `json:"showtime_id" validate:"required"`
    ScreenID   uint64 `json:"screen_id"`
}

// Start handles POST /v1/checkout.
func (h *CheckoutHandler) Start(c echo.Context) error {
    var req startRequest
    if err := bind(c, &req); err != nil {
        return fail(c, h.Log, err)
    }
    sess, err := h.Machine.Start(c.Request().Context(), req.ShowtimeID, req.ScreenID)
    if err != nil {
        return fail(c, h.Log, err)
    }
    return response.Created(c, sess)
}

// Get handles GET /v1/checkout/:id.
func (h *CheckoutHandler) Get(c echo.Context) error {
    sess, err := h.Machine.Get(c.Request().Context(), c.Param("id"))
    if err != nil {
        return fail(c, h.Log, err)
    }
    return response.OK(c, sess)
}

type selectionRequest struct {
    Seats     []string            `json:"seats" validate:"dive,required"`
    Discounts pricing.Assignments `json:"discounts"`
}

// Select handles PUT /v1/checkout/:id/selection.
func (h *CheckoutHandler) Select(c echo.Context) error {
    var req selectionRequest
    if err := bind(c, &req); err != nil {
        return fail(c, h.Log, err)
    }
    sess, err := h.Machine.Select(c.Request().Context(), c.Param("id"), req.Seats, req.Discounts)
    if err != nil {
        return fail(c, h.Log, err)
    }
    return response.OK(c, sess)
}

// Confirm handles POST /v1/checkout/:id/confirm.  Anonymous callers get
// 401 with the selection kept; after signing in they call resume.
func (h *CheckoutHandler) Confirm(c echo.Context) error {
    sess, err := h.Machine.Confirm(c.Request().Context(), c.Param("id"), middleware.UserID(c))
    if err != nil {
        return fail(c, h.Log, err)
    }
    return response.OK(c, sess)
}

// Resume handles POST /v1/checkout/:id/resume.
func (h *CheckoutHandler) Resume(c echo.Context) error {
    sess, err := h.Machine.Resume(c.Request().Context(), c.Param("id"), middleware.UserID(c))
    if err != nil {
        return fail(c, h.Log, err)
    }
    return response.OK(c, sess)
}

type paymentResultRequest struct {
    ClientSecret string `json:"client_secret" validate:"required"`
    Succeeded    bool   `json:"succeeded"`
}

// PaymentResult handles POST /v1/checkout/:id/payment-result, the outcome
// reported by the embedded payment form.
func (h *CheckoutHandler) PaymentResult(c echo.Context) error {
    var req paymentResultRequest
    if err := bind(c, &req); err != nil {
        return fail(c, h.Log, err)
    }
    sess, err := h.Machine.CompletePayment(c.Request().Context(), c.Param("id"), middleware.UserID(c), req.ClientSecret, req.Succeeded)
    if err != nil {
        return fail(c, h.Log, err)
    }
    return response.OK(c, sess)
}

// Retry handles POST /v1/checkout/:id/retry.
func (h *CheckoutHandler) Retry(c echo.Context) error {
    sess, err := h.Machine.Retry(c.Request().Context(), c.Param("id"), middleware.UserID(c))
    if err != nil {
        return fail(c, h.Log, err)
    }
    return response.OK(c, sess)
}

// Close handles POST /v1/checkout/:id/close.  A discarded session answers
// 200 with closed=true and no session.
func (h *CheckoutHandler) Close(c echo.Context) error {
    sess, err := h.Machine.Close(c.Request().Context(), c.Param("id"))
    if err != nil {
        return fail(c, h.Log, err)
    }
    if sess == nil {
        return response.OK(c, echo.Map{"closed": true})
    }
    return response.OK(c, echo.Map{"closed": false, "session": sess})
}
