package handler

import (
    "context"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/cinema-seat-booking/internal/adjacency"
    "github.com/iliyamo/cinema-seat-booking/internal/handler/response"
    "github.com/iliyamo/cinema-seat-booking/internal/pricing"
)

// BookedReader reports the seats sold for a showtime.
type BookedReader interface {
    Booked(ctx context.Context, showtimeID uint64) ([]string, error)
}

// CatalogHandler serves the read side of seat selection: grids,
// discounts, alignment advice and price quotes.
type CatalogHandler struct {
    Quoter *Quoter
    Holds  BookedReader
    Log    *zap.Logger
}

func NewCatalogHandler(q *Quoter, holds BookedReader, log *zap.Logger) *CatalogHandler {
    if q == nil || holds == nil {
        panic("nil dependency passed to NewCatalogHandler")
    }
    return &CatalogHandler{Quoter: q, Holds: holds, Log: log}
}

// ScreenSeats handles GET /v1/screens/:id/seats.  The grid lists every
// configured seat with its label; an unconfigured screen yields an empty
// grid.
func (h *CatalogHandler) ScreenSeats(c echo.Context) error {
    id, err := idParam(c, "id")
    if err != nil {
        return fail(c, h.Log, err)
    }
    grid, err := h.Quoter.Grids.BuildGrid(c.Request().Context(), id)
    if err != nil {
        return fail(c, h.Log, err)
    }
    return response.OK(c, grid)
}

// ActiveDiscounts handles GET /v1/discounts/active.  "choices" are the
// discounts a shopper may pick for a regular seat; the accessibility
// discount, when configured, is reported separately because it is applied
// automatically.
func (h *CatalogHandler) ActiveDiscounts(c echo.Context) error {
    all, err := h.Quoter.Discounts.ActiveDiscounts(c.Request().Context())
    if err != nil {
        return fail(c, h.Log, err)
    }
    now := h.Quoter.Clock.Now()
    data := echo.Map{
        "discounts": pricing.ApplicableDiscounts(all, now),
        "choices":   h.Quoter.Pricing.Choices(all, now),
    }
    if d, ok := h.Quoter.Pricing.AccessibilityDiscount(all); ok {
        data["accessibility"] = d
    }
    return response.OK(c, data)
}

type alignmentRequest struct {
    ShowtimeID uint64   `json:"showtime_id" validate:"required"`
    Seats      []string `json:"seats" validate:"required,dive,required"`
}

// Alignment handles POST /v1/alignment.  The result is advisory only.
func (h *CatalogHandler) Alignment(c echo.Context) error {
    var req alignmentRequest
    if err := bind(c, &req); err != nil {
        return fail(c, h.Log, err)
    }
    seats, err := canonicalSeats(req.Seats)
    if err != nil {
        return fail(c, h.Log, err)
    }
    ctx := c.Request().Context()
    st, err := h.Quoter.Showtimes.GetDetail(ctx, req.ShowtimeID)
    if err != nil {
        return fail(c, h.Log, err)
    }
    grid, err := h.Quoter.Grids.BuildGrid(ctx, st.ScreenID)
    if err != nil {
        return fail(c, h.Log, err)
    }
    booked, err := h.Holds.Booked(ctx, st.ID)
    if err != nil {
        return fail(c, h.Log, err)
    }
    a := adjacency.CheckAlignment(seats, grid, booked)
    return response.OK(c, echo.Map{"alignment": a, "warnings": a.Warnings()})
}

type quoteRequest struct {
    ShowtimeID uint64              `json:"showtime_id" validate:"required"`
    Seats      []string            `json:"seats" validate:"required,dive,required"`
    Discounts  pricing.Assignments `json:"discounts"`
}

// Quote handles POST /v1/pricing/quote.  Accessible seats are assigned the
// accessibility discount whatever the request says.
func (h *CatalogHandler) Quote(c echo.Context) error {
    var req quoteRequest
    if err := bind(c, &req); err != nil {
        return fail(c, h.Log, err)
    }
    sel, err := h.Quoter.price(c.Request().Context(), req.ShowtimeID, req.Seats, req.Discounts)
    if err != nil {
        return fail(c, h.Log, err)
    }
    return response.OK(c, echo.Map{
        "seats":       sel.Seats,
        "assignments": sel.Assignments,
        "lines":       sel.Quote.Lines,
        "total":       sel.Quote.Total,
    })
}
