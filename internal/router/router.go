// Package router registers the HTTP routes of the booking API.
package router

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/cinema-seat-booking/internal/handler"
    "github.com/iliyamo/cinema-seat-booking/internal/middleware"
)

// Handlers bundles everything the routes dispatch to.
type Handlers struct {
    Health   *handler.HealthHandler
    Catalog  *handler.CatalogHandler
    Holds    *handler.HoldHandler
    Bookings *handler.BookingHandler
    Checkout *handler.CheckoutHandler
}

// Middlewares are applied to specific route groups.  Nil entries are
// skipped.
type Middlewares struct {
    SeatCache echo.MiddlewareFunc // seat grid response cache
    HoldLimit echo.MiddlewareFunc // hold publish rate limit
}

// Register mounts every route on e.
func Register(e *echo.Echo, h Handlers, mw Middlewares, jwtSecret string) {
    e.GET("/healthz", h.Health.Health)

    requireAuth := middleware.RequireAuth(jwtSecret)
    optionalAuth := middleware.OptionalAuth(jwtSecret)

    v1 := e.Group("/v1")

    // Seat selection, open to guests.
    v1.GET("/screens/:id/seats", h.Catalog.ScreenSeats, optional(mw.SeatCache)...)
    v1.GET("/discounts/active", h.Catalog.ActiveDiscounts)
    v1.POST("/alignment", h.Catalog.Alignment)
    v1.POST("/pricing/quote", h.Catalog.Quote)

    v1.PUT("/showtimes/:id/holds", h.Holds.PublishHold, append([]echo.MiddlewareFunc{optionalAuth}, optional(mw.HoldLimit)...)...)
    v1.GET("/showtimes/:id/occupancy", h.Holds.Occupancy)
    v1.GET("/showtimes/:id/occupancy/stream", h.Holds.OccupancyStream)

    // Payment and finalization contracts.
    v1.POST("/checkout-sessions", h.Bookings.CreateCheckoutSession, requireAuth)
    v1.POST("/bookings", h.Bookings.CreateBooking, requireAuth)

    // Server-driven checkout.
    co := v1.Group("/checkout")
    co.POST("", h.Checkout.Start)
    co.GET("/:id", h.Checkout.Get)
    co.PUT("/:id/selection", h.Checkout.Select)
    co.POST("/:id/confirm", h.Checkout.Confirm, optionalAuth)
    co.POST("/:id/resume", h.Checkout.Resume, requireAuth)
    co.POST("/:id/payment-result", h.Checkout.PaymentResult, requireAuth)
    co.POST("/:id/retry", h.Checkout.Retry, requireAuth)
    co.POST("/:id/close", h.Checkout.Close)
}

func optional(m echo.MiddlewareFunc) []echo.MiddlewareFunc {
    if m == nil {
        return nil
    }
    return []echo.MiddlewareFunc{m}
}
