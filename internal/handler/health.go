package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/cinema-seat-booking/internal/handler/response"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
    PingContext(ctx context.Context) error
}

// HealthHandler reports liveness and, when dependencies are given, their
// reachability.
type HealthHandler struct {
    DB    Pinger
    Redis func(ctx context.Context) error // nil when Redis is not configured
}

// Health handles GET /healthz.  It answers 503 when a dependency fails so
// load balancers stop routing to the instance.
func (h *HealthHandler) Health(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
    defer cancel()

    checks := echo.Map{}
    healthy := true
    if h.DB != nil {
        checks["database"] = status(h.DB.PingContext(ctx), &healthy)
    }
    if h.Redis != nil {
        checks["redis"] = status(h.Redis(ctx), &healthy)
    }
    if !healthy {
        return c.JSON(http.StatusServiceUnavailable, response.Body{
            Data:  checks,
            Error: &response.ErrorData{Code: "UNHEALTHY", Message: "dependency check failed"},
        })
    }
    checks["status"] = "ok"
    return response.OK(c, checks)
}

func status(err error, healthy *bool) string {
    if err != nil {
        *healthy = false
        return "down"
    }
    return "up"
}
