package handler

import (
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/cinema-seat-booking/internal/handler/response"
    "github.com/iliyamo/cinema-seat-booking/internal/model"
)

// HoldLedger is the temporary hold ledger as seen by HTTP clients.
type HoldLedger interface {
    Publish(ctx context.Context, showtimeID uint64, sessionID string, seats []string) (model.TemporaryHold, error)
    OccupiedByOthers(ctx context.Context, showtimeID uint64, own []string) ([]string, error)
}

// OccupancyEvents delivers a signal whenever a showtime's holds change.
type OccupancyEvents interface {
    Subscribe(ctx context.Context, showtimeID uint64) (<-chan struct{}, error)
}

// HoldHandler publishes shopper selections and reports occupancy.
type HoldHandler struct {
    Ledger       HoldLedger
    Events       OccupancyEvents // optional; streams fall back to polling
    PollInterval time.Duration
    Log          *zap.Logger
}

func NewHoldHandler(ledger HoldLedger, events OccupancyEvents, poll time.Duration, log *zap.Logger) *HoldHandler {
    if ledger == nil {
        panic("nil ledger passed to NewHoldHandler")
    }
    if poll <= 0 {
        poll = 3 * time.Second
    }
    return &HoldHandler{Ledger: ledger, Events: events, PollInterval: poll, Log: log}
}

type publishHoldRequest struct {
    SessionID string   `json:"session_id" validate:"omitempty,max=64"`
    Seats     []string `json:"seats" validate:"dive,required"`
}

// PublishHold handles PUT /v1/showtimes/:id/holds.  The body replaces the
// session's hold; an empty seat list clears it.  When session_id is omitted
// a new one is issued and must be sent back on later calls.
func (h *HoldHandler) PublishHold(c echo.Context) error {
    id, err := idParam(c, "id")
    if err != nil {
        return fail(c, h.Log, err)
    }
    var req publishHoldRequest
    if err := bind(c, &req); err != nil {
        return fail(c, h.Log, err)
    }
    held, err := h.Ledger.Publish(c.Request().Context(), id, req.SessionID, req.Seats)
    if err != nil {
        return fail(c, h.Log, err)
    }
    data := echo.Map{
        "session_id": held.SessionID,
        "seats":      held.Seats,
    }
    if len(held.Seats) > 0 {
        data["expires_at"] = held.ExpiresAt
    }
    return response.OK(c, data)
}

// Occupancy handles GET /v1/showtimes/:id/occupancy.  Seats listed in the
// comma separated ?exclude= parameter (the caller's own selection) are
// left out.  X-Poll-Interval tells clients how often to refresh.
func (h *HoldHandler) Occupancy(c echo.Context) error {
    id, err := idParam(c, "id")
    if err != nil {
        return fail(c, h.Log, err)
    }
    seats, err := h.Ledger.OccupiedByOthers(c.Request().Context(), id, excludeParam(c))
    if err != nil {
        return fail(c, h.Log, err)
    }
    c.Response().Header().Set("X-Poll-Interval", strconv.FormatInt(h.PollInterval.Milliseconds(), 10))
    return response.OK(c, occupancySnapshot{ShowtimeID: id, Seats: seats})
}

type occupancySnapshot struct {
    ShowtimeID uint64   `json:"showtime_id"`
    Seats      []string `json:"seats"`
}

// OccupancyStream handles GET /v1/showtimes/:id/occupancy/stream as
// server-sent events.  A snapshot is sent on connect, on every change
// notice and on every poll tick, since expiries produce no notice.
func (h *HoldHandler) OccupancyStream(c echo.Context) error {
    id, err := idParam(c, "id")
    if err != nil {
        return fail(c, h.Log, err)
    }
    ctx := c.Request().Context()
    own := excludeParam(c)

    var changes <-chan struct{}
    if h.Events != nil {
        if changes, err = h.Events.Subscribe(ctx, id); err != nil {
            h.Log.Warn("occupancy subscription failed, polling only", zap.Uint64("showtime_id", id), zap.Error(err))
            changes = nil
        }
    }

    res := c.Response()
    res.Header().Set(echo.HeaderContentType, "text/event-stream")
    res.Header().Set(echo.HeaderCacheControl, "no-cache")
    res.Header().Set(echo.HeaderConnection, "keep-alive")
    res.Header().Set("X-Accel-Buffering", "no")
    res.WriteHeader(http.StatusOK)

    var last string
    send := func() error {
        seats, err := h.Ledger.OccupiedByOthers(ctx, id, own)
        if err != nil {
            return err
        }
        payload, err := json.Marshal(occupancySnapshot{ShowtimeID: id, Seats: seats})
        if err != nil {
            return err
        }
        if string(payload) == last {
            _, err = fmt.Fprint(res, ": keep-alive\n\n")
        } else {
            last = string(payload)
            _, err = fmt.Fprintf(res, "event: occupancy\ndata: %s\n\n", payload)
        }
        if err == nil {
            res.Flush()
        }
        return err
    }

    ticker := time.NewTicker(h.PollInterval)
    defer ticker.Stop()
    for err = send(); err == nil; {
        select {
        case <-ctx.Done():
            return nil
        case _, ok := <-changes:
            if !ok {
                changes = nil
                continue
            }
            err = send()
        case <-ticker.C:
            err = send()
        }
    }
    if ctx.Err() == nil {
        h.Log.Warn("occupancy stream aborted", zap.Uint64("showtime_id", id), zap.Error(err))
    }
    return nil
}

func excludeParam(c echo.Context) []string {
    raw := c.QueryParam("exclude")
    if raw == "" {
        return nil
    }
    var out []string
    for _, p := range strings.Split(raw, ",") {
        if p = strings.TrimSpace(p); p != "" {
            out = append(out, p)
        }
    }
    return out
}
