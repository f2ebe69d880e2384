package handler_test

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/shopspring/decimal"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "go.uber.org/zap"

    "github.com/iliyamo/cinema-seat-booking/internal/booking"
    "github.com/iliyamo/cinema-seat-booking/internal/checkout"
    "github.com/iliyamo/cinema-seat-booking/internal/clock"
    "github.com/iliyamo/cinema-seat-booking/internal/handler"
    "github.com/iliyamo/cinema-seat-booking/internal/hold"
    "github.com/iliyamo/cinema-seat-booking/internal/middleware"
    "github.com/iliyamo/cinema-seat-booking/internal/model"
    "github.com/iliyamo/cinema-seat-booking/internal/payment"
    "github.com/iliyamo/cinema-seat-booking/internal/pricing"
    "github.com/iliyamo/cinema-seat-booking/internal/repository"
    "github.com/iliyamo/cinema-seat-booking/internal/router"
    "github.com/iliyamo/cinema-seat-booking/internal/seatmap"
)

const jwtSecret = "handler-test"

var now = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

var screen = model.Screen{ID: 7, Number: 3, Rows: 2, Columns: 3, BasePrice: decimal.NewFromInt(19)}

type stubShowtimes struct{}

func (stubShowtimes) GetDetail(_ context.Context, id uint64) (model.Showtime, error) {
    if id != 1 {
        return model.Showtime{}, repository.ErrShowtimeNotFound
    }
    return model.Showtime{ID: 1, ScreenID: 7, StartTime: now.Add(time.Hour), Screen: screen}, nil
}

type stubDiscounts struct{}

func (stubDiscounts) ActiveDiscounts(context.Context) ([]model.Discount, error) {
    return []model.Discount{
        {ID: 5, Name: "Tarif PMR", Amount: decimal.NewFromInt(4), Active: true},
        {ID: 6, Name: "Student", Amount: decimal.NewFromInt(3), Active: true, Recurrent: true},
    }, nil
}

type stubCatalog struct{}

func (stubCatalog) ScreenConfiguration(_ context.Context, id uint64) (model.Screen, []model.Seat, error) {
    if id != 7 {
        return model.Screen{}, nil, repository.ErrScreenNotFound
    }
    return screen, []model.Seat{
        {ID: 101, Row: 1, Column: 1, Accessible: true},
        {ID: 102, Row: 1, Column: 2},
        {ID: 103, Row: 1, Column: 3},
        {ID: 201, Row: 2, Column: 1},
        {ID: 202, Row: 2, Column: 2},
    }, nil
}

type noBookings struct{}

func (noBookings) ListByShowtime(context.Context, uint64) ([]model.Booking, error) { return nil, nil }

type stubFinalizer struct {
    last booking.Request
    err  error
}

func (f *stubFinalizer) CreateBooking(_ context.Context, req booking.Request) (*booking.Result, error) {
    f.last = req
    if f.err != nil {
        return nil, f.err
    }
    return &booking.Result{Ticket: model.Ticket{ID: 9, Code: "T-9", PaymentRef: req.PaymentIntentID}}, nil
}

type env struct {
    e       *echo.Echo
    ledger  *hold.Ledger
    gateway *payment.MockGateway
    final   *stubFinalizer
}

func newEnv(t *testing.T) *env {
    t.Helper()
    log := zap.NewNop()
    clk := clock.NewManual(now)
    engine := pricing.NewEngine(log)
    grids := seatmap.NewBuilder(stubCatalog{})
    ledger := hold.NewLedger(hold.NewMemoryStore(), noBookings{}, clk, log)
    gw := payment.NewMockGateway()
    final := &stubFinalizer{}
    q := &handler.Quoter{Showtimes: stubShowtimes{}, Discounts: stubDiscounts{}, Grids: grids, Pricing: engine, Clock: clk}
    machine := checkout.NewMachine(checkout.Deps{
        Sessions:  checkout.NewMemorySessionStore(),
        Showtimes: stubShowtimes{},
        Discounts: stubDiscounts{},
        Grids:     grids,
        Holds:     ledger,
        Payments:  gw,
        Bookings:  final,
        Pricing:   engine,
        Clock:     clk,
        Log:       log,
    })

    e := echo.New()
    e.Validator = handler.NewRequestValidator()
    router.Register(e, router.Handlers{
        Health:   &handler.HealthHandler{},
        Catalog:  handler.NewCatalogHandler(q, ledger, log),
        Holds:    handler.NewHoldHandler(ledger, nil, 50*time.Millisecond, log),
        Bookings: handler.NewBookingHandler(q, gw, final, "eur", log),
        Checkout: handler.NewCheckoutHandler(machine, log),
    }, router.Middlewares{}, jwtSecret)
    return &env{e: e, ledger: ledger, gateway: gw, final: final}
}

type envelope struct {
    Success bool            `json:"success"`
    Data    json.RawMessage `json:"data"`
    Error   *struct {
        Code    string `json:"code"`
        Message string `json:"message"`
    } `json:"error"`
}

func (v *env) do(t *testing.T, method, path, body, user string) (*httptest.ResponseRecorder, envelope) {
    t.Helper()
    req := httptest.NewRequest(method, path, strings.NewReader(body))
    req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    if user != "" {
        tok, err := middleware.IssueToken(jwtSecret, user, time.Hour)
        require.NoError(t, err)
        req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
    }
    rec := httptest.NewRecorder()
    v.e.ServeHTTP(rec, req)
    var out envelope
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
    return rec, out
}

func TestHealth(t *testing.T) {
    v := newEnv(t)
    rec, out := v.do(t, http.MethodGet, "/healthz", "", "")
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.True(t, out.Success)
}

func TestHealthReportsFailingDependency(t *testing.T) {
    e := echo.New()
    h := &handler.HealthHandler{Redis: func(context.Context) error { return errors.New("down") }}
    e.GET("/healthz", h.Health)
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
    assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
    assert.Contains(t, rec.Body.String(), `"redis":"down"`)
}

func TestScreenSeats(t *testing.T) {
    v := newEnv(t)
    rec, out := v.do(t, http.MethodGet, "/v1/screens/7/seats", "", "")
    require.Equal(t, http.StatusOK, rec.Code)
    var grid seatmap.Grid
    require.NoError(t, json.Unmarshal(out.Data, &grid))
    require.Len(t, grid.Cells, 5)
    assert.Equal(t, "B2", grid.Cells[0].ID)
    assert.Equal(t, "A1", grid.Cells[4].ID)
    assert.True(t, grid.Cells[4].Accessible)

    rec, out = v.do(t, http.MethodGet, "/v1/screens/8/seats", "", "")
    assert.Equal(t, http.StatusNotFound, rec.Code)
    assert.Equal(t, "NOT_FOUND", out.Error.Code)

    rec, _ = v.do(t, http.MethodGet, "/v1/screens/abc/seats", "", "")
    assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActiveDiscounts(t *testing.T) {
    v := newEnv(t)
    rec, out := v.do(t, http.MethodGet, "/v1/discounts/active", "", "")
    require.Equal(t, http.StatusOK, rec.Code)
    var data struct {
        Choices       []model.Discount `json:"choices"`
        Accessibility *model.Discount  `json:"accessibility"`
    }
    require.NoError(t, json.Unmarshal(out.Data, &data))
    require.Len(t, data.Choices, 1)
    assert.Equal(t, "Student", data.Choices[0].Name)
    require.NotNil(t, data.Accessibility)
    assert.Equal(t, uint64(5), data.Accessibility.ID)
}

func TestHoldsAndOccupancy(t *testing.T) {
    v := newEnv(t)
    rec, out := v.do(t, http.MethodPut, "/v1/showtimes/1/holds", `{"seats":["a1","A2"]}`, "")
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
    var held struct {
        SessionID string   `json:"session_id"`
        Seats     []string `json:"seats"`
    }
    require.NoError(t, json.Unmarshal(out.Data, &held))
    assert.NotEmpty(t, held.SessionID)
    assert.Equal(t, []string{"A1", "A2"}, held.Seats)

    rec, out = v.do(t, http.MethodGet, "/v1/showtimes/1/occupancy?exclude=A2", "", "")
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "50", rec.Header().Get("X-Poll-Interval"))
    assert.JSONEq(t, `{"showtime_id":1,"seats":["A1"]}`, string(out.Data))

    rec, _ = v.do(t, http.MethodPut, "/v1/showtimes/1/holds", `{"seats":["1A"]}`, "")
    assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOccupancyStream(t *testing.T) {
    v := newEnv(t)
    _, err := v.ledger.Publish(context.Background(), 1, "other", []string{"B1"})
    require.NoError(t, err)

    ctx, cancel := context.WithCancel(context.Background())
    req := httptest.NewRequest(http.MethodGet, "/v1/showtimes/1/occupancy/stream", nil).WithContext(ctx)
    rec := httptest.NewRecorder()
    done := make(chan struct{})
    go func() {
        v.e.ServeHTTP(rec, req)
        close(done)
    }()
    time.Sleep(120 * time.Millisecond)
    cancel()
    select {
    case <-done:
    case <-time.After(2 * time.Second):
        t.Fatal("stream did not stop after the client left")
    }

    assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
    body := rec.Body.String()
    assert.Equal(t, 1, strings.Count(body, "event: occupancy"), "unchanged snapshots are not resent")
    assert.Contains(t, body, `data: {"showtime_id":1,"seats":["B1"]}`)
    assert.Contains(t, body, ": keep-alive")
}

func TestQuoteAndAlignment(t *testing.T) {
    v := newEnv(t)
    rec, out := v.do(t, http.MethodPost, "/v1/pricing/quote", `{"showtime_id":1,"seats":["A1","A2"]}`, "")
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
    var q struct {
        Total       decimal.Decimal     `json:"total"`
        Assignments pricing.Assignments `json:"assignments"`
    }
    require.NoError(t, json.Unmarshal(out.Data, &q))
    assert.True(t, decimal.NewFromInt(34).Equal(q.Total), q.Total.String())
    assert.Equal(t, uint64(5), q.Assignments["A1"])

    rec, out = v.do(t, http.MethodPost, "/v1/pricing/quote", `{"showtime_id":1,"seats":["A2"],"discounts":{"A2":5}}`, "")
    assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
    assert.Equal(t, "VALIDATION_ERROR", out.Error.Code)

    rec, out = v.do(t, http.MethodPost, "/v1/alignment", `{"showtime_id":1,"seats":["A1","B3"]}`, "")
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Contains(t, string(out.Data), `"same_row":false`)

    rec, out = v.do(t, http.MethodPost, "/v1/alignment", `{"seats":["A1"]}`, "")
    assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
    assert.Contains(t, out.Error.Message, "showtimeid")
}

func TestAlignmentIgnoresOtherShoppersHolds(t *testing.T) {
    v := newEnv(t)
    _, err := v.ledger.Publish(context.Background(), 1, "other", []string{"A2"})
    require.NoError(t, err)

    rec, out := v.do(t, http.MethodPost, "/v1/alignment", `{"showtime_id":1,"seats":["A1","A3"]}`, "")
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
    assert.Contains(t, string(out.Data), `"adjacent":false`)
    assert.Contains(t, string(out.Data), `"has_available_adjacent":true`)
}

func TestCheckoutSessionRequiresAuthAndValidTotal(t *testing.T) {
    v := newEnv(t)
    body := `{"showtime_id":1,"seats":["A1","A2"],"total_amount":34}`

    rec, _ := v.do(t, http.MethodPost, "/v1/checkout-sessions", body, "")
    assert.Equal(t, http.StatusUnauthorized, rec.Code)

    rec, out := v.do(t, http.MethodPost, "/v1/checkout-sessions", `{"showtime_id":1,"seats":["A1","A2"],"total_amount":30}`, "u1")
    assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
    assert.Equal(t, "PRICE_MISMATCH", out.Error.Code)

    rec, out = v.do(t, http.MethodPost, "/v1/checkout-sessions", body, "u1")
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
    var cs struct {
        ClientSecret string `json:"client_secret"`
        AmountCents  int64  `json:"amount_cents"`
    }
    require.NoError(t, json.Unmarshal(out.Data, &cs))
    assert.Equal(t, int64(3400), cs.AmountCents)
    _, err := payment.IntentIDFromClientSecret(cs.ClientSecret)
    assert.NoError(t, err)

    v.gateway.FailCreate = errors.New("boom")
    rec, out = v.do(t, http.MethodPost, "/v1/checkout-sessions", body, "u1")
    assert.Equal(t, http.StatusBadGateway, rec.Code)
    assert.Equal(t, "PAYMENT_ERROR", out.Error.Code)
}

func TestCreateBookingMapsErrors(t *testing.T) {
    v := newEnv(t)
    body := `{"showtime_id":1,"seats":["A1"],"total_amount":15,"payment_intent_id":"pi_1"}`

    rec, out := v.do(t, http.MethodPost, "/v1/bookings", body, "u1")
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
    assert.Contains(t, string(out.Data), `"code":"T-9"`)
    assert.Equal(t, "u1", v.final.last.UserID)

    v.final.err = booking.ErrSeatsAlreadyBooked
    rec, out = v.do(t, http.MethodPost, "/v1/bookings", body, "u1")
    assert.Equal(t, http.StatusConflict, rec.Code)
    assert.Equal(t, "CONFLICT", out.Error.Code)

    v.final.err = fmt.Errorf("%w: pi_1", booking.ErrPaymentAlreadyUsed)
    rec, out = v.do(t, http.MethodPost, "/v1/bookings", body, "u1")
    assert.Equal(t, http.StatusConflict, rec.Code)
    assert.Equal(t, "CONFLICT", out.Error.Code)

    v.final.err = errors.New("connection reset")
    rec, out = v.do(t, http.MethodPost, "/v1/bookings", body, "u1")
    assert.Equal(t, http.StatusInternalServerError, rec.Code)
    assert.Equal(t, "internal server error", out.Error.Message)

    rec, _ = v.do(t, http.MethodPost, "/v1/bookings", `{"showtime_id":1,"seats":[]}`, "u1")
    assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCheckoutFlow(t *testing.T) {
    v := newEnv(t)
    var sess checkout.Session
    decode := func(out envelope) {
        t.Helper()
        require.NoError(t, json.Unmarshal(out.Data, &sess))
    }

    rec, out := v.do(t, http.MethodPost, "/v1/checkout", `{"showtime_id":1}`, "")
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
    decode(out)
    base := "/v1/checkout/" + sess.ID

    rec, out = v.do(t, http.MethodPut, base+"/selection", `{"seats":["A1","A2"]}`, "")
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
    decode(out)
    assert.True(t, decimal.NewFromInt(34).Equal(sess.Total))

    rec, out = v.do(t, http.MethodPost, base+"/confirm", "", "")
    assert.Equal(t, http.StatusUnauthorized, rec.Code)

    rec, out = v.do(t, http.MethodPost, base+"/resume", "", "u1")
    require.Equal(t, http.StatusOK, rec.Code)
    decode(out)
    assert.Equal(t, checkout.StateSelection, sess.State)
    assert.False(t, sess.PendingAuth)

    rec, out = v.do(t, http.MethodPost, base+"/confirm", "", "u1")
    require.Equal(t, http.StatusOK, rec.Code)
    decode(out)
    require.Equal(t, checkout.StatePayment, sess.State)

    rec, _ = v.do(t, http.MethodPost, base+"/close", "", "")
    assert.Equal(t, http.StatusConflict, rec.Code)

    rec, out = v.do(t, http.MethodPost, base+"/payment-result",
        `{"client_secret":"`+sess.ClientSecret+`","succeeded":true}`, "u1")
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
    decode(out)
    assert.Equal(t, checkout.StateConfirmation, sess.State)
    assert.Equal(t, "T-9", sess.Ticket.Code)

    rec, out = v.do(t, http.MethodPost, base+"/close", "", "")
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Contains(t, string(out.Data), `"state":"selection"`)

    rec, _ = v.do(t, http.MethodGet, "/v1/checkout/missing", "", "")
    assert.Equal(t, http.StatusNotFound, rec.Code)
}
