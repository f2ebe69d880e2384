package checkout

import (
    "context"
    "errors"
    "fmt"
    "strconv"
    "strings"

    "github.com/google/uuid"
    "github.com/shopspring/decimal"
    "go.uber.org/zap"

    "github.com/iliyamo/cinema-seat-booking/internal/adjacency"
    "github.com/iliyamo/cinema-seat-booking/internal/booking"
    "github.com/iliyamo/cinema-seat-booking/internal/clock"
    "github.com/iliyamo/cinema-seat-booking/internal/model"
    "github.com/iliyamo/cinema-seat-booking/internal/payment"
    "github.com/iliyamo/cinema-seat-booking/internal/pricing"
    "github.com/iliyamo/cinema-seat-booking/internal/seatmap"
)

var (
    ErrEmptySelection         = errors.New("no seats selected")
    ErrAuthenticationRequired = errors.New("authentication required")
    ErrForbidden              = errors.New("checkout session belongs to another user")
    ErrClientSecretMismatch   = errors.New("client secret does not belong to this checkout")
    ErrScreenMismatch         = errors.New("screen does not host this showtime")
)

// ShowtimeReader loads the showtime read model.
type ShowtimeReader interface {
    GetDetail(ctx context.Context, id uint64) (model.Showtime, error)
}

// DiscountCatalog lists active discounts.
type DiscountCatalog interface {
    ActiveDiscounts(ctx context.Context) ([]model.Discount, error)
}

// GridBuilder builds the seat grid of a screen.
type GridBuilder interface {
    BuildGrid(ctx context.Context, screenID uint64) (*seatmap.Grid, error)
}

// HoldLedger publishes the session's selection for other shoppers.
type HoldLedger interface {
    Publish(ctx context.Context, showtimeID uint64, sessionID string, seats []string) (model.TemporaryHold, error)
    Release(ctx context.Context, showtimeID uint64, sessionID string) error
    Booked(ctx context.Context, showtimeID uint64) ([]string, error)
}

// Finalizer turns a paid selection into a ticket.
type Finalizer interface {
    CreateBooking(ctx context.Context, req booking.Request) (*booking.Result, error)
}

// Deps are the collaborators of a Machine.
type Deps struct {
    Sessions  SessionStore
    Showtimes ShowtimeReader
    Discounts DiscountCatalog
    Grids     GridBuilder
    Holds     HoldLedger
    Payments  payment.Gateway
    Bookings  Finalizer
    Pricing   *pricing.Engine
    Clock     clock.Clock
    Log       *zap.Logger
    Currency  string
}

// Machine executes checkout transitions.  Calls on the same session are
// serialized within a process.
type Machine struct {
    d     Deps
    locks keyedMutex
}

func NewMachine(d Deps) *Machine {
    if d.Clock == nil {
        d.Clock = clock.NewSystem()
    }
    if d.Log == nil {
        d.Log = zap.NewNop()
    }
    if d.Currency == "" {
        d.Currency = "eur"
    }
    return &Machine{d: d}
}

func (m *Machine) lock(id string) func() {
    return m.locks.lock(id)
}

// Get returns the current session.
func (m *Machine) Get(ctx context.Context, id string) (*Session, error) {
    return m.d.Sessions.Get(ctx, id)
}

// Start opens a session in the selection state.  A zero screenID is taken
// from the showtime.
func (m *Machine) Start(ctx context.Context, showtimeID, screenID uint64) (*Session, error) {
    st, err := m.d.Showtimes.GetDetail(ctx, showtimeID)
    if err != nil {
        return nil, err
    }
    if screenID != 0 && screenID != st.ScreenID {
        return nil, ErrScreenMismatch
    }
    now := m.d.Clock.Now()
    if st.HasStarted(now) {
        return nil, booking.ErrShowtimeStarted
    }
    sess := &Session{
        ID:         uuid.NewString(),
        State:      StateSelection,
        ShowtimeID: st.ID,
        ScreenID:   st.ScreenID,
        Total:      decimal.Zero,
        CreatedAt:  now,
        UpdatedAt:  now,
    }
    if err := m.d.Sessions.Save(ctx, sess); err != nil {
        return nil, err
    }
    m.d.Log.Debug("checkout started", zap.String("session_id", sess.ID), zap.Uint64("showtime_id", st.ID))
    return sess, nil
}

// Select replaces the selection, prices it, refreshes the alignment advice
// and publishes the seats as a temporary hold.
func (m *Machine) Select(ctx context.Context, id string, seats []string, choices pricing.Assignments) (*Session, error) {
    defer m.lock(id)()
    sess, err := m.d.Sessions.Get(ctx, id)
    if err != nil {
        return nil, err
    }
    if sess.State != StateSelection {
        return nil, fmt.Errorf("%w: cannot change seats in %s", ErrInvalidTransition, sess.State)
    }
    canonical, err := canonicalSeats(seats)
    if err != nil {
        return nil, err
    }
    sess.Seats = canonical
    sess.Choices = choices
    if err := m.price(ctx, sess); err != nil {
        return nil, err
    }
    if _, err := m.d.Holds.Publish(ctx, sess.ShowtimeID, sess.ID, sess.Seats); err != nil {
        return nil, err
    }
    return sess, m.save(ctx, sess)
}

// Confirm moves a non-empty selection to payment.  An anonymous shopper
// gets ErrAuthenticationRequired and the selection is kept for Resume.
func (m *Machine) Confirm(ctx context.Context, id, userID string) (*Session, error) {
    defer m.lock(id)()
    sess, err := m.d.Sessions.Get(ctx, id)
    if err != nil {
        return nil, err
    }
    if sess.State != StateSelection {
        return nil, fmt.Errorf("%w: cannot confirm in %s", ErrInvalidTransition, sess.State)
    }
    if len(sess.Seats) == 0 {
        return nil, ErrEmptySelection
    }
    if userID == "" {
        sess.PendingAuth = true
        if err := m.save(ctx, sess); err != nil {
            return nil, err
        }
        return sess, ErrAuthenticationRequired
    }
    if sess.UserID != "" && sess.UserID != userID {
        return nil, ErrForbidden
    }
    sess.UserID = userID
    sess.PendingAuth = false
    m.requestPayment(ctx, sess)
    return sess, m.save(ctx, sess)
}

// Resume restores a selection cached by an anonymous Confirm.  The state
// stays selection; the shopper confirms again.
func (m *Machine) Resume(ctx context.Context, id, userID string) (*Session, error) {
    if userID == "" {
        return nil, ErrAuthenticationRequired
    }
    defer m.lock(id)()
    sess, err := m.d.Sessions.Get(ctx, id)
    if err != nil {
        return nil, err
    }
    if sess.State != StateSelection {
        return nil, fmt.Errorf("%w: cannot resume in %s", ErrInvalidTransition, sess.State)
    }
    if sess.UserID != "" && sess.UserID != userID {
        return nil, ErrForbidden
    }
    sess.UserID = userID
    if sess.PendingAuth {
        sess.PendingAuth = false
        // The hold may have lapsed while the shopper was signing in.
        if _, err := m.d.Holds.Publish(ctx, sess.ShowtimeID, sess.ID, sess.Seats); err != nil {
            return nil, err
        }
    }
    return sess, m.save(ctx, sess)
}

// CompletePayment records the outcome reported by the payment form.  On
// success the booking is finalized and the session enters confirmation;
// any failure leaves it in error with a shopper-facing message.
func (m *Machine) CompletePayment(ctx context.Context, id, userID, clientSecret string, succeeded bool) (*Session, error) {
    defer m.lock(id)()
    sess, err := m.d.Sessions.Get(ctx, id)
    if err != nil {
        return nil, err
    }
    if sess.State != StatePayment {
        return nil, fmt.Errorf("%w: no payment pending in %s", ErrInvalidTransition, sess.State)
    }
    if sess.UserID != userID {
        return nil, ErrForbidden
    }
    if clientSecret != sess.ClientSecret {
        return nil, ErrClientSecretMismatch
    }
    if !succeeded {
        m.fail(sess, "payment was not completed")
        return sess, m.save(ctx, sess)
    }

    ref, err := payment.IntentIDFromClientSecret(clientSecret)
    if err != nil {
        m.fail(sess, "payment reference is invalid")
        return sess, m.save(ctx, sess)
    }
    sess.PaymentRef = ref
    res, err := m.d.Bookings.CreateBooking(ctx, booking.Request{
        ShowtimeID:      sess.ShowtimeID,
        Seats:           sess.Seats,
        TotalAmount:     sess.Total,
        Discounts:       sess.Assignments,
        PaymentIntentID: ref,
        UserID:          sess.UserID,
    })
    if err != nil {
        // The payment is captured at this point and nothing refunds it.
        m.d.Log.Error("finalization failed after payment",
            zap.String("session_id", sess.ID),
            zap.String("payment_ref", ref),
            zap.Error(err),
        )
        m.fail(sess, failureMessage(err))
        return sess, m.save(ctx, sess)
    }
    if err := sess.moveTo(StateConfirmation); err != nil {
        return nil, err
    }
    sess.Ticket = &res.Ticket
    sess.Bookings = res.Bookings
    sess.LastError = ""
    if err := m.d.Holds.Release(ctx, sess.ShowtimeID, sess.ID); err != nil {
        m.d.Log.Warn("release hold after booking", zap.String("session_id", sess.ID), zap.Error(err))
    }
    return sess, m.save(ctx, sess)
}

// Retry requests a fresh payment intent for the same selection.
func (m *Machine) Retry(ctx context.Context, id, userID string) (*Session, error) {
    defer m.lock(id)()
    sess, err := m.d.Sessions.Get(ctx, id)
    if err != nil {
        return nil, err
    }
    if sess.State != StateError {
        return nil, fmt.Errorf("%w: cannot retry in %s", ErrInvalidTransition, sess.State)
    }
    if sess.UserID != userID {
        return nil, ErrForbidden
    }
    m.requestPayment(ctx, sess)
    return sess, m.save(ctx, sess)
}

// Close ends the flow.  From confirmation the session is reset to an empty
// selection; from selection or error it is discarded with its hold, and
// nil is returned.
func (m *Machine) Close(ctx context.Context, id string) (*Session, error) {
    defer m.lock(id)()
    sess, err := m.d.Sessions.Get(ctx, id)
    if err != nil {
        return nil, err
    }
    if !CanClose(sess.State) {
        return nil, fmt.Errorf("%w: cannot close in %s", ErrInvalidTransition, sess.State)
    }
    if sess.State == StateConfirmation {
        sess.reset()
        if err := sess.moveTo(StateSelection); err != nil {
            return nil, err
        }
        return sess, m.save(ctx, sess)
    }
    if err := m.d.Holds.Release(ctx, sess.ShowtimeID, sess.ID); err != nil {
        return nil, err
    }
    if err := m.d.Sessions.Delete(ctx, sess.ID); err != nil {
        return nil, err
    }
    return nil, nil
}

func (m *Machine) price(ctx context.Context, sess *Session) error {
    st, err := m.d.Showtimes.GetDetail(ctx, sess.ShowtimeID)
    if err != nil {
        return err
    }
    now := m.d.Clock.Now()
    if st.HasStarted(now) {
        return booking.ErrShowtimeStarted
    }
    grid, err := m.d.Grids.BuildGrid(ctx, st.ScreenID)
    if err != nil {
        return err
    }
    discounts, err := m.d.Discounts.ActiveDiscounts(ctx)
    if err != nil {
        return err
    }
    assign, err := m.d.Pricing.Assign(grid, sess.Seats, sess.Choices, discounts, now)
    if err != nil {
        return err
    }
    quote, err := m.d.Pricing.Quote(st.Screen.BasePrice, sess.Seats, assign, discounts)
    if err != nil {
        return err
    }
    // Alignment looks at booked seats only, not at other shoppers' holds.
    booked, err := m.d.Holds.Booked(ctx, sess.ShowtimeID)
    if err != nil {
        return err
    }
    align := adjacency.CheckAlignment(sess.Seats, grid, booked)

    sess.Assignments = assign
    sess.Lines = quote.Lines
    sess.Total = quote.Total
    sess.Alignment = &align
    sess.Warnings = align.Warnings()
    return nil
}

// requestPayment asks the gateway for an intent.  The session ends in
// payment on success and in error otherwise.
func (m *Machine) requestPayment(ctx context.Context, sess *Session) {
    intent, err := m.d.Payments.CreatePaymentIntent(ctx, payment.IntentRequest{
        AmountCents: pricing.Cents(sess.Total),
        Currency:    m.d.Currency,
        Description: fmt.Sprintf("showtime %d: %s", sess.ShowtimeID, strings.Join(sess.Seats, ", ")),
        Metadata: map[string]string{
            "checkout_session":     sess.ID,
            payment.MetaShowtimeID: strconv.FormatUint(sess.ShowtimeID, 10),
            payment.MetaSeats:      strings.Join(sess.Seats, ","),
            payment.MetaDiscounts:  sess.Assignments.Encode(),
            payment.MetaUserID:     sess.UserID,
        },
    })
    if err != nil || intent.ClientSecret == "" {
        m.d.Log.Warn("payment intent unavailable",
            zap.String("session_id", sess.ID),
            zap.String("gateway", m.d.Payments.Name()),
            zap.Error(err),
        )
        m.fail(sess, "payment is unavailable, please retry")
        return
    }
    if sess.State != StatePayment {
        _ = sess.moveTo(StatePayment)
    }
    sess.ClientSecret = intent.ClientSecret
    sess.PaymentRef = intent.ID
    sess.LastError = ""
}

func (m *Machine) fail(sess *Session, msg string) {
    if sess.State != StateError {
        _ = sess.moveTo(StateError)
    }
    sess.LastError = msg
}

func (m *Machine) save(ctx context.Context, sess *Session) error {
    sess.UpdatedAt = m.d.Clock.Now()
    return m.d.Sessions.Save(ctx, sess)
}

func failureMessage(err error) string {
    switch {
    case errors.Is(err, pricing.ErrPriceMismatch):
        return "prices have changed, please review your selection"
    case errors.Is(err, booking.ErrSeatsAlreadyBooked):
        return "certain seats are already booked"
    case errors.Is(err, booking.ErrSeatsNotFound):
        return "seats do not exist"
    case errors.Is(err, booking.ErrShowtimeStarted):
        return "the showtime has already started"
    case errors.Is(err, booking.ErrPaymentIncomplete):
        return "payment has not been completed"
    case errors.Is(err, booking.ErrPaymentMismatch), errors.Is(err, booking.ErrPaymentAlreadyUsed):
        return "the payment does not match this booking"
    case errors.Is(err, pricing.ErrDiscountNotAllowed), errors.Is(err, pricing.ErrUnknownDiscount):
        return "a selected discount is no longer available"
    }
    return "the booking could not be completed"
}

func canonicalSeats(in []string) ([]string, error) {
    seen := make(map[string]struct{}, len(in))
    out := make([]string, 0, len(in))
    for _, raw := range in {
        id, err := seatmap.Normalize(raw)
        if err != nil {
            return nil, err
        }
        if _, dup := seen[id]; dup {
            continue
        }
        seen[id] = struct{}{}
        out = append(out, id)
    }
    return out, nil
}
