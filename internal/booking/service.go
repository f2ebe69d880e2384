// Package booking finalizes a paid checkout: it re-validates the price,
// the showtime and the seats, then writes one ticket and one booking per
// seat in a single transaction.
package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-seat-booking/internal/clock"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
	"github.com/iliyamo/cinema-seat-booking/internal/payment"
	"github.com/iliyamo/cinema-seat-booking/internal/pricing"
	"github.com/iliyamo/cinema-seat-booking/internal/queue"
	"github.com/iliyamo/cinema-seat-booking/internal/repository"
	"github.com/iliyamo/cinema-seat-booking/internal/seatmap"
)

var (
	ErrInvalidRequest     = errors.New("invalid booking request")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrShowtimeStarted    = errors.New("showtime has already started")
	ErrSeatsNotFound      = errors.New("seats do not exist")
	ErrSeatsAlreadyBooked = errors.New("certain seats are already booked")
	ErrPaymentIncomplete  = errors.New("payment has not been completed")
	ErrPaymentMismatch    = errors.New("payment was made for a different booking")
	ErrPaymentAlreadyUsed = errors.New("payment has already been used for another booking")
)

// Request is the booking finalization input.
type Request struct {
	ShowtimeID      uint64              `json:"showtime_id" validate:"required"`
	Seats           []string            `json:"seats" validate:"required,min=1,dive,required"`
	TotalAmount     decimal.Decimal     `json:"total_amount"`
	Discounts       pricing.Assignments `json:"discounts"`
	PaymentIntentID string              `json:"payment_intent_id" validate:"required"`
	UserID          string              `json:"-"`
}

// Result is what a successful finalization created.
type Result struct {
	Ticket   model.Ticket    `json:"ticket"`
	Bookings []model.Booking `json:"bookings"`
}

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

// Store writes tickets and bookings.  Calls made with the context passed to
// the WithTx callback share one transaction.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	BookedSeatIDs(ctx context.Context, showtimeID uint64, seatIDs []uint64) ([]uint64, error)
	CreateTicket(ctx context.Context, t *model.Ticket) error
	CreateBookings(ctx context.Context, bookings []model.Booking) error
	// TicketByPaymentRef returns repository.ErrTicketNotFound when the
	// payment has not been used yet.
	TicketByPaymentRef(ctx context.Context, ref string) (model.Ticket, []model.Booking, error)
}

// PaymentVerifier reads a payment intent back from the provider.
type PaymentVerifier interface {
	GetPaymentIntent(ctx context.Context, id string) (*payment.Intent, error)
}

// EventPublisher announces confirmed bookings.
type EventPublisher interface {
	PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error
}

// Service finalizes bookings.
type Service struct {
	showtimes ShowtimeReader
	discounts DiscountCatalog
	grids     GridBuilder
	store     Store
	pricing   *pricing.Engine
	clock     clock.Clock
	log       *zap.Logger

	verifier PaymentVerifier
	events   EventPublisher
	encodeQR func([]byte) (string, error)
}

// Option customizes a Service.
type Option func(*Service)

// WithPaymentVerifier requires a succeeded intent for the exact amount,
// issued for the same showtime and seats, before anything is written.
func WithPaymentVerifier(v PaymentVerifier) Option {
	return func(s *Service) { s.verifier = v }
}

// WithEventPublisher publishes a booking.confirmed event after commit.
func WithEventPublisher(p EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

// WithQREncoder replaces EncodeQR.
func WithQREncoder(fn func([]byte) (string, error)) Option {
	return func(s *Service) { s.encodeQR = fn }
}

// NewService wires a Service.
func NewService(showtimes ShowtimeReader, discounts DiscountCatalog, grids GridBuilder, store Store,
	engine *pricing.Engine, clk clock.Clock, log *zap.Logger, opts ...Option) *Service {
	if clk == nil {
		clk = clock.NewSystem()
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		showtimes: showtimes,
		discounts: discounts,
		grids:     grids,
		store:     store,
		pricing:   engine,
		clock:     clk,
		log:       log,
		encodeQR:  EncodeQR,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateBooking validates the request against persisted state and writes
// one ticket plus one booking per seat.  Every validation happens before
// the first write; the writes are atomic.  Repeating a successful call
// with the same payment returns the ticket it created.
func (s *Service) CreateBooking(ctx context.Context, req Request) (*Result, error) {
	if req.UserID == "" {
		return nil, ErrUnauthenticated
	}
	if req.ShowtimeID == 0 || len(req.Seats) == 0 || req.PaymentIntentID == "" {
		return nil, ErrInvalidRequest
	}
	seats := canonicalSeats(req.Seats)
	choices := canonicalAssignments(req.Discounts)

	st, err := s.showtimes.GetDetail(ctx, req.ShowtimeID)
	if err != nil {
		return nil, fmt.Errorf("load showtime: %w", err)
	}

	// b. showtime
	now := s.clock.Now()
	if st.HasStarted(now) {
		return nil, ErrShowtimeStarted
	}

	// c. seats
	grid, err := s.grids.BuildGrid(ctx, st.ScreenID)
	if err != nil {
		return nil, fmt.Errorf("load seats: %w", err)
	}
	cells := make([]seatmap.Cell, 0, len(seats))
	var missing []string
	for _, id := range seats {
		cell, ok := grid.Lookup(id)
		if !ok {
			missing = append(missing, id)
			continue
		}
		cells = append(cells, cell)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrSeatsNotFound, strings.Join(missing, ", "))
	}

	// a. price, with the discounts the shopper may actually use now
	discounts, err := s.discounts.ActiveDiscounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load discounts: %w", err)
	}
	assign, err := s.pricing.Assign(grid, seats, choices, discounts, now)
	if err != nil {
		return nil, err
	}
	if err := refused(choices, assign, seats); err != nil {
		return nil, err
	}
	quote, err := s.pricing.Quote(st.Screen.BasePrice, seats, assign, discounts)
	if err != nil {
		return nil, err
	}
	if err := s.pricing.Validate(req.TotalAmount, quote.Total); err != nil {
		return nil, err
	}
	totalCents := pricing.Cents(quote.Total)

	if res, err := s.replay(ctx, req.PaymentIntentID, req.UserID, st.ID, cells); res != nil || err != nil {
		return res, err
	}
	if err := s.verifyPayment(ctx, req, st.ID, seats, assign, totalCents); err != nil {
		return nil, err
	}

	// d. conflicts
	seatIDs := make([]uint64, len(cells))
	for i, c := range cells {
		seatIDs[i] = c.SeatID
	}
	taken, err := s.store.BookedSeatIDs(ctx, st.ID, seatIDs)
	if err != nil {
		return nil, fmt.Errorf("check existing bookings: %w", err)
	}
	if len(taken) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrSeatsAlreadyBooked, labelsFor(cells, taken))
	}

	// e. QR
	ticket := model.Ticket{
		Code:       uuid.NewString(),
		UserID:     req.UserID,
		ShowtimeID: st.ID,
		PaymentRef: req.PaymentIntentID,
		CreatedAt:  now,
	}
	ticket.QRCode = s.renderQR(ticket.Code, st, cells)

	// f. write
	bookings := make([]model.Booking, len(cells))
	for i, c := range cells {
		line := quote.Lines[i]
		b := model.Booking{
			ShowtimeID:   st.ID,
			SeatID:       c.SeatID,
			Row:          c.Row,
			Column:       c.Column,
			Label:        c.ID,
			PriceInCents: pricing.Cents(line.Price),
			UserID:       req.UserID,
			CreatedAt:    now,
		}
		if line.DiscountID != 0 {
			id := line.DiscountID
			b.DiscountID = &id
		}
		bookings[i] = b
	}
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.CreateTicket(ctx, &ticket); err != nil {
			return fmt.Errorf("create ticket: %w", err)
		}
		for i := range bookings {
			bookings[i].TicketID = ticket.ID
		}
		if err := s.store.CreateBookings(ctx, bookings); err != nil {
			return fmt.Errorf("create bookings: %w", err)
		}
		return nil
	})
	switch {
	case errors.Is(err, repository.ErrPaymentRefTaken):
		// A concurrent call with the same payment won the insert.
		if res, rerr := s.replay(ctx, req.PaymentIntentID, req.UserID, st.ID, cells); res != nil || rerr != nil {
			return res, rerr
		}
		return nil, fmt.Errorf("%w: %s", ErrPaymentAlreadyUsed, req.PaymentIntentID)
	case errors.Is(err, repository.ErrConflict):
		return nil, fmt.Errorf("%w: %v", ErrSeatsAlreadyBooked, err)
	case err != nil:
		return nil, err
	}

	// g. result
	s.log.Info("booking confirmed",
		zap.Uint64("ticket_id", ticket.ID),
		zap.Uint64("showtime_id", st.ID),
		zap.String("user_id", req.UserID),
		zap.Strings("seats", seats),
		zap.Int64("total_cents", totalCents),
	)
	s.publish(ctx, st, ticket, seats, totalCents)
	return &Result{Ticket: ticket, Bookings: bookings}, nil
}

// replay looks up a ticket already paid by ref.  It returns that ticket
// when the caller repeats the same booking, ErrPaymentAlreadyUsed when the
// payment paid for something else, and nil, nil when it is unused.
func (s *Service) replay(ctx context.Context, ref, userID string, showtimeID uint64, cells []seatmap.Cell) (*Result, error) {
	t, bookings, err := s.store.TicketByPaymentRef(ctx, ref)
	if errors.Is(err, repository.ErrTicketNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("look up payment: %w", err)
	}
	if t.UserID != userID || t.ShowtimeID != showtimeID || !sameSeats(bookings, cells) {
		return nil, fmt.Errorf("%w: %s", ErrPaymentAlreadyUsed, ref)
	}
	labels := make(map[uint64]string, len(cells))
	for _, c := range cells {
		labels[c.SeatID] = c.ID
	}
	for i := range bookings {
		bookings[i].Label = labels[bookings[i].SeatID]
	}
	s.log.Info("booking replayed", zap.Uint64("ticket_id", t.ID), zap.String("payment_ref", ref))
	return &Result{Ticket: t, Bookings: bookings}, nil
}

func (s *Service) verifyPayment(ctx context.Context, req Request, showtimeID uint64, seats []string, assign pricing.Assignments, totalCents int64) error {
	if s.verifier == nil {
		return nil
	}
	intent, err := s.verifier.GetPaymentIntent(ctx, req.PaymentIntentID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPaymentIncomplete, err)
	}
	if !intent.Succeeded() {
		return fmt.Errorf("%w: status %s", ErrPaymentIncomplete, intent.Status)
	}
	if intent.AmountCents != totalCents {
		return fmt.Errorf("%w: paid %d cents, expected %d", pricing.ErrPriceMismatch, intent.AmountCents, totalCents)
	}
	meta := intent.Metadata
	if meta[payment.MetaShowtimeID] != strconv.FormatUint(showtimeID, 10) {
		return fmt.Errorf("%w: showtime", ErrPaymentMismatch)
	}
	if !sameLabels(meta[payment.MetaSeats], seats) {
		return fmt.Errorf("%w: seats", ErrPaymentMismatch)
	}
	if d, ok := meta[payment.MetaDiscounts]; ok && d != assign.Encode() {
		return fmt.Errorf("%w: discounts", ErrPaymentMismatch)
	}
	if u := meta[payment.MetaUserID]; u != "" && u != req.UserID {
		return fmt.Errorf("%w: user", ErrPaymentMismatch)
	}
	return nil
}

func (s *Service) renderQR(code string, st model.Showtime, cells []seatmap.Cell) string {
	seats := make([]qrSeat, len(cells))
	for i, c := range cells {
		seats[i] = qrSeat{ID: c.SeatID, Label: c.ID}
	}
	payload, err := buildQRPayload(code, st, seats)
	if err == nil {
		var out string
		if out, err = s.encodeQR(payload); err == nil {
			return out
		}
	}
	s.log.Warn("qr encoding failed, storing placeholder", zap.String("ticket_code", code), zap.Error(err))
	return qrPlaceholder
}

func (s *Service) publish(ctx context.Context, st model.Showtime, t model.Ticket, seats []string, totalCents int64) {
	if s.events == nil {
		return
	}
	ev := queue.BookingConfirmedEvent{
		TicketID:         t.ID,
		TicketCode:       t.Code,
		UserID:           t.UserID,
		ShowtimeID:       st.ID,
		CinemaName:       st.CinemaName,
		CinemaCity:       st.CinemaCity,
		ScreenNumber:     st.Screen.Number,
		MovieTitle:       st.MovieTitle,
		StartsAt:         st.StartTime.UTC().Format("2006-01-02T15:04:05Z"),
		Seats:            seats,
		TotalAmountCents: totalCents,
		PaymentRef:       t.PaymentRef,
		ConfirmedAt:      t.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if err := s.events.PublishBookingConfirmed(context.WithoutCancel(ctx), ev); err != nil {
		s.log.Warn("publish booking.confirmed failed", zap.Uint64("ticket_id", t.ID), zap.Error(err))
	}
}

// canonicalSeats normalizes and de-duplicates labels, keeping the first
// occurrence order.  Labels that do not parse are kept verbatim so the
// seat resolution step reports them.
func canonicalSeats(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		id, err := seatmap.Normalize(raw)
		if err != nil {
			id = strings.TrimSpace(raw)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func canonicalAssignments(in pricing.Assignments) pricing.Assignments {
	out := make(pricing.Assignments, len(in))
	for raw, id := range in {
		if n, err := seatmap.Normalize(raw); err == nil {
			out[n] = id
		} else {
			out[raw] = id
		}
	}
	return out
}

// refused reports a discount choice that Assign did not keep: the
// accessibility discount is fixed for accessible seats, and choices for
// seats outside the selection are meaningless.
func refused(choices, assign pricing.Assignments, seats []string) error {
	selected := make(map[string]struct{}, len(seats))
	for _, id := range seats {
		selected[id] = struct{}{}
	}
	for seat, id := range choices {
		if id == 0 {
			continue
		}
		if _, ok := selected[seat]; !ok || assign[seat] != id {
			return fmt.Errorf("%w: %s", pricing.ErrDiscountNotAllowed, seat)
		}
	}
	return nil
}

// sameLabels compares a comma separated label list with seats, ignoring
// order.
func sameLabels(list string, seats []string) bool {
	var got []string
	if list != "" {
		for _, raw := range strings.Split(list, ",") {
			id, err := seatmap.Normalize(raw)
			if err != nil {
				return false
			}
			got = append(got, id)
		}
	}
	want := append([]string(nil), seats...)
	sort.Strings(got)
	sort.Strings(want)
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func sameSeats(bookings []model.Booking, cells []seatmap.Cell) bool {
	if len(bookings) != len(cells) {
		return false
	}
	want := make(map[uint64]struct{}, len(cells))
	for _, c := range cells {
		want[c.SeatID] = struct{}{}
	}
	for _, b := range bookings {
		if _, ok := want[b.SeatID]; !ok {
			return false
		}
	}
	return true
}

func labelsFor(cells []seatmap.Cell, seatIDs []uint64) string {
	want := make(map[uint64]struct{}, len(seatIDs))
	for _, id := range seatIDs {
		want[id] = struct{}{}
	}
	var labels []string
	for _, c := range cells {
		if _, ok := want[c.SeatID]; ok {
			labels = append(labels, c.ID)
		}
	}
	return strings.Join(labels, ", ")
}
