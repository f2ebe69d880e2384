package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// BookingRepo persists tickets and their bookings.  The bookings table has
// a unique key on (showtime_id, seat_id); a duplicate insert surfaces as
// ErrConflict so that concurrent finalizations of the same seat cannot both
// succeed.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the provided database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// WithTx runs fn in a transaction shared by every repository call that
// receives the derived context.
func (r *BookingRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return WithTx(ctx, r.db, fn)
}

const bookingColumns = `id, ticket_id, showtime_id, seat_id, seat_row, seat_col, price_in_cents, discount_id, user_id, created_at`

// ListByShowtime returns the confirmed bookings of a showtime.
func (r *BookingRepo) ListByShowtime(ctx context.Context, showtimeID uint64) ([]model.Booking, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE showtime_id = ? ORDER BY seat_row, seat_col`, showtimeID)
	if err != nil {
		return nil, err
	}
	return scanBookings(rows)
}

// TicketByPaymentRef returns the ticket paid by the payment reference and
// its bookings, or ErrTicketNotFound.
func (r *BookingRepo) TicketByPaymentRef(ctx context.Context, ref string) (model.Ticket, []model.Booking, error) {
	var t model.Ticket
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, code, user_id, showtime_id, payment_ref, qr_code, created_at FROM tickets WHERE payment_ref = ?`, ref).
		Scan(&t.ID, &t.Code, &t.UserID, &t.ShowtimeID, &t.PaymentRef, &t.QRCode, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Ticket{}, nil, ErrTicketNotFound
	}
	if err != nil {
		return model.Ticket{}, nil, err
	}
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE ticket_id = ? ORDER BY id`, t.ID)
	if err != nil {
		return model.Ticket{}, nil, err
	}
	bookings, err := scanBookings(rows)
	if err != nil {
		return model.Ticket{}, nil, err
	}
	return t, bookings, nil
}

func scanBookings(rows *sql.Rows) ([]model.Booking, error) {
	defer rows.Close()

	out := []model.Booking{}
	for rows.Next() {
		var b model.Booking
		var discount sql.NullInt64
		if err := rows.Scan(&b.ID, &b.TicketID, &b.ShowtimeID, &b.SeatID, &b.Row, &b.Column,
			&b.PriceInCents, &discount, &b.UserID, &b.CreatedAt); err != nil {
			return nil, err
		}
		if discount.Valid {
			id := uint64(discount.Int64)
			b.DiscountID = &id
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// BookedSeatIDs returns which of seatIDs already have a booking for the showtime.
func (r *BookingRepo) BookedSeatIDs(ctx context.Context, showtimeID uint64, seatIDs []uint64) ([]uint64, error) {
	if len(seatIDs) == 0 {
		return []uint64{}, nil
	}
	args := make([]any, 0, len(seatIDs)+1)
	args = append(args, showtimeID)
	for _, id := range seatIDs {
		args = append(args, id)
	}
	q := `SELECT seat_id FROM bookings WHERE showtime_id = ? AND seat_id IN (` + placeholders(len(seatIDs)) + `)`
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []uint64{}
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// CreateTicket inserts t and sets its generated id.
func (r *BookingRepo) CreateTicket(ctx context.Context, t *model.Ticket) error {
	const q = `INSERT INTO tickets (code, user_id, showtime_id, payment_ref, qr_code, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	res, err := conn(ctx, r.db).ExecContext(ctx, q, t.Code, t.UserID, t.ShowtimeID, t.PaymentRef, t.QRCode, t.CreatedAt.UTC())
	if err != nil {
		if duplicateOn(err, "uq_tickets_payment_ref") {
			return fmt.Errorf("%w: %s", ErrPaymentRefTaken, t.PaymentRef)
		}
		if isDuplicateEntry(err) {
			return fmt.Errorf("%w: ticket %s", ErrConflict, t.Code)
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// CreateBookings inserts all bookings in one statement.  Either every row
// is written or none is; a seat that is already booked yields ErrConflict.
// Generated ids are assigned in insertion order.
func (r *BookingRepo) CreateBookings(ctx context.Context, bookings []model.Booking) error {
	if len(bookings) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO bookings (ticket_id, showtime_id, seat_id, seat_row, seat_col, price_in_cents, discount_id, user_id, created_at) VALUES `)
	args := make([]any, 0, len(bookings)*9)
	for i, b := range bookings {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		var discount any
		if b.DiscountID != nil {
			discount = *b.DiscountID
		}
		args = append(args, b.TicketID, b.ShowtimeID, b.SeatID, b.Row, b.Column, b.PriceInCents, discount, b.UserID, b.CreatedAt.UTC())
	}
	res, err := conn(ctx, r.db).ExecContext(ctx, sb.String(), args...)
	if err != nil {
		if isDuplicateEntry(err) {
			return fmt.Errorf("%w: seat already booked", ErrConflict)
		}
		return err
	}
	// MySQL reports the id of the first row of a multi-row insert.
	first, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for i := range bookings {
		bookings[i].ID = uint64(first) + uint64(i)
	}
	return nil
}
