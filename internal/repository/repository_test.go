package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func TestScreenConfiguration(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`SELECT (.+) FROM screens WHERE id = \?`).
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "cinema_id", "number", "row_count", "column_count", "base_price", "sound_type", "projection_type"}).
			AddRow(5, 1, 3, 2, 2, "19.00", "Dolby Atmos", "IMAX"))
	mock.ExpectQuery(`SELECT (.+) FROM seats WHERE screen_id = \?`).
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "screen_id", "seat_row", "seat_col", "is_accessible"}).
			AddRow(1, 5, 1, 1, true).
			AddRow(2, 5, 1, 2, false))

	screen, seats, err := NewScreenRepo(db).ScreenConfiguration(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 3, screen.Number)
	assert.True(t, screen.BasePrice.Equal(decimal.NewFromInt(19)))
	require.Len(t, seats, 2)
	assert.True(t, seats[0].Accessible)
	assert.Equal(t, 2, seats[1].Column)
}

func TestScreenConfigurationNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`FROM screens`).WillReturnError(sql.ErrNoRows)

	_, _, err := NewScreenRepo(db).ScreenConfiguration(context.Background(), 9)
	assert.ErrorIs(t, err, ErrScreenNotFound)
}

func TestShowtimeGetDetail(t *testing.T) {
	db, mock := newMock(t)
	start := time.Date(2025, 5, 1, 20, 30, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM showtimes st`).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "screen_id", "start_time", "title", "sid", "cinema_id", "number", "rows", "cols", "base_price", "sound", "proj", "name", "city"}).
			AddRow(7, 5, start, "Metropolis", 5, 1, 3, 10, 12, "12.50", "Stereo", "2D", "Le Rex", "Paris"))

	st, err := NewShowtimeRepo(db).GetDetail(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Metropolis", st.MovieTitle)
	assert.Equal(t, start, st.StartTime)
	assert.Equal(t, "Paris", st.CinemaCity)
	assert.True(t, st.Screen.BasePrice.Equal(decimal.RequireFromString("12.5")))
}

func TestShowtimeNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`FROM showtimes st`).WillReturnError(sql.ErrNoRows)
	_, err := NewShowtimeRepo(db).GetDetail(context.Background(), 1)
	assert.ErrorIs(t, err, ErrShowtimeNotFound)
}

func TestDiscountQueries(t *testing.T) {
	db, mock := newMock(t)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cols := []string{"id", "name", "amount", "active", "recurrent", "start_date", "end_date"}
	mock.ExpectQuery(`FROM discounts WHERE active = TRUE`).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, "PMR", "4.00", true, true, nil, nil).
			AddRow(2, "Winter", "2.00", true, false, start, start.AddDate(0, 2, 0)))

	repo := NewDiscountRepo(db)
	active, err := repo.ActiveDiscounts(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Nil(t, active[0].StartDate)
	require.NotNil(t, active[1].StartDate)
	assert.Equal(t, start, *active[1].StartDate)
}

func TestHoldRepoUpsertAndActive(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2025, 5, 1, 18, 0, 0, 0, time.UTC)
	h := model.TemporaryHold{ShowtimeID: 3, SessionID: "abc", Seats: []string{"A1", "A2"}, CreatedAt: now, ExpiresAt: now.Add(5 * time.Minute)}

	mock.ExpectExec(`INSERT INTO temporary_holds (.+) ON DUPLICATE KEY UPDATE`).
		WithArgs(uint64(3), "abc", `["A1","A2"]`, h.ExpiresAt, h.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT session_id, seats, expires_at, created_at FROM temporary_holds`).
		WithArgs(uint64(3), now).
		WillReturnRows(sqlmock.NewRows([]string{"session_id", "seats", "expires_at", "created_at"}).
			AddRow("abc", `["A1","A2"]`, h.ExpiresAt, h.CreatedAt))
	mock.ExpectExec(`DELETE FROM temporary_holds WHERE expires_at <= \?`).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 4))

	repo := NewHoldRepo(db)
	require.NoError(t, repo.Upsert(context.Background(), h))

	got, err := repo.Active(context.Background(), 3, now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"A1", "A2"}, got[0].Seats)

	n, err := repo.DeleteAllExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestBookingRepoCreateInTransaction(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2025, 5, 1, 18, 0, 0, 0, time.UTC)
	discount := uint64(1)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO tickets`).
		WithArgs("code-1", "user-1", uint64(7), "pi_1", "qr", now).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec(`INSERT INTO bookings (.+) VALUES \(\?, \?, \?, \?, \?, \?, \?, \?, \?\), \(\?, \?, \?, \?, \?, \?, \?, \?, \?\)`).
		WithArgs(
			uint64(11), uint64(7), uint64(1), 1, 1, int64(1500), uint64(1), "user-1", now,
			uint64(11), uint64(7), uint64(2), 1, 2, int64(1900), nil, "user-1", now,
		).
		WillReturnResult(sqlmock.NewResult(40, 2))
	mock.ExpectCommit()

	repo := NewBookingRepo(db)
	ticket := &model.Ticket{Code: "code-1", UserID: "user-1", ShowtimeID: 7, PaymentRef: "pi_1", QRCode: "qr", CreatedAt: now}
	bookings := []model.Booking{
		{ShowtimeID: 7, SeatID: 1, Row: 1, Column: 1, PriceInCents: 1500, DiscountID: &discount, UserID: "user-1", CreatedAt: now},
		{ShowtimeID: 7, SeatID: 2, Row: 1, Column: 2, PriceInCents: 1900, UserID: "user-1", CreatedAt: now},
	}
	err := repo.WithTx(context.Background(), func(ctx context.Context) error {
		if err := repo.CreateTicket(ctx, ticket); err != nil {
			return err
		}
		for i := range bookings {
			bookings[i].TicketID = ticket.ID
		}
		return repo.CreateBookings(ctx, bookings)
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(11), ticket.ID)
	assert.Equal(t, uint64(40), bookings[0].ID)
	assert.Equal(t, uint64(41), bookings[1].ID)
}

func TestBookingRepoDuplicateRollsBack(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO tickets`).WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectExec(`INSERT INTO bookings`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '7-1' for key 'uq_bookings_showtime_seat'"})
	mock.ExpectRollback()

	repo := NewBookingRepo(db)
	err := repo.WithTx(context.Background(), func(ctx context.Context) error {
		ticket := &model.Ticket{Code: "c"}
		if err := repo.CreateTicket(ctx, ticket); err != nil {
			return err
		}
		return repo.CreateBookings(ctx, []model.Booking{{TicketID: ticket.ID, ShowtimeID: 7, SeatID: 1}})
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestWithTxNestedReusesOuter(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	calls := 0
	err := WithTx(context.Background(), db, func(ctx context.Context) error {
		return WithTx(ctx, db, func(ctx context.Context) error {
			calls++
			assert.NotNil(t, txFromContext(ctx))
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := WithTx(context.Background(), db, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestBookedSeatIDsAndList(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`SELECT seat_id FROM bookings WHERE showtime_id = \? AND seat_id IN \(\?, \?\)`).
		WithArgs(uint64(7), uint64(1), uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"seat_id"}).AddRow(2))
	mock.ExpectQuery(`FROM bookings WHERE showtime_id = \? ORDER BY`).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ticket_id", "showtime_id", "seat_id", "seat_row", "seat_col", "price_in_cents", "discount_id", "user_id", "created_at"}).
			AddRow(1, 1, 7, 2, 1, 2, 1900, nil, "u", time.Now()))

	repo := NewBookingRepo(db)
	taken, err := repo.BookedSeatIDs(context.Background(), 7, []uint64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, taken)

	list, err := repo.ListByShowtime(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].DiscountID)
	assert.Equal(t, 2, list[0].Column)
}

func TestCreateTicketDuplicatePaymentRef(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO tickets`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'pi_1' for key 'tickets.uq_tickets_payment_ref'"})
	mock.ExpectExec(`INSERT INTO tickets`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'c' for key 'tickets.uq_tickets_code'"})

	repo := NewBookingRepo(db)
	err := repo.CreateTicket(context.Background(), &model.Ticket{Code: "c", PaymentRef: "pi_1"})
	assert.ErrorIs(t, err, ErrPaymentRefTaken)
	assert.NotErrorIs(t, err, ErrConflict)

	err = repo.CreateTicket(context.Background(), &model.Ticket{Code: "c", PaymentRef: "pi_2"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestTicketByPaymentRef(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2025, 5, 1, 18, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM tickets WHERE payment_ref = \?`).WithArgs("pi_1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "user_id", "showtime_id", "payment_ref", "qr_code", "created_at"}).
			AddRow(11, "code-1", "user-1", 7, "pi_1", "qr", now))
	mock.ExpectQuery(`FROM bookings WHERE ticket_id = \?`).WithArgs(uint64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ticket_id", "showtime_id", "seat_id", "seat_row", "seat_col", "price_in_cents", "discount_id", "user_id", "created_at"}).
			AddRow(40, 11, 7, 2, 1, 2, 1900, nil, "user-1", now))
	mock.ExpectQuery(`FROM tickets WHERE payment_ref = \?`).WithArgs("pi_2").
		WillReturnError(sql.ErrNoRows)

	repo := NewBookingRepo(db)
	ticket, bookings, err := repo.TicketByPaymentRef(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, uint64(11), ticket.ID)
	assert.Equal(t, "user-1", ticket.UserID)
	require.Len(t, bookings, 1)
	assert.Equal(t, uint64(2), bookings[0].SeatID)

	_, _, err = repo.TicketByPaymentRef(context.Background(), "pi_2")
	assert.ErrorIs(t, err, ErrTicketNotFound)
}
