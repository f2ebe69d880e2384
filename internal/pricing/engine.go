package pricing

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
	"github.com/iliyamo/cinema-seat-booking/internal/seatmap"
)

var (
	ErrPriceMismatch      = errors.New("submitted total does not match the computed price")
	ErrUnknownDiscount    = errors.New("unknown discount")
	ErrDiscountNotAllowed = errors.New("discount not allowed for this seat")
	ErrUnknownSeat        = errors.New("seat is not configured on this screen")
)

// DefaultTolerance is the largest accepted gap between a client total and
// the server total, in currency units.
var DefaultTolerance = decimal.NewFromFloat(0.01)

// Assignments maps a seat label to the chosen discount id.  Seats absent
// from the map pay the base price.
type Assignments map[string]uint64

// Encode renders the assignments as "A1:5,B2:6" in seat order.  Payment
// intents carry this string so finalization can compare it.
func (a Assignments) Encode() string {
	parts := make([]string, 0, len(a))
	for seat, id := range a {
		if id == 0 {
			continue
		}
		parts = append(parts, seat+":"+strconv.FormatUint(id, 10))
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// Line is the price of one seat.
type Line struct {
	Seat       string          `json:"seat"`
	DiscountID uint64          `json:"discount_id,omitempty"`
	Price      decimal.Decimal `json:"price"`
}

// Quote is the priced selection.
type Quote struct {
	Lines []Line          `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

// Engine prices selections.  It is safe for concurrent use.
type Engine struct {
	log       *zap.Logger
	marker    string
	tolerance decimal.Decimal
}

// Option customizes an Engine.
type Option func(*Engine)

// WithAccessibilityMarker overrides the accessibility discount marker.
func WithAccessibilityMarker(marker string) Option {
	return func(e *Engine) { e.marker = marker }
}

// WithTolerance overrides the total comparison tolerance.
func WithTolerance(t decimal.Decimal) Option {
	return func(e *Engine) { e.tolerance = t }
}

// NewEngine returns an Engine logging to log.
func NewEngine(log *zap.Logger, opts ...Option) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{log: log, marker: DefaultAccessibilityMarker, tolerance: DefaultTolerance}
	for _, o := range opts {
		o(e)
	}
	return e
}

// IsAccessibility reports whether d is the accessibility discount.
func (e *Engine) IsAccessibility(d model.Discount) bool {
	return isAccessibility(d, e.marker)
}

// AccessibilityDiscount finds the accessibility discount among all.  Its
// active window is ignored.
func (e *Engine) AccessibilityDiscount(all []model.Discount) (model.Discount, bool) {
	for _, d := range all {
		if d.Active && e.IsAccessibility(d) {
			return d, true
		}
	}
	return model.Discount{}, false
}

// Choices returns the discounts a shopper may pick for a regular seat.
func (e *Engine) Choices(all []model.Discount, now time.Time) []model.Discount {
	out := make([]model.Discount, 0, len(all))
	for _, d := range ApplicableDiscounts(all, now) {
		if !e.IsAccessibility(d) {
			out = append(out, d)
		}
	}
	return out
}

// PriceForSeat returns base minus the discount amount, clamped at zero.
func (e *Engine) PriceForSeat(base decimal.Decimal, d *model.Discount) decimal.Decimal {
	if d == nil {
		return base
	}
	price := base.Sub(d.Amount)
	if price.IsNegative() {
		e.log.Warn("discount exceeds base price, clamping to zero",
			zap.Uint64("discount_id", d.ID),
			zap.String("discount", d.Name),
			zap.String("base", base.String()),
			zap.String("amount", d.Amount.String()),
		)
		return decimal.Zero
	}
	return price
}

// Assign resolves the discount of every selected seat.  Accessible seats
// always receive the accessibility discount and ignore the shopper's
// choice; regular seats may take any applicable non-accessibility
// discount.
func (e *Engine) Assign(grid *seatmap.Grid, seats []string, choices Assignments, all []model.Discount, now time.Time) (Assignments, error) {
	byID := indexDiscounts(all)
	out := make(Assignments, len(seats))
	for _, id := range seats {
		cell, ok := grid.Lookup(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSeat, id)
		}
		if cell.Accessible {
			if d, ok := e.AccessibilityDiscount(all); ok {
				out[cell.ID] = d.ID
			}
			continue
		}
		chosen, ok := lookupChoice(choices, id, cell.ID)
		if !ok || chosen == 0 {
			continue
		}
		d, ok := byID[chosen]
		if !ok || !Applicable(d, now) {
			return nil, fmt.Errorf("%w: %d", ErrUnknownDiscount, chosen)
		}
		if e.IsAccessibility(d) {
			return nil, fmt.Errorf("%w: %s", ErrDiscountNotAllowed, cell.ID)
		}
		out[cell.ID] = d.ID
	}
	return out, nil
}

// Quote prices seats given their assignments.  Discount ids are looked up
// in all; an id that is not present is an error.
func (e *Engine) Quote(base decimal.Decimal, seats []string, assign Assignments, all []model.Discount) (Quote, error) {
	byID := indexDiscounts(all)
	q := Quote{Lines: make([]Line, 0, len(seats)), Total: decimal.Zero}
	for _, seat := range seats {
		line := Line{Seat: seat}
		var d *model.Discount
		if id, ok := assign[seat]; ok && id != 0 {
			found, ok := byID[id]
			if !ok {
				return Quote{}, fmt.Errorf("%w: %d", ErrUnknownDiscount, id)
			}
			d = &found
			line.DiscountID = id
		}
		line.Price = e.PriceForSeat(base, d)
		q.Total = q.Total.Add(line.Price)
		q.Lines = append(q.Lines, line)
	}
	return q, nil
}

// Total is the sum of PriceForSeat over seats.
func (e *Engine) Total(base decimal.Decimal, seats []string, assign Assignments, all []model.Discount) (decimal.Decimal, error) {
	q, err := e.Quote(base, seats, assign, all)
	if err != nil {
		return decimal.Zero, err
	}
	return q.Total, nil
}

// Validate compares a client submitted total to the computed one.
func (e *Engine) Validate(submitted, computed decimal.Decimal) error {
	if submitted.Sub(computed).Abs().GreaterThan(e.tolerance) {
		return fmt.Errorf("%w: submitted %s, expected %s", ErrPriceMismatch, submitted.StringFixed(2), computed.StringFixed(2))
	}
	return nil
}

// Cents converts a currency amount to integer minor units.
func Cents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromCents converts integer minor units back to a currency amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

func indexDiscounts(all []model.Discount) map[uint64]model.Discount {
	m := make(map[uint64]model.Discount, len(all))
	for _, d := range all {
		m[d.ID] = d
	}
	return m
}

func lookupChoice(choices Assignments, raw, canonical string) (uint64, bool) {
	if id, ok := choices[canonical]; ok {
		return id, true
	}
	id, ok := choices[raw]
	return id, ok
}
