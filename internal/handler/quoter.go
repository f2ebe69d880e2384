package handler

import (
    "context"

    "github.com/iliyamo/cinema-seat-booking/internal/clock"
    "github.com/iliyamo/cinema-seat-booking/internal/model"
    "github.com/iliyamo/cinema-seat-booking/internal/pricing"
    "github.com/iliyamo/cinema-seat-booking/internal/seatmap"
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

// Quoter prices a selection the same way checkout does.
type Quoter struct {
    Showtimes ShowtimeReader
    Discounts DiscountCatalog
    Grids     GridBuilder
    Pricing   *pricing.Engine
    Clock     clock.Clock
}

type pricedSelection struct {
    Showtime    model.Showtime
    Grid        *seatmap.Grid
    Seats       []string
    Assignments pricing.Assignments
    Quote       pricing.Quote
}

func (q *Quoter) price(ctx context.Context, showtimeID uint64, seats []string, choices pricing.Assignments) (*pricedSelection, error) {
    canonical, err := canonicalSeats(seats)
    if err != nil {
        return nil, err
    }
    st, err := q.Showtimes.GetDetail(ctx, showtimeID)
    if err != nil {
        return nil, err
    }
    grid, err := q.Grids.BuildGrid(ctx, st.ScreenID)
    if err != nil {
        return nil, err
    }
    all, err := q.Discounts.ActiveDiscounts(ctx)
    if err != nil {
        return nil, err
    }
    assign, err := q.Pricing.Assign(grid, canonical, choices, all, q.Clock.Now())
    if err != nil {
        return nil, err
    }
    quote, err := q.Pricing.Quote(st.Screen.BasePrice, canonical, assign, all)
    if err != nil {
        return nil, err
    }
    return &pricedSelection{Showtime: st, Grid: grid, Seats: canonical, Assignments: assign, Quote: quote}, nil
}

func canonicalSeats(in []string) ([]string, error) {
    seen := make(map[string]struct{}, len(in))
    out := make([]string, 0, len(in))
    for _, raw := range in {
        id, err := seatmap.Normalize(raw)
        if err != nil {
            return nil, err
        }
        if _, ok := seen[id]; ok {
            continue
        }
        seen[id] = struct{}{}
        out = append(out, id)
    }
    return out, nil
}
